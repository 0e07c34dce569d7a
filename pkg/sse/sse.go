// Package sse implements the line-oriented event-stream wire format used on
// both sides of the relay: the server frames outbound records, and both the
// relay (reading an upstream stream) and the widget client (reading the
// relay) parse inbound records with identical partial-frame buffering.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DoneSentinel terminates OpenAI-style upstream streams. Parsers skip it
// silently; the relay's own protocol signals completion with an end event
// instead.
const DoneSentinel = "[DONE]"

// Writer frames payloads as "data: <json>\n\n" records and flushes after
// each one so the consumer sees events as they happen.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w is an http.ResponseWriter supporting Flush, each
// record is flushed to the client immediately.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteEvent marshals payload and writes it as one record.
func (w *Writer) WriteEvent(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Buffer reassembles records from a stream of byte reads that may end
// mid-line or mid-record. Feed returns the data payloads of every record
// completed by the given bytes; the trailing incomplete record is carried
// over to the next call. Feeding the same stream split at any byte offset
// yields the same payload sequence as feeding it whole.
type Buffer struct {
	pending []byte
}

// Feed appends p and extracts the payloads of all complete records.
// Records are terminated by a blank line. Within a record, only "data:"
// lines contribute; "event:" and other field lines, blank payloads and the
// [DONE] sentinel are skipped silently.
func (b *Buffer) Feed(p []byte) []string {
	b.pending = append(b.pending, p...)

	var payloads []string
	for {
		sep := bytes.Index(b.pending, []byte("\n\n"))
		if sep < 0 {
			break
		}
		record := b.pending[:sep]
		b.pending = b.pending[sep+2:]

		for _, line := range strings.Split(string(record), "\n") {
			line = strings.TrimRight(line, "\r")
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == DoneSentinel {
				continue
			}
			payloads = append(payloads, data)
		}
	}
	return payloads
}

// Flush extracts payloads from whatever remains in the carry-over buffer,
// treating end-of-stream as a record terminator. Call it once after the
// final read.
func (b *Buffer) Flush() []string {
	if len(b.pending) == 0 {
		return nil
	}
	return b.Feed([]byte("\n\n"))
}

// Scanner pulls data payloads one at a time from an io.Reader, using a
// Buffer for carry-over between reads.
type Scanner struct {
	r       io.Reader
	buf     Buffer
	queue   []string
	readBuf []byte
	err     error
}

// NewScanner returns a Scanner reading records from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r, readBuf: make([]byte, 4096)}
}

// Next returns the next data payload. It returns io.EOF once the stream is
// exhausted, or the read error that interrupted it.
func (s *Scanner) Next() (string, error) {
	for len(s.queue) == 0 {
		if s.err != nil {
			return "", s.err
		}
		n, err := s.r.Read(s.readBuf)
		if n > 0 {
			s.queue = append(s.queue, s.buf.Feed(s.readBuf[:n])...)
		}
		if err != nil {
			s.err = err
			s.queue = append(s.queue, s.buf.Flush()...)
		}
	}
	payload := s.queue[0]
	s.queue = s.queue[1:]
	return payload, nil
}
