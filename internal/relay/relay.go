// Package relay implements the stream normalizer: the per-request state
// machine that drains one backend response source, whatever its delivery
// mode, and emits the canonical chunk/end/error event sequence.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"chatbot-relay/internal/backend"
	"chatbot-relay/pkg/models"
	"chatbot-relay/pkg/sse"
)

// errClientGone marks a failed write to the caller. There is no one left
// to send a terminal event to, so it short-circuits the error path.
var errClientGone = errors.New("client connection lost")

type state int

const (
	stateIdle state = iota
	stateSending
	stateDraining
	stateClosing
)

// Relay normalizes one chat request. One instance serves exactly one
// request and is not reentrant; concurrent requests each get their own,
// which is the whole concurrency story — no shared mutable state, no locks.
type Relay struct {
	adapter    backend.Adapter
	chunkDelay time.Duration

	state       state
	accumulated strings.Builder
}

// New builds a relay over the given adapter. chunkDelay paces synthetic
// chunks in single-shot mode; zero disables pacing. The delay is a UX
// affordance only and has no bearing on protocol correctness.
func New(adapter backend.Adapter, chunkDelay time.Duration) *Relay {
	return &Relay{adapter: adapter, chunkDelay: chunkDelay}
}

// Run issues the upstream call and streams the normalized events to w.
// Every exit path emits exactly one terminal event (end or error) unless
// the caller's transport is already gone. The accumulated assistant text
// is exactly the concatenation of the emitted chunks, so the end event's
// history matches what the caller rendered.
func (r *Relay) Run(ctx context.Context, w *sse.Writer, model string, history models.ConversationHistory, userText string) {
	r.state = stateSending
	resp, err := r.adapter.Send(ctx, model, history, userText)
	if err != nil {
		r.fail(w, "failed to reach the model backend")
		return
	}
	defer resp.Close()

	r.state = stateDraining
	switch resp.Mode {
	case backend.ModeSingleShot:
		err = r.drainSingleShot(ctx, w, resp.Text)
	case backend.ModeUpstreamStream:
		err = r.drainUpstreamStream(ctx, w, resp.Body)
	case backend.ModeNativeStream:
		err = r.drainNativeStream(ctx, w, resp.Body)
	default:
		err = errors.New("unknown response mode")
	}
	if err != nil {
		if errors.Is(err, errClientGone) {
			log.Printf("relay: client disconnected mid-stream, abandoning upstream read")
			r.state = stateClosing
			return
		}
		log.Printf("relay: stream failed: %v", err)
		r.fail(w, "the response stream was interrupted")
		return
	}

	r.state = stateClosing
	updated := models.Thread(history, strings.TrimSpace(userText), r.accumulated.String())
	if err := w.WriteEvent(models.EndEvent(updated)); err != nil {
		log.Printf("relay: failed to deliver end event: %v", err)
	}
}

// emit writes one chunk and records its content in the accumulator.
func (r *Relay) emit(w *sse.Writer, content string) error {
	if err := w.WriteEvent(models.ChunkEvent(content)); err != nil {
		return errClientGone
	}
	r.accumulated.WriteString(content)
	return nil
}

// fail emits the single terminal error event. Write failures are ignored:
// if the transport is gone the event has nowhere to go anyway.
func (r *Relay) fail(w *sse.Writer, message string) {
	r.state = stateClosing
	if err := w.WriteEvent(models.ErrorEvent(message)); err != nil {
		log.Printf("relay: failed to deliver error event: %v", err)
	}
}

// drainSingleShot splits the buffered assistant text into whitespace
// tokens and emits one chunk per token, each after the first carrying a
// single leading space, simulating incremental delivery.
func (r *Relay) drainSingleShot(ctx context.Context, w *sse.Writer, text string) error {
	for i, token := range strings.Fields(text) {
		content := token
		if i > 0 {
			content = " " + token
		}
		if err := r.emit(w, content); err != nil {
			return err
		}
		if r.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return errClientGone
			case <-time.After(r.chunkDelay):
			}
		}
	}
	return nil
}

// openAIChunk is the delta shape of an upstream event-stream record.
type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// drainUpstreamStream re-frames a raw upstream event stream. Partial
// records are carried across read boundaries by the scanner; a record that
// fails to parse is skipped and logged rather than aborting the response.
func (r *Relay) drainUpstreamStream(ctx context.Context, w *sse.Writer, body io.Reader) error {
	scanner := sse.NewScanner(body)
	for {
		if ctx.Err() != nil {
			return errClientGone
		}
		payload, err := scanner.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var chunk openAIChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			log.Printf("relay: skipping malformed upstream record: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := r.emit(w, content); err != nil {
			return err
		}
	}
}

// nativeIncrement is one structured object from a native-streaming daemon.
type nativeIncrement struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// drainNativeStream maps structured increments 1:1 onto chunks, dropping
// empty-content increments.
func (r *Relay) drainNativeStream(ctx context.Context, w *sse.Writer, body io.Reader) error {
	dec := json.NewDecoder(body)
	for {
		if ctx.Err() != nil {
			return errClientGone
		}
		var inc nativeIncrement
		if err := dec.Decode(&inc); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if inc.Message.Content != "" {
			if err := r.emit(w, inc.Message.Content); err != nil {
				return err
			}
		}
		if inc.Done {
			return nil
		}
	}
}
