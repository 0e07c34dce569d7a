// Package backend adapts the three upstream response shapes behind one
// interface. Each adapter issues exactly one upstream call per inbound chat
// request and hands the relay an abstract response source tagged with its
// delivery mode; the relay never talks to a vendor endpoint directly.
package backend

import (
	"context"
	"errors"
	"io"
	"strings"

	"chatbot-relay/pkg/models"
)

// ResponseMode identifies how an upstream delivers assistant output.
type ResponseMode string

const (
	// ModeSingleShot delivers one JSON body with the full assistant text;
	// the relay synthesizes incremental chunks from it.
	ModeSingleShot ResponseMode = "single-shot"

	// ModeUpstreamStream delivers raw event-stream byte frames that the
	// relay re-frames into its own protocol.
	ModeUpstreamStream ResponseMode = "upstream-streaming"

	// ModeNativeStream delivers structured incremental objects, one JSON
	// document per line, each directly usable as a chunk.
	ModeNativeStream ResponseMode = "native-streaming"
)

var (
	// ErrEmptyMessage rejects a blank user message before any upstream
	// call is made.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrUpstream wraps non-2xx upstream responses. The upstream's own
	// error text is logged but never carried to the caller.
	ErrUpstream = errors.New("upstream request failed")
)

// Response is the abstract response source handed to the relay. Exactly
// one of Text or Body is populated depending on Mode.
type Response struct {
	Mode ResponseMode
	Text string        // ModeSingleShot: the complete assistant text
	Body io.ReadCloser // streaming modes: the raw incremental body
}

// Close releases the underlying body, if any.
func (r *Response) Close() error {
	if r.Body != nil {
		return r.Body.Close()
	}
	return nil
}

// Adapter is the capability interface every backend implements. Adding a
// backend means adding an implementation, not branching call sites.
type Adapter interface {
	Name() string
	Mode() ResponseMode

	// Send appends the trimmed user text as a user turn to history and
	// issues the single upstream call. A blank userText returns
	// ErrEmptyMessage without contacting the backend.
	Send(ctx context.Context, model string, history models.ConversationHistory, userText string) (*Response, error)

	// ListModels returns the models the backend currently offers.
	ListModels(ctx context.Context) ([]models.LanguageModel, error)
}

// outgoingMessages builds the upstream message list without touching the
// caller's history slice.
func outgoingMessages(history models.ConversationHistory, userText string) ([]models.ConversationTurn, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	msgs := make([]models.ConversationTurn, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, models.ConversationTurn{Role: models.RoleUser, Content: text})
	return msgs, nil
}
