// Package client implements the consumer side of the relay protocol: it
// submits a chat turn, parses the canonical event stream incrementally and
// reports progress through a Handler, mirroring what the embedded widget
// does in the browser.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatbot-relay/pkg/models"
	"chatbot-relay/pkg/sse"
)

// State of one in-flight chat exchange.
type State int

const (
	// StateComposing is the resting state before a submission.
	StateComposing State = iota
	// StateAwaitingFirstByte covers the span between submit and the first
	// chunk, while the thinking indicator animates.
	StateAwaitingFirstByte
	// StateStreaming accumulates chunks into the assistant reply.
	StateStreaming
	// StateSettled is terminal for the exchange, success or error.
	StateSettled
)

// Handler receives the consumer-side lifecycle callbacks.
//
// OnThinking fires periodically while awaiting the first chunk and stops
// as soon as content arrives, on error included. OnChunk content is
// strictly additive: append it, never re-render from scratch. OnEnd hands
// over the server's authoritative history, which replaces any local
// accumulation wholesale.
type Handler interface {
	OnThinking()
	OnChunk(content string)
	OnEnd(conversation models.ConversationHistory)
	OnError(err error)
}

// Client talks to a running relay.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	thinkEvery time.Duration
}

// Option adjusts a Client.
type Option func(*Client)

// WithToken attaches a bearer credential to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithThinkingInterval overrides the indicator animation period.
func WithThinkingInterval(d time.Duration) Option {
	return func(c *Client) { c.thinkEvery = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the relay at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		thinkEvery: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Models fetches the relay's model listing.
func (c *Client) Models(ctx context.Context) ([]models.LanguageModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from model listing", resp.StatusCode)
	}

	var envelope struct {
		Models []models.LanguageModel `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.Models, nil
}

// Stream submits one chat turn and consumes the event stream until the
// terminal event. Protocol-level errors are delivered through the handler
// and also returned; a nil return means the exchange settled with an end
// event.
func (c *Client) Stream(ctx context.Context, chatReq models.ChatRequest, h Handler) error {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	// The thinking indicator runs from submission until the first chunk
	// and must be cancelled on every exit path.
	indicator := newThinkingIndicator(c.thinkEvery, h.OnThinking)
	defer indicator.Stop()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		indicator.Stop()
		h.OnError(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		indicator.Stop()
		err := fmt.Errorf("relay returned status %d", resp.StatusCode)
		h.OnError(err)
		return err
	}

	state := StateAwaitingFirstByte
	scanner := sse.NewScanner(resp.Body)
	for {
		payload, err := scanner.Next()
		if err == io.EOF {
			indicator.Stop()
			err := errors.New("stream ended without a terminal event")
			h.OnError(err)
			return err
		}
		if err != nil {
			indicator.Stop()
			h.OnError(err)
			return err
		}

		var event models.RelayEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// One corrupt record must not abort the exchange.
			continue
		}

		switch event.Type {
		case models.EventChunk:
			if state == StateAwaitingFirstByte {
				indicator.Stop()
				state = StateStreaming
			}
			h.OnChunk(event.Content)
		case models.EventEnd:
			indicator.Stop()
			h.OnEnd(event.Conversation)
			return nil
		case models.EventError:
			indicator.Stop()
			err := errors.New(event.Error)
			h.OnError(err)
			return err
		}
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// thinkingIndicator drives the periodic animation callback with a ticker
// whose lifetime is bound to the request. Stop is idempotent.
type thinkingIndicator struct {
	ticker *time.Ticker
	done   chan struct{}
	stop   chan struct{}
}

func newThinkingIndicator(every time.Duration, tick func()) *thinkingIndicator {
	ind := &thinkingIndicator{
		ticker: time.NewTicker(every),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go func() {
		defer close(ind.done)
		for {
			select {
			case <-ind.stop:
				return
			case <-ind.ticker.C:
				tick()
			}
		}
	}()
	return ind
}

func (i *thinkingIndicator) Stop() {
	select {
	case <-i.stop:
	default:
		close(i.stop)
	}
	i.ticker.Stop()
	<-i.done
}
