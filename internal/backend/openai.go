package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"chatbot-relay/pkg/models"
)

// OpenAI talks to a third-party inference API speaking the OpenAI wire
// protocol with true token-level streaming. The raw event-stream body is
// handed to the relay, which re-frames each delta into its own protocol.
type OpenAI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAI creates an adapter for the API at baseURL.
func NewOpenAI(baseURL, apiKey string) *OpenAI {
	// No overall client timeout: the response is a long-lived stream and
	// cancellation is governed by the request context.
	return &OpenAI{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Name implements Adapter.
func (a *OpenAI) Name() string { return "openai" }

// Mode implements Adapter.
func (a *OpenAI) Mode() ResponseMode { return ModeUpstreamStream }

// Send implements Adapter.
func (a *OpenAI) Send(ctx context.Context, model string, history models.ConversationHistory, userText string) (*Response, error) {
	msgs, err := outgoingMessages(history, userText)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model":    model,
		"messages": msgs,
		"stream":   true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Printf("openai: completion returned %s: %s", resp.Status, errText)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	return &Response{Mode: ModeUpstreamStream, Body: resp.Body}, nil
}

// ListModels implements Adapter.
func (a *OpenAI) ListModels(ctx context.Context) ([]models.LanguageModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		log.Printf("openai: model listing returned %s: %s", resp.Status, errText)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var envelope struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed model listing", ErrUpstream)
	}

	list := make([]models.LanguageModel, 0, len(envelope.Data))
	for _, m := range envelope.Data {
		list = append(list, models.LanguageModel{ID: m.ID, Name: m.ID})
	}
	return list, nil
}
