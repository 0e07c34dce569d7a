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

// Ollama talks to a local inference daemon whose chat endpoint streams
// structured increments natively, one JSON object per line. Each increment
// maps straight onto a relay chunk.
type Ollama struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllama creates an adapter for the daemon at baseURL.
func NewOllama(baseURL string) *Ollama {
	return &Ollama{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Name implements Adapter.
func (a *Ollama) Name() string { return "ollama" }

// Mode implements Adapter.
func (a *Ollama) Mode() ResponseMode { return ModeNativeStream }

// Send implements Adapter.
func (a *Ollama) Send(ctx context.Context, model string, history models.ConversationHistory, userText string) (*Response, error) {
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Printf("ollama: chat returned %s: %s", resp.Status, errText)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	return &Response{Mode: ModeNativeStream, Body: resp.Body}, nil
}

// ListModels implements Adapter, reading the daemon's local tag list.
func (a *Ollama) ListModels(ctx context.Context) ([]models.LanguageModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		log.Printf("ollama: tag listing returned %s: %s", resp.Status, errText)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var envelope struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed tag listing", ErrUpstream)
	}

	list := make([]models.LanguageModel, 0, len(envelope.Models))
	for _, m := range envelope.Models {
		id := m.Model
		if id == "" {
			id = m.Name
		}
		list = append(list, models.LanguageModel{ID: id, Name: m.Name})
	}
	return list, nil
}
