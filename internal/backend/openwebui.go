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

// OpenWebUI talks to an OpenAI-compatible gateway that answers chat
// completions with a single JSON body. This is the single-shot backend:
// incremental delivery is synthesized downstream by the relay.
type OpenWebUI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenWebUI creates an adapter for the gateway at baseURL.
func NewOpenWebUI(baseURL, apiKey string) *OpenWebUI {
	return &OpenWebUI{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Name implements Adapter.
func (a *OpenWebUI) Name() string { return "openwebui" }

// Mode implements Adapter.
func (a *OpenWebUI) Mode() ResponseMode { return ModeSingleShot }

// Send implements Adapter. The upstream is asked for a non-streaming
// completion and the assistant text is returned fully buffered.
func (a *OpenWebUI) Send(ctx context.Context, model string, history models.ConversationHistory, userText string) (*Response, error) {
	msgs, err := outgoingMessages(history, userText)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model":       model,
		"messages":    msgs,
		"stream":      false,
		"temperature": 0.7,
		"max_tokens":  2000,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		log.Printf("openwebui: completion returned %s: %s", resp.Status, errText)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("%w: malformed completion body", ErrUpstream)
	}

	text := "No response received"
	if len(completion.Choices) > 0 && completion.Choices[0].Message.Content != "" {
		text = completion.Choices[0].Message.Content
	}

	return &Response{Mode: ModeSingleShot, Text: text}, nil
}

// ListModels implements Adapter. The gateway endpoint has returned both a
// bare array and a {"data": [...]} envelope across versions; both are
// accepted.
func (a *OpenWebUI) ListModels(ctx context.Context) ([]models.LanguageModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v1/models/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		log.Printf("openwebui: model listing returned %s: %s", resp.Status, errText)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var list []models.LanguageModel
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Data []models.LanguageModel `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed model listing", ErrUpstream)
	}
	return envelope.Data, nil
}
