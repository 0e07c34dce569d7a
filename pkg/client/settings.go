package client

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"chatbot-relay/pkg/models"
)

// Settings controls the widget's appearance and behavior.
type Settings struct {
	HeaderColor     string   `json:"headerColor"`
	BotBubbleColor  string   `json:"botBubbleColor"`
	UserBubbleColor string   `json:"userBubbleColor"`
	ChatPosition    string   `json:"chatPosition"`
	Model           string   `json:"model"`
	AllowedDomains  []string `json:"allowedDomains"`
}

// DefaultSettings are the built-in fallbacks, lowest in precedence.
func DefaultSettings() Settings {
	return Settings{
		HeaderColor:     "#005bbb",
		BotBubbleColor:  "#eee",
		UserBubbleColor: "#007bff",
		ChatPosition:    "right",
	}
}

// ResolveSettings merges the four configuration sources field by field in
// precedence order: credential claim > locally persisted choice >
// page-embedded attributes > built-in defaults. Any source may be nil.
func ResolveSettings(claim *models.AccessClaim, stored, embedded *Settings) Settings {
	resolved := DefaultSettings()

	apply := func(s *Settings) {
		if s == nil {
			return
		}
		if s.HeaderColor != "" {
			resolved.HeaderColor = s.HeaderColor
		}
		if s.BotBubbleColor != "" {
			resolved.BotBubbleColor = s.BotBubbleColor
		}
		if s.UserBubbleColor != "" {
			resolved.UserBubbleColor = s.UserBubbleColor
		}
		if s.ChatPosition != "" {
			resolved.ChatPosition = s.ChatPosition
		}
		if s.Model != "" {
			resolved.Model = s.Model
		}
		if len(s.AllowedDomains) > 0 {
			resolved.AllowedDomains = s.AllowedDomains
		}
	}

	apply(embedded)
	apply(stored)
	if claim != nil {
		apply(&Settings{
			HeaderColor:     claim.HeaderColor,
			BotBubbleColor:  claim.BotBubbleColor,
			UserBubbleColor: claim.UserBubbleColor,
			ChatPosition:    claim.ChatPosition,
			Model:           claim.Model,
			AllowedDomains:  claim.AllowedDomains,
		})
	}
	return resolved
}

// AllowsHost reports whether the widget may start on the given page host.
// An empty domain list allows everything.
func (s Settings) AllowsHost(host string) bool {
	if len(s.AllowedDomains) == 0 {
		return true
	}
	for _, d := range s.AllowedDomains {
		if d == host {
			return true
		}
	}
	return false
}

// ParseEmbedAttributes reads the script-include contract: a host page
// declares the widget with an element carrying an optional token plus
// direct data-* styling overrides. Returns the raw token (empty when
// absent) and the attribute-sourced settings.
func ParseEmbedAttributes(attrs map[string]string) (string, *Settings) {
	s := &Settings{
		HeaderColor:     attrs["data-header-color"],
		BotBubbleColor:  attrs["data-bot-bubble-color"],
		UserBubbleColor: attrs["data-user-bubble-color"],
		ChatPosition:    attrs["data-chat-position"],
		Model:           attrs["data-model"],
	}
	return attrs["token"], s
}

// DecodeClaim extracts the payload of a bearer credential without
// verifying its signature. The consumer only uses the claim for styling
// and model selection; enforcement happens at the relay.
func DecodeClaim(token string) (*models.AccessClaim, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("token must have three segments")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.New("token payload is not valid base64url")
	}

	var claim models.AccessClaim
	if err := json.Unmarshal(payload, &claim); err != nil {
		return nil, errors.New("token payload is not valid JSON")
	}
	return &claim, nil
}
