// Package config provides relay configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend kinds selectable through the BACKEND variable. The choice is
// fixed for the process lifetime.
const (
	BackendOpenWebUI = "openwebui"
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
)

// Config holds all relay configuration.
type Config struct {
	Port string

	Backend        string
	BackendBaseURL string
	BackendAPIKey  string
	DefaultModel   string

	// AllowedOrigins gates inbound requests and drives the CORS surface.
	// Empty leaves the origin gate open.
	AllowedOrigins []string
	// AllowMissingOrigin selects permissive mode for requests carrying
	// neither Origin nor Referer.
	AllowMissingOrigin bool

	// CredentialSecret verifies widget bearer tokens. RequireCredential
	// makes the token mandatory; otherwise it is verified only when sent.
	CredentialSecret  string
	RequireCredential bool

	// ChunkDelay paces synthetic chunks in single-shot mode.
	ChunkDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		Backend:            getEnv("BACKEND", BackendOpenWebUI),
		BackendBaseURL:     getEnv("BACKEND_BASE_URL", ""),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		DefaultModel:       getEnv("DEFAULT_MODEL", "llama3.2:3b"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "")),
		AllowMissingOrigin: getEnvBool("ALLOW_MISSING_ORIGIN", false),
		CredentialSecret:   getEnv("CREDENTIAL_SECRET", ""),
		RequireCredential:  getEnvBool("REQUIRE_CREDENTIAL", false),
		ChunkDelay:         time.Duration(getEnvInt("CHUNK_DELAY_MS", 50)) * time.Millisecond,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenWebUI, BackendOpenAI, BackendOllama:
	default:
		return fmt.Errorf("BACKEND must be one of %s, %s, %s", BackendOpenWebUI, BackendOpenAI, BackendOllama)
	}
	if c.BackendBaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL cannot be empty")
	}
	if c.RequireCredential && c.CredentialSecret == "" {
		return fmt.Errorf("REQUIRE_CREDENTIAL is set but CREDENTIAL_SECRET is empty")
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("CHUNK_DELAY_MS must be >= 0")
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
