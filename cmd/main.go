// Chatbot relay server.
//
// The relay sits between an embeddable chat widget and a language-model
// backend. It gates inbound requests by page origin and optional signed
// credential, forwards the conversation to the configured backend, and
// streams the reply back to the widget as a canonical event stream
// regardless of how the backend delivers its response.
//
// Environment Variables:
//   - PORT: HTTP listen port (default 3000)
//   - BACKEND: one of "openwebui", "openai", "ollama" (default openwebui)
//   - BACKEND_BASE_URL: base URL of the backend API (required)
//   - BACKEND_API_KEY: bearer token for the backend, if it needs one
//   - DEFAULT_MODEL: model used when neither request nor credential names one
//   - ALLOWED_ORIGINS: comma-separated origin allow-list; empty allows all
//   - ALLOW_MISSING_ORIGIN: accept requests without Origin/Referer headers
//   - CREDENTIAL_SECRET: HMAC secret for widget credential verification
//   - REQUIRE_CREDENTIAL: reject requests without a credential
//   - CHUNK_DELAY_MS: pacing delay between synthetic chunks (default 50)
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chatbot-relay/internal/app"
	"chatbot-relay/internal/backend"
	"chatbot-relay/internal/config"
	"chatbot-relay/pkg/utils"
)

// loadEnvFile loads environment variables from a .env file if present.
// It attempts to load from the current directory and parent directories
// up to the root directory.
func loadEnvFile() {
	// Try current directory first
	err := godotenv.Load()
	if err == nil {
		log.Println("Loaded environment variables from .env file in current directory")
		return
	}

	workDir, err := os.Getwd()
	if err != nil {
		log.Printf("Warning: Could not determine current directory: %v", err)
		return
	}

	// Try parent directories recursively
	for dir := workDir; dir != "/"; dir = filepath.Dir(dir) {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			err = godotenv.Load(envPath)
			if err == nil {
				log.Printf("Loaded environment variables from %s", envPath)
				return
			}
		}
	}

	log.Println("No .env file found. Using existing environment variables.")
}

func newAdapter(cfg *config.Config) backend.Adapter {
	switch cfg.Backend {
	case config.BackendOpenAI:
		return backend.NewOpenAI(cfg.BackendBaseURL, cfg.BackendAPIKey)
	case config.BackendOllama:
		return backend.NewOllama(cfg.BackendBaseURL)
	default:
		return backend.NewOpenWebUI(cfg.BackendBaseURL, cfg.BackendAPIKey)
	}
}

func main() {
	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	adapter := newAdapter(cfg)
	log.Printf("Using %s backend at %s (mode: %s, api key: %s)",
		adapter.Name(), cfg.BackendBaseURL, adapter.Mode(), utils.MaskToken(cfg.BackendAPIKey))

	a := app.New(cfg, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Starting server on :%s...", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	} else {
		log.Println("Server gracefully stopped")
	}
}
