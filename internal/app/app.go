// Package app wires the relay's HTTP surface: routing, gate middleware and
// the two public endpoints.
package app

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"chatbot-relay/internal/backend"
	"chatbot-relay/internal/config"
	"chatbot-relay/internal/gate"
	"chatbot-relay/internal/relay"
	"chatbot-relay/pkg/models"
	"chatbot-relay/pkg/sse"
)

// App owns the router and the configured backend adapter.
type App struct {
	Router  chi.Router
	cfg     *config.Config
	adapter backend.Adapter
}

// New builds the application around the given adapter.
func New(cfg *config.Config, adapter backend.Adapter) *App {
	a := &App{
		Router:  chi.NewRouter(),
		cfg:     cfg,
		adapter: adapter,
	}
	a.initializeRoutes()
	return a
}

func (a *App) initializeRoutes() {
	a.Router.Use(chimiddleware.RequestID)
	a.Router.Use(chimiddleware.RealIP)
	a.Router.Use(chimiddleware.Logger)
	a.Router.Use(chimiddleware.Recoverer)
	a.Router.Use(gate.CORS(a.cfg.AllowedOrigins))

	a.Router.Get("/health", a.handleHealth)

	origin := gate.NewOriginGate(a.cfg.AllowedOrigins, a.cfg.AllowMissingOrigin)
	credential := gate.NewCredentialGate(a.cfg.CredentialSecret, a.cfg.RequireCredential)

	a.Router.Group(func(r chi.Router) {
		r.Use(origin.Middleware)
		r.Use(credential.Middleware)
		r.Get("/models", a.handleModels)
		r.Post("/chat", a.handleChat)
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleModels lists the backend's models. Upstream failures come back as
// a generic message; the upstream's own error text is never forwarded.
func (a *App) handleModels(w http.ResponseWriter, r *http.Request) {
	list, err := a.adapter.ListModels(r.Context())
	if err != nil {
		log.Printf("models: listing failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "unable to retrieve the available models right now",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": list})
}

// handleChat validates the request, then hands it to a fresh relay
// instance that streams canonical events back over a persistent response.
func (a *App) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message cannot be empty"})
		return
	}

	model := req.Model
	if model == "" {
		if claim := gate.ClaimFrom(r.Context()); claim != nil && claim.Model != "" {
			model = claim.Model
		} else {
			model = a.cfg.DefaultModel
		}
	}

	streamID := uuid.NewString()
	log.Printf("chat: stream %s started model=%s mode=%s turns=%d",
		streamID, model, a.adapter.Mode(), len(req.Conversation))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rel := relay.New(a.adapter, a.cfg.ChunkDelay)
	rel.Run(r.Context(), sse.NewWriter(w), model, req.Conversation, req.Message)

	log.Printf("chat: stream %s closed", streamID)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
