// Package server exposes the chat HTTP API: SSE streaming turns,
// dialog and message CRUD, prompt storage, and model listing.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/store"
)

type Server struct {
	cfg   *config.Config
	store *store.Store
	orch  *chat.Orchestrator

	httpServer *http.Server
}

func New(cfg *config.Config, st *store.Store, orch *chat.Orchestrator) *Server {
	s := &Server{cfg: cfg, store: st, orch: orch}

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.auth(h))
	}

	handle("POST /chat", s.handleChat)
	handle("POST /chat/dialogs", s.handleCreateDialog)
	handle("GET /chat/dialogs", s.handleListDialogs)
	handle("GET /chat/dialogs/{dialog_id}", s.handleGetDialog)
	handle("DELETE /chat/dialogs/{dialog_id}", s.handleDeleteDialog)
	handle("POST /chat/dialogs/{dialog_id}/messages", s.handleCreateMessage)
	handle("GET /chat/dialogs/{dialog_id}/messages", s.handleGetMessages)
	handle("PATCH /chat/messages/{message_id}", s.handleUpdateMessage)
	handle("POST /prompts", s.handleCreatePrompt)
	handle("GET /prompts", s.handleListPrompts)
	handle("GET /prompts/{prompt_id}", s.handleGetPrompt)
	handle("PATCH /prompts/{prompt_id}", s.handleUpdatePrompt)
	handle("DELETE /prompts/{prompt_id}", s.handleDeletePrompt)
	handle("GET /models", s.handleModels)
	handle("GET /config", s.handleFrontendConfig)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// cors wraps the whole mux so preflights are answered before
	// method-specific route matching can reject them.
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.logged(s.cors(mux.ServeHTTP)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full middleware and route chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	log.Info().Str("listen", s.cfg.Server.Listen).Msg("starting chat server")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
