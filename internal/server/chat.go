package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/llm"
	"github.com/parleychat/parley/internal/store"
)

type incomingImage struct {
	DataURL string `json:"data_url"`
}

type incomingMessage struct {
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Images  []incomingImage `json:"images,omitempty"`
}

type chatTurnRequest struct {
	Model    string            `json:"model"`
	Messages []incomingMessage `json:"messages"`
	DialogID string            `json:"dialog_id,omitempty"`
}

func (m incomingMessage) toLLM() llm.ChatMessage {
	msg := llm.ChatMessage{Role: llm.Role(m.Role), Content: m.Content}
	for _, img := range m.Images {
		if img.DataURL != "" {
			msg.Images = append(msg.Images, img.DataURL)
		}
	}
	return msg
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)

	var req chatTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		req.Model = s.cfg.Chat.DefaultModel
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	if req.DialogID != "" {
		if _, err := s.store.GetDialog(r.Context(), userID, req.DialogID); err != nil {
			if err == store.ErrNotFound {
				writeError(w, http.StatusNotFound, "dialog not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load dialog")
			return
		}
	}

	messages := make([]llm.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, m.toLLM())
	}
	if !s.visionModel(req.Model) {
		messages = chat.StripImages(messages)
	}
	if s.systemMessageModel(req.Model) && s.cfg.Chat.SystemMessage != "" {
		messages = chat.InjectSystemMessage(messages, s.cfg.Chat.SystemMessage)
	}

	ctx := r.Context()
	stream := s.orch.Stream(ctx, chat.TurnRequest{
		UserID:   userID,
		DialogID: req.DialogID,
		Model:    req.Model,
		Messages: messages,
		Disconnected: func() bool {
			return ctx.Err() != nil
		},
	})
	defer stream.Close()

	setSSEHeaders(w)
	flusher, _ := w.(http.Flusher)

	for {
		frame, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("chat stream ended")
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) visionModel(model string) bool {
	for _, m := range s.cfg.Chat.VisionModels {
		if m == model {
			return true
		}
	}
	return false
}

func (s *Server) systemMessageModel(model string) bool {
	for _, m := range s.cfg.Chat.SystemMessageModels {
		if m == model {
			return true
		}
	}
	return false
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.cfg.ModelNames()})
}

func (s *Server) handleFrontendConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default_model":         s.cfg.Chat.DefaultModel,
		"models":                s.cfg.ModelNames(),
		"vision_models":         s.cfg.Chat.VisionModels,
		"tool_models":           s.cfg.Chat.ToolModels,
		"system_message_models": s.cfg.Chat.SystemMessageModels,
		"show_tool_calls":       s.cfg.Chat.ShowToolCalls,
	})
}
