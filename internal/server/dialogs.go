package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/store"
)

func (s *Server) handleCreateDialog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		req.Title = "New dialog"
	}

	dialogID, err := s.store.CreateDialog(r.Context(), requestUserID(r), req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create dialog")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"dialog_id": dialogID})
}

func (s *Server) handleListDialogs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	query := r.URL.Query().Get("q")

	result, err := s.store.ListDialogs(r.Context(), requestUserID(r), page, query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dialogs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetDialog(w http.ResponseWriter, r *http.Request) {
	dialog, err := s.store.GetDialog(r.Context(), requestUserID(r), r.PathValue("dialog_id"))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "dialog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load dialog")
		return
	}
	writeJSON(w, http.StatusOK, dialog)
}

func (s *Server) handleDeleteDialog(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteDialog(r.Context(), requestUserID(r), r.PathValue("dialog_id"))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "dialog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete dialog")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	dialogID := r.PathValue("dialog_id")

	var req struct {
		incomingMessage
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" || req.Content == "" && len(req.Images) == 0 {
		writeError(w, http.StatusBadRequest, "role and content are required")
		return
	}
	if req.Model == "" {
		req.Model = s.cfg.Chat.DefaultModel
	}
	if len(req.Images) > 0 && !s.visionModel(req.Model) {
		writeError(w, http.StatusBadRequest, chat.ImageModalityErrorMessage)
		return
	}

	if _, err := s.store.GetDialog(r.Context(), userID, dialogID); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "dialog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load dialog")
		return
	}

	var images []string
	for _, img := range req.Images {
		if img.DataURL != "" {
			images = append(images, img.DataURL)
		}
	}

	messageID, err := s.store.CreateMessage(r.Context(), userID, dialogID, req.Role, req.Content, images)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create message")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"message_id": messageID})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	dialogID := r.PathValue("dialog_id")

	if _, err := s.store.GetDialog(r.Context(), userID, dialogID); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "dialog not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load dialog")
		return
	}

	includeTools := s.cfg.Chat.ShowToolCalls
	items, err := s.store.GetMessages(r.Context(), userID, dialogID, includeTools)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if items == nil {
		items = []store.ConversationItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items})
}

func (s *Server) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := strconv.ParseInt(r.PathValue("message_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	err = s.store.UpdateMessage(r.Context(), requestUserID(r), messageID, req.Content)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
