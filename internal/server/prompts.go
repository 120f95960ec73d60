package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/parleychat/parley/internal/store"
)

type promptRequest struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "title and prompt are required")
		return
	}

	promptID, err := s.store.CreatePrompt(r.Context(), requestUserID(r), req.Title, req.Prompt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create prompt")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"prompt_id": promptID})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.ListPrompts(r.Context(), requestUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list prompts")
		return
	}
	if prompts == nil {
		prompts = []store.Prompt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func parsePromptID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("prompt_id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	promptID, ok := parsePromptID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	prompt, err := s.store.GetPrompt(r.Context(), requestUserID(r), promptID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "prompt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load prompt")
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	promptID, ok := parsePromptID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "title and prompt are required")
		return
	}

	err := s.store.UpdatePrompt(r.Context(), requestUserID(r), promptID, req.Title, req.Prompt)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "prompt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update prompt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	promptID, ok := parsePromptID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	err := s.store.DeletePrompt(r.Context(), requestUserID(r), promptID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "prompt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete prompt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
