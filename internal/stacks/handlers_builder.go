package stacks

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	draft, err := s.drafts.Create(ctx, userID)
	if err != nil {
		log.Printf("stacks-service: create draft: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"stack":       draft,
		"suggestions": []ScoredRecord{},
	})
}

func (s *Server) handleResumeDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	draft, err := s.drafts.Resume(ctx, userID)
	if err != nil {
		writeStackError(w, err)
		return
	}

	suggestions, err := s.suggestionsFor(r, userID, draft)
	if err != nil {
		log.Printf("stacks-service: resume draft suggestions: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stack":       draft,
		"suggestions": suggestions,
	})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	draft, err := s.drafts.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		writeStackError(w, err)
		return
	}

	suggestions, err := s.suggestionsFor(r, userID, draft)
	if err != nil {
		log.Printf("stacks-service: get draft suggestions: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stack":       draft,
		"suggestions": suggestions,
	})
}

func (s *Server) handleAddDraftRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		RecordID string `json:"recordId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RecordID == "" {
		writeError(w, http.StatusBadRequest, "missing recordId")
		return
	}

	draft, err := s.drafts.AddRecord(ctx, userID, chi.URLParam(r, "id"), body.RecordID)
	if err != nil {
		writeStackError(w, err)
		return
	}

	suggestions, err := s.suggestionsFor(r, userID, draft)
	if err != nil {
		log.Printf("stacks-service: add record suggestions: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stack":       draft,
		"suggestions": suggestions,
	})
}

func (s *Server) handleRemoveDraftRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	draft, err := s.drafts.RemoveRecord(ctx, userID, chi.URLParam(r, "id"), chi.URLParam(r, "recordId"))
	if err != nil {
		writeStackError(w, err)
		return
	}

	suggestions, err := s.suggestionsFor(r, userID, draft)
	if err != nil {
		log.Printf("stacks-service: remove record suggestions: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stack":       draft,
		"suggestions": suggestions,
	})
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	draft, err := s.drafts.Save(ctx, userID, chi.URLParam(r, "id"), body.Name)
	if err != nil {
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stack": draft})
}

func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	draft, err := s.drafts.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeStackError(w, err)
		return
	}

	suggestions, err := s.suggestionsFor(r, userID, draft)
	if err != nil {
		log.Printf("stacks-service: suggestions: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// suggestionsFor re-scores the catalog against the draft's current records.
// A full or saved draft has no open slots, so it gets no suggestions.
func (s *Server) suggestionsFor(r *http.Request, userID string, draft *Draft) ([]ScoredRecord, error) {
	if draft.Saved() || draft.Full() || len(draft.Records) == 0 {
		return []ScoredRecord{}, nil
	}
	return s.gen.SuggestionsFor(r.Context(), userID, draft.Records, defaultSuggestionLimit)
}
