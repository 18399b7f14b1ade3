package stacks

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetDailyStack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	periodKey := ScopeDaily.periodKey(s.now())

	stacks, ok, err := s.cache.Get(ctx, ScopeDaily, userID, periodKey)
	if err != nil {
		log.Printf("stacks-service: daily cache get: %v", err)
		writeStackError(w, err)
		return
	}

	var stack Stack
	if ok && len(stacks) > 0 {
		stack = stacks[0]
	} else {
		stack, err = s.gen.DailyStack(ctx, userID)
		if err != nil {
			log.Printf("stacks-service: daily generate: %v", err)
			writeStackError(w, err)
			return
		}
		if err := s.cache.Put(ctx, ScopeDaily, userID, periodKey, []Stack{stack}); err != nil {
			log.Printf("stacks-service: daily cache put: %v", err)
			writeStackError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stack": stack,
		"date":  periodKey,
	})
}

// handleRefreshDailyStack regenerates today's stack, bypassing the cache, and
// overwrites both tiers. Two concurrent refreshes race benignly: the last
// cache write wins.
func (s *Server) handleRefreshDailyStack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	periodKey := ScopeDaily.periodKey(s.now())

	stack, err := s.gen.DailyStack(ctx, userID)
	if err != nil {
		log.Printf("stacks-service: daily refresh generate: %v", err)
		writeStackError(w, err)
		return
	}

	if err := s.cache.Invalidate(ctx, ScopeDaily, userID, periodKey); err != nil {
		log.Printf("stacks-service: daily refresh invalidate: %v", err)
		writeStackError(w, err)
		return
	}
	if err := s.cache.Put(ctx, ScopeDaily, userID, periodKey, []Stack{stack}); err != nil {
		log.Printf("stacks-service: daily refresh put: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stack": stack,
		"date":  periodKey,
	})
}

func (s *Server) handleGetWeeklyStacks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	periodKey := ScopeWeekly.periodKey(s.now())

	stacks, ok, err := s.cache.Get(ctx, ScopeWeekly, userID, periodKey)
	if err != nil {
		log.Printf("stacks-service: weekly cache get: %v", err)
		writeStackError(w, err)
		return
	}

	if !ok || len(stacks) == 0 {
		stacks, err = s.gen.WeeklyStacks(ctx, userID)
		if err != nil {
			log.Printf("stacks-service: weekly generate: %v", err)
			writeStackError(w, err)
			return
		}
		if err := s.cache.Put(ctx, ScopeWeekly, userID, periodKey, stacks); err != nil {
			log.Printf("stacks-service: weekly cache put: %v", err)
			writeStackError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stacks":        stacks,
		"weekStartDate": periodKey,
	})
}

func (s *Server) handleRefreshWeeklyStacks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	periodKey := ScopeWeekly.periodKey(s.now())

	stacks, err := s.gen.WeeklyStacks(ctx, userID)
	if err != nil {
		log.Printf("stacks-service: weekly refresh generate: %v", err)
		writeStackError(w, err)
		return
	}

	if err := s.cache.Invalidate(ctx, ScopeWeekly, userID, periodKey); err != nil {
		log.Printf("stacks-service: weekly refresh invalidate: %v", err)
		writeStackError(w, err)
		return
	}
	if err := s.cache.Put(ctx, ScopeWeekly, userID, periodKey, stacks); err != nil {
		log.Printf("stacks-service: weekly refresh put: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stacks":        stacks,
		"weekStartDate": periodKey,
	})
}

// handleGetStyleStacks computes mood clusters fresh on every call; style
// stacks are not period-cached.
func (s *Server) handleGetStyleStacks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	stacks, err := s.gen.StyleStacks(ctx, userID)
	if err != nil {
		log.Printf("stacks-service: style generate: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stacks":   stacks,
		"clusters": s.gen.clusters,
	})
}

func (s *Server) handleMarkPlayed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		RecordID string `json:"recordId"`
		Played   bool   `json:"played"`
		Skipped  bool   `json:"skipped"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RecordID == "" {
		writeError(w, http.StatusBadRequest, "missing recordId")
		return
	}

	kind := EngagementPlayed
	if body.Skipped {
		kind = EngagementSkipped
	} else if !body.Played {
		writeError(w, http.StatusBadRequest, "played or skipped is required")
		return
	}

	if err := s.catalog.RecordEngagement(ctx, userID, body.RecordID, kind); err != nil {
		log.Printf("stacks-service: mark played: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLikeRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	recordID := chi.URLParam(r, "recordId")
	if recordID == "" {
		writeError(w, http.StatusBadRequest, "missing record id")
		return
	}

	if err := s.catalog.RecordEngagement(ctx, userID, recordID, EngagementLiked); err != nil {
		log.Printf("stacks-service: like record: %v", err)
		writeStackError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
