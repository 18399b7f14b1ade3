package stacks

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	db      DB
	catalog Catalog
	cache   *StackCache
	gen     *Generator
	drafts  DraftStore
	now     func() time.Time
}

func NewServer(db DB, rdb RedisClient) *Server {
	catalog := NewPostgresCatalog(db)
	return &Server{
		db:      db,
		catalog: catalog,
		cache:   NewStackCache(db, rdb),
		gen:     NewGenerator(catalog),
		drafts:  NewPostgresDraftStore(db),
		now:     time.Now,
	}
}

// SetCatalogTimeout bounds every single catalog read issued during stack
// generation or scoring.
func (s *Server) SetCatalogTimeout(d time.Duration) {
	s.gen.queryTimeout = d
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/stacks", func(r chi.Router) {
		r.Get("/daily", s.handleGetDailyStack)
		r.Post("/daily/refresh", s.handleRefreshDailyStack)
		r.Get("/weekly", s.handleGetWeeklyStacks)
		r.Post("/weekly/refresh", s.handleRefreshWeeklyStacks)
		r.Get("/styles", s.handleGetStyleStacks)

		r.Post("/mark-played", s.handleMarkPlayed)
		r.Post("/records/{recordId}/like", s.handleLikeRecord)

		r.Post("/custom", s.handleCreateDraft)
		r.Get("/custom/draft", s.handleResumeDraft)
		r.Get("/custom/{id}", s.handleGetDraft)
		r.Post("/custom/{id}/records", s.handleAddDraftRecord)
		r.Delete("/custom/{id}/records/{recordId}", s.handleRemoveDraftRecord)
		r.Post("/custom/{id}/save", s.handleSaveDraft)
		r.Get("/custom/{id}/suggestions", s.handleGetSuggestions)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "stacks-service",
	})
}
