package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// DefaultMaxBodyBytes is the default maximum request body size (1MB).
	// Prevents clients from accidentally or maliciously sending large requests.
	DefaultMaxBodyBytes = 1 << 20 // 1MB
)

// Config holds configuration for the HTTP router.
type Config struct {
	MaxBodyBytes int64
}

// NewRouter creates and configures the Chi router with all middleware and
// the job submission/status/admin routes described in the external
// interface contract. Applies defaults for zero or invalid config values.
func NewRouter(h *Handler, config Config) *chi.Mux {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(maxBodyBytes(config.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs/{jobId}", h.GetJob)
	r.Post("/jobs/{jobId}/cancel", h.CancelJob)
	r.Get("/dead-letter", h.ListDeadLetter)
	r.Post("/dead-letter/{inputId}/redrive", h.RedriveDeadLetter)
	r.Post("/dead-letter/{inputId}/discard", h.DiscardDeadLetter)

	return r
}
