package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aldr4GO/celebtwin/internal/metrics"
)

// RouterConfig holds the cross-cutting HTTP settings.
type RouterConfig struct {
	APIKeys        []string
	AllowedOrigins []string
}

// NewRouter mounts the server's handlers behind the standard middleware stack.
func NewRouter(s *Server, cfg RouterConfig, l *zap.Logger) http.Handler {
	if l == nil {
		l = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(jsonRecoverer(l))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEvent(l))
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.Post("/search", s.Search)
	r.Post("/compare", s.Compare)
	// Paths served by the bundled web UI.
	r.Post("/api/search", s.Search)
	r.Post("/api/compare", s.Compare)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}
