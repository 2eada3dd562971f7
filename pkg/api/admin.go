package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ssargent/usersvc/pkg/store"
)

const adminShutdownTimeout = 5 * time.Second

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminStore is what the admin surface reads from the store.
type AdminStore interface {
	Pinger
	Stats(ctx context.Context) (*store.Stats, error)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AdminConfig configures the admin HTTP surface.
type AdminConfig struct {
	AllowedOrigins []string
}

// NewAdminRouter serves /metrics from gatherer, and /health and /stats from
// st.
func NewAdminRouter(st AdminStore, gatherer prometheus.Gatherer, metrics *Metrics, config AdminConfig, logger zerolog.Logger) http.Handler {
	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			metrics.RecordHealthCheck(false)
			logger.Warn().Err(err).Msg("health check failed")
			sendJSON(w, HealthResponse{Status: "unhealthy", Error: err.Error()}, http.StatusServiceUnavailable)
			return
		}
		metrics.RecordHealthCheck(true)
		sendJSON(w, HealthResponse{Status: "healthy"}, http.StatusOK)
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.Stats(r.Context())
		if err != nil {
			logger.Warn().Err(err).Msg("stats failed")
			sendJSON(w, HealthResponse{Status: "unhealthy", Error: err.Error()}, http.StatusServiceUnavailable)
			return
		}
		sendJSON(w, stats, http.StatusOK)
	})

	return r
}

// ServeAdmin serves handler on addr until ctx is done.
func ServeAdmin(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("admin listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "admin server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "admin shutdown failed")
	}
	return nil
}
