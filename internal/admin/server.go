// Package admin serves manual ingestion triggers, health and metrics.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catalog_ingest/internal/domain"
)

const apiKeyHeader = "X-API-Key"

type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

type IndexResetter interface {
	ResetIndex(ctx context.Context, handle string) error
}

type Config struct {
	Addr       string
	APIKey     string
	RunTimeout time.Duration
}

type Server struct {
	channels   Runner
	categories Runner
	sources    IndexResetter
	apiKey     string
	runTimeout time.Duration
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg Config, channels, categories Runner, sources IndexResetter, logger *slog.Logger) *Server {
	s := &Server{
		channels:   channels,
		categories: categories,
		sources:    sources,
		apiKey:     cfg.APIKey,
		runTimeout: cfg.RunTimeout,
		logger:     logger.With("component", "admin"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Get("/channels/fetch/trigger", s.trigger(s.channels, "Channel videos fetched and stored successfully."))
		r.Get("/videos/fetch/trigger", s.trigger(s.categories, "Videos fetched and stored successfully."))
		r.Post("/channels/{handle}/reindex", s.reindex)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown admin server: %w", err)
	}
	return nil
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) trigger(runner Runner, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A dropped client must not abort a run halfway.
		ctx := context.WithoutCancel(r.Context())
		if s.runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
			defer cancel()
		}

		stats, err := runner.Run(ctx)
		if err != nil {
			s.logger.Error("manual run failed", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Ingestion failed"})
			return
		}

		msg := message
		switch stats.Status {
		case domain.RunSkippedInProgress:
			msg = "Ingestion already in progress."
		case domain.RunSkippedQuota:
			msg = "Daily quota nearly exhausted, ingestion skipped."
		}

		s.logger.Info("manual run finished",
			"path", r.URL.Path,
			"status", stats.Status,
			"created", stats.Created,
			"updated", stats.Updated,
			"failed", stats.Failed,
		)

		// Counts stay in the logs and metrics; callers only get the outcome.
		writeJSON(w, http.StatusOK, triggerResponse{
			Message: msg,
			Status:  string(stats.Status),
		})
	}
}

type triggerResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (s *Server) reindex(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	err := s.sources.ResetIndex(r.Context(), handle)
	switch {
	case errors.Is(err, domain.ErrSourceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Unknown channel"})
		return
	case err != nil:
		s.logger.Error("reset index failed", "handle", handle, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Reset failed"})
		return
	}

	s.logger.Info("source index reset", "handle", handle)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Channel will be fully re-indexed on the next run."})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
