// Package server exposes mounted widgets over HTTP so a host can exchange
// envelopes with them by polling.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"payment-widget/internal/store"
	"payment-widget/internal/widget"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// DefaultSessionTTL is how long a session may sit without requests before it
// is cancelled and discarded.
const DefaultSessionTTL = 30 * time.Minute

// Server routes HTTP requests to mounted widgets.
type Server struct {
	store  store.Repository
	cfg    widget.Config
	logger *zap.Logger
	router *chi.Mux
	newID  func() string
	now    func() time.Time
	ttl    time.Duration
}

// New creates a server whose widgets are configured with cfg.
func New(repo store.Repository, cfg widget.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  repo,
		cfg:    cfg,
		logger: logger,
		router: chi.NewRouter(),
		newID:  uuid.NewString,
		now:    time.Now,
		ttl:    DefaultSessionTTL,
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.requestLog)

	s.router.Get("/healthz", s.Health)
	s.router.Get("/widget", s.Mount)
	s.router.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/{id}/messages", s.PostMessage)
		r.Post("/{id}/actions", s.PostAction)
		r.Get("/{id}/state", s.GetState)
		r.Get("/{id}/outbox", s.DrainOutbox)
	})
	return s
}

// ServeHTTP implements http.Handler so the server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetSessionTTL overrides DefaultSessionTTL. Zero disables expiry.
func (s *Server) SetSessionTTL(d time.Duration) {
	s.ttl = d
}

// Sweep cancels and discards sessions idle for longer than the session TTL,
// returning how many were removed.
func (s *Server) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	entries, err := s.store.List()
	if err != nil {
		s.logger.Error("listing sessions for expiry", zap.Error(err))
		return 0
	}
	now := s.now()
	removed := 0
	for _, e := range entries {
		if now.Sub(e.LastSeen()) < s.ttl {
			continue
		}
		if err := e.Widget.Cancel(); err != nil {
			s.logger.Debug("cancelling idle session", zap.String("session", e.ID), zap.Error(err))
		}
		if err := s.store.Delete(e.ID); err != nil {
			s.logger.Error("discarding idle session", zap.String("session", e.ID), zap.Error(err))
			continue
		}
		s.logger.Info("session expired", zap.String("session", e.ID))
		removed++
	}
	return removed
}

func (s *Server) sweepLoop(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Idle sessions are expired while it runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.ttl > 0 {
		sweepCtx, stop := context.WithCancel(ctx)
		defer stop()
		go s.sweepLoop(sweepCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
