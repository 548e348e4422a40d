package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brifyai/pautapro/internal/config"
	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for order conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		// The router registers its eviction hook, so it is built before the
		// janitor starts.
		handler := newRouter(a, cfg.Server)
		go a.sessions.Run(ctx, cfg.Session.SweepInterval())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(a *app, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{app: a, limits: newSessionLimiter(sc.RatePerSecond, sc.RateBurst)}
	a.sessions.OnEvict(h.limits.forget)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.withSession)
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.With(h.rateLimit).Post("/messages", h.postMessage)
			r.Delete("/pending", h.cancelPending)
		})
	})
	return r
}

type handlers struct {
	app    *app
	limits *sessionLimiter
}

type sessionKey struct{}

type sessionView struct {
	ID         string              `json:"id"`
	State      string              `json:"state"`
	HasPending bool                `json:"has_pending"`
	Pending    *model.PendingOrder `json:"pending,omitempty"`
	LastActive time.Time           `json:"last_active"`
}

func viewOf(s *session.Session) sessionView {
	v := sessionView{
		ID:         s.ID,
		State:      string(s.State()),
		LastActive: s.LastActive().UTC(),
	}
	if p := s.Pending(); p != nil {
		v.HasPending = true
		v.Pending = p
	}
	return v
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.app.sessions.Len(),
	})
}

func (h *handlers) createSession(w http.ResponseWriter, _ *http.Request) {
	s := h.app.sessions.Create()
	writeJSON(w, http.StatusCreated, viewOf(s))
}

func (h *handlers) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.app.sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return s
}

func (h *handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limits.allow(sessionFrom(r).ID) {
			writeError(w, http.StatusTooManyRequests, "too many messages, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(sessionFrom(r)))
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	h.app.sessions.Delete(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) postMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	// A client going away must not abort a commit half way; the session
	// timeouts still bound the turn.
	reply := h.app.orch.Handle(context.WithoutCancel(r.Context()), sessionFrom(r), req.Text)
	writeJSON(w, http.StatusOK, reply)
}

func (h *handlers) cancelPending(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	msg := h.app.orch.CancelPendingOrder(s)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": s.ID,
		"state":      string(s.State()),
		"message":    msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sessionLimiter keeps one token bucket per session. A non-positive rate
// disables limiting. Buckets are dropped when the session manager evicts
// the session.
type sessionLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newSessionLimiter(perSecond float64, burst int) *sessionLimiter {
	if burst < 1 {
		burst = 1
	}
	return &sessionLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *sessionLimiter) allow(id string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[id]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[id] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *sessionLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *sessionLimiter) forget(id string) {
	l.mu.Lock()
	delete(l.limiters, id)
	l.mu.Unlock()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
