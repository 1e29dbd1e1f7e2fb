package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger checks that a backing store is reachable. pgxpool.Pool and
// go-redis both expose a compatible Ping through small adapters in app.
type Pinger interface {
	Ping(ctx context.Context) error
}

type OpsServer struct {
	logger   *zap.Logger
	router   chi.Router
	postgres Pinger
	redis    Pinger
}

func NewOpsServer(logger *zap.Logger, postgres, redis Pinger) *OpsServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &OpsServer{
		logger:   logger,
		postgres: postgres,
		redis:    redis,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))
	r.Get("/healthz", s.health)
	r.Get("/readyz", s.ready)
	s.router = r

	return s
}

func (s *OpsServer) Handler() http.Handler { return s.router }

func (s *OpsServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *OpsServer) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	checks["postgres"] = s.check(ctx, s.postgres)
	checks["redis"] = s.check(ctx, s.redis)
	for _, status := range checks {
		if status != "ok" {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		s.logger.Warn("readiness check failed",
			zap.String("postgres", checks["postgres"]),
			zap.String("redis", checks["redis"]),
		)
	}

	writeJSON(w, status, map[string]any{"ok": healthy, "checks": checks})
}

func (s *OpsServer) check(ctx context.Context, pinger Pinger) string {
	if pinger == nil {
		return "not configured"
	}
	if err := pinger.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
