// Package http - служебный HTTP-сервер mflix: liveness, readiness и метрики.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/mflix-service/internal/http/middleware"
	"github.com/pribylovaa/mflix-service/internal/pkg/log"
)

// Pinger - то, что умеет проверить доступность БД (storage.Storage подходит).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options - параметры сборки ops-роутера.
type Options struct {
	Logger *slog.Logger
	// Gatherer - источник метрик для /metrics; nil - prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// HealthTimeout - дедлайн ping в /healthz; 0 - 2s.
	HealthTimeout time.Duration
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(db Pinger, opts Options) http.Handler {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}

	r := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	r.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
	)

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz", healthz(db, opts.HealthTimeout))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	return r
}

// healthz отвечает 200, если БД отвечает на ping, иначе 503.
func healthz(db Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "http/healthz"

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Op(r.Context(), op).Warn("storage ping failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
