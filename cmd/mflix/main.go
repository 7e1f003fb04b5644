package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pribylovaa/mflix-service/internal/cache"
	"github.com/pribylovaa/mflix-service/internal/config"
	mflixhttp "github.com/pribylovaa/mflix-service/internal/http"
	"github.com/pribylovaa/mflix-service/internal/metrics"
	"github.com/pribylovaa/mflix-service/internal/service"
	mfmongo "github.com/pribylovaa/mflix-service/internal/storage/mongo"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting mflix", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	dbCtx, dbCancel := context.WithTimeout(rootCtx, cfg.DB.ConnectTimeout)
	store, err := mfmongo.New(dbCtx, cfg)
	dbCancel()
	if err != nil {
		log.Error("mongo_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("mongo_connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := service.New(store, *cfg)
	svc.SetMetrics(metrics.New(reg))

	var sessions cache.SessionCache
	if cfg.Cache.Enabled() {
		cacheCtx, cacheCancel := context.WithTimeout(rootCtx, 5*time.Second)
		sessions, err = cache.NewRedisCache(cacheCtx, cfg.Cache.RedisURL, cfg.Cache.Prefix)
		cacheCancel()
		if err != nil {
			// Кэш необязателен: работаем напрямую с БД.
			log.Warn("redis_unavailable", slog.String("err", err.Error()))
		} else {
			svc.SetSessionCache(sessions)
			log.Info("redis_connected")
		}
	}
	log.Info("service_initialized")

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: mflixhttp.NewRouter(store, mflixhttp.Options{
			Logger:   log,
			Gatherer: reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
	}

	if sessions != nil {
		_ = sessions.Close()
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Warn("mongo_close_failed", slog.String("err", err.Error()))
	}

	log.Info("service_stopped")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
