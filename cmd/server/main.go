package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cdlconv/internal/api"
	"cdlconv/internal/config"
	"cdlconv/internal/convert"
	"cdlconv/internal/history"
	"cdlconv/internal/middleware"
	"cdlconv/internal/service"
	"cdlconv/internal/sqlast"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	dialect, err := sqlast.ParseDialect(cfg.DefaultDialect)
	if err != nil {
		return err
	}

	catalog := convert.Catalog{Name: cfg.Catalog}
	if cfg.CatalogMapPath != "" {
		lookup, err := convert.LoadCatalogLookup(cfg.CatalogMapPath)
		if err != nil {
			return err
		}
		catalog = convert.Catalog{Lookup: lookup}
	}

	// Conversion history is optional; the service runs without it.
	var store *history.Store
	var recorder service.HistoryRecorder
	if cfg.HistoryEnabled {
		store, err = history.Open(cfg.HistoryDBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = store
		logger.Info("conversion history enabled", "path", cfg.HistoryDBPath)
	}

	svc, err := service.NewConvertService(service.ConvertServiceDeps{
		Source:         &service.MappingFile{Path: cfg.MappingPath},
		Catalog:        catalog,
		DefaultDialect: dialect,
		History:        recorder,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if cfg.MappingReloadCron != "" {
		sched, err := service.NewMappingScheduler(cfg.MappingReloadCron, svc, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		logger.Info("mapping reload scheduled", "cron", cfg.MappingReloadCron)
	}

	handler := api.NewHandler(svc, store, logger)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", handler.Healthz)
	r.Route("/v1", func(r chi.Router) {
		handler.Routes(r)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
