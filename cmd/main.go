package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"github.com/ekurt/bottlederby/internal/adapters/http/api"
	"github.com/ekurt/bottlederby/internal/adapters/http/site"
	"github.com/ekurt/bottlederby/internal/adapters/http/swagger"
	"github.com/ekurt/bottlederby/internal/adapters/repository"
	app "github.com/ekurt/bottlederby/internal/app"
	"github.com/ekurt/bottlederby/internal/config"
	"github.com/ekurt/bottlederby/pkg/logger"
	"github.com/ekurt/bottlederby/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
	mongoConnectTimeout   = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics;
	// system metrics are collected by the updater below.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build score store", logger.Error(err))
		return
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithQueueSize(cfg.IngestQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithCacheTTL(cfg.StatsCacheTTL),
		app.WithLiveSendBuffer(cfg.LiveSendBuffer),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// API docs under /api-docs plus the raw spec.
	swagger.Register(ctx, mux)

	// Business API routes with the service dependency, including /live.
	apiServer := api.NewServer(svc, svc, svc.Hub())
	apiServer.Register(ctx, mux)

	// Landing site at /.
	site.Register(ctx, mux)

	// The dashboard and any external frontend are browser clients.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           corsHandler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildStore selects the score store backend from configuration.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
		defer cancel()
		st, err := repository.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "using mongo score store", logger.String("database", cfg.MongoDatabase))
		return st, nil
	default:
		log.Info(ctx, "using in-memory score store")
		return repository.NewMemoryStore(), nil
	}
}

// startSystemMetricsUpdater refreshes process-level metrics periodically.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
