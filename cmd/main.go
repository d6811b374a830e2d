package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fallsense/internal/adapters/http/api"
	app "github.com/okian/fallsense/internal/app"
	"github.com/okian/fallsense/internal/config"
	"github.com/okian/fallsense/pkg/logger"
	"github.com/okian/fallsense/pkg/metrics"
)

const (
	shutdownTimeout           = 15 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	if cfg.LogFormat != "text" {
		if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
			_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
			return 1
		}
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metricsOpts, err := metricsOptions(cfg)
	if err != nil {
		log.Error(ctx, "invalid metrics settings", logger.Error(err))
		return 1
	}
	metrics.Init(metricsOpts...)

	svc := app.New(cfg, app.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return 1
	}

	go startSystemMetricsUpdater(ctx)

	if cfg.OpsAddr != "" {
		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		go func() {
			if err := api.ListenAndServe(ctx, cfg.OpsAddr, mux); err != nil {
				log.Error(ctx, "ops server failed", logger.Error(err))
			}
		}()
	}

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
		return 1
	}

	log.Info(shutdownCtx, "server stopped")
	return 0
}

// metricsOptions maps the metrics settings onto manager options.
func metricsOptions(cfg *config.Config) ([]metrics.Option, error) {
	var opts []metrics.Option
	buckets, err := cfg.LatencyBuckets()
	if err != nil {
		return nil, err
	}
	if len(buckets) > 0 {
		opts = append(opts, metrics.WithLatencyBuckets(buckets))
	}
	if cfg.MetricsSite != "" {
		opts = append(opts, metrics.WithConstLabels(map[string]string{"site": cfg.MetricsSite}))
	}
	return opts, nil
}

// startSystemMetricsUpdater periodically records runtime metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
