package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/ispu-monitor-service/internal/adapter/http"
	"github.com/couchcryptid/ispu-monitor-service/internal/adapter/ispuapi"
	kafkaadapter "github.com/couchcryptid/ispu-monitor-service/internal/adapter/kafka"
	"github.com/couchcryptid/ispu-monitor-service/internal/config"
	"github.com/couchcryptid/ispu-monitor-service/internal/observability"
	"github.com/couchcryptid/ispu-monitor-service/internal/poller"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := ispuapi.NewClient(cfg.APIBaseURL, cfg.APITimeout, metrics, logger)

	// Snapshot publishing is feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED.
	var publisher poller.Publisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := poller.New(client, publisher, logger, metrics, poller.Options{
		Interval: cfg.PollInterval,
		Retries:  cfg.PollRetries,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, httpadapter.Options{
		ExportBasename: cfg.ExportBasename,
		Lookup:         client,
		AirQuality:     client,
		Location:       cfg.ExportLocation,
		Metrics:        metrics,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkUpstream(ctx, client, cfg.APITimeout, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start station poller.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

type healthChecker interface {
	Health(ctx context.Context) (json.RawMessage, error)
}

// checkUpstream probes the monitoring API once at startup. A failure is only
// logged: the poller keeps retrying and readiness stays down until it succeeds.
func checkUpstream(ctx context.Context, api healthChecker, timeout time.Duration, logger *slog.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := api.Health(ctx)
	if err != nil {
		logger.Warn("upstream health check failed", "error", err)
		return false
	}
	logger.Info("upstream reachable", "health", string(status))
	return true
}
