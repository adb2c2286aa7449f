package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/aqi-cluster/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/aqi-cluster/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/aqi-cluster/internal/adapter/kafka"
	"github.com/couchcryptid/aqi-cluster/internal/adapter/mapbox"
	"github.com/couchcryptid/aqi-cluster/internal/config"
	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"github.com/couchcryptid/aqi-cluster/internal/observability"
	"github.com/couchcryptid/aqi-cluster/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A local .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRateLimit, metrics, logger)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocoder", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled",
			"cache_size", cfg.MapboxCacheSize,
			"timeout", cfg.MapboxTimeout,
			"rate_limit", cfg.MapboxRateLimit,
		)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	// Initialize publisher (feature-flagged via KAFKA_ENABLED).
	var (
		loader pipeline.ReportLoader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		loader = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	reader := csvfile.NewReader(cfg.DatasetPaths, logger)
	analyzer := pipeline.NewAnalyzer(pipeline.AnalyzerOptions{
		K:                cfg.ClusterK,
		Iterations:       cfg.ClusterIterations,
		EarlyStop:        cfg.ClusterEarlyStop,
		HighRiskQuantile: cfg.HighRiskQuantile,
		SampleSize:       cfg.SampleSize,
		ExposureTopN:     cfg.ExposureTopN,
	}, geocoder, logger)

	p := pipeline.New(reader, analyzer, loader, logger, metrics, cfg.RefreshInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start clustering pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
