package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/geowatch/chartreader/internal/adapter/http"
	kafkaadapter "github.com/geowatch/chartreader/internal/adapter/kafka"
	"github.com/geowatch/chartreader/internal/adapter/ollama"
	"github.com/geowatch/chartreader/internal/adapter/stationapi"
	"github.com/geowatch/chartreader/internal/analysis"
	"github.com/geowatch/chartreader/internal/chart"
	"github.com/geowatch/chartreader/internal/config"
	"github.com/geowatch/chartreader/internal/observability"
	"github.com/geowatch/chartreader/internal/session"
	"github.com/geowatch/chartreader/internal/store"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	uploads, err := store.NewUploads(cfg.UploadDir)
	if err != nil {
		logger.Error("failed to initialize upload store", "error", err)
		os.Exit(1)
	}

	models := ollama.NewClient(cfg.OllamaBaseURL, cfg.OllamaTimeout, cfg.OllamaPullTimeout, metrics, logger)
	stations := stationapi.NewClient(cfg.StationAPIBase, cfg.StationAPITimeout, metrics, logger)

	// Analysis publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher analysis.Publisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		metrics.KafkaEnabled.Set(1)
		logger.Info("analysis publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("analysis publishing disabled")
	}

	analyses := analysis.New(models, stations, uploads, publisher, metrics, logger, cfg.VisionModel, cfg.TextModel)
	renderer := chart.NewRenderer(cfg.ChartWidth, cfg.ChartHeight, metrics, logger)
	sess := session.New()

	srv := httpadapter.NewServer(cfg.HTTPAddr, analyses, stations, renderer, sess, uploads, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
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
