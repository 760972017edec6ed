// Package kafka publishes completed station analyses to a Kafka topic.
// The publisher is optional; the service runs without it when no brokers
// are configured.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/geowatch/chartreader/internal/analysis"
	"github.com/geowatch/chartreader/internal/config"
)

// Publisher produces analysis results to a Kafka topic.
// It implements analysis.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured analyses topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishAnalysis serializes and publishes one station analysis, keyed by
// station code so analyses for the same station stay ordered.
func (p *Publisher) PublishAnalysis(ctx context.Context, a analysis.StationAnalysis) error {
	msg, err := serializeToMessage(a)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a StationAnalysis into a Kafka message.
func serializeToMessage(a analysis.StationAnalysis) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station analysis: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.StatCode),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "analysis_id", Value: []byte(a.ID)},
			{Key: "analyzed_at", Value: []byte(a.Timestamp)},
		},
	}, nil
}
