package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ispu-monitor-service/internal/config"
	"github.com/couchcryptid/ispu-monitor-service/internal/domain"
)

// ClassifiedStation is the message payload: the upstream station plus the
// category derived from its ISPU value.
type ClassifiedStation struct {
	Station   domain.Station `json:"station"`
	Category  string         `json:"category"`
	Color     string         `json:"color,omitempty"`
	Valid     bool           `json:"valid"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Publisher produces one message per station to the snapshot topic.
// It implements poller.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured snapshot topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes every station in the snapshot and writes them in a
// single WriteMessages call. Messages are keyed by station identifier so
// updates for one station stay on one partition.
func (p *Publisher) Publish(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Stations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Stations))
	for i := range snap.Stations {
		msg, err := serializeStation(snap.Stations[i], snap.FetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d station messages: %w", len(msgs), err)
	}
	p.logger.Debug("snapshot published", "topic", p.writer.Topic, "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func classify(s domain.Station, fetchedAt time.Time) ClassifiedStation {
	out := ClassifiedStation{Station: s, Category: "N/A", FetchedAt: fetchedAt.UTC()}
	if s.ISPU.Valid {
		c := s.Classification()
		out.Category = c.Name
		out.Color = c.Color
		out.Valid = domain.Validate(s.ISPU.Value)
	}
	return out
}

// serializeStation marshals a classified station into a Kafka message.
func serializeStation(s domain.Station, fetchedAt time.Time) (kafkago.Message, error) {
	payload := classify(s, fetchedAt)
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station %s: %w", s.Identifier(), err)
	}
	return kafkago.Message{
		Key:   []byte(s.Identifier()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(payload.Category)},
			{Key: "fetched_at", Value: []byte(payload.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
