package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-map-service/internal/config"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// AlertEvent is the message published for each high-magnitude marker.
type AlertEvent struct {
	City        string      `json:"city"`
	Source      string      `json:"source"`
	Lat         float64     `json:"lat"`
	Lon         float64     `json:"lon"`
	Magnitude   float64     `json:"magnitude"`
	Depth       float64     `json:"depth"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	Tier        domain.Tier `json:"tier"`
	PublishedAt time.Time   `json:"published_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes alert events to a Kafka topic.
// It implements pipeline.AlertPublisher.
type Writer struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// PublishAlerts serializes and publishes one message per marker in a single
// WriteMessages call.
func (w *Writer) PublishAlerts(ctx context.Context, mode domain.Mode, markers []domain.Marker) error {
	if len(markers) == 0 {
		return nil
	}
	now := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(markers))
	for i := range markers {
		msg, err := serializeToMessage(newAlertEvent(mode, markers[i], now))
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish alerts: %w", err)
	}
	w.logger.Debug("alerts published", "count", len(msgs), "source", mode.String())
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func newAlertEvent(mode domain.Mode, m domain.Marker, now time.Time) AlertEvent {
	return AlertEvent{
		City:        m.City,
		Source:      mode.String(),
		Lat:         m.Lat,
		Lon:         m.Lon,
		Magnitude:   m.Magnitude,
		Depth:       m.Depth,
		Date:        m.Date,
		Time:        m.Time,
		Tier:        m.Tier,
		PublishedAt: now,
	}
}

// serializeToMessage marshals an AlertEvent into a Kafka message keyed by city.
func serializeToMessage(event AlertEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.City),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tier", Value: []byte(event.Tier)},
			{Key: "published_at", Value: []byte(event.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
