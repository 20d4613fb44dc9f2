package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// EventTypeAssetsIngested is emitted after an upload has been committed.
const EventTypeAssetsIngested = "assets.ingested"

// AssetsIngested describes a committed upload.
type AssetsIngested struct {
	IngestionID uuid.UUID `json:"ingestion_id"`
	FileName    string    `json:"file_name"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Warnings    int       `json:"warnings"`
	Rejected    int       `json:"rejected"`
	AssetIDs    []string  `json:"asset_ids"`
}

// Event is the envelope written to the broker.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Data      AssetsIngested `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher announces committed uploads to downstream consumers.
type Publisher interface {
	PublishAssetsIngested(ctx context.Context, payload AssetsIngested) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishAssetsIngested(context.Context, AssetsIngested) error { return nil }
func (NopPublisher) Close() error                                                { return nil }

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	source string
	log    logrus.FieldLogger
}

// NewKafkaPublisher creates a synchronous publisher for topic.
func NewKafkaPublisher(brokers []string, topic, source string, log logrus.FieldLogger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, source: source, log: log}
}

func (p *KafkaPublisher) PublishAssetsIngested(ctx context.Context, payload AssetsIngested) error {
	message, err := newMessage(p.source, payload, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"ingestion_id": payload.IngestionID,
		"event_type":   EventTypeAssetsIngested,
		"topic":        p.writer.Topic,
	}).Info("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// newMessage keys the message by ingestion id so every event for an upload
// lands on the same partition.
func newMessage(source string, payload AssetsIngested, now time.Time) (kafka.Message, error) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      EventTypeAssetsIngested,
		Source:    source,
		Data:      payload,
		Timestamp: now,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(payload.IngestionID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventTypeAssetsIngested)},
			{Key: "source", Value: []byte(source)},
		},
	}, nil
}
