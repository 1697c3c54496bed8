// Package events publishes sync notifications to Kafka.
package events

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// SyncCompleted is emitted after a non-dry-run sync persisted data.
type SyncCompleted struct {
	RunID         string    `json:"run_id"`
	PetID         string    `json:"pet_id"`
	Date          string    `json:"date"`
	Steps         int       `json:"steps"`
	GoalPercent   int       `json:"goal_percent"`
	RecordsSynced int       `json:"records_synced"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Publisher emits sync events.
type Publisher interface {
	PublishSyncCompleted(ctx context.Context, event SyncCompleted) error
	Close() error
}

// Nop discards events; used when no brokers are configured.
type Nop struct{}

func (Nop) PublishSyncCompleted(context.Context, SyncCompleted) error { return nil }
func (Nop) Close() error                                             { return nil }

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher lazily manages writers per topic.
type KafkaPublisher struct {
	brokers   []string
	syncTopic string
	mu        sync.Mutex
	writers   map[string]messageWriter
	newWriter func(topic string) messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher writing sync events to syncTopic.
func NewKafkaPublisher(brokers []string, syncTopic string) *KafkaPublisher {
	p := &KafkaPublisher{
		brokers:   brokers,
		syncTopic: syncTopic,
		writers:   make(map[string]messageWriter),
	}
	p.newWriter = p.kafkaWriter
	return p
}

// PublishSyncCompleted writes the event keyed by date so a day's events stay ordered.
func (p *KafkaPublisher) PublishSyncCompleted(ctx context.Context, event SyncCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writerForTopic(p.syncTopic).WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Date),
		Value: payload,
		Time:  event.CompletedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("sync.completed")},
		},
	})
}

func (p *KafkaPublisher) writerForTopic(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := p.newWriter(topic)
	p.writers[topic] = writer
	return writer
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
}

// Close releases all writers.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}

// New returns a KafkaPublisher when brokers are configured and Nop otherwise.
func New(brokers []string, syncTopic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, syncTopic)
}
