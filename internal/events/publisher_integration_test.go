//go:build integration

package events

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestKafkaPublisherDeliversSyncCompleted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	kContainer, err := kafkaContainer.RunContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kContainer.Terminate(context.Background()) })

	brokers, err := kContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	const topic = "bailey.sync.completed"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
	require.NoError(t, conn.Close())

	publisher := New(brokers, topic)
	t.Cleanup(func() { _ = publisher.Close() })

	event := SyncCompleted{
		RunID:         "run-1",
		PetID:         "pet-1",
		Date:          "2026-10-17",
		Steps:         9000,
		GoalPercent:   67,
		RecordsSynced: 10,
		CompletedAt:   time.Date(2026, time.October, 17, 18, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.PublishSyncCompleted(ctx, event))

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, MinBytes: 1, MaxBytes: 1 << 20})
	t.Cleanup(func() { _ = reader.Close() })

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, "2026-10-17", string(msg.Key))
	require.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("sync.completed")})

	var got SyncCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, event, got)
}
