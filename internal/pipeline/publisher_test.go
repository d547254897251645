package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/config"
	"github.com/sanspareilsmyn/sweeplens/internal/stats"
)

func TestNewPublisher(t *testing.T) {
	pub, err := NewPublisher(config.PublisherConfig{}, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, NopPublisher{}, pub)
	require.NoError(t, pub.Publish(context.Background(), SnapshotEvent{SN: "SN1"}))

	_, err = NewPublisher(config.PublisherConfig{Enabled: true, Topic: "t"}, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidPublisherConfig)

	pub, err = NewPublisher(config.PublisherConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "t"}, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &KafkaPublisher{}, pub)
	require.NoError(t, pub.Close())
}

func TestSnapshotMessageKeyedBySN(t *testing.T) {
	saved := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	ev := SnapshotEvent{
		RunID:    "run-1",
		SN:       "SN7",
		SavedAt:  saved,
		Snapshot: stats.Snapshot{SN: "SN7", FileCount: 3},
	}
	msg, err := newMessage(ev)
	require.NoError(t, err)
	require.Equal(t, []byte("SN7"), msg.Key)
	require.Equal(t, saved, msg.Time)

	var got SnapshotEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, 3, got.Snapshot.FileCount)
}
