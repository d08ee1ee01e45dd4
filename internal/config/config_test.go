package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDRESS", "KAFKA_BROKERS", "CONSUMER_TOPICS", "STORAGE_BUCKET", "REPOSITORY_BACKEND", "DLQ_MAX_RETRIES", "OUTBOX_CLAIM_LEASE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, BackendPostgres, cfg.RepositoryBackend)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"candidate_events", "candidate_status_changed", "interview_feedback"}, cfg.ConsumerTopics)
	require.Equal(t, 5, cfg.DLQMaxRetries)
	require.Equal(t, time.Minute, cfg.OutboxClaimLease)
	require.Empty(t, cfg.Storage.Bucket)
	require.True(t, cfg.Storage.UsePathStyle)
	require.EqualValues(t, 2<<20, cfg.Storage.AvatarMaxBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("REPOSITORY_BACKEND", "Memory")
	t.Setenv("STORAGE_BUCKET", "avatars")
	t.Setenv("STORAGE_USE_PATH_STYLE", "false")

	cfg := Load()
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, BackendMemory, cfg.RepositoryBackend)
	require.Equal(t, "avatars", cfg.Storage.Bucket)
	require.False(t, cfg.Storage.UsePathStyle)
}
