package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// inTenantTx runs fn in a transaction scoped to tenantID for row level security.
func inTenantTx(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
			return err
		}
		return fn(tx)
	})
}

// DLQWriter parks undeliverable outbox events in outbox_dlq. A first failure
// is due immediately; an event that fails again after a replay keeps its
// retry count and waits out the backoff for that count.
type DLQWriter struct {
	pool      *pgxpool.Pool
	baseDelay time.Duration
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool, baseDelay time.Duration) *DLQWriter {
	if baseDelay <= 0 {
		baseDelay = defaultRetryBase
	}
	return &DLQWriter{pool: pool, baseDelay: baseDelay}
}

// Write records msg with reason. The row keeps every column needed to rebuild
// the outbox entry on replay.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	var delay time.Duration
	if msg.DLQRetries > 0 {
		delay = retryBackoff(w.baseDelay, msg.DLQRetries)
	}
	return inTenantTx(ctx, w.pool, msg.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
	         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW() + $12::interval)`,
			msg.TenantID, msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
			msg.DLQRetries, delay,
		)
		return err
	})
}
