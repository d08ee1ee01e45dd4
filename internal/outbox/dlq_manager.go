package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const quarantineReason = "retry limit reached"

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay}
}

// RunOnce processes a batch of due DLQ entries and returns the count of
// successfully re-queued messages.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	entries, err := m.dueEntries(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, entry := range entries {
		requeued, procErr := m.handleEntry(ctx, entry)
		if procErr != nil {
			err = errors.Join(err, fmt.Errorf("dlq entry %d: %w", entry.ID, procErr))
			continue
		}
		if requeued {
			processed++
		}
	}

	updateDLQGauges(ctx, m.pool)
	return processed, err
}

func (m *DLQManager) dueEntries(ctx context.Context, batchSize int) ([]dlqEntry, error) {
	const query = `SELECT dlq_id, tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count
                    FROM outbox_dlq
                   WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                   ORDER BY created_at
                   LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanDLQEntry)
}

// handleEntry applies retry/quarantine logic for a single DLQ entry. It reports
// whether the entry went back into the outbox.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) (bool, error) {
	var outcome string
	err := inTenantTx(ctx, m.pool, entry.TenantID, func(tx pgx.Tx) error {
		if entry.RetryCount >= m.maxRetries {
			outcome = outcomeQuarantined
			_, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, quarantineReason, entry.ID)
			return err
		}

		if requeueErr := requeueOutbox(ctx, tx, entry); requeueErr != nil {
			outcome = outcomeRetryScheduled
			_, err := tx.Exec(ctx,
				`UPDATE outbox_dlq
               SET retry_count = retry_count + 1,
                   last_attempt_at = NOW(),
                   next_retry_at = NOW() + $1::interval,
                   reason = $2
             WHERE dlq_id = $3`,
				m.backoffDelay(entry.RetryCount+1), requeueErr.Error(), entry.ID,
			)
			return err
		}

		outcome = outcomeRequeued
		_, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	recordDLQOutcome(entry, outcome)
	return outcome == outcomeRequeued, nil
}

func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	return retryBackoff(m.baseDelay, attempt)
}

// retryBackoff doubles base per attempt, capped at one hour.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * base
	if delay > time.Hour || delay <= 0 {
		delay = time.Hour
	}
	return delay
}

// requeueOutbox reinserts the payload into the primary outbox table for replay,
// carrying the attempt number so a repeated delivery failure resumes the
// backoff instead of starting over. The insert runs in a savepoint so a
// failure leaves tx usable.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}
	if _, ok := schemaCatalog[entry.EventType]; !ok {
		return fmt.Errorf("no schema metadata for event_type=%s", entry.EventType)
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dlq_retry_count)
                   VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	if _, err := sp.Exec(ctx, stmt,
		entry.TenantID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.SchemaSubject,
		entry.PartitionKey,
		entry.Payload,
		entry.RetryCount+1,
	); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	TenantID      string
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

func scanDLQEntry(row pgx.CollectableRow) (dlqEntry, error) {
	var entry dlqEntry
	if err := row.Scan(&entry.ID, &entry.TenantID, &entry.EventID, &entry.EventType, &entry.Topic, &entry.Payload, &entry.Reason, &entry.AggregateType, &entry.AggregateID, &entry.SchemaSubject, &entry.PartitionKey, &entry.RetryCount); err != nil {
		return dlqEntry{}, err
	}
	return entry, nil
}
