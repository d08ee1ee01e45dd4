// Package postgres implements domain.Repository on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/talent/internal/events"
	"example.com/talent/internal/recency"
)

// Repository provides Postgres-backed persistence for candidates, requisitions
// and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// inTenantTx runs fn inside a transaction scoped to tenantID for row level security.
func (r *Repository) inTenantTx(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// outboxEvent is a domain event queued for the dispatcher. An empty DedupeKey
// allows repeated events for the same aggregate.
type outboxEvent struct {
	TenantID    string
	AggregateID string
	EventType   string
	DedupeKey   string
	Payload     interface{}
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, event outboxEvent) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[event.EventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", event.EventType)
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		event.TenantID,
		"candidate",
		event.AggregateID,
		event.EventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(event),
		body,
		nullIfEmpty(event.DedupeKey),
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(outboxEvent) string
}

// byTenantCandidate keys every candidate event on tenant and candidate, so a
// candidate's events share one partition and stay ordered.
func byTenantCandidate(e outboxEvent) string {
	return e.TenantID + ":" + e.AggregateID
}

var eventCatalog = map[string]EventMetadata{
	events.TypeCandidateCreated: {
		Topic:          "candidate_events",
		SchemaSubject:  "candidate_events-value",
		PartitionKeyFn: byTenantCandidate,
	},
	events.TypeCandidateStatusChanged: {
		Topic:          "candidate_status_changed",
		SchemaSubject:  "candidate_status_changed-value",
		PartitionKeyFn: byTenantCandidate,
	},
	events.TypeFeedbackSubmitted: {
		Topic:          "interview_feedback",
		SchemaSubject:  "interview_feedback-value",
		PartitionKeyFn: byTenantCandidate,
	},
}

// windowCondition renders a recency.Window as a SQL predicate on column,
// numbering placeholders after the existing args.
func windowCondition(column string, w recency.Window, args []interface{}) (string, []interface{}) {
	bounds := make([]string, 0, 2)
	if !w.NotBefore.IsZero() {
		args = append(args, w.NotBefore)
		bounds = append(bounds, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if !w.Before.IsZero() {
		args = append(args, w.Before)
		bounds = append(bounds, fmt.Sprintf("%s < $%d", column, len(args)))
	}

	ranged := strings.Join(bounds, " AND ")
	switch {
	case ranged == "" && w.IncludeUnknown:
		return "TRUE", args
	case ranged == "":
		return column + " IS NOT NULL", args
	case w.IncludeUnknown:
		return fmt.Sprintf("(%s IS NULL OR (%s))", column, ranged), args
	default:
		return "(" + ranged + ")", args
	}
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
