package consumer

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler records consumed candidate events in Postgres for auditing.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event in candidate_event_log. Redelivered records are
// ignored, keyed on topic, partition and offset.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO candidate_event_log (event_type, tenant_id, candidate_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.TenantID,
		candidateID(msg),
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

// candidateID prefers the aggregate_id header and falls back to the payload.
func candidateID(msg Message) interface{} {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	var body struct {
		CandidateID string `json:"candidate_id"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil || body.CandidateID == "" {
		return nil
	}
	return body.CandidateID
}
