// Package outbox persists and delivers domain events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/talent/internal/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// DispatcherOption configures optional behaviour for the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger overrides the logger used for delivery failures.
func WithDispatcherLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithRetryBackoff sets the base delay applied when an event that already
// went through the DLQ fails again. It should match the DLQManager's delay.
func WithRetryBackoff(base time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if base > 0 {
			d.retryBase = base
		}
	}
}

// WithClaimLease sets how long a claimed row stays invisible to other
// dispatchers before it may be claimed again.
func WithClaimLease(lease time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if lease > 0 {
			d.claimLease = lease
		}
	}
}

const (
	defaultRetryBase  = time.Minute
	defaultClaimLease = time.Minute
)

// Dispatcher drains the outbox table and delivers candidate events to Kafka
// using Schema Registry metadata. A failing topic only diverts its own events
// to the DLQ; other topics in the same batch are still delivered.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	dlq              *DLQWriter
	logger           *log.Logger
	pollInterval     time.Duration
	batchSize        int
	retryBase        time.Duration
	claimLease       time.Duration
	schemaIDs        sync.Map // subject -> schema ID
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		retryBase:        defaultRetryBase,
		claimLease:       defaultClaimLease,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.dlq = NewDLQWriter(pool, d.retryBase)
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("dispatch error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// processBatch claims one batch, delivers it topic by topic and settles every
// claimed row: delivered rows are marked published, the rest land in the DLQ
// first and are then marked published too.
func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	delivered, failed := d.deliver(ctx, messages)
	recordDelivered(delivered)

	if len(failed) > 0 {
		recordFailed(failed)
		if err := d.moveToDLQ(ctx, failed); err != nil {
			return errors.Join(d.markPublished(ctx, delivered), err)
		}
	}
	return d.markPublished(ctx, messages)
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) ([]Message, error) {
	var messages []Message
	err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT event_id, tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dlq_retry_count
        FROM outbox
        WHERE published_at IS NULL
          AND (claimed_at IS NULL OR claimed_at < NOW() - $2::interval)
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`, d.batchSize, d.claimLease)
		if err != nil {
			return err
		}

		messages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
			var msg Message
			err := row.Scan(&msg.EventID, &msg.TenantID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload, &msg.DLQRetries)
			return msg, err
		})
		if err != nil || len(messages) == 0 {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages))
		return err
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// failedMessage pairs an undeliverable message with the reason it failed.
type failedMessage struct {
	Message
	reason string
}

// deliver writes messages grouped per topic. Messages whose event type has no
// schema, whose schema cannot be resolved, or whose topic write fails are
// returned as failures.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) (delivered []Message, failed []failedMessage) {
	type topicBatch struct {
		source  []Message
		records []kafka.Message
	}
	batches := make(map[string]*topicBatch)
	order := make([]string, 0)
	now := time.Now().UTC()

	for _, msg := range messages {
		schemaID, err := d.resolveSchemaID(ctx, msg)
		if err != nil {
			failed = append(failed, failedMessage{Message: msg, reason: err.Error()})
			continue
		}

		batch, ok := batches[msg.Topic]
		if !ok {
			batch = &topicBatch{}
			batches[msg.Topic] = batch
			order = append(order, msg.Topic)
		}
		batch.source = append(batch.source, msg)
		batch.records = append(batch.records, buildRecord(msg, schemaID, now))
	}

	for _, topic := range order {
		batch := batches[topic]
		if err := d.producer.WriteMessages(ctx, topic, batch.records...); err != nil {
			d.logger.Printf("delivery to %s failed for %d events: %v", topic, len(batch.source), err)
			for _, msg := range batch.source {
				failed = append(failed, failedMessage{Message: msg, reason: err.Error()})
			}
			continue
		}
		delivered = append(delivered, batch.source...)
	}
	return delivered, failed
}

// resolveSchemaID returns the registry ID for the message's subject, caching
// it for the lifetime of the dispatcher.
func (d *Dispatcher) resolveSchemaID(ctx context.Context, msg Message) (int, error) {
	meta, ok := schemaCatalog[msg.EventType]
	if !ok {
		return 0, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}
	if cached, found := d.schemaIDs.Load(msg.SchemaSubject); found {
		return cached.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, meta.Schema)
	if err != nil {
		return 0, fmt.Errorf("resolve schema %s: %w", msg.SchemaSubject, err)
	}
	d.schemaIDs.Store(msg.SchemaSubject, id)
	return id, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	var errs []error
	for tenantID, group := range byTenant(messages) {
		err := inTenantTx(ctx, d.pool, tenantID, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(group))
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("mark published (tenant=%s): %w", tenantID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, failed []failedMessage) error {
	for _, f := range failed {
		if err := d.dlq.Write(ctx, f.Message, fmt.Sprintf("%s (topic=%s)", f.reason, f.Topic)); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(f.Topic).Inc()
	}
	return nil
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	DLQRetries    int // completed DLQ replays of this event
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, len(messages))
	for i, msg := range messages {
		ids[i] = msg.EventID
	}
	return ids
}

func byTenant(messages []Message) map[string][]Message {
	groups := make(map[string][]Message)
	for _, msg := range messages {
		groups[msg.TenantID] = append(groups[msg.TenantID], msg)
	}
	return groups
}

// buildRecord frames the payload and attaches the headers consumers route on.
func buildRecord(msg Message, schemaID int, at time.Time) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "tenant_id", Value: []byte(msg.TenantID)},
			{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
			{Key: "aggregate_id", Value: []byte(msg.AggregateID)},
		},
	}
}

// encodeWireFormat applies Confluent framing: magic byte 0, a big-endian
// schema ID, then the JSON payload.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeCandidateCreated:       {Schema: candidateCreatedSchema},
	events.TypeCandidateStatusChanged: {Schema: candidateStatusChangedSchema},
	events.TypeFeedbackSubmitted:      {Schema: feedbackSubmittedSchema},
}
