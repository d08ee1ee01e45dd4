// Package consumer reads candidate events from Kafka and hands them to a Handler.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	TenantID      string
	AggregateID   string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithHandlerRetries sets how many times a message is handed to the Handler
// before the processor gives up on it, and the pause between attempts, which
// doubles after each failure.
func WithHandlerRetries(attempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		p.backoff = backoff
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
// Malformed records are committed and skipped; records the Handler keeps
// rejecting are left uncommitted so the group redelivers them after a restart
// or rebalance.
type Processor struct {
	reader   Reader
	handler  Handler
	logger   *log.Logger
	attempts int
	backoff  time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		logger:   log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		attempts: 3,
		backoff:  250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, err := decodeMessage(msg)
		if err != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, err)
			recordDecodeError(msg.Topic)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		if err := p.handle(ctx, event); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("handler error (event_type=%s, tenant=%s, offset=%d): %v", event.EventType, event.TenantID, event.Offset, err)
			recordHandlerError(event)
			continue
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.logger.Printf("commit error: %v", err)
			continue
		}
		recordProcessed(event, time.Now())
	}
}

// handle runs the handler up to p.attempts times.
func (p *Processor) handle(ctx context.Context, event Message) error {
	delay := p.backoff
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = p.handler.Handle(ctx, event); err == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}
		p.logger.Printf("handler attempt %d/%d failed (offset=%d): %v", attempt, p.attempts, event.Offset, err)
		recordHandlerRetry(event)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// decodeFrame splits a Confluent wire-format value into schema ID and payload.
func decodeFrame(value []byte) (int, json.RawMessage, error) {
	if len(value) < 5 {
		return 0, nil, fmt.Errorf("invalid payload length: %d", len(value))
	}
	if value[0] != 0 {
		return 0, nil, fmt.Errorf("unexpected magic byte: %d", value[0])
	}
	payload := json.RawMessage(append([]byte(nil), value[5:]...))
	if !json.Valid(payload) {
		return 0, nil, errors.New("payload is not valid JSON")
	}
	return int(binary.BigEndian.Uint32(value[1:5])), payload, nil
}

func decodeMessage(msg kafka.Message) (Message, error) {
	schemaID, payload, err := decodeFrame(msg.Value)
	if err != nil {
		return Message{}, err
	}
	eventType, ok := headerValue(msg, "event_type")
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	tenantID, _ := headerValue(msg, "tenant_id")
	schemaSubject, _ := headerValue(msg, "schema_subject")
	aggregateID, _ := headerValue(msg, "aggregate_id")

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		TenantID:      string(tenantID),
		AggregateID:   string(aggregateID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      schemaID,
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
