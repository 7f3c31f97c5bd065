// Package outbox persists and delivers domain events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"example.com/menta/internal/logging"
)

// Kafka headers set on every published record.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
	HeaderAggregateID   = "aggregate_id"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Dispatcher drains the outbox table and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	dlq              *DLQWriter
	breaker          *gobreaker.CircuitBreaker[struct{}]
	logger           zerolog.Logger
	pollInterval     time.Duration
	batchSize        int
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// DispatcherOption configures optional Dispatcher behaviour.
type DispatcherOption func(*Dispatcher)

// WithBreakerSettings overrides the default Kafka breaker thresholds.
func WithBreakerSettings(settings BreakerSettings) DispatcherOption {
	return func(d *Dispatcher) {
		d.breaker = newKafkaBreaker(settings)
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		dlq:              NewDLQWriter(pool),
		logger:           logging.Component("outbox"),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.breaker == nil {
		d.breaker = newKafkaBreaker(BreakerSettings{})
	}
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
			d.logger.Error().Err(err).Msg("outbox dispatcher error")
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

	delivered, err := d.deliver(ctx, messages)
	if len(delivered) > 0 {
		deliveredCounter.Add(float64(len(delivered)))
		if markErr := d.markPublished(ctx, delivered); markErr != nil {
			return markErr
		}
	}
	if err == nil {
		return nil
	}

	pending := undelivered(messages, delivered)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// unpublished rows are picked up again on the next poll
		d.logger.Warn().Err(err).Int("events", len(pending)).Msg("kafka breaker rejected batch")
		deferredCounter.Add(float64(len(pending)))
		return nil
	}
	d.logger.Error().Err(err).Int("events", len(pending)).Msg("outbox delivery failure")
	failedCounter.Add(float64(len(pending)))
	if dlqErr := d.moveToDLQ(ctx, pending, err.Error()); dlqErr != nil {
		return dlqErr
	}
	return d.markPublished(ctx, pending)
}

func undelivered(messages, delivered []Message) []Message {
	done := make(map[int64]struct{}, len(delivered))
	for _, msg := range delivered {
		done[msg.EventID] = struct{}{}
	}
	out := make([]Message, 0, len(messages)-len(delivered))
	for _, msg := range messages {
		if _, ok := done[msg.EventID]; !ok {
			out = append(out, msg)
		}
	}
	return out
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) ([]Message, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const query = `SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return messages, nil
}

// deliver writes messages grouped by topic, one Kafka write per topic. It returns
// the messages whose topic write succeeded, even when a later topic fails.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) ([]Message, error) {
	batches := make(map[string][]kafka.Message)
	grouped := make(map[string][]Message)
	topics := make([]string, 0)

	for _, msg := range messages {
		schemaID, err := d.schemaID(ctx, msg)
		if err != nil {
			return nil, err
		}

		if _, exists := batches[msg.Topic]; !exists {
			topics = append(topics, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], buildRecord(msg, schemaID))
		grouped[msg.Topic] = append(grouped[msg.Topic], msg)
	}

	delivered := make([]Message, 0, len(messages))
	for _, topic := range topics {
		batch := batches[topic]
		if _, err := d.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, d.producer.WriteMessages(ctx, topic, batch...)
		}); err != nil {
			return delivered, fmt.Errorf("write %d events to %s: %w", len(batch), topic, err)
		}
		delivered = append(delivered, grouped[topic]...)
	}

	return delivered, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, msg Message) (int, error) {
	meta, ok := schemaCatalog[msg.EventType]
	if !ok {
		return 0, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}

	cacheKey := fmt.Sprintf("%s::%s", msg.SchemaSubject, meta.Schema)
	if cached, found := d.schemaIDCache.Load(cacheKey); found {
		return cached.(int), nil
	}

	id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, meta.Schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

func buildRecord(msg Message, schemaID int) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			{Key: HeaderAggregateID, Value: []byte(msg.AggregateID)},
		},
	}
}

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	_, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	return err
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, messages []Message, reason string) error {
	for _, msg := range messages {
		entryReason := fmt.Sprintf("%s (topic=%s)", reason, msg.Topic)
		if err := d.dlq.Write(ctx, msg, entryReason); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
