package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/menta/internal/events"
)

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityCreated: {
		Topic:         events.TopicActivityEvents,
		SchemaSubject: events.TopicActivityEvents + "-value",
	},
	events.TypeActivityCommented: {
		Topic:         events.TopicActivityComments,
		SchemaSubject: events.TopicActivityComments + "-value",
	},
	events.TypeProgressRecorded: {
		Topic:         events.TopicProgressEvents,
		SchemaSubject: events.TopicProgressEvents + "-value",
	},
}

type outboxEvent struct {
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	DedupeKey     string
	Payload       any
}

// insertOutbox records the event in the same transaction as the state change it describes.
func insertOutbox(ctx context.Context, tx pgx.Tx, evt outboxEvent) error {
	body, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[evt.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.EventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		evt.AggregateType,
		evt.AggregateID,
		evt.EventType,
		meta.Topic,
		meta.SchemaSubject,
		evt.PartitionKey,
		body,
		nullIfEmpty(evt.DedupeKey),
	)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
