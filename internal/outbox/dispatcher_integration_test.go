//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/menta/internal/events"
	"example.com/menta/internal/persistence/postgres"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityCreated))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicActivityEvents, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	require.Equal(t, events.TypeActivityCreated, header(producer.writes[0].messages[0], HeaderEventType))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	aggregateID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, aggregateID, events.TypeActivityCreated))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(events.TopicActivityEvents))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(events.TopicActivityEvents)), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE aggregate_id = $1`, aggregateID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherLeavesBatchWhenBreakerOpen(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	producer := &stubProducer{err: errors.New("broker unreachable")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 3}, 10*time.Millisecond, 5,
		WithBreakerSettings(BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour}))

	// trips the breaker; this batch goes to the DLQ
	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityCreated))
	require.NoError(t, dispatcher.processBatch(ctx))

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityCreated)
	beforeDeferred := testutil.ToFloat64(deferredCounter)
	require.NoError(t, dispatcher.processBatch(ctx))
	require.InDelta(t, beforeDeferred+1, testutil.ToFloat64(deferredCounter), 0.0001)

	var publishedAt *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.Nil(t, publishedAt, "rejected batch stays unpublished for the next poll")

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)
}

func TestDispatcherPublishesWrittenTopicsWhenBreakerRejectsLaterTopic(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	activityEvent := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeActivityCreated)
	progressEvent := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeProgressRecorded)

	producer := &stubProducer{topicErrs: map[string]error{events.TopicProgressEvents: gobreaker.ErrOpenState}}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 4}, 10*time.Millisecond, 5)

	beforeDeferred := testutil.ToFloat64(deferredCounter)
	require.NoError(t, dispatcher.processBatch(ctx))
	require.InDelta(t, beforeDeferred+1, testutil.ToFloat64(deferredCounter), 0.0001)

	var publishedAt *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, activityEvent).Scan(&publishedAt))
	require.NotNil(t, publishedAt, "written topic must not be resent")

	publishedAt = nil
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, progressEvent).Scan(&publishedAt))
	require.Nil(t, publishedAt)

	producer.topicErrs = nil
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 2)
	require.Equal(t, events.TopicProgressEvents, producer.writes[1].topic)
	require.Len(t, producer.writes[1].messages, 1)
}

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeProgressRecorded))
	failing := NewDispatcher(pool, &stubProducer{err: errors.New("down")}, &stubRegistry{id: 5}, 10*time.Millisecond, 5)
	require.NoError(t, failing.processBatch(ctx))

	manager := NewDLQManager(pool, 1, time.Second)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Zero(t, dlqCount)

	producer := &stubProducer{}
	healthy := NewDispatcher(pool, producer, &stubRegistry{id: 5}, 10*time.Millisecond, 5)
	require.NoError(t, healthy.processBatch(ctx))
	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicProgressEvents, producer.writes[0].topic)

	_, err = pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES (99, $1, $2, '{}'::jsonb, 'boom', 'activity', 'act-x', 'activity_events-value', 'user-1', 1, NOW())`,
		events.TypeActivityCreated, events.TopicActivityEvents)
	require.NoError(t, err)

	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)

	var quarantined int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.Equal(t, 1, quarantined)
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("menta"),
		postgrescontainer.WithUsername("menta"),
		postgrescontainer.WithPassword("menta"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))
	require.NoError(t, postgres.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, aggregateID, eventType string) int64 {
	t.Helper()

	topic := events.TopicActivityEvents
	if eventType == events.TypeProgressRecorded {
		topic = events.TopicProgressEvents
	}

	payloadBytes, err := json.Marshal(map[string]any{"activity_id": aggregateID})
	require.NoError(t, err)

	var eventID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         RETURNING event_id`,
		"activity",
		aggregateID,
		eventType,
		topic,
		topic+"-value",
		"user-1",
		payloadBytes,
	).Scan(&eventID))
	return eventID
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
