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
	"github.com/stretchr/testify/require"
)

func TestDLQReplayRepublishesAfterRecovery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	participationID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, participationID, "participation.completed"))

	registry := &stubRegistry{id: 100}

	// 1. Initial dispatch fails and moves the message to DLQ.
	failingProducer := &stubProducer{err: errors.New("upstream kafka unavailable")}
	dispatcher := NewDispatcher(pool, failingProducer, registry, 5*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	var dlqCount int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount)
	require.NoError(t, err)
	require.Equal(t, 1, dlqCount, "expected message routed to DLQ on failure")

	// 2. Requeue the DLQ entry.
	manager := NewDLQManager(pool, 5, time.Second)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)

	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount)
	require.NoError(t, err)
	require.Equal(t, 0, dlqCount, "expected DLQ cleared after requeue")

	// 3. A healthy producer drains the requeued event.
	producer := &stubProducer{}
	dispatcher = NewDispatcher(pool, producer, registry, 5*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "participation_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)

	var pending int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending)
	require.NoError(t, err)
	require.Equal(t, 0, pending, "requeued event should be published")
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	seedDLQEntry(t, ctx, pool, uuid.NewString(), 5)

	manager := NewDLQManager(pool, 5, time.Second)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, replayed, "exhausted entries are quarantined, not replayed")

	var quarantined int
	var reason string
	err = pool.QueryRow(ctx, `SELECT COUNT(*), MAX(quarantine_reason) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined, &reason)
	require.NoError(t, err)
	require.Equal(t, 1, quarantined)
	require.Equal(t, "retry limit reached", reason)

	// Quarantined entries are never picked up again.
	replayed, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, replayed)
}

func TestDLQManagerBacksOffOnRequeueFailure(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	// Missing schema_subject makes the requeue insert fail validation.
	seedBrokenDLQEntry(t, ctx, pool, uuid.NewString())

	manager := NewDLQManager(pool, 5, time.Second)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, replayed)

	var retryCount int
	var nextRetry *time.Time
	err = pool.QueryRow(ctx, `SELECT retry_count, next_retry_at FROM outbox_dlq`).Scan(&retryCount, &nextRetry)
	require.NoError(t, err)
	require.Equal(t, 1, retryCount)
	require.NotNil(t, nextRetry)
	require.True(t, nextRetry.After(time.Now()), "next retry should be in the future")
}

func seedDLQEntry(t *testing.T, ctx context.Context, pool *pgxpool.Pool, participationID string, retryCount int) {
	t.Helper()

	payloadBytes, err := json.Marshal(map[string]any{"participation_id": participationID})
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count)
         VALUES (1, 'participation.registered', 'participation_events', $1, 'kafka write failed', 'participation', $2, 'participation_events-value', $3, $4)`,
		payloadBytes, participationID, uuid.NewString(), retryCount)
	require.NoError(t, err)
}

func seedBrokenDLQEntry(t *testing.T, ctx context.Context, pool *pgxpool.Pool, participationID string) {
	t.Helper()

	payloadBytes, err := json.Marshal(map[string]any{"participation_id": participationID})
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key)
         VALUES (1, 'participation.registered', 'participation_events', $1, 'kafka write failed', 'participation', $2, '', $3)`,
		payloadBytes, participationID, uuid.NewString())
	require.NoError(t, err)
}
