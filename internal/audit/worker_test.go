package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userdesk/userdesk/internal/metrics"
	"github.com/userdesk/userdesk/internal/model"
)

type memRepo struct {
	mu     sync.Mutex
	events []*model.AuditEvent
	err    error
}

func (r *memRepo) InsertAuditEvents(_ context.Context, events []*model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, events...)
	return nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestWorker(t *testing.T, client *redis.Client, repo Repository, recorder metrics.Recorder) *Worker {
	t.Helper()
	cfg := WorkerConfig{
		ConsumerID:    "test-consumer",
		BatchSize:     50,
		Block:         20 * time.Millisecond,
		Attempts:      2,
		Backoff:       time.Millisecond,
		ErrorCooldown: 10 * time.Millisecond,
	}
	w := NewWorker(client, repo, discardLogger(), cfg, recorder)
	require.NoError(t, w.joinGroup(context.Background()))
	return w
}

func validPayload(eventType model.AuditEventType, subjectID int64) Payload {
	now := time.Now()
	return Payload{
		Type:       string(eventType),
		SubjectID:  subjectID,
		ClientKey:  ClientKey("10.0.0.1", now),
		OccurredAt: now.UnixMilli(),
	}
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	pending, err := client.XPending(context.Background(), StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	return pending.Count
}

func TestWorker_ProcessOncePersistsAndAcks(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	repo := &memRepo{}
	recorder := metrics.NewInMemory()
	w := newTestWorker(t, client, repo, recorder)
	p := NewPublisher(client, discardLogger(), nil)

	id1, err := p.Publish(ctx, validPayload(model.AuditUserCreated, 5))
	require.NoError(t, err)
	_, err = p.Publish(ctx, validPayload(model.AuditLoginSucceeded, 5))
	require.NoError(t, err)

	require.NoError(t, w.processOnce(ctx))

	require.Equal(t, 2, repo.count())
	assert.Equal(t, id1, repo.events[0].StreamID)
	assert.Equal(t, model.AuditUserCreated, repo.events[0].Type)
	assert.Len(t, repo.events[0].ID, 26, "expected a ULID")
	assert.Zero(t, pendingCount(t, client))
	assert.Equal(t, uint64(2), recorder.Snapshot().AuditProcessed["success"])
}

func TestWorker_PoisonMessagesAreDeadLettered(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	repo := &memRepo{}
	recorder := metrics.NewInMemory()
	w := newTestWorker(t, client, repo, recorder)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: StreamKey, Values: map[string]interface{}{"payload": "{not json"}}).Err())
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: StreamKey, Values: map[string]interface{}{"other": "x"}}).Err())
	bad := validPayload("password_dumped", 1)
	_, err := NewPublisher(client, discardLogger(), nil).Publish(ctx, bad)
	require.NoError(t, err)

	require.NoError(t, w.processOnce(ctx))

	assert.Zero(t, repo.count())
	assert.Zero(t, pendingCount(t, client))

	dlq, err := client.XLen(ctx, DeadLetterStreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), dlq)
	assert.Equal(t, uint64(3), recorder.Snapshot().AuditProcessed["dead_lettered"])
}

func TestWorker_FailedBatchStaysPending(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	repo := &memRepo{err: errors.New("connection refused")}
	recorder := metrics.NewInMemory()
	w := newTestWorker(t, client, repo, recorder)

	_, err := NewPublisher(client, discardLogger(), nil).Publish(ctx, validPayload(model.AuditUserDeleted, 9))
	require.NoError(t, err)

	err = w.processOnce(ctx)
	require.Error(t, err)

	assert.Equal(t, int64(1), pendingCount(t, client))
	assert.Equal(t, uint64(1), recorder.Snapshot().AuditProcessed["failed"])
}

func TestWorker_EmptyStream(t *testing.T) {
	_, client := newTestRedis(t)
	repo := &memRepo{}
	w := newTestWorker(t, client, repo, nil)

	require.NoError(t, w.processOnce(context.Background()))
	assert.Zero(t, repo.count())
}

func TestWorker_RunAndShutdown(t *testing.T) {
	_, client := newTestRedis(t)
	repo := &memRepo{}
	w := newTestWorker(t, client, repo, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	_, err := NewPublisher(client, discardLogger(), nil).Publish(context.Background(), validPayload(model.AuditUserUpdated, 4))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return repo.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Error(t, w.Run(context.Background()), "a worker runs once")
}

func TestWorker_ShutdownBeforeStart(t *testing.T) {
	_, client := newTestRedis(t)
	w := NewWorker(client, &memRepo{}, discardLogger(), DefaultWorkerConfig("idle"), nil)
	assert.NoError(t, w.Shutdown(context.Background()))

	// A worker told to stop before it starts exits as soon as it runs.
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored an earlier Shutdown")
	}
}

func TestWorker_ReclaimsAbandonedMessages(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	repo := &memRepo{}
	w := newTestWorker(t, client, repo, nil)

	_, err := NewPublisher(client, discardLogger(), nil).Publish(ctx, validPayload(model.AuditUserCreated, 3))
	require.NoError(t, err)

	// Another consumer reads the message and dies before acking it.
	_, err = client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group: ConsumerGroup, Consumer: "crashed", Streams: []string{StreamKey, ">"}, Count: 10,
	}).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), pendingCount(t, client))

	w.cfg.ClaimEvery = time.Millisecond
	w.cfg.ClaimMinIdle = time.Millisecond
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, w.processOnce(ctx))
	assert.Equal(t, 1, repo.count())
	assert.Zero(t, pendingCount(t, client))
}

func TestDue(t *testing.T) {
	var last time.Time
	assert.False(t, due(&last, 0), "disabled")
	assert.True(t, due(&last, time.Hour), "first call is due")
	assert.False(t, due(&last, time.Hour), "not again within the interval")
}

func TestNewConsumerID(t *testing.T) {
	a, b := NewConsumerID(), NewConsumerID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `-[0-9a-z]{26}$`, a)
}

func TestIsConsumerGroupExistsError(t *testing.T) {
	assert.True(t, isConsumerGroupExistsError(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isConsumerGroupExistsError(errors.New("ERR no such key")))
	assert.False(t, isConsumerGroupExistsError(nil))
}
