package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/userdesk/userdesk/internal/metrics"
	"github.com/userdesk/userdesk/internal/model"
)

// ConsumerGroup is the consumer group every worker joins.
const ConsumerGroup = "audit_writers"

const deadLetterMaxLen = 10000

// Repository persists audit events. Implemented by repository.Repository.
type Repository interface {
	InsertAuditEvents(ctx context.Context, events []*model.AuditEvent) error
}

// WorkerConfig tunes a Worker. Zero durations disable the periodic
// pending-claim and queue-depth jobs.
type WorkerConfig struct {
	ConsumerID    string
	BatchSize     int
	Block         time.Duration
	Attempts      int
	Backoff       time.Duration // doubled after every failed attempt
	ClaimEvery    time.Duration
	ClaimMinIdle  time.Duration
	DepthEvery    time.Duration
	ErrorCooldown time.Duration
}

// DefaultWorkerConfig returns the production settings for consumerID.
func DefaultWorkerConfig(consumerID string) WorkerConfig {
	return WorkerConfig{
		ConsumerID:    consumerID,
		BatchSize:     200,
		Block:         5 * time.Second,
		Attempts:      3,
		Backoff:       2 * time.Second,
		ClaimEvery:    10 * time.Second,
		ClaimMinIdle:  30 * time.Second,
		DepthEvery:    5 * time.Second,
		ErrorCooldown: time.Second,
	}
}

// Worker drains the audit stream into Postgres. A message is acknowledged
// only after its event is stored or dead-lettered, so a crash between the
// two leaves it pending for another consumer.
type Worker struct {
	redis   *redis.Client
	repo    Repository
	logger  *slog.Logger
	metrics metrics.Recorder
	cfg     WorkerConfig

	claimCursor string
	lastClaim   time.Time
	lastDepth   time.Time

	started  atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once
	stopped  chan struct{}
}

// NewWorker builds a Worker; it does nothing until Run.
func NewWorker(client *redis.Client, repo Repository, logger *slog.Logger, cfg WorkerConfig, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Worker{
		redis:       client,
		repo:        repo,
		logger:      logger.With("component", "audit.worker", "consumer_id", cfg.ConsumerID),
		metrics:     recorder,
		cfg:         cfg,
		claimCursor: "0-0",
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Run consumes until ctx is done or Shutdown is called. A Worker runs once.
func (w *Worker) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("audit worker already started")
	}
	defer close(w.stopped)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := w.joinGroup(ctx); err != nil {
		return fmt.Errorf("join consumer group: %w", err)
	}
	w.logger.Info("audit worker started")

	for ctx.Err() == nil {
		err := w.processOnce(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		w.logger.Error("audit batch failed", "error", err)
		sleep(ctx, w.cfg.ErrorCooldown)
	}

	w.logger.Info("audit worker stopped")
	return nil
}

// Shutdown cancels Run and waits for the current batch to finish, or for
// ctx. It has the server.ShutdownFunc signature.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.quitOnce.Do(func() { close(w.quit) })
	if !w.started.Load() {
		return nil
	}

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		w.logger.Warn("audit worker did not stop in time")
		return ctx.Err()
	}
}

func (w *Worker) joinGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if isConsumerGroupExistsError(err) {
		return nil
	}
	return err
}

// processOnce handles one batch: reclaimed messages when any are due,
// otherwise new ones.
func (w *Worker) processOnce(ctx context.Context) error {
	w.reportDepth(ctx)

	msgs, err := w.reclaim(ctx)
	if err != nil {
		w.logger.Warn("reclaiming pending audit events", "error", err)
	}
	if len(msgs) == 0 {
		if msgs, err = w.read(ctx); err != nil {
			return err
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	events, ids := w.decode(ctx, msgs)
	if len(events) > 0 {
		if err := w.store(ctx, events); err != nil {
			return err
		}
	}
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (w *Worker) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.cfg.BatchSize),
		Block:    w.cfg.Block,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("xreadgroup: %w", err)
	case len(streams) == 0:
		return nil, nil
	}
	return streams[0].Messages, nil
}

// reclaim takes over messages that sat unacknowledged in another
// consumer's pending list for at least ClaimMinIdle.
func (w *Worker) reclaim(ctx context.Context) ([]redis.XMessage, error) {
	if w.cfg.ClaimMinIdle <= 0 || !due(&w.lastClaim, w.cfg.ClaimEvery) {
		return nil, nil
	}

	msgs, next, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.cfg.ConsumerID,
		MinIdle:  w.cfg.ClaimMinIdle,
		Start:    w.claimCursor,
		Count:    int64(w.cfg.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if next != "" {
		w.claimCursor = next
	}
	return msgs, nil
}

func (w *Worker) reportDepth(ctx context.Context) {
	if !due(&w.lastDepth, w.cfg.DepthEvery) {
		return
	}
	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		w.logger.Warn("reading audit group info", "error", err)
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetAuditQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

// decode turns messages into events. Every id is returned for acking;
// messages that cannot become an event are dead-lettered instead.
func (w *Worker) decode(ctx context.Context, msgs []redis.XMessage) ([]*model.AuditEvent, []string) {
	events := make([]*model.AuditEvent, 0, len(msgs))
	ids := make([]string, 0, len(msgs))

	for _, msg := range msgs {
		ids = append(ids, msg.ID)

		p, reason, err := payloadOf(msg)
		if err != nil {
			w.deadLetter(ctx, msg, reason, err)
			continue
		}
		events = append(events, &model.AuditEvent{
			ID:         ulid.Make().String(),
			StreamID:   msg.ID,
			Type:       model.AuditEventType(p.Type),
			ActorID:    p.ActorID,
			SubjectID:  p.SubjectID,
			ClientKey:  p.ClientKey,
			OccurredAt: time.UnixMilli(p.OccurredAt).UTC(),
		})
	}
	return events, ids
}

func payloadOf(msg redis.XMessage) (Payload, string, error) {
	var p Payload
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return p, "invalid_format", errors.New("payload field missing or not a string")
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, "unmarshal_error", err
	}
	if err := ValidatePayload(p); err != nil {
		return p, "validation_error", err
	}
	return p, "", nil
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string, cause error) {
	w.logger.Warn("dead-lettering audit message",
		"message_id", msg.ID,
		"reason", reason,
		"error", cause,
	)
	w.metrics.IncAuditProcessed("dead_lettered")

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           cause.Error(),
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("writing dead-letter stream", "message_id", msg.ID, "error", err)
	}
}

// store inserts events, retrying with doubling backoff. Inserts are
// idempotent on stream id, so a retried partial write is harmless.
func (w *Worker) store(ctx context.Context, events []*model.AuditEvent) error {
	backoff := w.cfg.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		start := time.Now()
		if err = w.repo.InsertAuditEvents(ctx, events); err == nil {
			w.logger.Debug("audit batch stored",
				"events", len(events),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			w.count("success", len(events))
			return nil
		}
		if attempt == w.cfg.Attempts || ctx.Err() != nil {
			break
		}
		w.logger.Warn("audit insert failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		sleep(ctx, backoff)
		backoff *= 2
	}

	w.count("failed", len(events))
	return fmt.Errorf("insert %d audit events: %w", len(events), err)
}

func (w *Worker) count(result string, n int) {
	for range n {
		w.metrics.IncAuditProcessed(result)
	}
}

// due reports whether every has elapsed since *last and, if so, moves *last
// to now. A non-positive every is never due.
func due(last *time.Time, every time.Duration) bool {
	if every <= 0 {
		return false
	}
	now := time.Now()
	if !last.IsZero() && now.Sub(*last) < every {
		return false
	}
	*last = now
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
