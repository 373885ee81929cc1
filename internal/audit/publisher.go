// Package audit records account activity on a Redis stream and persists it
// to Postgres in the background.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userdesk/userdesk/internal/metrics"
	"github.com/userdesk/userdesk/internal/model"
)

const (
	// StreamKey is the Redis stream for audit events.
	StreamKey = "stream:audit_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:audit_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Payload is the compact event format on the stream.
type Payload struct {
	Type       string `json:"t"`
	ActorID    int64  `json:"a,omitempty"`
	SubjectID  int64  `json:"s,omitempty"`
	ClientKey  string `json:"ck"`
	OccurredAt int64  `json:"ts"` // Unix milliseconds
}

// Publisher enqueues audit events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event Payload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged and counted, never returned.
func (p *Publisher) PublishAsync(event Payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish audit event",
				"type", event.Type,
				"error", err,
			)
			p.metrics.IncAuditPublished("dropped")
			return
		}

		p.logger.Debug("audit event published",
			"type", event.Type,
			"stream_id", streamID,
		)
		p.metrics.IncAuditPublished("success")
	}()
}

// Record publishes one event asynchronously. ip is reduced to a daily
// client key before it leaves the process.
func (p *Publisher) Record(eventType model.AuditEventType, actorID, subjectID int64, ip string) {
	now := p.now()
	p.PublishAsync(Payload{
		Type:       string(eventType),
		ActorID:    actorID,
		SubjectID:  subjectID,
		ClientKey:  ClientKey(ip, now),
		OccurredAt: now.UnixMilli(),
	})
}

// ClientKey creates a privacy-safe client identifier.
// Uses SHA256(IP + daily_salt) truncated to 16 hex chars.
func ClientKey(ip string, at time.Time) string {
	// Daily salt rotates at midnight UTC
	dailySalt := fmt.Sprintf("userdesk:%s", at.UTC().Format("2006-01-02"))

	hash := sha256.Sum256([]byte(ip + dailySalt))
	return hex.EncodeToString(hash[:])[:clientKeyLength]
}
