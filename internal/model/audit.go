package model

import "time"

// AuditEventType names something that happened to an account.
type AuditEventType string

// Audit event types.
const (
	AuditLoginSucceeded AuditEventType = "login_succeeded"
	AuditLoginFailed    AuditEventType = "login_failed"
	AuditUserCreated    AuditEventType = "user_created"
	AuditUserUpdated    AuditEventType = "user_updated"
	AuditUserDeleted    AuditEventType = "user_deleted"
)

// Valid reports whether t is a known event type.
func (t AuditEventType) Valid() bool {
	switch t {
	case AuditLoginSucceeded, AuditLoginFailed, AuditUserCreated, AuditUserUpdated, AuditUserDeleted:
		return true
	default:
		return false
	}
}

// AuditEvent is one persisted audit record. It never carries emails,
// passwords or tokens.
type AuditEvent struct {
	ID       string `json:"id"`        // ULID (time-sortable)
	StreamID string `json:"stream_id"` // Idempotency key (Redis stream ID)

	Type      AuditEventType `json:"type"`
	ActorID   int64          `json:"actor_id,omitempty"`   // Authenticated caller, 0 for login attempts
	SubjectID int64          `json:"subject_id,omitempty"` // Affected account, 0 when unknown
	ClientKey string         `json:"client_key"`           // SHA256(IP + daily_salt)[0:16]

	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}
