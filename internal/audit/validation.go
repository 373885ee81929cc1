package audit

import (
	"fmt"

	"github.com/userdesk/userdesk/internal/model"
)

const clientKeyLength = 16

// ValidatePayload validates audit event payload fields.
func ValidatePayload(payload Payload) error {
	if !model.AuditEventType(payload.Type).Valid() {
		return fmt.Errorf("unknown event type %q", payload.Type)
	}
	if payload.ActorID < 0 || payload.SubjectID < 0 {
		return fmt.Errorf("ids must not be negative")
	}
	if len(payload.ClientKey) != clientKeyLength || !isHex(payload.ClientKey) {
		return fmt.Errorf("client_key must be %d hex chars", clientKeyLength)
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
