package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/userdesk/userdesk/internal/handler/dto"
	"github.com/userdesk/userdesk/internal/model"
)

// Audit trail page sizes.
const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditReader lists persisted audit events. Implemented by
// repository.Repository.
type AuditReader interface {
	ListAuditEvents(ctx context.Context, subjectID int64, limit int) ([]*model.AuditEvent, error)
}

// AuditHandler serves the audit trail of an account.
type AuditHandler struct {
	reader AuditReader
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(reader AuditReader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		reader: reader,
		logger: logger,
	}
}

// List handles GET /users/{id}/audit.
// Events are newest first; limit defaults to 50 and is capped at 200.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	limit := defaultAuditLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = min(n, maxAuditLimit)
	}

	events, err := h.reader.ListAuditEvents(r.Context(), id, limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAuditListResponse(events))
}
