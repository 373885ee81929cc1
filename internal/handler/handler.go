// Package handler provides HTTP request handlers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/handler/dto"
	"github.com/userdesk/userdesk/internal/model"
	"github.com/userdesk/userdesk/internal/service"
)

// Response messages.
const (
	msgNotFound           = "Not Found"
	msgMethodNotAllowed   = "Method Not Allowed"
	msgUnauthorized       = "Unauthorized user"
	msgUserNotFound       = "User Not Found"
	msgUserDeleted        = "User Deleted"
	msgEmailExists        = "Email already exists"
	msgInvalidBody        = "Invalid request body"
	msgServiceUnavailable = "Service Unavailable"
)

// Auditor records account activity. Implemented by audit.Publisher.
// Record must not block the request.
type Auditor interface {
	Record(eventType model.AuditEventType, actorID, subjectID int64, ip string)
}

// record is a nil-safe Auditor call.
func record(a Auditor, r *http.Request, eventType model.AuditEventType, subjectID int64) {
	if a == nil {
		return
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	a.Record(eventType, auth.UserIDFromContext(r.Context()), subjectID, ip)
}

// Handler serves the router-level fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, msgNotFound)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

// handleServiceError maps service errors to HTTP responses.
// Anything unrecognised is a store or codec failure and becomes a 503.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, service.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, service.ErrEmailExists):
		writeMessage(w, http.StatusConflict, msgEmailExists)
	case errors.Is(err, service.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("service_unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, dto.MessageResponse{
			Message: msgServiceUnavailable,
			Error:   sanitizeError(err),
		})
	}
}

// sanitizeError describes a failure without leaking driver messages,
// connection strings or ciphertext.
func sanitizeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return "a backing service is unavailable"
	}
}

// decodeJSON decodes a request body, rejecting unknown trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// writeMessage writes a {"message": ...} JSON response.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.MessageResponse{Message: message})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing useful left to do
		_ = err
	}
}
