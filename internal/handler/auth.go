package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/userdesk/userdesk/internal/handler/dto"
	"github.com/userdesk/userdesk/internal/model"
	"github.com/userdesk/userdesk/internal/service"
)

// Authenticator runs the login flow. Implemented by service.AuthService.
type Authenticator interface {
	Login(ctx context.Context, input service.LoginInput) (*service.LoginResult, error)
}

// AuthHandler handles POST /login.
type AuthHandler struct {
	svc    Authenticator
	audit  Auditor
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. audit may be nil.
func NewAuthHandler(svc Authenticator, audit Auditor, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		audit:  audit,
		logger: logger,
	}
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	result, err := h.svc.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			record(h.audit, r, model.AuditLoginFailed, 0)
		}
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("login_succeeded",
		"user_id", result.User.ID,
	)
	record(h.audit, r, model.AuditLoginSucceeded, result.User.ID)

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		User:  dto.ToUserResponse(result.User),
		Token: result.Token,
	})
}
