package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/metrics"
)

// TokenValidator validates the raw Authorization header.
// Implemented by auth.TokenManager.
type TokenValidator interface {
	Validate(ctx context.Context, header string) auth.ValidationResult
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger    *slog.Logger
	Validator TokenValidator
	Metrics   metrics.Recorder
}

// Authenticate returns a middleware that guards protected routes.
// The Authorization header is used verbatim as the session token. Any
// result other than accepted ends the request with the status and message
// carried by the result; otherwise the principal is placed in the context.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := cfg.Validator.Validate(r.Context(), r.Header.Get("Authorization"))
			recorder.IncTokenValidation(result.Status.String())

			if !result.Accepted() {
				attrs := []any{
					slog.String("reason", result.Status.String()),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				}

				if result.Status == auth.ResultUnavailable {
					if result.Err != nil {
						attrs = append(attrs, slog.String("error", result.Err.Error()))
					}
					cfg.Logger.Error("principal lookup failed", attrs...)
				} else {
					cfg.Logger.Warn("authentication failed", attrs...)
				}

				writeMessage(w, result.Status.HTTPStatus(), result.Status.Message())
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.Int64("user_id", result.Principal.ID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			setRequestUser(r.Context(), result.Principal.ID)
			ctx := auth.ContextWithPrincipal(r.Context(), result.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// messageResponse is the body of every rejection.
type messageResponse struct {
	Message string `json:"message"`
}

// writeMessage writes a {"message": ...} JSON response.
func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(messageResponse{Message: message})
}
