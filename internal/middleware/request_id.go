// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestInfoKey contextKey = "request_info"

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client-supplied IDs before they reach the logs.
const maxRequestIDLen = 64

// requestInfo is per-request metadata shared by the middleware chain.
// Authenticate fills userID so the access log can report it after the
// handler returns.
type requestInfo struct {
	id     string
	userID int64
}

// RequestID assigns every request an ID. A well-formed X-Request-ID from the
// client is reused; anything else is replaced with a fresh UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		info := &requestInfo{id: id}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID, or "" outside RequestID.
func GetRequestID(ctx context.Context) string {
	if info := getRequestInfo(ctx); info != nil {
		return info.id
	}
	return ""
}

// setRequestUser records the authenticated user for the access log.
func setRequestUser(ctx context.Context, userID int64) {
	if info := getRequestInfo(ctx); info != nil {
		info.userID = userID
	}
}

func getRequestInfo(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return info
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
