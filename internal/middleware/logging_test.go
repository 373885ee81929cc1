package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accessLog runs one request through Logger (inside RequestID) and returns
// the raw log output plus the decoded access-log record.
func accessLog(t *testing.T, req *http.Request, h http.HandlerFunc) (string, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	RequestID(Logger(logger)(h)).ServeHTTP(httptest.NewRecorder(), req)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), "one JSON record: %s", buf.String())
	return buf.String(), rec
}

func respondWith(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) }
}

func TestLogging_Fields(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set("User-Agent", "usertool/1.0")
	req.Header.Set(RequestIDHeader, "req-abc")

	_, rec := accessLog(t, req, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	})

	assert.Equal(t, "POST", rec["method"])
	assert.Equal(t, "/users", rec["path"])
	assert.EqualValues(t, 201, rec["status_code"])
	assert.EqualValues(t, 8, rec["bytes"])
	assert.Equal(t, "usertool/1.0", rec["user_agent"])
	assert.Equal(t, "req-abc", rec["request_id"])
	assert.Contains(t, rec, "duration_ms")
	assert.NotContains(t, rec, "user_id", "anonymous request")
}

func TestLogging_AuthenticatedUserID(t *testing.T) {
	t.Parallel()

	_, rec := accessLog(t, httptest.NewRequest(http.MethodGet, "/users/77", nil),
		func(w http.ResponseWriter, r *http.Request) {
			setRequestUser(r.Context(), 77)
			w.WriteHeader(http.StatusOK)
		})
	assert.EqualValues(t, 77, rec["user_id"])
}

func TestLogging_NoCredentials(t *testing.T) {
	t.Parallel()

	const token = "Zm9vYmFyYmF6cXV4X2lkZW50aXR5.ZXhwaXJ5XzIwMjYtMTAtMTgtMjEtMzAtMDA"
	req := httptest.NewRequest(http.MethodPost, "/login?next=/users",
		strings.NewReader(`{"email":"a@b.com","password":"hunter2-secret"}`))
	req.Header.Set("Authorization", token)

	out, _ := accessLog(t, req, respondWith(http.StatusUnauthorized))

	for _, segment := range strings.Split(token, ".") {
		assert.NotContains(t, out, segment)
	}
	assert.NotContains(t, out, "hunter2-secret")
	assert.NotContains(t, out, "a@b.com")
}

func TestLevelForStatus(t *testing.T) {
	t.Parallel()

	want := map[int]slog.Level{
		http.StatusOK:                  slog.LevelInfo,
		http.StatusNoContent:           slog.LevelInfo,
		http.StatusBadRequest:          slog.LevelWarn,
		http.StatusUnauthorized:        slog.LevelWarn,
		http.StatusTooManyRequests:     slog.LevelWarn,
		http.StatusInternalServerError: slog.LevelError,
		http.StatusServiceUnavailable:  slog.LevelError,
	}
	for code, level := range want {
		assert.Equal(t, level, levelForStatus(code), "status %d", code)
	}

	_, rec := accessLog(t, httptest.NewRequest(http.MethodGet, "/readyz", nil), respondWith(http.StatusServiceUnavailable))
	assert.Equal(t, "ERROR", rec["level"])
}

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	t.Run("implicit 200 on write", func(t *testing.T) {
		sr := newStatusRecorder(httptest.NewRecorder())
		_, _ = sr.Write([]byte("hello"))
		assert.Equal(t, http.StatusOK, sr.status)
		assert.Equal(t, 5, sr.bytes)
	})

	t.Run("first WriteHeader wins", func(t *testing.T) {
		sr := newStatusRecorder(httptest.NewRecorder())
		sr.WriteHeader(http.StatusCreated)
		sr.WriteHeader(http.StatusInternalServerError)
		assert.Equal(t, http.StatusCreated, sr.status)
	})
}
