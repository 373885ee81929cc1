package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/users", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_OriginMatching(t *testing.T) {
	cases := []struct {
		allow  []string
		origin string
		ok     bool
	}{
		{nil, "https://desk.example.com", false},
		{[]string{"https://desk.example.com"}, "https://desk.example.com", true},
		{[]string{"https://desk.example.com"}, "https://desk.example.com.evil.io", false},
		{[]string{"HTTPS://Desk.Example.com"}, "https://desk.example.com", true},
		{[]string{"*.example.com"}, "https://admin.example.com", true},
		{[]string{"*.example.com"}, "https://notexample.com", false},
		{[]string{"*.example.com"}, "https://example.com", false},
	}

	for _, c := range cases {
		rec := serveCORS(c.allow, http.MethodGet, c.origin)
		assert.Equal(t, http.StatusOK, rec.Code, "simple requests always reach the handler")

		got := rec.Header().Get("Access-Control-Allow-Origin")
		if c.ok {
			assert.Equal(t, c.origin, got, "allow=%v origin=%s", c.allow, c.origin)
			assert.Contains(t, rec.Header().Values("Vary"), "Origin")
		} else {
			assert.Empty(t, got, "allow=%v origin=%s", c.allow, c.origin)
		}
	}
}

func TestCORS_NoOriginIsUntouched(t *testing.T) {
	rec := serveCORS([]string{"https://desk.example.com"}, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_Preflight(t *testing.T) {
	allow := []string{"https://desk.example.com"}

	t.Run("allowed", func(t *testing.T) {
		rec := serveCORS(allow, http.MethodOptions, "https://desk.example.com")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		rec := serveCORS(allow, http.MethodOptions, "https://attacker.test")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	})
}
