package httpx_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"remote addr", nil, "192.168.1.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 192.168.1.1"}, "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.2"}, "203.0.113.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.IPKeyExtractor(req))
		})
	}
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	t.Run("reads the field and restores the body", func(t *testing.T) {
		body := `{"login":"Alice@Example.com","password":"secret123"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		require.Equal(t, "alice@example.com", httpx.JSONFieldKeyExtractor("login")(req))

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(rest))
	})

	t.Run("missing field or invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
		require.Empty(t, httpx.JSONFieldKeyExtractor("login")(req))

		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
		require.Empty(t, httpx.JSONFieldKeyExtractor("login")(req))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	anonymous := httpx.CompositeKeyExtractor(":", httpx.SubjectKeyExtractor, httpx.IPKeyExtractor)
	require.Equal(t, "192.168.1.1", anonymous(req))

	req = req.WithContext(httpx.WithSubject(req.Context(), "01HZX"))
	require.Equal(t, "01HZX:192.168.1.1", anonymous(req))
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("blocks requests over limit", func(t *testing.T) {
		limited := httpx.RateLimitByIP(httpx.RateLimitConfig{
			RequestsPerWindow: 3, Window: time.Minute, Burst: 3,
		})(okHandler())

		for i := range 3 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Contains(t, rec.Body.String(), `"notifications"`)
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		limited := httpx.RateLimitByIP(httpx.RateLimitConfig{
			RequestsPerWindow: 1, Window: time.Minute, Burst: 1,
		})(okHandler())

		for _, addr := range []string{"192.168.1.1:1", "192.168.1.2:1"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("login attempts limited per identifier", func(t *testing.T) {
		limited := httpx.RateLimitByIPAndJSONField(httpx.RateLimitConfig{
			RequestsPerWindow: 1, Window: time.Minute, Burst: 1,
		}, "login")(okHandler())

		send := func(login string) int {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"login":"`+login+`"}`))
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			return rec.Code
		}

		require.Equal(t, http.StatusOK, send("alice"))
		require.Equal(t, http.StatusTooManyRequests, send("alice"))
		require.Equal(t, http.StatusOK, send("bob"))
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		limited := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
			RequestsPerWindow: 1, Window: time.Minute, Burst: 1,
		}, func(*http.Request) string { return "" })(okHandler())

		for range 3 {
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestRateLimitProfilesFromEnv(t *testing.T) {
	env := map[string]string{
		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_WINDOW_SEC": "30",
		"RATELIMIT_STRICT_BURST":      "50",
		"RATELIMIT_PUBLIC_REQUESTS":   "-4",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	p := httpx.RateLimitProfilesFromEnv(lookup)
	require.Equal(t, httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: 30 * time.Second, Burst: 50}, p.Strict)
	require.Equal(t, httpx.ModerateLimit, p.Moderate)
	require.Equal(t, httpx.PublicLimit, p.Public, "invalid overrides are ignored")
}
