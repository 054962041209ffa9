package httpx_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func doFrom(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	extract := httpx.JSONFieldKeyExtractor("email")

	t.Run("reads field and restores body", func(t *testing.T) {
		body := `{"email":" Ada@Example.com ","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		require.Equal(t, "ada@example.com", extract(req))

		var got struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		rec := httptest.NewRecorder()
		require.NoError(t, httpx.DecodeJSON(rec, req, &got))
		require.Equal(t, "x", got.Password)
	})

	t.Run("missing or non-string field", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"email":42}`, `not json`, ``} {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			require.Empty(t, extract(req), "body %q", body)
		}
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"bob@example.com"}`))
	req.RemoteAddr = "192.168.1.1:12345"

	extractor := httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor, httpx.JSONFieldKeyExtractor("email"))
	require.Equal(t, "192.168.1.1:bob@example.com", extractor(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1", extractor(req), "empty parts are skipped")
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("blocks requests over limit", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3})(okHandler)

		for i := range 3 {
			require.Equal(t, http.StatusOK, doFrom(h, "192.168.1.1:1").Code, "request %d should succeed", i+1)
		}
		rec := doFrom(h, "192.168.1.1:1")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2})(okHandler)

		for range 2 {
			require.Equal(t, http.StatusOK, doFrom(h, "192.168.1.1:1").Code)
		}
		require.Equal(t, http.StatusTooManyRequests, doFrom(h, "192.168.1.1:1").Code)
		require.Equal(t, http.StatusOK, doFrom(h, "192.168.1.2:1").Code)
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		empty := func(*http.Request) string { return "" }
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, empty)(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, doFrom(h, "192.168.1.1:1").Code)
		}
	})

	t.Run("reject hook and headers", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1})
		var rejected []string
		rl.OnReject = func(_ *http.Request, key string) { rejected = append(rejected, key) }
		h := rl.Middleware(httpx.IPKeyExtractor)(okHandler)

		require.Equal(t, http.StatusOK, doFrom(h, "10.0.0.1:1").Code)
		rec := doFrom(h, "10.0.0.1:1")

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
		require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
		require.Contains(t, rec.Body.String(), "error_description")
		require.Equal(t, []string{"10.0.0.1"}, rejected)
	})
}

func TestDefaultLimitsOrdering(t *testing.T) {
	l := httpx.DefaultLimits()
	for name, c := range map[string]httpx.RateLimitConfig{"auth": l.Auth, "write": l.Write, "read": l.Read} {
		require.Positive(t, c.RequestsPerWindow, name)
		require.Positive(t, c.Window, name)
		require.Positive(t, c.Burst, name)
	}
	require.Less(t, l.Auth.RequestsPerWindow, l.Write.RequestsPerWindow)
	require.Less(t, l.Write.RequestsPerWindow, l.Read.RequestsPerWindow)
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	tests := []struct {
		name string
		env  map[string]string
		want httpx.RateLimitConfig
	}{
		{"no env uses defaults", nil, def},
		{"override requests", map[string]string{"REQUESTS": "50"}, httpx.RateLimitConfig{RequestsPerWindow: 50, Window: time.Minute, Burst: 10}},
		{"override window", map[string]string{"WINDOW_SEC": "120"}, httpx.RateLimitConfig{RequestsPerWindow: 10, Window: 2 * time.Minute, Burst: 10}},
		{"override all", map[string]string{"REQUESTS": "200", "WINDOW_SEC": "30", "BURST": "250"}, httpx.RateLimitConfig{RequestsPerWindow: 200, Window: 30 * time.Second, Burst: 250}},
		{"invalid values", map[string]string{"REQUESTS": "invalid", "WINDOW_SEC": "-10", "BURST": "0"}, def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv("RATELIMIT_TEST_"+k, v)
			}
			require.Equal(t, tt.want, httpx.ParseRateLimitFromEnv("TEST", def))
		})
	}

	t.Run("LimitsFromEnv", func(t *testing.T) {
		t.Setenv("RATELIMIT_AUTH_REQUESTS", "1000")
		require.Equal(t, 1000, httpx.LimitsFromEnv().Auth.RequestsPerWindow)
	})
}

func BenchmarkRateLimitManyIPs(b *testing.B) {
	h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1000000, Window: time.Minute, Burst: 1000})(okHandler)

	for i := 0; b.Loop(); i++ {
		doFrom(h, fmt.Sprintf("192.168.%d.%d:12345", i%255, (i/255)%255))
	}
}
