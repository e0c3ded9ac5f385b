package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockcount/internal/observability"
	"github.com/odyssey-erp/stockcount/internal/session"
	"github.com/odyssey-erp/stockcount/internal/storage"
	"github.com/odyssey-erp/stockcount/jobs"
)

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o600)
}

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := session.NewService(storage.NewMirror(storage.NewMemoryStore(), "", logger), logger, session.Config{})
	metrics := observability.NewMetrics()
	require.NoError(t, metrics.ObserveSession(svc))
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionHandler: session.NewHandler(logger, svc, 0),
		JobHandler:     jobs.NewHandler(nil, logger),
		Metrics:        metrics,
	})
}

func TestRouterServesHealthAndAPI(t *testing.T) {
	h := newTestRouter(t, &Config{AppEnv: "production", RateLimitPerMinute: 100})

	for _, path := range []string{"/healthz", "/api/state", "/api/locations", "/jobs/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRouterSetsSecurityHeaders(t *testing.T) {
	h := newTestRouter(t, &Config{RateLimitPerMinute: 0})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterRateLimits(t *testing.T) {
	h := newTestRouter(t, &Config{RateLimitPerMinute: 2})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := NewLogger(&Config{LogFormat: "json", LogLevel: "warn", LogFile: path})
	logger.Info("hidden")
	logger.Warn("visible", slog.String("k", "v"))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(body), "hidden")
	require.Contains(t, string(body), `"msg":"visible"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}
