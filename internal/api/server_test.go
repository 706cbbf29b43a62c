package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(zap.NewNop()).Handler(), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestServer_ReadyzFollowsRunState(t *testing.T) {
	t.Parallel()

	server := NewServer(nil)

	rec := serve(t, server.Handler(), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	server.SetReady(true)
	rec = serve(t, server.Handler(), "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestServer_MetricsExposesRequestCounts(t *testing.T) {
	t.Parallel()

	server := NewServer(zap.NewNop())
	serve(t, server.Handler(), "/healthz")
	serve(t, server.Handler(), "/nope")

	rec := serve(t, server.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `voterstat_http_requests_total{code="200",route="/healthz"}`)
	require.Contains(t, body, `voterstat_http_requests_total{code="404",route="unmatched"}`)
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	server := NewServer(zap.NewNop())

	rec := serve(t, server.Handler(), "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "run-42")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "run-42", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	server := NewServer(zap.New(core))
	h := server.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := serve(t, h, "/explode")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	server := NewServer(zap.New(core))

	serve(t, server.Handler(), "/readyz")

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/readyz", fields["path"])
	require.EqualValues(t, http.StatusServiceUnavailable, fields["status"])
	require.NotEmpty(t, fields["request_id"])
}
