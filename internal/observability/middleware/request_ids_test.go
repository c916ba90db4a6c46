package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentlink/internal/netutil"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func findRecord(t *testing.T, buf *bytes.Buffer, msg string) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		if rec["msg"] == msg {
			return rec
		}
	}
	t.Fatalf("no %q record in logs", msg)
	return nil
}

func TestWithRequestAndTraceEchoesInboundIDs(t *testing.T) {
	captureLogs(t)
	var seenReq, seenTrace string
	h := WithRequestAndTrace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenReq = RequestIDFromContext(r.Context())
		seenTrace = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("X-Trace-ID", "trace-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seenReq)
	assert.Equal(t, "trace-1", seenTrace)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "trace-1", rec.Header().Get("X-Trace-ID"))
}

func TestWithRequestAndTraceGeneratesIDs(t *testing.T) {
	captureLogs(t)
	h := WithRequestAndTrace(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
	assert.Len(t, rec.Header().Get("X-Trace-ID"), 36)
	assert.NotEqual(t, rec.Header().Get("X-Request-ID"), rec.Header().Get("X-Trace-ID"))
}

func TestFinishedRequestLogTruncatesUserAgent(t *testing.T) {
	buf := captureLogs(t)
	h := WithRequestAndTrace(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("User-Agent", strings.Repeat("ü", netutil.MaxUserAgentLength+50))
	h.ServeHTTP(httptest.NewRecorder(), req)

	rec := findRecord(t, buf, "finished request")
	ua, ok := rec["user_agent"].(string)
	require.True(t, ok, "user_agent missing: %v", rec)
	assert.Equal(t, netutil.MaxUserAgentLength, utf8.RuneCountInString(ua))
	assert.Equal(t, "/auth/login", rec["path"])
}
