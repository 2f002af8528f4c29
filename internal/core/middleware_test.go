package core

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"mailblast/internal/types"
)

func newTestServerForMiddleware(t *testing.T) *Server {
	t.Helper()

	// Discard handler so middleware logging does not pollute test output.
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return &Server{
		Logger: logger,
	}
}

// --- Recoverer ---

func TestRecoverer_NoPanic(t *testing.T) {
	srv := newTestServerForMiddleware(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRecoverer_PanicReturnsJSON500(t *testing.T) {
	srv := newTestServerForMiddleware(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	if resp.Error != "an unexpected error occurred" {
		t.Errorf("unexpected error message: %q", resp.Error)
	}
}

func TestRecoverer_PanicPreservesRequestID(t *testing.T) {
	srv := newTestServerForMiddleware(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("crash!")
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req_abc123"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	var resp struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response body: %v", err)
	}
	if resp.RequestID != "req_abc123" {
		t.Errorf("expected request_id %q, got %q", "req_abc123", resp.RequestID)
	}
}

func TestRecoverer_PanicWithNonStringValue(t *testing.T) {
	srv := newTestServerForMiddleware(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(42)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

// --- RequestIDMiddleware ---

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seenInContext string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = types.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	echoed := rec.Header().Get("X-Request-Id")
	if echoed == "" {
		t.Fatal("expected X-Request-Id response header to be set")
	}
	if seenInContext != echoed {
		t.Errorf("context ID %q does not match response header %q", seenInContext, echoed)
	}
}

func TestRequestID_ReusesInboundHeader(t *testing.T) {
	var seenInContext string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = types.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if seenInContext != "client-supplied-id" {
		t.Errorf("expected propagated ID, got %q", seenInContext)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "client-supplied-id" {
		t.Errorf("expected echoed ID, got %q", got)
	}
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		id := rec.Header().Get("X-Request-Id")
		if seen[id] {
			t.Fatalf("request ID %q repeated", id)
		}
		seen[id] = true
	}
}

// --- RequestLogger ---

// requestLogLine is the subset of log fields the logger middleware must emit.
type requestLogLine struct {
	Level  string `json:"level"`
	Msg    string `json:"msg"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Status int    `json:"status"`
}

func runLoggedRequest(t *testing.T, status int) requestLogLine {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var line requestLogLine
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("failed to parse log line %q: %v", buf.String(), err)
	}
	return line
}

func TestRequestLogger_RecordsMethodPathStatus(t *testing.T) {
	line := runLoggedRequest(t, http.StatusOK)

	if line.Msg != "request completed" {
		t.Errorf("unexpected log message: %q", line.Msg)
	}
	if line.Method != http.MethodPost {
		t.Errorf("expected method POST, got %q", line.Method)
	}
	if line.Path != "/send" {
		t.Errorf("expected path /send, got %q", line.Path)
	}
	if line.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", line.Status)
	}
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusFound, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tc := range cases {
		line := runLoggedRequest(t, tc.status)
		if line.Level != tc.wantLevel {
			t.Errorf("status %d: expected level %s, got %s", tc.status, tc.wantLevel, line.Level)
		}
	}
}

func TestRequestLogger_DefaultStatusIs200(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// Handler writes a body without calling WriteHeader.
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hi"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var line requestLogLine
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if line.Status != http.StatusOK {
		t.Errorf("expected implicit status 200, got %d", line.Status)
	}
}

// --- escapeJSON ---

func TestEscapeJSON(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`plain`, `plain`},
		{`with "quotes"`, `with \"quotes\"`},
		{"line\nbreak", `line\nbreak`},
		{`back\slash`, `back\\slash`},
		{"tab\there", `tab\there`},
	}

	for _, tc := range cases {
		if got := escapeJSON(tc.in); got != tc.want {
			t.Errorf("escapeJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
