package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func newTestServer(t *testing.T, opts Options) (*Server, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	if opts.Greeting == "" {
		opts.Greeting = "Hello, Veriff Observability!"
	}
	opts.Logger = zap.New(core)
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s, logs
}

func do(t *testing.T, h http.Handler, method, path string) (int, string, http.Header) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body), rec.Header()
}

func TestRouteContracts(t *testing.T) {
	s, _ := newTestServer(t, Options{Source: fixedSource(0.5)})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "Hello, Veriff Observability!"},
		{"/health", http.StatusOK, "OK"},
		{"/ready", http.StatusOK, "Ready"},
		{"/metrics", http.StatusOK, "request_count 100\nresponse_time 0.55\n"},
		{"/error", http.StatusInternalServerError, "Error occurred!"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				status, body, header := do(t, s.Handler(), http.MethodGet, tt.path)
				if status != tt.status {
					t.Errorf("Expected status %d, got %d", tt.status, status)
				}
				if body != tt.body {
					t.Errorf("Expected body %q, got %q", tt.body, body)
				}
				if ct := header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
					t.Errorf("Expected text/plain, got %q", ct)
				}
			}
		})
	}
}

func TestRouteTableIsFixed(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	routes := s.Routes()
	if len(routes) != 5 {
		t.Fatalf("Expected 5 routes, got %d", len(routes))
	}
	for _, rt := range routes {
		if rt.Method != http.MethodGet {
			t.Errorf("Route %s: expected GET, got %s", rt.Path, rt.Method)
		}
	}
}

func TestLoggingSideEffects(t *testing.T) {
	s, logs := newTestServer(t, Options{})

	for _, path := range []string{"/health", "/ready", "/metrics", "/health"} {
		do(t, s.Handler(), http.MethodGet, path)
	}
	if logs.Len() != 0 {
		t.Fatalf("Probe and metrics routes must not log, got %d entries", logs.Len())
	}

	do(t, s.Handler(), http.MethodGet, "/")
	home := logs.FilterMessage("home page accessed")
	if home.Len() != 1 || home.All()[0].Level != zap.InfoLevel {
		t.Errorf("Expected one INFO 'home page accessed', got %v", logs.All())
	}

	const n = 4
	for i := 0; i < n; i++ {
		do(t, s.Handler(), http.MethodGet, "/error")
	}
	errs := logs.FilterLevelExact(zap.ErrorLevel)
	if errs.Len() != n {
		t.Errorf("Expected %d ERROR entries, got %d", n, errs.Len())
	}
	for _, e := range errs.All() {
		if e.Message != "error encountered" {
			t.Errorf("Unexpected error message %q", e.Message)
		}
	}

	// error responses must not leak into other routes
	if status, body, _ := do(t, s.Handler(), http.MethodGet, "/health"); status != http.StatusOK || body != "OK" {
		t.Errorf("/health after /error: %d %q", status, body)
	}
}

func TestUnknownPathAndMethod(t *testing.T) {
	s, logs := newTestServer(t, Options{})

	if status, _, _ := do(t, s.Handler(), http.MethodGet, "/nonexistent"); status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}
	if status, _, _ := do(t, s.Handler(), http.MethodPost, "/health"); status != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", status)
	}
	if logs.FilterLevelExact(zap.ErrorLevel).Len() != 0 {
		t.Error("Routing errors must not be logged at ERROR")
	}
	if logs.Len() != 0 {
		t.Errorf("Routing errors must not be logged, got %v", logs.All())
	}
}

func TestMetricsRandomized(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		_, body, _ := do(t, s.Handler(), http.MethodGet, "/metrics")
		lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
		if len(lines) != 2 || lines[0] != "request_count 100" {
			t.Fatalf("Unexpected metrics body %q", body)
		}
		v, err := strconv.ParseFloat(strings.TrimPrefix(lines[1], "response_time "), 64)
		if err != nil {
			t.Fatalf("Bad response_time in %q: %v", body, err)
		}
		if v < 0.1 || v >= 1.0 {
			t.Fatalf("response_time %v outside [0.1, 1.0)", v)
		}
		seen[lines[1]] = true
	}
	if len(seen) < 2 {
		t.Error("Expected response_time to vary across calls")
	}
}

func TestMetricsUpperBound(t *testing.T) {
	s, _ := newTestServer(t, Options{Source: fixedSource(0.9999999999999999)})
	_, body, _ := do(t, s.Handler(), http.MethodGet, "/metrics")
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.Split(body, "response_time ")[1]), 64)
	if err != nil {
		t.Fatalf("Bad body %q: %v", body, err)
	}
	if v >= 1.0 {
		t.Errorf("response_time reached the open upper bound: %v", v)
	}
}
