package metrics

import (
	"io"
	"math"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestSampleBounds(t *testing.T) {
	edges := []float64{0, 1e-18, 0.5, 0.9999, math.Nextafter(1, 0)}
	for _, u := range edges {
		s := NewSampler(fixedSource(u)).Sample()
		if s.ResponseTime < 0.1 || s.ResponseTime >= 1.0 {
			t.Errorf("u=%v: response time %v outside [0.1, 1.0)", u, s.ResponseTime)
		}
		if s.RequestCount != SyntheticRequestCount {
			t.Errorf("u=%v: request count %d, want %d", u, s.RequestCount, SyntheticRequestCount)
		}
	}

	if got := NewSampler(fixedSource(0)).Sample().ResponseTime; got != 0.1 {
		t.Errorf("Lower bound should map to 0.1, got %v", got)
	}
}

func TestDefaultSourceBounds(t *testing.T) {
	sampler := NewSampler(nil)
	for i := 0; i < 10000; i++ {
		v := sampler.Sample().ResponseTime
		if v < 0.1 || v >= 1.0 {
			t.Fatalf("Sample %d: %v outside [0.1, 1.0)", i, v)
		}
	}
}

func TestSampleText(t *testing.T) {
	text := Sample{RequestCount: 100, ResponseTime: 0.55}.Text()
	if text != "request_count 100\nresponse_time 0.55\n" {
		t.Errorf("Unexpected text %q", text)
	}

	lines := strings.Split(strings.TrimSuffix(NewSampler(nil).Sample().Text(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	fields := strings.Fields(lines[1])
	if len(fields) != 2 || fields[0] != "response_time" {
		t.Fatalf("Malformed response_time line %q", lines[1])
	}
	if _, err := strconv.ParseFloat(fields[1], 64); err != nil {
		t.Errorf("response_time value is not decimal: %v", err)
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.ObserveRequest("/health", "GET", "200", 0.001)
	c.ObserveRequest("/health", "GET", "200", 0.002)
	c.ObserveRequest("unmatched", "GET", "404", 0.001)
	c.SimulatedError()
	c.RateLimited("/error")

	if got := testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("/health", "GET", "200")); got != 2 {
		t.Errorf("Expected 2 health requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.simulatedErrorsTotal); got != 1 {
		t.Errorf("Expected 1 simulated error, got %v", got)
	}
	if got := testutil.ToFloat64(c.httpRateLimitedTotal.WithLabelValues("/error")); got != 1 {
		t.Errorf("Expected 1 rate limited request, got %v", got)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/prometheus", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"beacon_http_requests_total", "beacon_http_request_latency_seconds", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Exposition missing %s", name)
		}
	}
}
