package testutil

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contract struct {
	path   string
	status int
	check  func(body string) error
}

func exactBody(want string) func(string) error {
	return func(body string) error {
		if body != want {
			return fmt.Errorf("expected body %q, got %q", want, body)
		}
		return nil
	}
}

func nonEmptyBody(body string) error {
	if body == "" {
		return fmt.Errorf("expected non-empty body")
	}
	return nil
}

// CheckMetricsBody validates the two-line synthetic metrics format and the
// response_time range.
func CheckMetricsBody(body string) error {
	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	if len(lines) != 2 {
		return fmt.Errorf("expected 2 lines, got %d: %q", len(lines), body)
	}
	count := strings.Fields(lines[0])
	if len(count) != 2 || count[0] != "request_count" {
		return fmt.Errorf("malformed request_count line %q", lines[0])
	}
	if _, err := strconv.Atoi(count[1]); err != nil {
		return fmt.Errorf("request_count is not an integer: %w", err)
	}
	rt := strings.Fields(lines[1])
	if len(rt) != 2 || rt[0] != "response_time" {
		return fmt.Errorf("malformed response_time line %q", lines[1])
	}
	v, err := strconv.ParseFloat(rt[1], 64)
	if err != nil {
		return fmt.Errorf("response_time is not decimal: %w", err)
	}
	if v < 0.1 || v >= 1.0 {
		return fmt.Errorf("response_time %v outside [0.1, 1.0)", v)
	}
	return nil
}

var contracts = []contract{
	{path: "/", status: http.StatusOK, check: nonEmptyBody},
	{path: "/health", status: http.StatusOK, check: exactBody("OK")},
	{path: "/ready", status: http.StatusOK, check: exactBody("Ready")},
	{path: "/metrics", status: http.StatusOK, check: CheckMetricsBody},
	{path: "/error", status: http.StatusInternalServerError, check: exactBody("Error occurred!")},
	{path: "/nonexistent", status: http.StatusNotFound, check: func(string) error { return nil }},
}

// RunSmokeClient issues one GET per route against baseURL and verifies each
// response against its contract. It returns the first mismatch.
func RunSmokeClient(baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	baseURL = strings.TrimSuffix(baseURL, "/")

	for _, c := range contracts {
		resp, err := client.Get(baseURL + c.path)
		if err != nil {
			return fmt.Errorf("GET %s: %w", c.path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", c.path, err)
		}

		if resp.StatusCode != c.status {
			return fmt.Errorf("GET %s: expected status %d, got %d", c.path, c.status, resp.StatusCode)
		}
		if err := c.check(string(body)); err != nil {
			return fmt.Errorf("GET %s: %w", c.path, err)
		}
		fmt.Printf("GET %s -> %d\n", c.path, resp.StatusCode)
	}
	return nil
}
