// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/pixelset/internal/grid"
)

// TestCSRFToken is the token NewJSONRequest attaches when asked to.
const TestCSRFToken = "test-csrf-token"

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request from the loopback address, which
// the /debug/ routes require.
func NewTestRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

// NewJSONRequest creates a test request with body encoded as JSON. With csrf
// set, the request carries a matching anti-forgery cookie and header.
func NewJSONRequest(t *testing.T, method, path string, body interface{}, csrf bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if csrf {
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: TestCSRFToken})
		req.Header.Set("X-CSRFToken", TestCSRFToken)
	}
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// GridData returns the wire encoding of a rows x cols grid filled with c.
func GridData(t *testing.T, rows, cols int, c grid.Color) string {
	t.Helper()
	m := grid.NewMatrix(rows, cols)
	for _, row := range m {
		for i := range row {
			row[i] = c
		}
	}
	buf, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("encode grid: %v", err)
	}
	return string(buf)
}
