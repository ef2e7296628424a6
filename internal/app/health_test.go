package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"planningpoker/internal/config"
)

func TestHealthEndpoint(t *testing.T) {
	svc := New(config.Config{}, &fakeKV{})
	server := NewHTTPServer(svc, "*", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantReady  string
	}{
		{name: "store reachable", wantStatus: http.StatusOK, wantReady: "ready"},
		{name: "store down", pingErr: errors.New("dial tcp: connection refused"), wantStatus: http.StatusServiceUnavailable, wantReady: "not_ready"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeKV{pingFn: func(context.Context) error { return tc.pingErr }}
			server := NewHTTPServer(New(config.Config{}, store), "*", nil)

			req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
			rr := httptest.NewRecorder()
			server.Handler().ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			var response map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if response["status"] != tc.wantReady {
				t.Errorf("expected status=%s, got %v", tc.wantReady, response["status"])
			}
			checks, _ := response["checks"].(map[string]any)
			storeCheck, _ := checks["store"].(map[string]any)
			if tc.pingErr != nil && storeCheck["error"] != tc.pingErr.Error() {
				t.Errorf("expected store error to be reported, got %v", storeCheck)
			}
		})
	}
}

func TestMiddlewareSetsHeaders(t *testing.T) {
	server := NewHTTPServer(New(config.Config{}, &fakeKV{}), "https://poker.example", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request id echoed, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://poker.example" {
		t.Errorf("unexpected CORS origin %q", got)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("unexpected Cache-Control %q", got)
	}
}
