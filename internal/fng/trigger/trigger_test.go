package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feargreed/config"
)

// go test -v --run TestResolveBaseURL
func TestResolveBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.SchedulerConfig
		want string
	}{
		{"base url wins", config.SchedulerConfig{BaseURL: "https://fng.example.com/", DeployURL: "https://deploy.example.com", Dev: true}, "https://fng.example.com"},
		{"deploy url", config.SchedulerConfig{DeployURL: "https://deploy.example.com"}, "https://deploy.example.com"},
		{"dev fallback", config.SchedulerConfig{Dev: true}, "http://localhost:8080"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveBaseURL(tc.cfg, ":8080")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if _, err := ResolveBaseURL(config.SchedulerConfig{}, ":8080"); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("expected ErrMissingBaseURL, got %v", err)
	}
}

// go test -v --run TestInvokeSuccess
func TestInvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/fng/refresh" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"index_time":"2025-03-01T12:00:00.000Z","final_index":71}`))
	}))
	defer srv.Close()

	tr := New(config.SchedulerConfig{BaseURL: srv.URL, Timeout: time.Second}, ":8080", nil)
	res, err := tr.Invoke(context.Background(), "2025-03-01T13:00:00Z")
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if res.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Status)
	}

	var body struct {
		OK      bool   `json:"ok"`
		NextRun string `json:"next_run"`
		Payload struct {
			FinalIndex float64 `json:"final_index"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.OK || body.NextRun != "2025-03-01T13:00:00Z" || body.Payload.FinalIndex != 71 {
		t.Errorf("unexpected body: %s", res.Body)
	}
}

// go test -v --run TestInvokeProxiesFailure
func TestInvokeProxiesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"fetch_failed"}`))
	}))
	defer srv.Close()

	tr := New(config.SchedulerConfig{BaseURL: srv.URL}, ":8080", nil)
	res, err := tr.Invoke(context.Background(), "")
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if res.Status != http.StatusBadGateway {
		t.Fatalf("expected proxied 502, got %d", res.Status)
	}

	var body map[string]any
	if err := json.Unmarshal(res.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "refresh_failed" || body["body"] != `{"error":"fetch_failed"}` {
		t.Errorf("unexpected body: %s", res.Body)
	}
}

// go test -v --run TestInvokeMissingBaseURL
func TestInvokeMissingBaseURL(t *testing.T) {
	_, err := New(config.SchedulerConfig{}, ":8080", nil).Invoke(context.Background(), "")
	if !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("expected ErrMissingBaseURL, got %v", err)
	}
}

// go test -v --run TestNextRun
func TestNextRun(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 34, 56, 0, time.UTC)
	if got := NextRun(now, time.Hour); !got.Equal(time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected next run: %s", got)
	}

	onBoundary := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	if got := NextRun(onBoundary, time.Hour); !got.Equal(onBoundary.Add(time.Hour)) {
		t.Errorf("expected strictly later run, got %s", got)
	}
}

// go test -v --run TestSchedulerFires
func TestSchedulerFires(t *testing.T) {
	hits := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		_, _ = w.Write([]byte(`{"index_time":"x","final_index":1}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Scheduler{
		Trigger: New(config.SchedulerConfig{BaseURL: srv.URL}, ":8080", nil),
		Every:   50 * time.Millisecond,
	}
	s.Start(ctx)

	select {
	case <-hits:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire")
	}
}
