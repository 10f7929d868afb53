package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feargreed/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrMissingBaseURL means no deployment base URL could be resolved.
var ErrMissingBaseURL = errors.New("unable to determine site base URL")

// ResolveBaseURL picks the URL the refresh endpoint is reachable at:
// the explicit base URL, then the deploy URL, then localhost in dev.
func ResolveBaseURL(cfg config.SchedulerConfig, serverAddr string) (string, error) {
	switch {
	case cfg.BaseURL != "":
		return strings.TrimRight(cfg.BaseURL, "/"), nil
	case cfg.DeployURL != "":
		return strings.TrimRight(cfg.DeployURL, "/"), nil
	case cfg.Dev:
		addr := serverAddr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		return "http://" + addr, nil
	default:
		return "", ErrMissingBaseURL
	}
}

// Result is what the trigger hands back to its caller: the status to
// answer with and a JSON body.
type Result struct {
	Status int
	Body   json.RawMessage
}

// Trigger invokes the refresh endpoint over HTTP, the same way an external
// scheduler would.
type Trigger struct {
	cfg        config.SchedulerConfig
	serverAddr string
	http       *resty.Client
	logger     *zap.Logger
}

func New(cfg config.SchedulerConfig, serverAddr string, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/api/fng/refresh"
	}

	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	client.SetHeader("Content-Type", "application/json")

	return &Trigger{cfg: cfg, serverAddr: serverAddr, http: client, logger: logger}
}

// Invoke POSTs to the refresh endpoint. A non-2xx reply is proxied as
// {"error":"refresh_failed",...} with the same status.
func (t *Trigger) Invoke(ctx context.Context, nextRun string) (Result, error) {
	baseURL, err := ResolveBaseURL(t.cfg, t.serverAddr)
	if err != nil {
		t.logger.Error("refresh trigger: base url", zap.Error(err))
		return Result{}, err
	}
	target := baseURL + t.cfg.RefreshPath

	resp, err := t.http.R().
		SetContext(ctx).
		Post(target)
	if err != nil {
		t.logger.Error("refresh trigger: error invoking refresh endpoint", zap.String("target", target), zap.Error(err))
		return Result{}, fmt.Errorf("invoke %s: %w", target, err)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		text := string(resp.Body())
		t.logger.Error("refresh trigger: refresh API failed", zap.Int("status", resp.StatusCode()), zap.String("body", text))
		body, _ := json.Marshal(map[string]any{
			"error":  "refresh_failed",
			"status": resp.StatusCode(),
			"body":   text,
		})
		return Result{Status: resp.StatusCode(), Body: body}, nil
	}

	var payload struct {
		IndexTime  string   `json:"index_time"`
		FinalIndex *float64 `json:"final_index"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return Result{}, fmt.Errorf("decode refresh response: %w", err)
	}

	t.logger.Info("refresh trigger: stored new reading",
		zap.String("next_run", nextRun),
		zap.String("index_time", payload.IndexTime),
		zap.Float64p("final_index", payload.FinalIndex),
	)

	body, err := json.Marshal(map[string]any{
		"ok":       true,
		"next_run": nextRun,
		"payload":  json.RawMessage(resp.Body()),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode trigger result: %w", err)
	}
	return Result{Status: http.StatusOK, Body: body}, nil
}

// Scheduler fires the trigger at the top of every hour.
type Scheduler struct {
	Trigger *Trigger
	Every   time.Duration
	Logger  *zap.Logger
}

// Start runs until ctx is cancelled. The first run happens at the next
// boundary of Every (UTC), not at startup.
func (s *Scheduler) Start(ctx context.Context) {
	every := s.Every
	if every <= 0 {
		every = time.Hour
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		for {
			next := NextRun(time.Now(), every)
			timer := time.NewTimer(time.Until(next))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			nextRun := NextRun(next.Add(time.Second), every).Format(time.RFC3339)
			res, err := s.Trigger.Invoke(ctx, nextRun)
			if err != nil {
				logger.Error("scheduled refresh failed", zap.Error(err))
				continue
			}
			logger.Info("scheduled refresh done", zap.Int("status", res.Status), zap.String("next_run", nextRun))
		}
	}()
}

// NextRun returns the first multiple of every (in UTC) strictly after now.
func NextRun(now time.Time, every time.Duration) time.Time {
	now = now.UTC()
	return now.Truncate(every).Add(every)
}
