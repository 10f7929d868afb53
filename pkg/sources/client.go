package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every upstream request.
const DefaultTimeout = 10 * time.Second

var (
	errEmptyData  = errors.New("empty data")
	errMissingVal = errors.New("missing value field")
)

// restClient wraps a resty client with the per-source timeout and logger.
type restClient struct {
	name    string
	url     string
	timeout time.Duration
	http    *resty.Client
	logger  *zap.Logger
}

func newRESTClient(name, url string, timeout time.Duration, logger *zap.Logger) *restClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &restClient{
		name:    name,
		url:     url,
		timeout: timeout,
		http:    client,
		logger:  logger.With(zap.String("source", name)),
	}
}

// get issues the GET with the bounded wait and returns the raw body of a 2xx response.
func (c *restClient) get(ctx context.Context, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode())
	}

	return resp.Body(), nil
}

// fail logs the failure and converts it into a settled Result.
func (c *restClient) fail(err error) Result {
	c.logger.Warn("source fetch failed", zap.Error(err))
	return failed(c.name, err)
}

// decode unmarshals body into out, wrapping malformed payloads.
func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// coerceNumber converts a JSON number or numeric string into a finite float64.
func coerceNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errMissingVal
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("decode value: %w", err)
	}

	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, fmt.Errorf("non-numeric value %q", val)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", val)
		}
		f = parsed
	case nil:
		return 0, errMissingVal
	default:
		return 0, fmt.Errorf("non-numeric value %s", string(raw))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %s", string(raw))
	}
	return f, nil
}
