package freshness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"feargreed/internal/fng/memorystore"
	"feargreed/internal/fng/model"
	"feargreed/internal/fng/refresh"
	"feargreed/pkg/storage/history"

	"go.uber.org/zap"
)

const (
	DefaultMemoryTTL  = 5 * time.Minute
	DefaultDurableTTL = 60 * time.Minute
)

// ErrNoData means the store is empty and no source could be reached.
var ErrNoData = errors.New("no data available")

type Reader interface {
	Latest(ctx context.Context) (*history.Record, error)
}

type Refresher interface {
	Refresh(ctx context.Context) (*history.Record, error)
}

// Response is the aggregate served to the dashboard.
type Response struct {
	Payload *model.AggregatePayload
	Cached  bool
}

// Controller decides per request whether to answer from memory, from the
// latest stored record, or by refreshing from the upstream sources.
type Controller struct {
	cache      *memorystore.PayloadCache
	store      Reader
	refresher  Refresher
	memoryTTL  time.Duration
	durableTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithTTL(memory, durable time.Duration) Option {
	return func(c *Controller) {
		if memory > 0 {
			c.memoryTTL = memory
		}
		if durable > 0 {
			c.durableTTL = durable
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewController(cache *memorystore.PayloadCache, store Reader, refresher Refresher, opts ...Option) *Controller {
	c := &Controller{
		cache:      cache,
		store:      store,
		refresher:  refresher,
		memoryTTL:  DefaultMemoryTTL,
		durableTTL: DefaultDurableTTL,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the aggregate for a dashboard request.
//
// A payload cached less than memoryTTL ago is returned as is. Otherwise the
// latest stored record is served if it is younger than durableTTL. Older or
// missing records trigger a refresh; if that fails the stale record is served,
// and only an empty store yields ErrNoData. Store errors are returned.
func (c *Controller) Current(ctx context.Context) (Response, error) {
	now := c.now()

	if payload, ok := c.cache.FreshWithin(now, c.memoryTTL); ok {
		return Response{Payload: payload, Cached: true}, nil
	}

	latest, err := c.store.Latest(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("read latest record: %w", err)
	}

	if latest != nil && Age(latest, now) < c.durableTTL {
		return c.serve(latest, now), nil
	}

	record, err := c.refresher.Refresh(ctx)
	switch {
	case err == nil:
		return c.serve(record, now), nil
	case !errors.Is(err, refresh.ErrFetchFailed):
		return Response{}, err
	case latest != nil:
		c.logger.Warn("refresh failed, serving stale record",
			zap.String("index_time", latest.IndexTime),
			zap.Duration("age", Age(latest, now)),
		)
		return c.serve(latest, now), nil
	default:
		return Response{}, ErrNoData
	}
}

func (c *Controller) serve(record *history.Record, now time.Time) Response {
	payload := model.FromRecord(record)
	c.cache.Set(payload, now)
	return Response{Payload: payload, Cached: false}
}

// Age is how long ago record was captured. A missing or unparsable index
// time counts as infinitely old.
func Age(record *history.Record, now time.Time) time.Duration {
	t, err := record.Time()
	if err != nil {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(t)
}
