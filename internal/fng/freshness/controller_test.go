package freshness

import (
	"context"
	"errors"
	"testing"
	"time"

	"feargreed/internal/fng/memorystore"
	"feargreed/internal/fng/model"
	"feargreed/internal/fng/refresh"
	"feargreed/pkg/storage/history"

	"github.com/guregu/null/v6"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	latest *history.Record
	err    error
	calls  int
}

func (f *fakeReader) Latest(ctx context.Context) (*history.Record, error) {
	f.calls++
	return f.latest, f.err
}

type fakeRefresher struct {
	record *history.Record
	err    error
	calls  int
}

func (f *fakeRefresher) Refresh(ctx context.Context) (*history.Record, error) {
	f.calls++
	return f.record, f.err
}

func recordAt(t time.Time, final float64) *history.Record {
	return &history.Record{
		IndexTime:     history.FormatIndexTime(t),
		AlternativeMe: null.FloatFrom(final),
		FinalIndex:    null.FloatFrom(final),
	}
}

func newController(cache *memorystore.PayloadCache, r Reader, f Refresher) *Controller {
	return NewController(cache, r, f, WithClock(func() time.Time { return now }))
}

// go test -v --run TestCurrentMemoryFresh
func TestCurrentMemoryFresh(t *testing.T) {
	cache := memorystore.NewPayloadCache()
	cached := &model.AggregatePayload{IndexTime: "cached"}
	cache.Set(cached, now.Add(-3*time.Minute))

	reader := &fakeReader{}
	refresher := &fakeRefresher{}

	resp, err := newController(cache, reader, refresher).Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Cached || resp.Payload != cached {
		t.Fatalf("expected the cached payload object, got %+v", resp)
	}
	if reader.calls != 0 || refresher.calls != 0 {
		t.Errorf("expected no store or upstream calls, got store=%d refresh=%d", reader.calls, refresher.calls)
	}
}

// go test -v --run TestCurrentMemoryBoundary
func TestCurrentMemoryBoundary(t *testing.T) {
	cases := []struct {
		age        time.Duration
		wantCached bool
	}{
		{4*time.Minute + 59*time.Second, true},
		{5 * time.Minute, false},
	}

	for _, tc := range cases {
		cache := memorystore.NewPayloadCache()
		cache.Set(&model.AggregatePayload{IndexTime: "cached"}, now.Add(-tc.age))
		reader := &fakeReader{latest: recordAt(now.Add(-10*time.Minute), 50)}

		resp, err := newController(cache, reader, &fakeRefresher{}).Current(context.Background())
		if err != nil {
			t.Fatalf("age %s: unexpected error: %v", tc.age, err)
		}
		if resp.Cached != tc.wantCached {
			t.Errorf("age %s: expected cached=%v, got %v", tc.age, tc.wantCached, resp.Cached)
		}
	}
}

// go test -v --run TestCurrentDurableFresh
func TestCurrentDurableFresh(t *testing.T) {
	cache := memorystore.NewPayloadCache()
	reader := &fakeReader{latest: recordAt(now.Add(-59*time.Minute-59*time.Second), 64)}
	refresher := &fakeRefresher{}

	resp, err := newController(cache, reader, refresher).Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Cached {
		t.Error("expected cached=false for a payload built from the store")
	}
	if resp.Payload.FinalIndex.Float64 != 64 {
		t.Errorf("unexpected payload: %+v", resp.Payload)
	}
	if refresher.calls != 0 {
		t.Errorf("expected no refresh, got %d", refresher.calls)
	}

	entry, ok := cache.Get()
	if !ok || entry.Data != resp.Payload || !entry.CapturedAt.Equal(now) {
		t.Errorf("expected memory cache to be populated, got %+v", entry)
	}
}

// go test -v --run TestCurrentDurableStaleRefreshes
func TestCurrentDurableStaleRefreshes(t *testing.T) {
	cache := memorystore.NewPayloadCache()
	reader := &fakeReader{latest: recordAt(now.Add(-60*time.Minute), 30)}
	refresher := &fakeRefresher{record: recordAt(now, 71)}

	resp, err := newController(cache, reader, refresher).Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh at exactly 60m, got %d", refresher.calls)
	}
	if resp.Cached || resp.Payload.FinalIndex.Float64 != 71 {
		t.Errorf("expected fresh payload 71, got %+v", resp)
	}
	if _, ok := cache.Get(); !ok {
		t.Error("expected memory cache to be populated")
	}
}

// go test -v --run TestCurrentUnparsableIndexTime
func TestCurrentUnparsableIndexTime(t *testing.T) {
	for _, indexTime := range []string{"", "not-a-time"} {
		reader := &fakeReader{latest: &history.Record{IndexTime: indexTime, FinalIndex: null.FloatFrom(50)}}
		refresher := &fakeRefresher{record: recordAt(now, 52)}

		// a clock far in the past must not make the record look fresh
		c := NewController(memorystore.NewPayloadCache(), reader, refresher,
			WithClock(func() time.Time { return time.Unix(0, 0) }))
		if _, err := c.Current(context.Background()); err != nil {
			t.Fatalf("%q: unexpected error: %v", indexTime, err)
		}
		if refresher.calls != 1 {
			t.Errorf("%q: expected refresh attempt, got %d", indexTime, refresher.calls)
		}
	}
}

// go test -v --run TestCurrentEmptyStoreRefreshes
func TestCurrentEmptyStoreRefreshes(t *testing.T) {
	refresher := &fakeRefresher{record: recordAt(now, 40)}
	resp, err := newController(memorystore.NewPayloadCache(), &fakeReader{}, refresher).Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refresher.calls != 1 || resp.Payload.FinalIndex.Float64 != 40 {
		t.Errorf("unexpected response %+v after %d refreshes", resp, refresher.calls)
	}
}

// go test -v --run TestCurrentFallsBackToStale
func TestCurrentFallsBackToStale(t *testing.T) {
	stale := recordAt(now.Add(-5*time.Hour), 33)
	reader := &fakeReader{latest: stale}
	refresher := &fakeRefresher{err: refresh.ErrFetchFailed}

	resp, err := newController(memorystore.NewPayloadCache(), reader, refresher).Current(context.Background())
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if resp.Payload.IndexTime != stale.IndexTime || resp.Payload.FinalIndex.Float64 != 33 {
		t.Errorf("expected stale record payload, got %+v", resp.Payload)
	}
}

// go test -v --run TestCurrentNoData
func TestCurrentNoData(t *testing.T) {
	refresher := &fakeRefresher{err: refresh.ErrFetchFailed}
	_, err := newController(memorystore.NewPayloadCache(), &fakeReader{}, refresher).Current(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

// go test -v --run TestCurrentPropagatesStoreErrors
func TestCurrentPropagatesStoreErrors(t *testing.T) {
	storeErr := history.ErrStoreNotConfigured
	_, err := newController(memorystore.NewPayloadCache(), &fakeReader{err: storeErr}, &fakeRefresher{}).
		Current(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}

	persistErr := errors.New("disk full")
	_, err = newController(memorystore.NewPayloadCache(), &fakeReader{}, &fakeRefresher{err: persistErr}).
		Current(context.Background())
	if !errors.Is(err, persistErr) {
		t.Fatalf("expected persist error, got %v", err)
	}
}

// go test -v --run TestAge
func TestAge(t *testing.T) {
	if got := Age(recordAt(now.Add(-90*time.Second), 1), now); got != 90*time.Second {
		t.Errorf("expected 90s, got %s", got)
	}
	if got := Age(&history.Record{IndexTime: "garbage"}, now); got < 1000*time.Hour {
		t.Errorf("expected effectively infinite age, got %s", got)
	}
}
