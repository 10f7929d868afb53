package aggregator

import (
	"context"
	"fmt"
	"sync"

	"feargreed/pkg/sources"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Outcome is the settled result of one fan-out. Results[i] belongs to the
// i-th configured source whether or not it succeeded.
type Outcome struct {
	Results    []sources.Result
	FinalIndex null.Float // null when no source produced a value
}

// Readings returns the readings in source order, nil where a source failed or is disabled.
func (o Outcome) Readings() []*sources.Reading {
	out := make([]*sources.Reading, len(o.Results))
	for i, r := range o.Results {
		out[i] = r.Reading
	}
	return out
}

// Value returns the reading value of the named source, or null.
func (o Outcome) Value(name string) null.Float {
	for _, r := range o.Results {
		if r.Source == name && r.Status == sources.StatusOK && r.Reading != nil {
			return null.FloatFrom(r.Reading.Value)
		}
	}
	return null.Float{}
}

// Succeeded counts the sources that produced a reading.
func (o Outcome) Succeeded() int {
	n := 0
	for _, r := range o.Results {
		if r.Status == sources.StatusOK {
			n++
		}
	}
	return n
}

type Aggregator struct {
	sources []sources.Source
	logger  *zap.Logger
}

func New(logger *zap.Logger, srcs ...sources.Source) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{sources: srcs, logger: logger}
}

// FetchAll queries every source concurrently and waits for all of them to
// settle. Each source bounds its own request, so the call takes about as
// long as the slowest source.
func (a *Aggregator) FetchAll(ctx context.Context) Outcome {
	results := make([]sources.Result, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = sources.Result{
						Source: src.Name(),
						Status: sources.StatusFailed,
						Err:    fmt.Errorf("source panicked: %v", r),
					}
					a.logger.Error("source panicked", zap.String("source", src.Name()), zap.Any("panic", r))
				}
			}()
			results[i] = src.Fetch(ctx)
		}(i, src)
	}
	wg.Wait()

	values := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Status == sources.StatusOK && r.Reading != nil {
			values = append(values, r.Reading.Value)
		}
	}

	outcome := Outcome{Results: results, FinalIndex: Mean(values)}
	a.logger.Debug("sources settled",
		zap.Int("succeeded", outcome.Succeeded()),
		zap.Int("configured", len(a.sources)),
		zap.Any("final_index", outcome.FinalIndex),
	)
	return outcome
}

// Mean returns the arithmetic mean of values rounded to the nearest integer
// (halves toward +Inf, so -1.5 becomes -1), or null for an empty slice.
func Mean(values []float64) null.Float {
	if len(values) == 0 {
		return null.Float{}
	}

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(values)))).Add(decimal.NewFromFloat(0.5)).Floor()
	return null.FloatFrom(avg.InexactFloat64())
}
