package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feargreed/internal/fng/aggregator"
	"feargreed/pkg/sources"
	"feargreed/pkg/storage/history"

	"go.uber.org/zap"
)

// ErrFetchFailed means no source produced a value; nothing was persisted.
var ErrFetchFailed = errors.New("failed to collect data from all sources")

// Fetcher is satisfied by *aggregator.Aggregator.
type Fetcher interface {
	FetchAll(ctx context.Context) aggregator.Outcome
}

// Writer is the part of the history store a refresh needs.
type Writer interface {
	Upsert(ctx context.Context, record *history.Record) error
}

// Service fetches all sources and persists the result.
type Service struct {
	fetcher Fetcher
	store   Writer
	now     func() time.Time
	logger  *zap.Logger
}

func NewService(fetcher Fetcher, store Writer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fetcher: fetcher, store: store, now: time.Now, logger: logger}
}

// WithClock replaces the clock used to stamp new records.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Refresh runs the aggregator unconditionally and stores a record stamped
// with the current time. It returns ErrFetchFailed when every source failed.
func (s *Service) Refresh(ctx context.Context) (*history.Record, error) {
	outcome := s.fetcher.FetchAll(ctx)
	if !outcome.FinalIndex.Valid {
		s.logger.Warn("all sources failed", zap.Int("configured", len(outcome.Results)))
		return nil, ErrFetchFailed
	}

	record := &history.Record{
		IndexTime:     history.FormatIndexTime(s.now()),
		AlternativeMe: outcome.Value(sources.NameAlternative),
		CMC:           outcome.Value(sources.NameCoinMarketCap),
		Coinstats:     outcome.Value(sources.NameCoinStats),
		FinalIndex:    outcome.FinalIndex,
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist reading: %w", err)
	}

	s.logger.Info("stored new reading",
		zap.String("index_time", record.IndexTime),
		zap.Float64("final_index", record.FinalIndex.Float64),
		zap.Int("sources", outcome.Succeeded()),
	)
	return record, nil
}
