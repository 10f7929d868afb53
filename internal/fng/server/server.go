package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"feargreed/internal/fng/freshness"
	"feargreed/internal/fng/trigger"
	"feargreed/pkg/storage/history"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Aggregates answers dashboard reads (see freshness.Controller).
type Aggregates interface {
	Current(ctx context.Context) (freshness.Response, error)
}

// Refresher runs an unconditional fetch-and-persist.
type Refresher interface {
	Refresh(ctx context.Context) (*history.Record, error)
}

// History is the read side of the history store.
type History interface {
	Latest(ctx context.Context) (*history.Record, error)
	Recent(ctx context.Context, limit int) ([]history.Record, error)
	IsHealthy(ctx context.Context) bool
}

// Trigger calls the refresh endpoint on behalf of a scheduler.
type Trigger interface {
	Invoke(ctx context.Context, nextRun string) (trigger.Result, error)
}

type Options struct {
	Addr                string
	StreamInterval      time.Duration
	StreamWriteTimeout  time.Duration
	ShutdownGracePeriod time.Duration
}

// Server exposes the Fear & Greed API over HTTP.
type Server struct {
	opts       Options
	aggregates Aggregates
	refresher  Refresher
	history    History
	trigger    Trigger
	logger     *zap.Logger

	engine *gin.Engine
	srv    *http.Server
}

func New(opts Options, aggregates Aggregates, refresher Refresher, hist History, trig Trigger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = 5 * time.Minute
	}
	if opts.StreamWriteTimeout <= 0 {
		opts.StreamWriteTimeout = 10 * time.Second
	}
	if opts.ShutdownGracePeriod <= 0 {
		opts.ShutdownGracePeriod = 5 * time.Second
	}

	s := &Server{
		opts:       opts,
		aggregates: aggregates,
		refresher:  refresher,
		history:    hist,
		trigger:    trig,
		logger:     logger,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger))

	api := r.Group("/api/fng")
	api.GET("/aggregate", s.handleAggregate)
	api.GET("/latest-record", s.handleLatestRecord)
	api.GET("/history", s.handleHistory)
	api.Any("/refresh", s.handleRefresh)
	api.POST("/trigger", s.handleTrigger)
	api.GET("/stream", s.handleStream)

	r.GET("/health", s.handleHealth)
	return r
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownGracePeriod)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("http server starting", zap.String("addr", s.opts.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
