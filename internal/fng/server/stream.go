package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"feargreed/internal/fng/freshness"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream pushes the current aggregate over a websocket: once on
// connect, then every StreamInterval, until the client goes away.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Drain incoming frames so close and ping control messages are handled.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.StreamInterval)
	defer ticker.Stop()

	for {
		if err := s.pushAggregate(ctx, conn); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushAggregate(ctx context.Context, conn *websocket.Conn) error {
	var frame any
	resp, err := s.aggregates.Current(ctx)
	switch {
	case errors.Is(err, freshness.ErrNoData):
		frame = errorBody("no_data", "No stored readings and all sources failed")
	case err != nil:
		s.logger.Error("stream aggregate error", zap.Error(err))
		frame = errorBody("aggregation_failed", err.Error())
	default:
		frame = aggregateResponse{Cached: resp.Cached, AggregatePayload: resp.Payload}
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.StreamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}
