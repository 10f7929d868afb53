package server

import (
	"errors"
	"net/http"
	"strconv"

	"feargreed/internal/fng/freshness"
	"feargreed/internal/fng/model"
	"feargreed/internal/fng/refresh"
	"feargreed/internal/fng/trigger"
	"feargreed/pkg/storage/history"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func errorBody(code, details string) apiError {
	return apiError{Error: code, Details: details}
}

// aggregateResponse flattens the payload next to the cached flag.
type aggregateResponse struct {
	Cached bool `json:"cached"`
	*model.AggregatePayload
}

func (s *Server) handleAggregate(c *gin.Context) {
	resp, err := s.aggregates.Current(c.Request.Context())
	switch {
	case errors.Is(err, freshness.ErrNoData):
		c.JSON(http.StatusServiceUnavailable, errorBody("no_data", "No stored readings and all sources failed"))
		return
	case err != nil:
		s.logger.Error("aggregate error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("aggregation_failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, aggregateResponse{Cached: resp.Cached, AggregatePayload: resp.Payload})
}

func (s *Server) handleLatestRecord(c *gin.Context) {
	latest, err := s.history.Latest(c.Request.Context())
	if err != nil {
		s.logger.Error("latest-record error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("latest_record_failed", err.Error()))
		return
	}
	if latest == nil {
		c.JSON(http.StatusNotFound, errorBody("not_found", "No history rows recorded yet"))
		return
	}

	c.JSON(http.StatusOK, latest)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := history.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorBody("invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	rows, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("history error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("history_failed", err.Error()))
		return
	}
	if rows == nil {
		rows = []history.Record{}
	}

	c.JSON(http.StatusOK, gin.H{"count": len(rows), "records": rows})
}

func (s *Server) handleRefresh(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, errorBody("method_not_allowed", "Use POST to refresh data"))
		return
	}

	record, err := s.refresher.Refresh(c.Request.Context())
	switch {
	case errors.Is(err, refresh.ErrFetchFailed):
		c.JSON(http.StatusBadGateway, errorBody("fetch_failed", "Failed to collect data from all sources"))
		return
	case err != nil:
		s.logger.Error("refresh error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("refresh_failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) handleTrigger(c *gin.Context) {
	var body struct {
		NextRun string `json:"next_run"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			s.logger.Warn("trigger: failed to parse request body", zap.Error(err))
		}
	}

	res, err := s.trigger.Invoke(c.Request.Context(), body.NextRun)
	switch {
	case errors.Is(err, trigger.ErrMissingBaseURL):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "missing_base_url"})
		return
	case err != nil:
		// scheduler-facing body keeps the message key its callers parse
		c.JSON(http.StatusInternalServerError, gin.H{"error": "exception", "message": err.Error()})
		return
	}

	c.Data(res.Status, "application/json", res.Body)
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.history.IsHealthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "connected"})
}
