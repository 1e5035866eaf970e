package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep tab IDs out of label values.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures a tab operation
type Timer struct {
	start     time.Time
	operation string
	metrics   *Metrics
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, operation string) *Timer {
	return &Timer{
		start:     time.Now(),
		operation: operation,
		metrics:   metrics,
	}
}

// Stop stops the timer and records the outcome
func (t *Timer) Stop(outcome string) {
	if t == nil || t.metrics == nil {
		return
	}
	t.metrics.RecordTabOperation(t.operation, outcome, time.Since(t.start))
}
