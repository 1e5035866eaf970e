package tracing

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract trace context from headers
		headers := map[string]string{
			"X-Trace-ID": c.GetHeader("X-Trace-ID"),
			"X-Span-ID":  c.GetHeader("X-Span-ID"),
		}

		traceID, parentID := ExtractTraceContext(headers)

		ctx := c.Request.Context()
		if traceID != "" {
			ctx = context.WithValue(ctx, traceIDKey, traceID)
		}
		if parentID != "" {
			ctx = context.WithValue(ctx, spanIDKey, parentID)
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.SetTag("http.method", c.Request.Method)
		if id := c.Param("id"); id != "" {
			span.SetTag("tab.id", id)
		}

		c.Request = c.Request.WithContext(ctx)

		// Inject trace context into response headers
		c.Header("X-Trace-ID", string(span.TraceID))
		c.Header("X-Span-ID", string(span.SpanID))

		start := time.Now()
		c.Next()
		span.Duration = time.Since(start)

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))

		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}

		span.Finish()
		tracer.Submit(span)
	}
}

// Trace runs fn inside a child span of ctx.
func Trace(ctx context.Context, tracer *Tracer, name string, fn func(ctx context.Context) error) error {
	if tracer == nil {
		return fn(ctx)
	}
	span, ctx := tracer.StartSpan(ctx, name)
	err := fn(ctx)
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
	tracer.Submit(span)
	return err
}
