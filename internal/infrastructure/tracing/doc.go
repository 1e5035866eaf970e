/*
Package tracing provides lightweight request tracing for the API.

Each request gets a span. Trace context propagates through the X-Trace-ID and
X-Span-ID headers, so a UI can correlate its calls with server logs. Finished
spans are collected on a buffered channel and written to the structured log
at debug level.

# Usage

	tracer := tracing.New("ghostview", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracing.Trace(ctx, tracer, "tab.save", func(ctx context.Context) error {
		return manager.Save(id)
	})
*/
package tracing
