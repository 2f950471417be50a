/*
Package tracing provides lightweight request and session tracing.

# Overview

Spans are created per HTTP request and around the slow steps of a
streaming session (app launch, transport start, teardown). Completed spans
are written to the structured log by a background collector.

# Usage

	tracer := tracing.New("moonlit", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracer.Trace(ctx, "host.launch", map[string]string{"host": addr},
		func(ctx context.Context) error {
			return launch(ctx)
		})

# Trace Format

Traces propagate through HTTP headers:
- X-Trace-ID: identifier for the entire flow
- X-Span-ID: identifier for the current operation

The collector buffers 1000 spans; Submit drops spans when the buffer is
full rather than block the caller.
*/
package tracing
