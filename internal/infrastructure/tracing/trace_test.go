package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer() (*Tracer, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return New("moonlit", zap.New(core)), logs
}

func TestStartSpanPropagatesTrace(t *testing.T) {
	tracer, _ := newObservedTracer()
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, _ := tracer.StartSpan(ctx, "child")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
	assert.Equal(t, parent.TraceID, GetTraceID(ctx))
	assert.Equal(t, parent.SpanID, GetSpanID(ctx))
}

func TestTraceSubmitsSpan(t *testing.T) {
	tracer, logs := newObservedTracer()
	defer tracer.Close()

	boom := errors.New("boom")
	err := tracer.Trace(context.Background(), "host.launch", map[string]string{"host": "10.0.0.2"},
		func(ctx context.Context) error {
			assert.NotEmpty(t, GetSpanID(ctx))
			return boom
		})
	assert.ErrorIs(t, err, boom)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("span completed with error").Len() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, logs.FilterField(zap.String("host", "10.0.0.2")).Len())
}

func TestTraceNilTracer(t *testing.T) {
	var tracer *Tracer
	called := false
	err := tracer.Trace(context.Background(), "noop", nil, func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestSubmitAfterClose(t *testing.T) {
	tracer, _ := newObservedTracer()
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	assert.NotPanics(t, func() { tracer.Submit(span) })
}

func TestInjectExtract(t *testing.T) {
	tracer, _ := newObservedTracer()
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")
	headers := map[string]string{}
	InjectTraceContext(ctx, headers)

	traceID, spanID := ExtractTraceContext(headers)
	assert.Equal(t, span.TraceID, traceID)
	assert.Equal(t, span.SpanID, spanID)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer()
	defer tracer.Close()

	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/session", func(c *gin.Context) {
		assert.NotEmpty(t, GetTraceID(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("X-Trace-ID", "trace-from-client")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-from-client", w.Header().Get("X-Trace-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Span-ID"))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("span completed").Len() == 1
	}, time.Second, 10*time.Millisecond)
}
