package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	appctx "salesbi/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

var tracer = otel.Tracer("salesbi/http")

// Trace middleware adds request tracing context and an otel span per request.
// Incoming X-Request-ID / X-Trace-ID headers are kept, missing ones generated.
// A runId query parameter is carried into the context for log correlation.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		trace := appctx.NewTraceContext()
		if v := c.GetHeader(HeaderRequestID); v != "" {
			trace.RequestID = v
		}
		if v := c.GetHeader(HeaderTraceID); v != "" {
			trace.TraceID = v
		}
		trace.RunID = c.Query("runId")

		ctx, span := tracer.Start(appctx.WithTrace(c.Request.Context(), trace), c.Request.Method+" "+c.FullPath())
		defer span.End()
		span.SetAttributes(
			attribute.String("request.id", trace.RequestID),
			attribute.String("trace.id", trace.TraceID),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Set("trace_id", trace.TraceID)
		c.Set("request_id", trace.RequestID)

		c.Header(HeaderRequestID, trace.RequestID)
		c.Header(HeaderTraceID, trace.TraceID)

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}
