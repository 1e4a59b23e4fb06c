package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ai-tutor-api/internal/interfaces/http/dto"
	"ai-tutor-api/pkg/logger"
)

// TraceIDHeader 响应中回写的 trace ID 头
const TraceIDHeader = "X-Trace-ID"

// Trace OpenTelemetry 追踪中间件，探活与指标路径不建 span
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !isProbePath(r.URL.Path)
	}))
}

// TraceContext 把 trace_id 写入日志上下文；请求结束后在 span 上标注账户与业务错误码
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		sc := span.SpanContext()
		if !sc.IsValid() {
			c.Next()
			return
		}

		traceID := sc.TraceID().String()
		spanID := sc.SpanID().String()
		c.Set("trace_id", traceID)
		c.Set("span_id", spanID)

		ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
		ctx = logger.WithContext(ctx, logger.SpanIDKey, spanID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, traceID)

		c.Next()

		if accountID := c.GetString("user_id"); accountID != "" {
			span.SetAttributes(attribute.String("tutor.account_id", accountID))
		}
		if code := c.GetString(dto.ErrorCodeKey); code != "" {
			span.SetAttributes(attribute.String("tutor.error_code", code))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(c.Writer.Status()))
		}
	}
}
