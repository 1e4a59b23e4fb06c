package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ai-tutor-api/pkg/logger"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// RequestID 沿用上游传入的请求 ID，缺失或不合法时生成新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// validRequestID 只接受可安全写入日志与响应头的字符
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
