package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ai-tutor-api/pkg/metrics"
)

// probePaths 探活与指标抓取路径，不计入请求指标与追踪
var probePaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/live":    {},
	"/metrics": {},
}

func isProbePath(path string) bool {
	_, ok := probePaths[path]
	return ok
}

// Metrics Prometheus 请求指标；未匹配路由统一记为 unmatched，避免路径基数膨胀
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isProbePath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		if size := c.Request.ContentLength; size > 0 {
			metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(size))
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
