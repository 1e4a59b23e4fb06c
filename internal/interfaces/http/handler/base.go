// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/interfaces/http/dto"
	"ai-tutor-api/pkg/errors"
	"ai-tutor-api/pkg/logger"
)

// respondError 将应用错误映射为 HTTP 响应；非 AppError 记录日志并返回 500
func respondError(c *gin.Context, err error, fallback string) {
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(c.Request.Context(), fallback, err)
		}
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		})
		return
	}
	logger.Error(c.Request.Context(), fallback, err)
	dto.InternalError(c, fallback)
}

// currentAccountID 认证中间件注入的账户 ID
func currentAccountID(c *gin.Context) string {
	return c.GetString("user_id")
}
