// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/domain/repository"
)

// BindPagination 从查询参数绑定分页，非法值回落到默认值
func BindPagination(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), 20),
	)
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindID 从 URI 绑定资源 ID
func BindID(c *gin.Context) string {
	return c.Param("id")
}
