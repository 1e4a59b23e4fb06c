package router

import (
	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册需认证的 v1 路由；aiLimit 只挂在会触发模型调用的接口上
func RegisterV1Routes(v1 *gin.RouterGroup, aiLimit gin.HandlerFunc, h *Handlers) {
	student := middleware.RequireRole(entity.UserRoleStudent, entity.UserRoleTeacher, entity.UserRoleAdmin)

	// 章节答疑
	chapters := v1.Group("/chapters", student)
	{
		chapters.POST("/:id/ask", aiLimit, h.Tutor.Ask)
		chapters.GET("/:id/messages", h.Tutor.ListMessages)
	}

	// 测验
	v1.POST("/courses/:id/tests", student, h.Test.StartTest)
	tests := v1.Group("/tests")
	{
		tests.GET("/my-tests", student, h.Test.ListMyTests)
		tests.GET("/leaderboard/:id", h.Test.Leaderboard)
		tests.GET("/:id", student, h.Test.GetTest)
		tests.POST("/:id/submit", student, aiLimit, h.Test.SubmitTest)
	}

	// 当前账户
	me := v1.Group("/me")
	{
		me.GET("/credits", h.Credit.GetBalance)
		me.GET("/transactions", h.Credit.ListTransactions)
	}

	// 管理
	admin := v1.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/accounts/:id/reconcile", h.Credit.Reconcile)
	}
}
