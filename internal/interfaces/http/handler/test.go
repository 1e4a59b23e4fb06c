package handler

import (
	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/application/grading"
	"ai-tutor-api/internal/interfaces/http/dto"
)

// TestHandler 课程测验
type TestHandler struct {
	svc *grading.Service
}

func NewTestHandler(svc *grading.Service) *TestHandler {
	return &TestHandler{svc: svc}
}

// StartTest 开始或继续课程测验；新建返回 201，已有未提交测验返回 200
// @Summary 开始测验
// @Tags Tests
// @Produce json
// @Param id path string true "课程 ID"
// @Success 200 {object} dto.Response[dto.TestResponse]
// @Success 201 {object} dto.Response[dto.TestResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/courses/{id}/tests [post]
func (h *TestHandler) StartTest(c *gin.Context) {
	test, created, err := h.svc.StartTest(c.Request.Context(), currentAccountID(c), dto.BindID(c))
	if err != nil {
		respondError(c, err, "failed to start test")
		return
	}
	if created {
		dto.Created(c, dto.ToTestResponse(test))
		return
	}
	dto.Success(c, dto.ToTestResponse(test))
}

// SubmitTest 提交作答并由 AI 评分
// @Summary 提交测验
// @Tags Tests
// @Accept json
// @Produce json
// @Param id path string true "测验 ID"
// @Param body body dto.SubmitTestRequest true "作答"
// @Success 200 {object} dto.Response[dto.SubmitTestResponse]
// @Failure 402 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/tests/{id}/submit [post]
func (h *TestHandler) SubmitTest(c *gin.Context) {
	var req dto.SubmitTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.SubmitTest(c.Request.Context(), grading.SubmitInput{
		AccountID: currentAccountID(c),
		TestID:    dto.BindID(c),
		Answers:   req.ToSubmissions(),
		Model:     req.Model,
	})
	if err != nil {
		respondError(c, err, "failed to submit test")
		return
	}
	dto.Success(c, dto.ToSubmitTestResponse(result))
}

// GetTest 测验详情，仅限本人
// @Summary 测验详情
// @Tags Tests
// @Produce json
// @Param id path string true "测验 ID"
// @Success 200 {object} dto.Response[dto.TestResponse]
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/tests/{id} [get]
func (h *TestHandler) GetTest(c *gin.Context) {
	test, err := h.svc.GetTest(c.Request.Context(), currentAccountID(c), dto.BindID(c))
	if err != nil {
		respondError(c, err, "failed to get test")
		return
	}
	dto.Success(c, dto.ToTestResponse(test))
}

// ListMyTests 当前学生的测验
// @Summary 我的测验
// @Tags Tests
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.TestSummaryResponse]
// @Router /v1/tests/my-tests [get]
func (h *TestHandler) ListMyTests(c *gin.Context) {
	result, err := h.svc.ListMyTests(c.Request.Context(), currentAccountID(c), dto.BindPagination(c))
	if err != nil {
		respondError(c, err, "failed to list tests")
		return
	}
	dto.SuccessWithPage(c, dto.ToTestSummaryList(result.Items), dto.NewPageMeta(result))
}

// Leaderboard 课程测验排行榜
// @Summary 测验排行榜
// @Tags Tests
// @Produce json
// @Param id path string true "课程 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.LeaderboardEntryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/tests/leaderboard/{id} [get]
func (h *TestHandler) Leaderboard(c *gin.Context) {
	result, err := h.svc.Leaderboard(c.Request.Context(), dto.BindID(c), dto.BindPagination(c))
	if err != nil {
		respondError(c, err, "failed to load leaderboard")
		return
	}
	dto.SuccessWithPage(c, dto.ToLeaderboard(result.Items), dto.NewPageMeta(result))
}
