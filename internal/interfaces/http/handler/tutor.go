package handler

import (
	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/application/tutor"
	"ai-tutor-api/internal/interfaces/http/dto"
)

// TutorHandler 章节答疑
type TutorHandler struct {
	svc *tutor.Service
}

func NewTutorHandler(svc *tutor.Service) *TutorHandler {
	return &TutorHandler{svc: svc}
}

// Ask 在章节下向 AI 导师提问
// @Summary 章节答疑
// @Tags Tutor
// @Accept json
// @Produce json
// @Param id path string true "章节 ID"
// @Param body body dto.AskRequest true "问题"
// @Success 200 {object} dto.Response[dto.AskResponse]
// @Failure 402 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/chapters/{id}/ask [post]
func (h *TutorHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Ask(c.Request.Context(), tutor.AskInput{
		AccountID: currentAccountID(c),
		ChapterID: dto.BindID(c),
		Question:  req.Question,
		Model:     req.Model,
	})
	if err != nil {
		respondError(c, err, "failed to answer question")
		return
	}
	dto.Success(c, dto.ToAskResponse(result))
}

// ListMessages 章节对话历史（正序分页）
// @Summary 章节对话历史
// @Tags Tutor
// @Produce json
// @Param id path string true "章节 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.MessageResponse]
// @Router /v1/chapters/{id}/messages [get]
func (h *TutorHandler) ListMessages(c *gin.Context) {
	result, err := h.svc.ListMessages(c.Request.Context(), currentAccountID(c), dto.BindID(c), dto.BindPagination(c))
	if err != nil {
		respondError(c, err, "failed to list messages")
		return
	}
	dto.SuccessWithPage(c, dto.ToMessageList(result.Items), dto.NewPageMeta(result))
}
