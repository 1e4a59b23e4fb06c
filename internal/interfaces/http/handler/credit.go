package handler

import (
	"github.com/gin-gonic/gin"

	"ai-tutor-api/internal/application/metering"
	"ai-tutor-api/internal/interfaces/http/dto"
)

// CreditHandler 余额、流水与对账
type CreditHandler struct {
	ledger *metering.Service
}

func NewCreditHandler(ledger *metering.Service) *CreditHandler {
	return &CreditHandler{ledger: ledger}
}

// GetBalance 当前账户余额
// @Summary 当前余额
// @Tags Credits
// @Produce json
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Router /v1/me/credits [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	accountID := currentAccountID(c)
	balance, err := h.ledger.Balance(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err, "failed to get balance")
		return
	}
	dto.Success(c, dto.ToBalanceResponse(accountID, balance))
}

// ListTransactions 当前账户流水（倒序分页）
// @Summary 账本流水
// @Tags Credits
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.TransactionResponse]
// @Router /v1/me/transactions [get]
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	result, err := h.ledger.ListTransactions(c.Request.Context(), currentAccountID(c), dto.BindPagination(c))
	if err != nil {
		respondError(c, err, "failed to list transactions")
		return
	}
	dto.SuccessWithPage(c, dto.ToTransactionList(result.Items), dto.NewPageMeta(result))
}

// Reconcile 管理员对指定账户对账
// @Summary 账户对账
// @Tags Admin
// @Produce json
// @Param id path string true "账户 ID"
// @Success 200 {object} dto.Response[dto.ReconcileResponse]
// @Router /v1/admin/accounts/{id}/reconcile [get]
func (h *CreditHandler) Reconcile(c *gin.Context) {
	result, err := h.ledger.Reconcile(c.Request.Context(), dto.BindID(c))
	if err != nil {
		respondError(c, err, "failed to reconcile account")
		return
	}
	dto.Success(c, dto.ToReconcileResponse(result))
}
