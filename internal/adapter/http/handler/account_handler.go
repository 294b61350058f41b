package handler

import (
	"stream-ledger/internal/adapter/http/dto"
	"stream-ledger/internal/adapter/http/middleware"
	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"
	"stream-ledger/pkg/apperror"
	"stream-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler exposes the caller's available balance.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Me handles GET /api/v1/accounts/me.
func (h *AccountHandler) Me(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	acc, err := h.accountSvc.GetAccount(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toAccountResponse(acc))
}

// Fund handles POST /api/v1/accounts/me/fund, the external on-ramp.
func (h *AccountHandler) Fund(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	acc, err := h.accountSvc.Fund(c.Request.Context(), caller, *req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toAccountResponse(acc))
}

func toAccountResponse(a *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		Address:   a.Address.String(),
		Balance:   a.Balance.String(),
		CreatedAt: formatTime(a.CreatedAt),
	}
}
