package handler

import (
	"strconv"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet read endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /api/v1/wallets/:owner_id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	wallet, err := h.walletSvc.Balance(c.Request.Context(), c.Param("owner_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalanceResponse(wallet))
}

// GetHistory handles GET /api/v1/wallets/:owner_id/history.
func (h *WalletHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, apperror.Validation("limit must be an integer"))
			return
		}
		limit = v
	}

	records, err := h.walletSvc.History(c.Request.Context(), c.Param("owner_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransferView, 0, len(records))
	for i := range records {
		items = append(items, dto.NewTransferView(&records[i]))
	}
	response.OK(c, items)
}
