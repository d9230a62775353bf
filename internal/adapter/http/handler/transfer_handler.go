package handler

import (
	"strings"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxIdempotencyKeyLen = 128

// TransferHandler handles POST /transfers.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Transfer handles POST /api/v1/transfers. The sender is the token subject.
// A fresh transfer answers 201, a replayed key answers 200.
func (h *TransferHandler) Transfer(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var key *string
	if raw := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotency)); raw != "" {
		if len(raw) > maxIdempotencyKeyLen {
			response.Error(c, apperror.Validation("Idempotency-Key must be at most 128 characters"))
			return
		}
		key = &raw
	}

	result, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderID:       actor.ID,
		RecipientID:    req.RecipientID,
		Amount:         dto.AmountFromMinor(*req.AmountMinor),
		Currency:       strings.ToUpper(req.Currency),
		Note:           req.Note,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Stored(c, result.IsDuplicate, dto.NewTransferResponse(result))
}
