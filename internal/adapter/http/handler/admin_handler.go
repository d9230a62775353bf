package handler

import (
	"strconv"
	"strings"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultAdminLimit = 100
	maxAdminLimit     = 1000
	defaultLookback   = 24 * time.Hour
)

// AdminHandler serves the privileged endpoints under /admin. Access checks
// and read auditing happen in middleware.
type AdminHandler struct {
	auditSvc      ports.AuditService
	adjustmentSvc ports.AdjustmentService
	verifierSvc   ports.VerifierService
	orphanAge     time.Duration
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auditSvc ports.AuditService, adjustmentSvc ports.AdjustmentService, verifierSvc ports.VerifierService, orphanAge time.Duration) *AdminHandler {
	return &AdminHandler{
		auditSvc:      auditSvc,
		adjustmentSvc: adjustmentSvc,
		verifierSvc:   verifierSvc,
		orphanAge:     orphanAge,
	}
}

// ListAudit handles GET /api/v1/admin/audit.
func (h *AdminHandler) ListAudit(c *gin.Context) {
	filter := domain.AuditFilter{
		ActorID:    c.Query("actor_id"),
		Action:     domain.AuditAction(c.Query("action")),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
	}

	var err error
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Limit, err = parseLimit(c); err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.auditSvc.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AuditEventView, 0, len(events))
	for i := range events {
		items = append(items, dto.NewAuditEventView(&events[i]))
	}
	response.OK(c, items)
}

// Adjust handles POST /api/v1/admin/adjustments.
func (h *AdminHandler) Adjust(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.adjustmentSvc.Adjust(c.Request.Context(), actor, ports.AdjustmentRequest{
		OwnerID:  req.OwnerID,
		Currency: strings.ToUpper(req.Currency),
		Amount:   dto.AmountFromMinor(*req.AmountMinor),
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewAdjustmentResponse(result))
}

// VerifyTransfer handles GET /api/v1/admin/transfers/:id/verify.
func (h *AdminHandler) VerifyTransfer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("transfer id must be a UUID"))
		return
	}

	result, err := h.verifierSvc.Verify(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Reconcile handles GET /api/v1/admin/reconcile. Without since, the last 24h
// are checked.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	since, err := parseTimeQuery(c, "since")
	if err != nil {
		response.Error(c, err)
		return
	}
	if since == nil {
		t := time.Now().Add(-defaultLookback)
		since = &t
	}
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.verifierSvc.Reconcile(c.Request.Context(), *since, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// ListOrphans handles GET /api/v1/admin/orphans. older_than is a Go duration.
func (h *AdminHandler) ListOrphans(c *gin.Context) {
	olderThan := h.orphanAge
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			response.Error(c, apperror.Validation("older_than must be a non-negative duration"))
			return
		}
		olderThan = d
	}
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.verifierSvc.FindOrphans(c.Request.Context(), olderThan, limit)
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

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation(name + " must be an RFC3339 timestamp")
	}
	return &t, nil
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultAdminLimit, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperror.Validation("limit must be a positive integer")
	}
	return min(v, maxAdminLimit), nil
}
