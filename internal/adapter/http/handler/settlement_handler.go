package handler

import (
	"errors"
	"io"
	"strings"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key that makes a purchase
// safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// SettlementHandler handles purchase and trade history endpoints.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Purchase handles POST /api/v1/listings/:id/purchase.
// Replies 201 for a finished purchase, 202 while an on-chain transfer is pending.
func (h *SettlementHandler) Purchase(c *gin.Context) {
	buyerID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" {
		response.Error(c, apperror.Validation("Idempotency-Key header is required"))
		return
	}
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key header is too long"))
		return
	}

	// The body is optional; only on-chain items need a destination wallet.
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	st, err := h.settlementSvc.PurchaseItem(c.Request.Context(), ports.PurchaseRequest{
		BuyerID:        buyerID,
		ListingID:      listingID,
		IdempotencyKey: key,
		BuyerAddress:   req.BuyerAddress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if st.Status == domain.SettlementStatusPending {
		response.Accepted(c, toSettlementResponse(st))
		return
	}
	response.Created(c, toSettlementResponse(st))
}

// Get handles GET /api/v1/me/transactions/:id.
func (h *SettlementHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	st, err := h.settlementSvc.GetSettlement(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toSettlementResponse(st))
}

// List handles GET /api/v1/me/transactions?role=BUYER|SELLER.
func (h *SettlementHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	role := domain.TransactionRole(strings.ToUpper(c.Query("role")))
	switch role {
	case domain.RoleAny, domain.RoleBuyer, domain.RoleSeller:
	default:
		response.Error(c, apperror.Validation("role must be BUYER or SELLER"))
		return
	}

	page, pageSize := pagination(c)
	settlements, total, err := h.settlementSvc.GetUserTransactions(c.Request.Context(), ports.SettlementListParams{
		UserID:   userID,
		Role:     role,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.SettlementResponse, 0, len(settlements))
	for i := range settlements {
		items = append(items, toSettlementResponse(&settlements[i]))
	}
	response.Page(c, items, page, pageSize, total)
}
