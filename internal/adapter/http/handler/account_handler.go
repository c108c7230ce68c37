package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's balances and inventory.
type AccountHandler struct {
	marketSvc ports.MarketplaceService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(marketSvc ports.MarketplaceService) *AccountHandler {
	return &AccountHandler{marketSvc: marketSvc}
}

// Balances handles GET /api/v1/me/balances.
func (h *AccountHandler) Balances(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	balances, err := h.marketSvc.GetBalances(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BalanceResponse, 0, len(balances))
	for _, b := range balances {
		items = append(items, dto.BalanceResponse{TokenType: b.TokenType, Amount: b.Amount.String()})
	}
	response.OK(c, items)
}

// Inventory handles GET /api/v1/me/inventory.
func (h *AccountHandler) Inventory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	assets, err := h.marketSvc.GetInventory(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AssetResponse, 0, len(assets))
	for _, a := range assets {
		items = append(items, dto.AssetResponse{
			AssetType:       string(a.AssetType),
			AssetID:         a.AssetID.String(),
			AcquisitionType: string(a.AcquisitionType),
			Tradeable:       a.Tradeable,
			ContractAddress: a.ContractAddress,
			TokenID:         a.TokenID,
			AcquiredAt:      formatTime(a.AcquiredAt),
		})
	}
	response.OK(c, items)
}
