package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingHandler handles listing endpoints.
type ListingHandler struct {
	marketSvc ports.MarketplaceService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(marketSvc ports.MarketplaceService) *ListingHandler {
	return &ListingHandler{marketSvc: marketSvc}
}

// Create handles POST /api/v1/listings.
func (h *ListingHandler) Create(c *gin.Context) {
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.ListItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		response.Error(c, apperror.Validation("item_id must be a UUID"))
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	listing, err := h.marketSvc.ListItem(c.Request.Context(), ports.ListItemRequest{
		SellerID: sellerID,
		ItemType: domain.AssetType(req.ItemType),
		ItemID:   itemID,
		Price:    price,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toListingResponse(listing))
}

// List handles GET /api/v1/listings.
func (h *ListingHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	params := ports.ListingListParams{Page: page, PageSize: pageSize}
	if t := c.Query("item_type"); t != "" {
		itemType := domain.AssetType(t)
		if !itemType.Valid() {
			response.Error(c, apperror.Validation("item_type must be one of GAME, AGENT, GAME_ITEM"))
			return
		}
		params.ItemType = &itemType
	}

	listings, total, err := h.marketSvc.ListActive(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ListingResponse, 0, len(listings))
	for i := range listings {
		items = append(items, toListingResponse(&listings[i]))
	}
	response.Page(c, items, page, pageSize, total)
}

// Get handles GET /api/v1/listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	listing, err := h.marketSvc.GetListing(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toListingResponse(listing))
}

// Cancel handles DELETE /api/v1/listings/:id.
func (h *ListingHandler) Cancel(c *gin.Context) {
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	listing, err := h.marketSvc.CancelListing(c.Request.Context(), id, sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toListingResponse(listing))
}

// Mine handles GET /api/v1/me/listings.
func (h *ListingHandler) Mine(c *gin.Context) {
	sellerID, ok := currentUser(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	listings, total, err := h.marketSvc.ListMyListings(c.Request.Context(), sellerID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ListingResponse, 0, len(listings))
	for i := range listings {
		items = append(items, toListingResponse(&listings[i]))
	}
	response.Page(c, items, page, pageSize, total)
}
