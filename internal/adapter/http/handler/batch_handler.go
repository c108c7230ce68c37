package handler

import (
	"fmt"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BatchHandler handles bulk transfer endpoints.
type BatchHandler struct {
	batchSvc ports.BatchService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batchSvc ports.BatchService) *BatchHandler {
	return &BatchHandler{batchSvc: batchSvc}
}

// StartTransfer handles POST /api/v1/batches/transfers.
// The batch runs in the background; poll GET /api/v1/batches/:id for progress.
func (h *BatchHandler) StartTransfer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.BulkTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	kind := domain.TransferKind(req.Kind)
	items := make([]domain.TransferRequest, 0, len(req.Items))
	for i, it := range req.Items {
		tr := domain.TransferRequest{
			Kind:     kind,
			Contract: it.Contract,
			To:       it.To,
			TokenID:  it.TokenID,
		}
		if it.Amount != "" {
			amount, err := decimal.NewFromString(it.Amount)
			if err != nil {
				response.Error(c, apperror.Validation(fmt.Sprintf("items[%d].amount is not a number", i)))
				return
			}
			tr.Amount = amount
		}
		items = append(items, tr)
	}

	batch, err := h.batchSvc.StartBulkTransfer(c.Request.Context(), userID, items)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, toBatchResponse(batch))
}

// Get handles GET /api/v1/batches/:id.
func (h *BatchHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	batch, err := h.batchSvc.GetBatch(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toBatchResponse(batch))
}

// Cancel handles DELETE /api/v1/batches/:id.
func (h *BatchHandler) Cancel(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	batch, err := h.batchSvc.CancelBatch(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toBatchResponse(batch))
}

// List handles GET /api/v1/me/batches.
func (h *BatchHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	batches, err := h.batchSvc.ListUserBatches(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BatchResponse, 0, len(batches))
	for i := range batches {
		items = append(items, toBatchResponse(&batches[i]))
	}
	response.OK(c, items)
}
