package handler

import (
	"strconv"
	"time"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// currentUser returns the authenticated user, writing a 401 if absent.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return id, ok
}

// uuidParam parses a path parameter, writing a 400 on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation(name+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toListingResponse(l *domain.Listing) dto.ListingResponse {
	return dto.ListingResponse{
		ID:        l.ID.String(),
		SellerID:  l.SellerID.String(),
		ItemType:  string(l.ItemType),
		ItemID:    l.ItemID.String(),
		Price:     l.Price.String(),
		Currency:  l.Currency,
		Status:    string(l.Status),
		CreatedAt: formatTime(l.CreatedAt),
		UpdatedAt: formatTime(l.UpdatedAt),
	}
}

func toSettlementResponse(st *domain.Settlement) dto.SettlementResponse {
	return dto.SettlementResponse{
		ID:            st.ID.String(),
		ListingID:     st.ListingID.String(),
		BuyerID:       st.BuyerID.String(),
		SellerID:      st.SellerID.String(),
		ItemType:      string(st.ItemType),
		ItemID:        st.ItemID.String(),
		Amount:        st.Amount.String(),
		Currency:      st.Currency,
		Status:        string(st.Status),
		Stage:         string(st.Stage),
		ChainTxHash:   st.ChainTxHash,
		FailureReason: st.FailureReason,
		CreatedAt:     formatTime(st.CreatedAt),
		CompletedAt:   formatTimePtr(st.CompletedAt),
	}
}

func toBatchResponse(b *domain.BatchOperation) dto.BatchResponse {
	return dto.BatchResponse{
		BatchID:             b.ID,
		OperationType:       string(b.OperationType),
		Status:              string(b.Status),
		TotalOperations:     b.TotalOperations,
		CompletedOperations: b.CompletedOperations,
		FailedOperations:    b.FailedOperations,
		Progress:            b.Progress,
		ErrorMessage:        b.ErrorMessage,
		CreatedAt:           formatTime(b.CreatedAt),
		StartTime:           formatTimePtr(b.StartTime),
		EndTime:             formatTimePtr(b.EndTime),
	}
}
