package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingStatus represents the lifecycle state of a marketplace listing.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "ACTIVE"
	ListingStatusSold      ListingStatus = "SOLD"
	ListingStatusCancelled ListingStatus = "CANCELLED"
)

// Listing offers one item for sale at a fixed price.
type Listing struct {
	ID        uuid.UUID       `json:"id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	ItemType  AssetType       `json:"item_type"`
	ItemID    uuid.UUID       `json:"item_id"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Status    ListingStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsActive returns true if the listing can still be purchased or cancelled.
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// IsTerminal returns true once the listing is sold or cancelled.
func (l *Listing) IsTerminal() bool {
	return l.Status == ListingStatusSold || l.Status == ListingStatusCancelled
}
