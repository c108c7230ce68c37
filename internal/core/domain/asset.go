package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssetType is the kind of item that can be owned and traded.
type AssetType string

const (
	AssetTypeGame     AssetType = "GAME"
	AssetTypeAgent    AssetType = "AGENT"
	AssetTypeGameItem AssetType = "GAME_ITEM"
)

// Valid reports whether t is a known asset type.
func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeGame, AssetTypeAgent, AssetTypeGameItem:
		return true
	}
	return false
}

// AcquisitionType records how the current owner came to hold an asset.
type AcquisitionType string

const (
	AcquisitionCreated     AcquisitionType = "CREATED"
	AcquisitionPurchased   AcquisitionType = "PURCHASED"
	AcquisitionRewarded    AcquisitionType = "REWARDED"
	AcquisitionTransferred AcquisitionType = "TRANSFERRED"
)

// Asset is an ownership record. Exactly one owner exists per (AssetType, AssetID).
type Asset struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	AssetType       AssetType       `json:"asset_type"`
	AssetID         uuid.UUID       `json:"asset_id"`
	AcquisitionType AcquisitionType `json:"acquisition_type"`
	ContractAddress *string         `json:"contract_address,omitempty"`
	TokenID         *string         `json:"token_id,omitempty"`
	Tradeable       bool            `json:"is_tradeable"`
	AcquiredAt      time.Time       `json:"acquired_at"`
}

// OnChain reports whether the asset has an NFT representation that must move
// with the off-chain record.
func (a *Asset) OnChain() bool {
	return a.ContractAddress != nil && *a.ContractAddress != "" &&
		a.TokenID != nil && *a.TokenID != ""
}
