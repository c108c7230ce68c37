package dto

// ListItemRequest is the request body for creating a listing.
type ListItemRequest struct {
	ItemType string `json:"item_type" binding:"required,oneof=GAME AGENT GAME_ITEM"`
	ItemID   string `json:"item_id" binding:"required,uuid"`
	Price    string `json:"price" binding:"required,token_amount"`
	Currency string `json:"currency,omitempty" binding:"omitempty,safe_id,max=16"`
}

// PurchaseRequest is the optional request body for buying a listing.
// BuyerAddress is required only for items with an on-chain representation.
type PurchaseRequest struct {
	BuyerAddress string `json:"buyer_address,omitempty" binding:"omitempty,eth_address"`
}

// TransferItem is one unit of a bulk transfer.
type TransferItem struct {
	Contract string `json:"contract,omitempty" binding:"omitempty,eth_address"`
	To       string `json:"to" binding:"required,eth_address"`
	TokenID  string `json:"token_id,omitempty" binding:"omitempty,numeric,max=78"`
	Amount   string `json:"amount,omitempty" binding:"omitempty,token_amount"`
}

// BulkTransferRequest is the request body for starting a transfer batch.
type BulkTransferRequest struct {
	Kind  string         `json:"kind" binding:"required,oneof=NFT TOKEN"`
	Items []TransferItem `json:"items" binding:"required,min=1,max=1000,dive"`
}

// ListingResponse is the response body for a listing.
type ListingResponse struct {
	ID        string `json:"id"`
	SellerID  string `json:"seller_id"`
	ItemType  string `json:"item_type"`
	ItemID    string `json:"item_id"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SettlementResponse is the response body for a purchase.
type SettlementResponse struct {
	ID            string  `json:"id"`
	ListingID     string  `json:"listing_id"`
	BuyerID       string  `json:"buyer_id"`
	SellerID      string  `json:"seller_id"`
	ItemType      string  `json:"item_type"`
	ItemID        string  `json:"item_id"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	Stage         string  `json:"stage"`
	ChainTxHash   *string `json:"chain_tx_hash,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

// BatchResponse is the response body for a batch operation.
type BatchResponse struct {
	BatchID             string  `json:"batch_id"`
	OperationType       string  `json:"operation_type"`
	Status              string  `json:"status"`
	TotalOperations     int     `json:"total_operations"`
	CompletedOperations int     `json:"completed_operations"`
	FailedOperations    int     `json:"failed_operations"`
	Progress            int     `json:"progress"`
	ErrorMessage        *string `json:"error_message,omitempty"`
	CreatedAt           string  `json:"created_at"`
	StartTime           *string `json:"start_time,omitempty"`
	EndTime             *string `json:"end_time,omitempty"`
}

// BalanceResponse is one token balance.
type BalanceResponse struct {
	TokenType string `json:"token_type"`
	Amount    string `json:"amount"`
}

// AssetResponse is one owned item.
type AssetResponse struct {
	AssetType       string  `json:"asset_type"`
	AssetID         string  `json:"asset_id"`
	AcquisitionType string  `json:"acquisition_type"`
	Tradeable       bool    `json:"is_tradeable"`
	ContractAddress *string `json:"contract_address,omitempty"`
	TokenID         *string `json:"token_id,omitempty"`
	AcquiredAt      string  `json:"acquired_at"`
}
