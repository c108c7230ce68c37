package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"math/big"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Infrastructure Ports ---

// ChainClient submits transfers to and reads state from a blockchain node.
// Implementations must be safe for concurrent use.
type ChainClient interface {
	// Name identifies the endpoint in logs and metrics (e.g. "primary", "fallback").
	Name() string
	SubmitTransfer(ctx context.Context, req domain.TransferRequest) (string, error)
	// GetReceipt returns nil, nil while the transaction is not yet mined.
	GetReceipt(ctx context.Context, txHash string) (*domain.Receipt, error)
	GetCurrentBlockNumber(ctx context.Context) (uint64, error)
	IsConnected(ctx context.Context) bool
}

// ChainCache holds short-lived chain reads (gas price, head block).
// Misses are reported as ok=false, not as errors.
type ChainCache interface {
	GetGasPrice(ctx context.Context, chain string) (*big.Int, bool, error)
	SetGasPrice(ctx context.Context, chain string, price *big.Int) error
	GetBlockNumber(ctx context.Context, chain string) (uint64, bool, error)
	SetBlockNumber(ctx context.Context, chain string, number uint64) error
	Invalidate(ctx context.Context, chain string) error
}

// SignerLock serializes nonce allocation for a custody signer across replicas
// that share the key. Lock blocks until the lock is held or ctx is done and
// returns a token that Unlock must present; the lock lapses after ttl.
type SignerLock interface {
	Lock(ctx context.Context, signer string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, signer, token string) error
}

// ConfirmationTracker watches submitted transactions and reports final outcomes
// on the Events channel.
type ConfirmationTracker interface {
	// Track starts watching txHash. Returns false if it is already tracked or was
	// recently finalized.
	Track(txHash string, settlementID uuid.UUID) bool
	Untrack(txHash string)
	Events() <-chan domain.ConfirmationEvent
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error // Evicts an entry that failed to decode
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// --- Service Ports (Business Logic) ---

// MarketplaceService covers listing lifecycle and read-side queries.
type MarketplaceService interface {
	ListItem(ctx context.Context, req ListItemRequest) (*domain.Listing, error)
	CancelListing(ctx context.Context, listingID, requesterID uuid.UUID) (*domain.Listing, error)
	GetListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error)
	ListActive(ctx context.Context, params ListingListParams) ([]domain.Listing, int64, error)
	ListMyListings(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]domain.Listing, int64, error)
	GetBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
	GetInventory(ctx context.Context, userID uuid.UUID) ([]domain.Asset, error)
}

// ListItemRequest holds validated input for creating a listing.
type ListItemRequest struct {
	SellerID uuid.UUID
	ItemType domain.AssetType
	ItemID   uuid.UUID
	Price    decimal.Decimal
	Currency string
}

// SettlementService runs purchases through the settlement state machine.
type SettlementService interface {
	PurchaseItem(ctx context.Context, req PurchaseRequest) (*domain.Settlement, error)
	GetSettlement(ctx context.Context, id, requesterID uuid.UUID) (*domain.Settlement, error)
	GetUserTransactions(ctx context.Context, params SettlementListParams) ([]domain.Settlement, int64, error)
}

// PurchaseRequest holds validated input for a purchase.
type PurchaseRequest struct {
	BuyerID        uuid.UUID
	ListingID      uuid.UUID
	IdempotencyKey string
	BuyerAddress   string // destination wallet for on-chain items; may be empty for off-chain items
}

// BatchService tracks batch operations and runs bulk on-chain transfers.
type BatchService interface {
	StartBulkTransfer(ctx context.Context, creatorID uuid.UUID, items []domain.TransferRequest) (*domain.BatchOperation, error)
	GetBatch(ctx context.Context, batchID string, requesterID uuid.UUID) (*domain.BatchOperation, error)
	CancelBatch(ctx context.Context, batchID string, requesterID uuid.UUID) (*domain.BatchOperation, error)
	ListUserBatches(ctx context.Context, userID uuid.UUID) ([]domain.BatchOperation, error)
}
