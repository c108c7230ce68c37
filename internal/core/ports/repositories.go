package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LedgerRepository owns token balances. Every mutation is a single conditional
// statement and must run inside the caller's transaction.
type LedgerRepository interface {
	// Credit adds amount, creating the balance row if needed.
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, tokenType string, amount decimal.Decimal) error
	// Debit subtracts amount only if the balance covers it; returns domain.ErrInsufficientBalance otherwise.
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, tokenType string, amount decimal.Decimal) error
	GetBalance(ctx context.Context, userID uuid.UUID, tokenType string) (*domain.Balance, error)
	ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
}

// AssetRepository owns asset ownership records.
type AssetRepository interface {
	GetOwnership(ctx context.Context, assetType domain.AssetType, assetID uuid.UUID) (*domain.Asset, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]domain.Asset, error)
	// TransferOwnership moves the record from one user to another; returns
	// domain.ErrNotOwner if from does not currently own it.
	TransferOwnership(ctx context.Context, tx pgx.Tx, assetType domain.AssetType, assetID, from, to uuid.UUID, acquisition domain.AcquisitionType) error
	SetTradeable(ctx context.Context, tx pgx.Tx, assetType domain.AssetType, assetID, ownerID uuid.UUID, tradeable bool) error
}

// ListingRepository owns listings. Status transitions out of ACTIVE are
// conditional updates that report whether this caller won the transition.
type ListingRepository interface {
	Create(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	ReserveForSale(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	RevertReservation(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, tx pgx.Tx, id, sellerID uuid.UUID) (bool, error)
	ListActive(ctx context.Context, params ListingListParams) ([]domain.Listing, int64, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, page, pageSize int) ([]domain.Listing, int64, error)
}

// ListingListParams holds filter + pagination for browsing listings.
type ListingListParams struct {
	ItemType *domain.AssetType
	Page     int
	PageSize int
}

// SettlementRepository owns settlement records. Stage changes are conditional
// on the expected current stage so replays never apply a step twice.
type SettlementRepository interface {
	// Create returns domain.ErrDuplicateIdempotencyKey if the key was already used.
	Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Settlement, error)
	AdvanceStage(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.SettlementStage) (bool, error)
	SetChainSubmitted(ctx context.Context, tx pgx.Tx, id uuid.UUID, txHash string) (bool, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, from domain.SettlementStage) (bool, error)
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) (bool, error)
	// ListUnresolved returns PENDING records at CHAIN_SUBMITTED or COMPENSATING,
	// plus those at LISTING_RESERVED or LEDGER_APPLIED untouched since staleBefore.
	ListUnresolved(ctx context.Context, staleBefore time.Time, limit int) ([]domain.Settlement, error)
	ListByUser(ctx context.Context, params SettlementListParams) ([]domain.Settlement, int64, error)
}

// SettlementListParams holds filter + pagination for a user's trade history.
type SettlementListParams struct {
	UserID   uuid.UUID
	Role     domain.TransactionRole
	Page     int
	PageSize int
}

// BatchRepository persists batch operation progress.
type BatchRepository interface {
	Create(ctx context.Context, b *domain.BatchOperation) error
	GetByID(ctx context.Context, id string) (*domain.BatchOperation, error)
	Start(ctx context.Context, id string) (bool, error)
	UpdateProgress(ctx context.Context, id string, completed, failed, progress int) (bool, error)
	Finish(ctx context.Context, id string, status domain.BatchStatus, errorMessage *string) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BatchOperation, error)
	ListActive(ctx context.Context) ([]domain.BatchOperation, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
