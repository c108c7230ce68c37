package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementStatus is the externally visible outcome of a purchase.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusCompleted SettlementStatus = "COMPLETED"
	SettlementStatusFailed    SettlementStatus = "FAILED"
)

// SettlementStage is the persisted position of a purchase in the settlement
// state machine. Replays resume from the recorded stage.
type SettlementStage string

const (
	StageInitiated       SettlementStage = "INITIATED"
	StageListingReserved SettlementStage = "LISTING_RESERVED"
	StageLedgerApplied   SettlementStage = "LEDGER_APPLIED"
	StageChainSubmitted  SettlementStage = "CHAIN_SUBMITTED"
	StageChainConfirmed  SettlementStage = "CHAIN_CONFIRMED"
	StageCompleted       SettlementStage = "COMPLETED"
	StageCompensating    SettlementStage = "COMPENSATING"
	StageFailed          SettlementStage = "FAILED"
)

// Failure reasons recorded on FAILED settlements.
const (
	FailureInsufficientBalance    = "insufficient_balance"
	FailureListingRevertFailed    = "listing_revert_failed"
	FailureLedgerError            = "ledger_error"
	FailureChainSubmission        = "chain_submission_failed"
	FailureChainReverted          = "chain_reverted"
	FailureCompensationIncomplete = "compensation_incomplete"
)

// Settlement records one purchase attempt, keyed by its idempotency key.
type Settlement struct {
	ID             uuid.UUID        `json:"id"`
	IdempotencyKey string           `json:"-"`
	BuyerID        uuid.UUID        `json:"buyer_id"`
	SellerID       uuid.UUID        `json:"seller_id"`
	ListingID      uuid.UUID        `json:"listing_id"`
	ItemType       AssetType        `json:"item_type"`
	ItemID         uuid.UUID        `json:"item_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	BuyerAddress   *string          `json:"buyer_address,omitempty"`
	ChainTxHash    *string          `json:"chain_tx_hash,omitempty"`
	Status         SettlementStatus `json:"status"`
	Stage          SettlementStage  `json:"stage"`
	FailureReason  *string          `json:"failure_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// IsTerminal returns true once the settlement is COMPLETED or FAILED.
func (s *Settlement) IsTerminal() bool {
	return s.Status == SettlementStatusCompleted || s.Status == SettlementStatusFailed
}

// AwaitingChain returns true while an on-chain transfer is outstanding.
func (s *Settlement) AwaitingChain() bool {
	return s.Status == SettlementStatusPending &&
		s.Stage == StageChainSubmitted &&
		s.ChainTxHash != nil && *s.ChainTxHash != ""
}

// NeedsCompensation returns true if a previous compensation did not finish.
func (s *Settlement) NeedsCompensation() bool {
	return s.Status == SettlementStatusPending && s.Stage == StageCompensating
}

// TransactionRole filters settlement history by the user's side of the trade.
type TransactionRole string

const (
	RoleAny    TransactionRole = ""
	RoleBuyer  TransactionRole = "BUYER"
	RoleSeller TransactionRole = "SELLER"
)
