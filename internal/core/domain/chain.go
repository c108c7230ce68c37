package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferKind selects the contract call used for an on-chain transfer.
type TransferKind string

const (
	TransferNFT   TransferKind = "NFT"   // ERC-721 transferFrom
	TransferToken TransferKind = "TOKEN" // ERC-20 transfer
)

// TransferRequest is a single on-chain transfer submitted by the custody signer.
type TransferRequest struct {
	Kind     TransferKind    `json:"kind"`
	Contract string          `json:"contract"`
	To       string          `json:"to"`
	TokenID  string          `json:"token_id,omitempty"` // NFT only
	Amount   decimal.Decimal `json:"amount"`             // TOKEN only, in whole tokens
}

// Receipt is the subset of a transaction receipt the pipeline needs.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Success     bool   `json:"success"`
}

// Confirmations returns how many blocks deep the receipt is at head.
func (r *Receipt) Confirmations(head uint64) uint64 {
	if r == nil || head < r.BlockNumber {
		return 0
	}
	return head - r.BlockNumber + 1
}

// ConfirmationOutcome is the final result the monitor reports for a hash.
type ConfirmationOutcome string

const (
	OutcomeConfirmed ConfirmationOutcome = "CONFIRMED"
	OutcomeFailed    ConfirmationOutcome = "FAILED"
	OutcomeTimeout   ConfirmationOutcome = "TIMEOUT"
)

// ConfirmationEvent is emitted exactly once per tracked hash.
type ConfirmationEvent struct {
	Outcome      ConfirmationOutcome
	TxHash       string
	SettlementID uuid.UUID
	BlockNumber  uint64
	Reason       string
}
