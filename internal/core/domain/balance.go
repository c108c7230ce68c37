package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTokenType is the platform token listings are priced in.
const DefaultTokenType = "PLT"

// AmountScale is the number of fractional digits a token amount may carry.
// It equals the ERC-20 decimals of the platform token and the scale of every
// NUMERIC amount column, so stored values are never rounded.
const AmountScale = 18

// ValidAmount reports whether d is a positive amount representable at AmountScale.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && -d.Exponent() <= AmountScale
}

// Balance is a user's holding of one token type. Amount never goes below zero;
// the store enforces that on every debit.
type Balance struct {
	UserID    uuid.UUID       `json:"user_id"`
	TokenType string          `json:"token_type"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Covers reports whether the balance can pay amount.
func (b *Balance) Covers(amount decimal.Decimal) bool {
	return b != nil && b.Amount.GreaterThanOrEqual(amount)
}
