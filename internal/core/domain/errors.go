package domain

import "errors"

// Sentinel errors returned by repositories. Services map them to apperror codes.
var (
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrNotOwner                = errors.New("not the owner")
	ErrDuplicateListing        = errors.New("item already listed")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// Chain errors that no amount of retrying will fix.
var (
	ErrInvalidSignature         = errors.New("invalid transaction signature")
	ErrInsufficientOnChainFunds = errors.New("insufficient on-chain funds")
	ErrNonRetryable             = errors.New("non-retryable chain error")
)
