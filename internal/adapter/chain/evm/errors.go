package evm

import (
	"fmt"
	"strings"

	"marketplace-settlement/internal/core/domain"
)

// classify maps node rejections onto the domain's non-retryable errors. Anything
// unrecognised is returned unchanged and treated as transient by the caller.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %w", domain.ErrInsufficientOnChainFunds, err)
	case strings.Contains(msg, "invalid sender"), strings.Contains(msg, "invalid signature"):
		return fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "intrinsic gas too low"):
		return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
	}
	return err
}
