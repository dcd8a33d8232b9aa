package planner

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
)

var (
	// ErrInsufficientBalance is shared with the compression selector so either
	// source matches errors.Is.
	ErrInsufficientBalance = compression.ErrInsufficientBalance
	ErrTooManyInputs       = compression.ErrTooManyInputs
	ErrSwapRejected        = errors.New("swap rejected")
	ErrInvalidAction       = errors.New("invalid action")
)

// InsufficientBalanceError reports the shortfall for one mint.
type InsufficientBalanceError struct {
	Mint      string
	Requested uint64
	Available *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance of %s: requested %d, available %s", e.Mint, e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// QuoteServiceError wraps a failure of the swap instruction service.
type QuoteServiceError struct {
	Err error
}

func (e *QuoteServiceError) Error() string { return "quote service: " + e.Err.Error() }

func (e *QuoteServiceError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAction, fmt.Sprintf(format, args...))
}
