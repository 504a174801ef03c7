/*
errors.go - Centralized error types for the credit ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is / the helpers at the bottom
  instead of matching strings.

ERROR CATEGORIES:
  1. Business outcomes - expected, surfaced to users (not found,
     insufficient credit, refunded credit, invalid amount)
  2. Transient failures - optimistic-lock conflicts, retried internally
  3. Corruption - broken statement chain; never retried, never masked

SEE ALSO:
  - engine.go: retry policy for transient failures
  - statement.go: chain verification raising ChainBreakError
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCreditNotFound is returned when a referenced credit doesn't exist
	// in the caller's organization.
	ErrCreditNotFound = errors.New("credit not found")

	// ErrAllocationNotFound is returned when a referenced allocation
	// doesn't exist.
	ErrAllocationNotFound = errors.New("allocation not found")

	// ErrInsufficientCredit is returned when an allocation exceeds the
	// credit's available balance.
	ErrInsufficientCredit = errors.New("insufficient credit balance")

	// ErrCreditRefunded is returned for any mutating operation against a
	// refunded credit. Refund is terminal.
	ErrCreditRefunded = errors.New("credit has been refunded")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrCreditHasAllocations is returned when deleting a credit that has
	// allocation history. Only untouched credits may be deleted.
	ErrCreditHasAllocations = errors.New("credit has linked allocations")

	// ErrConcurrentModification is returned when a compare-and-swap on a
	// credit balance loses to a concurrent writer. Retried internally a
	// bounded number of times before surfacing.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrLedgerChainBroken indicates statement corruption: a movement whose
	// saldo_anterior or saldo_atual does not follow from its predecessor.
	// This is fatal. It is never retried and never repaired automatically.
	ErrLedgerChainBroken = errors.New("ledger chain broken")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientCreditError reports how far an allocation overshot.
type InsufficientCreditError struct {
	CreditID  CreditID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit %s: available %s, requested %s",
		e.CreditID, e.Available, e.Requested)
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// ChainBreakError pinpoints the first movement violating chain integrity.
type ChainBreakError struct {
	ClientID   ClientID
	MovementID MovementID
	Expected   decimal.Decimal
	Got        decimal.Decimal
	Detail     string
}

func (e *ChainBreakError) Error() string {
	return fmt.Sprintf("ledger chain broken for client %s at movement %s: %s (expected %s, got %s)",
		e.ClientID, e.MovementID, e.Detail, e.Expected, e.Got)
}

func (e *ChainBreakError) Unwrap() error { return ErrLedgerChainBroken }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCreditNotFound) || errors.Is(err, ErrAllocationNotFound)
}

// IsClientError returns true for expected business outcomes caused by the
// request itself. These map to 4xx at the HTTP edge.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrCreditRefunded) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrCreditHasAllocations)
}

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsCorruption returns true for data-integrity failures that must be
// surfaced as hard errors.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrLedgerChainBroken)
}
