/*
Package ledger provides the client credit ledger engine.

PURPOSE:
  This package tracks prepaid client credits (created by overpayment,
  trip cancellation, or advance payment), links them to future trip
  charges, and maintains an append-only per-client statement whose
  running balance explains every change.

KEY CONCEPTS IN THIS FILE (types.go):
  - Credit: a client-owned prepaid balance with a derived status
  - Allocation: an immutable link between a Credit and a Trip charge
  - Movement: one statement (extrato) entry with a running balance
  - Typed IDs: prevent mixing credit/allocation/client identifiers

DESIGN PRINCIPLES:
  1. Precision: all amounts are decimal.Decimal, never float64
  2. Derivation: Credit status is computed from its balances, not stored
     logic scattered across call sites
  3. Immutability: Allocations and Movements are never edited; corrections
     happen through compensating entries
  4. Explicit scope: every record carries the organization id supplied by
     the caller

SEE ALSO:
  - statement.go: running-balance append and chain verification
  - engine.go: allocation/refund orchestration
  - store.go: persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	OrgID        string
	ClientID     string
	TripID       string
	CreditID     string
	AllocationID string
	MovementID   string
)

func NewCreditID() CreditID         { return CreditID(uuid.NewString()) }
func NewAllocationID() AllocationID { return AllocationID(uuid.NewString()) }
func NewMovementID() MovementID     { return MovementID(uuid.NewString()) }

// MustDecimal parses a fixed-point decimal string, returning zero on error.
// Intended for literals in seeds and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// CREDIT - Prepaid balance owned by one client
// =============================================================================

type CreditStatus string

const (
	StatusDisponivel  CreditStatus = "disponivel"  // untouched, full balance
	StatusParcial     CreditStatus = "parcial"     // partially consumed
	StatusUtilizado   CreditStatus = "utilizado"   // fully consumed
	StatusReembolsado CreditStatus = "reembolsado" // refunded in cash, terminal
)

type Credit struct {
	ID       CreditID
	OrgID    OrgID
	ClientID ClientID

	// Amount is the original credit value (valor_credito). Immutable.
	Amount decimal.Decimal
	// Available is the remaining spendable balance (saldo_disponivel).
	// Mutated only by the allocation engine and by refunds.
	Available decimal.Decimal

	Status        CreditStatus
	PaymentDate   time.Time // data_pagamento of the originating payment
	PaymentMethod string    // forma_pagamento tag (pix, cartao, dinheiro, ...)
	CreatedAt     time.Time
}

// DeriveStatus computes the status implied by (amount, available).
// Reembolsado is terminal and never derived here; it is set only by an
// explicit refund.
func DeriveStatus(amount, available decimal.Decimal) CreditStatus {
	switch {
	case available.IsZero():
		return StatusUtilizado
	case available.GreaterThanOrEqual(amount):
		return StatusDisponivel
	default:
		return StatusParcial
	}
}

// Recompute refreshes Status from the balances unless the credit has been
// refunded.
func (c *Credit) Recompute() {
	if c.Status == StatusReembolsado {
		return
	}
	c.Status = DeriveStatus(c.Amount, c.Available)
}

// Consumed returns the portion of the credit spent so far.
func (c Credit) Consumed() decimal.Decimal {
	return c.Amount.Sub(c.Available)
}

// =============================================================================
// ALLOCATION - Immutable link between a Credit and a Trip charge
// =============================================================================

// Allocation records that part of a credit paid for a trip. The amount is
// always positive; the sum of a credit's allocations must equal its
// consumed balance. Allocations are never edited: undoing one deletes the
// row and re-credits the balance through a compensating movement.
type Allocation struct {
	ID       AllocationID
	OrgID    OrgID
	CreditID CreditID
	TripID   TripID

	// BeneficiaryID is set when the credit is spent on behalf of someone
	// other than its owner (a gift transfer). Empty means the owner.
	BeneficiaryID ClientID

	Amount      decimal.Decimal // valor_utilizado, > 0
	Notes       string          // observacoes
	AllocatedAt time.Time       // data_vinculacao
}

// =============================================================================
// MOVEMENT - One statement (extrato) entry
// =============================================================================

type MovementType string

const (
	// MovementDebito increases the client's running total: consumption of
	// credit or removal of a credit in the client's favor.
	MovementDebito MovementType = "debito"
	// MovementCredito decreases the running total: credit granted to the
	// client or a reversal of a previous consumption.
	MovementCredito MovementType = "credito"
)

// ReferenceType identifies the event that caused a movement.
type ReferenceType string

const (
	RefCredit     ReferenceType = "credito"
	RefAllocation ReferenceType = "vinculacao"
	RefRefund     ReferenceType = "reembolso"
)

// Reference is a polymorphic pointer to the causing event.
type Reference struct {
	ID   string
	Type ReferenceType
}

type Movement struct {
	ID       MovementID
	OrgID    OrgID
	ClientID ClientID

	Type        MovementType
	Amount      decimal.Decimal // valor, always > 0; direction comes from Type
	Description string
	TripID      TripID // optional
	Reference   Reference

	OccurredAt time.Time // data_transacao

	// Running balance chain: Previous must equal the prior movement's
	// Balance, and Balance must equal Apply(Previous, Amount).
	Previous decimal.Decimal // saldo_anterior
	Balance  decimal.Decimal // saldo_atual

	CreatedAt time.Time
}

// Apply computes the running balance after a movement of this type.
// This is the single encoding of the sign convention: debito adds to the
// running total, credito subtracts.
func (t MovementType) Apply(previous, amount decimal.Decimal) decimal.Decimal {
	if t == MovementDebito {
		return previous.Add(amount)
	}
	return previous.Sub(amount)
}

// =============================================================================
// BALANCE SUMMARY - Aggregated view over a client's credits
// =============================================================================

// BalanceSummary aggregates the non-refunded credits of a client.
// Refunded credits are excluded from the totals (their value left the
// system as cash) but counted in StatusCounts.
type BalanceSummary struct {
	ClientID     ClientID
	Total        decimal.Decimal // valor_total
	Available    decimal.Decimal // valor_disponivel
	Used         decimal.Decimal // valor_utilizado
	StatusCounts map[CreditStatus]int
}
