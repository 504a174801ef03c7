/*
store.go - Persistence interfaces for credits, allocations and movements

PURPOSE:
  Defines the boundary between the domain logic and the database. The
  engine is written against these interfaces; implementations exist for
  SQLite (store/sqlite) and in-memory (ledger/store).

BALANCE MUTATION CONTRACT:
  DecrementBalance and IncrementBalance are conditional updates: the
  implementation must apply the change atomically against the balance it
  read (compare-and-swap or equivalent) and return
  ErrConcurrentModification when it loses to a concurrent writer. The
  engine serializes writers per credit and retries, so conflicts are rare
  but must never corrupt the balance.

MOVEMENT CONTRACT:
  Movements are append-only. Implementations must preserve insertion
  order per client; LastMovement and Movements are ordered by creation.
  No Update or Delete exists for movements.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - ledger/store/memory.go: in-memory implementation for tests
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CREDIT STORE - Durable credit records and balances
// =============================================================================

type CreditStore interface {
	// CreateCredit persists a new credit with its full balance available.
	CreateCredit(ctx context.Context, c Credit) error

	// GetCredit returns a credit or ErrCreditNotFound.
	GetCredit(ctx context.Context, org OrgID, id CreditID) (Credit, error)

	// ListCreditsByClient returns the client's credits, newest first.
	ListCreditsByClient(ctx context.Context, org OrgID, client ClientID) ([]Credit, error)

	// DecrementBalance atomically subtracts amount from the available
	// balance and recomputes the status. Fails with an
	// InsufficientCreditError when amount exceeds the available balance,
	// ErrCreditRefunded on a refunded credit, and
	// ErrConcurrentModification when the conditional update loses a race.
	DecrementBalance(ctx context.Context, org OrgID, id CreditID, amount decimal.Decimal) (Credit, error)

	// IncrementBalance atomically adds amount back to the available
	// balance. Used only by allocation-deletion compensation. Fails with
	// ErrCreditRefunded on a refunded credit (refund is terminal at the
	// store level, not just in the engine) and ErrInvalidAmount if the
	// result would exceed the original value.
	IncrementBalance(ctx context.Context, org OrgID, id CreditID, amount decimal.Decimal) (Credit, error)

	// Refund zeroes the available balance and marks the credit
	// reembolsado. Irreversible. Fails with ErrCreditRefunded if already
	// refunded.
	Refund(ctx context.Context, org OrgID, id CreditID) (Credit, error)

	// DeleteCredit removes a credit that has no allocation history.
	// Fails with ErrCreditHasAllocations otherwise.
	DeleteCredit(ctx context.Context, org OrgID, id CreditID) error
}

// =============================================================================
// ALLOCATION STORE - Immutable credit-to-trip links
// =============================================================================

type AllocationStore interface {
	// CreateAllocation persists a new allocation. No update exists;
	// allocations are immutable audit records.
	CreateAllocation(ctx context.Context, a Allocation) error

	// GetAllocation returns an allocation or ErrAllocationNotFound.
	GetAllocation(ctx context.Context, org OrgID, id AllocationID) (Allocation, error)

	// ListAllocationsByCredit returns a credit's allocations in creation
	// order.
	ListAllocationsByCredit(ctx context.Context, org OrgID, credit CreditID) ([]Allocation, error)

	// DeleteAllocation removes an allocation (admin-only compensation
	// path). The engine pairs this with IncrementBalance and a
	// compensating movement inside one transaction.
	DeleteAllocation(ctx context.Context, org OrgID, id AllocationID) error
}

// =============================================================================
// MOVEMENT STORE - Append-only statement entries
// =============================================================================

type MovementStore interface {
	// AppendMovement persists one statement entry. Append-only.
	AppendMovement(ctx context.Context, m Movement) error

	// LastMovement returns the most recent movement for a client, or nil
	// when the statement is empty.
	LastMovement(ctx context.Context, org OrgID, client ClientID) (*Movement, error)

	// Movements returns the client's statement in creation order.
	Movements(ctx context.Context, org OrgID, client ClientID) ([]Movement, error)
}

// =============================================================================
// COMPOSITE STORES
// =============================================================================

// Store groups the three persistence concerns the engine needs.
type Store interface {
	CreditStore
	AllocationStore
	MovementStore
}

// TxStore adds transactional scope: balance mutations and their statement
// appends must commit together or not at all.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
