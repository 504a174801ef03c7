/*
statement.go - Per-client running-balance statement (extrato)

PURPOSE:
  The statement is the append-only audit trail of a client's credit
  activity. Each entry carries the balance before and after it, so any
  prefix of the statement explains the running total without replaying
  business logic.

CRITICAL INVARIANTS:
  1. CHAIN: entry k's saldo_anterior equals entry k-1's saldo_atual; the
     first entry starts from zero
  2. ARITHMETIC: saldo_atual = saldo_anterior + valor for debito,
     saldo_anterior - valor for credito
  3. APPEND-ONLY: no update, no delete; corrections are compensating
     entries

WHY A STORED RUNNING BALANCE?
  The original system re-fetched the most recent row and computed the new
  balance in application code with no serialization, which races under
  concurrent writers. Here the append always happens inside the same
  transaction and per-credit critical section as the balance change that
  caused it (see engine.go), so the chain cannot fork.

VERIFICATION:
  Verify re-walks a client's statement and reports the first violation as
  a ChainBreakError. A broken chain means corruption; it is surfaced,
  never repaired in place.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Statement appends and reads per-client movements over a MovementStore.
// It computes each entry's running balance from the last known entry.
type Statement struct {
	store MovementStore
	now   func() time.Time
}

func NewStatement(store MovementStore) *Statement {
	return &Statement{store: store, now: time.Now}
}

// AppendInput describes one statement entry to record.
type AppendInput struct {
	OrgID       OrgID
	ClientID    ClientID
	Type        MovementType
	Amount      decimal.Decimal // must be > 0
	Description string
	TripID      TripID    // optional
	Reference   Reference // causing event
	OccurredAt  time.Time // zero means now
}

// Append records a movement, chaining its running balance onto the
// client's most recent entry. Callers that pair an append with a balance
// mutation must run both through the same TxStore transaction.
func (s *Statement) Append(ctx context.Context, in AppendInput) (Movement, error) {
	if !in.Amount.IsPositive() {
		return Movement{}, ErrInvalidAmount
	}

	previous := decimal.Zero
	last, err := s.store.LastMovement(ctx, in.OrgID, in.ClientID)
	if err != nil {
		return Movement{}, err
	}
	if last != nil {
		previous = last.Balance
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}

	m := Movement{
		ID:          NewMovementID(),
		OrgID:       in.OrgID,
		ClientID:    in.ClientID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		TripID:      in.TripID,
		Reference:   in.Reference,
		OccurredAt:  occurredAt,
		Previous:    previous,
		Balance:     in.Type.Apply(previous, in.Amount),
		CreatedAt:   s.now(),
	}

	if err := s.store.AppendMovement(ctx, m); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Movements returns the client's statement in creation order.
func (s *Statement) Movements(ctx context.Context, org OrgID, client ClientID) ([]Movement, error) {
	return s.store.Movements(ctx, org, client)
}

// Verify re-walks the client's statement and returns a ChainBreakError at
// the first inconsistency. A nil return means the chain is intact.
func (s *Statement) Verify(ctx context.Context, org OrgID, client ClientID) error {
	movements, err := s.store.Movements(ctx, org, client)
	if err != nil {
		return err
	}
	return VerifyChain(client, movements)
}

// VerifyChain checks chain and arithmetic integrity over an ordered list
// of movements.
func VerifyChain(client ClientID, movements []Movement) error {
	previous := decimal.Zero
	for i, m := range movements {
		if !m.Previous.Equal(previous) {
			detail := "saldo_anterior does not match prior saldo_atual"
			if i == 0 {
				detail = "first movement must start from zero"
			}
			return &ChainBreakError{
				ClientID:   client,
				MovementID: m.ID,
				Expected:   previous,
				Got:        m.Previous,
				Detail:     detail,
			}
		}
		want := m.Type.Apply(m.Previous, m.Amount)
		if !m.Balance.Equal(want) {
			return &ChainBreakError{
				ClientID:   client,
				MovementID: m.ID,
				Expected:   want,
				Got:        m.Balance,
				Detail:     "saldo_atual does not follow from saldo_anterior and valor",
			}
		}
		previous = m.Balance
	}
	return nil
}
