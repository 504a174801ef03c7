/*
engine.go - Allocation engine: the only writer of credit balances

PURPOSE:
  Orchestrates every mutating operation on credits: creation, allocation
  against a trip charge, allocation reversal, refund and deletion. Each
  operation pairs its balance change with the statement entry that
  explains it, inside one store transaction.

CONCURRENCY MODEL:
  Mutations are serialized per credit id with a keyed mutex, so two
  allocation requests racing for the same credit can never both observe
  sufficient balance. Operations on different credits do not block each
  other. The store additionally guards the balance with a conditional
  update; if that still loses a race (another process on the same
  database), the engine retries a bounded number of times with backoff
  before surfacing ErrConcurrentModification.

ORDERING:
  Requests for the same credit are admitted in arrival order. There is no
  best-fit or priority scheme: first admitted, first served; once the
  balance is exhausted later requests fail fast with insufficient credit.

ATOMICITY:
  Balance decrement, allocation row and debito movement commit together
  or not at all. A statement entry without its balance change (or the
  reverse) must never be observable.

SEE ALSO:
  - statement.go: running-balance append
  - store.go: the transactional store contract
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 25 * time.Millisecond
)

// Engine coordinates credit mutations against a transactional store.
type Engine struct {
	store    TxStore
	notifier Notifier
	now      func() time.Time

	maxAttempts  int
	retryBackoff time.Duration

	locks creditLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier installs a change notifier invoked after commits.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetry overrides the bounded retry policy for conditional-update
// conflicts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.maxAttempts = attempts
		e.retryBackoff = backoff
	}
}

func NewEngine(store TxStore, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		now:          time.Now,
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// statement returns an appender bound to the given store view (the
// transaction-scoped store inside WithTx) sharing the engine clock.
func (e *Engine) statement(store MovementStore) *Statement {
	return &Statement{store: store, now: e.now}
}

// =============================================================================
// CREDIT LIFECYCLE
// =============================================================================

// CreateCreditInput describes a new prepaid credit.
type CreateCreditInput struct {
	OrgID         OrgID
	ClientID      ClientID
	Amount        decimal.Decimal
	PaymentDate   time.Time
	PaymentMethod string
	Description   string // optional statement text override
}

// CreateCredit records a new credit with its full balance available and
// appends the creation movement (credito: the client gains balance in
// their favor).
func (e *Engine) CreateCredit(ctx context.Context, in CreateCreditInput) (Credit, error) {
	if !in.Amount.IsPositive() {
		return Credit{}, ErrInvalidAmount
	}

	credit := Credit{
		ID:            NewCreditID(),
		OrgID:         in.OrgID,
		ClientID:      in.ClientID,
		Amount:        in.Amount,
		Available:     in.Amount,
		Status:        StatusDisponivel,
		PaymentDate:   in.PaymentDate,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     e.now(),
	}

	description := in.Description
	if description == "" {
		description = fmt.Sprintf("Crédito gerado no valor de R$%s", in.Amount.StringFixed(2))
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.CreateCredit(ctx, credit); err != nil {
			return err
		}
		_, err := e.statement(s).Append(ctx, AppendInput{
			OrgID:       in.OrgID,
			ClientID:    in.ClientID,
			Type:        MovementCredito,
			Amount:      in.Amount,
			Description: description,
			Reference:   Reference{ID: string(credit.ID), Type: RefCredit},
			OccurredAt:  in.PaymentDate,
		})
		return err
	})
	if err != nil {
		return Credit{}, err
	}

	e.notify(Event{Type: EventCreditCreated, OrgID: in.OrgID, ClientID: in.ClientID, CreditID: credit.ID})
	return credit, nil
}

// GetCredit returns a credit by id.
func (e *Engine) GetCredit(ctx context.Context, org OrgID, id CreditID) (Credit, error) {
	return e.store.GetCredit(ctx, org, id)
}

// ListCreditsByClient returns the client's credits, newest first.
func (e *Engine) ListCreditsByClient(ctx context.Context, org OrgID, client ClientID) ([]Credit, error) {
	return e.store.ListCreditsByClient(ctx, org, client)
}

// DeleteCredit removes a credit that has no allocation history and
// reverses its creation movement so the client's running balance stays
// explained. Refunded credits keep a zero balance and need no reversal.
func (e *Engine) DeleteCredit(ctx context.Context, org OrgID, id CreditID) error {
	unlock := e.locks.lock(id)
	defer unlock()

	return e.store.WithTx(ctx, func(s Store) error {
		credit, err := s.GetCredit(ctx, org, id)
		if err != nil {
			return err
		}
		if err := s.DeleteCredit(ctx, org, id); err != nil {
			return err
		}
		if credit.Available.IsPositive() {
			_, err = e.statement(s).Append(ctx, AppendInput{
				OrgID:       org,
				ClientID:    credit.ClientID,
				Type:        MovementDebito,
				Amount:      credit.Available,
				Description: fmt.Sprintf("Crédito removido no valor de R$%s", credit.Available.StringFixed(2)),
				Reference:   Reference{ID: string(id), Type: RefCredit},
			})
		}
		return err
	})
}

// =============================================================================
// ALLOCATION
// =============================================================================

// AllocateInput links part of a credit to a trip charge.
type AllocateInput struct {
	OrgID    OrgID
	CreditID CreditID
	TripID   TripID
	Amount   decimal.Decimal

	// BeneficiaryID spends the credit on behalf of another client (gift
	// transfer). The statement entry still belongs to the credit owner.
	BeneficiaryID ClientID
	Notes         string
}

// Allocate atomically consumes part of a credit against a trip charge:
// balance decrement, allocation record and debito movement are one
// transaction.
func (e *Engine) Allocate(ctx context.Context, in AllocateInput) (Allocation, error) {
	if !in.Amount.IsPositive() {
		return Allocation{}, ErrInvalidAmount
	}

	unlock := e.locks.lock(in.CreditID)
	defer unlock()

	var allocation Allocation
	var owner ClientID

	err := e.retry(ctx, func() error {
		return e.store.WithTx(ctx, func(s Store) error {
			credit, err := s.DecrementBalance(ctx, in.OrgID, in.CreditID, in.Amount)
			if err != nil {
				return err
			}
			owner = credit.ClientID

			allocation = Allocation{
				ID:            NewAllocationID(),
				OrgID:         in.OrgID,
				CreditID:      in.CreditID,
				TripID:        in.TripID,
				BeneficiaryID: in.BeneficiaryID,
				Amount:        in.Amount,
				Notes:         in.Notes,
				AllocatedAt:   e.now(),
			}
			if err := s.CreateAllocation(ctx, allocation); err != nil {
				return err
			}

			description := fmt.Sprintf("Utilizado R$%s na viagem %s", in.Amount.StringFixed(2), in.TripID)
			if in.BeneficiaryID != "" {
				description += fmt.Sprintf(" para cliente %s", in.BeneficiaryID)
			}
			_, err = e.statement(s).Append(ctx, AppendInput{
				OrgID:       in.OrgID,
				ClientID:    credit.ClientID,
				Type:        MovementDebito,
				Amount:      in.Amount,
				Description: description,
				TripID:      in.TripID,
				Reference:   Reference{ID: string(allocation.ID), Type: RefAllocation},
			})
			return err
		})
	})
	if err != nil {
		return Allocation{}, err
	}

	e.notify(Event{
		Type:         EventAllocated,
		OrgID:        in.OrgID,
		ClientID:     owner,
		CreditID:     in.CreditID,
		AllocationID: allocation.ID,
	})
	return allocation, nil
}

// Deallocate undoes an allocation (admin-only): the credit is re-credited
// by the allocation's amount, the allocation row is removed, and a
// compensating credito movement is appended. Refused when the credit has
// since been refunded, because re-crediting a terminal credit would hide
// an inconsistency.
func (e *Engine) Deallocate(ctx context.Context, org OrgID, id AllocationID) error {
	// Resolve the credit outside the critical section; the allocation is
	// re-read inside the transaction.
	allocation, err := e.store.GetAllocation(ctx, org, id)
	if err != nil {
		return err
	}

	unlock := e.locks.lock(allocation.CreditID)
	defer unlock()

	var owner ClientID
	err = e.retry(ctx, func() error {
		return e.store.WithTx(ctx, func(s Store) error {
			a, err := s.GetAllocation(ctx, org, id)
			if err != nil {
				return err
			}
			credit, err := s.GetCredit(ctx, org, a.CreditID)
			if err != nil {
				return err
			}
			if credit.Status == StatusReembolsado {
				return fmt.Errorf("deallocate %s: credit %s was refunded after allocation: %w",
					a.ID, credit.ID, ErrCreditRefunded)
			}
			owner = credit.ClientID

			if _, err := s.IncrementBalance(ctx, org, a.CreditID, a.Amount); err != nil {
				return err
			}
			if err := s.DeleteAllocation(ctx, org, a.ID); err != nil {
				return err
			}
			_, err = e.statement(s).Append(ctx, AppendInput{
				OrgID:       org,
				ClientID:    credit.ClientID,
				Type:        MovementCredito,
				Amount:      a.Amount,
				Description: fmt.Sprintf("Estorno de vinculação: R$%s da viagem %s", a.Amount.StringFixed(2), a.TripID),
				TripID:      a.TripID,
				Reference:   Reference{ID: string(a.ID), Type: RefAllocation},
			})
			return err
		})
	})
	if err != nil {
		return err
	}

	e.notify(Event{
		Type:         EventDeallocated,
		OrgID:        org,
		ClientID:     owner,
		CreditID:     allocation.CreditID,
		AllocationID: id,
	})
	return nil
}

// AllocationsByCredit returns a credit's allocation history.
func (e *Engine) AllocationsByCredit(ctx context.Context, org OrgID, credit CreditID) ([]Allocation, error) {
	return e.store.ListAllocationsByCredit(ctx, org, credit)
}

// =============================================================================
// REFUND
// =============================================================================

// Refund zeroes a credit's remaining balance and marks it reembolsado.
// Terminal: every later mutation fails with ErrCreditRefunded. The
// remaining balance, if any, leaves the statement as a debito.
func (e *Engine) Refund(ctx context.Context, org OrgID, id CreditID) (Credit, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	var refunded Credit
	err := e.retry(ctx, func() error {
		return e.store.WithTx(ctx, func(s Store) error {
			before, err := s.GetCredit(ctx, org, id)
			if err != nil {
				return err
			}
			refunded, err = s.Refund(ctx, org, id)
			if err != nil {
				return err
			}
			if before.Available.IsPositive() {
				_, err = e.statement(s).Append(ctx, AppendInput{
					OrgID:       org,
					ClientID:    before.ClientID,
					Type:        MovementDebito,
					Amount:      before.Available,
					Description: fmt.Sprintf("Crédito reembolsado: R$%s", before.Available.StringFixed(2)),
					Reference:   Reference{ID: string(id), Type: RefRefund},
				})
			}
			return err
		})
	})
	if err != nil {
		return Credit{}, err
	}

	e.notify(Event{Type: EventRefunded, OrgID: org, ClientID: refunded.ClientID, CreditID: id})
	return refunded, nil
}

// =============================================================================
// READ SURFACE
// =============================================================================

// ClientStatement returns the client's movements in creation order.
func (e *Engine) ClientStatement(ctx context.Context, org OrgID, client ClientID) ([]Movement, error) {
	return e.store.Movements(ctx, org, client)
}

// ClientBalanceSummary aggregates the client's credits. Refunded credits
// are excluded from the monetary totals but counted by status.
func (e *Engine) ClientBalanceSummary(ctx context.Context, org OrgID, client ClientID) (BalanceSummary, error) {
	credits, err := e.store.ListCreditsByClient(ctx, org, client)
	if err != nil {
		return BalanceSummary{}, err
	}

	summary := BalanceSummary{
		ClientID:     client,
		Total:        decimal.Zero,
		Available:    decimal.Zero,
		Used:         decimal.Zero,
		StatusCounts: make(map[CreditStatus]int),
	}
	for _, c := range credits {
		summary.StatusCounts[c.Status]++
		if c.Status == StatusReembolsado {
			continue
		}
		summary.Total = summary.Total.Add(c.Amount)
		summary.Available = summary.Available.Add(c.Available)
		summary.Used = summary.Used.Add(c.Consumed())
	}
	return summary, nil
}

// VerifyStatement audits chain integrity for one client. Returns a
// ChainBreakError on the first violation.
func (e *Engine) VerifyStatement(ctx context.Context, org OrgID, client ClientID) error {
	return NewStatement(e.store).Verify(ctx, org, client)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (e *Engine) notify(ev Event) {
	if e.notifier != nil {
		e.notifier.Notify(ev)
	}
}

// retry re-runs fn on conditional-update conflicts, up to the bounded
// attempt budget. Business errors pass through untouched.
func (e *Engine) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt < e.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * e.retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

// creditLocks serializes mutations per credit id. Entries are kept for
// the life of the process; the map grows with the number of distinct
// credits mutated, which is bounded by the working set.
type creditLocks struct {
	mu    sync.Mutex
	locks map[CreditID]*sync.Mutex
}

func (l *creditLocks) lock(id CreditID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[CreditID]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
