// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/voyago/credit-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	credits     map[creditKey]ledger.Credit
	allocations map[allocationKey]ledger.Allocation
	movements   map[clientKey][]ledger.Movement
}

type creditKey struct {
	Org ledger.OrgID
	ID  ledger.CreditID
}

type allocationKey struct {
	Org ledger.OrgID
	ID  ledger.AllocationID
}

type clientKey struct {
	Org    ledger.OrgID
	Client ledger.ClientID
}

func NewMemory() *Memory {
	return &Memory{
		credits:     make(map[creditKey]ledger.Credit),
		allocations: make(map[allocationKey]ledger.Allocation),
		movements:   make(map[clientKey][]ledger.Movement),
	}
}

// -----------------------------------------------------------------------------
// CreditStore
// -----------------------------------------------------------------------------

func (m *Memory) CreateCredit(_ context.Context, c ledger.Credit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[creditKey{c.OrgID, c.ID}] = c
	return nil
}

func (m *Memory) GetCredit(_ context.Context, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCreditLocked(org, id)
}

func (m *Memory) getCreditLocked(org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	c, ok := m.credits[creditKey{org, id}]
	if !ok {
		return ledger.Credit{}, ledger.ErrCreditNotFound
	}
	return c, nil
}

func (m *Memory) ListCreditsByClient(_ context.Context, org ledger.OrgID, client ledger.ClientID) ([]ledger.Credit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Credit
	for k, c := range m.credits {
		if k.Org == org && c.ClientID == client {
			result = append(result, c)
		}
	}
	// Newest first, mirroring the SQL ordering.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) DecrementBalance(_ context.Context, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getCreditLocked(org, id)
	if err != nil {
		return ledger.Credit{}, err
	}
	if c.Status == ledger.StatusReembolsado {
		return ledger.Credit{}, ledger.ErrCreditRefunded
	}
	if amount.GreaterThan(c.Available) {
		return ledger.Credit{}, &ledger.InsufficientCreditError{
			CreditID:  id,
			Available: c.Available,
			Requested: amount,
		}
	}

	c.Available = c.Available.Sub(amount)
	c.Recompute()
	m.credits[creditKey{org, id}] = c
	return c, nil
}

func (m *Memory) IncrementBalance(_ context.Context, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getCreditLocked(org, id)
	if err != nil {
		return ledger.Credit{}, err
	}
	if c.Status == ledger.StatusReembolsado {
		return ledger.Credit{}, ledger.ErrCreditRefunded
	}
	next := c.Available.Add(amount)
	if next.GreaterThan(c.Amount) {
		return ledger.Credit{}, ledger.ErrInvalidAmount
	}

	c.Available = next
	c.Recompute()
	m.credits[creditKey{org, id}] = c
	return c, nil
}

func (m *Memory) Refund(_ context.Context, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.getCreditLocked(org, id)
	if err != nil {
		return ledger.Credit{}, err
	}
	if c.Status == ledger.StatusReembolsado {
		return ledger.Credit{}, ledger.ErrCreditRefunded
	}

	c.Available = decimal.Zero
	c.Status = ledger.StatusReembolsado
	m.credits[creditKey{org, id}] = c
	return c, nil
}

func (m *Memory) DeleteCredit(_ context.Context, org ledger.OrgID, id ledger.CreditID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.getCreditLocked(org, id); err != nil {
		return err
	}
	for k, a := range m.allocations {
		if k.Org == org && a.CreditID == id {
			return ledger.ErrCreditHasAllocations
		}
	}
	delete(m.credits, creditKey{org, id})
	return nil
}

// -----------------------------------------------------------------------------
// AllocationStore
// -----------------------------------------------------------------------------

func (m *Memory) CreateAllocation(_ context.Context, a ledger.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[allocationKey{a.OrgID, a.ID}] = a
	return nil
}

func (m *Memory) GetAllocation(_ context.Context, org ledger.OrgID, id ledger.AllocationID) (ledger.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.allocations[allocationKey{org, id}]
	if !ok {
		return ledger.Allocation{}, ledger.ErrAllocationNotFound
	}
	return a, nil
}

func (m *Memory) ListAllocationsByCredit(_ context.Context, org ledger.OrgID, credit ledger.CreditID) ([]ledger.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Allocation
	for k, a := range m.allocations {
		if k.Org == org && a.CreditID == credit {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AllocatedAt.Before(result[j].AllocatedAt)
	})
	return result, nil
}

func (m *Memory) DeleteAllocation(_ context.Context, org ledger.OrgID, id ledger.AllocationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.allocations[allocationKey{org, id}]; !ok {
		return ledger.ErrAllocationNotFound
	}
	delete(m.allocations, allocationKey{org, id})
	return nil
}

// -----------------------------------------------------------------------------
// MovementStore
// -----------------------------------------------------------------------------

func (m *Memory) AppendMovement(_ context.Context, mv ledger.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := clientKey{mv.OrgID, mv.ClientID}
	m.movements[k] = append(m.movements[k], mv)
	return nil
}

func (m *Memory) LastMovement(_ context.Context, org ledger.OrgID, client ledger.ClientID) (*ledger.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms := m.movements[clientKey{org, client}]
	if len(ms) == 0 {
		return nil, nil
	}
	last := ms[len(ms)-1]
	return &last, nil
}

func (m *Memory) Movements(_ context.Context, org ledger.OrgID, client ledger.ClientID) ([]ledger.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms := m.movements[clientKey{org, client}]
	result := make([]ledger.Movement, len(ms))
	copy(result, ms)
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot plus rollback on error.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the live store, restoring a snapshot if fn
// fails. Transactions are serialized; the inner store methods keep their
// own locking so reads during a transaction stay safe.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	credits     map[creditKey]ledger.Credit
	allocations map[allocationKey]ledger.Allocation
	movements   map[clientKey][]ledger.Movement
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		credits:     make(map[creditKey]ledger.Credit, len(tm.credits)),
		allocations: make(map[allocationKey]ledger.Allocation, len(tm.allocations)),
		movements:   make(map[clientKey][]ledger.Movement, len(tm.movements)),
	}
	for k, v := range tm.credits {
		s.credits[k] = v
	}
	for k, v := range tm.allocations {
		s.allocations[k] = v
	}
	for k, v := range tm.movements {
		s.movements[k] = append([]ledger.Movement{}, v...)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.credits = s.credits
	tm.allocations = s.allocations
	tm.movements = s.movements
}
