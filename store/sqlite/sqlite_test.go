package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/credit-engine/ledger"
	"github.com/voyago/credit-engine/store/sqlite"
)

const (
	testOrg    = ledger.OrgID("org-1")
	testClient = ledger.ClientID("cliente-1")
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testCredit(amount string) ledger.Credit {
	value := ledger.MustDecimal(amount)
	return ledger.Credit{
		ID:            ledger.NewCreditID(),
		OrgID:         testOrg,
		ClientID:      testClient,
		Amount:        value,
		Available:     value,
		Status:        ledger.StatusDisponivel,
		PaymentMethod: "pix",
		PaymentDate:   time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2026, time.February, 1, 9, 30, 0, 0, time.UTC),
	}
}

// =============================================================================
// CREDIT PERSISTENCE TESTS
// =============================================================================

func TestStore_CreditRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("2500.50")
	require.NoError(t, s.CreateCredit(ctx, c))

	got, err := s.GetCredit(ctx, testOrg, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.ClientID, got.ClientID)
	assert.True(t, got.Amount.Equal(c.Amount))
	assert.True(t, got.Available.Equal(c.Available))
	assert.Equal(t, ledger.StatusDisponivel, got.Status)
	assert.Equal(t, "pix", got.PaymentMethod)
	assert.True(t, got.PaymentDate.Equal(c.PaymentDate))
}

func TestStore_GetCredit_WrongOrg(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("100")
	require.NoError(t, s.CreateCredit(ctx, c))

	_, err := s.GetCredit(ctx, "outra-org", c.ID)
	assert.ErrorIs(t, err, ledger.ErrCreditNotFound)
}

func TestStore_ListCreditsByClient_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testCredit("100")
	older.CreatedAt = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	newer := testCredit("200")
	newer.CreatedAt = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateCredit(ctx, older))
	require.NoError(t, s.CreateCredit(ctx, newer))

	credits, err := s.ListCreditsByClient(ctx, testOrg, testClient)
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.Equal(t, newer.ID, credits[0].ID)
	assert.Equal(t, older.ID, credits[1].ID)
}

// =============================================================================
// BALANCE MUTATION TESTS
// =============================================================================

func TestStore_DecrementBalance_DerivesStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("1000")
	require.NoError(t, s.CreateCredit(ctx, c))

	got, err := s.DecrementBalance(ctx, testOrg, c.ID, ledger.MustDecimal("400"))
	require.NoError(t, err)
	assert.True(t, got.Available.Equal(ledger.MustDecimal("600")))
	assert.Equal(t, ledger.StatusParcial, got.Status)

	got, err = s.DecrementBalance(ctx, testOrg, c.ID, ledger.MustDecimal("600"))
	require.NoError(t, err)
	assert.True(t, got.Available.IsZero())
	assert.Equal(t, ledger.StatusUtilizado, got.Status)
}

func TestStore_DecrementBalance_Insufficient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("100")
	require.NoError(t, s.CreateCredit(ctx, c))

	_, err := s.DecrementBalance(ctx, testOrg, c.ID, ledger.MustDecimal("150"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientCredit)

	// Stored balance untouched.
	got, err := s.GetCredit(ctx, testOrg, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Available.Equal(ledger.MustDecimal("100")))
}

func TestStore_IncrementBalance_CappedAtOriginalAmount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("100")
	require.NoError(t, s.CreateCredit(ctx, c))

	_, err := s.IncrementBalance(ctx, testOrg, c.ID, ledger.MustDecimal("1"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount,
		"restoring beyond valor_credito must be refused")
}

func TestStore_Refund_TerminalInDatabase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("500")
	require.NoError(t, s.CreateCredit(ctx, c))

	got, err := s.Refund(ctx, testOrg, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReembolsado, got.Status)
	assert.True(t, got.Available.IsZero())

	_, err = s.Refund(ctx, testOrg, c.ID)
	assert.ErrorIs(t, err, ledger.ErrCreditRefunded)

	_, err = s.DecrementBalance(ctx, testOrg, c.ID, ledger.MustDecimal("10"))
	assert.ErrorIs(t, err, ledger.ErrCreditRefunded)

	_, err = s.IncrementBalance(ctx, testOrg, c.ID, ledger.MustDecimal("10"))
	assert.ErrorIs(t, err, ledger.ErrCreditRefunded)
}

func TestStore_DeleteCredit_RefusedWithAllocations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("500")
	require.NoError(t, s.CreateCredit(ctx, c))
	require.NoError(t, s.CreateAllocation(ctx, ledger.Allocation{
		ID:          ledger.NewAllocationID(),
		OrgID:       testOrg,
		CreditID:    c.ID,
		TripID:      "viagem-1",
		Amount:      ledger.MustDecimal("100"),
		AllocatedAt: time.Now(),
	}))

	err := s.DeleteCredit(ctx, testOrg, c.ID)
	assert.ErrorIs(t, err, ledger.ErrCreditHasAllocations)
}

// =============================================================================
// MOVEMENT TESTS
// =============================================================================

func TestStore_Movements_OrderedByAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Identical timestamps: insertion order must still win.
	at := time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"m-1", "m-2", "m-3"} {
		previous := decimal.NewFromInt(int64(i) * 10)
		require.NoError(t, s.AppendMovement(ctx, ledger.Movement{
			ID:         ledger.MovementID(id),
			OrgID:      testOrg,
			ClientID:   testClient,
			Type:       ledger.MovementDebito,
			Amount:     ledger.MustDecimal("10"),
			Previous:   previous,
			Balance:    previous.Add(ledger.MustDecimal("10")),
			OccurredAt: at,
			CreatedAt:  at,
		}))
	}

	movements, err := s.Movements(ctx, testOrg, testClient)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, ledger.MovementID("m-1"), movements[0].ID)
	assert.Equal(t, ledger.MovementID("m-3"), movements[2].ID)

	last, err := s.LastMovement(ctx, testOrg, testClient)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, ledger.MovementID("m-3"), last.ID)
	assert.NoError(t, ledger.VerifyChain(testClient, movements))
}

func TestStore_LastMovement_EmptyStatement(t *testing.T) {
	s := newTestStore(t)

	last, err := s.LastMovement(context.Background(), testOrg, testClient)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestStore_AppendMovement_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := ledger.Movement{
		ID:       "m-1",
		OrgID:    testOrg,
		ClientID: testClient,
		Type:     ledger.MovementDebito,
		Amount:   ledger.MustDecimal("10"),
		Previous: ledger.MustDecimal("0"),
		Balance:  ledger.MustDecimal("10"),
	}
	require.NoError(t, s.AppendMovement(ctx, m))
	assert.Error(t, s.AppendMovement(ctx, m))
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestStore_WithTx_RollbackLeavesNoPartialState(t *testing.T) {
	// GIVEN: A transaction that creates a credit and then fails
	// THEN: Nothing is visible afterwards

	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	c := testCredit("100")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateCredit(ctx, c); err != nil {
			return err
		}
		if err := tx.AppendMovement(ctx, ledger.Movement{
			ID:       ledger.NewMovementID(),
			OrgID:    testOrg,
			ClientID: testClient,
			Type:     ledger.MovementCredito,
			Amount:   ledger.MustDecimal("100"),
			Previous: ledger.MustDecimal("0"),
			Balance:  ledger.MustDecimal("-100"),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetCredit(ctx, testOrg, c.ID)
	assert.ErrorIs(t, err, ledger.ErrCreditNotFound)

	movements, err := s.Movements(ctx, testOrg, testClient)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestStore_WithTx_CommitsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("100")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateCredit(ctx, c); err != nil {
			return err
		}
		_, err := tx.DecrementBalance(ctx, testOrg, c.ID, ledger.MustDecimal("40"))
		return err
	})
	require.NoError(t, err)

	got, err := s.GetCredit(ctx, testOrg, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Available.Equal(ledger.MustDecimal("60")))
	assert.Equal(t, ledger.StatusParcial, got.Status)
}

// =============================================================================
// ENGINE-ON-SQLITE TESTS
// =============================================================================

func TestEngineOnSQLite_FullLifecycle(t *testing.T) {
	// The engine's full lifecycle against the real store: create,
	// allocate, reverse, refund, with the chain verifying throughout.

	s := newTestStore(t)
	e := ledger.NewEngine(s)
	ctx := context.Background()

	credit, err := e.CreateCredit(ctx, ledger.CreateCreditInput{
		OrgID:       testOrg,
		ClientID:    testClient,
		Amount:      ledger.MustDecimal("1000"),
		PaymentDate: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	a, err := e.Allocate(ctx, ledger.AllocateInput{
		OrgID: testOrg, CreditID: credit.ID, TripID: "viagem-1",
		Amount: ledger.MustDecimal("400"),
	})
	require.NoError(t, err)

	require.NoError(t, e.Deallocate(ctx, testOrg, a.ID))

	_, err = e.Refund(ctx, testOrg, credit.ID)
	require.NoError(t, err)

	assert.NoError(t, e.VerifyStatement(ctx, testOrg, testClient))

	got, err := e.GetCredit(ctx, testOrg, credit.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReembolsado, got.Status)

	// Full circle: credit in, allocation out and back, refund out.
	movements, err := e.ClientStatement(ctx, testOrg, testClient)
	require.NoError(t, err)
	require.Len(t, movements, 4)
	assert.True(t, movements[3].Balance.IsZero())
}

func TestStore_Reset_ClearsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testCredit("100")
	require.NoError(t, s.CreateCredit(ctx, c))
	require.NoError(t, s.Reset(ctx))

	credits, err := s.ListCreditsByClient(ctx, testOrg, testClient)
	require.NoError(t, err)
	assert.Empty(t, credits)
}
