/*
Package sqlite provides a SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  credits:     one row per prepaid credit, with its mutable balance
  allocations: immutable credit-to-trip links
  movements:   append-only per-client statement entries

BALANCE GUARD:
  DecrementBalance and IncrementBalance are conditional updates:
  the UPDATE carries WHERE saldo_disponivel = <value read>, so a writer
  that lost a race affects zero rows and the caller sees
  ErrConcurrentModification instead of silently clobbering the balance.

AMOUNTS:
  Stored as decimal strings (TEXT), never floating point. All arithmetic
  happens in the application on decimal.Decimal.

WAL MODE:
  SQLite is opened with WAL and foreign keys on. Transactions are
  serialized with a store-level mutex, matching SQLite's single-writer
  model.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/voyago/credit-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Prepaid credits with their mutable balance
	CREATE TABLE IF NOT EXISTS credits (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		valor_credito TEXT NOT NULL,
		saldo_disponivel TEXT NOT NULL,
		status TEXT NOT NULL,
		forma_pagamento TEXT,
		data_pagamento TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credits_org_client
		ON credits(org_id, client_id);
	CREATE INDEX IF NOT EXISTS idx_credits_status
		ON credits(org_id, status);

	-- Immutable credit-to-trip links
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		credit_id TEXT NOT NULL REFERENCES credits(id),
		trip_id TEXT NOT NULL,
		beneficiary_id TEXT,
		valor_utilizado TEXT NOT NULL,
		observacoes TEXT,
		data_vinculacao TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_org_credit
		ON allocations(org_id, credit_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_trip
		ON allocations(org_id, trip_id);

	-- Append-only statement entries; seq fixes the chain order
	CREATE TABLE IF NOT EXISTS movements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		org_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		tipo TEXT NOT NULL,
		valor TEXT NOT NULL,
		descricao TEXT,
		trip_id TEXT,
		referencia_id TEXT,
		referencia_tipo TEXT,
		saldo_anterior TEXT NOT NULL,
		saldo_atual TEXT NOT NULL,
		data_transacao TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: last movement / full statement per client
	CREATE INDEX IF NOT EXISTS idx_movements_org_client_seq
		ON movements(org_id, client_id, seq);
	CREATE INDEX IF NOT EXISTS idx_movements_reference
		ON movements(referencia_id) WHERE referencia_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CREDIT STORE (ledger.CreditStore interface)
// =============================================================================

func (s *Store) CreateCredit(ctx context.Context, c ledger.Credit) error {
	return createCredit(ctx, s.db, c)
}

func createCredit(ctx context.Context, q dbtx, c ledger.Credit) error {
	query := `
		INSERT INTO credits
		(id, org_id, client_id, valor_credito, saldo_disponivel, status,
		 forma_pagamento, data_pagamento, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		c.ID, c.OrgID, c.ClientID,
		c.Amount.String(), c.Available.String(), c.Status,
		nullString(c.PaymentMethod),
		c.PaymentDate.UTC().Format(time.RFC3339),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert credit: %w", err)
	}
	return nil
}

const creditColumns = `id, org_id, client_id, valor_credito, saldo_disponivel,
	status, forma_pagamento, data_pagamento, created_at`

func (s *Store) GetCredit(ctx context.Context, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	return getCredit(ctx, s.db, org, id)
}

func getCredit(ctx context.Context, q dbtx, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+creditColumns+` FROM credits WHERE org_id = ? AND id = ?`,
		org, id,
	)
	c, err := scanCredit(row)
	if err == sql.ErrNoRows {
		return ledger.Credit{}, ledger.ErrCreditNotFound
	}
	return c, err
}

func (s *Store) ListCreditsByClient(ctx context.Context, org ledger.OrgID, client ledger.ClientID) ([]ledger.Credit, error) {
	return listCreditsByClient(ctx, s.db, org, client)
}

func listCreditsByClient(ctx context.Context, q dbtx, org ledger.OrgID, client ledger.ClientID) ([]ledger.Credit, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+creditColumns+` FROM credits
		 WHERE org_id = ? AND client_id = ?
		 ORDER BY created_at DESC, id DESC`,
		org, client,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	var credits []ledger.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

func (s *Store) DecrementBalance(ctx context.Context, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	return decrementBalance(ctx, s.db, org, id, amount)
}

func decrementBalance(ctx context.Context, q dbtx, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	c, err := getCredit(ctx, q, org, id)
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

	next := c.Available.Sub(amount)
	return updateBalanceGuarded(ctx, q, c, next)
}

func (s *Store) IncrementBalance(ctx context.Context, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	return incrementBalance(ctx, s.db, org, id, amount)
}

func incrementBalance(ctx context.Context, q dbtx, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	c, err := getCredit(ctx, q, org, id)
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
	return updateBalanceGuarded(ctx, q, c, next)
}

// updateBalanceGuarded writes the new balance only if the stored balance
// still matches what the caller read. Zero affected rows means another
// writer got there first.
func updateBalanceGuarded(ctx context.Context, q dbtx, c ledger.Credit, next decimal.Decimal) (ledger.Credit, error) {
	status := ledger.DeriveStatus(c.Amount, next)

	res, err := q.ExecContext(ctx,
		`UPDATE credits SET saldo_disponivel = ?, status = ?
		 WHERE org_id = ? AND id = ? AND saldo_disponivel = ? AND status != ?`,
		next.String(), status, c.OrgID, c.ID, c.Available.String(), ledger.StatusReembolsado,
	)
	if err != nil {
		return ledger.Credit{}, fmt.Errorf("failed to update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Credit{}, err
	}
	if n == 0 {
		return ledger.Credit{}, ledger.ErrConcurrentModification
	}

	c.Available = next
	c.Status = status
	return c, nil
}

func (s *Store) Refund(ctx context.Context, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	return refund(ctx, s.db, org, id)
}

func refund(ctx context.Context, q dbtx, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	c, err := getCredit(ctx, q, org, id)
	if err != nil {
		return ledger.Credit{}, err
	}
	if c.Status == ledger.StatusReembolsado {
		return ledger.Credit{}, ledger.ErrCreditRefunded
	}

	res, err := q.ExecContext(ctx,
		`UPDATE credits SET saldo_disponivel = '0', status = ?
		 WHERE org_id = ? AND id = ? AND status != ?`,
		ledger.StatusReembolsado, org, id, ledger.StatusReembolsado,
	)
	if err != nil {
		return ledger.Credit{}, fmt.Errorf("failed to refund credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Credit{}, err
	}
	if n == 0 {
		return ledger.Credit{}, ledger.ErrConcurrentModification
	}

	c.Available = decimal.Zero
	c.Status = ledger.StatusReembolsado
	return c, nil
}

func (s *Store) DeleteCredit(ctx context.Context, org ledger.OrgID, id ledger.CreditID) error {
	return deleteCredit(ctx, s.db, org, id)
}

func deleteCredit(ctx context.Context, q dbtx, org ledger.OrgID, id ledger.CreditID) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allocations WHERE org_id = ? AND credit_id = ?`,
		org, id,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return ledger.ErrCreditHasAllocations
	}

	res, err := q.ExecContext(ctx,
		`DELETE FROM credits WHERE org_id = ? AND id = ?`, org, id)
	if err != nil {
		return fmt.Errorf("failed to delete credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrCreditNotFound
	}
	return nil
}

func scanCredit(row interface{ Scan(...any) error }) (ledger.Credit, error) {
	var (
		c              ledger.Credit
		valor          string
		saldo          string
		formaPagamento sql.NullString
		dataPagamento  string
		createdAt      string
	)
	err := row.Scan(&c.ID, &c.OrgID, &c.ClientID, &valor, &saldo,
		&c.Status, &formaPagamento, &dataPagamento, &createdAt)
	if err != nil {
		return c, err
	}

	// A stored amount that fails to parse is corruption, never zero.
	if c.Amount, err = decimal.NewFromString(valor); err != nil {
		return c, fmt.Errorf("corrupt valor_credito %q for credit %s: %w", valor, c.ID, err)
	}
	if c.Available, err = decimal.NewFromString(saldo); err != nil {
		return c, fmt.Errorf("corrupt saldo_disponivel %q for credit %s: %w", saldo, c.ID, err)
	}
	c.PaymentMethod = formaPagamento.String
	if c.PaymentDate, err = time.Parse(time.RFC3339, dataPagamento); err != nil {
		return c, fmt.Errorf("corrupt data_pagamento %q for credit %s: %w", dataPagamento, c.ID, err)
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return c, fmt.Errorf("corrupt created_at %q for credit %s: %w", createdAt, c.ID, err)
	}
	return c, nil
}

// =============================================================================
// ALLOCATION STORE (ledger.AllocationStore interface)
// =============================================================================

func (s *Store) CreateAllocation(ctx context.Context, a ledger.Allocation) error {
	return createAllocation(ctx, s.db, a)
}

func createAllocation(ctx context.Context, q dbtx, a ledger.Allocation) error {
	query := `
		INSERT INTO allocations
		(id, org_id, credit_id, trip_id, beneficiary_id, valor_utilizado,
		 observacoes, data_vinculacao)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		a.ID, a.OrgID, a.CreditID, a.TripID,
		nullString(string(a.BeneficiaryID)),
		a.Amount.String(),
		nullString(a.Notes),
		a.AllocatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

const allocationColumns = `id, org_id, credit_id, trip_id, beneficiary_id,
	valor_utilizado, observacoes, data_vinculacao`

func (s *Store) GetAllocation(ctx context.Context, org ledger.OrgID, id ledger.AllocationID) (ledger.Allocation, error) {
	return getAllocation(ctx, s.db, org, id)
}

func getAllocation(ctx context.Context, q dbtx, org ledger.OrgID, id ledger.AllocationID) (ledger.Allocation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE org_id = ? AND id = ?`,
		org, id,
	)
	a, err := scanAllocation(row)
	if err == sql.ErrNoRows {
		return ledger.Allocation{}, ledger.ErrAllocationNotFound
	}
	return a, err
}

func (s *Store) ListAllocationsByCredit(ctx context.Context, org ledger.OrgID, credit ledger.CreditID) ([]ledger.Allocation, error) {
	return listAllocationsByCredit(ctx, s.db, org, credit)
}

func listAllocationsByCredit(ctx context.Context, q dbtx, org ledger.OrgID, credit ledger.CreditID) ([]ledger.Allocation, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations
		 WHERE org_id = ? AND credit_id = ?
		 ORDER BY data_vinculacao ASC, id ASC`,
		org, credit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocations []ledger.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func (s *Store) DeleteAllocation(ctx context.Context, org ledger.OrgID, id ledger.AllocationID) error {
	return deleteAllocation(ctx, s.db, org, id)
}

func deleteAllocation(ctx context.Context, q dbtx, org ledger.OrgID, id ledger.AllocationID) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM allocations WHERE org_id = ? AND id = ?`, org, id)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAllocationNotFound
	}
	return nil
}

func scanAllocation(row interface{ Scan(...any) error }) (ledger.Allocation, error) {
	var (
		a           ledger.Allocation
		beneficiary sql.NullString
		valor       string
		notes       sql.NullString
		allocatedAt string
	)
	err := row.Scan(&a.ID, &a.OrgID, &a.CreditID, &a.TripID,
		&beneficiary, &valor, &notes, &allocatedAt)
	if err != nil {
		return a, err
	}

	a.BeneficiaryID = ledger.ClientID(beneficiary.String)
	if a.Amount, err = decimal.NewFromString(valor); err != nil {
		return a, fmt.Errorf("corrupt valor_utilizado %q for allocation %s: %w", valor, a.ID, err)
	}
	a.Notes = notes.String
	if a.AllocatedAt, err = time.Parse(time.RFC3339Nano, allocatedAt); err != nil {
		return a, fmt.Errorf("corrupt data_vinculacao %q for allocation %s: %w", allocatedAt, a.ID, err)
	}
	return a, nil
}

// =============================================================================
// MOVEMENT STORE (ledger.MovementStore interface)
// =============================================================================

func (s *Store) AppendMovement(ctx context.Context, m ledger.Movement) error {
	return appendMovement(ctx, s.db, m)
}

func appendMovement(ctx context.Context, q dbtx, m ledger.Movement) error {
	query := `
		INSERT INTO movements
		(id, org_id, client_id, tipo, valor, descricao, trip_id,
		 referencia_id, referencia_tipo, saldo_anterior, saldo_atual,
		 data_transacao, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		m.ID, m.OrgID, m.ClientID, m.Type,
		m.Amount.String(),
		nullString(m.Description),
		nullString(string(m.TripID)),
		nullString(m.Reference.ID),
		nullString(string(m.Reference.Type)),
		m.Previous.String(), m.Balance.String(),
		m.OccurredAt.UTC().Format(time.RFC3339),
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("movement %s already recorded: %w", m.ID, err)
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

const movementColumns = `id, org_id, client_id, tipo, valor, descricao,
	trip_id, referencia_id, referencia_tipo, saldo_anterior, saldo_atual,
	data_transacao, created_at`

func (s *Store) LastMovement(ctx context.Context, org ledger.OrgID, client ledger.ClientID) (*ledger.Movement, error) {
	return lastMovement(ctx, s.db, org, client)
}

func lastMovement(ctx context.Context, q dbtx, org ledger.OrgID, client ledger.ClientID) (*ledger.Movement, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements
		 WHERE org_id = ? AND client_id = ?
		 ORDER BY seq DESC LIMIT 1`,
		org, client,
	)
	m, err := scanMovement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) Movements(ctx context.Context, org ledger.OrgID, client ledger.ClientID) ([]ledger.Movement, error) {
	return movements(ctx, s.db, org, client)
}

func movements(ctx context.Context, q dbtx, org ledger.OrgID, client ledger.ClientID) ([]ledger.Movement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM movements
		 WHERE org_id = ? AND client_id = ?
		 ORDER BY seq ASC`,
		org, client,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var result []ledger.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanMovement(row interface{ Scan(...any) error }) (ledger.Movement, error) {
	var (
		m             ledger.Movement
		valor         string
		descricao     sql.NullString
		tripID        sql.NullString
		refID         sql.NullString
		refType       sql.NullString
		saldoAnterior string
		saldoAtual    string
		occurredAt    string
		createdAt     string
	)
	err := row.Scan(&m.ID, &m.OrgID, &m.ClientID, &m.Type, &valor,
		&descricao, &tripID, &refID, &refType,
		&saldoAnterior, &saldoAtual, &occurredAt, &createdAt)
	if err != nil {
		return m, err
	}

	if m.Amount, err = decimal.NewFromString(valor); err != nil {
		return m, fmt.Errorf("corrupt valor %q for movement %s: %w", valor, m.ID, err)
	}
	m.Description = descricao.String
	m.TripID = ledger.TripID(tripID.String)
	m.Reference = ledger.Reference{ID: refID.String, Type: ledger.ReferenceType(refType.String)}
	if m.Previous, err = decimal.NewFromString(saldoAnterior); err != nil {
		return m, fmt.Errorf("corrupt saldo_anterior %q for movement %s: %w", saldoAnterior, m.ID, err)
	}
	if m.Balance, err = decimal.NewFromString(saldoAtual); err != nil {
		return m, fmt.Errorf("corrupt saldo_atual %q for movement %s: %w", saldoAtual, m.ID, err)
	}
	if m.OccurredAt, err = time.Parse(time.RFC3339, occurredAt); err != nil {
		return m, fmt.Errorf("corrupt data_transacao %q for movement %s: %w", occurredAt, m.ID, err)
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return m, fmt.Errorf("corrupt created_at %q for movement %s: %w", createdAt, m.ID, err)
	}
	return m, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Transactions are
// serialized against each other; SQLite allows a single writer anyway.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every store call through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) CreateCredit(ctx context.Context, c ledger.Credit) error {
	return createCredit(ctx, t.tx, c)
}

func (t *txStore) GetCredit(ctx context.Context, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	return getCredit(ctx, t.tx, org, id)
}

func (t *txStore) ListCreditsByClient(ctx context.Context, org ledger.OrgID, client ledger.ClientID) ([]ledger.Credit, error) {
	return listCreditsByClient(ctx, t.tx, org, client)
}

func (t *txStore) DecrementBalance(ctx context.Context, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	return decrementBalance(ctx, t.tx, org, id, amount)
}

func (t *txStore) IncrementBalance(ctx context.Context, org ledger.OrgID, id ledger.CreditID, amount decimal.Decimal) (ledger.Credit, error) {
	return incrementBalance(ctx, t.tx, org, id, amount)
}

func (t *txStore) Refund(ctx context.Context, org ledger.OrgID, id ledger.CreditID) (ledger.Credit, error) {
	return refund(ctx, t.tx, org, id)
}

func (t *txStore) DeleteCredit(ctx context.Context, org ledger.OrgID, id ledger.CreditID) error {
	return deleteCredit(ctx, t.tx, org, id)
}

func (t *txStore) CreateAllocation(ctx context.Context, a ledger.Allocation) error {
	return createAllocation(ctx, t.tx, a)
}

func (t *txStore) GetAllocation(ctx context.Context, org ledger.OrgID, id ledger.AllocationID) (ledger.Allocation, error) {
	return getAllocation(ctx, t.tx, org, id)
}

func (t *txStore) ListAllocationsByCredit(ctx context.Context, org ledger.OrgID, credit ledger.CreditID) ([]ledger.Allocation, error) {
	return listAllocationsByCredit(ctx, t.tx, org, credit)
}

func (t *txStore) DeleteAllocation(ctx context.Context, org ledger.OrgID, id ledger.AllocationID) error {
	return deleteAllocation(ctx, t.tx, org, id)
}

func (t *txStore) AppendMovement(ctx context.Context, m ledger.Movement) error {
	return appendMovement(ctx, t.tx, m)
}

func (t *txStore) LastMovement(ctx context.Context, org ledger.OrgID, client ledger.ClientID) (*ledger.Movement, error) {
	return lastMovement(ctx, t.tx, org, client)
}

func (t *txStore) Movements(ctx context.Context, org ledger.OrgID, client ledger.ClientID) ([]ledger.Movement, error) {
	return movements(ctx, t.tx, org, client)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"allocations", "movements", "credits"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
