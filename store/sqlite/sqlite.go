/*
Package sqlite provides the SQLite-backed ledger.Store.

PURPOSE:
  Production persistence for the statement engine. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  members:       member directory (read-only for the engine)
  titles:        honorific history
  runs:          regeneration runs with template and finalized timestamp
  transactions:  payments / misc purchases / corrections (append-only)
  purchases:     tally rows with the historical unit price frozen in
  artifacts:     generated statement artifacts, one per (run, member)

STREAMING READS:
  Every sequence method returns a cursor over *sql.Rows ordered by
  member id, so a regeneration pass streams the ledger through the
  k-way merge without loading it into memory.

WRITE DISCIPLINE:
  The engine's only writes are ApplyArtifactOps and FinalizeRun. Both
  run in a database transaction that re-checks "run not finalized", so
  a regeneration racing a finalize loses cleanly and writes nothing.
  Purchases and transactions have insert helpers for the recording
  flows, but no update or delete - corrections are new rows.

WAL MODE:
  The database is opened with WAL for better concurrency: readers don't
  block the single writer, and crash recovery is cheap.

SEE ALSO:
  - ledger/store.go: interface definition
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/klubkasse/statement-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes write transactions
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
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
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS titles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id TEXT NOT NULL REFERENCES members(id),
		period INTEGER NOT NULL,
		kind TEXT NOT NULL,
		root TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_titles_member
		ON titles(member_id);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		period INTEGER NOT NULL,
		template_subject TEXT,
		template_body TEXT,
		finalized_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Transactions (append-only; corrections are new rows)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		member_id TEXT NOT NULL REFERENCES members(id),
		kind TEXT NOT NULL,
		time TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_run_member
		ON transactions(run_id, member_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_member
		ON transactions(member_id);

	-- Purchases carry the unit price in effect at purchase time.
	-- A NULL unit_price is a broken category reference, surfaced to the
	-- engine as a fatal computation error rather than silently dropped.
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		member_id TEXT NOT NULL REFERENCES members(id),
		category TEXT NOT NULL,
		unit_price TEXT,
		count TEXT NOT NULL,
		time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_run_member
		ON purchases(run_id, member_id);
	CREATE INDEX IF NOT EXISTS idx_purchases_member
		ON purchases(member_id);

	-- Statement artifacts: the only table the engine mutates.
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		member_id TEXT NOT NULL REFERENCES members(id),
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		recipient_email TEXT NOT NULL,
		UNIQUE(run_id, member_id)
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_run_member
		ON artifacts(run_id, member_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROW CURSOR - streaming ledger.Sequence over *sql.Rows
// =============================================================================

type rowSequence struct {
	rows *sql.Rows
	scan func(*sql.Rows) (ledger.Record, error)
}

func (r *rowSequence) Next() (ledger.Record, bool, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	rec, err := r.scan(r.rows)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (r *rowSequence) Close() error { return r.rows.Close() }

func (s *Store) query(ctx context.Context, scan func(*sql.Rows) (ledger.Record, error), q string, args ...any) (ledger.Sequence, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return &rowSequence{rows: rows, scan: scan}, nil
}

// =============================================================================
// SCANNERS
// =============================================================================

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed decimal %q: %w", s, err)
	}
	return d, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

func scanMember(rows *sql.Rows) (ledger.Record, error) {
	var m ledger.Member
	if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
		return nil, err
	}
	return m, nil
}

func scanTitle(rows *sql.Rows) (ledger.Record, error) {
	var t ledger.Title
	if err := rows.Scan(&t.Member, &t.Period, &t.Kind, &t.Root); err != nil {
		return nil, err
	}
	return t, nil
}

func scanTransaction(rows *sql.Rows) (ledger.Record, error) {
	var (
		t            ledger.Transaction
		amount, when string
	)
	if err := rows.Scan(&t.ID, &t.Run, &t.Member, &t.Kind, &when, &amount, &t.Note); err != nil {
		return nil, err
	}
	var err error
	if t.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if t.Time, err = parseTime(when); err != nil {
		return nil, err
	}
	return t, nil
}

func scanPurchase(rows *sql.Rows) (ledger.Record, error) {
	var (
		p           ledger.Purchase
		price       sql.NullString
		count, when string
	)
	if err := rows.Scan(&p.Run, &p.Member, &p.Category, &price, &count, &when); err != nil {
		return nil, err
	}
	var err error
	if price.Valid {
		unit, err := parseDecimal(price.String)
		if err != nil {
			return nil, err
		}
		p.UnitPrice = decimal.NewNullDecimal(unit)
	}
	if p.Count, err = parseDecimal(count); err != nil {
		return nil, err
	}
	if p.Time, err = parseTime(when); err != nil {
		return nil, err
	}
	return p, nil
}

func scanArtifact(rows *sql.Rows) (ledger.Record, error) {
	var a ledger.StatementArtifact
	err := rows.Scan(&a.ID, &a.Run, &a.Member, &a.Subject, &a.Body,
		&a.RecipientName, &a.RecipientEmail)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// =============================================================================
// READS (ledger.Store interface)
// =============================================================================

func (s *Store) Members(ctx context.Context) (ledger.Sequence, error) {
	return s.query(ctx, scanMember,
		`SELECT id, name, email FROM members ORDER BY id`)
}

func (s *Store) Titles(ctx context.Context) (ledger.Sequence, error) {
	return s.query(ctx, scanTitle,
		`SELECT member_id, period, kind, root FROM titles ORDER BY member_id, period, root`)
}

func (s *Store) Transactions(ctx context.Context, run ledger.RunID) (ledger.Sequence, error) {
	return s.query(ctx, scanTransaction,
		`SELECT id, run_id, member_id, kind, time, amount, note
		 FROM transactions WHERE run_id = ? ORDER BY member_id, time`, run)
}

func (s *Store) Purchases(ctx context.Context, run ledger.RunID) (ledger.Sequence, error) {
	return s.query(ctx, scanPurchase,
		`SELECT run_id, member_id, category, unit_price, count, time
		 FROM purchases WHERE run_id = ? ORDER BY member_id, category`, run)
}

func (s *Store) Artifacts(ctx context.Context, run ledger.RunID) (ledger.Sequence, error) {
	return s.query(ctx, scanArtifact,
		`SELECT id, run_id, member_id, subject, body, recipient_name, recipient_email
		 FROM artifacts WHERE run_id = ? ORDER BY member_id`, run)
}

func (s *Store) AllPurchases(ctx context.Context) (ledger.Sequence, error) {
	return s.query(ctx, scanPurchase,
		`SELECT run_id, member_id, category, unit_price, count, time
		 FROM purchases ORDER BY member_id`)
}

func (s *Store) AllTransactions(ctx context.Context) (ledger.Sequence, error) {
	return s.query(ctx, scanTransaction,
		`SELECT id, run_id, member_id, kind, time, amount, note
		 FROM transactions ORDER BY member_id`)
}

func (s *Store) PurchasePrices(ctx context.Context, run ledger.RunID) ([]ledger.CategoryPrice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category, unit_price FROM purchases
		 WHERE run_id = ? AND unit_price IS NOT NULL
		 ORDER BY category, CAST(unit_price AS REAL)`, run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []ledger.CategoryPrice
	for rows.Next() {
		var (
			cp  ledger.CategoryPrice
			raw string
		)
		if err := rows.Scan(&cp.Name, &raw); err != nil {
			return nil, err
		}
		if cp.UnitPrice, err = parseDecimal(raw); err != nil {
			return nil, err
		}
		prices = append(prices, cp)
	}
	return prices, rows.Err()
}

// =============================================================================
// RUN LIFECYCLE
// =============================================================================

func (s *Store) Run(ctx context.Context, id ledger.RunID) (ledger.Run, error) {
	var (
		run           ledger.Run
		subject, body sql.NullString
		finalized     sql.NullString
		created       string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, period, template_subject, template_body, finalized_at, created_at
		 FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Period, &subject, &body, &finalized, &created)
	if err == sql.ErrNoRows {
		return ledger.Run{}, ledger.ErrRunNotFound
	}
	if err != nil {
		return ledger.Run{}, err
	}

	if subject.Valid && body.Valid {
		run.Template = &ledger.Template{Subject: subject.String, Body: body.String}
	}
	if finalized.Valid {
		t, err := parseTime(finalized.String)
		if err != nil {
			return ledger.Run{}, err
		}
		run.FinalizedAt = &t
	}
	if run.CreatedAt, err = parseTime(created); err != nil {
		return ledger.Run{}, err
	}
	return run, nil
}

func (s *Store) FinalizeRun(ctx context.Context, id ledger.RunID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finalized_at = ? WHERE id = ? AND finalized_at IS NULL`,
		at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish "already finalized" from "no such run".
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ledger.ErrRunNotFound
	}
	if err != nil {
		return err
	}
	return ledger.ErrRunFinalized
}

// =============================================================================
// ARTIFACT WRITES
// =============================================================================

// ApplyArtifactOps applies a regeneration's whole op set in one database
// transaction. The finalized check lives inside the same transaction,
// so a concurrently finalized run fails the apply with nothing written.
func (s *Store) ApplyArtifactOps(ctx context.Context, run ledger.RunID, ops []ledger.ArtifactOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var finalized sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT finalized_at FROM runs WHERE id = ?`, run).Scan(&finalized)
	if err == sql.ErrNoRows {
		return ledger.ErrRunNotFound
	}
	if err != nil {
		return err
	}
	if finalized.Valid {
		return ledger.ErrRunFinalized
	}

	for _, op := range ops {
		a := op.Artifact
		switch op.Kind {
		case ledger.OpCreate:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO artifacts (id, run_id, member_id, subject, body, recipient_name, recipient_email)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				a.ID, run, a.Member, a.Subject, a.Body, a.RecipientName, a.RecipientEmail)
			if err != nil {
				return err
			}
		case ledger.OpUpdate:
			res, err := tx.ExecContext(ctx,
				`UPDATE artifacts SET subject = ?, body = ?, recipient_name = ?, recipient_email = ?
				 WHERE id = ? AND run_id = ?`,
				a.Subject, a.Body, a.RecipientName, a.RecipientEmail, a.ID, run)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return ledger.ErrArtifactNotFound
			}
		case ledger.OpDelete:
			res, err := tx.ExecContext(ctx,
				`DELETE FROM artifacts WHERE id = ? AND run_id = ?`, a.ID, run)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return ledger.ErrArtifactNotFound
			}
		default:
			return fmt.Errorf("unknown artifact op kind %q", op.Kind)
		}
	}
	return tx.Commit()
}

// =============================================================================
// RECORDING HELPERS - used by the (out-of-scope) tally and payment flows
// =============================================================================

func (s *Store) SaveMember(ctx context.Context, m ledger.Member) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, name, email) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		m.ID, m.Name, m.Email)
	return err
}

func (s *Store) AddTitle(ctx context.Context, t ledger.Title) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO titles (member_id, period, kind, root) VALUES (?, ?, ?, ?)`,
		t.Member, t.Period, t.Kind, t.Root)
	return err
}

func (s *Store) SaveRun(ctx context.Context, run ledger.Run) error {
	var subject, body any
	if run.Template != nil {
		subject, body = run.Template.Subject, run.Template.Body
	}
	var finalized any
	if run.FinalizedAt != nil {
		finalized = run.FinalizedAt.UTC().Format(time.RFC3339)
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, period, template_subject, template_body, finalized_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   period = excluded.period,
		   template_subject = excluded.template_subject,
		   template_body = excluded.template_body,
		   finalized_at = excluded.finalized_at`,
		run.ID, run.Period, subject, body, finalized, created.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) AddTransaction(ctx context.Context, t ledger.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, run_id, member_id, kind, time, amount, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Run, t.Member, t.Kind, t.Time.UTC().Format(time.RFC3339), t.Amount.String(), t.Note)
	return err
}

func (s *Store) AddPurchase(ctx context.Context, p ledger.Purchase) error {
	var price any
	if p.UnitPrice.Valid {
		price = p.UnitPrice.Decimal.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (run_id, member_id, category, unit_price, count, time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Run, p.Member, p.Category, price, p.Count.String(), p.Time.UTC().Format(time.RFC3339))
	return err
}
