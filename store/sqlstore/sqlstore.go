/*
Package sqlstore provides the SQL-backed implementation of the storage interfaces.

PURPOSE:
  Implements the ledger, payment and roster persistence interfaces on
  database/sql. The same statements run against SQLite (mattn/go-sqlite3)
  and PostgreSQL (pgx stdlib driver); only the schema and the placeholder
  style differ between dialects.

INTERFACES IMPLEMENTED:
  generic.TxStore:      Append, AppendBatch, Query, WithTx
  generic.LatestDater:  MAX(date_key) without a scan
  generic.PaymentStore: Payouts recorded by the control surface
  roster.Store:         Staff roster rows

APPEND-ONLY ENFORCEMENT:
  There are no UPDATE or DELETE statements on the incentives table.
  Corrections are appended as adjustment records. Record IDs are unique;
  a repeated ID fails with generic.ErrDuplicateRecord.

KEY TABLES:
  incentives: Immutable ledger of sale shares, pool shares and adjustments
  payments:   Payouts, independent of the ledger
  staff:      Roster, upserted by case-folded name

DATES:
  Every dated row stores date_key (yyyy-mm-dd, indexed, sorts in calendar
  order) and date_label (dd-mm-yyyy, the form shown to users). Amounts are
  stored as decimal text so no precision is lost on either dialect.

CONCURRENCY:
  Uses sync.RWMutex around writes. SQLite is opened with WAL and a single
  connection so an in-memory database is shared by every call.

USAGE:
  store, err := sqlstore.OpenSQLite("./data/incentives.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for tests
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/roster"
)

// Dialect names the SQL flavour a Store speaks.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Store implements all storage interfaces on a *sql.DB.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	dialect Dialect
}

var (
	_ generic.TxStore      = (*Store)(nil)
	_ generic.LatestDater  = (*Store)(nil)
	_ generic.PaymentStore = (*Store)(nil)
	_ roster.Store         = (*Store)(nil)
)

// OpenSQLite opens (or creates) a SQLite database at path.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return open(context.Background(), db, SQLite)
}

// OpenPostgres connects to dsn through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return open(ctx, db, Postgres)
}

func open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which database the store is connected to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// =============================================================================
// SCHEMA
// =============================================================================

func (s *Store) migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == Postgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		// Incentives (append-only ledger)
		`CREATE TABLE IF NOT EXISTS incentives (
			seq ` + serial + `,
			id TEXT NOT NULL UNIQUE,
			run_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			date_key TEXT NOT NULL,
			date_label TEXT NOT NULL,
			staff TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			incentive TEXT NOT NULL,
			gross TEXT NOT NULL DEFAULT '0',
			net TEXT NOT NULL DEFAULT '0',
			status TEXT NOT NULL DEFAULT '',
			bill_no TEXT NOT NULL DEFAULT '',
			item_name TEXT NOT NULL DEFAULT '',
			item_code TEXT NOT NULL DEFAULT '',
			additional_item_code TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			qty TEXT NOT NULL DEFAULT '0',
			rate TEXT NOT NULL DEFAULT '0',
			paired_agent TEXT,
			helper_count INTEGER NOT NULL DEFAULT 0,
			total_pool TEXT NOT NULL DEFAULT '0',
			reason TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incentives_date ON incentives(date_key)`,
		`CREATE INDEX IF NOT EXISTS idx_incentives_staff_date ON incentives(staff, date_key)`,
		`CREATE INDEX IF NOT EXISTS idx_incentives_run ON incentives(run_id)`,

		`CREATE TABLE IF NOT EXISTS payments (
			seq ` + serial + `,
			id TEXT NOT NULL UNIQUE,
			date_key TEXT NOT NULL,
			date_label TEXT NOT NULL,
			staff TEXT NOT NULL,
			amount TEXT NOT NULL,
			cleared_date TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_staff_date ON payments(staff, date_key)`,

		`CREATE TABLE IF NOT EXISTS staff (
			seq ` + serial + `,
			name_key TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// QUERY PLUMBING
// =============================================================================

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// STORE INTERFACE IMPLEMENTATION
// =============================================================================

const insertRecord = `
	INSERT INTO incentives (id, run_id, kind, date_key, date_label, staff, role, incentive,
		gross, net, status, bill_no, item_name, item_code, additional_item_code, company,
		qty, rate, paired_agent, helper_count, total_pool, reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const recordColumns = `id, run_id, kind, date_key, staff, role, incentive, gross, net,
	status, bill_no, item_name, item_code, additional_item_code, company, qty, rate,
	paired_agent, helper_count, total_pool, reason, created_at`

// Append persists one record.
func (s *Store) Append(ctx context.Context, rec generic.IncentiveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTx(ctx, s.db, rec)
}

func (s *Store) appendTx(ctx context.Context, db execer, rec generic.IncentiveRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	role := ""
	if rec.Role.Valid() {
		role = rec.Role.String()
	}

	_, err := db.ExecContext(ctx, s.rebind(insertRecord),
		string(rec.ID),
		string(rec.RunID),
		string(rec.Kind),
		rec.Date.Key(),
		rec.Date.String(),
		rec.Staff,
		role,
		rec.Incentive.String(),
		rec.Gross.String(),
		rec.Net.String(),
		string(rec.Status),
		rec.BillNo,
		rec.ItemName,
		rec.ItemCode,
		rec.AdditionalItemCode,
		rec.Company,
		rec.Qty.String(),
		rec.Rate.String(),
		nullString(rec.PairedAgent),
		rec.HelperCount,
		rec.TotalPool.String(),
		nullString(rec.Reason),
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", generic.ErrDuplicateRecord, rec.ID)
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// AppendBatch persists records in one database transaction.
func (s *Store) AppendBatch(ctx context.Context, recs []generic.IncentiveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := s.appendTx(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query returns matching records ordered by date, then insertion order.
func (s *Store) Query(ctx context.Context, f generic.Filter) ([]generic.IncentiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(ctx, s.db, f)
}

func (s *Store) query(ctx context.Context, db execer, f generic.Filter) ([]generic.IncentiveRecord, error) {
	where, args := whereClause(f)
	q := "SELECT " + recordColumns + " FROM incentives" + where + " ORDER BY date_key, seq"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var result []generic.IncentiveRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// whereClause translates a Filter. It must select exactly what
// Filter.Matches accepts.
func whereClause(f generic.Filter) (string, []any) {
	var conds []string
	var args []any

	if !f.From.IsZero() {
		conds = append(conds, "date_key >= ?")
		args = append(args, f.From.Key())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date_key <= ?")
		args = append(args, f.To.Key())
	}
	if len(f.Staff) > 0 {
		conds = append(conds, "LOWER(staff) IN ("+placeholders(len(f.Staff))+")")
		args = appendLower(args, f.Staff)
	}
	if len(f.ExcludeStaff) > 0 {
		conds = append(conds, "LOWER(staff) NOT IN ("+placeholders(len(f.ExcludeStaff))+")")
		args = appendLower(args, f.ExcludeStaff)
	}
	if len(f.Kinds) > 0 {
		conds = append(conds, "kind IN ("+placeholders(len(f.Kinds))+")")
		for _, k := range f.Kinds {
			args = append(args, string(k))
		}
	}
	if f.ExcludePool {
		conds = append(conds, "kind <> ? AND bill_no <> ?")
		args = append(args, string(generic.KindPoolShare), generic.PoolBillNo)
	}
	for _, like := range [][2]string{
		{"item_name", f.ItemName},
		{"item_code", f.ItemCode},
		{"additional_item_code", f.AdditionalItemCode},
	} {
		if like[1] == "" {
			continue
		}
		conds = append(conds, "LOWER("+like[0]+") LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToLower(like[1]))+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes v match literally inside a LIKE pattern.
func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func appendLower(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, strings.ToLower(v))
	}
	return args
}

func scanRecord(rows *sql.Rows) (generic.IncentiveRecord, error) {
	var (
		rec                                               generic.IncentiveRecord
		id, runID, kind, dateKey, role, status, createdAt string
		incentive, gross, net, qty, rate, totalPool       string
		pairedAgent, reason                               sql.NullString
	)
	err := rows.Scan(&id, &runID, &kind, &dateKey, &rec.Staff, &role, &incentive, &gross, &net,
		&status, &rec.BillNo, &rec.ItemName, &rec.ItemCode, &rec.AdditionalItemCode, &rec.Company,
		&qty, &rate, &pairedAgent, &rec.HelperCount, &totalPool, &reason, &createdAt)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.ID = generic.RecordID(id)
	rec.RunID = generic.RunID(runID)
	rec.Kind = generic.RecordKind(kind)
	rec.Status = generic.PresenceStatus(status)
	rec.PairedAgent = pairedAgent.String
	rec.Reason = reason.String
	if rec.Date, err = generic.ParseKey(dateKey); err != nil {
		return rec, fmt.Errorf("record %s has bad date %q: %w", id, dateKey, err)
	}
	if role != "" {
		rec.Role, _ = generic.ParseRole(role)
	}
	rec.Incentive = parseDecimal(incentive)
	rec.Gross = parseDecimal(gross)
	rec.Net = parseDecimal(net)
	rec.Qty = parseDecimal(qty)
	rec.Rate = parseDecimal(rate)
	rec.TotalPool = parseDecimal(totalPool)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// LatestDate returns the newest ledger date.
func (s *Store) LatestDate(ctx context.Context) (generic.Date, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var key sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(date_key) FROM incentives").Scan(&key); err != nil {
		return generic.Date{}, false, fmt.Errorf("failed to read latest date: %w", err)
	}
	if !key.Valid || key.String == "" {
		return generic.Date{}, false, nil
	}
	d, err := generic.ParseKey(key.String)
	if err != nil {
		return generic.Date{}, false, err
	}
	return d, true, nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStore := &txStore{tx: tx, parent: s}
	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore runs statements on an open transaction. The parent lock is held.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) Append(ctx context.Context, rec generic.IncentiveRecord) error {
	return ts.parent.appendTx(ctx, ts.tx, rec)
}

func (ts *txStore) AppendBatch(ctx context.Context, recs []generic.IncentiveRecord) error {
	for _, rec := range recs {
		if err := ts.parent.appendTx(ctx, ts.tx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Query(ctx context.Context, f generic.Filter) ([]generic.IncentiveRecord, error) {
	return ts.parent.query(ctx, ts.tx, f)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) RecordPayment(ctx context.Context, p generic.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	cleared := ""
	if !p.ClearedDate.IsZero() {
		cleared = p.ClearedDate.Key()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO payments (id, date_key, date_label, staff, amount, cleared_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID,
		p.Date.Key(),
		p.Date.String(),
		p.Staff,
		p.Amount.String(),
		nullString(cleared),
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: payment %s", generic.ErrDuplicateRecord, p.ID)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *Store) Payments(ctx context.Context, staff string, p generic.Period) ([]generic.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := "SELECT id, date_key, staff, amount, cleared_date, created_at FROM payments WHERE 1 = 1"
	var args []any
	if staff != "" {
		q += " AND LOWER(staff) = ?"
		args = append(args, strings.ToLower(staff))
	}
	if !p.Start.IsZero() {
		q += " AND date_key >= ? AND date_key <= ?"
		args = append(args, p.Start.Key(), p.End.Key())
	}
	q += " ORDER BY date_key, seq"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var result []generic.PaymentRecord
	for rows.Next() {
		var (
			pay                        generic.PaymentRecord
			dateKey, amount, createdAt string
			cleared                    sql.NullString
		)
		if err := rows.Scan(&pay.ID, &dateKey, &pay.Staff, &amount, &cleared, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		pay.Date, _ = generic.ParseKey(dateKey)
		if cleared.Valid {
			pay.ClearedDate, _ = generic.ParseKey(cleared.String)
		}
		pay.Amount = parseDecimal(amount)
		pay.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		result = append(result, pay)
	}
	return result, rows.Err()
}

// =============================================================================
// STAFF (roster.Store)
// =============================================================================

// ListStaff returns the roster in the order members were first saved.
func (s *Store) ListStaff(ctx context.Context) ([]roster.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name, role, active FROM staff ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var result []roster.StaffMember
	for rows.Next() {
		var (
			m      roster.StaffMember
			role   string
			active int
		)
		if err := rows.Scan(&m.Name, &role, &active); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		if m.Role, err = generic.ParseRole(role); err != nil {
			return nil, fmt.Errorf("staff %s: %w", m.Name, err)
		}
		m.Active = active != 0
		result = append(result, m)
	}
	return result, rows.Err()
}

// SaveStaff inserts or updates a member keyed by case-folded name.
func (s *Store) SaveStaff(ctx context.Context, m roster.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	if m.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO staff (name_key, name, role, active, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			active = excluded.active,
			updated_at = excluded.updated_at`),
		strings.ToLower(m.Name),
		m.Name,
		m.Role.String(),
		active,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save staff: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
