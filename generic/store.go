/*
store.go - Persistence contract for the incentive ledger

PURPOSE:
  Defines the narrow repository between the engine and the database.
  The engine only ever appends; reporting only ever queries. Different
  implementations use SQLite, PostgreSQL, or memory.

KEY INTERFACES:
  Store:        Append, AppendBatch, Query (append-only)
  TxStore:      Store + WithTx for all-or-nothing runs
  PaymentStore: Payouts recorded by the control surface

APPEND-ONLY CONTRACT:
  There is no Update or Delete. Manual corrections are appended as
  KindAdjustment records and picked up by every aggregate.

FILTERS:
  Filter is shared by every implementation. SQL stores translate it to a
  WHERE clause; the memory store calls Filter.Matches directly.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - generic/store/memory.go: in-memory, for tests and dry runs

SEE ALSO:
  - ledger.go: aggregation built on Query
*/
package generic

import (
	"context"
	"strings"
)

// =============================================================================
// FILTER - Shared query predicate
// =============================================================================

// Filter selects ledger rows. Zero values mean "no constraint".
type Filter struct {
	From Date // inclusive
	To   Date // inclusive

	Staff        []string // any of, case-insensitive
	ExcludeStaff []string // none of, case-insensitive
	Kinds        []RecordKind
	ExcludePool  bool

	// Case-insensitive substring matches.
	ItemName           string
	ItemCode           string
	AdditionalItemCode string

	Limit int
}

// OnDate selects a single day.
func OnDate(d Date) Filter {
	return Filter{From: d, To: d}
}

// InPeriod selects [p.Start, p.End].
func InPeriod(p Period) Filter {
	return Filter{From: p.Start, To: p.End}
}

// ForStaff returns a copy restricted to one staff member.
func (f Filter) ForStaff(name string) Filter {
	f.Staff = []string{name}
	return f
}

// Matches reports whether r satisfies every constraint in f.
func (f Filter) Matches(r IncentiveRecord) bool {
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	if len(f.Staff) > 0 && !containsFold(f.Staff, r.Staff) {
		return false
	}
	if containsFold(f.ExcludeStaff, r.Staff) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, r.Kind) {
		return false
	}
	if f.ExcludePool && r.IsPoolShare() {
		return false
	}
	return substringFold(r.ItemName, f.ItemName) &&
		substringFold(r.ItemCode, f.ItemCode) &&
		substringFold(r.AdditionalItemCode, f.AdditionalItemCode)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func containsKind(list []RecordKind, k RecordKind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

func substringFold(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// =============================================================================
// STORE - Interface for record persistence (append-only)
// =============================================================================

// Store handles persistence of incentive records.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// Append persists one record.
	Append(ctx context.Context, rec IncentiveRecord) error

	// AppendBatch persists records atomically. Either all succeed or none do.
	AppendBatch(ctx context.Context, recs []IncentiveRecord) error

	// Query returns matching records ordered by date, then insertion order.
	Query(ctx context.Context, f Filter) ([]IncentiveRecord, error)
}

// TxStore wraps Store with transaction support. A run writes all of its
// records inside one WithTx so readers never see half a batch.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. An error from fn rolls
	// everything back; nil commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// LatestDater is implemented by stores that can find the newest ledger
// date without a full scan.
type LatestDater interface {
	LatestDate(ctx context.Context) (Date, bool, error)
}

// PaymentStore persists payouts recorded by the control surface.
type PaymentStore interface {
	RecordPayment(ctx context.Context, p PaymentRecord) error
	Payments(ctx context.Context, staff string, p Period) ([]PaymentRecord, error)
}
