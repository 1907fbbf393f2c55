/*
ledger.go - Aggregation over the append-only incentive ledger

PURPOSE:
  The Ledger answers every reporting question from the records a Store
  returns. Totals are never stored; they are always computed by summing
  records, so manual adjustments and pool shares are picked up without
  any reconciliation step.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: the ledger writes only through Store.Append/AppendBatch
  2. DECIMAL: every sum is decimal.Decimal, rounded only for display
  3. ORDERED: ByStaff is descending by incentive (name breaks ties),
     ByDate and ByMonth are ascending

QUERIES:
  Totals        sum of incentive / gross / net under a Filter
  ByStaff       group by staff, descending; Top and TopN on top of it
  ByDate        group by calendar day
  ByMonth       group by calendar month
  PoolTotal     total pool on a (staff, date) pool-share record
  StaffSummary  period + month-to-date figures for one staff member

CORRECTIONS:
  Adjust appends a KindAdjustment record (extra or cut, fixed value plus
  a percentage of the staff member's gross that day). The original sale
  records are untouched.

SEE ALSO:
  - store.go: Store and Filter
  - api/handlers.go: exposes these queries over HTTP
*/
package generic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATE TYPES
// =============================================================================

type Totals struct {
	Incentive decimal.Decimal
	Gross     decimal.Decimal
	Net       decimal.Decimal
	Records   int
}

func (t Totals) add(r IncentiveRecord) Totals {
	return Totals{
		Incentive: t.Incentive.Add(r.Incentive),
		Gross:     t.Gross.Add(r.Gross),
		Net:       t.Net.Add(r.Net),
		Records:   t.Records + 1,
	}
}

// Percentage of incentive over net, zero when net is zero.
func (t Totals) Percentage() decimal.Decimal {
	return Percentage(t.Incentive, t.Net)
}

type StaffTotal struct {
	Staff string
	Totals
}

type DateTotal struct {
	Date Date
	Totals
}

type MonthTotal struct {
	Year  int
	Month time.Month
	Totals
}

// StaffSummary holds the figures a per-staff incentive statement needs.
type StaffSummary struct {
	Staff       string
	Period      Period
	Current     Totals
	MonthToDate Totals
	PoolTotal   decimal.Decimal
	HasPool     bool
	Records     []IncentiveRecord
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// Append stamps missing IDs and timestamps, then persists.
func (l *Ledger) Append(ctx context.Context, rec IncentiveRecord) error {
	return l.Store.Append(ctx, stamp(rec, time.Now().UTC()))
}

func (l *Ledger) AppendBatch(ctx context.Context, recs []IncentiveRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	stamped := make([]IncentiveRecord, len(recs))
	for i, r := range recs {
		stamped[i] = stamp(r, now)
	}
	return l.Store.AppendBatch(ctx, stamped)
}

func stamp(r IncentiveRecord, now time.Time) IncentiveRecord {
	if r.ID == "" {
		r.ID = RecordID(uuid.NewString())
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	return r
}

func (l *Ledger) Records(ctx context.Context, f Filter) ([]IncentiveRecord, error) {
	return l.Store.Query(ctx, f)
}

func (l *Ledger) Totals(ctx context.Context, f Filter) (Totals, error) {
	recs, err := l.queryAll(ctx, f)
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, r := range recs {
		t = t.add(r)
	}
	return t, nil
}

// ByStaff groups by staff name, highest incentive first.
func (l *Ledger) ByStaff(ctx context.Context, f Filter) ([]StaffTotal, error) {
	recs, err := l.queryAll(ctx, f)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var out []StaffTotal
	for _, r := range recs {
		key := strings.ToLower(r.Staff)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, StaffTotal{Staff: r.Staff})
		}
		out[i].Totals = out[i].Totals.add(r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Incentive.Cmp(out[j].Incentive); c != 0 {
			return c > 0
		}
		return out[i].Staff < out[j].Staff
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Top returns the highest earner, false when the filter matches nothing.
func (l *Ledger) Top(ctx context.Context, f Filter) (StaffTotal, bool, error) {
	top, err := l.TopN(ctx, f, 1)
	if err != nil || len(top) == 0 {
		return StaffTotal{}, false, err
	}
	return top[0], true, nil
}

func (l *Ledger) TopN(ctx context.Context, f Filter, n int) ([]StaffTotal, error) {
	f.Limit = n
	return l.ByStaff(ctx, f)
}

// ByDate groups by calendar day in ascending order.
func (l *Ledger) ByDate(ctx context.Context, f Filter) ([]DateTotal, error) {
	recs, err := l.queryAll(ctx, f)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var out []DateTotal
	for _, r := range recs {
		key := r.Date.Key()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, DateTotal{Date: r.Date})
		}
		out[i].Totals = out[i].Totals.add(r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ByMonth groups by calendar month in ascending order.
func (l *Ledger) ByMonth(ctx context.Context, f Filter) ([]MonthTotal, error) {
	days, err := l.ByDate(ctx, f)
	if err != nil {
		return nil, err
	}

	var out []MonthTotal
	for _, d := range days {
		n := len(out)
		if n == 0 || out[n-1].Year != d.Date.Year() || out[n-1].Month != d.Date.Month() {
			out = append(out, MonthTotal{Year: d.Date.Year(), Month: d.Date.Month()})
			n++
		}
		t := out[n-1].Totals
		out[n-1].Totals = Totals{
			Incentive: t.Incentive.Add(d.Incentive),
			Gross:     t.Gross.Add(d.Gross),
			Net:       t.Net.Add(d.Net),
			Records:   t.Records + d.Records,
		}
	}
	return out, nil
}

// PoolTotal looks up the total pool recorded on staff's pool share for date.
func (l *Ledger) PoolTotal(ctx context.Context, staff string, date Date) (decimal.Decimal, bool, error) {
	f := OnDate(date).ForStaff(staff)
	f.Kinds = []RecordKind{KindPoolShare}
	f.Limit = 1
	recs, err := l.Store.Query(ctx, f)
	if err != nil {
		return decimal.Zero, false, err
	}
	if len(recs) == 0 {
		return decimal.Zero, false, nil
	}
	return recs[0].TotalPool, true, nil
}

// LatestDate returns the most recent date present in the ledger.
func (l *Ledger) LatestDate(ctx context.Context) (Date, bool, error) {
	if ld, ok := l.Store.(LatestDater); ok {
		return ld.LatestDate(ctx)
	}
	recs, err := l.Store.Query(ctx, Filter{})
	if err != nil || len(recs) == 0 {
		return Date{}, false, err
	}
	latest := recs[0].Date
	for _, r := range recs[1:] {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest, true, nil
}

// StaffSummary gathers the period rows and month-to-date totals for one
// staff member. Month-to-date runs from the first of End's month to End.
func (l *Ledger) StaffSummary(ctx context.Context, staff string, p Period) (StaffSummary, error) {
	if err := p.Validate(); err != nil {
		return StaffSummary{}, err
	}
	summary := StaffSummary{Staff: staff, Period: p}

	recs, err := l.queryAll(ctx, InPeriod(p).ForStaff(staff))
	if err != nil {
		return summary, err
	}
	summary.Records = recs
	for _, r := range recs {
		summary.Current = summary.Current.add(r)
	}

	summary.MonthToDate, err = l.Totals(ctx, InPeriod(MonthToDate(p.End)).ForStaff(staff))
	if err != nil {
		return summary, err
	}

	summary.PoolTotal, summary.HasPool, err = l.PoolTotal(ctx, staff, p.End)
	return summary, err
}

// queryAll ignores f.Limit so aggregates see every matching row.
func (l *Ledger) queryAll(ctx context.Context, f Filter) ([]IncentiveRecord, error) {
	f.Limit = 0
	return l.Store.Query(ctx, f)
}

// =============================================================================
// ADJUSTMENTS - Manual corrections, appended never edited
// =============================================================================

type AdjustmentRequest struct {
	Staff   string
	Role    Role
	Date    Date
	Value   decimal.Decimal // fixed amount
	Percent decimal.Decimal // percentage of the staff member's gross on Date
	Cut     bool            // subtract instead of add
	Reason  string
}

// Adjust appends a correction for staff on the given date and returns it.
func (l *Ledger) Adjust(ctx context.Context, req AdjustmentRequest) (IncentiveRecord, error) {
	if req.Staff == "" {
		return IncentiveRecord{}, fmt.Errorf("%w: staff is required", ErrStaffNotFound)
	}
	if req.Value.IsNegative() || req.Percent.IsNegative() {
		return IncentiveRecord{}, fmt.Errorf("%w: value and percent must not be negative", ErrInvalidAmount)
	}

	f := OnDate(req.Date).ForStaff(req.Staff)
	f.Kinds = []RecordKind{KindSale}
	day, err := l.Totals(ctx, f)
	if err != nil {
		return IncentiveRecord{}, err
	}

	delta := req.Value.Add(day.Gross.Mul(req.Percent).Div(hundred))
	if req.Cut {
		delta = delta.Neg()
	}

	rec := stamp(IncentiveRecord{
		Kind:      KindAdjustment,
		Date:      req.Date,
		Staff:     req.Staff,
		Role:      req.Role,
		Incentive: delta,
		Status:    StatusPresent,
		Reason:    req.Reason,
	}, time.Now().UTC())
	if err := l.Store.Append(ctx, rec); err != nil {
		return IncentiveRecord{}, fmt.Errorf("failed to append adjustment: %w", err)
	}
	return rec, nil
}
