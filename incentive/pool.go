package incentive

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/roster"
)

// =============================================================================
// ATTENDANCE
// =============================================================================

// Attendance is one row of the attendance extract. Rows without a date
// apply to every date in the batch.
type Attendance struct {
	Name string
	Date generic.Date
	Code string
}

func hasCode(codes []string, code string) bool {
	code = strings.TrimSpace(code)
	for _, c := range codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// =============================================================================
// POOL - Run-scoped, per-date accumulator
// =============================================================================

type Pool struct {
	totals map[string]decimal.Decimal
	dates  map[string]generic.Date
}

func NewPool() *Pool {
	return &Pool{
		totals: make(map[string]decimal.Decimal),
		dates:  make(map[string]generic.Date),
	}
}

// Touch marks d as seen so it is distributed even with nothing in it.
func (p *Pool) Touch(d generic.Date) {
	key := d.Key()
	if _, ok := p.dates[key]; !ok {
		p.dates[key] = d
		p.totals[key] = decimal.Zero
	}
}

func (p *Pool) Add(d generic.Date, amount decimal.Decimal) {
	p.Touch(d)
	key := d.Key()
	p.totals[key] = p.totals[key].Add(amount)
}

func (p *Pool) Total(d generic.Date) decimal.Decimal {
	return p.totals[d.Key()]
}

// Dates returns every touched date, ascending.
func (p *Pool) Dates() []generic.Date {
	out := make([]generic.Date, 0, len(p.dates))
	for _, d := range p.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Reset empties the pool.
func (p *Pool) Reset() {
	p.totals = make(map[string]decimal.Decimal)
	p.dates = make(map[string]generic.Date)
}

// =============================================================================
// DISTRIBUTOR
// =============================================================================

// PoolSplit summarizes one date's distribution.
type PoolSplit struct {
	Date    generic.Date
	Total   decimal.Decimal
	Helpers []string
	Share   decimal.Decimal
}

type Distributor struct {
	Scheme   Scheme
	Resolver *roster.Resolver
	Log      zerolog.Logger
}

func NewDistributor(scheme Scheme, resolver *roster.Resolver, log zerolog.Logger) *Distributor {
	return &Distributor{Scheme: scheme, Resolver: resolver, Log: log}
}

// Presence is a present attendance row resolved once per run.
type Presence struct {
	Date   generic.Date // zero applies to every date
	Staff  string       // resolved against the whole roster, empty when unresolved
	Helper string       // resolved against helpers only, empty when none
}

func (p Presence) AppliesTo(d generic.Date) bool {
	return p.Date.IsZero() || p.Date.Equal(d)
}

// ResolvePresence resolves every attendance row coded present. Each name is
// resolved and observed once, however many dates the batch covers.
func (d *Distributor) ResolvePresence(attendance []Attendance, ros *roster.Roster) []Presence {
	var out []Presence
	for _, a := range attendance {
		if !hasCode(d.Scheme.PresentCodes, a.Code) {
			continue
		}
		all, helper := d.Resolver.ResolveWithRole(a.Name, ros, generic.RoleHelper)
		if all.Blank() {
			continue
		}
		p := Presence{Date: a.Date}
		if all.OK() {
			p.Staff = all.Name
		}
		if helper.OK() {
			p.Helper = helper.Name
		}
		out = append(out, p)
	}
	return out
}

// PresentHelpers lists the helpers present on date. Each helper appears
// once, in attendance order.
func (d *Distributor) PresentHelpers(date generic.Date, presence []Presence, ros *roster.Roster) []roster.StaffMember {
	seen := make(map[string]bool)
	var helpers []roster.StaffMember
	for _, p := range presence {
		if p.Helper == "" || !p.AppliesTo(date) || seen[p.Helper] {
			continue
		}
		seen[p.Helper] = true
		m, _ := ros.Lookup(p.Helper)
		helpers = append(helpers, m)
	}
	return helpers
}

// Finalize splits each date's pool evenly across that date's present
// helpers. A zero pool pays the floor amount per helper instead. The pool
// is reset afterwards.
func (d *Distributor) Finalize(pool *Pool, presence []Presence, ros *roster.Roster) ([]generic.IncentiveRecord, []PoolSplit) {
	var records []generic.IncentiveRecord
	var splits []PoolSplit

	for _, date := range pool.Dates() {
		total := pool.Total(date)
		helpers := d.PresentHelpers(date, presence, ros)
		if len(helpers) == 0 {
			d.Log.Warn().
				Str("date", date.String()).
				Str("pool", total.StringFixed(2)).
				Msg("no helpers present, pool not distributed")
			continue
		}

		n := decimal.NewFromInt(int64(len(helpers)))
		share := d.Scheme.PoolFloor
		if total.IsPositive() {
			share = total.Div(n)
		}

		split := PoolSplit{Date: date, Total: total, Share: share}
		for _, h := range helpers {
			split.Helpers = append(split.Helpers, h.Name)
			records = append(records, generic.IncentiveRecord{
				Kind:        generic.KindPoolShare,
				Date:        date,
				Staff:       h.Name,
				Role:        h.Role,
				Incentive:   share,
				Status:      generic.StatusPresent,
				BillNo:      generic.PoolBillNo,
				ItemName:    generic.PoolItemName,
				HelperCount: len(helpers),
				TotalPool:   total,
			})
		}
		splits = append(splits, split)

		d.Log.Info().
			Str("date", date.String()).
			Str("pool", total.StringFixed(2)).
			Int("helpers", len(helpers)).
			Str("share", share.StringFixed(2)).
			Msg("distributed helper pool")
	}

	pool.Reset()
	return records, splits
}
