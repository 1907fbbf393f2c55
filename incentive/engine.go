package incentive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/match"
	"github.com/warp/incentive-engine/roster"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

// Transaction is one sales row as read from an extract. Dates and names
// are still raw text; the engine normalizes and resolves them.
type Transaction struct {
	Row                int
	RawDate            string
	BillNo             string
	ItemName           string
	ItemCode           string
	AdditionalItemCode string
	Gross              decimal.Decimal
	Net                decimal.Decimal
	Qty                decimal.Decimal
	Rate               decimal.Decimal
	PrimaryAgent       string
	SecondaryAgent     string
	Helper             string
}

// MissingField names the first required field that is absent, or "".
func (t Transaction) MissingField() string {
	switch {
	case strings.TrimSpace(t.RawDate) == "":
		return "date"
	case t.Gross.IsZero():
		return "gross"
	case strings.TrimSpace(t.BillNo) == "":
		return "bill_no"
	case strings.TrimSpace(t.ItemName) == "":
		return "item_name"
	}
	return ""
}

type SalesExtract struct {
	Source       string
	Company      string
	Transactions []Transaction
}

// Batch is everything one run consumes.
type Batch struct {
	Sales         []SalesExtract
	Attendance    []Attendance
	HasAttendance bool
}

// =============================================================================
// OUTPUT TYPES
// =============================================================================

type Stats struct {
	Rows          int `json:"rows"`
	SaleRecords   int `json:"sale_records"`
	PoolRecords   int `json:"pool_records"`
	Skipped       int `json:"skipped"`
	Unattributed  int `json:"unattributed"`
	NoSales       int `json:"no_sales"`
	Special       int `json:"special"`
	UnparsedDates int `json:"unparsed_dates"`
	Present       int `json:"present"`
	Absent        int `json:"absent"`
}

type RunResult struct {
	RunID      generic.RunID
	LatestDate generic.Date // most recent date written; zero when nothing was
	Records    []generic.IncentiveRecord
	Pools      []PoolSplit
	Alerts     []Alert
	Stats      Stats
}

// Recorder receives run-level measurements.
type Recorder interface {
	ObserveRow(outcome string)
	ObserveRun(status string, elapsed time.Duration, records int)
	ObservePool(total decimal.Decimal)
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Scheme      Scheme
	Store       generic.TxStore
	Calculator  *Calculator
	Resolver    *roster.Resolver
	Distributor *Distributor
	Dates       *generic.DateNormalizer
	Log         zerolog.Logger
	Recorder    Recorder
}

// NewEngine wires the default matcher and normalizer around scheme.
func NewEngine(store generic.TxStore, scheme Scheme, log zerolog.Logger) *Engine {
	m := match.NewPartialRatio()
	resolver := roster.NewResolver(m, scheme.MatchThreshold, log)
	return &Engine{
		Scheme:      scheme,
		Store:       store,
		Calculator:  NewCalculator(scheme, m),
		Resolver:    resolver,
		Distributor: NewDistributor(scheme, resolver, log),
		Dates:       generic.NewDateNormalizer(log),
		Log:         log,
	}
}

// Run processes one batch against a roster snapshot. Structural problems
// abort before anything is written; all records are appended in a single
// transaction.
func (e *Engine) Run(ctx context.Context, batch Batch, ros *roster.Roster) (RunResult, error) {
	start := time.Now()

	if err := e.validate(batch); err != nil {
		e.Log.Error().Err(err).Msg("run rejected")
		e.observeRun("rejected", start, 0)
		return RunResult{}, err
	}

	run := e.newRun(ros, batch.Attendance)
	for _, extract := range batch.Sales {
		for _, tx := range extract.Transactions {
			run.process(extract, tx)
		}
	}

	poolRecords, splits := e.Distributor.Finalize(run.pool, run.present, ros)
	for _, rec := range poolRecords {
		run.append(rec)
	}
	run.stats.PoolRecords = len(poolRecords)
	for _, s := range splits {
		if e.Recorder != nil {
			e.Recorder.ObservePool(s.Total)
		}
	}

	result := RunResult{
		RunID:      run.id,
		LatestDate: run.latest,
		Records:    run.records,
		Pools:      splits,
		Stats:      run.stats,
	}
	if !run.latest.IsZero() {
		result.Alerts = run.tracker.Alerts(run.latest)
	}
	for _, a := range result.Alerts {
		run.log.Warn().Str("staff", a.Staff).Int("count", a.Count).Int("week", a.Week).
			Msg("staff recorded no sale repeatedly this week")
	}

	if err := ctx.Err(); err != nil {
		e.observeRun("cancelled", start, 0)
		return RunResult{}, err
	}
	if len(run.records) > 0 {
		err := e.Store.WithTx(ctx, func(tx generic.Store) error {
			return tx.AppendBatch(ctx, run.records)
		})
		if err != nil {
			e.observeRun("failed", start, 0)
			return RunResult{}, fmt.Errorf("%w: %w", generic.ErrTransactionFailed, err)
		}
	}

	run.log.Info().
		Int("rows", run.stats.Rows).
		Int("records", len(run.records)).
		Int("skipped", run.stats.Skipped).
		Int("unattributed", run.stats.Unattributed).
		Str("latest_date", run.latest.String()).
		Dur("elapsed", time.Since(start)).
		Msg("run completed")
	e.observeRun("completed", start, len(run.records))
	return result, nil
}

func (e *Engine) validate(batch Batch) error {
	if len(batch.Sales) != e.Scheme.SalesExtracts || !batch.HasAttendance {
		return &generic.ExtractCountError{
			Got:           len(batch.Sales),
			Want:          e.Scheme.SalesExtracts,
			HasAttendance: batch.HasAttendance,
		}
	}
	seen := make(map[string]string)
	for _, ex := range batch.Sales {
		key := strings.ToLower(strings.TrimSpace(ex.Company))
		if key == "" {
			continue
		}
		if other, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s and %s are both %s", generic.ErrDuplicateCompany, other, ex.Source, ex.Company)
		}
		seen[key] = ex.Source
	}
	return nil
}

func (e *Engine) observeRun(status string, start time.Time, records int) {
	if e.Recorder != nil {
		e.Recorder.ObserveRun(status, time.Since(start), records)
	}
}

// =============================================================================
// RUN - State for exactly one batch
// =============================================================================

type run struct {
	id      generic.RunID
	engine  *Engine
	roster  *roster.Roster
	log     zerolog.Logger
	now     time.Time
	pool    *Pool
	tracker *Tracker
	present []Presence
	records []generic.IncentiveRecord
	latest  generic.Date
	stats   Stats
}

func (e *Engine) newRun(ros *roster.Roster, attendance []Attendance) *run {
	id := generic.RunID(uuid.NewString())
	r := &run{
		id:      id,
		engine:  e,
		roster:  ros,
		log:     e.Log.With().Str("run_id", string(id)).Logger(),
		now:     time.Now().UTC(),
		pool:    NewPool(),
		tracker: NewTracker(e.Scheme.InactivityThreshold),
	}

	for _, a := range attendance {
		switch {
		case hasCode(e.Scheme.PresentCodes, a.Code):
			r.stats.Present++
		case hasCode(e.Scheme.AbsentCodes, a.Code):
			r.stats.Absent++
		}
	}
	r.present = e.Distributor.ResolvePresence(attendance, ros)
	return r
}

func (r *run) isPresent(staff string, d generic.Date) bool {
	for _, p := range r.present {
		if p.Staff != "" && strings.EqualFold(p.Staff, staff) && p.AppliesTo(d) {
			return true
		}
	}
	return false
}

func (r *run) observe(outcome string) {
	if r.engine.Recorder != nil {
		r.engine.Recorder.ObserveRow(outcome)
	}
}

func (r *run) append(rec generic.IncentiveRecord) {
	rec.ID = generic.RecordID(uuid.NewString())
	rec.RunID = r.id
	rec.CreatedAt = r.now
	r.records = append(r.records, rec)
}

func party(res roster.Resolution) Party {
	switch res.Outcome {
	case roster.Resolved:
		return Party{Name: res.Name}
	case roster.Excluded:
		return Party{Name: res.Name, Excluded: true}
	}
	return Party{}
}

func (r *run) process(extract SalesExtract, tx Transaction) {
	r.stats.Rows++
	log := r.log.With().Str("source", extract.Source).Int("row", tx.Row).Logger()

	if field := tx.MissingField(); field != "" {
		r.stats.Skipped++
		log.Warn().Str("field", field).Msg("skipped row with missing data")
		r.observe("skipped")
		return
	}

	date, ok := r.engine.Dates.Normalize(tx.RawDate)
	if !ok {
		r.stats.UnparsedDates++
	}
	r.pool.Touch(date)
	if date.After(r.latest) {
		r.latest = date
	}

	resolver := r.engine.Resolver
	primary := resolver.Resolve(tx.PrimaryAgent, r.roster)
	secondary := resolver.Resolve(tx.SecondaryAgent, r.roster)

	if primary.Outcome == roster.NoSale {
		r.stats.NoSales++
		if secondary.OK() {
			r.tracker.RecordNoSale(secondary.Name, date)
		} else {
			log.Warn().Str("bill_no", tx.BillNo).Msg("no-sale row without a resolvable staff member")
		}
		r.observe("no_sale")
		return
	}

	helper := resolver.Resolve(tx.Helper, r.roster)
	in := Input{
		Primary:   party(primary),
		Secondary: party(secondary),
		Helper:    party(helper),
		Gross:     tx.Gross,
		Net:       tx.Net,
		ItemName:  tx.ItemName,
	}
	// Rows with every staff cell blank still feed the pool; rows naming
	// only unknown staff are dropped.
	if primary.Blank() && secondary.Blank() && helper.Blank() {
		log.Debug().Str("bill_no", tx.BillNo).Msg("row names no staff, pool skim only")
	} else if !in.Primary.Present() && !in.Secondary.Present() && !in.Helper.Present() {
		r.stats.Unattributed++
		log.Warn().
			Str("agent", tx.PrimaryAgent).
			Str("other_agent", tx.SecondaryAgent).
			Msg("no staff member resolved, row ignored")
		r.observe("unattributed")
		return
	}

	alloc := r.engine.Calculator.Compute(in)
	r.pool.Add(date, alloc.Pool)
	if alloc.Special {
		r.stats.Special++
		log.Info().Str("item", tx.ItemName).Str("pool", alloc.Pool.StringFixed(4)).Msg("special item routed to helper pool")
	}

	for _, share := range alloc.Shares {
		r.append(r.saleRecord(date, extract, tx, share))
		r.stats.SaleRecords++
	}
	r.observe("processed")
}

func (r *run) saleRecord(date generic.Date, extract SalesExtract, tx Transaction, share Share) generic.IncentiveRecord {
	role := generic.RoleSalesman
	if m, ok := r.roster.Lookup(share.Staff); ok {
		role = m.Role
	}
	// Helpers credited as an agent are recorded as salesmen.
	if role == generic.RoleHelper && share.AsAgent {
		role = generic.RoleSalesman
	}

	status := generic.StatusUnconfirmed
	if r.isPresent(share.Staff, date) {
		status = generic.StatusPresent
	}

	return generic.IncentiveRecord{
		Kind:               generic.KindSale,
		Date:               date,
		Staff:              share.Staff,
		Role:               role,
		Incentive:          share.Amount,
		Gross:              tx.Gross,
		Net:                tx.Net,
		Status:             status,
		BillNo:             tx.BillNo,
		ItemName:           tx.ItemName,
		ItemCode:           tx.ItemCode,
		AdditionalItemCode: tx.AdditionalItemCode,
		Company:            extract.Company,
		Qty:                tx.Qty,
		Rate:               tx.Rate,
		PairedAgent:        share.PairedAgent,
	}
}
