package incentive

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/match"
	"github.com/warp/incentive-engine/roster"
)

func march(day int) generic.Date {
	return generic.NewDate(2025, time.March, day)
}

func newTestDistributor() *Distributor {
	resolver := roster.NewResolver(match.NewPartialRatio(), match.DefaultThreshold, zerolog.Nop())
	return NewDistributor(DefaultScheme(), resolver, zerolog.Nop())
}

type countingObserver struct {
	seen map[string]int
}

func (o *countingObserver) ObserveResolution(outcome string) {
	if o.seen == nil {
		o.seen = make(map[string]int)
	}
	o.seen[outcome]++
}

func (o *countingObserver) total() int {
	n := 0
	for _, c := range o.seen {
		n += c
	}
	return n
}

// present resolves undated present rows for names.
func present(names ...string) []Presence {
	var rows []Attendance
	for _, n := range names {
		rows = append(rows, Attendance{Name: n, Code: "P"})
	}
	return newTestDistributor().ResolvePresence(rows, roster.Default())
}

func TestPool_PerDate(t *testing.T) {
	p := NewPool()
	p.Add(march(6), dec("3"))
	p.Add(march(5), dec("1.5"))
	p.Add(march(5), dec("2.5"))
	p.Touch(march(7))

	assertDecimal(t, "4", p.Total(march(5)))
	assertDecimal(t, "3", p.Total(march(6)))
	assertDecimal(t, "0", p.Total(march(7)))
	assert.Equal(t, []generic.Date{march(5), march(6), march(7)}, p.Dates())

	p.Reset()
	assert.Empty(t, p.Dates())
}

func TestFinalize_EvenSplit(t *testing.T) {
	// GIVEN: pool 100 on one date and four present helpers
	pool := NewPool()
	pool.Add(march(5), dec("100"))

	records, splits := newTestDistributor().Finalize(pool, present("Sahil", "Arjun", "Shivam", "Prince"), roster.Default())

	// THEN: each receives 25
	require.Len(t, records, 4)
	for _, r := range records {
		assertDecimal(t, "25", r.Incentive)
		assert.Equal(t, generic.KindPoolShare, r.Kind)
		assert.Equal(t, generic.PoolBillNo, r.BillNo)
		assert.Equal(t, generic.PoolItemName, r.ItemName)
		assert.Equal(t, 4, r.HelperCount)
		assertDecimal(t, "100", r.TotalPool)
		assert.Equal(t, generic.RoleHelper, r.Role)
		assert.Equal(t, generic.StatusPresent, r.Status)
		assert.True(t, r.Gross.IsZero())
	}
	require.Len(t, splits, 1)
	assert.Equal(t, []string{"Sahil", "Arjun", "Shivam", "Prince"}, splits[0].Helpers)

	// AND: the pool is emptied
	assert.Empty(t, pool.Dates())
}

func TestFinalize_ZeroPoolPaysFloor(t *testing.T) {
	// GIVEN: a date seen in the batch with nothing in the pool
	pool := NewPool()
	pool.Touch(march(5))

	records, _ := newTestDistributor().Finalize(pool, present("Sahil", "Arjun"), roster.Default())

	// THEN: each present helper gets the floor, not zero
	require.Len(t, records, 2)
	for _, r := range records {
		assertDecimal(t, "1.79", r.Incentive)
		assertDecimal(t, "0", r.TotalPool)
	}
}

func TestFinalize_NoHelpersNoRecords(t *testing.T) {
	pool := NewPool()
	pool.Add(march(5), dec("40"))

	records, splits := newTestDistributor().Finalize(pool, present("Gaurav", "Vivek"), roster.Default())

	assert.Empty(t, records)
	assert.Empty(t, splits)
}

func TestPresentHelpers(t *testing.T) {
	d := newTestDistributor()
	attendance := []Attendance{
		{Name: "sahil", Code: "P"},
		{Name: "SAHIL ", Code: "P"},                 // duplicate
		{Name: "Arjun", Code: "A"},                  // absent
		{Name: "Shivm", Code: "P"},                  // fuzzy
		{Name: "Gaurav", Code: "P"},                 // not a helper
		{Name: "Prince", Code: "P", Date: march(6)}, // another day
		{Name: "Nobody", Code: "L"},
	}

	presence := d.ResolvePresence(attendance, roster.Default())
	helpers := d.PresentHelpers(march(5), presence, roster.Default())

	var names []string
	for _, h := range helpers {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Sahil", "Shivam"}, names)

	helpers = d.PresentHelpers(march(6), presence, roster.Default())
	assert.Len(t, helpers, 3)
}

func TestFinalize_SplitMatchesAccumulatedPool(t *testing.T) {
	// GIVEN: two dates with different pools
	pool := NewPool()
	pool.Add(march(5), dec("30"))
	pool.Add(march(6), dec("9"))

	records, _ := newTestDistributor().Finalize(pool, present("Sahil", "Arjun", "Shivam"), roster.Default())

	// THEN: per date, shares sum to that date's pool
	sums := map[string]string{}
	for _, r := range records {
		prev := dec("0")
		if s, ok := sums[r.Date.Key()]; ok {
			prev = dec(s)
		}
		sums[r.Date.Key()] = prev.Add(r.Incentive).String()
	}
	assertDecimal(t, "30", dec(sums[march(5).Key()]))
	assertDecimal(t, "9", dec(sums[march(6).Key()]))
}

func TestResolvePresence_ResolvesEachRowOnce(t *testing.T) {
	obs := &countingObserver{}
	d := newTestDistributor()
	d.Resolver.Observer = obs
	attendance := []Attendance{
		{Name: "Sahil", Code: "P"},
		{Name: "Gaurav", Code: "P"},
		{Name: "Arjun", Code: "A"},
	}

	// WHEN: the helpers are looked up for three dates
	presence := d.ResolvePresence(attendance, roster.Default())
	for day := 5; day <= 7; day++ {
		assert.Len(t, d.PresentHelpers(march(day), presence, roster.Default()), 1)
	}

	// THEN: only the two present rows were resolved, once each
	assert.Equal(t, 2, obs.total())
	require.Len(t, presence, 2)
	assert.Equal(t, Presence{Staff: "Gaurav"}, presence[1])
}
