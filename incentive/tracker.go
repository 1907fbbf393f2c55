package incentive

import (
	"sort"
	"strings"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// INACTIVITY TRACKER - Weekly no-sale counts, scoped to one run
// =============================================================================

type weekKey struct {
	staff string
	year  int
	week  int
}

type Alert struct {
	Staff string `json:"staff"`
	Year  int    `json:"year"`
	Week  int    `json:"week"`
	Count int    `json:"count"`
}

type Tracker struct {
	Threshold int

	counts map[weekKey]int
	names  map[string]string // lower-case key to display name
}

func NewTracker(threshold int) *Tracker {
	return &Tracker{
		Threshold: threshold,
		counts:    make(map[weekKey]int),
		names:     make(map[string]string),
	}
}

func keyFor(staff string, d generic.Date) weekKey {
	year, week := d.ISOWeek()
	return weekKey{staff: strings.ToLower(staff), year: year, week: week}
}

// RecordNoSale counts one no-sale event for staff in the ISO week of d.
func (t *Tracker) RecordNoSale(staff string, d generic.Date) {
	k := keyFor(staff, d)
	t.counts[k]++
	if _, ok := t.names[k.staff]; !ok {
		t.names[k.staff] = staff
	}
}

func (t *Tracker) Count(staff string, d generic.Date) int {
	return t.counts[keyFor(staff, d)]
}

// Alerts lists staff at or over the threshold in the ISO week of current,
// highest count first.
func (t *Tracker) Alerts(current generic.Date) []Alert {
	year, week := current.ISOWeek()
	var alerts []Alert
	for k, n := range t.counts {
		if k.year != year || k.week != week || n < t.Threshold {
			continue
		}
		alerts = append(alerts, Alert{Staff: t.names[k.staff], Year: year, Week: week, Count: n})
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Count != alerts[j].Count {
			return alerts[i].Count > alerts[j].Count
		}
		return alerts[i].Staff < alerts[j].Staff
	})
	return alerts
}
