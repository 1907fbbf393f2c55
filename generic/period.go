package generic

// =============================================================================
// PERIOD - Inclusive date range used by every reporting query
// =============================================================================

// Period is the closed range [Start, End].
type Period struct {
	Start Date
	End   Date
}

// MonthToDate runs from the first of d's month through d.
func MonthToDate(d Date) Period {
	return Period{Start: d.StartOfMonth(), End: d}
}

func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every day in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	if p.Start.Equal(p.End) {
		return p.Start.String()
	}
	return p.Start.String() + "_to_" + p.End.String()
}
