package generic

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// DATE - Calendar day, the only time granularity the ledger knows
// =============================================================================

const (
	// CanonicalLayout is the day-month-year form shown to users and used
	// for equality between extracts.
	CanonicalLayout = "02-01-2006"

	// KeyLayout sorts lexically in calendar order; stores index on it.
	KeyLayout = "2006-01-02"
)

type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's wall clock.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseCanonical parses the dd-mm-yyyy form.
func ParseCanonical(s string) (Date, error) {
	t, err := time.Parse(CanonicalLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// ParseKey parses the yyyy-mm-dd storage form.
func ParseKey(s string) (Date, error) {
	t, err := time.Parse(KeyLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// ParseDate accepts either the canonical or the key form. Query parameters
// and JSON bodies go through here.
func ParseDate(s string) (Date, error) {
	if d, err := ParseKey(s); err == nil {
		return d, nil
	}
	return ParseCanonical(s)
}

// Comparison
func (d Date) Before(o Date) bool        { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool         { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool         { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) IsZero() bool              { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int          { return d.Time.Year() }
func (d Date) Month() time.Month  { return d.Time.Month() }
func (d Date) Day() int           { return d.Time.Day() }
func (d Date) ISOWeek() (int, int) { return d.Time.ISOWeek() }

func (d Date) StartOfMonth() Date { return NewDate(d.Year(), d.Month(), 1) }

func (d Date) String() string { return d.Time.Format(CanonicalLayout) }
func (d Date) Key() string    { return d.Time.Format(KeyLayout) }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE NORMALIZER - Heterogeneous extract dates to one calendar day
// =============================================================================

// DefaultDateFormats is the ordered list tried by the normalizer. Day-first
// layouts come before the US month-first one, so "05/03/2025" is 5 March.
var DefaultDateFormats = []string{
	"2/1/2006",
	"2-1-2006",
	"2006-1-2",
	"2.1.2006",
	"1/2/2006",
	"2006-1-2 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Excel stores dates as day counts from this epoch (the 1900 leap-year bug
// is already folded in).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// DateNormalizer maps raw extract dates to a Date. It never fails: input
// that matches no format falls back to the processing date.
type DateNormalizer struct {
	Formats []string
	Now     func() time.Time
	Log     zerolog.Logger
}

func NewDateNormalizer(log zerolog.Logger) *DateNormalizer {
	return &DateNormalizer{
		Formats: DefaultDateFormats,
		Now:     time.Now,
		Log:     log,
	}
}

// Normalize returns the parsed date and true, or the processing date and
// false when nothing matched.
func (n *DateNormalizer) Normalize(raw string) (Date, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range n.Formats {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}
	if d, ok := parseExcelSerial(s); ok {
		return d, true
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	fallback := DateOf(now())
	n.Log.Warn().
		Str("raw_date", raw).
		Str("fallback", fallback.String()).
		Msg("unable to parse date, using processing date")
	return fallback, false
}

// parseExcelSerial accepts whole or fractional day numbers in a plausible
// range (1954-2119), which keeps bill numbers from being read as dates.
func parseExcelSerial(s string) (Date, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 20000 || f > 80000 {
		return Date{}, false
	}
	return DateOf(excelEpoch.AddDate(0, 0, int(f))), true
}
