package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// DATE NORMALIZER
// =============================================================================

func fixedNormalizer() *generic.DateNormalizer {
	n := generic.NewDateNormalizer(zerolog.Nop())
	n.Now = func() time.Time { return time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC) }
	return n
}

func TestNormalize_EquivalentFormsAgree(t *testing.T) {
	n := fixedNormalizer()

	inputs := []string{
		"05/03/2025",
		"5/3/2025",
		"05-03-2025",
		"2025-03-05",
		"05.03.2025",
		"2025-03-05 00:00:00",
		"2025-03-05T00:00:00",
		" 45721 ",
		"45721.5",
	}
	for _, raw := range inputs {
		d, ok := n.Normalize(raw)
		if !ok {
			t.Errorf("Normalize(%q) did not parse", raw)
			continue
		}
		if d.String() != "05-03-2025" {
			t.Errorf("Normalize(%q) = %s, want 05-03-2025", raw, d)
		}
	}
}

func TestNormalize_MonthFirstWhenDayFirstImpossible(t *testing.T) {
	d, ok := fixedNormalizer().Normalize("03/25/2025")
	if !ok || d.String() != "25-03-2025" {
		t.Errorf("got %s (ok=%v), want 25-03-2025", d, ok)
	}
}

func TestNormalize_FallsBackToProcessingDate(t *testing.T) {
	n := fixedNormalizer()

	for _, raw := range []string{"", "not a date", "1234"} {
		d, ok := n.Normalize(raw)
		if ok {
			t.Errorf("Normalize(%q) should not parse", raw)
		}
		if d.String() != "10-03-2025" {
			t.Errorf("Normalize(%q) fallback = %s, want 10-03-2025", raw, d)
		}
	}
}

func TestParseDate_AcceptsBothForms(t *testing.T) {
	for _, s := range []string{"2025-03-05", "05-03-2025"} {
		d, err := generic.ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", s, err)
		}
		if d.Key() != "2025-03-05" {
			t.Errorf("ParseDate(%q).Key() = %s", s, d.Key())
		}
	}
	if _, err := generic.ParseDate("March 5"); err == nil {
		t.Error("expected error for free text")
	}
}

func TestDate_TextRoundTrip(t *testing.T) {
	d := generic.NewDate(2025, time.March, 5)
	b, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back generic.Date
	if err := back.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip = %s, want %s", back, d)
	}
}

// =============================================================================
// PERIOD
// =============================================================================

func TestPeriod(t *testing.T) {
	p := generic.Period{
		Start: generic.NewDate(2025, time.February, 27),
		End:   generic.NewDate(2025, time.March, 2),
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Days()); got != 4 {
		t.Errorf("Days() = %d, want 4", got)
	}
	if !p.Contains(generic.NewDate(2025, time.March, 1)) {
		t.Error("period should contain 1 March")
	}
	if p.Contains(generic.NewDate(2025, time.March, 3)) {
		t.Error("period should not contain 3 March")
	}
	if p.String() != "27-02-2025_to_02-03-2025" {
		t.Errorf("String() = %s", p)
	}

	bad := generic.Period{Start: p.End, End: p.Start}
	if !errors.Is(bad.Validate(), generic.ErrInvalidPeriod) {
		t.Error("expected ErrInvalidPeriod")
	}

	mtd := generic.MonthToDate(generic.NewDate(2025, time.March, 6))
	if mtd.Start.String() != "01-03-2025" {
		t.Errorf("MonthToDate start = %s", mtd.Start)
	}
}

// =============================================================================
// AMOUNTS AND ROLES
// =============================================================================

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
		err  bool
	}{
		{"1,250.50", "1250.5", true, false},
		{"Rs. 300", "300", true, false},
		{"₹ 75", "75", true, false},
		{"  ", "0", false, false},
		{"abc", "0", false, true},
	}
	for _, tt := range tests {
		got, ok, err := generic.ParseAmount(tt.raw)
		if (err != nil) != tt.err {
			t.Errorf("ParseAmount(%q) err = %v", tt.raw, err)
		}
		if ok != tt.ok || got.String() != tt.want {
			t.Errorf("ParseAmount(%q) = %s, %v; want %s, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRole(t *testing.T) {
	r, err := generic.ParseRole(" helper ")
	if err != nil || r != generic.RoleHelper {
		t.Errorf("ParseRole(helper) = %v, %v", r, err)
	}
	_, err = generic.ParseRole("Manager")
	if !errors.Is(err, generic.ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
	if !generic.IsClientError(err) {
		t.Error("invalid role should be a client error")
	}
}

func TestErrorCategories(t *testing.T) {
	missing := &generic.MissingColumnError{Source: "LS.xlsx", Column: "GROSS AMOUNT"}
	if !generic.IsStructural(missing) || !generic.IsClientError(missing) {
		t.Error("missing column should be a structural client error")
	}
	if generic.IsStructural(generic.ErrInvalidRole) {
		t.Error("invalid role is not structural")
	}
	count := &generic.ExtractCountError{Got: 1, Want: 2}
	if !errors.Is(count, generic.ErrWrongExtractCount) {
		t.Error("extract count error should unwrap to ErrWrongExtractCount")
	}
	if !generic.IsNotFound(generic.ErrStaffNotFound) {
		t.Error("ErrStaffNotFound should be not-found")
	}
}
