package incentive

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/match"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Party is one credited slot on a transaction after name resolution. An
// empty Name means the slot was blank or unresolved.
type Party struct {
	Name     string
	Excluded bool // recognized, but earns nothing
}

func (p Party) Present() bool { return p.Name != "" }

type Input struct {
	Primary   Party
	Secondary Party
	Helper    Party
	Gross     decimal.Decimal
	Net       decimal.Decimal
	ItemName  string
}

type Share struct {
	Staff       string
	Amount      decimal.Decimal
	PairedAgent string // other agent on a two-agent sale
	AsAgent     bool   // credited from an agent column
}

type Allocation struct {
	Shares  []Share
	Pool    decimal.Decimal
	Special bool
}

// Total is everything the transaction paid out, pool included.
func (a Allocation) Total() decimal.Decimal {
	total := a.Pool
	for _, s := range a.Shares {
		total = total.Add(s.Amount)
	}
	return total
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator is a pure function of the transaction fields.
type Calculator struct {
	Scheme  Scheme
	Matcher match.Matcher
}

func NewCalculator(scheme Scheme, m match.Matcher) *Calculator {
	if m == nil {
		m = match.NewPartialRatio()
	}
	return &Calculator{Scheme: scheme, Matcher: m}
}

// IsSpecial reports whether item belongs to the special vocabulary.
func (c *Calculator) IsSpecial(item string) bool {
	if strings.TrimSpace(item) == "" {
		return false
	}
	return match.MatchesAny(c.Matcher, item, c.Scheme.SpecialItems, c.Scheme.MatchThreshold)
}

func (c *Calculator) isSupportAgent(name string) bool {
	for _, s := range c.Scheme.SupportAgents {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Compute allocates one transaction. Agents take precedence over the helper.
func (c *Calculator) Compute(in Input) Allocation {
	s := c.Scheme
	net := in.Net

	if c.IsSpecial(in.ItemName) {
		return Allocation{Pool: net.Mul(s.TotalRate), Special: true}
	}

	pool := net.Mul(s.PoolRate)
	remaining := net.Mul(s.TotalRate).Sub(pool)
	alloc := Allocation{Pool: pool}

	primary, secondary, helper := in.Primary, in.Secondary, in.Helper
	switch {
	case primary.Present() && secondary.Present():
		if primary.Excluded || secondary.Excluded {
			return alloc
		}
		primaryRate, secondaryRate := s.SplitRate, s.SplitRate
		if c.isSupportAgent(secondary.Name) {
			primaryRate, secondaryRate = s.SupportPrimaryRate, s.SupportSecondaryRate
		}
		alloc.Shares = []Share{
			{Staff: primary.Name, Amount: net.Mul(primaryRate), PairedAgent: secondary.Name, AsAgent: true},
			{Staff: secondary.Name, Amount: net.Mul(secondaryRate), PairedAgent: primary.Name, AsAgent: true},
		}

	case primary.Present() || secondary.Present():
		agent := primary
		if !agent.Present() {
			agent = secondary
		}
		if !agent.Excluded {
			alloc.Shares = []Share{{Staff: agent.Name, Amount: remaining, AsAgent: true}}
		}

	case helper.Present():
		if !helper.Excluded {
			alloc.Shares = []Share{{Staff: helper.Name, Amount: remaining}}
		}
	}
	return alloc
}
