/*
Package incentive computes per-staff incentives from a batch of sales.

PURPOSE:
  One Run takes two sales extracts and one attendance extract, resolves
  agent names, evaluates the commission scheme per transaction, splits the
  helper pool per date, and appends the resulting records to the ledger in
  a single transaction.

COMMISSION SCHEME (defaults):
  Every transaction is worth 1% of its net amount.
  - Special items (innerwear vocabulary): all 1% goes to the helper pool.
  - Otherwise 0.05% goes to the pool and 0.95% to staff:
      one agent          agent gets 0.95%
      two agents         0.675% / 0.275% when the second agent is a
                         support agent, else 0.475% each
      helper only        helper gets 0.95%
      nobody             pool keeps its skim

RUN-SCOPED STATE:
  Pool totals, inactivity counts and statistics live in a Run created
  fresh for each call to Engine.Run. Nothing is held between runs.

SEE ALSO:
  - calculator.go: per-transaction allocation
  - pool.go: helper pool accumulation and distribution
  - tracker.go: weekly no-sale counting
  - engine.go: the batch run
*/
package incentive

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/match"
)

// Scheme holds every business constant the engine uses.
type Scheme struct {
	TotalRate            decimal.Decimal // share of net paid out per transaction
	PoolRate             decimal.Decimal // skim to the helper pool on ordinary items
	SupportPrimaryRate   decimal.Decimal
	SupportSecondaryRate decimal.Decimal
	SplitRate            decimal.Decimal // each agent, two-agent sale without support agent
	SupportAgents        []string
	SpecialItems         []string

	// PoolFloor is paid to each present helper when a date's pool is zero.
	PoolFloor decimal.Decimal

	MatchThreshold      int
	InactivityThreshold int

	// Extract contract
	SalesExtracts   int
	NetFallbackRate decimal.Decimal // net = gross × rate when no net column
	PresentCodes    []string
	AbsentCodes     []string
}

func DefaultScheme() Scheme {
	return Scheme{
		TotalRate:            decimal.RequireFromString("0.01"),
		PoolRate:             decimal.RequireFromString("0.0005"),
		SupportPrimaryRate:   decimal.RequireFromString("0.00675"),
		SupportSecondaryRate: decimal.RequireFromString("0.00275"),
		SplitRate:            decimal.RequireFromString("0.00475"),
		SupportAgents:        []string{"Sonu", "Shivam"},
		SpecialItems:         []string{"PETI", "PETICOT", "UNDERWEAR", "INNERWEAR", "JOCKEY"},
		PoolFloor:            decimal.RequireFromString("1.79"),
		MatchThreshold:       match.DefaultThreshold,
		InactivityThreshold:  3,
		SalesExtracts:        2,
		NetFallbackRate:      decimal.RequireFromString("0.95"),
		PresentCodes:         []string{"P"},
		AbsentCodes:          []string{"A"},
	}
}

// Remaining is the staff portion of an ordinary sale.
func (s Scheme) Remaining() decimal.Decimal {
	return s.TotalRate.Sub(s.PoolRate)
}

func (s Scheme) Validate() error {
	for name, rate := range map[string]decimal.Decimal{
		"total_rate":             s.TotalRate,
		"pool_rate":              s.PoolRate,
		"support_primary_rate":   s.SupportPrimaryRate,
		"support_secondary_rate": s.SupportSecondaryRate,
		"split_rate":             s.SplitRate,
		"pool_floor":             s.PoolFloor,
	} {
		if rate.IsNegative() {
			return fmt.Errorf("%s must not be negative, got %s", name, rate)
		}
	}
	if s.PoolRate.GreaterThan(s.TotalRate) {
		return fmt.Errorf("pool_rate %s exceeds total_rate %s", s.PoolRate, s.TotalRate)
	}
	if s.MatchThreshold < 0 || s.MatchThreshold > 100 {
		return fmt.Errorf("match_threshold must be within 0..100, got %d", s.MatchThreshold)
	}
	if s.InactivityThreshold < 1 {
		return fmt.Errorf("inactivity_threshold must be at least 1, got %d", s.InactivityThreshold)
	}
	if s.SalesExtracts < 1 {
		return fmt.Errorf("sales_extracts must be at least 1, got %d", s.SalesExtracts)
	}
	if len(s.PresentCodes) == 0 {
		return fmt.Errorf("present_codes must not be empty")
	}
	return nil
}
