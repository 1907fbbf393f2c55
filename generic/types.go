/*
Package generic provides the core ledger types for the incentive engine.

PURPOSE:
  This package contains the domain-neutral building blocks shared by every
  other package: money helpers, the append-only IncentiveRecord, the
  canonical calendar Date, periods, the ledger Store contract and the
  Aggregator that answers reporting queries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal everywhere, never float64
  - IncentiveRecord: one immutable ledger row (sale share, pool share, adjustment)
  - PaymentRecord: a payout recorded by the control surface
  - RecordKind / PresenceStatus: tagged string values stored verbatim

DESIGN PRINCIPLES:
  1. Immutability: records are appended, never edited
  2. Precision: decimal.Decimal avoids rounding drift at two fraction digits
  3. Traceability: pool shares carry helper count and total pool

USAGE:
  rec := generic.IncentiveRecord{
      Date:      generic.NewDate(2025, time.March, 5),
      Staff:     "Gaurav",
      Role:      generic.RoleSalesman,
      Incentive: decimal.RequireFromString("95"),
      Kind:      generic.KindSale,
  }

SEE ALSO:
  - time.go: Date and the date normalizer
  - store.go: persistence contract
  - ledger.go: aggregation queries
*/
package generic

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a spreadsheet amount such as "1,250.50" or "Rs. 300".
// Empty input yields (0, false, nil).
func ParseAmount(raw string) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, ErrInvalidAmount
	}
	return d, true, nil
}

// Percentage returns incentive / net × 100, or zero when net is zero.
func Percentage(incentive, net decimal.Decimal) decimal.Decimal {
	if net.IsZero() {
		return decimal.Zero
	}
	return incentive.Div(net).Mul(hundred)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RecordID string
type RunID string

// =============================================================================
// INCENTIVE RECORD - One immutable ledger row
// =============================================================================

type RecordKind string

const (
	KindSale       RecordKind = "sale"       // Share of a transaction's commission
	KindPoolShare  RecordKind = "pool_share" // Per-date helper pool payout
	KindAdjustment RecordKind = "adjustment" // Manual correction from the control surface
)

type PresenceStatus string

const (
	StatusPresent     PresenceStatus = "Present"
	StatusUnconfirmed PresenceStatus = "Sus" // not marked Present in attendance
)

// Sentinels written on pool-share rows in place of transaction fields.
const (
	PoolBillNo   = "Helper Pool"
	PoolItemName = "Helper Pool Share"
)

type IncentiveRecord struct {
	ID    RecordID
	RunID RunID
	Kind  RecordKind

	Date      Date
	Staff     string
	Role      Role // role at the time the record was written
	Incentive decimal.Decimal
	Gross     decimal.Decimal
	Net       decimal.Decimal
	Status    PresenceStatus

	BillNo             string
	ItemName           string
	ItemCode           string
	AdditionalItemCode string
	Company            string
	Qty                decimal.Decimal
	Rate               decimal.Decimal

	PairedAgent string // empty when the sale had a single agent
	HelperCount int    // pool shares only
	TotalPool   decimal.Decimal

	Reason    string // adjustments only
	CreatedAt time.Time
}

// IsPoolShare reports whether the record is a helper pool payout.
func (r IncentiveRecord) IsPoolShare() bool {
	return r.Kind == KindPoolShare || r.BillNo == PoolBillNo
}

func (r IncentiveRecord) Percentage() decimal.Decimal {
	return Percentage(r.Incentive, r.Net)
}

// =============================================================================
// PAYMENT RECORD - Recorded by the control surface, shares the store
// =============================================================================

type PaymentRecord struct {
	ID          string
	Date        Date
	Staff       string
	Amount      decimal.Decimal
	ClearedDate Date
	CreatedAt   time.Time
}
