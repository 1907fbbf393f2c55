/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are dd-mm-yyyy on output and accept dd-mm-yyyy or yyyy-mm-dd on
  input. Amounts are decimal strings on output and accept JSON numbers or
  strings on input.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/roster"
)

// =============================================================================
// LEDGER ROWS
// =============================================================================

type IncentiveDTO struct {
	ID                 string          `json:"id"`
	RunID              string          `json:"run_id,omitempty"`
	Kind               string          `json:"kind"`
	Date               string          `json:"date"`
	Staff              string          `json:"staff"`
	Role               string          `json:"role,omitempty"`
	Incentive          decimal.Decimal `json:"incentive"`
	Gross              decimal.Decimal `json:"gross"`
	Net                decimal.Decimal `json:"net"`
	Percentage         decimal.Decimal `json:"percentage"`
	Status             string          `json:"status"`
	BillNo             string          `json:"bill_no,omitempty"`
	ItemName           string          `json:"item_name,omitempty"`
	ItemCode           string          `json:"item_code,omitempty"`
	AdditionalItemCode string          `json:"additional_item_code,omitempty"`
	Company            string          `json:"company,omitempty"`
	Qty                decimal.Decimal `json:"qty"`
	Rate               decimal.Decimal `json:"rate"`
	PairedAgent        *string         `json:"paired_agent"`
	HelperCount        int             `json:"helper_count,omitempty"`
	TotalPool          decimal.Decimal `json:"total_pool"`
	Reason             string          `json:"reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func toIncentiveDTO(r generic.IncentiveRecord) IncentiveDTO {
	dto := IncentiveDTO{
		ID:                 string(r.ID),
		RunID:              string(r.RunID),
		Kind:               string(r.Kind),
		Date:               r.Date.String(),
		Staff:              r.Staff,
		Role:               roleName(r.Role),
		Incentive:          r.Incentive.Round(2),
		Gross:              r.Gross,
		Net:                r.Net,
		Percentage:         r.Percentage().Round(2),
		Status:             string(r.Status),
		BillNo:             r.BillNo,
		ItemName:           r.ItemName,
		ItemCode:           r.ItemCode,
		AdditionalItemCode: r.AdditionalItemCode,
		Company:            r.Company,
		Qty:                r.Qty,
		Rate:               r.Rate,
		HelperCount:        r.HelperCount,
		TotalPool:          r.TotalPool,
		Reason:             r.Reason,
		CreatedAt:          r.CreatedAt,
	}
	if r.PairedAgent != "" {
		dto.PairedAgent = &r.PairedAgent
	}
	return dto
}

func toIncentiveDTOs(recs []generic.IncentiveRecord) []IncentiveDTO {
	dtos := make([]IncentiveDTO, len(recs))
	for i, r := range recs {
		dtos[i] = toIncentiveDTO(r)
	}
	return dtos
}

func roleName(r generic.Role) string {
	if !r.Valid() {
		return ""
	}
	return r.String()
}

// =============================================================================
// REPORTS
// =============================================================================

type TotalsDTO struct {
	Incentive  decimal.Decimal `json:"incentive"`
	Gross      decimal.Decimal `json:"gross"`
	Net        decimal.Decimal `json:"net"`
	Percentage decimal.Decimal `json:"percentage"`
	Records    int             `json:"records"`
}

func toTotalsDTO(t generic.Totals) TotalsDTO {
	return TotalsDTO{
		Incentive:  t.Incentive.Round(2),
		Gross:      t.Gross,
		Net:        t.Net,
		Percentage: t.Percentage().Round(2),
		Records:    t.Records,
	}
}

type StaffTotalDTO struct {
	Staff string `json:"staff"`
	TotalsDTO
}

type DateTotalDTO struct {
	Date string `json:"date"`
	TotalsDTO
}

type MonthTotalDTO struct {
	Month string `json:"month"` // yyyy-mm
	TotalsDTO
}

type StaffSummaryDTO struct {
	Staff       string         `json:"staff"`
	Role        string         `json:"role,omitempty"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Current     TotalsDTO      `json:"current"`
	MonthToDate TotalsDTO      `json:"month_to_date"`
	PoolTotal   *string        `json:"pool_total"`
	Records     []IncentiveDTO `json:"records"`
}

type PoolDTO struct {
	Staff     string          `json:"staff"`
	Date      string          `json:"date"`
	TotalPool decimal.Decimal `json:"total_pool"`
}

type LatestDateDTO struct {
	Date *string `json:"date"`
}

// =============================================================================
// RUNS
// =============================================================================

type RunDTO struct {
	RunID      string            `json:"run_id"`
	LatestDate *string           `json:"latest_date"`
	Stats      incentive.Stats   `json:"stats"`
	Pools      []PoolSplitDTO    `json:"pools"`
	Alerts     []incentive.Alert `json:"alerts"`
	Records    []IncentiveDTO    `json:"records"`
}

type PoolSplitDTO struct {
	Date    string          `json:"date"`
	Total   decimal.Decimal `json:"total"`
	Helpers []string        `json:"helpers"`
	Share   decimal.Decimal `json:"share"`
}

func toRunDTO(res incentive.RunResult) RunDTO {
	dto := RunDTO{
		RunID:   string(res.RunID),
		Stats:   res.Stats,
		Pools:   make([]PoolSplitDTO, len(res.Pools)),
		Alerts:  res.Alerts,
		Records: toIncentiveDTOs(res.Records),
	}
	if !res.LatestDate.IsZero() {
		s := res.LatestDate.String()
		dto.LatestDate = &s
	}
	if dto.Alerts == nil {
		dto.Alerts = []incentive.Alert{}
	}
	for i, p := range res.Pools {
		helpers := p.Helpers
		if helpers == nil {
			helpers = []string{}
		}
		dto.Pools[i] = PoolSplitDTO{
			Date:    p.Date.String(),
			Total:   p.Total.Round(2),
			Helpers: helpers,
			Share:   p.Share.Round(2),
		}
	}
	return dto
}

// =============================================================================
// STAFF
// =============================================================================

type StaffDTO struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

func toStaffDTO(m roster.StaffMember) StaffDTO {
	return StaffDTO{Name: m.Name, Role: roleName(m.Role), Active: m.Active}
}

type CreateStaffRequest struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Active *bool  `json:"active,omitempty"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

// =============================================================================
// CONTROL SURFACE
// =============================================================================

type AdjustmentRequestDTO struct {
	Staff   string          `json:"staff"`
	Date    string          `json:"date"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
	Cut     bool            `json:"cut"`
	Reason  string          `json:"reason"`
}

type PaymentDTO struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Staff       string          `json:"staff"`
	Amount      decimal.Decimal `json:"amount"`
	ClearedDate *string         `json:"cleared_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toPaymentDTO(p generic.PaymentRecord) PaymentDTO {
	dto := PaymentDTO{
		ID:        p.ID,
		Date:      p.Date.String(),
		Staff:     p.Staff,
		Amount:    p.Amount,
		CreatedAt: p.CreatedAt,
	}
	if !p.ClearedDate.IsZero() {
		s := p.ClearedDate.String()
		dto.ClearedDate = &s
	}
	return dto
}

type CreatePaymentRequest struct {
	Staff       string          `json:"staff"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	ClearedDate string          `json:"cleared_date,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
