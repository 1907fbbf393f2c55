/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes runs, reporting queries and the control surface via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  engine, the ledger and the staff directory.

ENDPOINTS:
  Runs:
    POST   /api/runs                          Multipart upload: sales ×2, attendance ×1

  Ledger and reports (all accept the filter parameters below):
    GET    /api/incentives                    Ledger rows
    GET    /api/reports/totals                Sum of incentive, gross, net
    GET    /api/reports/staff                 Per-staff totals, highest first
    GET    /api/reports/top?n=                Top earners
    GET    /api/reports/daily                 Per-date totals
    GET    /api/reports/monthly               Per-month totals
    GET    /api/reports/latest                Most recent ledger date
    GET    /api/reports/staff/{name}/summary  Period and month-to-date figures
    GET    /api/pool?staff=&date=             Pool total behind a helper's share

  Control surface:
    GET    /api/staff                         Roster
    POST   /api/staff                         Add a member
    PUT    /api/staff/{name}/role             Relabel a member
    POST   /api/adjustments                   Extra or cut incentive
    GET    /api/payments                      Payments by staff and period
    POST   /api/payments                      Record a payment
    GET    /api/scheme                        Active commission scheme

FILTER PARAMETERS:
  date | from & to, staff (repeatable or comma-separated), exclude,
  kind, exclude_pool, item, code, additional_code, limit

ERROR HANDLING:
  Errors are returned as JSON {error, details} with status from statusFor:
  - 400: Structural run errors, validation errors, invalid input
  - 404: Staff or record not found
  - 409: Duplicate staff or record
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Deploy behind a trusted network.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/roster"
)

// maxUploadMemory bounds multipart parsing; larger parts spill to disk.
const maxUploadMemory = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API persists through.
type Store interface {
	generic.TxStore
	generic.PaymentStore
	roster.Store
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Ledger    *generic.Ledger
	Engine    *incentive.Engine
	Reader    *ingest.Reader
	Directory *roster.Directory
	Log       zerolog.Logger
}

// NewHandler wires a handler around an engine already bound to store.
func NewHandler(store Store, engine *incentive.Engine, reader *ingest.Reader, dir *roster.Directory, log zerolog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Ledger:    generic.NewLedger(store),
		Engine:    engine,
		Reader:    reader,
		Directory: dir,
		Log:       log,
	}
}

// =============================================================================
// RUNS
// =============================================================================

// CreateRun processes uploaded extracts and appends the results.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	open := func(fh *multipart.FileHeader) (ingest.Upload, error) {
		f, err := fh.Open()
		if err != nil {
			return ingest.Upload{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		return ingest.Upload{Name: fh.Filename, Body: f}, nil
	}

	var sales []ingest.Upload
	for _, fh := range r.MultipartForm.File["sales"] {
		u, err := open(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read upload", err)
			return
		}
		sales = append(sales, u)
	}

	var attendance *ingest.Upload
	if files := r.MultipartForm.File["attendance"]; len(files) > 0 {
		u, err := open(files[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read upload", err)
			return
		}
		attendance = &u
	}

	batch, err := h.Reader.LoadBatch(sales, attendance)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// Unreadable workbooks are the client's problem.
			status = http.StatusBadRequest
		}
		writeError(w, status, "Failed to read extracts", err)
		return
	}

	result, err := h.Engine.Run(r.Context(), batch, h.Directory.Roster())
	if err != nil {
		writeError(w, statusFor(err), "Run failed", err)
		return
	}

	h.Log.Info().
		Str("run_id", string(result.RunID)).
		Int("records", len(result.Records)).
		Int("alerts", len(result.Alerts)).
		Msg("run accepted")
	writeJSON(w, http.StatusCreated, toRunDTO(result))
}

// =============================================================================
// LEDGER AND REPORTS
// =============================================================================

// ListIncentives returns ledger rows matching the filter.
func (h *Handler) ListIncentives(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	recs, err := h.Ledger.Records(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query incentives", err)
		return
	}
	writeJSON(w, http.StatusOK, toIncentiveDTOs(recs))
}

func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	totals, err := h.Ledger.Totals(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute totals", err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsDTO(totals))
}

func (h *Handler) GetStaffTotals(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	rows, err := h.Ledger.ByStaff(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute staff totals", err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffTotalDTOs(rows))
}

// GetTop returns the n highest earners (default 1).
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	n := 1
	if v := r.URL.Query().Get("n"); v != "" {
		if n, err = strconv.Atoi(v); err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer", err)
			return
		}
	}
	rows, err := h.Ledger.TopN(r.Context(), f, n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute top earners", err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffTotalDTOs(rows))
}

func (h *Handler) GetDaily(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	days, err := h.Ledger.ByDate(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute daily totals", err)
		return
	}
	dtos := make([]DateTotalDTO, len(days))
	for i, d := range days {
		dtos[i] = DateTotalDTO{Date: d.Date.String(), TotalsDTO: toTotalsDTO(d.Totals)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	months, err := h.Ledger.ByMonth(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute monthly totals", err)
		return
	}
	dtos := make([]MonthTotalDTO, len(months))
	for i, m := range months {
		dtos[i] = MonthTotalDTO{
			Month:     fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)),
			TotalsDTO: toTotalsDTO(m.Totals),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetLatestDate(w http.ResponseWriter, r *http.Request) {
	d, ok, err := h.Ledger.LatestDate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read latest date", err)
		return
	}
	var dto LatestDateDTO
	if ok {
		s := d.String()
		dto.Date = &s
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetStaffSummary returns the figures for one staff member's statement.
// The period is date, or from/to, or the latest ledger date.
func (h *Handler) GetStaffSummary(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	member, ok := h.Directory.Roster().Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Staff not found", fmt.Errorf("%w: %s", generic.ErrStaffNotFound, name))
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	period := generic.Period{Start: f.From, End: f.To}
	if period.End.IsZero() {
		latest, ok, err := h.Ledger.LatestDate(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read latest date", err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "Ledger is empty", generic.ErrRecordNotFound)
			return
		}
		period.End = latest
	}
	if period.Start.IsZero() {
		period.Start = period.End
	}

	summary, err := h.Ledger.StaffSummary(r.Context(), member.Name, period)
	if err != nil {
		writeError(w, statusFor(err), "Failed to build summary", err)
		return
	}

	dto := StaffSummaryDTO{
		Staff:       member.Name,
		Role:        roleName(member.Role),
		From:        period.Start.String(),
		To:          period.End.String(),
		Current:     toTotalsDTO(summary.Current),
		MonthToDate: toTotalsDTO(summary.MonthToDate),
		Records:     toIncentiveDTOs(summary.Records),
	}
	if summary.HasPool {
		s := summary.PoolTotal.Round(2).String()
		dto.PoolTotal = &s
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetPool looks up the pool total behind a helper's share on a date.
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	staff := strings.TrimSpace(q.Get("staff"))
	if staff == "" {
		writeError(w, http.StatusBadRequest, "staff is required", nil)
		return
	}
	date, err := generic.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	total, ok, err := h.Ledger.PoolTotal(r.Context(), staff, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up pool", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No pool share for staff on date", generic.ErrRecordNotFound)
		return
	}
	writeJSON(w, http.StatusOK, PoolDTO{Staff: staff, Date: date.String(), TotalPool: total.Round(2)})
}

// =============================================================================
// STAFF
// =============================================================================

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	members := h.Directory.Roster().Members()
	dtos := make([]StaffDTO, len(members))
	for i, m := range members {
		dtos[i] = toStaffDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req CreateStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	role, err := generic.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	m, err := h.Directory.Add(r.Context(), roster.StaffMember{Name: req.Name, Role: role, Active: active})
	if err != nil {
		writeError(w, statusFor(err), "Failed to add staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffDTO(m))
}

func (h *Handler) SetStaffRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	role, err := generic.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}

	m, err := h.Directory.SetRole(r.Context(), chi.URLParam(r, "name"), role)
	if err != nil {
		writeError(w, statusFor(err), "Failed to change role", err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffDTO(m))
}

// =============================================================================
// ADJUSTMENTS AND PAYMENTS
// =============================================================================

// CreateAdjustment appends an extra or cut incentive for a roster member.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	member, ok := h.Directory.Roster().Lookup(req.Staff)
	if !ok {
		writeError(w, http.StatusNotFound, "Staff not found", fmt.Errorf("%w: %s", generic.ErrStaffNotFound, req.Staff))
		return
	}

	rec, err := h.Ledger.Adjust(r.Context(), generic.AdjustmentRequest{
		Staff:   member.Name,
		Role:    member.Role,
		Date:    date,
		Value:   req.Value,
		Percent: req.Percent,
		Cut:     req.Cut,
		Reason:  req.Reason,
	})
	if err != nil {
		writeError(w, statusFor(err), "Failed to create adjustment", err)
		return
	}

	h.Log.Info().
		Str("staff", rec.Staff).
		Str("date", rec.Date.String()).
		Str("amount", rec.Incentive.String()).
		Msg("adjustment recorded")
	writeJSON(w, http.StatusCreated, toIncentiveDTO(rec))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	staff := ""
	if len(f.Staff) > 0 {
		staff = f.Staff[0]
	}
	period := generic.Period{Start: f.From, End: f.To}
	if period.Start.IsZero() != period.End.IsZero() {
		writeError(w, http.StatusBadRequest, "from and to must be given together", nil)
		return
	}

	payments, err := h.Store.Payments(r.Context(), staff, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive", generic.ErrInvalidAmount)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	member, ok := h.Directory.Roster().Lookup(req.Staff)
	if !ok {
		writeError(w, http.StatusNotFound, "Staff not found", fmt.Errorf("%w: %s", generic.ErrStaffNotFound, req.Staff))
		return
	}

	p := generic.PaymentRecord{
		ID:        uuid.NewString(),
		Date:      date,
		Staff:     member.Name,
		Amount:    req.Amount,
		CreatedAt: time.Now().UTC(),
	}
	if req.ClearedDate != "" {
		if p.ClearedDate, err = generic.ParseDate(req.ClearedDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cleared_date", err)
			return
		}
	}

	if err := h.Store.RecordPayment(r.Context(), p); err != nil {
		writeError(w, statusFor(err), "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToJSON(h.Engine.Scheme))
}

// =============================================================================
// HELPERS
// =============================================================================

// parseFilter reads the shared filter query parameters.
func parseFilter(r *http.Request) (generic.Filter, error) {
	q := r.URL.Query()
	var f generic.Filter

	if v := q.Get("date"); v != "" {
		d, err := generic.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid date %q: %w", v, err)
		}
		f = generic.OnDate(d)
	}
	for _, p := range []struct {
		name string
		dst  *generic.Date
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		d, err := generic.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("invalid %s %q: %w", p.name, v, err)
		}
		*p.dst = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, generic.ErrInvalidPeriod
	}

	f.Staff = listParam(q["staff"])
	f.ExcludeStaff = listParam(q["exclude"])
	for _, k := range listParam(q["kind"]) {
		f.Kinds = append(f.Kinds, generic.RecordKind(strings.ToLower(k)))
	}
	if v := q.Get("exclude_pool"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid exclude_pool %q: %w", v, err)
		}
		f.ExcludePool = b
	}
	f.ItemName = q.Get("item")
	f.ItemCode = q.Get("code")
	f.AdditionalItemCode = q.Get("additional_code")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

// listParam flattens repeated and comma-separated values.
func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func toStaffTotalDTOs(rows []generic.StaffTotal) []StaffTotalDTO {
	dtos := make([]StaffTotalDTO, len(rows))
	for i, s := range rows {
		dtos[i] = StaffTotalDTO{Staff: s.Staff, TotalsDTO: toTotalsDTO(s.Totals)}
	}
	return dtos
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrStaffExists), errors.Is(err, generic.ErrDuplicateRecord):
		return http.StatusConflict
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
