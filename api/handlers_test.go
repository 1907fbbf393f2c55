package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/generic/store"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/metrics"
	"github.com/warp/incentive-engine/roster"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()
	mem := store.NewMemory()

	dir, err := roster.NewDirectory(ctx, mem, roster.DefaultMembers(), roster.DefaultOptions(), log)
	require.NoError(t, err)

	scheme := incentive.DefaultScheme()
	engine := incentive.NewEngine(mem, scheme, log)
	engine.Dates.Now = func() time.Time { return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC) }

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	engine.Recorder = m
	engine.Resolver.Observer = m

	h := NewHandler(mem, engine, ingest.NewReader(scheme, log), dir, log)
	return &testServer{
		t:       t,
		handler: h,
		router:  NewRouter(h, RouterOptions{CORSOrigins: []string{"http://localhost:5173"}, Gatherer: reg}),
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) seed(recs ...generic.IncentiveRecord) {
	s.t.Helper()
	require.NoError(s.t, s.handler.Ledger.AppendBatch(context.Background(), recs))
}

func march(day int) generic.Date {
	return generic.NewDate(2025, time.March, day)
}

func saleRecord(day int, staff string, incentive, net int64) generic.IncentiveRecord {
	return generic.IncentiveRecord{
		Kind:      generic.KindSale,
		Date:      march(day),
		Staff:     staff,
		Role:      generic.RoleSalesman,
		Incentive: decimal.NewFromInt(incentive),
		Gross:     decimal.NewFromInt(net),
		Net:       decimal.NewFromInt(net),
		Status:    generic.StatusPresent,
		BillNo:    "B",
		ItemName:  "SHIRT",
	}
}

// workbook builds an xlsx with preamble rows followed by rows.
func workbook(t *testing.T, preamble int, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	line := 1
	for i := 0; i < preamble; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, line)
		require.NoError(t, f.SetCellValue(sheet, cell, "REPORT"))
		line++
	}
	for _, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, line)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
		line++
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type upload struct {
	field, name string
	body        []byte
}

func multipartRequest(t *testing.T, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var salesHeader = []interface{}{"SNO.", "BILL DATE", "BILL NO.", "ITEM NAME", "GROSS AMOUNT", "NET AMOUNT", "AGENT NAME", "OTHER AGENT NAME"}

func runUploads(t *testing.T) []upload {
	ls := workbook(t, ingest.DefaultSalesSkip, [][]interface{}{
		salesHeader,
		{1, "05/03/2025", "B1", "SHIRT", 10000, 10000, "gaurav", ""},
	})
	nfs := workbook(t, ingest.DefaultSalesSkip, [][]interface{}{
		salesHeader,
		{1, "05/03/2025", "N1", "SHIRT", 1000, 1000, "Vivek", ""},
	})
	att := workbook(t, ingest.DefaultAttendanceSkip, [][]interface{}{
		{"Name", "Status"},
		{"Gaurav", "P"},
		{"Vivek", "P"},
		{"Sahil", "P"},
	})
	return []upload{
		{"sales", "LS_Sales.xlsx", ls},
		{"sales", "NFS_Sales.xlsx", nfs},
		{"attendance", "Attendance.xlsx", att},
	}
}

// =============================================================================
// RUNS
// =============================================================================

func TestCreateRun(t *testing.T) {
	s := newTestServer(t)

	// WHEN: two sales extracts and attendance are uploaded
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, multipartRequest(t, runUploads(t)...))

	// THEN: the run is accepted and persisted
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[RunDTO](t, rec)
	assert.NotEmpty(t, run.RunID)
	require.NotNil(t, run.LatestDate)
	assert.Equal(t, "05-03-2025", *run.LatestDate)
	assert.Equal(t, 2, run.Stats.Rows)
	require.Len(t, run.Pools, 1)
	assert.Equal(t, "05-03-2025", run.Pools[0].Date)

	rec = s.do(http.MethodGet, "/api/incentives?staff=gaurav&kind=sale", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]IncentiveDTO](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gaurav", rows[0].Staff)
	assert.True(t, decimal.NewFromInt(95).Equal(rows[0].Incentive))
	assert.Equal(t, "Life Style", rows[0].Company)

	// AND: metrics were recorded
	rec = s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `incentive_runs_total{status="completed"} 1`)
}

func TestCreateRun_WrongExtractCount(t *testing.T) {
	s := newTestServer(t)
	files := runUploads(t)

	// GIVEN: attendance is missing
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, multipartRequest(t, files[0], files[1]))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Run failed", resp.Error)

	// THEN: nothing was written
	rows := decode[[]IncentiveDTO](t, s.do(http.MethodGet, "/api/incentives", nil))
	assert.Empty(t, rows)
}

func TestCreateRun_MissingColumn(t *testing.T) {
	s := newTestServer(t)
	files := runUploads(t)
	files[0].body = workbook(t, ingest.DefaultSalesSkip, [][]interface{}{
		{"SNO.", "BILL DATE", "ITEM NAME"},
		{1, "05/03/2025", "SHIRT"},
	})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, multipartRequest(t, files...))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "not found")
}

func TestCreateRun_NotMultipart(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/runs", map[string]string{"x": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReports(t *testing.T) {
	s := newTestServer(t)
	s.seed(
		saleRecord(5, "Gaurav", 95, 10000),
		saleRecord(5, "Vivek", 40, 4000),
		saleRecord(6, "Gaurav", 10, 1000),
	)

	t.Run("totals for a day", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/reports/totals?date=05-03-2025", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		totals := decode[TotalsDTO](t, rec)
		assert.True(t, decimal.NewFromInt(135).Equal(totals.Incentive))
		assert.Equal(t, 2, totals.Records)
	})

	t.Run("staff totals with exclusion", func(t *testing.T) {
		rows := decode[[]StaffTotalDTO](t, s.do(http.MethodGet, "/api/reports/staff?exclude=vivek", nil))
		require.Len(t, rows, 1)
		assert.Equal(t, "Gaurav", rows[0].Staff)
		assert.True(t, decimal.NewFromInt(105).Equal(rows[0].Incentive))
	})

	t.Run("top", func(t *testing.T) {
		rows := decode[[]StaffTotalDTO](t, s.do(http.MethodGet, "/api/reports/top?n=2", nil))
		require.Len(t, rows, 2)
		assert.Equal(t, "Vivek", rows[1].Staff)

		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/reports/top?n=0", nil).Code)
	})

	t.Run("daily and monthly", func(t *testing.T) {
		days := decode[[]DateTotalDTO](t, s.do(http.MethodGet, "/api/reports/daily", nil))
		require.Len(t, days, 2)
		assert.Equal(t, "05-03-2025", days[0].Date)

		months := decode[[]MonthTotalDTO](t, s.do(http.MethodGet, "/api/reports/monthly", nil))
		require.Len(t, months, 1)
		assert.Equal(t, "2025-03", months[0].Month)
	})

	t.Run("latest date", func(t *testing.T) {
		latest := decode[LatestDateDTO](t, s.do(http.MethodGet, "/api/reports/latest", nil))
		require.NotNil(t, latest.Date)
		assert.Equal(t, "06-03-2025", *latest.Date)
	})

	t.Run("invalid filters", func(t *testing.T) {
		for _, q := range []string{"date=yesterday", "from=06-03-2025&to=05-03-2025", "exclude_pool=maybe", "limit=-1"} {
			rec := s.do(http.MethodGet, "/api/incentives?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})
}

func TestStaffSummary(t *testing.T) {
	s := newTestServer(t)
	s.seed(
		saleRecord(1, "Gaurav", 5, 500),
		saleRecord(5, "Gaurav", 95, 10000),
		saleRecord(6, "Gaurav", 10, 1000),
	)

	// GIVEN: no period, so the latest ledger date is used
	rec := s.do(http.MethodGet, "/api/reports/staff/gaurav/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[StaffSummaryDTO](t, rec)

	assert.Equal(t, "Gaurav", summary.Staff)
	assert.Equal(t, "06-03-2025", summary.From)
	assert.True(t, decimal.NewFromInt(10).Equal(summary.Current.Incentive))
	assert.True(t, decimal.NewFromInt(110).Equal(summary.MonthToDate.Incentive))
	assert.Nil(t, summary.PoolTotal)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/reports/staff/nobody/summary", nil).Code)
}

func TestGetPool(t *testing.T) {
	s := newTestServer(t)
	s.seed(generic.IncentiveRecord{
		Kind:        generic.KindPoolShare,
		Date:        march(5),
		Staff:       "Sahil",
		Role:        generic.RoleHelper,
		Incentive:   decimal.NewFromInt(15),
		BillNo:      generic.PoolBillNo,
		ItemName:    generic.PoolItemName,
		HelperCount: 2,
		TotalPool:   decimal.NewFromInt(30),
	})

	rec := s.do(http.MethodGet, "/api/pool?staff=sahil&date=05-03-2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(30).Equal(decode[PoolDTO](t, rec).TotalPool))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/pool?staff=sahil&date=06-03-2025", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/pool?date=05-03-2025", nil).Code)
}

// =============================================================================
// CONTROL SURFACE
// =============================================================================

func TestStaffEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/staff", CreateStaffRequest{Name: "Ravi", Role: "helper"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, StaffDTO{Name: "Ravi", Role: "Helper", Active: true}, decode[StaffDTO](t, rec))

	// Duplicate in any case
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/staff", CreateStaffRequest{Name: "ravi", Role: "helper"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/staff", CreateStaffRequest{Name: "Tom", Role: "manager"}).Code)

	rec = s.do(http.MethodPut, "/api/staff/ravi/role", SetRoleRequest{Role: "stockboy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Stockboy", decode[StaffDTO](t, rec).Role)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/api/staff/nobody/role", SetRoleRequest{Role: "helper"}).Code)

	staff := decode[[]StaffDTO](t, s.do(http.MethodGet, "/api/staff", nil))
	assert.Len(t, staff, len(roster.DefaultMembers())+1)
}

func TestCreateAdjustment(t *testing.T) {
	s := newTestServer(t)
	s.seed(saleRecord(5, "Gaurav", 95, 10000))

	// WHEN: a cut is applied using a lower-case name
	rec := s.do(http.MethodPost, "/api/adjustments", AdjustmentRequestDTO{
		Staff:  "gaurav",
		Date:   "05-03-2025",
		Value:  decimal.NewFromInt(20),
		Cut:    true,
		Reason: "late",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: the record carries the canonical name and counts against the day
	adj := decode[IncentiveDTO](t, rec)
	assert.Equal(t, "Gaurav", adj.Staff)
	assert.Equal(t, string(generic.KindAdjustment), adj.Kind)

	totals := decode[TotalsDTO](t, s.do(http.MethodGet, "/api/reports/totals?date=05-03-2025&staff=Gaurav", nil))
	assert.True(t, decimal.NewFromInt(75).Equal(totals.Incentive))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/adjustments", AdjustmentRequestDTO{Staff: "Nobody", Date: "05-03-2025", Value: decimal.NewFromInt(1)}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/adjustments", AdjustmentRequestDTO{Staff: "Gaurav", Date: "soon"}).Code)
}

func TestPayments(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/payments", CreatePaymentRequest{
		Staff:       "vivek",
		Date:        "05-03-2025",
		Amount:      decimal.NewFromInt(500),
		ClearedDate: "07-03-2025",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[PaymentDTO](t, rec)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Vivek", p.Staff)
	require.NotNil(t, p.ClearedDate)

	list := decode[[]PaymentDTO](t, s.do(http.MethodGet, "/api/payments?staff=Vivek&from=01-03-2025&to=31-03-2025", nil))
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/payments", CreatePaymentRequest{Staff: "Vivek", Date: "05-03-2025"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/payments?from=01-03-2025", nil).Code)
}

func TestGetSchemeAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/scheme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	rec = s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{generic.ErrStaffNotFound, http.StatusNotFound},
		{generic.ErrStaffExists, http.StatusConflict},
		{generic.ErrDuplicateRecord, http.StatusConflict},
		{generic.ErrInvalidRole, http.StatusBadRequest},
		{&generic.ExtractCountError{Got: 1, Want: 2}, http.StatusBadRequest},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
