package ingest

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/incentive"
)

// Column names.
const (
	ColSerial             = "SNO."
	ColBillDate           = "BILL DATE"
	ColGross              = "GROSS AMOUNT"
	ColNet                = "NET AMOUNT"
	ColNetAlt             = "NET AMT"
	ColAgent              = "AGENT NAME"
	ColOtherAgent         = "OTHER AGENT NAME"
	ColHelper             = "HELPER NAME"
	ColBillNo             = "BILL NO."
	ColItemName           = "ITEM NAME"
	ColQty                = "TOTAL QTY"
	ColRate               = "RATE/UNIT"
	ColItemCode           = "ITEM CODE"
	ColAdditionalItemCode = "ADDITIONAL ITEM CODE"

	ColName   = "NAME"
	ColStatus = "STATUS"
	ColDate   = "DATE"
)

var (
	SalesRequired      = []string{ColBillDate, ColGross, ColBillNo, ColItemName, ColAgent}
	AttendanceRequired = []string{ColName, ColStatus}
)

const (
	DefaultSalesSkip      = 2
	DefaultAttendanceSkip = 6
	UnknownCompany        = "Unknown"
)

// CompanyFromFilename maps the file-name prefix to a company:
// "LS_Sales.xlsx" is Life Style, "NFS_Sales.xlsx" is New Fashion Style.
func CompanyFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := strings.ToUpper(strings.SplitN(base, "_", 2)[0])
	switch {
	case strings.Contains(prefix, "NFS"):
		return "New Fashion Style", true
	case strings.Contains(prefix, "LS"):
		return "Life Style", true
	}
	return UnknownCompany, false
}

// =============================================================================
// READER
// =============================================================================

type Reader struct {
	Scheme         incentive.Scheme
	Dates          *generic.DateNormalizer
	Log            zerolog.Logger
	SalesSkip      int
	AttendanceSkip int
}

func NewReader(scheme incentive.Scheme, log zerolog.Logger) *Reader {
	return &Reader{
		Scheme:         scheme,
		Dates:          generic.NewDateNormalizer(log),
		Log:            log,
		SalesSkip:      DefaultSalesSkip,
		AttendanceSkip: DefaultAttendanceSkip,
	}
}

// Upload is one file handed to the reader.
type Upload struct {
	Name string
	Body io.Reader
}

// LoadBatch reads every upload. Count checks are left to the engine so the
// error is the same whether input came from HTTP or the command line.
func (r *Reader) LoadBatch(sales []Upload, attendance *Upload) (incentive.Batch, error) {
	var batch incentive.Batch
	for _, u := range sales {
		rows, err := ReadRows(u.Name, u.Body)
		if err != nil {
			return incentive.Batch{}, err
		}
		company, ok := CompanyFromFilename(u.Name)
		if !ok {
			r.Log.Warn().Str("file", u.Name).Msg("could not identify company from file name")
		}
		extract, err := r.ParseSales(NewTable(u.Name, rows, r.SalesSkip), company)
		if err != nil {
			return incentive.Batch{}, err
		}
		batch.Sales = append(batch.Sales, extract)
	}

	if attendance != nil {
		rows, err := ReadRows(attendance.Name, attendance.Body)
		if err != nil {
			return incentive.Batch{}, err
		}
		batch.Attendance, err = r.ParseAttendance(NewTable(attendance.Name, rows, r.AttendanceSkip))
		if err != nil {
			return incentive.Batch{}, err
		}
		batch.HasAttendance = true
	}
	return batch, nil
}

// =============================================================================
// SALES
// =============================================================================

// ParseSales maps rows to transactions. Blank rows and footer rows (a
// non-numeric SNO.) are dropped here; rows missing required values are
// passed through for the engine to skip and count.
func (r *Reader) ParseSales(t *Table, company string) (incentive.SalesExtract, error) {
	if err := t.Require(SalesRequired...); err != nil {
		return incentive.SalesExtract{}, err
	}

	extract := incentive.SalesExtract{Source: t.Source, Company: company}
	hasSerial := t.Has(ColSerial)
	for i, row := range t.Rows {
		line := t.FirstLine + i
		if blank(row) {
			continue
		}
		if hasSerial {
			if _, err := strconv.ParseFloat(t.Value(row, ColSerial), 64); err != nil {
				r.Log.Debug().Str("source", t.Source).Int("row", line).Msg("dropped footer row")
				continue
			}
		}
		extract.Transactions = append(extract.Transactions, r.transaction(t, row, line))
	}

	r.Log.Info().
		Str("source", t.Source).
		Str("company", company).
		Int("transactions", len(extract.Transactions)).
		Msg("parsed sales extract")
	return extract, nil
}

func (r *Reader) transaction(t *Table, row []string, line int) incentive.Transaction {
	gross := r.amount(t, row, line, ColGross)

	net := r.amount(t, row, line, ColNet, ColNetAlt)
	if net.IsZero() && t.First(row, ColNet, ColNetAlt) == "" {
		net = gross.Mul(r.Scheme.NetFallbackRate)
	}

	qty := r.amount(t, row, line, ColQty)
	if t.Value(row, ColQty) == "" {
		qty = decimal.NewFromInt(1)
	}

	rate := r.amount(t, row, line, ColRate)
	if t.Value(row, ColRate) == "" {
		rate = gross
		if qty.IsPositive() {
			rate = gross.Div(qty)
		}
	}

	return incentive.Transaction{
		Row:                line,
		RawDate:            t.Value(row, ColBillDate),
		BillNo:             t.Value(row, ColBillNo),
		ItemName:           t.Value(row, ColItemName),
		ItemCode:           t.Value(row, ColItemCode),
		AdditionalItemCode: t.Value(row, ColAdditionalItemCode),
		Gross:              gross,
		Net:                net,
		Qty:                qty,
		Rate:               rate,
		PrimaryAgent:       t.Value(row, ColAgent),
		SecondaryAgent:     t.Value(row, ColOtherAgent),
		Helper:             t.Value(row, ColHelper),
	}
}

// amount parses the first non-empty of columns; bad input reads as zero.
func (r *Reader) amount(t *Table, row []string, line int, columns ...string) decimal.Decimal {
	raw := t.First(row, columns...)
	d, _, err := generic.ParseAmount(raw)
	if err != nil {
		r.Log.Warn().
			Str("source", t.Source).
			Int("row", line).
			Str("column", columns[0]).
			Str("value", raw).
			Msg("unparseable amount")
		return decimal.Zero
	}
	return d
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// ParseAttendance keeps rows whose status is a recognized present or absent
// code. An unparseable DATE makes the row apply to every date.
func (r *Reader) ParseAttendance(t *Table) ([]incentive.Attendance, error) {
	if err := t.Require(AttendanceRequired...); err != nil {
		return nil, err
	}

	hasDate := t.Has(ColDate)
	var out []incentive.Attendance
	for i, row := range t.Rows {
		name := t.Value(row, ColName)
		code := strings.ToUpper(t.Value(row, ColStatus))
		if name == "" || !r.recognized(code) {
			continue
		}

		a := incentive.Attendance{Name: name, Code: code}
		if raw := t.Value(row, ColDate); hasDate && raw != "" {
			if d, ok := r.Dates.Normalize(raw); ok {
				a.Date = d
			} else {
				r.Log.Warn().Int("row", t.FirstLine+i).Msg("attendance date ignored")
			}
		}
		out = append(out, a)
	}

	r.Log.Info().Str("source", t.Source).Int("rows", len(out)).Msg("parsed attendance")
	return out, nil
}

func (r *Reader) recognized(code string) bool {
	for _, codes := range [][]string{r.Scheme.PresentCodes, r.Scheme.AbsentCodes} {
		for _, c := range codes {
			if strings.EqualFold(c, code) {
				return true
			}
		}
	}
	return false
}
