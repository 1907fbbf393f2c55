/*
Package ingest turns uploaded extracts into engine input.

PURPOSE:
  Sales and attendance extracts arrive as xlsx workbooks (CSV is accepted
  too). This package reads the first sheet, finds the header row after a
  fixed preamble, checks the column contract and maps each row to an
  incentive.Transaction or incentive.Attendance.

COLUMN CONTRACT:
  Headers are trimmed, upper-cased and whitespace-collapsed before lookup.
  Sales:      BILL DATE, GROSS AMOUNT, BILL NO., ITEM NAME, AGENT NAME required;
              NET AMOUNT | NET AMT, OTHER AGENT NAME, TOTAL QTY, RATE/UNIT,
              ITEM CODE, ADDITIONAL ITEM CODE, HELPER NAME, SNO. optional
  Attendance: NAME, STATUS required; DATE optional

ERRORS:
  A missing required column is structural (*generic.MissingColumnError).
  Bad cells are not: the row is passed on with the field empty and the
  engine skips it.
*/
package ingest

import (
	"strings"

	"github.com/warp/incentive-engine/generic"
)

// Table is a header plus data rows from one sheet.
type Table struct {
	Source    string
	Header    []string
	Rows      [][]string
	FirstLine int // sheet line number of Rows[0]

	index map[string]int
}

// NormalizeHeader upper-cases and collapses whitespace.
func NormalizeHeader(h string) string {
	return strings.ToUpper(strings.Join(strings.Fields(h), " "))
}

// NewTable skips the first skip rows, takes the next non-blank row as the
// header and the rest as data.
func NewTable(source string, raw [][]string, skip int) *Table {
	t := &Table{Source: source, index: make(map[string]int)}
	if skip > len(raw) {
		skip = len(raw)
	}
	rest := raw[skip:]

	headerAt := 0
	for headerAt < len(rest) && blank(rest[headerAt]) {
		headerAt++
	}
	if headerAt == len(rest) {
		return t
	}

	for i, h := range rest[headerAt] {
		name := NormalizeHeader(h)
		t.Header = append(t.Header, name)
		if _, dup := t.index[name]; !dup && name != "" {
			t.index[name] = i
		}
	}
	t.Rows = rest[headerAt+1:]
	t.FirstLine = skip + headerAt + 2
	return t
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (t *Table) Has(column string) bool {
	_, ok := t.index[NormalizeHeader(column)]
	return ok
}

// Require returns a *generic.MissingColumnError for the first absent column.
func (t *Table) Require(columns ...string) error {
	for _, c := range columns {
		if !t.Has(c) {
			return &generic.MissingColumnError{Source: t.Source, Column: c}
		}
	}
	return nil
}

// Value returns the trimmed cell, or "" when the column or cell is absent.
func (t *Table) Value(row []string, column string) string {
	i, ok := t.index[NormalizeHeader(column)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// First returns the first non-empty value among columns.
func (t *Table) First(row []string, columns ...string) string {
	for _, c := range columns {
		if v := t.Value(row, c); v != "" {
			return v
		}
	}
	return ""
}
