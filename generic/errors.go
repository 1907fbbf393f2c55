/*
errors.go - Centralized error types for the incentive engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these with context; the API maps them to status codes.

ERROR CATEGORIES:
  1. Structural errors - fatal to a run, raised before any store write
  2. Validation errors - bad input from the control surface
  3. Store errors - persistence failures

ROW-LEVEL PROBLEMS ARE NOT ERRORS:
  A missing field, unparseable date or unresolved name skips the row and is
  counted in the run statistics. Nothing here is returned for those.

SEE ALSO:
  - incentive/engine.go: raises structural errors
  - ingest/table.go: raises MissingColumnError
  - api/handlers.go: maps errors to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrWrongExtractCount is returned when a run is not given exactly the
	// expected number of sales extracts plus attendance.
	ErrWrongExtractCount = errors.New("wrong number of extracts")

	// ErrMissingColumn is returned when an extract lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrDuplicateCompany is returned when two sales extracts claim the same company.
	ErrDuplicateCompany = errors.New("duplicate company in sales extracts")

	// ErrStaffNotFound is returned when a referenced staff member is not on the roster.
	ErrStaffNotFound = errors.New("staff member not found")

	// ErrStaffExists is returned when adding a name already on the roster.
	ErrStaffExists = errors.New("staff member already exists")

	// ErrInvalidRole is returned for role names outside the enumeration.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidAmount is returned when a monetary value cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrRecordNotFound is returned when a point lookup finds nothing.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateRecord is returned when a record ID is appended twice.
	ErrDuplicateRecord = errors.New("duplicate record id")

	// ErrTransactionFailed is returned when a batch cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingColumnError names the extract and the column that was not found.
type MissingColumnError struct {
	Source string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found in %s", e.Column, e.Source)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// ExtractCountError reports how many sales extracts were supplied.
type ExtractCountError struct {
	Got           int
	Want          int
	HasAttendance bool
}

func (e *ExtractCountError) Error() string {
	if !e.HasAttendance {
		return fmt.Sprintf("expected %d sales extracts and 1 attendance extract, got %d sales and no attendance", e.Want, e.Got)
	}
	return fmt.Sprintf("expected %d sales extracts, got %d", e.Want, e.Got)
}

func (e *ExtractCountError) Unwrap() error {
	return ErrWrongExtractCount
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsStructural returns true if the error aborts a run before any write.
func IsStructural(err error) bool {
	return errors.Is(err, ErrWrongExtractCount) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrDuplicateCompany)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return IsStructural(err) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrStaffExists)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStaffNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
