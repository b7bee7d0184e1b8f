package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Table-level errors abort a preparation run
	ErrDataQuality    = errors.New("data quality violation")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrBalance        = errors.New("dataset not balanced")

	// Row-level errors lead to row exclusion
	ErrParse = errors.New("parse failure")

	// Argument errors
	ErrInvalidCount = errors.New("invalid synthetic row count")
)

// DataQualityError reports a required field with no computable fallback
type DataQualityError struct {
	Column string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("%v: column %s: %s", ErrDataQuality, e.Column, e.Reason)
}

func (e *DataQualityError) Unwrap() error { return ErrDataQuality }

// SchemaMismatchError reports two tables that disagree on column set or order
type SchemaMismatchError struct {
	Expected []string
	Actual   []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%v: expected [%s], got [%s]", ErrSchemaMismatch,
		strings.Join(e.Expected, ","), strings.Join(e.Actual, ","))
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// BalanceError reports unequal real and synthetic row counts
type BalanceError struct {
	Real      int
	Synthetic int
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%v: %d raw rows vs %d synthetic rows", ErrBalance, e.Real, e.Synthetic)
}

func (e *BalanceError) Unwrap() error { return ErrBalance }

// ParseError reports a date or numeric cell that cannot be parsed
type ParseError struct {
	Column string
	Row    int
	Value  string
	Kind   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: row %d column %s: cannot parse %q as %s", ErrParse, e.Row, e.Column, e.Value, e.Kind)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Error constructors with context
func NewDataQualityError(column, reason string) error {
	return &DataQualityError{Column: column, Reason: reason}
}

func NewSchemaMismatchError(expected, actual []string) error {
	return &SchemaMismatchError{Expected: expected, Actual: actual}
}

func NewBalanceError(realRows, synthetic int) error {
	return &BalanceError{Real: realRows, Synthetic: synthetic}
}

func NewParseError(column string, row int, value, kind string) error {
	return &ParseError{Column: column, Row: row, Value: value, Kind: kind}
}

// IsFatal reports whether err must abort the batch rather than exclude a row
func IsFatal(err error) bool {
	return errors.Is(err, ErrDataQuality) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrBalance) ||
		errors.Is(err, ErrInvalidCount)
}
