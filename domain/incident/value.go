package incident

import (
	"math"
	"strconv"
	"time"
)

// DateLayout is the canonical calendar form of the date column
const DateLayout = "2006-01-02"

// ValueType defines the storage type for values
type ValueType string

const (
	ValueTypeText    ValueType = "text"
	ValueTypeNumeric ValueType = "numeric"
	ValueTypeDate    ValueType = "date"
	ValueTypeMissing ValueType = "missing"
)

// Value is a typed table cell. The zero Value is missing.
type Value struct {
	Type ValueType
	Num  float64
	Text string
	Date time.Time
}

// NewTextValue creates a text value; empty text is missing
func NewTextValue(s string) Value {
	if s == "" {
		return NewMissingValue()
	}
	return Value{Type: ValueTypeText, Text: s}
}

// NewNumericValue creates a numeric value; NaN is missing
func NewNumericValue(n float64) Value {
	if math.IsNaN(n) {
		return NewMissingValue()
	}
	return Value{Type: ValueTypeNumeric, Num: n}
}

// NewDateValue creates a calendar date value, dropping the clock part
func NewDateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{Type: ValueTypeDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewMissingValue creates a missing value
func NewMissingValue() Value {
	return Value{Type: ValueTypeMissing}
}

// IsMissing reports whether the cell holds no value
func (v Value) IsMissing() bool {
	return v.Type == ValueTypeMissing || v.Type == ""
}

// IsNumeric returns true if the value represents a valid number
func (v Value) IsNumeric() bool {
	return v.Type == ValueTypeNumeric
}

// Format renders the value for a column of the given kind. Missing renders empty.
func (v Value) Format(kind Kind) string {
	switch v.Type {
	case ValueTypeText:
		return v.Text
	case ValueTypeNumeric:
		if kind == KindInteger {
			return strconv.FormatInt(int64(math.Round(v.Num)), 10)
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueTypeDate:
		return v.Date.Format(DateLayout)
	}
	return ""
}

// Equal compares two values cell-wise
func (v Value) Equal(other Value) bool {
	if v.IsMissing() || other.IsMissing() {
		return v.IsMissing() && other.IsMissing()
	}
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueTypeNumeric:
		return v.Num == other.Num
	case ValueTypeDate:
		return v.Date.Equal(other.Date)
	}
	return v.Text == other.Text
}
