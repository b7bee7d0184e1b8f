package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		fatal    bool
	}{
		{"data quality", NewDataQualityError("lunch", "all values missing"), ErrDataQuality, true},
		{"schema", NewSchemaMismatchError([]string{"a"}, []string{"b"}), ErrSchemaMismatch, true},
		{"balance", NewBalanceError(10, 11), ErrBalance, true},
		{"parse", NewParseError("date", 3, "yesterday", "date"), ErrParse, false},
	}

	for _, test := range tests {
		wrapped := fmt.Errorf("stage failed: %w", test.err)
		if !errors.Is(wrapped, test.sentinel) {
			t.Errorf("%s: expected errors.Is to match sentinel", test.name)
		}
		if IsFatal(wrapped) != test.fatal {
			t.Errorf("%s: IsFatal = %v, want %v", test.name, IsFatal(wrapped), test.fatal)
		}
	}
}

func TestBalanceErrorAs(t *testing.T) {
	err := fmt.Errorf("assemble: %w", NewBalanceError(10, 11))

	var balanceErr *BalanceError
	if !errors.As(err, &balanceErr) {
		t.Fatal("Expected errors.As to find *BalanceError")
	}
	if balanceErr.Real != 10 || balanceErr.Synthetic != 11 {
		t.Errorf("Unexpected counts: %d/%d", balanceErr.Real, balanceErr.Synthetic)
	}
}
