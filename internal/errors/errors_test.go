package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"schoolprep/domain/core"
)

func TestWrap_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{core.NewDataQualityError("lunch", "all missing"), CodeDataQuality},
		{core.NewSchemaMismatchError(nil, []string{"x"}), CodeSchemaMismatch},
		{core.NewBalanceError(1, 2), CodeBalance},
		{core.NewParseError("date", 1, "?", "date"), CodeParse},
		{fmt.Errorf("disk on fire"), CodeInternalError},
	}

	for _, test := range tests {
		wrapped := Wrap(test.err, "prepare failed")
		assert.Equal(t, test.code, GetCode(wrapped))
		assert.True(t, stderrors.Is(wrapped, test.err))
	}
}

func TestWrap_KeepsInnerCode(t *testing.T) {
	inner := ConfigInvalid("seed must be an integer")
	outer := Wrapf(inner, "loading %s", ".env")

	assert.Equal(t, CodeConfigInvalid, GetCode(outer))
	assert.Contains(t, outer.Error(), "seed must be an integer")
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}
