package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"wrapped empty denominator", fmt.Errorf("portal usage: %w", ErrEmptyDenominator), ExitNoData},
		{"unknown schema", fmt.Errorf("schema %q: %w", "gold", ErrUnknownSchema), ExitUsage},
		{"index", fmt.Errorf("search: %w", ErrIndexUnavailable), ExitExternal},
		{"app error wins", New(ErrEmptyDenominator, ExitUsage, "custom"), ExitUsage},
		{"unclassified", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, ExitUsage, "field %s", "sex")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "invalid input: field sex", err.Error())
}
