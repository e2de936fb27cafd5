package flowerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), CodeInternal},
		{"direct", New(CodeSchema, "schema not set"), CodeSchema},
		{"wrapped by fmt", fmt.Errorf("ctx: %w", New(CodeIO, "disk")), CodeIO},
		{"rewrapped", Wrap(New(CodeIO, "disk"), CodeInvalidState, "writer failed"), CodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeIO, "nothing"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(CodeIO, "disk full")
	outer := Wrap(inner, CodeIO, "write row group")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, errors.Is(outer, inner))
	assert.Contains(t, outer.Error(), "disk full")
}

func TestErrFullMatchesByCode(t *testing.T) {
	other := &Error{Code: CodeFull}
	assert.True(t, errors.Is(ErrFull, other))
	assert.True(t, errors.Is(fmt.Errorf("push: %w", ErrFull), ErrFull))
	assert.False(t, errors.Is(New(CodeIO, "x"), ErrFull))
}

func TestWithDetail(t *testing.T) {
	err := New(CodeInvalidArgument, "bad").WithDetail("column", "id").WithDetail("rows", 3)
	assert.Equal(t, "id", err.Details["column"])
	assert.Equal(t, 3, err.Details["rows"])
	assert.NotEmpty(t, err.Stack)
}
