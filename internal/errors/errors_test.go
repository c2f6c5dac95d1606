package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgeErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *ForgeError
		expected string
	}{
		{
			name: "code and message",
			err: &ForgeError{
				Type:    ErrorTypeAssembly,
				Code:    ErrCodeTemplateNotFound,
				Message: "template file not found",
			},
			expected: "[ERR_TEMPLATE_NOT_FOUND] template file not found",
		},
		{
			name: "with path",
			err: (&ForgeError{
				Type:    ErrorTypeAssembly,
				Code:    ErrCodeTemplateNotFound,
				Message: "template file not found",
			}).WithPath("config/autounattend.template.xml"),
			expected: "[ERR_TEMPLATE_NOT_FOUND] config/autounattend.template.xml template file not found",
		},
		{
			name: "with cause",
			err: &ForgeError{
				Type:    ErrorTypeIO,
				Code:    ErrCodeOutputWrite,
				Message: "cannot write output",
				Cause:   errors.New("disk full"),
			},
			expected: "[ERR_OUTPUT_WRITE] cannot write output: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewIOError(ErrCodeOutputWrite, "write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsMatchesTypeAndCode(t *testing.T) {
	a := NewAssemblyError(ErrCodeTemplateNotFound, "missing", nil)
	b := NewAssemblyError(ErrCodeTemplateNotFound, "different message", nil)
	c := NewAssemblyError(ErrCodeOutputWrite, "missing", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestWrapPreservesForgeError(t *testing.T) {
	inner := NewValidationError(ErrCodeValidationFailed, "bad document")
	outer := Wrap(inner, ErrorTypeAssembly, ErrCodeInternalError, "build step failed")

	require.NotNil(t, outer)
	assert.Equal(t, ErrorTypeAssembly, outer.Type)
	assert.True(t, outer.Recoverable, "recoverability of the cause is preserved")

	var fe *ForgeError
	require.True(t, errors.As(outer.Cause, &fe))
	assert.Equal(t, ErrCodeValidationFailed, fe.Code)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, ErrCodeOutputWrite, "ignored"))
	assert.Nil(t, WrapIO(nil, ErrCodeOutputWrite, "ignored"))
}

func TestRecoverability(t *testing.T) {
	assert.True(t, IsRecoverable(NewValidationError(ErrCodeValidationFailed, "soft")))
	assert.False(t, IsRecoverable(NewIOError(ErrCodeOutputWrite, "hard", nil)))
	assert.False(t, IsRecoverable(fmt.Errorf("plain error")))

	assert.True(t, IsFatal(NewIOError(ErrCodeOutputWrite, "hard", nil)))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(NewValidationError(ErrCodeValidationFailed, "soft")))
}

func TestWrappedErrorsSurviveErrorsAs(t *testing.T) {
	fe := NewImagingError(ErrCodeToolFailed, "oscdimg exited 1", errors.New("exit status 1"))
	wrapped := fmt.Errorf("image step: %w", fe)

	var got *ForgeError
	require.True(t, errors.As(wrapped, &got))
	assert.Equal(t, ErrCodeToolFailed, got.Code)
	assert.Equal(t, ErrorTypeImaging, got.Type)
}
