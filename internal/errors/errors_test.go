package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("exit status 1")
	err := ExternalError(cause, "git push")

	assert.Equal(t, "git push: exit status 1", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeExternal, GetType(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, ExternalError(nil, "no-op"))
}

func TestIsMatchesByType(t *testing.T) {
	err := ConfigErrorf("interval_min must be positive")
	target := New(ErrorTypeConfig, "")

	assert.True(t, stderrors.Is(err, target))
	assert.False(t, stderrors.Is(err, New(ErrorTypeExternal, "")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ConfigErrorf("bad path")))
	assert.False(t, IsFatal(ValidationErrorf("ambiguous")))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(stderrors.New("plain")))
}
