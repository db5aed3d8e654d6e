package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Success, CodeOf(nil))
	assert.Equal(t, UnknownError, CodeOf(New("plain")))
	assert.Equal(t, InvalidTimingError, CodeOf(ErrInvalidTiming))
	assert.Equal(t, InvalidTimingError,
		CodeOf(InvalidTimingError.Errorf("vote at ts=%d outside window", 100)))
}

func TestCode_Wrap(t *testing.T) {
	base := New("io failure")
	err := WrongEpochError.Wrap(base, "no snapshot for epoch")
	assert.Equal(t, WrongEpochError, CodeOf(err))
	assert.Equal(t, base, Unwrap(err))
	assert.True(t, WrongEpochError.Equals(err))
	assert.False(t, WrongEpochError.Equals(nil))
	assert.False(t, AlreadyDoneError.Equals(err))
}

func TestWithCode(t *testing.T) {
	assert.NoError(t, WithCode(nil, NothingToClaimError))

	err := WithCode(New("empty"), NothingToClaimError)
	assert.Equal(t, NothingToClaimError, CodeOf(err))

	// re-coding a coded error keeps the outermost code
	err2 := WithCode(err, AlreadyDoneError)
	assert.Equal(t, AlreadyDoneError, CodeOf(err2))
}

func TestBaseError_Format(t *testing.T) {
	assert.Equal(t, "E2000:LiquidationInProgress", ToString(ErrLiquidationInProgress))
	assert.Equal(t, "", ToString(nil))
}

func TestBaseError_Errorf(t *testing.T) {
	err := ErrAlreadyDone.Errorf("already claimed: holder=%d", 3)
	assert.Equal(t, AlreadyDoneError, CodeOf(err))
	assert.True(t, ErrAlreadyDone.Equals(err))
	assert.Equal(t, "E1004:already claimed: holder=3", ToString(err))

	assert.Equal(t, NothingToClaimError,
		CodeOf(ErrNothingToClaim.New("empty stream")))
}

func TestIsCritical(t *testing.T) {
	assert.False(t, IsCritical(ErrInvalidTiming))
	assert.True(t, IsCritical(CodeCritical.New("corrupted state")))
}
