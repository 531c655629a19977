package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesCodeIgnoringContext(t *testing.T) {
	err := ErrCooldownActive.With(map[string]any{"remainingMinutes": 60})
	wrapped := fmt.Errorf("request break: %w", err)

	assert.ErrorIs(t, wrapped, ErrCooldownActive)
	assert.NotErrorIs(t, wrapped, ErrMaxBreaksReached)
	assert.Equal(t, KindPolicyViolation, KindOf(wrapped))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, 60, e.Context["remainingMinutes"])
}

func TestWithDoesNotMutateSentinel(t *testing.T) {
	_ = ErrMaxBreaksReached.With(map[string]any{"limit": 2})
	assert.Nil(t, ErrMaxBreaksReached.Context)
}

func TestKindOfUnknownIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal", KindOf(nil).String())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := ErrAlreadyCheckedIn.Wrap(cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.Contains(t, err.Error(), "already_checked_in")
}

func TestSameCodeDifferentKindAreDistinct(t *testing.T) {
	err := ErrNoSessionForBreak.With(map[string]any{"agentId": "a1"})
	assert.ErrorIs(t, err, ErrNoSessionForBreak)
	assert.NotErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, KindPolicyViolation, KindOf(err))
	assert.Equal(t, KindNotFound, KindOf(ErrNoActiveSession))
}
