package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
)

func standardPolicy() *model.BreakPolicy {
	return &model.BreakPolicy{
		ID:                "p1",
		MinDuration:       10,
		MaxDuration:       30,
		AutoApproveLimit:  15,
		MaxBreaksPerDay:   2,
		CooldownMinutes:   90,
		AllowedBreakTypes: []model.BreakType{model.BreakShort, model.BreakLunch},
	}
}

func at(hhmm string) time.Time {
	return model.MustTimeOfDay(hhmm).On(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
}

func TestAutoApproveWithinLimit(t *testing.T) {
	d, err := Default().Evaluate(standardPolicy(), Request{Type: model.BreakShort, Duration: 12, Now: at("10:00")})
	require.NoError(t, err)
	assert.True(t, d.AutoApproved)
	assert.Empty(t, d.Flags)

	d, err = Default().Evaluate(standardPolicy(), Request{Type: model.BreakShort, Duration: 15, Now: at("10:00")})
	require.NoError(t, err)
	assert.True(t, d.AutoApproved, "limit is inclusive")
}

func TestPendingAboveLimit(t *testing.T) {
	d, err := Default().Evaluate(standardPolicy(), Request{Type: model.BreakShort, Duration: 20, Now: at("10:00")})
	require.NoError(t, err)
	assert.False(t, d.AutoApproved)
	assert.Equal(t, []string{model.RuleAutoApproveLimit}, d.Flags)
}

func TestDurationBounds(t *testing.T) {
	_, err := Default().Evaluate(standardPolicy(), Request{Type: model.BreakShort, Duration: 5, Now: at("10:00")})
	assert.ErrorIs(t, err, apperr.ErrDurationTooShort)

	_, err = Default().Evaluate(standardPolicy(), Request{Type: model.BreakShort, Duration: 31, Now: at("10:00")})
	assert.ErrorIs(t, err, apperr.ErrDurationTooLong)
	e, _ := apperr.As(err)
	assert.Equal(t, 30, e.Context["maximum"])
}

func TestDailyLimitWinsRegardlessOfDuration(t *testing.T) {
	for _, dur := range []int{10, 12, 30} {
		_, err := Default().Evaluate(standardPolicy(), Request{
			Type:        model.BreakShort,
			Duration:    dur,
			Now:         at("16:00"),
			BreaksToday: 2,
		})
		assert.ErrorIs(t, err, apperr.ErrMaxBreaksReached, "duration %d", dur)
	}
}

func TestCooldownReportsRemaining(t *testing.T) {
	end := at("13:00")
	_, err := Default().Evaluate(standardPolicy(), Request{
		Type:         model.BreakShort,
		Duration:     12,
		Now:          at("13:30"),
		BreaksToday:  1,
		LastBreakEnd: &end,
	})
	require.ErrorIs(t, err, apperr.ErrCooldownActive)
	e, _ := apperr.As(err)
	assert.Equal(t, 60, e.Context["remainingMinutes"])
	assert.Equal(t, 90, e.Context["cooldownMinutes"])

	_, err = Default().Evaluate(standardPolicy(), Request{
		Type:         model.BreakShort,
		Duration:     12,
		Now:          at("14:30"),
		BreaksToday:  1,
		LastBreakEnd: &end,
	})
	assert.NoError(t, err)
}

func TestBreakTypeCheckedLast(t *testing.T) {
	_, err := Default().Evaluate(standardPolicy(), Request{Type: model.BreakEmergency, Duration: 12, Now: at("10:00")})
	assert.ErrorIs(t, err, apperr.ErrBreakTypeNotAllowed)

	// An out-of-range duration is reported before the type.
	_, err = Default().Evaluate(standardPolicy(), Request{Type: model.BreakEmergency, Duration: 3, Now: at("10:00")})
	assert.ErrorIs(t, err, apperr.ErrDurationTooShort)
}

func TestPreferredWindowForcesReview(t *testing.T) {
	p := standardPolicy()
	start, end := model.MustTimeOfDay("12:00"), model.MustTimeOfDay("14:00")
	p.PreferredStart, p.PreferredEnd = &start, &end

	d, err := Default().Evaluate(p, Request{Type: model.BreakShort, Duration: 12, Now: at("10:00")})
	require.NoError(t, err)
	assert.False(t, d.AutoApproved)
	assert.Equal(t, []string{model.RuleOutsidePreferredWindow}, d.Flags)

	d, err = Default().Evaluate(p, Request{Type: model.BreakShort, Duration: 12, Now: at("12:30")})
	require.NoError(t, err)
	assert.True(t, d.AutoApproved)
}

type alwaysDeny struct{}

func (alwaysDeny) Name() string { return "deny" }
func (alwaysDeny) Check(*model.BreakPolicy, Request) *apperr.Error {
	return apperr.ErrInvalidInput
}

func TestCustomRuleSet(t *testing.T) {
	e := NewEngine([]Rule{alwaysDeny{}}, nil)
	_, err := e.Evaluate(standardPolicy(), Request{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
