package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(570), tod)
	assert.Equal(t, "09:30", tod.String())

	_, err = ParseTimeOfDay("9h30")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestTimeOfDayOn(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	day := time.Date(2026, 3, 2, 17, 45, 0, 0, loc)
	got := MustTimeOfDay("09:00").On(day)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, loc), got)
	assert.Equal(t, MustTimeOfDay("17:45"), Of(day))
}

func TestShiftDuration(t *testing.T) {
	day := Shift{StartTime: MustTimeOfDay("09:00"), EndTime: MustTimeOfDay("17:00")}
	assert.Equal(t, 480, day.DurationMinutes())

	night := Shift{StartTime: MustTimeOfDay("22:00"), EndTime: MustTimeOfDay("06:00")}
	assert.Equal(t, 480, night.DurationMinutes())
}

func TestShiftLateLimit(t *testing.T) {
	s := Shift{GracePeriodMinutes: 10}
	assert.Equal(t, 70, s.LateLimitMinutes())

	limit := 30
	s.LateCheckInLimitMinutes = &limit
	assert.Equal(t, 30, s.LateLimitMinutes())
}

func TestShiftMatches(t *testing.T) {
	all := Shift{Scope: AssignAll}
	dept := Shift{Scope: AssignDepartment, DepartmentIDs: []string{"support"}}
	specific := Shift{Scope: AssignSpecific, AgentIDs: []string{"a1"}}

	rank, ok := all.Matches("a2", "")
	assert.True(t, ok)
	assert.Equal(t, 1, rank)

	_, ok = dept.Matches("a2", "sales")
	assert.False(t, ok)
	rank, ok = dept.Matches("a2", "support")
	assert.True(t, ok)
	assert.Equal(t, 2, rank)

	rank, ok = specific.Matches("a1", "support")
	assert.True(t, ok)
	assert.Equal(t, 3, rank)
}

func TestPreferredWindow(t *testing.T) {
	start, end := MustTimeOfDay("12:00"), MustTimeOfDay("14:00")
	p := BreakPolicy{PreferredStart: &start, PreferredEnd: &end}
	assert.True(t, p.InPreferredWindow(MustTimeOfDay("13:00")))
	assert.False(t, p.InPreferredWindow(MustTimeOfDay("15:00")))

	assert.True(t, (&BreakPolicy{}).InPreferredWindow(MustTimeOfDay("03:00")))
}

func TestSessionTransitions(t *testing.T) {
	s := &AgentSession{Status: SessionActive}
	require.NoError(t, s.Transition(SessionOnBreak))
	require.NoError(t, s.Transition(SessionActive))
	require.NoError(t, s.Transition(SessionCompleted))

	err := s.Transition(SessionActive)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "completed", terr.From)

	onBreak := &AgentSession{Status: SessionOnBreak}
	assert.Error(t, onBreak.Transition(SessionCompleted))
	assert.NoError(t, onBreak.Transition(SessionIncomplete))
}

func TestBreakTransitions(t *testing.T) {
	b := &BreakRequest{Status: BreakPending}
	require.NoError(t, b.Transition(BreakApproved))
	require.NoError(t, b.Transition(BreakActive))
	require.NoError(t, b.Transition(BreakCompleted))
	assert.Error(t, b.Transition(BreakActive))

	rejected := &BreakRequest{Status: BreakRejected}
	assert.Error(t, rejected.Transition(BreakApproved))
	assert.Error(t, rejected.Transition(BreakActive))
}

func TestBreakFlagDeduplicates(t *testing.T) {
	b := &BreakRequest{}
	b.Flag(RuleAutoApproveLimit, RuleAutoApproveLimit, RuleMaxDurationExceeded)
	assert.Equal(t, []string{RuleAutoApproveLimit, RuleMaxDurationExceeded}, b.ViolatedRules)
}
