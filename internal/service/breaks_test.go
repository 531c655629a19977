package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
)

func TestRequestBreakAutoApprovalThreshold(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")

	short := f.requestBreak(t, "a1", "10:00", 12)
	assert.False(t, short.RequiresApproval)
	assert.True(t, short.Break.AutoApproved)
	assert.Equal(t, model.BreakActive, short.Break.Status)
	require.NotNil(t, short.Break.StartTime)
	assert.True(t, short.Break.StartTime.Equal(at("10:00")))
	assert.Empty(t, short.Break.ViolatedRules)
	assert.Equal(t, model.AgentOnBreak, f.agentStatus(t, "a1"))

	sess, err := f.store.GetSession(f.ctx, short.Break.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionOnBreak, sess.Status)

	f.endBreak(t, "a1", "10:12")
	assert.Equal(t, model.AgentActive, f.agentStatus(t, "a1"))

	long := f.requestBreak(t, "a1", "11:45", 20)
	assert.True(t, long.RequiresApproval)
	assert.False(t, long.Break.AutoApproved)
	assert.Equal(t, model.BreakPending, long.Break.Status)
	assert.Nil(t, long.Break.StartTime)
	assert.Equal(t, []string{model.RuleAutoApproveLimit}, long.Break.ViolatedRules)

	require.Len(t, f.notify.pending, 1)
	stored, err := f.store.GetBreak(f.ctx, long.Break.ID)
	require.NoError(t, err)
	assert.Equal(t, "post-"+long.Break.ID, stored.NotifyPostID)
}

func TestRequestBreakCooldown(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	f.requestBreak(t, "a1", "12:48", 12)
	f.endBreak(t, "a1", "13:00")

	f.setTime("13:30")
	_, err := f.svc.RequestBreak(f.ctx, "a1", BreakInput{Type: model.BreakShort, Duration: 12})
	e := requireCode(t, err, apperr.ErrCooldownActive)
	assert.Equal(t, apperr.KindPolicyViolation, e.Kind)
	assert.Equal(t, 60, e.Context["remainingMinutes"])
	assert.Equal(t, 90, e.Context["cooldownMinutes"])

	res := f.requestBreak(t, "a1", "14:30", 12)
	assert.Equal(t, model.BreakActive, res.Break.Status)
}

func TestRequestBreakDailyLimit(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	f.requestBreak(t, "a1", "10:00", 12)
	f.endBreak(t, "a1", "10:12")
	f.requestBreak(t, "a1", "11:45", 12)
	f.endBreak(t, "a1", "11:57")

	for _, d := range []int{12, 25} {
		f.setTime("13:30")
		_, err := f.svc.RequestBreak(f.ctx, "a1", BreakInput{Type: model.BreakShort, Duration: d})
		e := requireCode(t, err, apperr.ErrMaxBreaksReached)
		assert.Equal(t, 2, e.Context["taken"])
		assert.Equal(t, 2, e.Context["limit"])
	}

	n, err := f.store.CountBreaks(f.ctx, "a1", "2026-03-02",
		model.BreakPending, model.BreakApproved, model.BreakActive, model.BreakCompleted)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "denied requests leave no record")
}

func TestRequestBreakRuleViolations(t *testing.T) {
	tests := []struct {
		name string
		in   BreakInput
		want *apperr.Error
	}{
		{"too short", BreakInput{Type: model.BreakShort, Duration: 5}, apperr.ErrDurationTooShort},
		{"too long", BreakInput{Type: model.BreakShort, Duration: 45}, apperr.ErrDurationTooLong},
		{"type not allowed", BreakInput{Type: model.BreakEmergency, Duration: 12}, apperr.ErrBreakTypeNotAllowed},
		{"unknown type", BreakInput{Type: "nap", Duration: 12}, apperr.ErrBreakTypeNotAllowed},
		{"zero duration", BreakInput{Type: model.BreakShort}, apperr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.checkIn(t, "a1", "09:00")
			f.setTime("10:00")
			_, err := f.svc.RequestBreak(f.ctx, "a1", tt.in)
			requireCode(t, err, tt.want)
		})
	}
}

func TestRequestBreakPreconditions(t *testing.T) {
	f := newFixture(t)

	f.setTime("08:00")
	_, err := f.svc.RequestBreak(f.ctx, "a1", BreakInput{Type: model.BreakShort, Duration: 12})
	e := requireCode(t, err, apperr.ErrNoSessionForBreak)
	assert.Equal(t, apperr.KindPolicyViolation, e.Kind)

	// The missing session is reported before the request body is judged.
	_, err = f.svc.RequestBreak(f.ctx, "a1", BreakInput{Type: model.BreakShort})
	requireCode(t, err, apperr.ErrNoSessionForBreak)

	f.checkIn(t, "a1", "09:00")
	f.requestBreak(t, "a1", "10:00", 12)
	f.setTime("10:05")
	_, err = f.svc.RequestBreak(f.ctx, "a1", BreakInput{Type: model.BreakShort, Duration: 12})
	requireCode(t, err, apperr.ErrAlreadyOnBreak)

	f.endBreak(t, "a1", "10:12")
	pending := f.requestBreak(t, "a1", "12:00", 20)
	f.setTime("12:01")
	_, err = f.svc.RequestBreak(f.ctx, "a1", BreakInput{Type: model.BreakShort, Duration: 12})
	e = requireCode(t, err, apperr.ErrBreakAlreadyPending)
	assert.Equal(t, pending.Break.ID, e.Context["breakRequestId"])
}

func TestRequestBreakWithoutPolicy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpsertShift(f.ctx, &model.Shift{
		ID:        "bare",
		StartTime: model.MustTimeOfDay("09:00"),
		EndTime:   model.MustTimeOfDay("17:00"),
		Scope:     model.AssignSpecific,
		AgentIDs:  []string{"a1"},
	}))
	f.checkIn(t, "a1", "09:00")

	f.setTime("10:00")
	_, err := f.svc.RequestBreak(f.ctx, "a1", BreakInput{Type: model.BreakShort, Duration: 12})
	requireCode(t, err, apperr.ErrNoPolicy)
}

func TestRequestOutsidePreferredWindowNeedsReview(t *testing.T) {
	f := newFixture(t)
	p := dayPolicy()
	start, end := model.MustTimeOfDay("12:00"), model.MustTimeOfDay("14:00")
	p.PreferredStart, p.PreferredEnd = &start, &end
	require.NoError(t, f.store.UpsertPolicy(f.ctx, p))
	f.checkIn(t, "a1", "09:00")

	res := f.requestBreak(t, "a1", "10:00", 10)
	assert.True(t, res.RequiresApproval)
	assert.Equal(t, []string{model.RuleOutsidePreferredWindow}, res.Break.ViolatedRules)

	_, err := f.svc.CancelBreak(f.ctx, "a1", res.Break.ID)
	require.NoError(t, err)

	inside := f.requestBreak(t, "a1", "12:30", 10)
	assert.False(t, inside.RequiresApproval)
}

func TestEndBreakFlagsOverrun(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	f.requestBreak(t, "a1", "10:00", 12)

	res := f.endBreak(t, "a1", "10:40")
	assert.Equal(t, 40, res.ActualDuration)
	assert.True(t, res.Overrun)
	assert.Equal(t, model.BreakCompleted, res.Break.Status)
	require.NotNil(t, res.Break.ActualDuration)
	assert.Equal(t, 40, *res.Break.ActualDuration)
	assert.ElementsMatch(t, []string{model.RuleMaxDurationExceeded, model.RuleRequestedExceeded}, res.Break.ViolatedRules)

	logs, err := f.svc.ListActivity(f.ctx, model.ActivityFilter{AgentID: "a1", Type: model.ActivityBreakEnd})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, true, logs[0].Metadata["overrun"])
	assert.Contains(t, logs[0].Action, "40 min")
}

func TestEndBreakWithoutBreak(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")

	f.setTime("10:00")
	_, err := f.svc.EndBreak(f.ctx, "a1")
	e := requireCode(t, err, apperr.ErrNoActiveBreak)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
}

func TestCancelBreak(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	res := f.requestBreak(t, "a1", "10:00", 20)

	_, err := f.svc.CancelBreak(f.ctx, "intruder", res.Break.ID)
	requireCode(t, err, apperr.ErrBreakRequestNotFound)

	b, err := f.svc.CancelBreak(f.ctx, "a1", res.Break.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BreakCancelled, b.Status)

	_, err = f.svc.CancelBreak(f.ctx, "a1", res.Break.ID)
	e := requireCode(t, err, apperr.ErrNotCancellable)
	assert.Equal(t, apperr.KindInvalidTransition, e.Kind)

	active := f.requestBreak(t, "a1", "10:30", 12)
	_, err = f.svc.CancelBreak(f.ctx, "a1", active.Break.ID)
	requireCode(t, err, apperr.ErrNotCancellable)

	require.Len(t, f.notify.decided, 1)
	assert.Equal(t, model.BreakCancelled, f.notify.decided[0].Status)
}

func TestStartBreakStates(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	pending := f.requestBreak(t, "a1", "10:00", 20)

	f.setTime("10:01")
	_, err := f.svc.StartBreak(f.ctx, "a1", pending.Break.ID)
	requireCode(t, err, apperr.ErrBreakNotApproved)

	_, err = f.svc.RejectBreak(f.ctx, pending.Break.ID, "sup", "queue is long")
	require.NoError(t, err)
	_, err = f.svc.StartBreak(f.ctx, "a1", pending.Break.ID)
	requireCode(t, err, apperr.ErrBreakRejected)

	active := f.requestBreak(t, "a1", "10:30", 12)
	_, err = f.svc.StartBreak(f.ctx, "a1", active.Break.ID)
	requireCode(t, err, apperr.ErrBreakAlreadyActive)

	_, err = f.svc.StartBreak(f.ctx, "a1", "missing")
	requireCode(t, err, apperr.ErrBreakRequestNotFound)
}

func TestOneActiveBreakPerSession(t *testing.T) {
	f := newFixture(t)
	in := f.checkIn(t, "a1", "09:00")
	f.requestBreak(t, "a1", "10:00", 12)
	f.endBreak(t, "a1", "10:12")
	f.requestBreak(t, "a1", "11:45", 12)

	active, err := f.store.ListSessionBreaks(f.ctx, in.Session.ID, model.BreakActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
