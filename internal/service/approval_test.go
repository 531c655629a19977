package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
)

func TestApproveStartsBreak(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	req := f.requestBreak(t, "a1", "10:00", 20)

	f.setTime("10:05")
	b, err := f.svc.ApproveBreak(f.ctx, req.Break.ID, "sup", "ok, keep it short")
	require.NoError(t, err)
	assert.Equal(t, model.BreakActive, b.Status)
	assert.Equal(t, "sup", b.ReviewedBy)
	assert.Equal(t, "ok, keep it short", b.ReviewNotes)
	require.NotNil(t, b.ReviewedAt)
	require.NotNil(t, b.StartTime)
	assert.True(t, b.StartTime.Equal(at("10:05")))
	assert.False(t, b.AutoApproved)

	sess, err := f.store.GetSession(f.ctx, b.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionOnBreak, sess.Status)
	assert.Equal(t, model.AgentOnBreak, f.agentStatus(t, "a1"))

	assert.Equal(t, []model.ActivityType{
		model.ActivityCheckIn,
		model.ActivityBreakRequest,
		model.ActivityBreakApproved,
		model.ActivityBreakStart,
	}, f.activityTypes(t, "a1"))

	require.Len(t, f.notify.decided, 1)
	assert.Equal(t, model.BreakActive, f.notify.decided[0].Status)

	ended := f.endBreak(t, "a1", "10:25")
	assert.Equal(t, 20, ended.ActualDuration)
	assert.False(t, ended.Overrun)
}

func TestReviewOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	req := f.requestBreak(t, "a1", "10:00", 20)

	f.setTime("10:05")
	_, err := f.svc.ApproveBreak(f.ctx, req.Break.ID, "sup", "")
	require.NoError(t, err)

	_, err = f.svc.ApproveBreak(f.ctx, req.Break.ID, "sup", "")
	e := requireCode(t, err, apperr.ErrBreakNotPending)
	assert.Equal(t, apperr.KindInvalidTransition, e.Kind)
	assert.Equal(t, string(model.BreakActive), e.Context["status"])

	_, err = f.svc.RejectBreak(f.ctx, req.Break.ID, "sup", "")
	requireCode(t, err, apperr.ErrBreakNotPending)

	_, err = f.svc.ApproveBreak(f.ctx, "missing", "sup", "")
	requireCode(t, err, apperr.ErrBreakRequestNotFound)
}

func TestRejectIsFinal(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	req := f.requestBreak(t, "a1", "10:00", 20)

	f.setTime("10:02")
	b, err := f.svc.RejectBreak(f.ctx, req.Break.ID, "sup", "too busy")
	require.NoError(t, err)
	assert.Equal(t, model.BreakRejected, b.Status)
	assert.Equal(t, "too busy", b.RejectReason)
	assert.Equal(t, "sup", b.ReviewedBy)
	assert.Equal(t, model.AgentActive, f.agentStatus(t, "a1"))

	_, err = f.svc.RejectBreak(f.ctx, req.Break.ID, "sup", "again")
	requireCode(t, err, apperr.ErrBreakNotPending)
	_, err = f.svc.ApproveBreak(f.ctx, req.Break.ID, "sup", "")
	requireCode(t, err, apperr.ErrBreakNotPending)

	// Rejected requests do not use up the daily allowance.
	n, err := f.store.CountBreaks(f.ctx, "a1", "2026-03-02", model.BreakApproved, model.BreakActive, model.BreakCompleted)
	require.NoError(t, err)
	assert.Zero(t, n)

	logs, err := f.svc.ListActivity(f.ctx, model.ActivityFilter{AgentID: "a1", Type: model.ActivityBreakRejected})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "too busy", logs[0].Metadata["reason"])
	assert.Equal(t, "@sup rejected the break request of @a1", logs[0].Action)
}

func TestConcurrentApproveOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	req := f.requestBreak(t, "a1", "10:00", 20)
	f.setTime("10:05")

	const reviewers = 4
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins, lost int
	)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApproveBreak(f.ctx, req.Break.ID, "sup", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrBreakNotPending):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, reviewers-1, lost)

	in, err := f.store.FindOpenSession(f.ctx, "a1")
	require.NoError(t, err)
	active, err := f.store.ListSessionBreaks(f.ctx, in.ID, model.BreakActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestPendingRequestsQueue(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	f.checkIn(t, "a2", "09:00")
	r1 := f.requestBreak(t, "a1", "10:00", 20)
	r2 := f.requestBreak(t, "a2", "10:01", 25)

	all, err := f.svc.PendingRequests(f.ctx, model.PendingFilter{DepartmentID: "support"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r1.Break.ID, all[0].ID)
	assert.Equal(t, r2.Break.ID, all[1].ID)

	mine, err := f.svc.PendingRequests(f.ctx, model.PendingFilter{AgentID: "a2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r2.Break.ID, mine[0].ID)

	_, err = f.svc.RejectBreak(f.ctx, r1.Break.ID, "sup", "")
	require.NoError(t, err)
	left, err := f.svc.PendingRequests(f.ctx, model.PendingFilter{})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestListActivityLimits(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "a1", "09:00")
	f.requestBreak(t, "a1", "10:00", 12)
	f.endBreak(t, "a1", "10:10")

	logs, err := f.svc.ListActivity(f.ctx, model.ActivityFilter{AgentID: "a1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ActivityBreakEnd, logs[0].Type)

	logs, err = f.svc.ListActivity(f.ctx, model.ActivityFilter{AgentID: "a1", Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}
