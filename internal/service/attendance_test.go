package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/store/sqlstore"
)

// day is the calendar day all tests run on.
var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	return model.MustTimeOfDay(hhmm).On(day)
}

type recordingNotifier struct {
	mu      sync.Mutex
	pending []*model.BreakRequest
	decided []*model.BreakRequest
}

func (n *recordingNotifier) BreakPending(_ context.Context, b *model.BreakRequest) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *b
	n.pending = append(n.pending, &cp)
	return "post-" + b.ID, nil
}

func (n *recordingNotifier) BreakDecided(_ context.Context, b *model.BreakRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *b
	n.decided = append(n.decided, &cp)
	return nil
}

type fixture struct {
	svc    *AttendanceService
	store  *sqlstore.Store
	clock  *testingclock.FakeClock
	notify *recordingNotifier
	ctx    context.Context
}

func dayShift() *model.Shift {
	return &model.Shift{
		ID:                 "day",
		Name:               "Day",
		StartTime:          model.MustTimeOfDay("09:00"),
		EndTime:            model.MustTimeOfDay("17:00"),
		GracePeriodMinutes: 10,
		Scope:              model.AssignAll,
	}
}

func dayPolicy() *model.BreakPolicy {
	return &model.BreakPolicy{
		ID:                "day-policy",
		ShiftID:           "day",
		MaxBreaksPerDay:   2,
		MinDuration:       10,
		MaxDuration:       30,
		AutoApproveLimit:  15,
		CooldownMinutes:   90,
		AllowedBreakTypes: []model.BreakType{model.BreakShort, model.BreakLunch},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlstore.Open(filepath.Join(t.TempDir(), "timekeeper.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close(context.Background()) })

	ctx := context.Background()
	require.NoError(t, st.UpsertShift(ctx, dayShift()))
	require.NoError(t, st.UpsertPolicy(ctx, dayPolicy()))

	fc := testingclock.NewFakeClock(at("08:00"))
	n := &recordingNotifier{}
	svc := NewAttendanceService(st,
		WithClock(fc),
		WithLocation(time.UTC),
		WithNotifier(n),
	)
	return &fixture{svc: svc, store: st, clock: fc, notify: n, ctx: ctx}
}

func (f *fixture) setTime(hhmm string) {
	f.clock.SetTime(at(hhmm))
}

func (f *fixture) checkIn(t *testing.T, agentID, hhmm string) *CheckInResult {
	t.Helper()
	f.setTime(hhmm)
	res, err := f.svc.CheckIn(f.ctx, model.Principal{UserID: agentID, DepartmentID: "support"}, CheckInInput{IP: "10.0.0.1"})
	require.NoError(t, err)
	return res
}

func (f *fixture) requestBreak(t *testing.T, agentID, hhmm string, minutes int) *BreakResult {
	t.Helper()
	f.setTime(hhmm)
	res, err := f.svc.RequestBreak(f.ctx, agentID, BreakInput{Type: model.BreakShort, Duration: minutes})
	require.NoError(t, err)
	return res
}

func (f *fixture) endBreak(t *testing.T, agentID, hhmm string) *EndBreakResult {
	t.Helper()
	f.setTime(hhmm)
	res, err := f.svc.EndBreak(f.ctx, agentID)
	require.NoError(t, err)
	return res
}

func (f *fixture) agentStatus(t *testing.T, agentID string) model.AgentStatus {
	t.Helper()
	a, err := f.store.GetAgent(f.ctx, agentID)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.CurrentStatus
}

func (f *fixture) activityTypes(t *testing.T, agentID string) []model.ActivityType {
	t.Helper()
	logs, err := f.svc.ListActivity(f.ctx, model.ActivityFilter{AgentID: agentID})
	require.NoError(t, err)
	types := make([]model.ActivityType, len(logs))
	for i, l := range logs {
		// newest first; flip to chronological
		types[len(logs)-1-i] = l.Type
	}
	return types
}

// requireCode asserts err is the typed failure want, and returns it.
func requireCode(t *testing.T, err error, want *apperr.Error) *apperr.Error {
	t.Helper()
	require.ErrorIs(t, err, want)
	e, ok := apperr.As(err)
	require.True(t, ok)
	return e
}
