package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/store"
)

// systemActor marks changes the engine makes on its own.
const systemActor = "system"

type CheckInInput struct {
	IP       string
	Location string
}

type CheckInResult struct {
	Session     *model.AgentSession `json:"session"`
	Status      model.CheckInStatus `json:"status"`
	LateMinutes int                 `json:"late_minutes"`
}

type CheckOutSummary struct {
	WorkMinutes     int  `json:"work_minutes"`
	BreakMinutes    int  `json:"break_minutes"`
	OvertimeMinutes int  `json:"overtime_minutes"`
	OvertimeFlagged bool `json:"overtime_flagged"`
}

type CheckOutResult struct {
	Session *model.AgentSession `json:"session"`
	Summary CheckOutSummary     `json:"summary"`
}

// StatusView is a live snapshot of the agent's day.
type StatusView struct {
	AgentID        string              `json:"agent_id"`
	Session        *model.AgentSession `json:"session"`
	ElapsedMinutes int                 `json:"elapsed_minutes"`
	WorkMinutes    int                 `json:"work_minutes"`
	BreakMinutes   int                 `json:"break_minutes"`
	ActiveBreak    *model.BreakRequest `json:"active_break"`
	PendingBreak   *model.BreakRequest `json:"pending_break"`
	AsOf           time.Time           `json:"as_of"`
}

// resolveShift picks the most specific shift assigned to the agent.
func (s *AttendanceService) resolveShift(ctx context.Context, agentID, departmentID string) (*model.Shift, error) {
	shifts, err := s.store.ListShifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	var (
		best     *model.Shift
		bestRank int
	)
	for _, sh := range shifts {
		if rank, ok := sh.Matches(agentID, departmentID); ok && rank > bestRank {
			best, bestRank = sh, rank
		}
	}
	if best == nil {
		return nil, apperr.ErrNoShiftAssigned.With(map[string]any{"agentId": agentID})
	}
	return best, nil
}

// shiftStart is the start of the shift occurrence a check-in at now belongs
// to. A start more than twelve hours ahead means the shift began yesterday.
func shiftStart(sh *model.Shift, now time.Time) time.Time {
	start := sh.StartTime.On(now)
	if start.Sub(now) > 12*time.Hour {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// arrival classifies a check-in against the shift start.
func arrival(sh *model.Shift, start, now time.Time) (model.CheckInStatus, int) {
	if now.Before(start) {
		return model.CheckInEarly, 0
	}
	mins := model.MinutesBetween(start, now)
	if mins <= sh.GracePeriodMinutes {
		return model.CheckInOnTime, mins
	}
	return model.CheckInLate, mins - sh.GracePeriodMinutes
}

// CheckIn opens today's work session for the agent.
func (s *AttendanceService) CheckIn(ctx context.Context, p model.Principal, in CheckInInput) (*CheckInResult, error) {
	now := s.now()
	var (
		res    *CheckInResult
		closed []*model.BreakRequest
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if p.DepartmentID == "" {
			// Chat callbacks only carry the user; fall back to the roster.
			agent, err := s.store.GetAgent(ctx, p.UserID)
			if err != nil {
				return fmt.Errorf("get agent: %w", err)
			}
			if agent != nil {
				p.DepartmentID = agent.DepartmentID
			}
		}

		shift, err := s.resolveShift(ctx, p.UserID, p.DepartmentID)
		if err != nil {
			return err
		}
		start := shiftStart(shift, now)
		date := start.Format(time.DateOnly)

		open, err := s.store.FindOpenSession(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("find open session: %w", err)
		}
		if open != nil {
			if open.Date == date {
				return apperr.ErrAlreadyCheckedIn.With(map[string]any{
					"sessionId": open.ID,
					"date":      open.Date,
				})
			}
			// Left open on an earlier day.
			closed, err = s.closeIncomplete(ctx, open, systemActor, "superseded by a new check-in", now)
			if err != nil {
				return err
			}
		}

		status, late := arrival(shift, start, now)
		if status == model.CheckInLate && late > shift.LateLimitMinutes() {
			return apperr.ErrTooLateToCheckIn.With(map[string]any{
				"lateMinutes":  late,
				"limitMinutes": shift.LateLimitMinutes(),
			})
		}

		sess := &model.AgentSession{
			ID:              newID(),
			AgentID:         p.UserID,
			DepartmentID:    p.DepartmentID,
			ShiftID:         shift.ID,
			Date:            date,
			CheckIn:         now,
			CheckInIP:       in.IP,
			CheckInLocation: in.Location,
			CheckInStatus:   status,
			LateMinutes:     late,
			Status:          model.SessionActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.CreateSession(ctx, sess); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.ErrAlreadyCheckedIn.With(map[string]any{"date": date})
			}
			return fmt.Errorf("create session: %w", err)
		}
		if err := s.setAgentStatus(ctx, sess, workingStatus(sess), now); err != nil {
			return err
		}
		if err := s.appendActivity(ctx, now, sess.AgentID, sess.ID, model.ActivityCheckIn, map[string]any{
			"shiftId":     shift.ID,
			"status":      string(status),
			"lateMinutes": late,
			"ip":          in.IP,
			"location":    in.Location,
		}); err != nil {
			return err
		}
		res = &CheckInResult{Session: sess, Status: status, LateMinutes: late}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CheckIn(string(res.Status))
	s.notifyDecided(ctx, closed...)
	s.log.Info("checked in", "agent_id", p.UserID, "session_id", res.Session.ID,
		"status", res.Status, "late_minutes", res.LateMinutes)
	return res, nil
}

// CheckOut closes the agent's open session and settles its totals.
// Requests still waiting to start are cancelled.
func (s *AttendanceService) CheckOut(ctx context.Context, agentID string, in CheckInInput) (*CheckOutResult, error) {
	now := s.now()
	var (
		res       *CheckOutResult
		cancelled []*model.BreakRequest
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		sess, err := s.store.FindOpenSession(ctx, agentID)
		if err != nil {
			return fmt.Errorf("find open session: %w", err)
		}
		if sess == nil {
			latest, err := s.closedSession(ctx, agentID, now)
			if err != nil {
				return err
			}
			if latest != nil {
				return apperr.ErrAlreadyCheckedOut.With(map[string]any{
					"sessionId": latest.ID,
					"status":    string(latest.Status),
				})
			}
			return apperr.ErrNoActiveSession.With(map[string]any{"agentId": agentID})
		}
		if sess.Status == model.SessionOnBreak {
			return apperr.ErrCannotCheckOutOnBreak.With(map[string]any{"sessionId": sess.ID})
		}

		shift, err := s.store.GetShift(ctx, sess.ShiftID)
		if err != nil {
			return fmt.Errorf("get shift: %w", err)
		}
		if shift == nil {
			return apperr.ErrNoShiftAssigned.With(map[string]any{"shiftId": sess.ShiftID})
		}

		cancelled, err = s.cancelOutstanding(ctx, sess, "checked out", now)
		if err != nil {
			return err
		}

		summary := settle(sess, shift, now)
		sess.CheckOut = &now
		sess.CheckOutIP = in.IP
		sess.CheckOutLocation = in.Location
		sess.TotalWorkMinutes = summary.WorkMinutes
		sess.OvertimeMinutes = summary.OvertimeMinutes
		prev := sess.Status
		if err := sess.Transition(model.SessionCompleted); err != nil {
			return apperr.ErrSessionClosed.Wrap(err)
		}
		if err := s.updateSession(ctx, sess, prev, now); err != nil {
			return err
		}
		if err := s.setAgentStatus(ctx, sess, model.AgentOffline, now); err != nil {
			return err
		}
		if err := s.appendActivity(ctx, now, agentID, sess.ID, model.ActivityCheckOut, map[string]any{
			"workMinutes":     summary.WorkMinutes,
			"breakMinutes":    summary.BreakMinutes,
			"overtimeMinutes": summary.OvertimeMinutes,
			"overtimeFlagged": summary.OvertimeFlagged,
			"ip":              in.IP,
			"location":        in.Location,
		}); err != nil {
			return err
		}
		res = &CheckOutResult{Session: sess, Summary: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CheckOut(res.Summary.OvertimeFlagged)
	s.notifyDecided(ctx, cancelled...)
	s.log.Info("checked out", "agent_id", agentID, "session_id", res.Session.ID,
		"work_minutes", res.Summary.WorkMinutes, "overtime_minutes", res.Summary.OvertimeMinutes)
	return res, nil
}

// closedSession returns the agent's latest session if it belongs to the shift
// occurrence under way at now. Sessions are dated by shift start, so an
// overnight session stays current after midnight.
func (s *AttendanceService) closedSession(ctx context.Context, agentID string, now time.Time) (*model.AgentSession, error) {
	latest, err := s.store.FindLatestSession(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("find latest session: %w", err)
	}
	if latest == nil {
		return nil, nil
	}
	shift, err := s.store.GetShift(ctx, latest.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("get shift: %w", err)
	}
	date := now.Format(time.DateOnly)
	if shift != nil {
		date = shiftStart(shift, now).Format(time.DateOnly)
	}
	if latest.Date != date {
		return nil, nil
	}
	return latest, nil
}

// settle computes the check-out totals of sess at now.
func settle(sess *model.AgentSession, shift *model.Shift, now time.Time) CheckOutSummary {
	work := max(0, model.MinutesBetween(sess.CheckIn, now)-sess.TotalBreakMinutes)
	overtime := max(0, work-shift.DurationMinutes())
	flagged := overtime > 0 && (!shift.AllowOvertime ||
		(shift.MaxOvertimeMinutes > 0 && overtime > shift.MaxOvertimeMinutes))
	return CheckOutSummary{
		WorkMinutes:     work,
		BreakMinutes:    sess.TotalBreakMinutes,
		OvertimeMinutes: overtime,
		OvertimeFlagged: flagged,
	}
}

// Status returns the agent's open session, or today's last one, with totals
// computed against now. Work minutes stay frozen while on break.
func (s *AttendanceService) Status(ctx context.Context, agentID string) (*StatusView, error) {
	now := s.now()
	view := &StatusView{AgentID: agentID, AsOf: now}

	sess, err := s.store.FindOpenSession(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	if sess == nil {
		sess, err = s.closedSession(ctx, agentID, now)
		if err != nil {
			return nil, err
		}
	}
	if sess == nil {
		return view, nil
	}
	view.Session = sess

	if !sess.Status.Open() {
		view.ElapsedMinutes = sess.ElapsedMinutes(now)
		view.WorkMinutes = sess.TotalWorkMinutes
		view.BreakMinutes = sess.TotalBreakMinutes
		return view, nil
	}

	breaks, err := s.store.ListSessionBreaks(ctx, sess.ID,
		model.BreakPending, model.BreakApproved, model.BreakActive)
	if err != nil {
		return nil, fmt.Errorf("list session breaks: %w", err)
	}
	for _, b := range breaks {
		if b.Status == model.BreakActive {
			view.ActiveBreak = b
		} else {
			view.PendingBreak = b
		}
	}

	view.ElapsedMinutes = sess.ElapsedMinutes(now)
	view.BreakMinutes = sess.TotalBreakMinutes
	view.WorkMinutes = view.ElapsedMinutes - sess.TotalBreakMinutes
	if ab := view.ActiveBreak; ab != nil && ab.StartTime != nil {
		view.BreakMinutes += model.MinutesBetween(*ab.StartTime, now)
		view.WorkMinutes = model.MinutesBetween(sess.CheckIn, *ab.StartTime) - sess.TotalBreakMinutes
	}
	view.WorkMinutes = max(0, view.WorkMinutes)
	return view, nil
}

// MarkIncomplete is the administrative override that closes a session the
// agent never checked out of.
func (s *AttendanceService) MarkIncomplete(ctx context.Context, sessionID, adminID, reason string) (*model.AgentSession, error) {
	now := s.now()
	var (
		sess   *model.AgentSession
		closed []*model.BreakRequest
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.store.GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess == nil {
			return apperr.ErrSessionNotFound.With(map[string]any{"sessionId": sessionID})
		}
		if !sess.Status.Open() {
			return apperr.ErrSessionClosed.With(map[string]any{
				"sessionId": sess.ID,
				"status":    string(sess.Status),
			})
		}
		closed, err = s.closeIncomplete(ctx, sess, adminID, reason, now)
		if err != nil {
			return err
		}
		return s.setAgentStatus(ctx, sess, model.AgentOffline, now)
	})
	if err != nil {
		return nil, err
	}
	s.notifyDecided(ctx, closed...)
	s.log.Info("session marked incomplete", "session_id", sessionID, "by", adminID)
	return sess, nil
}

// closeIncomplete ends a running break, cancels waiting requests and moves
// sess to incomplete. It returns the cancelled requests.
func (s *AttendanceService) closeIncomplete(ctx context.Context, sess *model.AgentSession, by, reason string, now time.Time) ([]*model.BreakRequest, error) {
	active, err := s.store.ListSessionBreaks(ctx, sess.ID, model.BreakActive)
	if err != nil {
		return nil, fmt.Errorf("list active breaks: %w", err)
	}
	for _, b := range active {
		actual := model.MinutesBetween(*b.StartTime, now)
		b.ActualDuration = &actual
		b.EndTime = &now
		if err := b.Transition(model.BreakCompleted); err != nil {
			return nil, apperr.ErrConcurrentUpdate.Wrap(err)
		}
		if err := s.updateBreak(ctx, b, model.BreakActive, now); err != nil {
			return nil, err
		}
		sess.TotalBreakMinutes += actual
	}

	cancelled, err := s.cancelOutstanding(ctx, sess, reason, now)
	if err != nil {
		return nil, err
	}

	prev := sess.Status
	if err := sess.Transition(model.SessionIncomplete); err != nil {
		return nil, apperr.ErrSessionClosed.Wrap(err)
	}
	if err := s.updateSession(ctx, sess, prev, now); err != nil {
		return nil, err
	}
	if err := s.appendActivity(ctx, now, sess.AgentID, sess.ID, model.ActivitySessionIncomplete, map[string]any{
		"by":           by,
		"reason":       reason,
		"previous":     string(prev),
		"breakMinutes": sess.TotalBreakMinutes,
	}); err != nil {
		return nil, err
	}
	return cancelled, nil
}

// cancelOutstanding cancels the session's pending and approved requests.
func (s *AttendanceService) cancelOutstanding(ctx context.Context, sess *model.AgentSession, reason string, now time.Time) ([]*model.BreakRequest, error) {
	waiting, err := s.store.ListSessionBreaks(ctx, sess.ID, model.BreakPending, model.BreakApproved)
	if err != nil {
		return nil, fmt.Errorf("list outstanding breaks: %w", err)
	}
	for _, b := range waiting {
		if err := s.cancel(ctx, b, reason, now); err != nil {
			return nil, err
		}
	}
	return waiting, nil
}

func (s *AttendanceService) cancel(ctx context.Context, b *model.BreakRequest, reason string, now time.Time) error {
	prev := b.Status
	if err := b.Transition(model.BreakCancelled); err != nil {
		return apperr.ErrNotCancellable.With(map[string]any{"status": string(prev)})
	}
	if err := s.updateBreak(ctx, b, prev, now); err != nil {
		return err
	}
	return s.appendActivity(ctx, now, b.AgentID, b.SessionID, model.ActivityBreakCancelled, map[string]any{
		"breakRequestId": b.ID,
		"previous":       string(prev),
		"reason":         reason,
	})
}
