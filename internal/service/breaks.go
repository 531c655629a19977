package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/metrics"
	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/policy"
)

type BreakInput struct {
	Type     model.BreakType `json:"type"`
	Duration int             `json:"duration"`
	Reason   string          `json:"reason"`
}

type BreakResult struct {
	Break            *model.BreakRequest `json:"break_request"`
	RequiresApproval bool                `json:"requires_approval"`
}

type EndBreakResult struct {
	Break          *model.BreakRequest `json:"break_request"`
	ActualDuration int                 `json:"actual_duration"`
	Overrun        bool                `json:"overrun"`
}

// RequestBreak validates a break request against the shift's policy. A
// request within the auto-approve limit starts right away; anything else
// waits for a supervisor.
func (s *AttendanceService) RequestBreak(ctx context.Context, agentID string, in BreakInput) (*BreakResult, error) {
	in.Reason = strings.TrimSpace(in.Reason)

	now := s.now()
	var res *BreakResult
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		sess, err := s.store.FindOpenSession(ctx, agentID)
		if err != nil {
			return fmt.Errorf("find open session: %w", err)
		}
		if sess == nil {
			return apperr.ErrNoSessionForBreak.With(map[string]any{"agentId": agentID})
		}
		if sess.Status == model.SessionOnBreak {
			return apperr.ErrAlreadyOnBreak.With(map[string]any{"sessionId": sess.ID})
		}
		if in.Duration <= 0 {
			return apperr.ErrInvalidInput.With(map[string]any{"field": "duration", "value": in.Duration})
		}

		waiting, err := s.store.ListSessionBreaks(ctx, sess.ID, model.BreakPending, model.BreakApproved)
		if err != nil {
			return fmt.Errorf("list outstanding breaks: %w", err)
		}
		if len(waiting) > 0 {
			return apperr.ErrBreakAlreadyPending.With(map[string]any{
				"breakRequestId": waiting[0].ID,
				"status":         string(waiting[0].Status),
			})
		}

		pol, err := s.store.GetPolicyByShift(ctx, sess.ShiftID)
		if err != nil {
			return fmt.Errorf("get break policy: %w", err)
		}
		if pol == nil {
			return apperr.ErrNoPolicy.With(map[string]any{"shiftId": sess.ShiftID})
		}

		taken, err := s.store.CountBreaks(ctx, agentID, sess.Date,
			model.BreakApproved, model.BreakActive, model.BreakCompleted)
		if err != nil {
			return fmt.Errorf("count breaks: %w", err)
		}
		lastEnd, err := s.store.LastBreakEnd(ctx, agentID, sess.Date)
		if err != nil {
			return fmt.Errorf("last break end: %w", err)
		}

		decision, err := s.engine.Evaluate(pol, policy.Request{
			Type:         in.Type,
			Duration:     in.Duration,
			Now:          now,
			BreaksToday:  taken,
			LastBreakEnd: lastEnd,
		})
		if err != nil {
			return err
		}

		b := &model.BreakRequest{
			ID:                newID(),
			SessionID:         sess.ID,
			AgentID:           agentID,
			DepartmentID:      sess.DepartmentID,
			PolicyID:          pol.ID,
			Date:              sess.Date,
			Type:              in.Type,
			Reason:            in.Reason,
			RequestedDuration: in.Duration,
			Status:            model.BreakPending,
			AutoApproved:      decision.AutoApproved,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		b.Flag(decision.Flags...)
		if decision.AutoApproved {
			b.Status = model.BreakApproved
			b.ReviewedBy = systemActor
			b.ReviewedAt = &now
		}
		if err := s.store.CreateBreak(ctx, b); err != nil {
			return fmt.Errorf("create break request: %w", err)
		}
		if err := s.appendActivity(ctx, now, agentID, sess.ID, model.ActivityBreakRequest, map[string]any{
			"breakRequestId": b.ID,
			"type":           string(b.Type),
			"duration":       b.RequestedDuration,
			"reason":         b.Reason,
			"autoApproved":   b.AutoApproved,
			"violatedRules":  b.ViolatedRules,
		}); err != nil {
			return err
		}
		if decision.AutoApproved {
			if err := s.startBreak(ctx, sess, b, now); err != nil {
				return err
			}
		}
		res = &BreakResult{Break: b, RequiresApproval: !decision.AutoApproved}
		return nil
	})
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.KindPolicyViolation {
			s.metrics.BreakRequest(metrics.OutcomeDenied, e.Code)
			s.log.Info("break request denied", "agent_id", agentID, "code", e.Code, "context", e.Context)
		}
		return nil, err
	}

	if res.RequiresApproval {
		s.metrics.BreakRequest(metrics.OutcomePending, "")
		s.notifyPending(ctx, res.Break)
	} else {
		s.metrics.BreakRequest(metrics.OutcomeAutoApproved, "")
	}
	s.log.Info("break requested", "agent_id", agentID, "break_id", res.Break.ID,
		"duration", in.Duration, "status", res.Break.Status)
	return res, nil
}

// startBreak moves an approved request and its active session onto the break.
func (s *AttendanceService) startBreak(ctx context.Context, sess *model.AgentSession, b *model.BreakRequest, now time.Time) error {
	prevBreak := b.Status
	if err := b.Transition(model.BreakActive); err != nil {
		return apperr.ErrBreakNotApproved.With(map[string]any{"status": string(prevBreak)})
	}
	b.StartTime = &now
	if err := s.updateBreak(ctx, b, prevBreak, now); err != nil {
		return err
	}

	prevSession := sess.Status
	if err := sess.Transition(model.SessionOnBreak); err != nil {
		return apperr.ErrSessionNotActive.With(map[string]any{
			"sessionId": sess.ID,
			"status":    string(prevSession),
		})
	}
	if err := s.updateSession(ctx, sess, prevSession, now); err != nil {
		return err
	}
	if err := s.setAgentStatus(ctx, sess, model.AgentOnBreak, now); err != nil {
		return err
	}
	return s.appendActivity(ctx, now, b.AgentID, sess.ID, model.ActivityBreakStart, map[string]any{
		"breakRequestId": b.ID,
		"type":           string(b.Type),
		"duration":       b.RequestedDuration,
	})
}

// ownBreak loads a request and hides other agents' requests.
func (s *AttendanceService) ownBreak(ctx context.Context, agentID, breakID string) (*model.BreakRequest, error) {
	b, err := s.store.GetBreak(ctx, breakID)
	if err != nil {
		return nil, fmt.Errorf("get break request: %w", err)
	}
	if b == nil || b.AgentID != agentID {
		return nil, apperr.ErrBreakRequestNotFound.With(map[string]any{"breakRequestId": breakID})
	}
	return b, nil
}

// StartBreak starts an approved break on the agent's request.
func (s *AttendanceService) StartBreak(ctx context.Context, agentID, breakID string) (*model.BreakRequest, error) {
	now := s.now()
	var b *model.BreakRequest
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.ownBreak(ctx, agentID, breakID)
		if err != nil {
			return err
		}
		status := map[string]any{"breakRequestId": b.ID, "status": string(b.Status)}
		switch b.Status {
		case model.BreakApproved:
		case model.BreakRejected:
			return apperr.ErrBreakRejected.With(status)
		case model.BreakActive:
			return apperr.ErrBreakAlreadyActive.With(status)
		default:
			return apperr.ErrBreakNotApproved.With(status)
		}

		sess, err := s.store.GetSession(ctx, b.SessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess == nil {
			return apperr.ErrSessionNotFound.With(map[string]any{"sessionId": b.SessionID})
		}
		switch sess.Status {
		case model.SessionActive:
		case model.SessionOnBreak:
			return apperr.ErrAlreadyOnBreak.With(map[string]any{"sessionId": sess.ID})
		default:
			return apperr.ErrSessionClosed.With(map[string]any{"sessionId": sess.ID, "status": string(sess.Status)})
		}
		return s.startBreak(ctx, sess, b, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("break started", "agent_id", agentID, "break_id", b.ID)
	return b, nil
}

// EndBreak completes the agent's running break and adds it to the session's
// break total. Breaks are never clamped; overruns are flagged on the request.
func (s *AttendanceService) EndBreak(ctx context.Context, agentID string) (*EndBreakResult, error) {
	now := s.now()
	var res *EndBreakResult
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.store.FindActiveBreak(ctx, agentID)
		if err != nil {
			return fmt.Errorf("find active break: %w", err)
		}
		if b == nil {
			return apperr.ErrNoActiveBreak.With(map[string]any{"agentId": agentID})
		}
		sess, err := s.store.GetSession(ctx, b.SessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess == nil {
			return apperr.ErrSessionNotFound.With(map[string]any{"sessionId": b.SessionID})
		}
		pol, err := s.store.GetPolicyByShift(ctx, sess.ShiftID)
		if err != nil {
			return fmt.Errorf("get break policy: %w", err)
		}

		actual := model.MinutesBetween(*b.StartTime, now)
		b.ActualDuration = &actual
		b.EndTime = &now
		if pol != nil && actual > pol.MaxDuration {
			b.Flag(model.RuleMaxDurationExceeded)
		}
		if actual > b.RequestedDuration {
			b.Flag(model.RuleRequestedExceeded)
		}
		overrun := actual > b.RequestedDuration || (pol != nil && actual > pol.MaxDuration)
		if err := b.Transition(model.BreakCompleted); err != nil {
			return apperr.ErrNoActiveBreak.Wrap(err)
		}
		if err := s.updateBreak(ctx, b, model.BreakActive, now); err != nil {
			return err
		}

		sess.TotalBreakMinutes += actual
		if err := sess.Transition(model.SessionActive); err != nil {
			return apperr.ErrSessionClosed.Wrap(err)
		}
		if err := s.updateSession(ctx, sess, model.SessionOnBreak, now); err != nil {
			return err
		}
		if err := s.setAgentStatus(ctx, sess, workingStatus(sess), now); err != nil {
			return err
		}
		if err := s.appendActivity(ctx, now, agentID, sess.ID, model.ActivityBreakEnd, map[string]any{
			"breakRequestId":    b.ID,
			"actualDuration":    actual,
			"requestedDuration": b.RequestedDuration,
			"overrun":           overrun,
		}); err != nil {
			return err
		}
		res = &EndBreakResult{Break: b, ActualDuration: actual, Overrun: overrun}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, rule := range res.Break.ViolatedRules {
		if rule == model.RuleMaxDurationExceeded || rule == model.RuleRequestedExceeded {
			s.metrics.Overrun(rule)
		}
	}
	s.log.Info("break ended", "agent_id", agentID, "break_id", res.Break.ID,
		"actual_duration", res.ActualDuration, "overrun", res.Overrun)
	return res, nil
}

// CancelBreak withdraws a request that has not started yet.
func (s *AttendanceService) CancelBreak(ctx context.Context, agentID, breakID string) (*model.BreakRequest, error) {
	now := s.now()
	var b *model.BreakRequest
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.ownBreak(ctx, agentID, breakID)
		if err != nil {
			return err
		}
		if !b.Status.Outstanding() {
			return apperr.ErrNotCancellable.With(map[string]any{
				"breakRequestId": b.ID,
				"status":         string(b.Status),
			})
		}
		return s.cancel(ctx, b, "cancelled by agent", now)
	})
	if err != nil {
		return nil, err
	}
	s.notifyDecided(ctx, b)
	s.log.Info("break cancelled", "agent_id", agentID, "break_id", b.ID)
	return b, nil
}
