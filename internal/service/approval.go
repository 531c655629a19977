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

// pendingBreak loads a request a supervisor is about to decide on.
func (s *AttendanceService) pendingBreak(ctx context.Context, breakID string) (*model.BreakRequest, error) {
	b, err := s.store.GetBreak(ctx, breakID)
	if err != nil {
		return nil, fmt.Errorf("get break request: %w", err)
	}
	if b == nil {
		return nil, apperr.ErrBreakRequestNotFound.With(map[string]any{"breakRequestId": breakID})
	}
	if b.Status != model.BreakPending {
		return nil, notPending(b)
	}
	return b, nil
}

func notPending(b *model.BreakRequest) error {
	return apperr.ErrBreakNotPending.With(map[string]any{
		"breakRequestId": b.ID,
		"status":         string(b.Status),
	})
}

// review records the reviewer's decision. Losing a race to another
// reviewer surfaces as not pending.
func (s *AttendanceService) review(ctx context.Context, b *model.BreakRequest, next model.BreakStatus, reviewerID string, now time.Time) error {
	if err := b.Transition(next); err != nil {
		return notPending(b)
	}
	b.ReviewedBy = reviewerID
	b.ReviewedAt = &now
	b.UpdatedAt = now
	err := s.store.UpdateBreak(ctx, b, model.BreakPending)
	if errors.Is(err, store.ErrStale) {
		current, gerr := s.store.GetBreak(ctx, b.ID)
		if gerr == nil && current != nil {
			return notPending(current)
		}
		return apperr.ErrBreakNotPending.With(map[string]any{"breakRequestId": b.ID})
	}
	if err != nil {
		return fmt.Errorf("update break request: %w", err)
	}
	return nil
}

// ApproveBreak approves a pending request and starts the break at once.
// The agent's session must still be active; otherwise nothing changes.
func (s *AttendanceService) ApproveBreak(ctx context.Context, breakID, reviewerID, notes string) (*model.BreakRequest, error) {
	now := s.now()
	var b *model.BreakRequest
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.pendingBreak(ctx, breakID)
		if err != nil {
			return err
		}
		sess, err := s.store.GetSession(ctx, b.SessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess == nil || sess.Status != model.SessionActive {
			ctxMap := map[string]any{"sessionId": b.SessionID}
			if sess != nil {
				ctxMap["status"] = string(sess.Status)
			}
			return apperr.ErrSessionNotActive.With(ctxMap)
		}

		b.ReviewNotes = notes
		if err := s.review(ctx, b, model.BreakApproved, reviewerID, now); err != nil {
			return err
		}
		if err := s.appendActivity(ctx, now, b.AgentID, b.SessionID, model.ActivityBreakApproved, map[string]any{
			"breakRequestId": b.ID,
			"reviewer":       reviewerID,
			"notes":          notes,
		}); err != nil {
			return err
		}
		return s.startBreak(ctx, sess, b, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Review(string(model.BreakApproved))
	s.notifyDecided(ctx, b)
	s.log.Info("break approved", "break_id", b.ID, "agent_id", b.AgentID, "reviewer", reviewerID)
	return b, nil
}

// RejectBreak rejects a pending request. Rejection is final.
func (s *AttendanceService) RejectBreak(ctx context.Context, breakID, reviewerID, reason string) (*model.BreakRequest, error) {
	now := s.now()
	var b *model.BreakRequest
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.pendingBreak(ctx, breakID)
		if err != nil {
			return err
		}
		b.RejectReason = reason
		if err := s.review(ctx, b, model.BreakRejected, reviewerID, now); err != nil {
			return err
		}
		return s.appendActivity(ctx, now, b.AgentID, b.SessionID, model.ActivityBreakRejected, map[string]any{
			"breakRequestId": b.ID,
			"reviewer":       reviewerID,
			"reason":         reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Review(string(model.BreakRejected))
	s.notifyDecided(ctx, b)
	s.log.Info("break rejected", "break_id", b.ID, "agent_id", b.AgentID, "reviewer", reviewerID)
	return b, nil
}
