// Package service implements the attendance engine: check-in and check-out,
// break requests with automatic or supervisor approval, and the audit trail.
//
// Every operation runs as one store transaction. Notifications and metrics
// are emitted only after the transaction commits.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/i18n"
	"oktel-timekeeper/internal/metrics"
	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/policy"
	"oktel-timekeeper/internal/store"
)

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 500
)

// Notifier tells supervisors and agents about break requests.
type Notifier interface {
	// BreakPending announces a request waiting for review and returns an
	// identifier of the announcement that later updates can refer to.
	BreakPending(ctx context.Context, b *model.BreakRequest) (string, error)
	// BreakDecided reports an approval, rejection or cancellation.
	BreakDecided(ctx context.Context, b *model.BreakRequest) error
}

type nopNotifier struct{}

func (nopNotifier) BreakPending(context.Context, *model.BreakRequest) (string, error) { return "", nil }
func (nopNotifier) BreakDecided(context.Context, *model.BreakRequest) error         { return nil }

type AttendanceService struct {
	store   store.Store
	engine  *policy.Engine
	clock   clock.PassiveClock
	loc     *time.Location
	notify  Notifier
	metrics *metrics.Metrics
	log     *slog.Logger
}

type Option func(*AttendanceService)

func WithClock(c clock.PassiveClock) Option {
	return func(s *AttendanceService) { s.clock = c }
}

// WithLocation sets the time zone shift times are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(s *AttendanceService) { s.loc = loc }
}

func WithNotifier(n Notifier) Option {
	return func(s *AttendanceService) { s.notify = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AttendanceService) { s.metrics = m }
}

func WithPolicyEngine(e *policy.Engine) Option {
	return func(s *AttendanceService) { s.engine = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *AttendanceService) { s.log = l }
}

func NewAttendanceService(st store.Store, opts ...Option) *AttendanceService {
	s := &AttendanceService{
		store:  st,
		engine: policy.Default(),
		clock:  clock.RealClock{},
		loc:    time.Local,
		notify: nopNotifier{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "attendance")
	return s
}

func (s *AttendanceService) now() time.Time {
	return s.clock.Now().In(s.loc).Truncate(time.Second)
}

func newID() string {
	return uuid.NewString()
}

// updateSession writes sess if it is still in prev.
func (s *AttendanceService) updateSession(ctx context.Context, sess *model.AgentSession, prev model.SessionStatus, now time.Time) error {
	sess.UpdatedAt = now
	err := s.store.UpdateSession(ctx, sess, prev)
	if errors.Is(err, store.ErrStale) {
		return apperr.ErrConcurrentUpdate.With(map[string]any{"sessionId": sess.ID})
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// updateBreak writes b if it is still in prev.
func (s *AttendanceService) updateBreak(ctx context.Context, b *model.BreakRequest, prev model.BreakStatus, now time.Time) error {
	b.UpdatedAt = now
	err := s.store.UpdateBreak(ctx, b, prev)
	if errors.Is(err, store.ErrStale) {
		return apperr.ErrConcurrentUpdate.With(map[string]any{"breakRequestId": b.ID})
	}
	if err != nil {
		return fmt.Errorf("update break request: %w", err)
	}
	return nil
}

// workingStatus is the agent projection for a session that is not on break.
func workingStatus(sess *model.AgentSession) model.AgentStatus {
	if sess.CheckInStatus == model.CheckInLate {
		return model.AgentLate
	}
	return model.AgentActive
}

func (s *AttendanceService) setAgentStatus(ctx context.Context, sess *model.AgentSession, status model.AgentStatus, now time.Time) error {
	err := s.store.SetAgentStatus(ctx, &model.Agent{
		ID:            sess.AgentID,
		DepartmentID:  sess.DepartmentID,
		CurrentStatus: status,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("set agent status: %w", err)
	}
	return nil
}

// appendActivity writes an audit entry. meta is stored as-is and also feeds
// the action text template, together with the agent ID.
func (s *AttendanceService) appendActivity(ctx context.Context, now time.Time, agentID, sessionID string, typ model.ActivityType, meta map[string]any) error {
	data := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		data[k] = v
	}
	data["agent"] = agentID

	entry := &model.ActivityLog{
		ID:        newID(),
		AgentID:   agentID,
		SessionID: sessionID,
		Type:      typ,
		Action:    i18n.Default("activity."+string(typ), data),
		Metadata:  meta,
		Timestamp: now,
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		return fmt.Errorf("append %s activity: %w", typ, err)
	}
	return nil
}

// notifyPending announces b and remembers the announcement on the request.
func (s *AttendanceService) notifyPending(ctx context.Context, b *model.BreakRequest) {
	postID, err := s.notify.BreakPending(ctx, b)
	if err != nil {
		s.log.Warn("notify pending break failed", "break_id", b.ID, "error", err)
		return
	}
	if postID == "" {
		return
	}
	b.NotifyPostID = postID
	if err := s.store.UpdateBreak(ctx, b, b.Status); err != nil {
		// A reviewer may already have acted; the post is updated on their path.
		s.log.Warn("save notification post id failed", "break_id", b.ID, "error", err)
	}
}

func (s *AttendanceService) notifyDecided(ctx context.Context, breaks ...*model.BreakRequest) {
	for _, b := range breaks {
		if err := s.notify.BreakDecided(ctx, b); err != nil {
			s.log.Warn("notify break decision failed", "break_id", b.ID, "status", b.Status, "error", err)
		}
	}
}

// PendingRequests is the supervisor review queue, oldest first.
func (s *AttendanceService) PendingRequests(ctx context.Context, filter model.PendingFilter) ([]*model.BreakRequest, error) {
	list, err := s.store.ListPendingBreaks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list pending breaks: %w", err)
	}
	return list, nil
}

// ListActivity reads the audit log, newest first.
func (s *AttendanceService) ListActivity(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultActivityLimit
	case filter.Limit > maxActivityLimit:
		filter.Limit = maxActivityLimit
	}
	list, err := s.store.ListActivity(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return list, nil
}
