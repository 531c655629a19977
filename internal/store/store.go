// Package store defines persistence for shifts, sessions, break requests and
// the activity log. Implementations live in the mongostore and sqlstore
// subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"oktel-timekeeper/internal/model"
)

var (
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale is returned when a conditional update finds the record no
	// longer in the expected status.
	ErrStale = errors.New("record changed concurrently")
)

// Store is the single authoritative store. Lookups return nil, nil when
// nothing matches. Every method called with a context obtained inside
// WithTx participates in that transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	ListShifts(ctx context.Context) ([]*model.Shift, error)
	GetShift(ctx context.Context, id string) (*model.Shift, error)
	GetPolicyByShift(ctx context.Context, shiftID string) (*model.BreakPolicy, error)
	UpsertShift(ctx context.Context, shift *model.Shift) error
	UpsertPolicy(ctx context.Context, policy *model.BreakPolicy) error

	SetAgentStatus(ctx context.Context, agent *model.Agent) error
	GetAgent(ctx context.Context, id string) (*model.Agent, error)

	// CreateSession fails with ErrDuplicate if the agent already has an
	// open session for the date.
	CreateSession(ctx context.Context, s *model.AgentSession) error
	GetSession(ctx context.Context, id string) (*model.AgentSession, error)
	// FindLatestSession returns the agent's most recent session of any date.
	FindLatestSession(ctx context.Context, agentID string) (*model.AgentSession, error)
	// FindOpenSession returns the agent's active or on_break session, whatever its date.
	FindOpenSession(ctx context.Context, agentID string) (*model.AgentSession, error)
	// UpdateSession replaces s if its stored status still equals expected,
	// otherwise it fails with ErrStale.
	UpdateSession(ctx context.Context, s *model.AgentSession, expected model.SessionStatus) error

	CreateBreak(ctx context.Context, b *model.BreakRequest) error
	GetBreak(ctx context.Context, id string) (*model.BreakRequest, error)
	// UpdateBreak replaces b if its stored status still equals expected,
	// otherwise it fails with ErrStale.
	UpdateBreak(ctx context.Context, b *model.BreakRequest, expected model.BreakStatus) error
	FindActiveBreak(ctx context.Context, agentID string) (*model.BreakRequest, error)
	ListSessionBreaks(ctx context.Context, sessionID string, statuses ...model.BreakStatus) ([]*model.BreakRequest, error)
	// CountBreaks counts the agent's breaks on date in any of statuses.
	CountBreaks(ctx context.Context, agentID, date string, statuses ...model.BreakStatus) (int, error)
	// LastBreakEnd returns the latest end time of the agent's completed breaks on date.
	LastBreakEnd(ctx context.Context, agentID, date string) (*time.Time, error)
	ListPendingBreaks(ctx context.Context, filter model.PendingFilter) ([]*model.BreakRequest, error)

	AppendActivity(ctx context.Context, entry *model.ActivityLog) error
	ListActivity(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, error)

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
