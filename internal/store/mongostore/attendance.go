package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"oktel-timekeeper/internal/model"
)

// sessionDoc adds the "open" flag the partial unique index keys on.
type sessionDoc struct {
	model.AgentSession `bson:",inline"`
	Open               bool `bson:"open"`
}

func toDoc(s *model.AgentSession) *sessionDoc {
	return &sessionDoc{AgentSession: *s, Open: s.Status.Open()}
}

func statusIn[T ~string](statuses []T) bson.M {
	in := make(bson.A, len(statuses))
	for i, st := range statuses {
		in[i] = string(st)
	}
	return bson.M{"$in": in}
}

func (s *Store) CreateSession(ctx context.Context, session *model.AgentSession) error {
	return insert(ctx, s.sessions, toDoc(session), "agent session")
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.AgentSession, error) {
	doc, err := findOne[sessionDoc](ctx, s.sessions, bson.M{"_id": id}, "agent session")
	if doc == nil || err != nil {
		return nil, err
	}
	return &doc.AgentSession, nil
}

func (s *Store) FindLatestSession(ctx context.Context, agentID string) (*model.AgentSession, error) {
	doc, err := findOne[sessionDoc](ctx, s.sessions,
		bson.M{"agent_id": agentID}, "agent session",
		options.FindOne().SetSort(bson.D{{Key: "check_in", Value: -1}}))
	if doc == nil || err != nil {
		return nil, err
	}
	return &doc.AgentSession, nil
}

func (s *Store) FindOpenSession(ctx context.Context, agentID string) (*model.AgentSession, error) {
	doc, err := findOne[sessionDoc](ctx, s.sessions,
		bson.M{"agent_id": agentID, "open": true}, "agent session",
		options.FindOne().SetSort(bson.D{{Key: "check_in", Value: -1}}))
	if doc == nil || err != nil {
		return nil, err
	}
	return &doc.AgentSession, nil
}

func (s *Store) UpdateSession(ctx context.Context, session *model.AgentSession, expected model.SessionStatus) error {
	return replaceIf(ctx, s.sessions, session.ID, string(expected), toDoc(session), "agent session")
}

func (s *Store) CreateBreak(ctx context.Context, b *model.BreakRequest) error {
	return insert(ctx, s.breaks, b, "break request")
}

func (s *Store) GetBreak(ctx context.Context, id string) (*model.BreakRequest, error) {
	return findOne[model.BreakRequest](ctx, s.breaks, bson.M{"_id": id}, "break request")
}

func (s *Store) UpdateBreak(ctx context.Context, b *model.BreakRequest, expected model.BreakStatus) error {
	return replaceIf(ctx, s.breaks, b.ID, string(expected), b, "break request")
}

func (s *Store) FindActiveBreak(ctx context.Context, agentID string) (*model.BreakRequest, error) {
	return findOne[model.BreakRequest](ctx, s.breaks,
		bson.M{"agent_id": agentID, "status": model.BreakActive}, "break request",
		options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}}))
}

func (s *Store) ListSessionBreaks(ctx context.Context, sessionID string, statuses ...model.BreakStatus) ([]*model.BreakRequest, error) {
	filter := bson.M{"session_id": sessionID}
	if len(statuses) > 0 {
		filter["status"] = statusIn(statuses)
	}
	return findAll[model.BreakRequest](ctx, s.breaks, filter, "break requests",
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *Store) CountBreaks(ctx context.Context, agentID, date string, statuses ...model.BreakStatus) (int, error) {
	filter := bson.M{"agent_id": agentID, "date": date}
	if len(statuses) > 0 {
		filter["status"] = statusIn(statuses)
	}
	n, err := s.breaks.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count break requests: %w", err)
	}
	return int(n), nil
}

func (s *Store) LastBreakEnd(ctx context.Context, agentID, date string) (*time.Time, error) {
	b, err := findOne[model.BreakRequest](ctx, s.breaks,
		bson.M{"agent_id": agentID, "date": date, "status": model.BreakCompleted, "end_time": bson.M{"$ne": nil}},
		"break request",
		options.FindOne().SetSort(bson.D{{Key: "end_time", Value: -1}}))
	if b == nil || err != nil {
		return nil, err
	}
	return b.EndTime, nil
}

func (s *Store) ListPendingBreaks(ctx context.Context, filter model.PendingFilter) ([]*model.BreakRequest, error) {
	f := bson.M{"status": model.BreakPending}
	if filter.DepartmentID != "" {
		f["department_id"] = filter.DepartmentID
	}
	if filter.AgentID != "" {
		f["agent_id"] = filter.AgentID
	}
	return findAll[model.BreakRequest](ctx, s.breaks, f, "pending break requests",
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *Store) AppendActivity(ctx context.Context, entry *model.ActivityLog) error {
	return insert(ctx, s.activity, entry, "activity log")
}

func (s *Store) ListActivity(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityLog, error) {
	f := bson.M{}
	if filter.AgentID != "" {
		f["agent_id"] = filter.AgentID
	}
	if filter.SessionID != "" {
		f["session_id"] = filter.SessionID
	}
	if filter.Type != "" {
		f["type"] = filter.Type
	}
	if filter.Since != nil {
		f["timestamp"] = bson.M{"$gte": *filter.Since}
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return findAll[model.ActivityLog](ctx, s.activity, f, "activity logs", opts)
}
