package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"oktel-timekeeper/internal/model"
)

func (s *Store) ListShifts(ctx context.Context) ([]*model.Shift, error) {
	return findAll[model.Shift](ctx, s.shifts, bson.M{}, "shifts",
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) GetShift(ctx context.Context, id string) (*model.Shift, error) {
	return findOne[model.Shift](ctx, s.shifts, bson.M{"_id": id}, "shift")
}

func (s *Store) GetPolicyByShift(ctx context.Context, shiftID string) (*model.BreakPolicy, error) {
	return findOne[model.BreakPolicy](ctx, s.policies, bson.M{"shift_id": shiftID}, "break policy")
}

func (s *Store) UpsertShift(ctx context.Context, shift *model.Shift) error {
	return upsert(ctx, s.shifts, shift.ID, shift, "shift")
}

func (s *Store) UpsertPolicy(ctx context.Context, policy *model.BreakPolicy) error {
	return upsert(ctx, s.policies, policy.ID, policy, "break policy")
}

func (s *Store) SetAgentStatus(ctx context.Context, agent *model.Agent) error {
	return upsert(ctx, s.agents, agent.ID, agent, "agent")
}

func (s *Store) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return findOne[model.Agent](ctx, s.agents, bson.M{"_id": id}, "agent")
}
