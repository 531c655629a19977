// Package seed loads shift and break policy definitions from YAML and writes
// them to the store.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/store"
)

// File is the policies file layout.
type File struct {
	Shifts   []*model.Shift       `yaml:"shifts"`
	Policies []*model.BreakPolicy `yaml:"policies"`
	Agents   []Agent              `yaml:"agents"`
}

// Agent places an agent in a department. Check-ins that arrive without a
// department, such as chat button clicks, use it to resolve the shift.
type Agent struct {
	ID           string `yaml:"id"`
	DepartmentID string `yaml:"department_id"`
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policies file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a policies document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode policies file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate reports every invalid shift and policy at once.
func (f *File) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	shifts := make(map[string]bool, len(f.Shifts))
	for i, s := range f.Shifts {
		name := fmt.Sprintf("shifts[%d]", i)
		if s.ID == "" {
			add("%s: id is required", name)
		} else {
			name = fmt.Sprintf("shift %q", s.ID)
			if shifts[s.ID] {
				add("%s: duplicate id", name)
			}
			shifts[s.ID] = true
		}
		if !s.StartTime.Valid() || !s.EndTime.Valid() {
			add("%s: start_time and end_time must be HH:MM", name)
		}
		if s.GracePeriodMinutes < 0 {
			add("%s: grace_period_minutes must not be negative", name)
		}
		if s.LateCheckInLimitMinutes != nil && *s.LateCheckInLimitMinutes < s.GracePeriodMinutes {
			add("%s: late_check_in_limit_minutes must be at least the grace period", name)
		}
		if s.MaxOvertimeMinutes < 0 {
			add("%s: max_overtime_minutes must not be negative", name)
		}
		switch s.Scope {
		case model.AssignAll:
		case model.AssignDepartment:
			if len(s.DepartmentIDs) == 0 {
				add("%s: department scope needs department_ids", name)
			}
		case model.AssignSpecific:
			if len(s.AgentIDs) == 0 {
				add("%s: specific scope needs agent_ids", name)
			}
		default:
			add("%s: scope %q must be all, department or specific", name, s.Scope)
		}
	}

	policies := make(map[string]bool, len(f.Policies))
	covered := make(map[string]string, len(f.Policies))
	for i, p := range f.Policies {
		name := fmt.Sprintf("policies[%d]", i)
		if p.ID == "" {
			add("%s: id is required", name)
		} else {
			name = fmt.Sprintf("policy %q", p.ID)
			if policies[p.ID] {
				add("%s: duplicate id", name)
			}
			policies[p.ID] = true
		}
		if !shifts[p.ShiftID] {
			add("%s: unknown shift_id %q", name, p.ShiftID)
		} else if other, ok := covered[p.ShiftID]; ok {
			add("%s: shift %q already has policy %q", name, p.ShiftID, other)
		} else {
			covered[p.ShiftID] = p.ID
		}
		if p.MinDuration <= 0 {
			add("%s: min_duration must be positive", name)
		}
		if p.MaxDuration < p.MinDuration {
			add("%s: max_duration must be at least min_duration", name)
		}
		if p.AutoApproveLimit < 0 {
			add("%s: auto_approve_limit must not be negative", name)
		}
		if p.MaxBreaksPerDay <= 0 {
			add("%s: max_breaks_per_day must be positive", name)
		}
		if p.CooldownMinutes < 0 {
			add("%s: cooldown_minutes must not be negative", name)
		}
		if len(p.AllowedBreakTypes) == 0 {
			add("%s: allowed_break_types must not be empty", name)
		}
		for _, t := range p.AllowedBreakTypes {
			if !t.Valid() {
				add("%s: unknown break type %q", name, t)
			}
		}
		if (p.PreferredStart == nil) != (p.PreferredEnd == nil) {
			add("%s: preferred_start and preferred_end go together", name)
		}
	}

	agents := make(map[string]bool, len(f.Agents))
	for i, a := range f.Agents {
		if a.ID == "" {
			add("agents[%d]: id is required", i)
			continue
		}
		if agents[a.ID] {
			add("agent %q: duplicate id", a.ID)
		}
		agents[a.ID] = true
		if a.DepartmentID == "" {
			add("agent %q: department_id is required", a.ID)
		}
	}
	return errs.ErrorOrNil()
}

// Apply upserts every shift, policy and agent in one transaction. An agent's
// current status is left as it is.
func Apply(ctx context.Context, st store.Store, f *File) error {
	return st.WithTx(ctx, func(ctx context.Context) error {
		for _, s := range f.Shifts {
			if err := st.UpsertShift(ctx, s); err != nil {
				return fmt.Errorf("upsert shift %s: %w", s.ID, err)
			}
		}
		for _, p := range f.Policies {
			if err := st.UpsertPolicy(ctx, p); err != nil {
				return fmt.Errorf("upsert policy %s: %w", p.ID, err)
			}
		}
		for _, a := range f.Agents {
			agent, err := st.GetAgent(ctx, a.ID)
			if err != nil {
				return fmt.Errorf("get agent %s: %w", a.ID, err)
			}
			if agent == nil {
				agent = &model.Agent{ID: a.ID, CurrentStatus: model.AgentOffline, UpdatedAt: time.Now()}
			}
			agent.DepartmentID = a.DepartmentID
			if err := st.SetAgentStatus(ctx, agent); err != nil {
				return fmt.Errorf("upsert agent %s: %w", a.ID, err)
			}
		}
		return nil
	})
}
