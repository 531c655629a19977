package model

import "slices"

type AssignmentScope string

const (
	AssignAll        AssignmentScope = "all"
	AssignDepartment AssignmentScope = "department"
	AssignSpecific   AssignmentScope = "specific"
)

type BreakType string

const (
	BreakShort     BreakType = "short"
	BreakLunch     BreakType = "lunch"
	BreakEmergency BreakType = "emergency"
)

func (t BreakType) Valid() bool {
	switch t {
	case BreakShort, BreakLunch, BreakEmergency:
		return true
	}
	return false
}

// defaultLateAllowance is added to the grace period when a shift has no explicit check-in limit.
const defaultLateAllowance = 60

type Shift struct {
	ID                      string          `bson:"_id" json:"id" yaml:"id"`
	Name                    string          `bson:"name" json:"name" yaml:"name"`
	StartTime               TimeOfDay       `bson:"start_time" json:"start_time" yaml:"start_time"`
	EndTime                 TimeOfDay       `bson:"end_time" json:"end_time" yaml:"end_time"`
	GracePeriodMinutes      int             `bson:"grace_period_minutes" json:"grace_period_minutes" yaml:"grace_period_minutes"`
	LateCheckInLimitMinutes *int            `bson:"late_check_in_limit_minutes,omitempty" json:"late_check_in_limit_minutes,omitempty" yaml:"late_check_in_limit_minutes,omitempty"`
	AllowOvertime           bool            `bson:"allow_overtime" json:"allow_overtime" yaml:"allow_overtime"`
	MaxOvertimeMinutes      int             `bson:"max_overtime_minutes" json:"max_overtime_minutes" yaml:"max_overtime_minutes"`
	Scope                   AssignmentScope `bson:"scope" json:"scope" yaml:"scope"`
	DepartmentIDs           []string        `bson:"department_ids,omitempty" json:"department_ids,omitempty" yaml:"department_ids,omitempty"`
	AgentIDs                []string        `bson:"agent_ids,omitempty" json:"agent_ids,omitempty" yaml:"agent_ids,omitempty"`
}

// DurationMinutes is the nominal shift length. Shifts ending at or before
// their start time run past midnight.
func (s *Shift) DurationMinutes() int {
	d := int(s.EndTime) - int(s.StartTime)
	if d <= 0 {
		d += minutesPerDay
	}
	return d
}

// LateLimitMinutes is the largest lateness still accepted at check-in.
func (s *Shift) LateLimitMinutes() int {
	if s.LateCheckInLimitMinutes != nil {
		return *s.LateCheckInLimitMinutes
	}
	return s.GracePeriodMinutes + defaultLateAllowance
}

// Matches reports whether the shift applies to the agent and how specific
// the match is. Higher rank wins when several shifts match.
func (s *Shift) Matches(agentID, departmentID string) (rank int, ok bool) {
	switch s.Scope {
	case AssignSpecific:
		if slices.Contains(s.AgentIDs, agentID) {
			return 3, true
		}
	case AssignDepartment:
		if departmentID != "" && slices.Contains(s.DepartmentIDs, departmentID) {
			return 2, true
		}
	case AssignAll:
		return 1, true
	}
	return 0, false
}

type BreakPolicy struct {
	ID                  string      `bson:"_id" json:"id" yaml:"id"`
	ShiftID             string      `bson:"shift_id" json:"shift_id" yaml:"shift_id"`
	MaxBreaksPerDay     int         `bson:"max_breaks_per_day" json:"max_breaks_per_day" yaml:"max_breaks_per_day"`
	MinDuration         int         `bson:"min_duration" json:"min_duration" yaml:"min_duration"`
	MaxDuration         int         `bson:"max_duration" json:"max_duration" yaml:"max_duration"`
	AutoApproveLimit    int         `bson:"auto_approve_limit" json:"auto_approve_limit" yaml:"auto_approve_limit"`
	CooldownMinutes     int         `bson:"cooldown_minutes" json:"cooldown_minutes" yaml:"cooldown_minutes"`
	AllowedBreakTypes   []BreakType `bson:"allowed_break_types" json:"allowed_break_types" yaml:"allowed_break_types"`
	PreferredStart      *TimeOfDay  `bson:"preferred_start,omitempty" json:"preferred_start,omitempty" yaml:"preferred_start,omitempty"`
	PreferredEnd        *TimeOfDay  `bson:"preferred_end,omitempty" json:"preferred_end,omitempty" yaml:"preferred_end,omitempty"`
	BlockDuringMeetings bool        `bson:"block_during_meetings" json:"block_during_meetings" yaml:"block_during_meetings"`
}

func (p *BreakPolicy) Allows(t BreakType) bool {
	return slices.Contains(p.AllowedBreakTypes, t)
}

// InPreferredWindow reports whether t lies inside the preferred window.
// Policies without a window accept any time.
func (p *BreakPolicy) InPreferredWindow(t TimeOfDay) bool {
	if p.PreferredStart == nil || p.PreferredEnd == nil {
		return true
	}
	start, end := *p.PreferredStart, *p.PreferredEnd
	if start <= end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}
