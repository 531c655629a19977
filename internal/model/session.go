package model

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionOnBreak    SessionStatus = "on_break"
	SessionCompleted  SessionStatus = "completed"
	SessionIncomplete SessionStatus = "incomplete"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionActive:  {SessionOnBreak, SessionCompleted, SessionIncomplete},
	SessionOnBreak: {SessionActive, SessionIncomplete},
}

// Open reports whether the session still accepts agent actions.
func (s SessionStatus) Open() bool {
	return s == SessionActive || s == SessionOnBreak
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, to := range sessionTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type CheckInStatus string

const (
	CheckInOnTime CheckInStatus = "on_time"
	CheckInLate   CheckInStatus = "late"
	CheckInEarly  CheckInStatus = "early"
)

type AgentSession struct {
	ID                string        `bson:"_id" json:"id"`
	AgentID           string        `bson:"agent_id" json:"agent_id"`
	DepartmentID      string        `bson:"department_id,omitempty" json:"department_id,omitempty"`
	ShiftID           string        `bson:"shift_id" json:"shift_id"`
	Date              string        `bson:"date" json:"date"` // YYYY-MM-DD
	CheckIn           time.Time     `bson:"check_in" json:"check_in"`
	CheckOut          *time.Time    `bson:"check_out,omitempty" json:"check_out"`
	CheckInIP         string        `bson:"check_in_ip,omitempty" json:"check_in_ip,omitempty"`
	CheckInLocation   string        `bson:"check_in_location,omitempty" json:"check_in_location,omitempty"`
	CheckOutIP        string        `bson:"check_out_ip,omitempty" json:"check_out_ip,omitempty"`
	CheckOutLocation  string        `bson:"check_out_location,omitempty" json:"check_out_location,omitempty"`
	CheckInStatus     CheckInStatus `bson:"check_in_status" json:"check_in_status"`
	LateMinutes       int           `bson:"late_minutes" json:"late_minutes"`
	TotalWorkMinutes  int           `bson:"total_work_minutes" json:"total_work_minutes"`
	TotalBreakMinutes int           `bson:"total_break_minutes" json:"total_break_minutes"`
	OvertimeMinutes   int           `bson:"overtime_minutes" json:"overtime_minutes"`
	Status            SessionStatus `bson:"status" json:"status"`
	CreatedAt         time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `bson:"updated_at" json:"updated_at"`
}

// TransitionError reports a state change the state machine does not allow.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

// Transition moves the session to next, rejecting illegal moves.
func (s *AgentSession) Transition(next SessionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "session", From: string(s.Status), To: string(next)}
	}
	s.Status = next
	return nil
}

// ElapsedMinutes is the time since check-in, up to check-out when set.
func (s *AgentSession) ElapsedMinutes(now time.Time) int {
	end := now
	if s.CheckOut != nil {
		end = *s.CheckOut
	}
	return MinutesBetween(s.CheckIn, end)
}
