package model

import "time"

type BreakStatus string

const (
	BreakPending   BreakStatus = "pending"
	BreakApproved  BreakStatus = "approved"
	BreakRejected  BreakStatus = "rejected"
	BreakActive    BreakStatus = "active"
	BreakCompleted BreakStatus = "completed"
	BreakCancelled BreakStatus = "cancelled"
)

var breakTransitions = map[BreakStatus][]BreakStatus{
	BreakPending:  {BreakApproved, BreakRejected, BreakCancelled},
	BreakApproved: {BreakActive, BreakCancelled},
	BreakActive:   {BreakCompleted},
}

func (s BreakStatus) CanTransitionTo(next BreakStatus) bool {
	for _, to := range breakTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// CountsTowardLimit reports whether a break in this status uses up one of the daily breaks.
func (s BreakStatus) CountsTowardLimit() bool {
	return s == BreakApproved || s == BreakActive || s == BreakCompleted
}

// Outstanding reports whether the request is waiting to become an active break.
func (s BreakStatus) Outstanding() bool {
	return s == BreakPending || s == BreakApproved
}

// Rule names recorded in BreakRequest.ViolatedRules.
const (
	RuleAutoApproveLimit       = "auto_approve_limit"
	RuleOutsidePreferredWindow = "outside_preferred_window"
	RuleMaxDurationExceeded    = "max_duration_exceeded"
	RuleRequestedExceeded      = "requested_duration_exceeded"
)

type BreakRequest struct {
	ID                string      `bson:"_id" json:"id"`
	SessionID         string      `bson:"session_id" json:"session_id"`
	AgentID           string      `bson:"agent_id" json:"agent_id"`
	DepartmentID      string      `bson:"department_id,omitempty" json:"department_id,omitempty"`
	PolicyID          string      `bson:"policy_id" json:"policy_id"`
	Date              string      `bson:"date" json:"date"`
	Type              BreakType   `bson:"type" json:"type"`
	Reason            string      `bson:"reason" json:"reason"`
	RequestedDuration int         `bson:"requested_duration" json:"requested_duration"`
	ActualDuration    *int        `bson:"actual_duration,omitempty" json:"actual_duration"`
	StartTime         *time.Time  `bson:"start_time,omitempty" json:"start_time"`
	EndTime           *time.Time  `bson:"end_time,omitempty" json:"end_time"`
	Status            BreakStatus `bson:"status" json:"status"`
	AutoApproved      bool        `bson:"auto_approved" json:"auto_approved"`
	ReviewedBy        string      `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time  `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	ReviewNotes       string      `bson:"review_notes,omitempty" json:"review_notes,omitempty"`
	RejectReason      string      `bson:"reject_reason,omitempty" json:"reject_reason,omitempty"`
	ViolatedRules     []string    `bson:"violated_rules,omitempty" json:"violated_rules,omitempty"`
	NotifyPostID      string      `bson:"notify_post_id,omitempty" json:"-"`
	CreatedAt         time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `bson:"updated_at" json:"updated_at"`
}

func (b *BreakRequest) Transition(next BreakStatus) error {
	if !b.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "break request", From: string(b.Status), To: string(next)}
	}
	b.Status = next
	return nil
}

func (b *BreakRequest) flag(rule string) {
	for _, r := range b.ViolatedRules {
		if r == rule {
			return
		}
	}
	b.ViolatedRules = append(b.ViolatedRules, rule)
}

// Flag records a rule the request broke without being denied.
func (b *BreakRequest) Flag(rules ...string) {
	for _, r := range rules {
		b.flag(r)
	}
}
