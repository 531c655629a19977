package model

import "time"

type ActivityType string

const (
	ActivityCheckIn           ActivityType = "check_in"
	ActivityCheckOut          ActivityType = "check_out"
	ActivityBreakRequest      ActivityType = "break_request"
	ActivityBreakStart        ActivityType = "break_start"
	ActivityBreakEnd          ActivityType = "break_end"
	ActivityBreakApproved     ActivityType = "break_approved"
	ActivityBreakRejected     ActivityType = "break_rejected"
	ActivityBreakCancelled    ActivityType = "break_cancelled"
	ActivitySessionIncomplete ActivityType = "session_incomplete"
)

// ActivityLog is an audit entry. Entries are only ever inserted.
type ActivityLog struct {
	ID        string         `bson:"_id" json:"id"`
	AgentID   string         `bson:"agent_id" json:"agent_id"`
	SessionID string         `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Type      ActivityType   `bson:"type" json:"type"`
	Action    string         `bson:"action" json:"action"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
}

type ActivityFilter struct {
	AgentID   string
	SessionID string
	Type      ActivityType
	Since     *time.Time
	Limit     int
}
