package model

import "time"

type AgentStatus string

const (
	AgentOffline AgentStatus = "offline"
	AgentActive  AgentStatus = "active"
	AgentLate    AgentStatus = "late"
	AgentOnBreak AgentStatus = "on_break"
)

// Agent caches the agent's current status for dashboards. It is written in
// the same transaction as the session or break change it mirrors.
type Agent struct {
	ID            string      `bson:"_id" json:"id"`
	DepartmentID  string      `bson:"department_id,omitempty" json:"department_id,omitempty"`
	CurrentStatus AgentStatus `bson:"current_status" json:"current_status"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"updated_at"`
}

// Principal is the already-authenticated caller.
type Principal struct {
	UserID       string
	DepartmentID string
}

type PendingFilter struct {
	DepartmentID string
	AgentID      string
}
