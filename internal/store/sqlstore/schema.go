package sqlstore

import "time"

type shiftRow struct {
	ID                      string `gorm:"primaryKey"`
	Name                    string `gorm:"not null;default:''"`
	StartTime               int    `gorm:"not null"`
	EndTime                 int    `gorm:"not null"`
	GracePeriodMinutes      int    `gorm:"not null;default:0"`
	LateCheckInLimitMinutes *int
	AllowOvertime           bool     `gorm:"not null;default:false"`
	MaxOvertimeMinutes      int      `gorm:"not null;default:0"`
	Scope                   string   `gorm:"not null;default:'all';check:scope IN ('all','department','specific')"`
	DepartmentIDs           []string `gorm:"serializer:json"`
	AgentIDs                []string `gorm:"serializer:json"`
}

func (shiftRow) TableName() string { return "shifts" }

type policyRow struct {
	ID                  string   `gorm:"primaryKey"`
	ShiftID             string   `gorm:"not null;uniqueIndex"`
	MaxBreaksPerDay     int      `gorm:"not null"`
	MinDuration         int      `gorm:"not null"`
	MaxDuration         int      `gorm:"not null"`
	AutoApproveLimit    int      `gorm:"not null"`
	CooldownMinutes     int      `gorm:"not null;default:0"`
	AllowedBreakTypes   []string `gorm:"serializer:json"`
	PreferredStart      *int
	PreferredEnd        *int
	BlockDuringMeetings bool `gorm:"not null;default:false"`
}

func (policyRow) TableName() string { return "break_policies" }

type agentRow struct {
	ID            string    `gorm:"primaryKey"`
	DepartmentID  string    `gorm:"not null;default:''"`
	CurrentStatus string    `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (agentRow) TableName() string { return "agents" }

type sessionRow struct {
	ID                string    `gorm:"primaryKey"`
	AgentID           string    `gorm:"not null;index:idx_session_agent_checkin,priority:1"`
	DepartmentID      string    `gorm:"not null;default:''"`
	ShiftID           string    `gorm:"not null"`
	Date              string    `gorm:"not null;index"`
	CheckIn           time.Time `gorm:"not null;index:idx_session_agent_checkin,priority:2"`
	CheckOut          *time.Time
	CheckInIP         string    `gorm:"not null;default:''"`
	CheckInLocation   string    `gorm:"not null;default:''"`
	CheckOutIP        string    `gorm:"not null;default:''"`
	CheckOutLocation  string    `gorm:"not null;default:''"`
	CheckInStatus     string    `gorm:"not null;check:check_in_status IN ('on_time','late','early')"`
	LateMinutes       int       `gorm:"not null;default:0"`
	TotalWorkMinutes  int       `gorm:"not null;default:0"`
	TotalBreakMinutes int       `gorm:"not null;default:0"`
	OvertimeMinutes   int       `gorm:"not null;default:0"`
	Status            string    `gorm:"not null;check:status IN ('active','on_break','completed','incomplete')"`
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (sessionRow) TableName() string { return "agent_sessions" }

type breakRow struct {
	ID                string `gorm:"primaryKey"`
	SessionID         string `gorm:"not null;index"`
	AgentID           string `gorm:"not null;index:idx_break_agent_date,priority:1"`
	DepartmentID      string `gorm:"not null;default:''"`
	PolicyID          string `gorm:"not null"`
	Date              string `gorm:"not null;index:idx_break_agent_date,priority:2"`
	Type              string `gorm:"not null"`
	Reason            string `gorm:"not null;default:''"`
	RequestedDuration int    `gorm:"not null"`
	ActualDuration    *int
	StartTime         *time.Time
	EndTime           *time.Time
	Status            string `gorm:"not null;index;check:status IN ('pending','approved','rejected','active','completed','cancelled')"`
	AutoApproved      bool   `gorm:"not null;default:false"`
	ReviewedBy        string `gorm:"not null;default:''"`
	ReviewedAt        *time.Time
	ReviewNotes       string    `gorm:"not null;default:''"`
	RejectReason      string    `gorm:"not null;default:''"`
	ViolatedRules     []string  `gorm:"serializer:json"`
	NotifyPostID      string    `gorm:"not null;default:''"`
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (breakRow) TableName() string { return "break_requests" }

type activityRow struct {
	ID        string         `gorm:"primaryKey"`
	AgentID   string         `gorm:"not null;index"`
	SessionID string         `gorm:"not null;default:'';index"`
	Type      string         `gorm:"not null;index"`
	Action    string         `gorm:"not null"`
	Metadata  map[string]any `gorm:"serializer:json"`
	Timestamp time.Time      `gorm:"not null;index"`
}

func (activityRow) TableName() string { return "activity_logs" }
