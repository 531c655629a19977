package sqlstore

import (
	"time"

	"oktel-timekeeper/internal/model"
)

func todPtr(v *int) *model.TimeOfDay {
	if v == nil {
		return nil
	}
	t := model.TimeOfDay(*v)
	return &t
}

func intPtr(t *model.TimeOfDay) *int {
	if t == nil {
		return nil
	}
	v := int(*t)
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func shiftToRow(s *model.Shift) *shiftRow {
	return &shiftRow{
		ID:                      s.ID,
		Name:                    s.Name,
		StartTime:               int(s.StartTime),
		EndTime:                 int(s.EndTime),
		GracePeriodMinutes:      s.GracePeriodMinutes,
		LateCheckInLimitMinutes: s.LateCheckInLimitMinutes,
		AllowOvertime:           s.AllowOvertime,
		MaxOvertimeMinutes:      s.MaxOvertimeMinutes,
		Scope:                   string(s.Scope),
		DepartmentIDs:           s.DepartmentIDs,
		AgentIDs:                s.AgentIDs,
	}
}

func shiftFromRow(r *shiftRow) *model.Shift {
	return &model.Shift{
		ID:                      r.ID,
		Name:                    r.Name,
		StartTime:               model.TimeOfDay(r.StartTime),
		EndTime:                 model.TimeOfDay(r.EndTime),
		GracePeriodMinutes:      r.GracePeriodMinutes,
		LateCheckInLimitMinutes: r.LateCheckInLimitMinutes,
		AllowOvertime:           r.AllowOvertime,
		MaxOvertimeMinutes:      r.MaxOvertimeMinutes,
		Scope:                   model.AssignmentScope(r.Scope),
		DepartmentIDs:           r.DepartmentIDs,
		AgentIDs:                r.AgentIDs,
	}
}

func policyToRow(p *model.BreakPolicy) *policyRow {
	types := make([]string, len(p.AllowedBreakTypes))
	for i, t := range p.AllowedBreakTypes {
		types[i] = string(t)
	}
	return &policyRow{
		ID:                  p.ID,
		ShiftID:             p.ShiftID,
		MaxBreaksPerDay:     p.MaxBreaksPerDay,
		MinDuration:         p.MinDuration,
		MaxDuration:         p.MaxDuration,
		AutoApproveLimit:    p.AutoApproveLimit,
		CooldownMinutes:     p.CooldownMinutes,
		AllowedBreakTypes:   types,
		PreferredStart:      intPtr(p.PreferredStart),
		PreferredEnd:        intPtr(p.PreferredEnd),
		BlockDuringMeetings: p.BlockDuringMeetings,
	}
}

func policyFromRow(r *policyRow) *model.BreakPolicy {
	types := make([]model.BreakType, len(r.AllowedBreakTypes))
	for i, t := range r.AllowedBreakTypes {
		types[i] = model.BreakType(t)
	}
	return &model.BreakPolicy{
		ID:                  r.ID,
		ShiftID:             r.ShiftID,
		MaxBreaksPerDay:     r.MaxBreaksPerDay,
		MinDuration:         r.MinDuration,
		MaxDuration:         r.MaxDuration,
		AutoApproveLimit:    r.AutoApproveLimit,
		CooldownMinutes:     r.CooldownMinutes,
		AllowedBreakTypes:   types,
		PreferredStart:      todPtr(r.PreferredStart),
		PreferredEnd:        todPtr(r.PreferredEnd),
		BlockDuringMeetings: r.BlockDuringMeetings,
	}
}

func sessionToRow(s *model.AgentSession) *sessionRow {
	return &sessionRow{
		ID:                s.ID,
		AgentID:           s.AgentID,
		DepartmentID:      s.DepartmentID,
		ShiftID:           s.ShiftID,
		Date:              s.Date,
		CheckIn:           s.CheckIn.UTC(),
		CheckOut:          utcPtr(s.CheckOut),
		CheckInIP:         s.CheckInIP,
		CheckInLocation:   s.CheckInLocation,
		CheckOutIP:        s.CheckOutIP,
		CheckOutLocation:  s.CheckOutLocation,
		CheckInStatus:     string(s.CheckInStatus),
		LateMinutes:       s.LateMinutes,
		TotalWorkMinutes:  s.TotalWorkMinutes,
		TotalBreakMinutes: s.TotalBreakMinutes,
		OvertimeMinutes:   s.OvertimeMinutes,
		Status:            string(s.Status),
		CreatedAt:         s.CreatedAt.UTC(),
		UpdatedAt:         s.UpdatedAt.UTC(),
	}
}

func sessionFromRow(r *sessionRow) *model.AgentSession {
	return &model.AgentSession{
		ID:                r.ID,
		AgentID:           r.AgentID,
		DepartmentID:      r.DepartmentID,
		ShiftID:           r.ShiftID,
		Date:              r.Date,
		CheckIn:           r.CheckIn,
		CheckOut:          r.CheckOut,
		CheckInIP:         r.CheckInIP,
		CheckInLocation:   r.CheckInLocation,
		CheckOutIP:        r.CheckOutIP,
		CheckOutLocation:  r.CheckOutLocation,
		CheckInStatus:     model.CheckInStatus(r.CheckInStatus),
		LateMinutes:       r.LateMinutes,
		TotalWorkMinutes:  r.TotalWorkMinutes,
		TotalBreakMinutes: r.TotalBreakMinutes,
		OvertimeMinutes:   r.OvertimeMinutes,
		Status:            model.SessionStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func breakToRow(b *model.BreakRequest) *breakRow {
	return &breakRow{
		ID:                b.ID,
		SessionID:         b.SessionID,
		AgentID:           b.AgentID,
		DepartmentID:      b.DepartmentID,
		PolicyID:          b.PolicyID,
		Date:              b.Date,
		Type:              string(b.Type),
		Reason:            b.Reason,
		RequestedDuration: b.RequestedDuration,
		ActualDuration:    b.ActualDuration,
		StartTime:         utcPtr(b.StartTime),
		EndTime:           utcPtr(b.EndTime),
		Status:            string(b.Status),
		AutoApproved:      b.AutoApproved,
		ReviewedBy:        b.ReviewedBy,
		ReviewedAt:        utcPtr(b.ReviewedAt),
		ReviewNotes:       b.ReviewNotes,
		RejectReason:      b.RejectReason,
		ViolatedRules:     b.ViolatedRules,
		NotifyPostID:      b.NotifyPostID,
		CreatedAt:         b.CreatedAt.UTC(),
		UpdatedAt:         b.UpdatedAt.UTC(),
	}
}

func breakFromRow(r *breakRow) *model.BreakRequest {
	return &model.BreakRequest{
		ID:                r.ID,
		SessionID:         r.SessionID,
		AgentID:           r.AgentID,
		DepartmentID:      r.DepartmentID,
		PolicyID:          r.PolicyID,
		Date:              r.Date,
		Type:              model.BreakType(r.Type),
		Reason:            r.Reason,
		RequestedDuration: r.RequestedDuration,
		ActualDuration:    r.ActualDuration,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		Status:            model.BreakStatus(r.Status),
		AutoApproved:      r.AutoApproved,
		ReviewedBy:        r.ReviewedBy,
		ReviewedAt:        r.ReviewedAt,
		ReviewNotes:       r.ReviewNotes,
		RejectReason:      r.RejectReason,
		ViolatedRules:     r.ViolatedRules,
		NotifyPostID:      r.NotifyPostID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func activityToRow(a *model.ActivityLog) *activityRow {
	return &activityRow{
		ID:        a.ID,
		AgentID:   a.AgentID,
		SessionID: a.SessionID,
		Type:      string(a.Type),
		Action:    a.Action,
		Metadata:  a.Metadata,
		Timestamp: a.Timestamp.UTC(),
	}
}

func activityFromRow(r *activityRow) *model.ActivityLog {
	return &model.ActivityLog{
		ID:        r.ID,
		AgentID:   r.AgentID,
		SessionID: r.SessionID,
		Type:      model.ActivityType(r.Type),
		Action:    r.Action,
		Metadata:  r.Metadata,
		Timestamp: r.Timestamp,
	}
}
