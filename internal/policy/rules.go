package policy

import (
	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
)

type MinDuration struct{}

func (MinDuration) Name() string { return "min_duration" }

func (MinDuration) Check(p *model.BreakPolicy, r Request) *apperr.Error {
	if r.Duration < p.MinDuration {
		return apperr.ErrDurationTooShort.With(map[string]any{
			"rule":      "min_duration",
			"requested": r.Duration,
			"minimum":   p.MinDuration,
		})
	}
	return nil
}

type MaxDuration struct{}

func (MaxDuration) Name() string { return "max_duration" }

func (MaxDuration) Check(p *model.BreakPolicy, r Request) *apperr.Error {
	if r.Duration > p.MaxDuration {
		return apperr.ErrDurationTooLong.With(map[string]any{
			"rule":      "max_duration",
			"requested": r.Duration,
			"maximum":   p.MaxDuration,
		})
	}
	return nil
}

type DailyLimit struct{}

func (DailyLimit) Name() string { return "max_breaks_per_day" }

func (DailyLimit) Check(p *model.BreakPolicy, r Request) *apperr.Error {
	if r.BreaksToday >= p.MaxBreaksPerDay {
		return apperr.ErrMaxBreaksReached.With(map[string]any{
			"rule":  "max_breaks_per_day",
			"taken": r.BreaksToday,
			"limit": p.MaxBreaksPerDay,
		})
	}
	return nil
}

type Cooldown struct{}

func (Cooldown) Name() string { return "cooldown" }

func (Cooldown) Check(p *model.BreakPolicy, r Request) *apperr.Error {
	if r.LastBreakEnd == nil || p.CooldownMinutes <= 0 {
		return nil
	}
	since := model.MinutesBetween(*r.LastBreakEnd, r.Now)
	if since < p.CooldownMinutes {
		return apperr.ErrCooldownActive.With(map[string]any{
			"rule":             "cooldown",
			"cooldownMinutes":  p.CooldownMinutes,
			"elapsedMinutes":   since,
			"remainingMinutes": p.CooldownMinutes - since,
		})
	}
	return nil
}

type AllowedType struct{}

func (AllowedType) Name() string { return "allowed_break_types" }

func (AllowedType) Check(p *model.BreakPolicy, r Request) *apperr.Error {
	if !p.Allows(r.Type) {
		return apperr.ErrBreakTypeNotAllowed.With(map[string]any{
			"rule":      "allowed_break_types",
			"requested": string(r.Type),
			"allowed":   p.AllowedBreakTypes,
		})
	}
	return nil
}

type AutoApproveLimit struct{}

func (AutoApproveLimit) Name() string { return model.RuleAutoApproveLimit }

func (AutoApproveLimit) NeedsReview(p *model.BreakPolicy, r Request) bool {
	return r.Duration > p.AutoApproveLimit
}

type PreferredWindow struct{}

func (PreferredWindow) Name() string { return model.RuleOutsidePreferredWindow }

func (PreferredWindow) NeedsReview(p *model.BreakPolicy, r Request) bool {
	return !p.InPreferredWindow(model.Of(r.Now))
}
