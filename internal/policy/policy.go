// Package policy evaluates break requests against a shift's break policy.
//
// Hard rules deny a request outright and run in a fixed order; the first
// failure wins. Review rules never deny, they only decide whether a
// supervisor has to look at the request before it starts.
package policy

import (
	"time"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
)

// Request is everything the rules need to judge one break request.
type Request struct {
	Type     model.BreakType
	Duration int
	Now      time.Time

	// BreaksToday counts the agent's breaks today that use up the daily limit.
	BreaksToday int
	// LastBreakEnd is when the agent's most recent break ended, if any.
	LastBreakEnd *time.Time
}

// Rule is a hard check. Check returns nil when the request passes.
type Rule interface {
	Name() string
	Check(p *model.BreakPolicy, r Request) *apperr.Error
}

// ReviewRule flags a request that needs supervisor approval.
type ReviewRule interface {
	Name() string
	NeedsReview(p *model.BreakPolicy, r Request) bool
}

// Decision is the outcome of a request that passed every hard rule.
type Decision struct {
	AutoApproved bool
	Flags        []string
}

type Engine struct {
	rules   []Rule
	reviews []ReviewRule
}

// DefaultRules is the standard validation order.
func DefaultRules() []Rule {
	return []Rule{
		MinDuration{},
		MaxDuration{},
		DailyLimit{},
		Cooldown{},
		AllowedType{},
	}
}

func DefaultReviewRules() []ReviewRule {
	return []ReviewRule{
		AutoApproveLimit{},
		PreferredWindow{},
	}
}

func NewEngine(rules []Rule, reviews []ReviewRule) *Engine {
	return &Engine{rules: rules, reviews: reviews}
}

func Default() *Engine {
	return NewEngine(DefaultRules(), DefaultReviewRules())
}

// Evaluate runs the hard rules in order and returns the first violation.
// When all pass, review rules decide auto-approval.
func (e *Engine) Evaluate(p *model.BreakPolicy, r Request) (Decision, error) {
	for _, rule := range e.rules {
		if v := rule.Check(p, r); v != nil {
			return Decision{}, v
		}
	}
	d := Decision{AutoApproved: true}
	for _, rule := range e.reviews {
		if rule.NeedsReview(p, r) {
			d.AutoApproved = false
			d.Flags = append(d.Flags, rule.Name())
		}
	}
	return d, nil
}
