// Package apperr defines the typed failures returned by the attendance engine.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindNotFound
	KindPolicyViolation
	KindInvalidTransition
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPolicyViolation:
		return "policy_violation"
	case KindInvalidTransition:
		return "invalid_transition"
	}
	return "internal"
}

// Error is a recognized failure. Code is stable and machine-readable;
// Context carries the limit and observed values behind the failure.
type Error struct {
	Kind    Kind
	Code    string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Code
	if len(e.Context) > 0 {
		msg = fmt.Sprintf("%s %v", msg, e.Context)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// With returns a copy of e carrying the given context.
func (e *Error) With(kv map[string]any) *Error {
	cp := *e
	cp.Context = kv
	return &cp
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

var (
	ErrAlreadyCheckedIn      = New(KindConflict, "already_checked_in")
	ErrAlreadyCheckedOut     = New(KindConflict, "already_checked_out")
	ErrCannotCheckOutOnBreak = New(KindConflict, "cannot_check_out_on_break")
	ErrAlreadyOnBreak        = New(KindConflict, "already_on_break")
	ErrBreakAlreadyPending   = New(KindConflict, "break_already_pending")
	ErrBreakAlreadyActive    = New(KindConflict, "break_already_active")
	ErrSessionNotActive      = New(KindConflict, "session_not_active")
	ErrConcurrentUpdate      = New(KindConflict, "concurrent_update")

	ErrNoShiftAssigned      = New(KindNotFound, "no_shift_assigned")
	ErrNoPolicy             = New(KindNotFound, "no_break_policy")
	ErrNoActiveSession      = New(KindNotFound, "no_active_session")
	ErrNoActiveBreak        = New(KindNotFound, "no_active_break")
	ErrBreakRequestNotFound = New(KindNotFound, "break_request_not_found")
	ErrSessionNotFound      = New(KindNotFound, "session_not_found")

	ErrTooLateToCheckIn    = New(KindPolicyViolation, "too_late_to_check_in")
	ErrDurationTooShort    = New(KindPolicyViolation, "duration_below_minimum")
	ErrDurationTooLong     = New(KindPolicyViolation, "duration_above_maximum")
	ErrMaxBreaksReached    = New(KindPolicyViolation, "max_breaks_reached")
	ErrCooldownActive      = New(KindPolicyViolation, "cooldown_active")
	ErrBreakTypeNotAllowed = New(KindPolicyViolation, "break_type_not_allowed")
	ErrInvalidInput        = New(KindPolicyViolation, "invalid_input")
	// ErrNoSessionForBreak shares its code with ErrNoActiveSession but is a
	// rejected request rather than a missing resource.
	ErrNoSessionForBreak = New(KindPolicyViolation, "no_active_session")

	ErrBreakNotPending  = New(KindInvalidTransition, "break_not_pending")
	ErrBreakNotApproved = New(KindInvalidTransition, "break_not_approved")
	ErrBreakRejected    = New(KindInvalidTransition, "break_rejected")
	ErrNotCancellable   = New(KindInvalidTransition, "break_not_cancellable")
	ErrSessionClosed    = New(KindInvalidTransition, "session_closed")
)

// KindOf returns the kind of a recognized error, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the typed error, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
