package handler

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"oktel-timekeeper/internal/apperr"
	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/service"
)

// API is the JSON surface used by the agent and supervisor front ends.
type API struct {
	svc *service.AttendanceService
}

func NewAPI(svc *service.AttendanceService) *API {
	return &API{svc: svc}
}

type checkInBody struct {
	IP       string `json:"ip"`
	Location string `json:"location"`
}

type reviewBody struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// RegisterRoutes registers the API routes. Every route requires a principal.
func (a *API) RegisterRoutes(r *mux.Router) {
	handle := func(path string, h http.HandlerFunc, method string) {
		r.Handle(path, RequirePrincipal(h)).Methods(method)
	}
	handle("/api/sessions/check-in", a.CheckIn, http.MethodPost)
	handle("/api/sessions/check-out", a.CheckOut, http.MethodPost)
	handle("/api/sessions/status", a.Status, http.MethodGet)
	handle("/api/breaks", a.RequestBreak, http.MethodPost)
	handle("/api/breaks/end", a.EndBreak, http.MethodPost)
	handle("/api/breaks/pending", a.Pending, http.MethodGet)
	handle("/api/breaks/{id}/start", a.StartBreak, http.MethodPost)
	handle("/api/breaks/{id}/cancel", a.CancelBreak, http.MethodPost)
	handle("/api/breaks/{id}/approve", a.Approve, http.MethodPost)
	handle("/api/breaks/{id}/reject", a.Reject, http.MethodPost)
	handle("/api/activity", a.Activity, http.MethodGet)
	handle("/api/admin/sessions/{id}/incomplete", a.MarkIncomplete, http.MethodPost)
}

// CheckIn opens a session for the caller.
func (a *API) CheckIn(w http.ResponseWriter, r *http.Request) {
	var body checkInBody
	if err := decode(r, &body); err != nil {
		writeCode(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	if body.IP == "" {
		body.IP = clientIP(r)
	}
	res, err := a.svc.CheckIn(r.Context(), principal(r), service.CheckInInput{IP: body.IP, Location: body.Location})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w, http.StatusCreated, res)
}

// CheckOut closes the caller's session and returns the reconciled totals.
func (a *API) CheckOut(w http.ResponseWriter, r *http.Request) {
	var body checkInBody
	if err := decode(r, &body); err != nil {
		writeCode(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	if body.IP == "" {
		body.IP = clientIP(r)
	}
	res, err := a.svc.CheckOut(r.Context(), principal(r).UserID, service.CheckInInput{IP: body.IP, Location: body.Location})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.Status(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// RequestBreak evaluates a break request. Auto-approved requests start at once.
func (a *API) RequestBreak(w http.ResponseWriter, r *http.Request) {
	var in service.BreakInput
	if err := decode(r, &in); err != nil {
		writeCode(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	res, err := a.svc.RequestBreak(r.Context(), principal(r).UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w, http.StatusCreated, res)
}

func (a *API) StartBreak(w http.ResponseWriter, r *http.Request) {
	b, err := a.svc.StartBreak(r.Context(), principal(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, b)
}

func (a *API) EndBreak(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.EndBreak(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (a *API) CancelBreak(w http.ResponseWriter, r *http.Request) {
	b, err := a.svc.CancelBreak(r.Context(), principal(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, b)
}

// Approve approves a pending request on behalf of the calling supervisor.
func (a *API) Approve(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if err := decode(r, &body); err != nil {
		writeCode(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	b, err := a.svc.ApproveBreak(r.Context(), mux.Vars(r)["id"], principal(r).UserID, body.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, b)
}

// Reject rejects a pending request on behalf of the calling supervisor.
func (a *API) Reject(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if err := decode(r, &body); err != nil {
		writeCode(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	b, err := a.svc.RejectBreak(r.Context(), mux.Vars(r)["id"], principal(r).UserID, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, b)
}

// Pending lists requests awaiting review, oldest first.
func (a *API) Pending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := a.svc.PendingRequests(r.Context(), model.PendingFilter{
		DepartmentID: q.Get("department_id"),
		AgentID:      q.Get("agent_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*model.BreakRequest{}
	}
	writeJSON(w, list)
}

// Activity returns audit entries, newest first.
func (a *API) Activity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ActivityFilter{
		AgentID:   q.Get("agent_id"),
		SessionID: q.Get("session_id"),
		Type:      model.ActivityType(q.Get("type")),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, apperr.ErrInvalidInput.With(map[string]any{"field": "since"}))
			return
		}
		filter.Since = &since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, apperr.ErrInvalidInput.With(map[string]any{"field": "limit"}))
			return
		}
		filter.Limit = n
	}
	logs, err := a.svc.ListActivity(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []*model.ActivityLog{}
	}
	writeJSON(w, logs)
}

func (a *API) MarkIncomplete(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if err := decode(r, &body); err != nil {
		writeCode(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	sess, err := a.svc.MarkIncomplete(r.Context(), mux.Vars(r)["id"], principal(r).UserID, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, sess)
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
