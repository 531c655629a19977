package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"oktel-timekeeper/internal/i18n"
	"oktel-timekeeper/internal/mattermost"
	"oktel-timekeeper/internal/model"
	"oktel-timekeeper/internal/service"
)

// Mattermost paths for the agent menu. The supervisor callbacks live in the
// mattermost package next to the buttons that target them.
const (
	SlashPath       = "/api/mattermost/attendance"
	checkInPath     = "/api/mattermost/attendance/checkin"
	breakFormPath   = "/api/mattermost/attendance/break"
	breakSubmitPath = "/api/mattermost/attendance/break-submit"
	breakEndPath    = "/api/mattermost/attendance/break-end"
	checkOutPath    = "/api/mattermost/attendance/checkout"
)

// AttendanceHandler serves the Mattermost slash command, its buttons and
// dialogs, and the approval callbacks.
type AttendanceHandler struct {
	svc    *service.AttendanceService
	mm     *mattermost.Client
	botURL string
}

func NewAttendanceHandler(svc *service.AttendanceService, mm *mattermost.Client, botURL string) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, mm: mm, botURL: strings.TrimRight(botURL, "/")}
}

// ActionRequest is the Mattermost interactive action request.
type ActionRequest struct {
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	ChannelID string         `json:"channel_id"`
	PostID    string         `json:"post_id"`
	TriggerID string         `json:"trigger_id"`
	Type      string         `json:"type"`
	Context   map[string]any `json:"context"`
}

// DialogSubmission is the Mattermost dialog submission.
type DialogSubmission struct {
	Type       string         `json:"type"`
	CallbackID string         `json:"callback_id"`
	UserID     string         `json:"user_id"`
	UserName   string         `json:"user_name"`
	ChannelID  string         `json:"channel_id"`
	TeamID     string         `json:"team_id"`
	Submission map[string]any `json:"submission"`
	Cancelled  bool           `json:"cancelled"`
}

// field returns a submitted value as text. Number fields may arrive as JSON numbers.
func (s *DialogSubmission) field(name string) string {
	switch v := s.Submission[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// DialogResponse reports submission problems back to the dialog.
type DialogResponse struct {
	Error  string            `json:"error,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// SlashResponse is the response to a slash command.
type SlashResponse struct {
	ResponseType string                  `json:"response_type"` // "ephemeral" or "in_channel"
	Text         string                  `json:"text,omitempty"`
	Attachments  []mattermost.Attachment `json:"attachments,omitempty"`
}

// ActionResponse is the response to an interactive action.
type ActionResponse struct {
	Update        *ActionUpdate `json:"update,omitempty"`
	EphemeralText string        `json:"ephemeral_text,omitempty"`
}

// ActionUpdate updates the original post.
type ActionUpdate struct {
	Message string            `json:"message,omitempty"`
	Props   *mattermost.Props `json:"props,omitempty"`
}

func (h *AttendanceHandler) button(ctx context.Context, nameID, path, action string) mattermost.Action {
	return mattermost.Action{
		Name: i18n.T(ctx, nameID),
		Type: "button",
		Integration: mattermost.Integration{
			URL:     h.botURL + path,
			Context: map[string]any{"action": action},
		},
	}
}

// HandleSlashCommand answers /attendance with the agent menu.
func (h *AttendanceHandler) HandleSlashCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	writeJSON(w, SlashResponse{
		ResponseType: "ephemeral",
		Attachments: []mattermost.Attachment{{
			Text: i18n.T(r.Context(), "menu.title"),
			Actions: []mattermost.Action{
				h.button(r.Context(), "button.check_in", checkInPath, "checkin"),
				h.button(r.Context(), "button.break", breakFormPath, "break"),
				h.button(r.Context(), "button.end_break", breakEndPath, "break-end"),
				h.button(r.Context(), "button.check_out", checkOutPath, "checkout"),
			},
		}},
	})
}

// HandleCheckIn checks the clicking agent in.
func (h *AttendanceHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.svc.CheckIn(r.Context(), model.Principal{UserID: req.UserID}, service.CheckInInput{Location: "mattermost"})
	if err != nil {
		writeJSON(w, ActionResponse{EphemeralText: errorMessage(r.Context(), err)})
		return
	}
	writeJSON(w, ActionResponse{EphemeralText: i18n.T(r.Context(), "reply.checked_in", map[string]any{
		"status":      string(res.Status),
		"lateMinutes": res.LateMinutes,
	})})
}

// HandleBreakForm opens the break request dialog.
func (h *AttendanceHandler) HandleBreakForm(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var options []mattermost.SelectOption
	for _, t := range []model.BreakType{model.BreakShort, model.BreakLunch, model.BreakEmergency} {
		options = append(options, mattermost.SelectOption{
			Text:  i18n.T(ctx, "break_type."+string(t)),
			Value: string(t),
		})
	}
	err := h.mm.OpenDialog(ctx, &mattermost.DialogRequest{
		TriggerID: req.TriggerID,
		URL:       h.botURL + breakSubmitPath,
		Dialog: mattermost.Dialog{
			Title:       i18n.T(ctx, "dialog.break_title"),
			SubmitLabel: i18n.T(ctx, "dialog.break_submit"),
			Elements: []mattermost.DialogElement{
				{
					DisplayName: i18n.T(ctx, "dialog.break_type"),
					Name:        "type",
					Type:        "select",
					Default:     string(model.BreakShort),
					Options:     options,
				},
				{
					DisplayName: i18n.T(ctx, "dialog.break_duration"),
					Name:        "duration",
					Type:        "text",
					SubType:     "number",
				},
				{
					DisplayName: i18n.T(ctx, "dialog.break_reason"),
					Name:        "reason",
					Type:        "textarea",
					Optional:    true,
				},
			},
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "open break dialog", "user_id", req.UserID, "error", err)
		writeJSON(w, ActionResponse{EphemeralText: i18n.T(ctx, "reply.dialog_failed")})
		return
	}
	writeJSON(w, ActionResponse{})
}

// HandleBreakSubmit files the request entered in the break dialog.
func (h *AttendanceHandler) HandleBreakSubmit(w http.ResponseWriter, r *http.Request) {
	var sub DialogSubmission
	if err := decode(r, &sub); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if sub.Cancelled {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	duration, err := strconv.Atoi(sub.field("duration"))
	if err != nil || duration <= 0 {
		writeJSON(w, DialogResponse{Errors: map[string]string{
			"duration": i18n.T(ctx, "error.invalid_input", map[string]any{"field": "duration"}),
		}})
		return
	}

	_, err = h.svc.RequestBreak(ctx, sub.UserID, service.BreakInput{
		Type:     model.BreakType(sub.field("type")),
		Duration: duration,
		Reason:   sub.field("reason"),
	})
	if err != nil {
		writeJSON(w, DialogResponse{Error: errorMessage(ctx, err)})
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleBreakEnd ends the clicking agent's break.
func (h *AttendanceHandler) HandleBreakEnd(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.svc.EndBreak(r.Context(), req.UserID)
	if err != nil {
		writeJSON(w, ActionResponse{EphemeralText: errorMessage(r.Context(), err)})
		return
	}
	writeJSON(w, ActionResponse{EphemeralText: i18n.T(r.Context(), "reply.break_ended", map[string]any{
		"actualDuration": res.ActualDuration,
	})})
}

// HandleCheckOut checks the clicking agent out.
func (h *AttendanceHandler) HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.svc.CheckOut(r.Context(), req.UserID, service.CheckInInput{Location: "mattermost"})
	if err != nil {
		writeJSON(w, ActionResponse{EphemeralText: errorMessage(r.Context(), err)})
		return
	}
	writeJSON(w, ActionResponse{EphemeralText: i18n.T(r.Context(), "reply.checked_out", map[string]any{
		"workMinutes":     res.Summary.WorkMinutes,
		"breakMinutes":    res.Summary.BreakMinutes,
		"overtimeMinutes": res.Summary.OvertimeMinutes,
	})})
}

func breakID(req *ActionRequest) string {
	id, _ := req.Context["break_id"].(string)
	return id
}

// HandleApprove handles the Approve button on an approval post.
func (h *AttendanceHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if _, err := h.svc.ApproveBreak(r.Context(), breakID(&req), req.UserID, ""); err != nil {
		writeJSON(w, ActionResponse{EphemeralText: errorMessage(r.Context(), err)})
		return
	}
	writeJSON(w, ActionResponse{EphemeralText: i18n.T(r.Context(), "reply.break_approved")})
}

// HandleReject opens a dialog asking the supervisor for a reason.
func (h *AttendanceHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	err := h.mm.OpenDialog(ctx, &mattermost.DialogRequest{
		TriggerID: req.TriggerID,
		URL:       h.botURL + mattermost.RejectSubmitPath,
		Dialog: mattermost.Dialog{
			Title:       i18n.T(ctx, "dialog.reject_title"),
			CallbackID:  breakID(&req),
			SubmitLabel: i18n.T(ctx, "dialog.reject_submit"),
			Elements: []mattermost.DialogElement{
				{
					DisplayName: i18n.T(ctx, "dialog.reject_reason"),
					Name:        "reason",
					Type:        "textarea",
					Optional:    true,
				},
			},
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "open reject dialog", "break_id", breakID(&req), "error", err)
		writeJSON(w, ActionResponse{EphemeralText: i18n.T(ctx, "reply.dialog_failed")})
		return
	}
	writeJSON(w, ActionResponse{})
}

// HandleRejectSubmit processes the reject dialog submission.
func (h *AttendanceHandler) HandleRejectSubmit(w http.ResponseWriter, r *http.Request) {
	var sub DialogSubmission
	if err := decode(r, &sub); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if sub.Cancelled {
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.svc.RejectBreak(r.Context(), sub.CallbackID, sub.UserID, sub.field("reason")); err != nil {
		writeJSON(w, DialogResponse{Error: errorMessage(r.Context(), err)})
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RegisterRoutes registers the Mattermost routes on r.
func (h *AttendanceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(SlashPath, h.HandleSlashCommand).Methods(http.MethodPost)
	r.HandleFunc(checkInPath, h.HandleCheckIn).Methods(http.MethodPost)
	r.HandleFunc(breakFormPath, h.HandleBreakForm).Methods(http.MethodPost)
	r.HandleFunc(breakSubmitPath, h.HandleBreakSubmit).Methods(http.MethodPost)
	r.HandleFunc(breakEndPath, h.HandleBreakEnd).Methods(http.MethodPost)
	r.HandleFunc(checkOutPath, h.HandleCheckOut).Methods(http.MethodPost)
	r.HandleFunc(mattermost.ApprovePath, h.HandleApprove).Methods(http.MethodPost)
	r.HandleFunc(mattermost.RejectPath, h.HandleReject).Methods(http.MethodPost)
	r.HandleFunc(mattermost.RejectSubmitPath, h.HandleRejectSubmit).Methods(http.MethodPost)
}
