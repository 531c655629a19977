package mattermost

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"oktel-timekeeper/internal/i18n"
	"oktel-timekeeper/internal/model"
)

// Callback paths the approval buttons post back to.
const (
	ApprovePath      = "/api/mattermost/breaks/approve"
	RejectPath       = "/api/mattermost/breaks/reject"
	RejectSubmitPath = "/api/mattermost/breaks/reject-submit"
)

// Notifier posts break requests that need review to the approval channel
// and tells agents what became of them.
type Notifier struct {
	client    *Client
	channelID string
	botURL    string
	log       *slog.Logger
}

func NewNotifier(client *Client, approvalChannelID, botURL string) *Notifier {
	return &Notifier{
		client:    client,
		channelID: approvalChannelID,
		botURL:    strings.TrimRight(botURL, "/"),
		log:       slog.Default().With("component", "mattermost"),
	}
}

// BreakPending posts the request with Approve and Reject buttons and returns
// the post ID.
func (n *Notifier) BreakPending(ctx context.Context, b *model.BreakRequest) (string, error) {
	msg := n.requestMessage(ctx, b, "Pending")
	actionCtx := map[string]any{"break_id": b.ID}

	post, err := n.client.CreatePost(ctx, &Post{
		ChannelID: n.channelID,
		Message:   "@here\n" + msg,
		Props: Props{
			Attachments: []Attachment{{
				Actions: []Action{
					{
						Name:  i18n.Default("button.approve"),
						Type:  "button",
						Style: "success",
						Integration: Integration{
							URL:     n.botURL + ApprovePath,
							Context: actionCtx,
						},
					},
					{
						Name:  i18n.Default("button.reject"),
						Type:  "button",
						Style: "danger",
						Integration: Integration{
							URL:     n.botURL + RejectPath,
							Context: actionCtx,
						},
					},
				},
			}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("post approval message: %w", err)
	}
	return post.ID, nil
}

// BreakDecided replaces the approval post with the final status, removing
// its buttons, and direct-messages the agent about approvals and rejections.
func (n *Notifier) BreakDecided(ctx context.Context, b *model.BreakRequest) error {
	if b.NotifyPostID != "" {
		_, err := n.client.UpdatePost(ctx, b.NotifyPostID, &Post{
			ChannelID: n.channelID,
			Message:   n.requestMessage(ctx, b, "**"+StatusLabel(b.Status)+"**"),
			Props:     Props{Attachments: []Attachment{}},
		})
		if err != nil {
			return fmt.Errorf("update approval message: %w", err)
		}
	}

	data := map[string]any{
		"agent":    n.username(ctx, b.AgentID),
		"reviewer": n.username(ctx, b.ReviewedBy),
	}
	var dm string
	switch b.Status {
	case model.BreakApproved, model.BreakActive:
		dm = i18n.Default("notify.break_approved", data)
	case model.BreakRejected:
		dm = i18n.Default("notify.break_rejected", data)
		if b.RejectReason != "" {
			dm += "\n" + i18n.Default("notify.reject_reason", map[string]any{"reason": b.RejectReason})
		}
	default:
		return nil
	}
	if err := n.client.SendDM(ctx, b.AgentID, dm); err != nil {
		return fmt.Errorf("notify agent: %w", err)
	}
	return nil
}

// StatusLabel is the upper-case status shown on a decided request. A break
// that started on approval still reads as approved.
func StatusLabel(s model.BreakStatus) string {
	if s == model.BreakActive {
		s = model.BreakApproved
	}
	return strings.ToUpper(string(s))
}

func (n *Notifier) requestMessage(ctx context.Context, b *model.BreakRequest, status string) string {
	reason := b.Reason
	if reason == "" {
		reason = "-"
	}
	rules := strings.Join(b.ViolatedRules, ", ")
	if rules == "" {
		rules = "-"
	}
	return i18n.Default("notify.break_pending", map[string]any{
		"agent":    n.username(ctx, b.AgentID),
		"type":     string(b.Type),
		"duration": b.RequestedDuration,
		"reason":   reason,
		"rules":    rules,
		"status":   status,
	})
}

// username resolves a user ID for @-mentions, falling back to the ID.
func (n *Notifier) username(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	u, err := n.client.GetUser(ctx, userID)
	if err != nil || u.Username == "" {
		n.log.Debug("resolve username failed", "user_id", userID, "error", err)
		return userID
	}
	return u.Username
}
