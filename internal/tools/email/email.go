// Package email exposes the inbox to agents.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/jkaninda/huddle/internal/mail"
	"github.com/jkaninda/huddle/internal/tools"
)

// CheckTool lists the inbox with an unread/urgent summary.
type CheckTool struct {
	inbox *mail.Inbox
}

func NewCheckTool(inbox *mail.Inbox) *CheckTool { return &CheckTool{inbox: inbox} }

func (t *CheckTool) Name() string { return "check_emails" }
func (t *CheckTool) Description() string {
	return "Check the inbox. Returns a summary of unread and urgent emails followed by every email with its id, sender, subject, priority and content."
}
func (t *CheckTool) InputSchema() map[string]any   { return tools.Object(nil) }
func (t *CheckTool) Validate(map[string]any) error { return nil }

func (t *CheckTool) Execute(ctx context.Context, _ map[string]any) (*tools.Result, error) {
	res, err := t.inbox.Check(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(res.Report)
	for _, e := range res.Emails {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "ID: %s\nFrom: %s\nSubject: %s\nPriority: %s\nRead: %t\n", e.ID, e.Sender, e.Subject, e.Priority, e.IsRead)
		if e.SpamProbability > 0 {
			fmt.Fprintf(&b, "Spam probability: %.2f\n", e.SpamProbability)
		}
		fmt.Fprintf(&b, "Content: %s", e.Content)
	}

	return &tools.Result{
		Output:  b.String(),
		Success: true,
		Metadata: map[string]any{
			"unread": res.Unread,
			"urgent": res.Urgent,
			"emails": res.Emails,
		},
	}, nil
}

// MarkReadTool flags one email as read.
type MarkReadTool struct {
	inbox *mail.Inbox
}

func NewMarkReadTool(inbox *mail.Inbox) *MarkReadTool { return &MarkReadTool{inbox: inbox} }

func (t *MarkReadTool) Name() string        { return "mark_as_read" }
func (t *MarkReadTool) Description() string { return "Mark an email as read by its id." }
func (t *MarkReadTool) InputSchema() map[string]any {
	return tools.Object(map[string]any{
		"email_id": tools.Prop("string", "ID of the email to mark as read"),
	}, "email_id")
}

func (t *MarkReadTool) Validate(params map[string]any) error {
	return tools.RequireStrings(params, "email_id")
}

func (t *MarkReadTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	id := tools.String(params, "email_id")
	msg, err := t.inbox.MarkAsRead(ctx, id)
	if err != nil {
		return nil, err
	}
	return &tools.Result{Output: msg, Success: true, Metadata: map[string]any{"email_id": id}}, nil
}
