// Package mail provides the mock inbox the assistant checks for meeting requests.
package mail

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrEmailNotFound is returned when an email ID is not in the inbox.
var ErrEmailNotFound = errors.New("email not found")

// Email priorities.
const (
	PriorityHigh = "high"
	PriorityLow  = "low"
)

// Email is one inbox message.
type Email struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Sender          string    `json:"sender"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Priority        string    `json:"priority"`
	IsRead          bool      `json:"is_read"`
	SpamProbability float64   `json:"spam_probability,omitempty"`
}

// CheckResult is the outcome of Check.
type CheckResult struct {
	Report string  `json:"report"`
	Unread int     `json:"unread"`
	Urgent int     `json:"urgent"`
	Emails []Email `json:"emails"`
}

// Inbox is an in-memory mailbox safe for concurrent use.
type Inbox struct {
	mu     sync.Mutex
	emails []Email
}

// NewInbox returns an inbox holding the given emails.
func NewInbox(emails ...Email) *Inbox {
	return &Inbox{emails: slices.Clone(emails)}
}

// NewMockInbox returns the fixture inbox stamped with now.
func NewMockInbox(now time.Time) *Inbox {
	return NewInbox(
		Email{
			ID:        "1",
			Subject:   "Urgent: Need to schedule a meeting now",
			Sender:    "manager@company.com",
			Content:   "We need to discuss the project status ASAP. Please schedule a meeting today.",
			Timestamp: now,
			Priority:  PriorityHigh,
		},
		Email{
			ID:        "2",
			Subject:   "Important task needs to be delivered",
			Sender:    "team@company.com",
			Content:   "The client is expecting the deliverables by EOD. Please review and submit.",
			Timestamp: now,
			Priority:  PriorityHigh,
		},
		Email{
			ID:              "3",
			Subject:         "You've won a prize! Claim now!!!",
			Sender:          "unknown@suspicious.com",
			Content:         "Congratulations! You've been selected to receive a special prize...",
			Timestamp:       now,
			Priority:        PriorityLow,
			SpamProbability: 0.95,
		},
	)
}

// Check summarizes the inbox. Urgent counts every high-priority email,
// read or not.
func (in *Inbox) Check(ctx context.Context) (CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return CheckResult{}, err
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	res := CheckResult{Emails: slices.Clone(in.emails)}
	for _, e := range in.emails {
		if !e.IsRead {
			res.Unread++
		}
		if e.Priority == PriorityHigh {
			res.Urgent++
		}
	}
	res.Report = fmt.Sprintf("You have %d unread emails, %d are urgent.", res.Unread, res.Urgent)
	return res, nil
}

// MarkAsRead flags the email as read and returns the confirmation line.
func (in *Inbox) MarkAsRead(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.emails {
		if in.emails[i].ID == id {
			in.emails[i].IsRead = true
			return fmt.Sprintf("Email %s marked as read", id), nil
		}
	}
	return "", fmt.Errorf("marking %q as read: %w", id, ErrEmailNotFound)
}

// Get returns a copy of the email with the given ID.
func (in *Inbox) Get(id string) (Email, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, e := range in.emails {
		if e.ID == id {
			return e, nil
		}
	}
	return Email{}, fmt.Errorf("email %q: %w", id, ErrEmailNotFound)
}
