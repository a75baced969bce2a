package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the campaign state:
//
//	draft ──► scheduled ──► sending ──► sent
//	                         │   ▲
//	                         ▼   │
//	                        paused
//
// failed is reachable from sending. sent and failed are terminal.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusFailed    CampaignStatus = "failed"
)

var validCampaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusScheduled},
	CampaignStatusScheduled: {CampaignStatusSending},
	CampaignStatusSending:   {CampaignStatusPaused, CampaignStatusSent, CampaignStatusFailed},
	CampaignStatusPaused:    {CampaignStatusSending},
}

func ParseCampaignStatus(s string) (CampaignStatus, error) {
	st := CampaignStatus(s)
	switch st {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusPaused, CampaignStatusSent, CampaignStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown campaign status %q", s)
}

func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusSent || s == CampaignStatusFailed
}

// IsEditable reports whether the campaign definition may still change.
func (s CampaignStatus) IsEditable() bool {
	return s == CampaignStatusDraft || s == CampaignStatusScheduled
}

func CanTransitionCampaign(from, to CampaignStatus) bool {
	for _, s := range validCampaignTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type EmailCampaign struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Status        CampaignStatus `json:"status"`
	TemplateID    string         `json:"template_id"`
	ProjectID     string         `json:"project_id"`
	CreatorID     string         `json:"creator_id"`
	FromEmail     string         `json:"from_email"`
	ReplyTo       string         `json:"reply_to,omitempty"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	SentCount     int            `json:"sent_count"`
	OpenCount     int            `json:"open_count"`
	ClickCount    int            `json:"click_count"`
	ReplyCount    int            `json:"reply_count"`
	FailedCount   int            `json:"failed_count"`
	FailureReason string         `json:"failure_reason,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewEmailCampaign(creatorID, projectID, templateID, name string) *EmailCampaign {
	now := time.Now().UTC()
	return &EmailCampaign{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     CampaignStatusDraft,
		TemplateID: templateID,
		ProjectID:  projectID,
		CreatorID:  creatorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsDue reports whether a scheduled campaign should start at now.
func (c *EmailCampaign) IsDue(now time.Time) bool {
	return c.Status == CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now)
}

// Counter names one of the campaign's monotone counters.
type Counter string

const (
	CounterSent   Counter = "sent_count"
	CounterOpen   Counter = "open_count"
	CounterClick  Counter = "click_count"
	CounterReply  Counter = "reply_count"
	CounterFailed Counter = "failed_count"
)

func (c Counter) Valid() bool {
	switch c {
	case CounterSent, CounterOpen, CounterClick, CounterReply, CounterFailed:
		return true
	}
	return false
}

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	// RecipientSending is claimed by one worker; the send outcome is not yet recorded.
	RecipientSending RecipientStatus = "sending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// IsOpen reports whether the recipient may still receive the email.
func (s RecipientStatus) IsOpen() bool {
	return s == RecipientPending || s == RecipientSending
}

type CampaignRecipient struct {
	CampaignID string          `json:"campaign_id"`
	LeadID     string          `json:"lead_id"`
	Status     RecipientStatus `json:"status"`
	Address    string          `json:"address,omitempty"`
	DeliveryID string          `json:"delivery_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	ClaimedAt  *time.Time      `json:"claimed_at,omitempty"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
}

// EngagementKind is an asynchronous signal reported after a send.
type EngagementKind string

const (
	EngagementOpen  EngagementKind = "open"
	EngagementClick EngagementKind = "click"
	EngagementReply EngagementKind = "reply"
)

func (k EngagementKind) Counter() (Counter, bool) {
	switch k {
	case EngagementOpen:
		return CounterOpen, true
	case EngagementClick:
		return CounterClick, true
	case EngagementReply:
		return CounterReply, true
	}
	return "", false
}

// CampaignMetrics sums the counters of all campaigns of one creator.
type CampaignMetrics struct {
	Campaigns int `json:"campaigns"`
	Sent      int `json:"emails_sent"`
	Opens     int `json:"opens"`
	Clicks    int `json:"clicks"`
	Replies   int `json:"replies"`
}
