package entity

import (
	"context"
	"time"
)

type LeadRepository interface {
	Create(ctx context.Context, l *Lead) error
	FindByID(ctx context.Context, id string) (*Lead, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Lead, error)
	Search(ctx context.Context, ownerID string, f LeadFilter) ([]*Lead, error)
	Update(ctx context.Context, l *Lead) error
	// Transition applies patch only if the lead's current status is in from.
	// Returns ErrStaleState when the lead exists in another status.
	Transition(ctx context.Context, id string, from []LeadStatus, patch LeadPatch) (*Lead, error)
	SoftDelete(ctx context.Context, id string) error
	// KnownEmailsByDomain samples one owner's real addresses at a domain.
	KnownEmailsByDomain(ctx context.Context, ownerID, domain string, limit int) ([]string, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
	ExistsInProject(ctx context.Context, projectID, email, linkedinURL string) (bool, error)
	MarkStaleEnrichments(ctx context.Context, olderThan time.Time, reason string) (int, error)
	Stats(ctx context.Context, ownerID, projectID string) (*LeadStats, error)
	Latest(ctx context.Context, projectID string, limit int) ([]*Lead, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	FindByID(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context, ownerID string) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
	RefreshLeadCount(ctx context.Context, id string) error
	IncrementEmailSent(ctx context.Context, id string) error
}

type TemplateRepository interface {
	Create(ctx context.Context, t *EmailTemplate) error
	FindByID(ctx context.Context, id string) (*EmailTemplate, error)
	List(ctx context.Context, ownerID string) ([]*EmailTemplate, error)
	Update(ctx context.Context, t *EmailTemplate) error
	Delete(ctx context.Context, id string) error
	IsReferenced(ctx context.Context, id string) (bool, error)
}

type CampaignRepository interface {
	Create(ctx context.Context, c *EmailCampaign, leadIDs []string) error
	FindByID(ctx context.Context, id string) (*EmailCampaign, error)
	List(ctx context.Context, creatorID, projectID string) ([]*EmailCampaign, error)
	Update(ctx context.Context, c *EmailCampaign) error
	ReplaceRecipients(ctx context.Context, campaignID string, leadIDs []string) error
	Delete(ctx context.Context, id string) error
	// TransitionStatus moves the campaign to `to` only if its status is in from.
	TransitionStatus(ctx context.Context, id string, from []CampaignStatus, to CampaignStatus, reason string) (*EmailCampaign, error)
	IncrementCounter(ctx context.Context, id string, counter Counter) error
	ListRecipients(ctx context.Context, campaignID string, status RecipientStatus) ([]*CampaignRecipient, error)
	FindRecipient(ctx context.Context, campaignID, leadID string) (*CampaignRecipient, error)
	// ClaimRecipient moves a pending recipient to sending; ErrStaleState if
	// another worker got there first.
	ClaimRecipient(ctx context.Context, campaignID, leadID string) error
	// MarkRecipientSent succeeds only for a claimed recipient.
	MarkRecipientSent(ctx context.Context, campaignID, leadID, address, deliveryID string) error
	// MarkRecipientFailed succeeds for a pending or claimed recipient.
	MarkRecipientFailed(ctx context.Context, campaignID, leadID, reason string) error
	ListDue(ctx context.Context, now time.Time) ([]*EmailCampaign, error)
	// ListStalled returns sending campaigns with no progress since idleSince.
	ListStalled(ctx context.Context, idleSince time.Time) ([]*EmailCampaign, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
	Metrics(ctx context.Context, creatorID string) (*CampaignMetrics, error)
}
