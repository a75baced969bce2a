package usecase

import (
	"time"

	"github.com/xavierca1/leadforge/internal/entity"
)

type CreateLeadInput struct {
	ProjectID     string `json:"project_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Title         string `json:"title"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	LinkedInURL   string `json:"linkedin_url"`
	TwitterURL    string `json:"twitter_url"`
	WebsiteURL    string `json:"website_url"`
	Company       string `json:"company"`
	CompanyDomain string `json:"company_domain"`
	CompanySize   string `json:"company_size"`
	Industry      string `json:"industry"`
	Location      string `json:"location"`
	Source        string `json:"source"`
	Notes         string `json:"notes"`
}

// UpdateLeadInput: nil fields are left unchanged.
type UpdateLeadInput struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Title         *string `json:"title"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	LinkedInURL   *string `json:"linkedin_url"`
	TwitterURL    *string `json:"twitter_url"`
	WebsiteURL    *string `json:"website_url"`
	Company       *string `json:"company"`
	CompanyDomain *string `json:"company_domain"`
	CompanySize   *string `json:"company_size"`
	Industry      *string `json:"industry"`
	Location      *string `json:"location"`
	Notes         *string `json:"notes"`
	Status        *string `json:"status"`
}

// LeadOutput is a lead plus its derived presentation fields.
type LeadOutput struct {
	*entity.Lead
	Contactable bool   `json:"contactable"`
	ScoreBand   string `json:"score_band,omitempty"`
}

func NewLeadOutput(l *entity.Lead) LeadOutput {
	out := LeadOutput{Lead: l, Contactable: l.IsContactable()}
	if l.Score != nil {
		out.ScoreBand = entity.ScoreBand(*l.Score)
	}
	return out
}

func newLeadOutputs(leads []*entity.Lead) []LeadOutput {
	out := make([]LeadOutput, 0, len(leads))
	for _, l := range leads {
		out = append(out, NewLeadOutput(l))
	}
	return out
}

type BatchEnrichInput struct {
	LeadIDs []string `json:"lead_ids"`
}

// EnrichItemResult is one entry of a batch enrich response.
type EnrichItemResult struct {
	LeadID string `json:"lead_id"`
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

const (
	ItemQueued = "queued"
	ItemFailed = "failed"
)

// TaskHandle is returned for every request whose work runs on the worker.
type TaskHandle struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

type ProjectInput struct {
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	TargetIndustry    string               `json:"target_industry"`
	TargetCompanySize string               `json:"target_company_size"`
	TargetLocations   string               `json:"target_locations"`
	TargetTitles      string               `json:"target_titles"`
	SearchKeywords    string               `json:"search_keywords"`
	Config            entity.ProjectConfig `json:"config"`
}

type TemplateInput struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type GenerateTemplateInput struct {
	Name               string `json:"name"`
	ProjectID          string `json:"project_id"`
	Purpose            string `json:"purpose"`
	Tone               string `json:"tone"`
	Length             string `json:"length"`
	Focus              string `json:"focus"`
	CustomInstructions string `json:"custom_instructions"`
}

type CampaignInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	TemplateID  string     `json:"template_id"`
	ProjectID   string     `json:"project_id"`
	FromEmail   string     `json:"from_email"`
	ReplyTo     string     `json:"reply_to"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	LeadIDs     []string   `json:"lead_ids"`
}

type CampaignOutput struct {
	*entity.EmailCampaign
	RecipientCount int `json:"recipient_count"`
	PendingCount   int `json:"pending_count"`
}

type TrackingEventInput struct {
	EventID    string                `json:"event_id"`
	CampaignID string                `json:"campaign_id"`
	LeadID     string                `json:"lead_id"`
	Kind       entity.EngagementKind `json:"kind"`
}

type TrackingResult struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

// IngestResult counts the outcome of a scrape or import.
type IngestResult struct {
	Created    int        `json:"created"`
	Duplicates int        `json:"duplicates"`
	Failed     int        `json:"failed"`
	Errors     []RowError `json:"errors,omitempty"`
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type Dashboard struct {
	TotalProjects    int            `json:"total_projects"`
	TotalLeads       int            `json:"total_leads"`
	HighQualityLeads int            `json:"high_quality_leads"`
	ContactedLeads   int            `json:"contacted_leads"`
	ScoreBands       map[string]int `json:"score_bands"`
	Campaigns        int            `json:"campaigns"`
	EmailsSent       int            `json:"emails_sent"`
	OpenRate         float64        `json:"open_rate"`
	ClickRate        float64        `json:"click_rate"`
	ReplyRate        float64        `json:"reply_rate"`
}

type ScoreRange struct {
	Label      string  `json:"label"`
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Share struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// LeadQuality breaks a lead scope down by score range, status and source.
// Percentages are relative to TotalLeads.
type LeadQuality struct {
	ProjectID          string       `json:"project_id,omitempty"`
	TotalLeads         int          `json:"total_leads"`
	ScoredLeads        int          `json:"scored_leads"`
	ScoreDistribution  []ScoreRange `json:"score_distribution"`
	StatusDistribution []Share      `json:"status_distribution"`
	SourceDistribution []Share      `json:"source_distribution"`
}

type CampaignBreakdown struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Status        entity.CampaignStatus `json:"status"`
	Sent          int                   `json:"sent"`
	Opened        int                   `json:"opened"`
	Clicked       int                   `json:"clicked"`
	Replied       int                   `json:"replied"`
	OpenRate      float64               `json:"open_rate"`
	ClickRate     float64               `json:"click_rate"`
	ReplyRate     float64               `json:"reply_rate"`
	TemplateName  string                `json:"template_name"`
	IsAIGenerated bool                  `json:"is_ai_generated"`
	CreatedAt     time.Time             `json:"created_at"`
}

// CampaignPerformance rates are all relative to emails sent.
type CampaignPerformance struct {
	ProjectID      string              `json:"project_id,omitempty"`
	TotalCampaigns int                 `json:"total_campaigns"`
	TotalSent      int                 `json:"total_sent"`
	TotalOpened    int                 `json:"total_opened"`
	TotalClicked   int                 `json:"total_clicked"`
	TotalReplied   int                 `json:"total_replied"`
	OpenRate       float64             `json:"open_rate"`
	ClickRate      float64             `json:"click_rate"`
	ReplyRate      float64             `json:"reply_rate"`
	Campaigns      []CampaignBreakdown `json:"campaigns"`
}

type PredictEmailInput struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	CompanyDomain string `json:"company_domain"`
}
