package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	TargetIndustry    string        `json:"target_industry"`
	TargetCompanySize string        `json:"target_company_size"`
	TargetLocations   string        `json:"target_locations"`
	TargetTitles      string        `json:"target_titles"`
	SearchKeywords    string        `json:"search_keywords"`
	Config            ProjectConfig `json:"config"`
	LeadCount         int           `json:"lead_count"`
	EmailSentCount    int           `json:"email_sent_count"`
	OwnerID           string        `json:"owner_id"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ProjectConfig is the typed scrape/search configuration of a project.
// Settings owned by other tools stay opaque in Extra.
type ProjectConfig struct {
	MaxResults int                        `json:"max_results,omitempty"`
	Sources    []string                   `json:"sources,omitempty"`
	Extra      map[string]json.RawMessage `json:"extra,omitempty"`
}

const DefaultScrapeMaxResults = 100

func NewProject(ownerID, name string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ScrapeRequest builds the scraper query from the project's targeting fields.
func (p *Project) ScrapeRequest() ScrapeRequest {
	max := p.Config.MaxResults
	if max <= 0 {
		max = DefaultScrapeMaxResults
	}
	return ScrapeRequest{
		ProjectID:     p.ID,
		Industry:      p.TargetIndustry,
		TitleKeywords: splitList(p.TargetTitles),
		Location:      p.TargetLocations,
		CompanySize:   p.TargetCompanySize,
		Keywords:      strings.Fields(p.SearchKeywords),
		Sources:       p.Config.Sources,
		MaxResults:    max,
	}
}

type ProjectStats struct {
	TotalLeads      int     `json:"total_leads"`
	HighQuality     int     `json:"high_quality_leads"`
	LeadsContacted  int     `json:"leads_contacted"`
	TotalEmailsSent int     `json:"total_emails_sent"`
	TotalReplies    int     `json:"total_replies"`
	ResponseRate    float64 `json:"response_rate"`
	LatestLeads     []*Lead `json:"latest_leads"`
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
