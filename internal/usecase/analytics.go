package usecase

import (
	"context"
	"sort"

	"github.com/xavierca1/leadforge/internal/entity"
)

// qualityRanges are half-open [Min, Max) except the last, which includes 100.
var qualityRanges = []ScoreRange{
	{Label: "Low", Min: 0, Max: 50},
	{Label: "Average", Min: 50, Max: 70},
	{Label: "Good", Min: 70, Max: 85},
	{Label: "High", Min: 85, Max: 100},
}

type AnalyticsUseCase struct {
	Projects  entity.ProjectRepository
	Leads     entity.LeadRepository
	Campaigns entity.CampaignRepository
	Templates entity.TemplateRepository
}

func NewAnalyticsUseCase(
	projects entity.ProjectRepository,
	leads entity.LeadRepository,
	campaigns entity.CampaignRepository,
	templates entity.TemplateRepository,
) *AnalyticsUseCase {
	return &AnalyticsUseCase{Projects: projects, Leads: leads, Campaigns: campaigns, Templates: templates}
}

// Dashboard aggregates the caller's projects, leads and campaigns. Every
// rate is relative to emails sent.
func (uc *AnalyticsUseCase) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	projects, err := uc.Projects.List(ctx, ownerID)
	if err != nil {
		return nil, technical("failed to list projects", err)
	}
	leads, err := uc.Leads.Stats(ctx, ownerID, "")
	if err != nil {
		return nil, technical("failed to aggregate leads", err)
	}
	m, err := uc.Campaigns.Metrics(ctx, ownerID)
	if err != nil {
		return nil, technical("failed to aggregate campaigns", err)
	}

	bands := map[string]int{}
	for band, n := range leads.BandCounts {
		bands[band] = n
	}
	return &Dashboard{
		TotalProjects:    len(projects),
		TotalLeads:       leads.Total,
		HighQualityLeads: leads.HighQuality,
		ContactedLeads:   leads.Contacted,
		ScoreBands:       bands,
		Campaigns:        m.Campaigns,
		EmailsSent:       m.Sent,
		OpenRate:         percentage(m.Opens, m.Sent),
		ClickRate:        percentage(m.Clicks, m.Sent),
		ReplyRate:        percentage(m.Replies, m.Sent),
	}, nil
}

// LeadQuality reports the caller's leads, optionally narrowed to one of
// their projects.
func (uc *AnalyticsUseCase) LeadQuality(ctx context.Context, ownerID, projectID string) (*LeadQuality, error) {
	if err := uc.checkScope(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	stats, err := uc.Leads.Stats(ctx, ownerID, projectID)
	if err != nil {
		return nil, technical("failed to aggregate leads", err)
	}

	out := &LeadQuality{
		ProjectID:         projectID,
		TotalLeads:        stats.Total,
		ScoreDistribution: make([]ScoreRange, len(qualityRanges)),
	}
	copy(out.ScoreDistribution, qualityRanges)
	for score, n := range stats.ScoreCounts {
		out.ScoredLeads += n
		for i := range out.ScoreDistribution {
			r := &out.ScoreDistribution[i]
			if score >= r.Min && (score < r.Max || i == len(out.ScoreDistribution)-1) {
				r.Count += n
				break
			}
		}
	}
	for i := range out.ScoreDistribution {
		out.ScoreDistribution[i].Percentage = percentage(out.ScoreDistribution[i].Count, stats.Total)
	}

	statuses := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		statuses[string(status)] = n
	}
	out.StatusDistribution = shares(statuses, stats.Total)
	out.SourceDistribution = shares(stats.BySource, stats.Total)
	return out, nil
}

// CampaignPerformance totals the caller's campaigns and breaks them down one
// by one, newest first.
func (uc *AnalyticsUseCase) CampaignPerformance(ctx context.Context, ownerID, projectID string) (*CampaignPerformance, error) {
	if err := uc.checkScope(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	campaigns, err := uc.Campaigns.List(ctx, ownerID, projectID)
	if err != nil {
		return nil, technical("failed to list campaigns", err)
	}
	templates, err := uc.Templates.List(ctx, ownerID)
	if err != nil {
		return nil, technical("failed to list templates", err)
	}
	byID := make(map[string]*entity.EmailTemplate, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}

	out := &CampaignPerformance{
		ProjectID:      projectID,
		TotalCampaigns: len(campaigns),
		Campaigns:      make([]CampaignBreakdown, 0, len(campaigns)),
	}
	for _, c := range campaigns {
		b := CampaignBreakdown{
			ID:        c.ID,
			Name:      c.Name,
			Status:    c.Status,
			Sent:      c.SentCount,
			Opened:    c.OpenCount,
			Clicked:   c.ClickCount,
			Replied:   c.ReplyCount,
			OpenRate:  percentage(c.OpenCount, c.SentCount),
			ClickRate: percentage(c.ClickCount, c.SentCount),
			ReplyRate: percentage(c.ReplyCount, c.SentCount),
			CreatedAt: c.CreatedAt,
		}
		if t, ok := byID[c.TemplateID]; ok {
			b.TemplateName = t.Name
			b.IsAIGenerated = t.IsAIGenerated
		}
		out.Campaigns = append(out.Campaigns, b)

		out.TotalSent += c.SentCount
		out.TotalOpened += c.OpenCount
		out.TotalClicked += c.ClickCount
		out.TotalReplied += c.ReplyCount
	}
	out.OpenRate = percentage(out.TotalOpened, out.TotalSent)
	out.ClickRate = percentage(out.TotalClicked, out.TotalSent)
	out.ReplyRate = percentage(out.TotalReplied, out.TotalSent)
	return out, nil
}

func (uc *AnalyticsUseCase) checkScope(ctx context.Context, ownerID, projectID string) error {
	if projectID == "" {
		return nil
	}
	_, err := ownedProject(ctx, uc.Projects, ownerID, projectID)
	return err
}

// shares orders by count descending, then name.
func shares(counts map[string]int, total int) []Share {
	out := make([]Share, 0, len(counts))
	for name, n := range counts {
		out = append(out, Share{Name: name, Count: n, Percentage: percentage(n, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
