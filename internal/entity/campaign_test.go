package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionCampaign(t *testing.T) {
	assert.True(t, CanTransitionCampaign(CampaignStatusDraft, CampaignStatusScheduled))
	assert.True(t, CanTransitionCampaign(CampaignStatusScheduled, CampaignStatusSending))
	assert.True(t, CanTransitionCampaign(CampaignStatusSending, CampaignStatusPaused))
	assert.True(t, CanTransitionCampaign(CampaignStatusPaused, CampaignStatusSending))
	assert.True(t, CanTransitionCampaign(CampaignStatusSending, CampaignStatusFailed))

	assert.False(t, CanTransitionCampaign(CampaignStatusDraft, CampaignStatusSending))
	assert.False(t, CanTransitionCampaign(CampaignStatusPaused, CampaignStatusSent))
	assert.False(t, CanTransitionCampaign(CampaignStatusSent, CampaignStatusSending))
}

func TestCampaignIsDue(t *testing.T) {
	now := time.Now().UTC()
	c := NewEmailCampaign("u1", "p1", "t1", "Q3 outreach")
	assert.False(t, c.IsDue(now))

	past := now.Add(-time.Minute)
	c.Status = CampaignStatusScheduled
	c.ScheduledAt = &past
	assert.True(t, c.IsDue(now))

	future := now.Add(time.Hour)
	c.ScheduledAt = &future
	assert.False(t, c.IsDue(now))
}

func TestEngagementCounter(t *testing.T) {
	c, ok := EngagementReply.Counter()
	assert.True(t, ok)
	assert.Equal(t, CounterReply, c)

	_, ok = EngagementKind("bounce").Counter()
	assert.False(t, ok)
}

func TestProjectScrapeRequestDefaults(t *testing.T) {
	p := NewProject("u1", "Fintech CTOs")
	p.TargetTitles = "CTO, VP Engineering ,"
	p.SearchKeywords = "payments  api"

	req := p.ScrapeRequest()
	assert.Equal(t, DefaultScrapeMaxResults, req.MaxResults)
	assert.Equal(t, []string{"CTO", "VP Engineering"}, req.TitleKeywords)
	assert.Equal(t, []string{"payments", "api"}, req.Keywords)
}
