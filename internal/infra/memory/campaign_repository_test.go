package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadforge/internal/entity"
)

func TestConcurrentCounterIncrements(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := entity.NewEmailCampaign("u1", "p1", "t1", "launch")
	require.NoError(t, s.Campaigns.Create(ctx, c, nil))

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counter := []entity.Counter{entity.CounterOpen, entity.CounterClick}[i%2]
			assert.NoError(t, s.Campaigns.IncrementCounter(ctx, c.ID, counter))
		}(i)
	}
	wg.Wait()

	got, err := s.Campaigns.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.OpenCount)
	assert.Equal(t, 100, got.ClickCount)
}

func TestRecipientClaimBeforeSend(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := entity.NewEmailCampaign("u1", "p1", "t1", "launch")
	require.NoError(t, s.Campaigns.Create(ctx, c, []string{"l1", "l2"}))

	assert.ErrorIs(t, s.Campaigns.MarkRecipientSent(ctx, c.ID, "l1", "a@b.co", "d-0"), entity.ErrStaleState)
	require.NoError(t, s.Campaigns.ClaimRecipient(ctx, c.ID, "l1"))
	assert.ErrorIs(t, s.Campaigns.ClaimRecipient(ctx, c.ID, "l1"), entity.ErrStaleState)
	require.NoError(t, s.Campaigns.MarkRecipientSent(ctx, c.ID, "l1", "a@b.co", "d-1"))
	assert.ErrorIs(t, s.Campaigns.MarkRecipientSent(ctx, c.ID, "l1", "a@b.co", "d-2"), entity.ErrStaleState)
	assert.ErrorIs(t, s.Campaigns.MarkRecipientFailed(ctx, c.ID, "l1", "bounce"), entity.ErrStaleState)
	assert.ErrorIs(t, s.Campaigns.ClaimRecipient(ctx, c.ID, "nope"), entity.ErrNotFound)

	pending, err := s.Campaigns.ListRecipients(ctx, c.ID, entity.RecipientPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "l2", pending[0].LeadID)

	rec, err := s.Campaigns.FindRecipient(ctx, c.ID, "l1")
	require.NoError(t, err)
	assert.Equal(t, "d-1", rec.DeliveryID)
	assert.NotNil(t, rec.ClaimedAt)
	assert.NotNil(t, rec.SentAt)
}

func TestRecipientFailsFromPendingOrClaimed(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := entity.NewEmailCampaign("u1", "p1", "t1", "launch")
	require.NoError(t, s.Campaigns.Create(ctx, c, []string{"l1", "l2"}))

	require.NoError(t, s.Campaigns.MarkRecipientFailed(ctx, c.ID, "l1", "no address"))
	require.NoError(t, s.Campaigns.ClaimRecipient(ctx, c.ID, "l2"))
	require.NoError(t, s.Campaigns.MarkRecipientFailed(ctx, c.ID, "l2", "bounce"))

	failed, err := s.Campaigns.ListRecipients(ctx, c.ID, entity.RecipientFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestListStalledCampaigns(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := entity.NewEmailCampaign("u1", "p1", "t1", "launch")
	require.NoError(t, s.Campaigns.Create(ctx, c, nil))
	draft := entity.NewEmailCampaign("u1", "p1", "t1", "draft")
	require.NoError(t, s.Campaigns.Create(ctx, draft, nil))
	_, err := s.Campaigns.TransitionStatus(ctx, c.ID,
		[]entity.CampaignStatus{entity.CampaignStatusDraft}, entity.CampaignStatusSending, "")
	require.NoError(t, err)

	stalled, err := s.Campaigns.ListStalled(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stalled)

	stalled, err = s.Campaigns.ListStalled(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, c.ID, stalled[0].ID)
}

func TestCampaignTransitionStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := entity.NewEmailCampaign("u1", "p1", "t1", "launch")
	require.NoError(t, s.Campaigns.Create(ctx, c, nil))

	_, err := s.Campaigns.TransitionStatus(ctx, c.ID,
		[]entity.CampaignStatus{entity.CampaignStatusScheduled}, entity.CampaignStatusSending, "")
	assert.ErrorIs(t, err, entity.ErrStaleState)

	_, err = s.Campaigns.TransitionStatus(ctx, c.ID,
		[]entity.CampaignStatus{entity.CampaignStatusDraft}, entity.CampaignStatusScheduled, "")
	require.NoError(t, err)
	got, err := s.Campaigns.TransitionStatus(ctx, c.ID,
		[]entity.CampaignStatus{entity.CampaignStatusScheduled}, entity.CampaignStatusSending, "")
	require.NoError(t, err)
	assert.NotNil(t, got.StartedAt)

	got, err = s.Campaigns.TransitionStatus(ctx, c.ID,
		[]entity.CampaignStatus{entity.CampaignStatusSending}, entity.CampaignStatusFailed, "smtp down")
	require.NoError(t, err)
	assert.Equal(t, "smtp down", got.FailureReason)
	assert.NotNil(t, got.CompletedAt)
}

func TestTemplateDeleteRefusedWhileReferenced(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	tpl := entity.NewEmailTemplate("u1", "intro", "Hi", "Hello")
	require.NoError(t, s.Templates.Create(ctx, tpl))
	require.NoError(t, s.Campaigns.Create(ctx, entity.NewEmailCampaign("u1", "p1", tpl.ID, "launch"), nil))

	ref, err := s.Templates.IsReferenced(ctx, tpl.ID)
	require.NoError(t, err)
	assert.True(t, ref)
	assert.ErrorIs(t, s.Templates.Delete(ctx, tpl.ID), entity.ErrReferenced)
}
