package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadforge/internal/entity"
)

func (f *fixture) template(t *testing.T) *entity.EmailTemplate {
	t.Helper()
	tpl, err := f.templates.Create(context.Background(), owner, TemplateInput{
		Name:    "Intro",
		Subject: "Hi {{.FirstName}}",
		Body:    "Hello {{.FirstName}} at {{.Company}}",
	})
	require.NoError(t, err)
	return tpl
}

func (f *fixture) campaign(t *testing.T, leads ...*entity.Lead) *CampaignOutput {
	t.Helper()
	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	out, err := f.campaigns.Create(context.Background(), owner, CampaignInput{
		Name:       "Q3 outreach",
		ProjectID:  f.project.ID,
		TemplateID: f.template(t).ID,
		FromEmail:  "sales@leadforge.io",
		LeadIDs:    ids,
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) campaignStatus(t *testing.T, id string) *entity.EmailCampaign {
	t.Helper()
	c, err := f.store.Campaigns.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// TestCampaign_StartAndProcess - every contactable recipient is sent once and the campaign completes
func TestCampaign_StartAndProcess(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com", Company: "Acme"})
	bruno := f.lead(t, CreateLeadInput{FirstName: "Bruno", LastName: "Costa"})
	c := f.campaign(t, ana, bruno)
	assert.Equal(t, 2, c.RecipientCount)

	f.provider.On("Send", mock.Anything, mock.MatchedBy(func(m entity.OutgoingEmail) bool {
		return m.To == "ana@acme.com" && m.Subject == "Hi Ana" && m.Body == "Hello Ana at Acme" &&
			m.PixelURL != "" && m.Headers["X-Campaign-ID"] == c.ID
	})).Return("delivery-1", nil).Once()

	started, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusSending, started.Status)
	require.Len(t, f.tasks.campaigns, 1)

	require.NoError(t, f.campaigns.Process(context.Background(), f.tasks.campaigns[0].CampaignID))

	done := f.campaignStatus(t, c.ID)
	assert.Equal(t, entity.CampaignStatusSent, done.Status)
	assert.Equal(t, 1, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)
	assert.NotNil(t, done.CompletedAt)

	rec, err := f.store.Campaigns.FindRecipient(context.Background(), c.ID, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RecipientSent, rec.Status)
	assert.Equal(t, "delivery-1", rec.DeliveryID)

	failed, err := f.store.Campaigns.FindRecipient(context.Background(), c.ID, bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RecipientFailed, failed.Status)
	assert.Contains(t, failed.Error, "not contactable")

	assert.Equal(t, entity.LeadStatusContacted, f.reload(t, ana.ID).Status)
	p, err := f.store.Projects.FindByID(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.EmailSentCount)
	f.provider.AssertExpectations(t)

	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))
	f.provider.AssertNumberOfCalls(t, "Send", 1)
}

// TestCampaign_SendErrorIsPerRecipient - one rejected address does not stop the campaign
func TestCampaign_SendErrorIsPerRecipient(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	bia := f.lead(t, CreateLeadInput{FirstName: "Bia", Email: "bia@acme.com"})
	c := f.campaign(t, ana, bia)

	f.provider.On("Send", mock.Anything, mock.MatchedBy(func(m entity.OutgoingEmail) bool { return m.To == "ana@acme.com" })).
		Return("", &entity.SendError{Recipient: "ana@acme.com", Reason: "mailbox unavailable"})
	f.provider.On("Send", mock.Anything, mock.MatchedBy(func(m entity.OutgoingEmail) bool { return m.To == "bia@acme.com" })).
		Return("d-2", nil)

	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)
	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))

	done := f.campaignStatus(t, c.ID)
	assert.Equal(t, entity.CampaignStatusSent, done.Status)
	assert.Equal(t, 1, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)
	assert.Equal(t, entity.LeadStatusNew, f.reload(t, ana.ID).Status)
}

// TestCampaign_SystemicErrorFailsCampaign - a provider outage stops sending and leaves the rest pending
func TestCampaign_SystemicErrorFailsCampaign(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	bia := f.lead(t, CreateLeadInput{FirstName: "Bia", Email: "bia@acme.com"})
	c := f.campaign(t, ana, bia)

	f.provider.On("Send", mock.Anything, mock.MatchedBy(sentTo("ana@acme.com"))).
		Return("", &entity.SystemicError{Provider: "smtp", Err: errors.New("auth failed")}).Once()

	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)
	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))

	done := f.campaignStatus(t, c.ID)
	assert.Equal(t, entity.CampaignStatusFailed, done.Status)
	assert.Contains(t, done.FailureReason, "auth failed")
	assert.Equal(t, 0, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)

	attempted, err := f.store.Campaigns.FindRecipient(context.Background(), c.ID, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RecipientFailed, attempted.Status)

	pending, err := f.store.Campaigns.ListRecipients(context.Background(), c.ID, entity.RecipientPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	f.provider.AssertNumberOfCalls(t, "Send", 1)
}

// TestCampaign_PauseStopsAndResumeFinishes - pause takes effect before the next recipient
func TestCampaign_PauseStopsAndResumeFinishes(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	bia := f.lead(t, CreateLeadInput{FirstName: "Bia", Email: "bia@acme.com"})
	c := f.campaign(t, ana, bia)
	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)

	f.provider.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, err := f.campaigns.Pause(context.Background(), owner, c.ID)
			require.NoError(t, err)
		}).
		Return("d-1", nil).Once()

	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))

	paused := f.campaignStatus(t, c.ID)
	assert.Equal(t, entity.CampaignStatusPaused, paused.Status)
	assert.Equal(t, 1, paused.SentCount)

	f.provider.On("Send", mock.Anything, mock.Anything).Return("d-2", nil).Once()
	resumed, err := f.campaigns.Resume(context.Background(), owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CampaignStatusSending, resumed.Status)
	assert.Equal(t, 1, resumed.PendingCount)

	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))
	done := f.campaignStatus(t, c.ID)
	assert.Equal(t, entity.CampaignStatusSent, done.Status)
	assert.Equal(t, 2, done.SentCount)
	f.provider.AssertNumberOfCalls(t, "Send", 2)
}

func sentTo(address string) func(entity.OutgoingEmail) bool {
	return func(m entity.OutgoingEmail) bool { return m.To == address }
}

// TestCampaign_OverlappingRunsSendOnce - a pause, resume and second run during a send never resend a recipient
func TestCampaign_OverlappingRunsSendOnce(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	bia := f.lead(t, CreateLeadInput{FirstName: "Bia", Email: "bia@acme.com"})
	c := f.campaign(t, ana, bia)
	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)

	sends := map[string]int{}
	f.provider.On("Send", mock.Anything, mock.MatchedBy(sentTo("ana@acme.com"))).
		Run(func(args mock.Arguments) {
			sends["ana@acme.com"]++
			if sends["ana@acme.com"] > 1 {
				return
			}
			_, err := f.campaigns.Pause(context.Background(), owner, c.ID)
			require.NoError(t, err)
			_, err = f.campaigns.Resume(context.Background(), owner, c.ID)
			require.NoError(t, err)
			require.NoError(t, f.campaigns.Process(context.Background(), c.ID))
		}).
		Return("d-ana", nil)
	f.provider.On("Send", mock.Anything, mock.MatchedBy(sentTo("bia@acme.com"))).
		Run(func(mock.Arguments) { sends["bia@acme.com"]++ }).
		Return("d-bia", nil)

	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))

	assert.Equal(t, map[string]int{"ana@acme.com": 1, "bia@acme.com": 1}, sends)
	done := f.campaignStatus(t, c.ID)
	assert.Equal(t, entity.CampaignStatusSent, done.Status)
	assert.Equal(t, 2, done.SentCount)
	assert.Equal(t, 0, done.FailedCount)
}

// TestCampaign_ShutdownLeavesClaim - a cancelled run keeps the recipient claimed and the campaign sending
func TestCampaign_ShutdownLeavesClaim(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	c := f.campaign(t, ana)
	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.provider.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled).Once()

	err = f.campaigns.Process(ctx, c.ID)
	require.ErrorIs(t, err, context.Canceled)

	rec, err := f.store.Campaigns.FindRecipient(context.Background(), c.ID, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RecipientSending, rec.Status)
	assert.Equal(t, entity.CampaignStatusSending, f.campaignStatus(t, c.ID).Status)
}

// TestCampaign_RecoverStalled - stale claims fail without a resend and the campaign is re-enqueued to finish
func TestCampaign_RecoverStalled(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	bia := f.lead(t, CreateLeadInput{FirstName: "Bia", Email: "bia@acme.com"})
	c := f.campaign(t, ana, bia)
	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)
	require.Len(t, f.tasks.campaigns, 1)

	// a worker died after claiming ana
	require.NoError(t, f.store.Campaigns.ClaimRecipient(context.Background(), c.ID, ana.ID))

	n, err := f.campaigns.RecoverStalled(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.campaigns.RecoverStalled(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.tasks.campaigns, 2)
	assert.Equal(t, c.ID, f.tasks.campaigns[1].CampaignID)

	lost, err := f.store.Campaigns.FindRecipient(context.Background(), c.ID, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RecipientFailed, lost.Status)
	assert.Contains(t, lost.Error, "outcome unknown")

	f.provider.On("Send", mock.Anything, mock.MatchedBy(sentTo("bia@acme.com"))).Return("d-bia", nil).Once()
	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))

	done := f.campaignStatus(t, c.ID)
	assert.Equal(t, entity.CampaignStatusSent, done.Status)
	assert.Equal(t, 1, done.SentCount)
	assert.Equal(t, 1, done.FailedCount)
	f.provider.AssertNumberOfCalls(t, "Send", 1)
}

// TestCampaign_StartRevertsWhenPublishFails - status goes back to scheduled
func TestCampaign_StartRevertsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	c := f.campaign(t, ana)
	f.tasks.err = errors.New("broker unreachable")

	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.Error(t, err)
	assert.True(t, IsTechnicalError(err))
	assert.Equal(t, entity.CampaignStatusScheduled, f.campaignStatus(t, c.ID).Status)
}

// TestCampaign_ScheduleRequirements - template, sender and recipients are required
func TestCampaign_ScheduleRequirements(t *testing.T) {
	f := newFixture(t)
	c, err := f.campaigns.Create(context.Background(), owner, CampaignInput{Name: "Empty", ProjectID: f.project.ID})
	require.NoError(t, err)

	_, err = f.campaigns.Schedule(context.Background(), owner, c.ID, nil)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CodeValidation, de.Code)
	assert.Len(t, de.Fields, 3)
	assert.Equal(t, entity.CampaignStatusDraft, f.campaignStatus(t, c.ID).Status)
}

// TestCampaign_LeadsMustBelongToProject - recipients from another project are rejected
func TestCampaign_LeadsMustBelongToProject(t *testing.T) {
	f := newFixture(t)
	other, err := f.projects.Create(context.Background(), owner, ProjectInput{Name: "Other"})
	require.NoError(t, err)
	foreign, err := f.leads.Create(context.Background(), owner, CreateLeadInput{ProjectID: other.ID, FirstName: "Zé", Email: "ze@x.com"})
	require.NoError(t, err)

	_, err = f.campaigns.Create(context.Background(), owner, CampaignInput{
		Name: "Mixed", ProjectID: f.project.ID, LeadIDs: []string{foreign.ID, "ghost"},
	})
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CodeValidation, de.Code)
	assert.Len(t, de.Fields, 2)
}

// TestCampaign_EditAndDeleteRules - only draft/scheduled edit, sending cannot be deleted
func TestCampaign_EditAndDeleteRules(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	c := f.campaign(t, ana)
	_, err := f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)

	_, err = f.campaigns.Update(context.Background(), owner, c.ID, CampaignInput{Name: "Renamed", ProjectID: f.project.ID})
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CodeInvalidTransition, de.Code)

	err = f.campaigns.Delete(context.Background(), owner, c.ID)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CodeConflict, de.Code)

	_, err = f.campaigns.Start(context.Background(), owner, c.ID)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CodeInvalidTransition, de.Code)
}

// TestCampaign_DispatchDue - only scheduled campaigns whose time has passed start
func TestCampaign_DispatchDue(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	now := time.Now().UTC()

	due := f.campaign(t, ana)
	past := now.Add(-time.Minute)
	_, err := f.campaigns.Schedule(context.Background(), owner, due.ID, &past)
	require.NoError(t, err)

	later := f.campaign(t, ana)
	future := now.Add(time.Hour)
	_, err = f.campaigns.Schedule(context.Background(), owner, later.ID, &future)
	require.NoError(t, err)

	n, err := f.campaigns.DispatchDue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.CampaignStatusSending, f.campaignStatus(t, due.ID).Status)
	assert.Equal(t, entity.CampaignStatusScheduled, f.campaignStatus(t, later.ID).Status)
}

// TestCampaign_QualifiedLeadKeepsStatus - sending never demotes a lead past contacted
func TestCampaign_QualifiedLeadKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ana := f.lead(t, CreateLeadInput{FirstName: "Ana", Email: "ana@acme.com"})
	_, err := f.leads.Update(context.Background(), owner, ana.ID, UpdateLeadInput{Status: strPtr("qualified")})
	require.NoError(t, err)
	c := f.campaign(t, ana)
	f.provider.On("Send", mock.Anything, mock.Anything).Return("d-1", nil)

	_, err = f.campaigns.Start(context.Background(), owner, c.ID)
	require.NoError(t, err)
	require.NoError(t, f.campaigns.Process(context.Background(), c.ID))

	assert.Equal(t, entity.LeadStatusQualified, f.reload(t, ana.ID).Status)
	assert.Equal(t, entity.CampaignStatusSent, f.campaignStatus(t, c.ID).Status)
}
