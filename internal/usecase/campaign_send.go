package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/queue"
)

// Process sends every pending recipient of a sending campaign. The campaign
// status is re-read before each recipient so a pause stops the loop.
// Per-recipient failures are recorded; a systemic provider failure fails the
// whole campaign. Returns an error only for infrastructure failures.
func (uc *CampaignUseCase) Process(ctx context.Context, campaignID string) error {
	log := uc.Logger.With(zap.String("campaign_id", campaignID))

	c, err := uc.Campaigns.FindByID(ctx, campaignID)
	if errors.Is(err, entity.ErrNotFound) {
		log.Warn("campaign vanished before processing")
		return nil
	}
	if err != nil {
		return technical("failed to load campaign", err)
	}
	if c.Status != entity.CampaignStatusSending {
		log.Info("campaign not sending, skipping task", zap.String("status", string(c.Status)))
		return nil
	}

	tpl, err := uc.Templates.FindByID(ctx, c.TemplateID)
	if errors.Is(err, entity.ErrNotFound) {
		return uc.fail(ctx, c, "template no longer exists")
	}
	if err != nil {
		return technical("failed to load template", err)
	}

	pending, err := uc.Campaigns.ListRecipients(ctx, campaignID, entity.RecipientPending)
	if err != nil {
		return technical("failed to list recipients", err)
	}

	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.LeadID)
	}
	leads, err := uc.Leads.FindByIDs(ctx, ids)
	if err != nil {
		return technical("failed to load recipient leads", err)
	}
	byID := make(map[string]*entity.Lead, len(leads))
	for _, l := range leads {
		byID[l.ID] = l
	}

	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		current, err := uc.Campaigns.FindByID(ctx, campaignID)
		if err != nil {
			return technical("failed to reload campaign", err)
		}
		if current.Status != entity.CampaignStatusSending {
			log.Info("campaign left sending, stopping", zap.String("status", string(current.Status)))
			return nil
		}

		stop, err := uc.sendOne(ctx, current, tpl, r, byID[r.LeadID])
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}

	open, err := uc.openRecipients(ctx, campaignID)
	if err != nil {
		return err
	}
	if open > 0 {
		log.Info("campaign still has open recipients", zap.Int("open", open))
		return nil
	}

	done, err := uc.Campaigns.TransitionStatus(ctx, campaignID,
		[]entity.CampaignStatus{entity.CampaignStatusSending}, entity.CampaignStatusSent, "")
	if errors.Is(err, entity.ErrStaleState) {
		log.Info("campaign changed status before completion")
		return nil
	}
	if err != nil {
		return technical("failed to complete campaign", err)
	}
	log.Info("campaign sent", zap.Int("sent", done.SentCount), zap.Int("failed", done.FailedCount))
	return nil
}

// sendOne claims and delivers to one recipient. stop reports a systemic
// failure that ended the campaign.
func (uc *CampaignUseCase) sendOne(ctx context.Context, c *entity.EmailCampaign, tpl *entity.EmailTemplate, r *entity.CampaignRecipient, lead *entity.Lead) (bool, error) {
	if err := uc.Campaigns.ClaimRecipient(ctx, c.ID, r.LeadID); err != nil {
		if errors.Is(err, entity.ErrStaleState) || errors.Is(err, entity.ErrNotFound) {
			uc.Logger.Debug("recipient claimed elsewhere", zap.String("campaign_id", c.ID), zap.String("lead_id", r.LeadID))
			return false, nil
		}
		return false, technical("failed to claim recipient", err)
	}

	if lead == nil {
		return false, uc.recordFailure(ctx, c, r.LeadID, "lead was deleted")
	}
	address := lead.ContactAddress()
	if address == "" {
		return false, uc.recordFailure(ctx, c, lead.ID, "lead is not contactable")
	}

	subject, body, err := renderEmail(tpl, lead)
	if err != nil {
		return false, uc.recordFailure(ctx, c, lead.ID, err.Error())
	}

	msg := entity.OutgoingEmail{
		From:    c.FromEmail,
		ReplyTo: c.ReplyTo,
		To:      address,
		Subject: subject,
		Body:    body,
		Headers: map[string]string{
			"X-Campaign-ID": c.ID,
			"X-Lead-ID":     lead.ID,
		},
	}
	if uc.Signer != nil {
		msg.PixelURL = uc.Signer.PixelURL(c.ID, lead.ID)
	}

	sendCtx := ctx
	if uc.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, uc.SendTimeout)
		defer cancel()
	}
	deliveryID, err := uc.Provider.Send(sendCtx, msg)
	if err != nil && ctx.Err() != nil {
		// shutting down; the claim is resolved by RecoverStalled
		return false, ctx.Err()
	}

	var systemic *entity.SystemicError
	switch {
	case errors.As(err, &systemic):
		if err := uc.recordFailure(ctx, c, lead.ID, systemic.Error()); err != nil {
			return false, err
		}
		return true, uc.fail(ctx, c, systemic.Error())
	case err != nil:
		return false, uc.recordFailure(ctx, c, lead.ID, err.Error())
	}

	if err := uc.Campaigns.MarkRecipientSent(ctx, c.ID, lead.ID, address, deliveryID); err != nil {
		if errors.Is(err, entity.ErrStaleState) {
			uc.Logger.Warn("recipient resolved while sending", zap.String("campaign_id", c.ID), zap.String("lead_id", lead.ID))
			return false, nil
		}
		return false, technical("failed to mark recipient sent", err)
	}
	if err := uc.Campaigns.IncrementCounter(ctx, c.ID, entity.CounterSent); err != nil {
		return false, technical("failed to count send", err)
	}
	if err := uc.Projects.IncrementEmailSent(ctx, c.ProjectID); err != nil {
		uc.Logger.Warn("failed to count project send", zap.String("project_id", c.ProjectID), zap.Error(err))
	}
	if _, err := uc.Leads.Transition(ctx, lead.ID, entity.ContactableFrom,
		entity.LeadPatch{Status: entity.LeadStatusContacted}); err != nil && !errors.Is(err, entity.ErrStaleState) {
		uc.Logger.Warn("failed to mark lead contacted", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	uc.Metrics.RecordEmail(EmailSent)
	return false, nil
}

func (uc *CampaignUseCase) recordFailure(ctx context.Context, c *entity.EmailCampaign, leadID, reason string) error {
	uc.Logger.Info("recipient failed", zap.String("campaign_id", c.ID), zap.String("lead_id", leadID), zap.String("reason", reason))
	if err := uc.Campaigns.MarkRecipientFailed(ctx, c.ID, leadID, reason); err != nil {
		if errors.Is(err, entity.ErrStaleState) {
			return nil
		}
		return technical("failed to record recipient failure", err)
	}
	if err := uc.Campaigns.IncrementCounter(ctx, c.ID, entity.CounterFailed); err != nil {
		return technical("failed to count failure", err)
	}
	uc.Metrics.RecordEmail(EmailFailed)
	return nil
}

func (uc *CampaignUseCase) fail(ctx context.Context, c *entity.EmailCampaign, reason string) error {
	_, err := uc.Campaigns.TransitionStatus(ctx, c.ID,
		[]entity.CampaignStatus{entity.CampaignStatusSending}, entity.CampaignStatusFailed, reason)
	if err != nil && !errors.Is(err, entity.ErrStaleState) {
		return technical("failed to mark campaign failed", err)
	}
	uc.Logger.Error("campaign failed", zap.String("campaign_id", c.ID), zap.String("reason", reason))
	return nil
}

// openRecipients counts recipients not yet sent or failed, including those
// claimed by a concurrent run.
func (uc *CampaignUseCase) openRecipients(ctx context.Context, campaignID string) (int, error) {
	all, err := uc.Campaigns.ListRecipients(ctx, campaignID, "")
	if err != nil {
		return 0, technical("failed to list recipients", err)
	}
	n := 0
	for _, r := range all {
		if r.Status.IsOpen() {
			n++
		}
	}
	return n, nil
}

// RecoverStalled re-enqueues sending campaigns that made no progress since
// idleSince. Recipients claimed before idleSince belong to a worker that
// died mid-send; they are failed rather than resent because the provider
// may already have delivered them. Returns the number of campaigns
// re-enqueued.
func (uc *CampaignUseCase) RecoverStalled(ctx context.Context, idleSince time.Time) (int, error) {
	stalled, err := uc.Campaigns.ListStalled(ctx, idleSince)
	if err != nil {
		return 0, technical("failed to list stalled campaigns", err)
	}
	recovered := 0
	for _, c := range stalled {
		log := uc.Logger.With(zap.String("campaign_id", c.ID))
		if err := uc.releaseClaims(ctx, c, idleSince); err != nil {
			log.Warn("failed to release stale claims", zap.Error(err))
			continue
		}
		// bump updated_at so the next sweep waits for this task
		if _, err := uc.Campaigns.TransitionStatus(ctx, c.ID,
			[]entity.CampaignStatus{entity.CampaignStatusSending}, entity.CampaignStatusSending, ""); err != nil {
			if !errors.Is(err, entity.ErrStaleState) {
				log.Warn("failed to touch stalled campaign", zap.Error(err))
			}
			continue
		}
		task := queue.CampaignTask{TaskID: queue.NewTaskID(), CampaignID: c.ID, RequestedAt: time.Now().UTC()}
		if err := uc.Tasks.PublishCampaign(ctx, task); err != nil {
			log.Warn("failed to re-enqueue stalled campaign", zap.Error(err))
			continue
		}
		log.Info("stalled campaign re-enqueued", zap.String("task_id", task.TaskID))
		recovered++
	}
	return recovered, nil
}

func (uc *CampaignUseCase) releaseClaims(ctx context.Context, c *entity.EmailCampaign, idleSince time.Time) error {
	claimed, err := uc.Campaigns.ListRecipients(ctx, c.ID, entity.RecipientSending)
	if err != nil {
		return technical("failed to list claimed recipients", err)
	}
	for _, r := range claimed {
		if r.ClaimedAt != nil && r.ClaimedAt.After(idleSince) {
			continue
		}
		if err := uc.recordFailure(ctx, c, r.LeadID, "worker stopped mid-send, delivery outcome unknown"); err != nil {
			return err
		}
	}
	return nil
}
