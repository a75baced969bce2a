package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/queue"
)

const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

type CampaignUseCase struct {
	Campaigns   entity.CampaignRepository
	Templates   entity.TemplateRepository
	Projects    entity.ProjectRepository
	Leads       entity.LeadRepository
	Provider    entity.EmailProvider
	Tasks       TaskPublisher
	Signer      *Signer
	SendTimeout time.Duration
	Metrics     Metrics
	Logger      *zap.Logger
}

func NewCampaignUseCase(
	campaigns entity.CampaignRepository,
	templates entity.TemplateRepository,
	projects entity.ProjectRepository,
	leads entity.LeadRepository,
	provider entity.EmailProvider,
	tasks TaskPublisher,
	signer *Signer,
	sendTimeout time.Duration,
	metrics Metrics,
	logger *zap.Logger,
) *CampaignUseCase {
	return &CampaignUseCase{
		Campaigns:   campaigns,
		Templates:   templates,
		Projects:    projects,
		Leads:       leads,
		Provider:    provider,
		Tasks:       tasks,
		Signer:      signer,
		SendTimeout: sendTimeout,
		Metrics:     metricsOrNop(metrics),
		Logger:      logger,
	}
}

func (uc *CampaignUseCase) Create(ctx context.Context, creatorID string, input CampaignInput) (*CampaignOutput, error) {
	if errs := ValidateCampaignInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	if _, err := ownedProject(ctx, uc.Projects, creatorID, input.ProjectID); err != nil {
		return nil, err
	}
	if input.TemplateID != "" {
		if _, err := ownedTemplate(ctx, uc.Templates, creatorID, input.TemplateID); err != nil {
			return nil, err
		}
	}
	leadIDs, err := uc.checkLeads(ctx, input.ProjectID, input.LeadIDs)
	if err != nil {
		return nil, err
	}

	c := entity.NewEmailCampaign(creatorID, input.ProjectID, input.TemplateID, input.Name)
	c.Description = input.Description
	c.FromEmail = input.FromEmail
	c.ReplyTo = input.ReplyTo
	c.ScheduledAt = utcPtr(input.ScheduledAt)

	if err := uc.Campaigns.Create(ctx, c, leadIDs); err != nil {
		return nil, fromRepo(err, "campaign")
	}
	return &CampaignOutput{EmailCampaign: c, RecipientCount: len(leadIDs), PendingCount: len(leadIDs)}, nil
}

func (uc *CampaignUseCase) Get(ctx context.Context, creatorID, id string) (*CampaignOutput, error) {
	c, err := uc.owned(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	return uc.output(ctx, c)
}

func (uc *CampaignUseCase) List(ctx context.Context, creatorID, projectID string) ([]*entity.EmailCampaign, error) {
	campaigns, err := uc.Campaigns.List(ctx, creatorID, projectID)
	if err != nil {
		return nil, technical("failed to list campaigns", err)
	}
	return campaigns, nil
}

// Update edits a draft or scheduled campaign. A scheduled campaign keeps its
// status but must still satisfy the scheduling requirements.
func (uc *CampaignUseCase) Update(ctx context.Context, creatorID, id string, input CampaignInput) (*CampaignOutput, error) {
	if errs := ValidateCampaignInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	c, err := uc.owned(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.IsEditable() {
		return nil, invalidTransition("campaign in status %s cannot be edited", c.Status)
	}
	if input.ProjectID != c.ProjectID {
		return nil, invalidField("project_id", "cannot be changed")
	}
	if input.TemplateID != "" && input.TemplateID != c.TemplateID {
		if _, err := ownedTemplate(ctx, uc.Templates, creatorID, input.TemplateID); err != nil {
			return nil, err
		}
	}

	c.Name = input.Name
	c.Description = input.Description
	c.TemplateID = input.TemplateID
	c.FromEmail = input.FromEmail
	c.ReplyTo = input.ReplyTo
	c.ScheduledAt = utcPtr(input.ScheduledAt)
	c.UpdatedAt = time.Now().UTC()

	recipients := -1
	if input.LeadIDs != nil {
		leadIDs, err := uc.checkLeads(ctx, c.ProjectID, input.LeadIDs)
		if err != nil {
			return nil, err
		}
		recipients = len(leadIDs)
		if c.Status == entity.CampaignStatusScheduled {
			if errs := validateSchedulable(c, recipients); len(errs) > 0 {
				return nil, validationFailed(errs)
			}
		}
		if err := uc.Campaigns.ReplaceRecipients(ctx, id, leadIDs); err != nil {
			return nil, fromRepo(err, "campaign")
		}
	}
	if c.Status == entity.CampaignStatusScheduled && recipients < 0 {
		existing, err := uc.Campaigns.ListRecipients(ctx, id, "")
		if err != nil {
			return nil, technical("failed to list recipients", err)
		}
		if errs := validateSchedulable(c, len(existing)); len(errs) > 0 {
			return nil, validationFailed(errs)
		}
	}

	if err := uc.Campaigns.Update(ctx, c); err != nil {
		return nil, fromRepo(err, "campaign")
	}
	return uc.output(ctx, c)
}

func (uc *CampaignUseCase) Delete(ctx context.Context, creatorID, id string) error {
	c, err := uc.owned(ctx, creatorID, id)
	if err != nil {
		return err
	}
	if c.Status == entity.CampaignStatusSending || c.Status == entity.CampaignStatusPaused {
		return conflict("campaign in status %s cannot be deleted", c.Status)
	}
	if err := uc.Campaigns.Delete(ctx, id); err != nil {
		return fromRepo(err, "campaign")
	}
	return nil
}

// Schedule moves a draft to scheduled. scheduledAt overrides the stored
// start time when given.
func (uc *CampaignUseCase) Schedule(ctx context.Context, creatorID, id string, scheduledAt *time.Time) (*CampaignOutput, error) {
	c, err := uc.owned(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	if err := uc.schedule(ctx, c, scheduledAt); err != nil {
		return nil, err
	}
	return uc.output(ctx, c)
}

func (uc *CampaignUseCase) schedule(ctx context.Context, c *entity.EmailCampaign, scheduledAt *time.Time) error {
	if c.Status != entity.CampaignStatusDraft {
		return invalidTransition("campaign in status %s cannot be scheduled", c.Status)
	}

	if c.TemplateID != "" {
		if _, err := ownedTemplate(ctx, uc.Templates, c.CreatorID, c.TemplateID); err != nil {
			return err
		}
	}
	recipients, err := uc.Campaigns.ListRecipients(ctx, c.ID, "")
	if err != nil {
		return technical("failed to list recipients", err)
	}
	leadIDs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		leadIDs = append(leadIDs, r.LeadID)
	}
	if _, err := uc.checkLeads(ctx, c.ProjectID, leadIDs); err != nil {
		return err
	}
	if errs := validateSchedulable(c, len(recipients)); len(errs) > 0 {
		return validationFailed(errs)
	}

	if scheduledAt != nil {
		c.ScheduledAt = utcPtr(scheduledAt)
		c.UpdatedAt = time.Now().UTC()
		if err := uc.Campaigns.Update(ctx, c); err != nil {
			return fromRepo(err, "campaign")
		}
	}

	updated, err := uc.Campaigns.TransitionStatus(ctx, c.ID,
		[]entity.CampaignStatus{entity.CampaignStatusDraft}, entity.CampaignStatusScheduled, "")
	if err != nil {
		return fromRepo(err, "campaign")
	}
	*c = *updated
	return nil
}

// Start begins sending now. A draft is scheduled first.
func (uc *CampaignUseCase) Start(ctx context.Context, creatorID, id string) (*CampaignOutput, error) {
	c, err := uc.owned(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	if c.Status == entity.CampaignStatusDraft {
		if err := uc.schedule(ctx, c, nil); err != nil {
			return nil, err
		}
	}
	if c.Status != entity.CampaignStatusScheduled {
		return nil, invalidTransition("campaign in status %s cannot be started", c.Status)
	}
	if err := uc.begin(ctx, c, entity.CampaignStatusScheduled); err != nil {
		return nil, err
	}
	return uc.output(ctx, c)
}

func (uc *CampaignUseCase) Pause(ctx context.Context, creatorID, id string) (*CampaignOutput, error) {
	c, err := uc.owned(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != entity.CampaignStatusSending {
		return nil, invalidTransition("campaign in status %s cannot be paused", c.Status)
	}
	updated, err := uc.Campaigns.TransitionStatus(ctx, id,
		[]entity.CampaignStatus{entity.CampaignStatusSending}, entity.CampaignStatusPaused, "")
	if err != nil {
		return nil, fromRepo(err, "campaign")
	}
	uc.Logger.Info("campaign paused", zap.String("campaign_id", id))
	return uc.output(ctx, updated)
}

func (uc *CampaignUseCase) Resume(ctx context.Context, creatorID, id string) (*CampaignOutput, error) {
	c, err := uc.owned(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != entity.CampaignStatusPaused {
		return nil, invalidTransition("campaign in status %s cannot be resumed", c.Status)
	}
	if err := uc.begin(ctx, c, entity.CampaignStatusPaused); err != nil {
		return nil, err
	}
	return uc.output(ctx, c)
}

func (uc *CampaignUseCase) Recipients(ctx context.Context, creatorID, id string, status entity.RecipientStatus) ([]*entity.CampaignRecipient, error) {
	if _, err := uc.owned(ctx, creatorID, id); err != nil {
		return nil, err
	}
	switch status {
	case "", entity.RecipientPending, entity.RecipientSending, entity.RecipientSent, entity.RecipientFailed:
	default:
		return nil, invalidField("status", "must be pending, sending, sent or failed")
	}
	recipients, err := uc.Campaigns.ListRecipients(ctx, id, status)
	if err != nil {
		return nil, technical("failed to list recipients", err)
	}
	return recipients, nil
}

// DispatchDue starts every scheduled campaign whose start time has passed.
func (uc *CampaignUseCase) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.Campaigns.ListDue(ctx, now)
	if err != nil {
		return 0, technical("failed to list due campaigns", err)
	}
	started := 0
	for _, c := range due {
		if err := uc.begin(ctx, c, entity.CampaignStatusScheduled); err != nil {
			uc.Logger.Warn("failed to start due campaign", zap.String("campaign_id", c.ID), zap.Error(err))
			continue
		}
		started++
	}
	return started, nil
}

// begin moves the campaign from `from` to sending and enqueues the send
// task, reverting the status if the task cannot be published.
func (uc *CampaignUseCase) begin(ctx context.Context, c *entity.EmailCampaign, from entity.CampaignStatus) error {
	task := queue.CampaignTask{TaskID: queue.NewTaskID(), CampaignID: c.ID, RequestedAt: time.Now().UTC()}

	var updated *entity.EmailCampaign
	tx := NewTransaction(uc.Logger)
	tx.AddStep("mark campaign sending",
		func(ctx context.Context) error {
			var err error
			updated, err = uc.Campaigns.TransitionStatus(ctx, c.ID,
				[]entity.CampaignStatus{from}, entity.CampaignStatusSending, "")
			return err
		},
		func(ctx context.Context) error {
			_, err := uc.Campaigns.TransitionStatus(ctx, c.ID,
				[]entity.CampaignStatus{entity.CampaignStatusSending}, from, "")
			return err
		},
	)
	tx.AddStep("publish campaign task",
		func(ctx context.Context) error { return uc.Tasks.PublishCampaign(ctx, task) },
		nil,
	)

	if err := tx.Execute(ctx); err != nil {
		if errors.Is(err, entity.ErrStaleState) {
			return invalidTransition("campaign %s changed status concurrently", c.ID)
		}
		return unavailable("failed to enqueue campaign", err)
	}
	*c = *updated
	uc.Logger.Info("campaign sending", zap.String("campaign_id", c.ID), zap.String("task_id", task.TaskID))
	return nil
}

// checkLeads returns the de-duplicated lead ids after verifying each one is a
// live lead of the project.
func (uc *CampaignUseCase) checkLeads(ctx context.Context, projectID string, ids []string) ([]string, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return unique, nil
	}

	leads, err := uc.Leads.FindByIDs(ctx, unique)
	if err != nil {
		return nil, technical("failed to load leads", err)
	}
	found := make(map[string]*entity.Lead, len(leads))
	for _, l := range leads {
		found[l.ID] = l
	}

	var errs []ValidationError
	for _, id := range unique {
		l, ok := found[id]
		switch {
		case !ok:
			errs = append(errs, ValidationError{"lead_ids", "lead " + id + " does not exist"})
		case l.ProjectID != projectID:
			errs = append(errs, ValidationError{"lead_ids", "lead " + id + " belongs to another project"})
		}
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	return unique, nil
}

func (uc *CampaignUseCase) owned(ctx context.Context, creatorID, id string) (*entity.EmailCampaign, error) {
	c, err := uc.Campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "campaign")
	}
	if c.CreatorID != creatorID {
		return nil, forbidden("campaign")
	}
	return c, nil
}

func (uc *CampaignUseCase) output(ctx context.Context, c *entity.EmailCampaign) (*CampaignOutput, error) {
	all, err := uc.Campaigns.ListRecipients(ctx, c.ID, "")
	if err != nil {
		return nil, technical("failed to list recipients", err)
	}
	out := &CampaignOutput{EmailCampaign: c, RecipientCount: len(all)}
	for _, r := range all {
		if r.Status.IsOpen() {
			out.PendingCount++
		}
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
