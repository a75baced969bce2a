package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/queue"
)

const maxBatchEnrich = 100

type LeadUseCase struct {
	Leads    entity.LeadRepository
	Projects entity.ProjectRepository
	Tasks    TaskPublisher
	Logger   *zap.Logger
}

func NewLeadUseCase(leads entity.LeadRepository, projects entity.ProjectRepository, tasks TaskPublisher, logger *zap.Logger) *LeadUseCase {
	return &LeadUseCase{Leads: leads, Projects: projects, Tasks: tasks, Logger: logger}
}

func (uc *LeadUseCase) Create(ctx context.Context, ownerID string, input CreateLeadInput) (*LeadOutput, error) {
	if errs := ValidateCreateLeadInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	if _, err := ownedProject(ctx, uc.Projects, ownerID, input.ProjectID); err != nil {
		return nil, err
	}

	lead := entity.NewLead(input.ProjectID, ownerID)
	lead.FirstName = strings.TrimSpace(input.FirstName)
	lead.LastName = strings.TrimSpace(input.LastName)
	lead.Title = input.Title
	lead.Email = strings.TrimSpace(input.Email)
	lead.Phone = input.Phone
	lead.LinkedInURL = input.LinkedInURL
	lead.TwitterURL = input.TwitterURL
	lead.WebsiteURL = input.WebsiteURL
	lead.Company = input.Company
	lead.CompanyDomain = strings.ToLower(strings.TrimSpace(input.CompanyDomain))
	lead.CompanySize = input.CompanySize
	lead.Industry = input.Industry
	lead.Location = input.Location
	lead.Source = input.Source
	if lead.Source == "" {
		lead.Source = "manual"
	}
	lead.Notes = input.Notes

	if err := uc.Leads.Create(ctx, lead); err != nil {
		return nil, fromRepo(err, "lead")
	}
	if err := uc.Projects.RefreshLeadCount(ctx, lead.ProjectID); err != nil {
		uc.Logger.Warn("failed to refresh project lead count", zap.String("project_id", lead.ProjectID), zap.Error(err))
	}

	out := NewLeadOutput(lead)
	return &out, nil
}

func (uc *LeadUseCase) Get(ctx context.Context, ownerID, id string) (*LeadOutput, error) {
	lead, err := uc.ownedLead(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	out := NewLeadOutput(lead)
	return &out, nil
}

func (uc *LeadUseCase) Search(ctx context.Context, ownerID string, filter entity.LeadFilter) ([]LeadOutput, error) {
	if errs := ValidateLeadFilter(filter); len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	leads, err := uc.Leads.Search(ctx, ownerID, filter.Normalize())
	if err != nil {
		return nil, technical("failed to search leads", err)
	}
	return newLeadOutputs(leads), nil
}

func (uc *LeadUseCase) Update(ctx context.Context, ownerID, id string, input UpdateLeadInput) (*LeadOutput, error) {
	if errs := ValidateUpdateLeadInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	lead, err := uc.ownedLead(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	var target entity.LeadStatus
	if input.Status != nil {
		target = entity.LeadStatus(*input.Status)
		if target != lead.Status && !entity.CanTransitionLead(lead.Status, target) {
			return nil, invalidTransition("lead cannot move from %s to %s", lead.Status, target)
		}
	}

	if applyLeadUpdate(lead, input) {
		lead.UpdatedAt = time.Now().UTC()
		if err := uc.Leads.Update(ctx, lead); err != nil {
			return nil, fromRepo(err, "lead")
		}
	}

	if target != "" && target != lead.Status {
		updated, err := uc.Leads.Transition(ctx, id, entity.ManualFrom(target), entity.LeadPatch{Status: target})
		if errors.Is(err, entity.ErrStaleState) {
			return nil, invalidTransition("lead reached a terminal status and cannot move to %s", target)
		}
		if err != nil {
			return nil, fromRepo(err, "lead")
		}
		lead = updated
	}

	out := NewLeadOutput(lead)
	return &out, nil
}

// applyLeadUpdate copies the profile fields of input onto l and reports
// whether anything was set.
func applyLeadUpdate(l *entity.Lead, in UpdateLeadInput) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
			changed = true
		}
	}
	set(&l.FirstName, in.FirstName)
	set(&l.LastName, in.LastName)
	set(&l.Title, in.Title)
	set(&l.Email, in.Email)
	set(&l.Phone, in.Phone)
	set(&l.LinkedInURL, in.LinkedInURL)
	set(&l.TwitterURL, in.TwitterURL)
	set(&l.WebsiteURL, in.WebsiteURL)
	set(&l.Company, in.Company)
	set(&l.CompanyDomain, in.CompanyDomain)
	set(&l.CompanySize, in.CompanySize)
	set(&l.Industry, in.Industry)
	set(&l.Location, in.Location)
	set(&l.Notes, in.Notes)
	l.CompanyDomain = strings.ToLower(l.CompanyDomain)
	return changed
}

func (uc *LeadUseCase) Delete(ctx context.Context, ownerID, id string) error {
	lead, err := uc.ownedLead(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := uc.Leads.SoftDelete(ctx, id); err != nil {
		return fromRepo(err, "lead")
	}
	if err := uc.Projects.RefreshLeadCount(ctx, lead.ProjectID); err != nil {
		uc.Logger.Warn("failed to refresh project lead count", zap.String("project_id", lead.ProjectID), zap.Error(err))
	}
	return nil
}

// RequestEnrich moves the lead to enriching and enqueues the enrichment. If
// the task cannot be published the lead goes back to its previous status.
func (uc *LeadUseCase) RequestEnrich(ctx context.Context, ownerID, id string) (*TaskHandle, error) {
	lead, err := uc.ownedLead(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if lead.Status == entity.LeadStatusEnriching {
		return nil, conflict("lead %s is already being enriched", id)
	}
	if !entity.CanTransitionLead(lead.Status, entity.LeadStatusEnriching) {
		return nil, invalidTransition("lead in status %s cannot be enriched", lead.Status)
	}

	previous := lead.Status
	task := queue.EnrichTask{
		TaskID:      queue.NewTaskID(),
		LeadID:      id,
		RequestedBy: ownerID,
		RequestedAt: time.Now().UTC(),
	}

	tx := NewTransaction(uc.Logger)
	tx.AddStep("mark lead enriching",
		func(ctx context.Context) error {
			cleared := ""
			_, err := uc.Leads.Transition(ctx, id, []entity.LeadStatus{previous},
				entity.LeadPatch{Status: entity.LeadStatusEnriching, FailureReason: &cleared})
			return err
		},
		func(ctx context.Context) error {
			_, err := uc.Leads.Transition(ctx, id, []entity.LeadStatus{entity.LeadStatusEnriching},
				entity.LeadPatch{Status: previous})
			return err
		},
	)
	tx.AddStep("publish enrich task",
		func(ctx context.Context) error { return uc.Tasks.PublishEnrich(ctx, task) },
		nil,
	)

	if err := tx.Execute(ctx); err != nil {
		if errors.Is(err, entity.ErrStaleState) {
			return nil, invalidTransition("lead %s changed status concurrently", id)
		}
		return nil, unavailable("failed to enqueue enrichment", err)
	}

	uc.Logger.Info("enrichment requested", zap.String("lead_id", id), zap.String("task_id", task.TaskID))
	return &TaskHandle{TaskID: task.TaskID, Kind: queue.EnrichRoute.Kind, Status: ItemQueued}, nil
}

// RequestBatchEnrich enqueues every lead independently; one lead's failure
// never fails its siblings.
func (uc *LeadUseCase) RequestBatchEnrich(ctx context.Context, ownerID string, input BatchEnrichInput) ([]EnrichItemResult, error) {
	if len(input.LeadIDs) == 0 {
		return nil, invalidField("lead_ids", "at least one lead id is required")
	}
	if len(input.LeadIDs) > maxBatchEnrich {
		return nil, invalidField("lead_ids", "at most 100 leads per batch")
	}

	seen := make(map[string]bool, len(input.LeadIDs))
	results := make([]EnrichItemResult, 0, len(input.LeadIDs))
	for _, id := range input.LeadIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		handle, err := uc.RequestEnrich(ctx, ownerID, id)
		if err != nil {
			item := EnrichItemResult{LeadID: id, Status: ItemFailed, Error: err.Error(), Code: CodeInternal}
			var de *DomainError
			var te *TechnicalError
			if errors.As(err, &de) {
				item.Code = de.Code
			} else if errors.As(err, &te) {
				item.Code = te.Code
			}
			results = append(results, item)
			continue
		}
		results = append(results, EnrichItemResult{LeadID: id, Status: ItemQueued, TaskID: handle.TaskID})
	}
	return results, nil
}

func (uc *LeadUseCase) ownedLead(ctx context.Context, ownerID, id string) (*entity.Lead, error) {
	lead, err := uc.Leads.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "lead")
	}
	if lead.OwnerID != ownerID {
		return nil, forbidden("lead")
	}
	return lead, nil
}

func ownedProject(ctx context.Context, projects entity.ProjectRepository, ownerID, id string) (*entity.Project, error) {
	p, err := projects.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "project")
	}
	if p.OwnerID != ownerID {
		return nil, forbidden("project")
	}
	return p, nil
}
