package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
)

const sampleLeadsForGeneration = 5

type TemplateUseCase struct {
	Templates entity.TemplateRepository
	Projects  entity.ProjectRepository
	Leads     entity.LeadRepository
	Generator entity.TemplateGenerator
	Timeout   time.Duration
	Logger    *zap.Logger
}

func NewTemplateUseCase(
	templates entity.TemplateRepository,
	projects entity.ProjectRepository,
	leads entity.LeadRepository,
	generator entity.TemplateGenerator,
	timeout time.Duration,
	logger *zap.Logger,
) *TemplateUseCase {
	return &TemplateUseCase{
		Templates: templates,
		Projects:  projects,
		Leads:     leads,
		Generator: generator,
		Timeout:   timeout,
		Logger:    logger,
	}
}

func (uc *TemplateUseCase) Create(ctx context.Context, ownerID string, input TemplateInput) (*entity.EmailTemplate, error) {
	if errs := ValidateTemplateInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	t := entity.NewEmailTemplate(ownerID, input.Name, input.Subject, input.Body)
	if err := uc.Templates.Create(ctx, t); err != nil {
		return nil, fromRepo(err, "template")
	}
	return t, nil
}

func (uc *TemplateUseCase) Get(ctx context.Context, ownerID, id string) (*entity.EmailTemplate, error) {
	return ownedTemplate(ctx, uc.Templates, ownerID, id)
}

func (uc *TemplateUseCase) List(ctx context.Context, ownerID string) ([]*entity.EmailTemplate, error) {
	templates, err := uc.Templates.List(ctx, ownerID)
	if err != nil {
		return nil, technical("failed to list templates", err)
	}
	return templates, nil
}

func (uc *TemplateUseCase) Update(ctx context.Context, ownerID, id string, input TemplateInput) (*entity.EmailTemplate, error) {
	if errs := ValidateTemplateInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	t, err := ownedTemplate(ctx, uc.Templates, ownerID, id)
	if err != nil {
		return nil, err
	}
	t.Name = input.Name
	t.Subject = input.Subject
	t.Body = input.Body
	t.UpdatedAt = time.Now().UTC()
	if err := uc.Templates.Update(ctx, t); err != nil {
		return nil, fromRepo(err, "template")
	}
	return t, nil
}

// Delete refuses while any campaign still references the template.
func (uc *TemplateUseCase) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := ownedTemplate(ctx, uc.Templates, ownerID, id); err != nil {
		return err
	}
	referenced, err := uc.Templates.IsReferenced(ctx, id)
	if err != nil {
		return technical("failed to check template references", err)
	}
	if referenced {
		return conflict("template %s is used by a campaign", id)
	}
	if err := uc.Templates.Delete(ctx, id); err != nil {
		return fromRepo(err, "template")
	}
	return nil
}

// Generate asks the language model for a template tailored to a sample of
// the project's leads and stores it as AI generated.
func (uc *TemplateUseCase) Generate(ctx context.Context, ownerID string, input GenerateTemplateInput) (*entity.EmailTemplate, error) {
	if uc.Generator == nil {
		return nil, unavailable("template generation is not configured", nil)
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, invalidField("project_id", "is required")
	}
	project, err := ownedProject(ctx, uc.Projects, ownerID, input.ProjectID)
	if err != nil {
		return nil, err
	}

	samples, err := uc.Leads.Search(ctx, ownerID, entity.LeadFilter{
		ProjectID: project.ID,
		Limit:     sampleLeadsForGeneration,
	}.Normalize())
	if err != nil {
		return nil, technical("failed to load sample leads", err)
	}

	purpose := input.Purpose
	if purpose == "" {
		purpose = fmt.Sprintf("%s: %s", project.Name, project.Description)
	}

	genCtx := ctx
	if uc.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, uc.Timeout)
		defer cancel()
	}
	generated, err := uc.Generator.Generate(genCtx, entity.GenerationRequest{
		Purpose:            purpose,
		Tone:               input.Tone,
		Length:             input.Length,
		Focus:              input.Focus,
		CustomInstructions: input.CustomInstructions,
		SampleLeads:        samples,
	})
	if err != nil {
		if entity.IsPermanent(err) {
			return nil, invalidField("generation", err.Error())
		}
		return nil, unavailable("template generation failed", err)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = fmt.Sprintf("AI Generated Template - %s - %s", project.Name, time.Now().UTC().Format("2006-01-02"))
	}
	t := entity.NewEmailTemplate(ownerID, name, generated.Subject, generated.Body)
	t.IsAIGenerated = true

	if errs := ValidateTemplateInput(TemplateInput{Name: t.Name, Subject: t.Subject, Body: t.Body}); len(errs) > 0 {
		return nil, unavailable("generated template is not usable", validationFailed(errs))
	}
	if err := uc.Templates.Create(ctx, t); err != nil {
		return nil, fromRepo(err, "template")
	}
	uc.Logger.Info("template generated", zap.String("template_id", t.ID), zap.String("project_id", project.ID))
	return t, nil
}

func ownedTemplate(ctx context.Context, templates entity.TemplateRepository, ownerID, id string) (*entity.EmailTemplate, error) {
	t, err := templates.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "template")
	}
	if t.OwnerID != ownerID {
		return nil, forbidden("template")
	}
	return t, nil
}
