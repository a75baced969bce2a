package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/queue"
)

const (
	latestLeadsInStats = 5
	maxImportBytes     = 5 << 20
)

type ProjectUseCase struct {
	Projects  entity.ProjectRepository
	Leads     entity.LeadRepository
	Campaigns entity.CampaignRepository
	Tasks     TaskPublisher
	Tracker   *TaskTracker
	Logger    *zap.Logger
}

func NewProjectUseCase(
	projects entity.ProjectRepository,
	leads entity.LeadRepository,
	campaigns entity.CampaignRepository,
	tasks TaskPublisher,
	logger *zap.Logger,
) *ProjectUseCase {
	return &ProjectUseCase{Projects: projects, Leads: leads, Campaigns: campaigns, Tasks: tasks, Logger: logger}
}

func (uc *ProjectUseCase) Create(ctx context.Context, ownerID string, input ProjectInput) (*entity.Project, error) {
	if errs := ValidateProjectInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	p := entity.NewProject(ownerID, input.Name)
	applyProjectInput(p, input)
	if err := uc.Projects.Create(ctx, p); err != nil {
		return nil, fromRepo(err, "project")
	}
	return p, nil
}

func (uc *ProjectUseCase) Get(ctx context.Context, ownerID, id string) (*entity.Project, error) {
	return ownedProject(ctx, uc.Projects, ownerID, id)
}

func (uc *ProjectUseCase) List(ctx context.Context, ownerID string) ([]*entity.Project, error) {
	projects, err := uc.Projects.List(ctx, ownerID)
	if err != nil {
		return nil, technical("failed to list projects", err)
	}
	return projects, nil
}

func (uc *ProjectUseCase) Update(ctx context.Context, ownerID, id string, input ProjectInput) (*entity.Project, error) {
	if errs := ValidateProjectInput(input); len(errs) > 0 {
		return nil, validationFailed(errs)
	}
	p, err := ownedProject(ctx, uc.Projects, ownerID, id)
	if err != nil {
		return nil, err
	}
	applyProjectInput(p, input)
	p.UpdatedAt = time.Now().UTC()
	if err := uc.Projects.Update(ctx, p); err != nil {
		return nil, fromRepo(err, "project")
	}
	return p, nil
}

func applyProjectInput(p *entity.Project, in ProjectInput) {
	p.Name = in.Name
	p.Description = in.Description
	p.TargetIndustry = in.TargetIndustry
	p.TargetCompanySize = in.TargetCompanySize
	p.TargetLocations = in.TargetLocations
	p.TargetTitles = in.TargetTitles
	p.SearchKeywords = in.SearchKeywords
	p.Config = in.Config
}

// Delete refuses while the project still has leads or campaigns.
func (uc *ProjectUseCase) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := ownedProject(ctx, uc.Projects, ownerID, id); err != nil {
		return err
	}
	leads, err := uc.Leads.CountByProject(ctx, id)
	if err != nil {
		return technical("failed to count project leads", err)
	}
	campaigns, err := uc.Campaigns.CountByProject(ctx, id)
	if err != nil {
		return technical("failed to count project campaigns", err)
	}
	if leads > 0 || campaigns > 0 {
		return conflict("project still has %d leads and %d campaigns", leads, campaigns)
	}
	if err := uc.Projects.Delete(ctx, id); err != nil {
		return fromRepo(err, "project")
	}
	return nil
}

func (uc *ProjectUseCase) Stats(ctx context.Context, ownerID, id string) (*entity.ProjectStats, error) {
	if _, err := ownedProject(ctx, uc.Projects, ownerID, id); err != nil {
		return nil, err
	}

	leadStats, err := uc.Leads.Stats(ctx, ownerID, id)
	if err != nil {
		return nil, technical("failed to aggregate leads", err)
	}
	campaigns, err := uc.Campaigns.List(ctx, ownerID, id)
	if err != nil {
		return nil, technical("failed to list campaigns", err)
	}
	latest, err := uc.Leads.Latest(ctx, id, latestLeadsInStats)
	if err != nil {
		return nil, technical("failed to load latest leads", err)
	}

	stats := &entity.ProjectStats{
		TotalLeads:     leadStats.Total,
		HighQuality:    leadStats.HighQuality,
		LeadsContacted: leadStats.Contacted,
		LatestLeads:    latest,
	}
	for _, c := range campaigns {
		stats.TotalEmailsSent += c.SentCount
		stats.TotalReplies += c.ReplyCount
	}
	stats.ResponseRate = percentage(stats.TotalReplies, stats.TotalEmailsSent)
	return stats, nil
}

func (uc *ProjectUseCase) RequestScrape(ctx context.Context, ownerID, id string) (*TaskHandle, error) {
	p, err := ownedProject(ctx, uc.Projects, ownerID, id)
	if err != nil {
		return nil, err
	}
	task := queue.ScrapeTask{
		TaskID:    queue.NewTaskID(),
		ProjectID: id,
		OwnerID:   ownerID,
		Request:   p.ScrapeRequest(),
	}
	handle := &TaskHandle{TaskID: task.TaskID, Kind: queue.ScrapeRoute.Kind, Status: ItemQueued}
	uc.Tracker.Queued(ctx, handle, ownerID, id)
	if err := uc.Tasks.PublishScrape(ctx, task); err != nil {
		uc.Tracker.Finish(ctx, TaskRecord{TaskID: task.TaskID, Kind: handle.Kind, OwnerID: ownerID, ProjectID: id}, nil, err)
		return nil, unavailable("failed to enqueue scrape", err)
	}
	uc.Logger.Info("scrape requested", zap.String("project_id", id), zap.String("task_id", task.TaskID))
	return handle, nil
}

// RequestImport checks the CSV header up front so a wrong file fails fast,
// then hands the rows to the worker.
func (uc *ProjectUseCase) RequestImport(ctx context.Context, ownerID, id string, data []byte) (*TaskHandle, error) {
	if _, err := ownedProject(ctx, uc.Projects, ownerID, id); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, invalidField("file", "is empty")
	}
	if len(data) > maxImportBytes {
		return nil, invalidField("file", "must not exceed 5MB")
	}

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err == io.EOF {
		return nil, invalidField("file", "has no header row")
	}
	if err != nil {
		return nil, invalidField("file", "is not valid CSV: "+err.Error())
	}
	if _, err := mapImportHeader(header); err != nil {
		return nil, err
	}

	task := queue.ImportTask{TaskID: queue.NewTaskID(), ProjectID: id, OwnerID: ownerID, CSV: data}
	handle := &TaskHandle{TaskID: task.TaskID, Kind: queue.ImportRoute.Kind, Status: ItemQueued}
	uc.Tracker.Queued(ctx, handle, ownerID, id)
	if err := uc.Tasks.PublishImport(ctx, task); err != nil {
		uc.Tracker.Finish(ctx, TaskRecord{TaskID: task.TaskID, Kind: handle.Kind, OwnerID: ownerID, ProjectID: id}, nil, err)
		return nil, unavailable("failed to enqueue import", err)
	}
	uc.Logger.Info("import requested", zap.String("project_id", id), zap.Int("bytes", len(data)))
	return handle, nil
}

// percentage returns part/total*100 rounded to two decimals.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
