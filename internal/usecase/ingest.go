package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/infra/queue"
)

const (
	SourceScraper   = "scraper"
	SourceCSVImport = "csv_import"
)

// importColumns maps accepted CSV header names to lead fields.
var importColumns = map[string]string{
	"first_name": "first_name", "firstname": "first_name", "first name": "first_name",
	"last_name": "last_name", "lastname": "last_name", "last name": "last_name",
	"title": "title", "job_title": "title", "job title": "title",
	"email": "email", "email_address": "email",
	"phone": "phone",
	"linkedin_url": "linkedin_url", "linkedin": "linkedin_url",
	"twitter_url": "twitter_url", "twitter": "twitter_url",
	"website_url": "website_url", "website": "website_url",
	"company": "company", "company_name": "company",
	"company_domain": "company_domain", "domain": "company_domain",
	"company_size": "company_size",
	"industry": "industry",
	"location": "location",
	"notes": "notes",
}

// ScraperCallbackInput is what the scraper service posts back asynchronously.
type ScraperCallbackInput struct {
	ProjectID string                 `json:"project_id"`
	TaskID    string                 `json:"task_id"`
	Leads     []entity.LeadCandidate `json:"leads"`
}

// IngestUseCase turns scraped or imported candidates into leads.
type IngestUseCase struct {
	Leads    entity.LeadRepository
	Projects entity.ProjectRepository
	Scraper  entity.Scraper
	Retry    RetryPolicy
	Tracker  *TaskTracker
	Metrics  Metrics
	Logger   *zap.Logger
}

func NewIngestUseCase(
	leads entity.LeadRepository,
	projects entity.ProjectRepository,
	scraper entity.Scraper,
	retry RetryPolicy,
	metrics Metrics,
	logger *zap.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		Leads:    leads,
		Projects: projects,
		Scraper:  scraper,
		Retry:    retry,
		Metrics:  metricsOrNop(metrics),
		Logger:   logger,
	}
}

// ExecuteScrape calls the scraper for a queued task and records the outcome.
// Scraper failures are recorded on the task, which is then considered done.
func (uc *IngestUseCase) ExecuteScrape(ctx context.Context, task queue.ScrapeTask) (*IngestResult, error) {
	rec := TaskRecord{TaskID: task.TaskID, Kind: queue.ScrapeRoute.Kind, OwnerID: task.OwnerID, ProjectID: task.ProjectID}
	result, err := uc.executeScrape(ctx, task)
	uc.Tracker.Finish(ctx, rec, result, err)

	var ae *entity.AdapterError
	if errors.As(err, &ae) && ctx.Err() == nil {
		return &IngestResult{}, nil
	}
	return result, err
}

func (uc *IngestUseCase) executeScrape(ctx context.Context, task queue.ScrapeTask) (*IngestResult, error) {
	log := uc.Logger.With(zap.String("project_id", task.ProjectID), zap.String("task_id", task.TaskID))

	project, err := uc.taskProject(ctx, task.ProjectID, task.OwnerID)
	if err != nil || project == nil {
		return nil, err
	}

	var candidates []entity.LeadCandidate
	err = uc.Retry.Do(ctx, func(ctx context.Context) error {
		c, err := uc.Scraper.Scrape(ctx, task.Request)
		if err != nil {
			return err
		}
		candidates = c
		return nil
	})
	if err != nil {
		err = asAdapterError("scraper", "scrape", err)
		log.Error("scrape failed", zap.Error(err))
		return &IngestResult{}, err
	}

	result, err := uc.Ingest(ctx, project, candidates, SourceScraper)
	if err != nil {
		return nil, err
	}
	log.Info("scrape ingested", zap.Int("created", result.Created), zap.Int("duplicates", result.Duplicates))
	return result, nil
}

// ExecuteImport ingests an uploaded CSV and records the outcome.
func (uc *IngestUseCase) ExecuteImport(ctx context.Context, task queue.ImportTask) (*IngestResult, error) {
	rec := TaskRecord{TaskID: task.TaskID, Kind: queue.ImportRoute.Kind, OwnerID: task.OwnerID, ProjectID: task.ProjectID}
	result, err := uc.executeImport(ctx, task)
	uc.Tracker.Finish(ctx, rec, result, err)
	return result, err
}

func (uc *IngestUseCase) executeImport(ctx context.Context, task queue.ImportTask) (*IngestResult, error) {
	log := uc.Logger.With(zap.String("project_id", task.ProjectID), zap.String("task_id", task.TaskID))

	project, err := uc.taskProject(ctx, task.ProjectID, task.OwnerID)
	if err != nil || project == nil {
		return nil, err
	}

	rows, rowErrs, err := ParseLeadCSV(task.CSV)
	if err != nil {
		log.Error("import rejected", zap.Error(err))
		return &IngestResult{Errors: []RowError{{Row: 1, Message: err.Error()}}}, nil
	}

	candidates := make([]entity.LeadCandidate, len(rows))
	lines := make([]int, len(rows))
	for i, r := range rows {
		candidates[i] = r.Candidate
		lines[i] = r.Line
	}

	result, err := uc.ingest(ctx, project, candidates, lines, SourceCSVImport)
	if err != nil {
		return nil, err
	}
	result.Failed += len(rowErrs)
	result.Errors = append(rowErrs, result.Errors...)
	log.Info("import finished", zap.Int("created", result.Created),
		zap.Int("duplicates", result.Duplicates), zap.Int("failed", result.Failed))
	return result, nil
}

// HandleCallback ingests results the scraper delivers on its own schedule.
func (uc *IngestUseCase) HandleCallback(ctx context.Context, input ScraperCallbackInput) (*IngestResult, error) {
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, invalidField("project_id", "is required")
	}
	project, err := uc.Projects.FindByID(ctx, input.ProjectID)
	if err != nil {
		return nil, fromRepo(err, "project")
	}
	return uc.Ingest(ctx, project, input.Leads, SourceScraper)
}

// Ingest creates one lead per usable candidate, skipping those already in the
// project by email or LinkedIn URL.
func (uc *IngestUseCase) Ingest(ctx context.Context, project *entity.Project, candidates []entity.LeadCandidate, source string) (*IngestResult, error) {
	return uc.ingest(ctx, project, candidates, nil, source)
}

// ingest reports problems against lines[i] when given, else the 1-based index.
func (uc *IngestUseCase) ingest(ctx context.Context, project *entity.Project, candidates []entity.LeadCandidate, lines []int, source string) (*IngestResult, error) {
	result := &IngestResult{}
	for i, c := range candidates {
		row := i + 1
		if lines != nil {
			row = lines[i]
		}
		if msg := candidateProblem(c); msg != "" {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: row, Message: msg})
			continue
		}

		exists, err := uc.Leads.ExistsInProject(ctx, project.ID, strings.TrimSpace(c.Email), c.LinkedInURL)
		if err != nil {
			return nil, technical("failed to check duplicates", err)
		}
		if exists {
			result.Duplicates++
			continue
		}

		lead := leadFromCandidate(project, c, source)
		if err := uc.Leads.Create(ctx, lead); err != nil {
			if errors.Is(err, entity.ErrConflict) {
				result.Duplicates++
				continue
			}
			return nil, technical("failed to create lead", err)
		}
		result.Created++
	}

	if result.Created > 0 {
		if err := uc.Projects.RefreshLeadCount(ctx, project.ID); err != nil {
			uc.Logger.Warn("failed to refresh project lead count", zap.String("project_id", project.ID), zap.Error(err))
		}
	}
	uc.Metrics.RecordLeadsIngested(source, result.Created)
	return result, nil
}

func (uc *IngestUseCase) taskProject(ctx context.Context, projectID, ownerID string) (*entity.Project, error) {
	project, err := uc.Projects.FindByID(ctx, projectID)
	if errors.Is(err, entity.ErrNotFound) {
		uc.Logger.Warn("project vanished before task ran", zap.String("project_id", projectID))
		return nil, nil
	}
	if err != nil {
		return nil, technical("failed to load project", err)
	}
	if project.OwnerID != ownerID {
		uc.Logger.Warn("task owner does not own project", zap.String("project_id", projectID), zap.String("owner_id", ownerID))
		return nil, nil
	}
	return project, nil
}

func candidateProblem(c entity.LeadCandidate) string {
	if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.LastName) == "" && strings.TrimSpace(c.Email) == "" {
		return "a name or an email is required"
	}
	if c.Email != "" && !entity.IsValidEmail(c.Email) {
		return "invalid email " + c.Email
	}
	if c.CompanySize != "" && !companySizes[c.CompanySize] {
		return "unknown company size " + c.CompanySize
	}
	return ""
}

func leadFromCandidate(p *entity.Project, c entity.LeadCandidate, source string) *entity.Lead {
	l := entity.NewLead(p.ID, p.OwnerID)
	l.FirstName = strings.TrimSpace(c.FirstName)
	l.LastName = strings.TrimSpace(c.LastName)
	l.Title = c.Title
	l.Email = strings.TrimSpace(c.Email)
	l.Phone = c.Phone
	l.LinkedInURL = c.LinkedInURL
	l.TwitterURL = c.TwitterURL
	l.WebsiteURL = c.WebsiteURL
	l.Company = c.Company
	l.CompanyDomain = strings.ToLower(strings.TrimSpace(c.CompanyDomain))
	l.CompanySize = c.CompanySize
	l.Industry = c.Industry
	l.Location = c.Location
	l.Notes = c.Notes
	l.Source = source
	if c.Source != "" {
		l.Source = c.Source
	}
	return l
}

func mapImportHeader(header []string) (map[int]string, error) {
	cols := make(map[int]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := importColumns[key]; ok {
			cols[i] = field
		}
	}
	has := func(field string) bool {
		for _, f := range cols {
			if f == field {
				return true
			}
		}
		return false
	}
	if !has("email") && !(has("first_name") || has("last_name")) {
		return nil, invalidField("file", "header must contain an email or a name column")
	}
	return cols, nil
}

// ImportRow is one parsed CSV record and its 1-based line number.
type ImportRow struct {
	Line      int
	Candidate entity.LeadCandidate
}

// ParseLeadCSV reads a header-mapped CSV. Unknown columns are ignored; rows
// that cannot be read are reported with their line number.
func ParseLeadCSV(data []byte) ([]ImportRow, []RowError, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapImportHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []ImportRow
		rowErrs []RowError
	)
	line := 1
	for {
		record, err := r.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: line, Message: err.Error()})
			continue
		}

		var c entity.LeadCandidate
		for i, v := range record {
			field, ok := cols[i]
			if !ok {
				continue
			}
			setCandidateField(&c, field, strings.TrimSpace(v))
		}
		rows = append(rows, ImportRow{Line: line, Candidate: c})
	}
	return rows, rowErrs, nil
}

func setCandidateField(c *entity.LeadCandidate, field, v string) {
	switch field {
	case "first_name":
		c.FirstName = v
	case "last_name":
		c.LastName = v
	case "title":
		c.Title = v
	case "email":
		c.Email = v
	case "phone":
		c.Phone = v
	case "linkedin_url":
		c.LinkedInURL = v
	case "twitter_url":
		c.TwitterURL = v
	case "website_url":
		c.WebsiteURL = v
	case "company":
		c.Company = v
	case "company_domain":
		c.CompanyDomain = v
	case "company_size":
		c.CompanySize = v
	case "industry":
		c.Industry = v
	case "location":
		c.Location = v
	case "notes":
		c.Notes = v
	}
}
