package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/xavierca1/leadforge/internal/entity"
)

const projectColumns = `id, owner_id, name, description, target_industry, target_company_size,
	target_locations, target_titles, search_keywords, config, lead_count, email_sent_count,
	created_at, updated_at`

type ProjectRepository struct {
	DB *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{DB: db}
}

func scanProject(s scanner) (*entity.Project, error) {
	var (
		p      entity.Project
		config []byte
	)
	err := s.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.TargetIndustry, &p.TargetCompanySize,
		&p.TargetLocations, &p.TargetTitles, &p.SearchKeywords, &config, &p.LeadCount, &p.EmailSentCount,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &p.Config); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p *entity.Project) error {
	config, err := json.Marshal(p.Config)
	if err != nil {
		return err
	}
	query := `INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = r.DB.ExecContext(ctx, query,
		p.ID, p.OwnerID, p.Name, p.Description, p.TargetIndustry, p.TargetCompanySize,
		p.TargetLocations, p.TargetTitles, p.SearchKeywords, string(config), p.LeadCount, p.EmailSentCount,
		p.CreatedAt, p.UpdatedAt)
	return mapError(err)
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (r *ProjectRepository) List(ctx context.Context, ownerID string) ([]*entity.Project, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*entity.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update leaves lead_count and email_sent_count to their own statements.
func (r *ProjectRepository) Update(ctx context.Context, p *entity.Project) error {
	config, err := json.Marshal(p.Config)
	if err != nil {
		return err
	}
	query := `
		UPDATE projects SET
			name = $2, description = $3, target_industry = $4, target_company_size = $5,
			target_locations = $6, target_titles = $7, search_keywords = $8, config = $9,
			updated_at = NOW()
		WHERE id = $1
	`
	return expectOne(r.DB.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.TargetIndustry, p.TargetCompanySize,
		p.TargetLocations, p.TargetTitles, p.SearchKeywords, string(config)))
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	return expectOne(r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id))
}

// RefreshLeadCount recomputes the denormalised count from the leads table.
func (r *ProjectRepository) RefreshLeadCount(ctx context.Context, id string) error {
	return expectOne(r.DB.ExecContext(ctx, `
		UPDATE projects SET lead_count = (
			SELECT count(*) FROM leads WHERE project_id = $1 AND deleted_at IS NULL
		) WHERE id = $1`, id))
}

func (r *ProjectRepository) IncrementEmailSent(ctx context.Context, id string) error {
	return expectOne(r.DB.ExecContext(ctx,
		`UPDATE projects SET email_sent_count = email_sent_count + 1 WHERE id = $1`, id))
}
