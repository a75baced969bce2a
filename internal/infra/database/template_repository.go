package database

import (
	"context"
	"database/sql"

	"github.com/xavierca1/leadforge/internal/entity"
)

const templateColumns = `id, owner_id, name, subject, body, is_ai_generated, created_at, updated_at`

type TemplateRepository struct {
	DB *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{DB: db}
}

func scanTemplate(s scanner) (*entity.EmailTemplate, error) {
	var t entity.EmailTemplate
	err := s.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Subject, &t.Body, &t.IsAIGenerated, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *entity.EmailTemplate) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO email_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.OwnerID, t.Name, t.Subject, t.Body, t.IsAIGenerated, t.CreatedAt, t.UpdatedAt)
	return mapError(err)
}

func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*entity.EmailTemplate, error) {
	t, err := scanTemplate(r.DB.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

func (r *TemplateRepository) List(ctx context.Context, ownerID string) ([]*entity.EmailTemplate, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*entity.EmailTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) Update(ctx context.Context, t *entity.EmailTemplate) error {
	return expectOne(r.DB.ExecContext(ctx, `
		UPDATE email_templates SET name = $2, subject = $3, body = $4, updated_at = NOW()
		WHERE id = $1`, t.ID, t.Name, t.Subject, t.Body))
}

// Delete fails with ErrReferenced through the campaigns foreign key.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	return expectOne(r.DB.ExecContext(ctx, `DELETE FROM email_templates WHERE id = $1`, id))
}

func (r *TemplateRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	var referenced bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM email_campaigns WHERE template_id = $1)`, id).Scan(&referenced)
	return referenced, mapError(err)
}
