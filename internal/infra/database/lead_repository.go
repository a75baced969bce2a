package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/leadforge/internal/entity"
)

const leadColumns = `id, project_id, owner_id, first_name, last_name, title, email, predicted_email,
	email_confidence, email_format, phone, linkedin_url, twitter_url, website_url, company,
	company_domain, company_size, industry, location, status, score, enrichment_data,
	failure_reason, source, notes, created_at, updated_at`

var contactedStatuses = []string{
	string(entity.LeadStatusContacted), string(entity.LeadStatusQualified),
	string(entity.LeadStatusNegotiating), string(entity.LeadStatusConverted),
}

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(s scanner) (*entity.Lead, error) {
	var (
		l          entity.Lead
		score      sql.NullInt64
		enrichment []byte
	)
	err := s.Scan(
		&l.ID, &l.ProjectID, &l.OwnerID, &l.FirstName, &l.LastName, &l.Title, &l.Email, &l.PredictedEmail,
		&l.EmailConfidence, &l.EmailFormat, &l.Phone, &l.LinkedInURL, &l.TwitterURL, &l.WebsiteURL, &l.Company,
		&l.CompanyDomain, &l.CompanySize, &l.Industry, &l.Location, &l.Status, &score, &enrichment,
		&l.FailureReason, &l.Source, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		v := int(score.Int64)
		l.Score = &v
	}
	if len(enrichment) > 0 {
		if err := json.Unmarshal(enrichment, &l.EnrichmentData); err != nil {
			return nil, fmt.Errorf("decode enrichment_data of lead %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

func (r *LeadRepository) Create(ctx context.Context, l *entity.Lead) error {
	enrichment, err := json.Marshal(l.EnrichmentData)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27)
	`
	_, err = r.DB.ExecContext(ctx, query,
		l.ID, l.ProjectID, l.OwnerID, l.FirstName, l.LastName, l.Title, l.Email, l.PredictedEmail,
		l.EmailConfidence, l.EmailFormat, l.Phone, l.LinkedInURL, l.TwitterURL, l.WebsiteURL, l.Company,
		l.CompanyDomain, l.CompanySize, l.Industry, l.Location, l.Status, l.Score, string(enrichment),
		l.FailureReason, l.Source, l.Notes, l.CreatedAt, l.UpdatedAt,
	)
	return mapError(err)
}

func (r *LeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND deleted_at IS NULL`, id)
	l, err := scanLead(row)
	if err != nil {
		return nil, mapError(err)
	}
	return l, nil
}

func (r *LeadRepository) FindByIDs(ctx context.Context, ids []string) ([]*entity.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id::text = ANY($1) AND deleted_at IS NULL`, pq.Array(ids))
}

func (r *LeadRepository) query(ctx context.Context, query string, args ...any) ([]*entity.Lead, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LeadRepository) Search(ctx context.Context, ownerID string, f entity.LeadFilter) ([]*entity.Lead, error) {
	query, args := buildLeadSearch(ownerID, f.Normalize())
	leads, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if leads == nil {
		leads = []*entity.Lead{}
	}
	return leads, nil
}

// buildLeadSearch renders the filter as one parameterised query. Unscored
// leads sort last whatever the direction.
func buildLeadSearch(ownerID string, f entity.LeadFilter) (string, []any) {
	var (
		where = []string{"owner_id = $1", "deleted_at IS NULL"}
		args  = []any{ownerID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	contains := func(column, value string) {
		if value != "" {
			where = append(where, column+" ILIKE "+arg("%"+escapeLike(value)+"%"))
		}
	}

	if f.ProjectID != "" {
		where = append(where, "project_id::text = "+arg(f.ProjectID))
	}
	contains("industry", f.Industry)
	contains("title", f.Title)
	contains("location", f.Location)
	if f.CompanySize != "" {
		where = append(where, "company_size = "+arg(f.CompanySize))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.MinScore != nil {
		where = append(where, "score >= "+arg(*f.MinScore))
	}
	for _, term := range f.KeywordTerms() {
		p := arg("%" + escapeLike(term) + "%")
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR company ILIKE %[1]s OR title ILIKE %[1]s OR notes ILIKE %[1]s)", p))
	}

	dir := "DESC"
	if f.OrderDir == "asc" {
		dir = "ASC"
	}
	var order string
	switch f.OrderBy {
	case "created_at":
		order = "created_at " + dir + ", id"
	case "company":
		order = "lower(company) " + dir + ", created_at DESC, id"
	default:
		order = "score " + dir + " NULLS LAST, created_at DESC, id"
	}

	query := fmt.Sprintf("SELECT %s FROM leads WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		leadColumns, strings.Join(where, " AND "), order, arg(f.Limit), arg(f.Offset))
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Update writes the editable profile fields only.
func (r *LeadRepository) Update(ctx context.Context, l *entity.Lead) error {
	query := `
		UPDATE leads SET
			first_name = $2, last_name = $3, title = $4, email = $5, phone = $6,
			linkedin_url = $7, twitter_url = $8, website_url = $9, company = $10,
			company_domain = $11, company_size = $12, industry = $13, location = $14,
			notes = $15, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	return expectOne(r.DB.ExecContext(ctx, query,
		l.ID, l.FirstName, l.LastName, l.Title, l.Email, l.Phone,
		l.LinkedInURL, l.TwitterURL, l.WebsiteURL, l.Company,
		l.CompanyDomain, l.CompanySize, l.Industry, l.Location, l.Notes,
	))
}

// Transition is a compare-and-set on status; the WHERE clause makes the
// check and the write a single statement.
func (r *LeadRepository) Transition(ctx context.Context, id string, from []entity.LeadStatus, patch entity.LeadPatch) (*entity.Lead, error) {
	var enrichment *string
	if patch.EnrichmentData != nil {
		b, err := json.Marshal(patch.EnrichmentData)
		if err != nil {
			return nil, err
		}
		v := string(b)
		enrichment = &v
	}
	fromStatuses := make([]string, 0, len(from))
	for _, s := range from {
		fromStatuses = append(fromStatuses, string(s))
	}

	query := `
		UPDATE leads SET
			status           = $2,
			score            = COALESCE($3, score),
			predicted_email  = COALESCE($4, predicted_email),
			email_confidence = COALESCE($5, email_confidence),
			email_format     = COALESCE($6, email_format),
			enrichment_data  = COALESCE($7::jsonb, enrichment_data),
			failure_reason   = COALESCE($8, failure_reason),
			updated_at       = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND status = ANY($9)
		RETURNING ` + leadColumns

	row := r.DB.QueryRowContext(ctx, query,
		id, patch.Status, patch.Score, patch.PredictedEmail, patch.EmailConfidence,
		patch.EmailFormat, enrichment, patch.FailureReason, pq.Array(fromStatuses),
	)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, entity.ErrStaleState
	}
	if err != nil {
		return nil, mapError(err)
	}
	return l, nil
}

func (r *LeadRepository) SoftDelete(ctx context.Context, id string) error {
	return expectOne(r.DB.ExecContext(ctx,
		`UPDATE leads SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *LeadRepository) KnownEmailsByDomain(ctx context.Context, ownerID, domain string, limit int) ([]string, error) {
	query := `
		SELECT lower(email) FROM leads
		WHERE owner_id = $1 AND deleted_at IS NULL AND lower(email) LIKE $2
		GROUP BY lower(email)
		ORDER BY min(created_at)
		LIMIT $3
	`
	rows, err := r.DB.QueryContext(ctx, query, ownerID, "%@"+escapeLike(strings.ToLower(strings.TrimSpace(domain))), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		if entity.IsValidEmail(email) {
			out = append(out, email)
		}
	}
	return out, rows.Err()
}

func (r *LeadRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM leads WHERE project_id = $1 AND deleted_at IS NULL`, projectID).Scan(&n)
	return n, err
}

func (r *LeadRepository) ExistsInProject(ctx context.Context, projectID, email, linkedinURL string) (bool, error) {
	if email == "" && linkedinURL == "" {
		return false, nil
	}
	query := `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE project_id = $1 AND deleted_at IS NULL
			  AND (($2 <> '' AND lower(email) = lower($2)) OR ($3 <> '' AND linkedin_url = $3))
		)
	`
	var exists bool
	err := r.DB.QueryRowContext(ctx, query, projectID, email, linkedinURL).Scan(&exists)
	return exists, err
}

func (r *LeadRepository) MarkStaleEnrichments(ctx context.Context, olderThan time.Time, reason string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE leads SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE status = $3 AND updated_at < $4 AND deleted_at IS NULL
	`, entity.LeadStatusEnrichmentFailed, reason, entity.LeadStatusEnriching, olderThan)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *LeadRepository) Stats(ctx context.Context, ownerID, projectID string) (*entity.LeadStats, error) {
	stats := entity.NewLeadStats()
	scope := `owner_id = $1 AND deleted_at IS NULL AND ($2 = '' OR project_id::text = $2)`

	err := r.DB.QueryRowContext(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE score >= 80),
		       count(*) FILTER (WHERE status = ANY($3))
		FROM leads WHERE `+scope, ownerID, projectID, pq.Array(contactedStatuses),
	).Scan(&stats.Total, &stats.HighQuality, &stats.Contacted)
	if err != nil {
		return nil, err
	}

	err = r.groupCounts(ctx, `
		SELECT score, count(*) FROM leads
		WHERE score IS NOT NULL AND `+scope+`
		GROUP BY score`, func(rows *sql.Rows) error {
		var score, n int
		if err := rows.Scan(&score, &n); err != nil {
			return err
		}
		stats.ScoreCounts[score] = n
		stats.BandCounts[entity.ScoreBand(score)] += n
		return nil
	}, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	err = r.groupCounts(ctx, `
		SELECT COALESCE(source, ''), count(*) FROM leads
		WHERE `+scope+`
		GROUP BY 1`, func(rows *sql.Rows) error {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return err
		}
		stats.BySource[entity.SourceLabel(source)] += n
		return nil
	}, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	err = r.groupCounts(ctx, `
		SELECT status, count(*) FROM leads
		WHERE `+scope+`
		GROUP BY status`, func(rows *sql.Rows) error {
		var status entity.LeadStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		stats.ByStatus[status] = n
		return nil
	}, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *LeadRepository) groupCounts(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *LeadRepository) Latest(ctx context.Context, projectID string, limit int) ([]*entity.Lead, error) {
	return r.query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id
		LIMIT $2`, projectID, limit)
}
