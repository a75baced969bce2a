package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/leadforge/internal/entity"
)

const campaignColumns = `id, project_id, COALESCE(template_id::text, ''), creator_id, name, description,
	status, from_email, reply_to, scheduled_at, sent_count, open_count, click_count, reply_count,
	failed_count, failure_reason, started_at, completed_at, created_at, updated_at`

const recipientColumns = `campaign_id, lead_id, status, address, delivery_id, error, claimed_at, sent_at`

type CampaignRepository struct {
	DB *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{DB: db}
}

func scanCampaign(s scanner) (*entity.EmailCampaign, error) {
	var (
		c                               entity.EmailCampaign
		scheduledAt, started, completed sql.NullTime
	)
	err := s.Scan(&c.ID, &c.ProjectID, &c.TemplateID, &c.CreatorID, &c.Name, &c.Description,
		&c.Status, &c.FromEmail, &c.ReplyTo, &scheduledAt, &c.SentCount, &c.OpenCount, &c.ClickCount, &c.ReplyCount,
		&c.FailedCount, &c.FailureReason, &started, &completed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ScheduledAt = timePtr(scheduledAt)
	c.StartedAt = timePtr(started)
	c.CompletedAt = timePtr(completed)
	return &c, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// Create stores the campaign and its pending recipients in one transaction.
func (r *CampaignRepository) Create(ctx context.Context, c *entity.EmailCampaign, leadIDs []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO email_campaigns (id, project_id, template_id, creator_id, name, description, status,
			from_email, reply_to, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.ProjectID, nullString(c.TemplateID), c.CreatorID, c.Name, c.Description, c.Status,
		c.FromEmail, c.ReplyTo, c.ScheduledAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if err := insertRecipients(ctx, tx, c.ID, leadIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecipients(ctx context.Context, tx *sql.Tx, campaignID string, leadIDs []string) error {
	if len(leadIDs) == 0 {
		return nil
	}
	// WITH ORDINALITY preserves the send order
	_, err := tx.ExecContext(ctx, `
		INSERT INTO campaign_recipients (campaign_id, lead_id, position)
		SELECT $1, ids.lead_id::uuid, ids.position
		FROM unnest($2::text[]) WITH ORDINALITY AS ids(lead_id, position)`,
		campaignID, pq.Array(leadIDs))
	return mapError(err)
}

func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*entity.EmailCampaign, error) {
	c, err := scanCampaign(r.DB.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM email_campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, creatorID, projectID string) ([]*entity.EmailCampaign, error) {
	return r.query(ctx, `
		SELECT `+campaignColumns+` FROM email_campaigns
		WHERE creator_id = $1 AND ($2 = '' OR project_id::text = $2)
		ORDER BY created_at DESC, id`, creatorID, projectID)
}

func (r *CampaignRepository) query(ctx context.Context, query string, args ...any) ([]*entity.EmailCampaign, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*entity.EmailCampaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update writes the editable definition; status and counters are untouched.
func (r *CampaignRepository) Update(ctx context.Context, c *entity.EmailCampaign) error {
	return expectOne(r.DB.ExecContext(ctx, `
		UPDATE email_campaigns SET
			name = $2, description = $3, template_id = $4::uuid, from_email = $5,
			reply_to = $6, scheduled_at = $7, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Description, nullString(c.TemplateID), c.FromEmail, c.ReplyTo, c.ScheduledAt))
}

func (r *CampaignRepository) ReplaceRecipients(ctx context.Context, campaignID string, leadIDs []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_recipients WHERE campaign_id = $1`, campaignID); err != nil {
		return mapError(err)
	}
	if err := insertRecipients(ctx, tx, campaignID, leadIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	return expectOne(r.DB.ExecContext(ctx, `DELETE FROM email_campaigns WHERE id = $1`, id))
}

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id string, from []entity.CampaignStatus, to entity.CampaignStatus, reason string) (*entity.EmailCampaign, error) {
	fromStatuses := make([]string, 0, len(from))
	for _, s := range from {
		fromStatuses = append(fromStatuses, string(s))
	}
	query := `
		UPDATE email_campaigns SET
			status         = $2,
			started_at     = CASE WHEN $2 = 'sending' THEN COALESCE(started_at, NOW()) ELSE started_at END,
			completed_at   = CASE WHEN $2 IN ('sent', 'failed') THEN NOW() ELSE completed_at END,
			failure_reason = CASE WHEN $2 = 'failed' THEN $3 ELSE failure_reason END,
			updated_at     = NOW()
		WHERE id = $1 AND status = ANY($4)
		RETURNING ` + campaignColumns

	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id, string(to), reason, pq.Array(fromStatuses)))
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, entity.ErrStaleState
	}
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// IncrementCounter is a single atomic UPDATE; the column name comes from a
// closed set, never from input. Send outcomes also bump updated_at so
// ListStalled sees the campaign as progressing.
func (r *CampaignRepository) IncrementCounter(ctx context.Context, id string, counter entity.Counter) error {
	if !counter.Valid() {
		return fmt.Errorf("unknown counter %q", counter)
	}
	touch := ""
	if counter == entity.CounterSent || counter == entity.CounterFailed {
		touch = ", updated_at = NOW()"
	}
	query := fmt.Sprintf(`UPDATE email_campaigns SET %[1]s = %[1]s + 1%[2]s WHERE id = $1`, string(counter), touch)
	return expectOne(r.DB.ExecContext(ctx, query, id))
}

func scanRecipient(s scanner) (*entity.CampaignRecipient, error) {
	var (
		rec               entity.CampaignRecipient
		claimedAt, sentAt sql.NullTime
	)
	if err := s.Scan(&rec.CampaignID, &rec.LeadID, &rec.Status, &rec.Address, &rec.DeliveryID, &rec.Error, &claimedAt, &sentAt); err != nil {
		return nil, err
	}
	rec.ClaimedAt = timePtr(claimedAt)
	rec.SentAt = timePtr(sentAt)
	return &rec, nil
}

func (r *CampaignRepository) ListRecipients(ctx context.Context, campaignID string, status entity.RecipientStatus) ([]*entity.CampaignRecipient, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+recipientColumns+` FROM campaign_recipients
		WHERE campaign_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY position`, campaignID, string(status))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*entity.CampaignRecipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *CampaignRepository) FindRecipient(ctx context.Context, campaignID, leadID string) (*entity.CampaignRecipient, error) {
	rec, err := scanRecipient(r.DB.QueryRowContext(ctx, `
		SELECT `+recipientColumns+` FROM campaign_recipients
		WHERE campaign_id = $1 AND lead_id = $2`, campaignID, leadID))
	if err != nil {
		return nil, mapError(err)
	}
	return rec, nil
}

func (r *CampaignRepository) ClaimRecipient(ctx context.Context, campaignID, leadID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaign_recipients SET status = 'sending', claimed_at = NOW()
		WHERE campaign_id = $1 AND lead_id = $2 AND status = 'pending'`,
		campaignID, leadID)
	return r.guarded(ctx, campaignID, leadID, res, err)
}

func (r *CampaignRepository) MarkRecipientSent(ctx context.Context, campaignID, leadID, address, deliveryID string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaign_recipients SET status = 'sent', address = $3, delivery_id = $4, sent_at = NOW()
		WHERE campaign_id = $1 AND lead_id = $2 AND status = 'sending'`,
		campaignID, leadID, address, deliveryID)
	return r.guarded(ctx, campaignID, leadID, res, err)
}

func (r *CampaignRepository) MarkRecipientFailed(ctx context.Context, campaignID, leadID, reason string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE campaign_recipients SET status = 'failed', error = $3
		WHERE campaign_id = $1 AND lead_id = $2 AND status IN ('pending', 'sending')`,
		campaignID, leadID, reason)
	return r.guarded(ctx, campaignID, leadID, res, err)
}

// guarded turns a no-op recipient update into ErrStaleState or ErrNotFound.
func (r *CampaignRepository) guarded(ctx context.Context, campaignID, leadID string, res sql.Result, err error) error {
	err = expectOne(res, err)
	if !errors.Is(err, entity.ErrNotFound) {
		return err
	}
	if _, findErr := r.FindRecipient(ctx, campaignID, leadID); findErr != nil {
		return findErr
	}
	return entity.ErrStaleState
}

func (r *CampaignRepository) ListDue(ctx context.Context, now time.Time) ([]*entity.EmailCampaign, error) {
	return r.query(ctx, `
		SELECT `+campaignColumns+` FROM email_campaigns
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at`, now)
}

func (r *CampaignRepository) ListStalled(ctx context.Context, idleSince time.Time) ([]*entity.EmailCampaign, error) {
	return r.query(ctx, `
		SELECT `+campaignColumns+` FROM email_campaigns
		WHERE status = 'sending' AND updated_at < $1
		ORDER BY updated_at`, idleSince)
}

func (r *CampaignRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM email_campaigns WHERE project_id = $1`, projectID).Scan(&n)
	return n, mapError(err)
}

func (r *CampaignRepository) Metrics(ctx context.Context, creatorID string) (*entity.CampaignMetrics, error) {
	var m entity.CampaignMetrics
	err := r.DB.QueryRowContext(ctx, `
		SELECT count(*), COALESCE(sum(sent_count), 0), COALESCE(sum(open_count), 0),
		       COALESCE(sum(click_count), 0), COALESCE(sum(reply_count), 0)
		FROM email_campaigns WHERE creator_id = $1`, creatorID,
	).Scan(&m.Campaigns, &m.Sent, &m.Opens, &m.Clicks, &m.Replies)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
