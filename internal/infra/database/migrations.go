package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id                  UUID PRIMARY KEY,
		owner_id            TEXT NOT NULL,
		name                TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		target_industry     TEXT NOT NULL DEFAULT '',
		target_company_size TEXT NOT NULL DEFAULT '',
		target_locations    TEXT NOT NULL DEFAULT '',
		target_titles       TEXT NOT NULL DEFAULT '',
		search_keywords     TEXT NOT NULL DEFAULT '',
		config              JSONB NOT NULL DEFAULT '{}',
		lead_count          INTEGER NOT NULL DEFAULT 0,
		email_sent_count    INTEGER NOT NULL DEFAULT 0,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects (owner_id)`,

	`CREATE TABLE IF NOT EXISTS leads (
		id               UUID PRIMARY KEY,
		project_id       UUID NOT NULL REFERENCES projects (id),
		owner_id         TEXT NOT NULL,
		first_name       TEXT NOT NULL DEFAULT '',
		last_name        TEXT NOT NULL DEFAULT '',
		title            TEXT NOT NULL DEFAULT '',
		email            TEXT NOT NULL DEFAULT '',
		predicted_email  TEXT NOT NULL DEFAULT '',
		email_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		email_format     TEXT NOT NULL DEFAULT '',
		phone            TEXT NOT NULL DEFAULT '',
		linkedin_url     TEXT NOT NULL DEFAULT '',
		twitter_url      TEXT NOT NULL DEFAULT '',
		website_url      TEXT NOT NULL DEFAULT '',
		company          TEXT NOT NULL DEFAULT '',
		company_domain   TEXT NOT NULL DEFAULT '',
		company_size     TEXT NOT NULL DEFAULT '',
		industry         TEXT NOT NULL DEFAULT '',
		location         TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		score            INTEGER CHECK (score BETWEEN 0 AND 100),
		enrichment_data  JSONB NOT NULL DEFAULT '{}',
		failure_reason   TEXT NOT NULL DEFAULT '',
		source           TEXT NOT NULL DEFAULT '',
		notes            TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		deleted_at       TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_owner_score ON leads (owner_id, score DESC NULLS LAST) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_leads_project ON leads (project_id) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_leads_enriching ON leads (updated_at) WHERE status = 'enriching'`,
	`CREATE INDEX IF NOT EXISTS idx_leads_domain ON leads (lower(company_domain))`,

	`CREATE TABLE IF NOT EXISTS email_templates (
		id              UUID PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		name            TEXT NOT NULL,
		subject         TEXT NOT NULL,
		body            TEXT NOT NULL,
		is_ai_generated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS email_campaigns (
		id             UUID PRIMARY KEY,
		project_id     UUID NOT NULL REFERENCES projects (id),
		template_id    UUID REFERENCES email_templates (id),
		creator_id     TEXT NOT NULL,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		from_email     TEXT NOT NULL DEFAULT '',
		reply_to       TEXT NOT NULL DEFAULT '',
		scheduled_at   TIMESTAMPTZ,
		sent_count     INTEGER NOT NULL DEFAULT 0,
		open_count     INTEGER NOT NULL DEFAULT 0,
		click_count    INTEGER NOT NULL DEFAULT 0,
		reply_count    INTEGER NOT NULL DEFAULT 0,
		failed_count   INTEGER NOT NULL DEFAULT 0,
		failure_reason TEXT NOT NULL DEFAULT '',
		started_at     TIMESTAMPTZ,
		completed_at   TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_due ON email_campaigns (scheduled_at) WHERE status = 'scheduled'`,

	`CREATE TABLE IF NOT EXISTS campaign_recipients (
		campaign_id UUID NOT NULL REFERENCES email_campaigns (id) ON DELETE CASCADE,
		lead_id     UUID NOT NULL REFERENCES leads (id),
		position    INTEGER NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		address     TEXT NOT NULL DEFAULT '',
		delivery_id TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		claimed_at  TIMESTAMPTZ,
		sent_at     TIMESTAMPTZ,
		PRIMARY KEY (campaign_id, lead_id)
	)`,
	`ALTER TABLE campaign_recipients ADD COLUMN IF NOT EXISTS claimed_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_campaigns_sending ON email_campaigns (updated_at) WHERE status = 'sending'`,
}

// Migrate applies the schema inside one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return tx.Commit()
}
