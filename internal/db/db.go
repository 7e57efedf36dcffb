// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func Open(databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// EnsureSchema creates the tables on startup, mirroring what a fresh
// install needs. Idempotent.
func EnsureSchema(conn *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
			id SERIAL PRIMARY KEY,
			key VARCHAR(191) NOT NULL UNIQUE,
			sender_number VARCHAR(32) NOT NULL,
			welcome_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			id SERIAL PRIMARY KEY,
			business_key VARCHAR(191) NOT NULL,
			phone VARCHAR(32) NOT NULL,
			name VARCHAR(191) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			welcome_sent_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (business_key, phone)
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id SERIAL PRIMARY KEY,
			business_key VARCHAR(191) NOT NULL,
			body TEXT NOT NULL,
			mode VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			scheduled_at TIMESTAMPTZ NULL,
			sent_at TIMESTAMPTZ NULL,
			total_recipients INT NOT NULL DEFAULT 0,
			sent_ok INT NOT NULL DEFAULT 0,
			sent_failed INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_business_key ON campaigns (business_key)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id SERIAL PRIMARY KEY,
			campaign_id INT NULL REFERENCES campaigns(id),
			business_key VARCHAR(191) NOT NULL,
			to_phone VARCHAR(32) NOT NULL,
			provider VARCHAR(20) NOT NULL,
			provider_message_id VARCHAR(64) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL DEFAULT 'queued',
			error_code VARCHAR(32) NOT NULL DEFAULT '',
			source VARCHAR(20) NOT NULL DEFAULT 'campaign',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_provider_message_id ON messages (provider_message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_campaign_id ON messages (campaign_id)`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id SERIAL PRIMARY KEY,
			campaign_id INT NOT NULL REFERENCES campaigns(id),
			business_key VARCHAR(191) NOT NULL,
			body TEXT NOT NULL,
			due_at TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			claim_token VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_due ON scheduled_jobs (status, due_at)`,
	}

	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
