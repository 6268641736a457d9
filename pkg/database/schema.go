package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS archive_jobs (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	platforms JSONB NOT NULL,
	status TEXT NOT NULL,
	processed_items INTEGER,
	total_items INTEGER,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS idx_archive_jobs_user_created ON archive_jobs (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_archive_jobs_status ON archive_jobs (status)`,
	`CREATE TABLE IF NOT EXISTS archived_items (
	id UUID PRIMARY KEY,
	job_id UUID NOT NULL REFERENCES archive_jobs (id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	platform TEXT NOT NULL,
	content_type TEXT NOT NULL,
	title TEXT,
	content TEXT NOT NULL,
	url TEXT NOT NULL,
	date_posted TEXT NOT NULL,
	score DOUBLE PRECISION,
	parent_title TEXT,
	word_count INTEGER NOT NULL,
	username TEXT NOT NULL,
	original_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_archived_items_job_position ON archived_items (job_id, position)`,
}

// Migrate creates the archive tables when they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
