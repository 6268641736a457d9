package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

// itemBatchSize keeps multi-row inserts below the Postgres bind parameter limit.
const itemBatchSize = 1000

// ArchivedItemRepository persists normalized items per job.
type ArchivedItemRepository struct {
	db *sqlx.DB
}

// NewArchivedItemRepository constructs the repository.
func NewArchivedItemRepository(db *sqlx.DB) *ArchivedItemRepository {
	return &ArchivedItemRepository{db: db}
}

// InsertBatch stores items for jobID in one transaction. Positions continue from startPosition
// so retrieval preserves fetch order across platforms.
func (r *ArchivedItemRepository) InsertBatch(ctx context.Context, jobID string, startPosition int, items []models.ArchivedItem) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.ArchivedItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.JobID = jobID
		item.Position = startPosition + i
		item.CreatedAt = now
		rows[i] = item
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archived items tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO archived_items (id, job_id, position, platform, content_type, title, content, url, date_posted, score, parent_title, word_count, username, original_id, created_at)
VALUES (:id, :job_id, :position, :platform, :content_type, :title, :content, :url, :date_posted, :score, :parent_title, :word_count, :username, :original_id, :created_at)`
	for start := 0; start < len(rows); start += itemBatchSize {
		end := start + itemBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return fmt.Errorf("insert archived items: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archived items: %w", err)
	}
	for i := range items {
		items[i] = rows[i]
	}
	return nil
}

// ListByJob returns all items of a job in insertion order.
func (r *ArchivedItemRepository) ListByJob(ctx context.Context, jobID string) ([]models.ArchivedItem, error) {
	const query = `SELECT id, job_id, position, platform, content_type, title, content, url, date_posted, score, parent_title, word_count, username, original_id, created_at
FROM archived_items WHERE job_id = $1 ORDER BY position ASC`
	items := []models.ArchivedItem{}
	if err := r.db.SelectContext(ctx, &items, query, jobID); err != nil {
		return nil, fmt.Errorf("list archived items: %w", err)
	}
	return items, nil
}
