package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

// ErrStaleTransition is returned when a job is no longer in the status a transition expects.
var ErrStaleTransition = errors.New("archive job status changed concurrently")

const archiveJobColumns = `id, user_id, username, platforms, status, processed_items, total_items, error_message, created_at, completed_at`

// ArchiveJobRepository persists archive job rows.
type ArchiveJobRepository struct {
	db *sqlx.DB
}

// NewArchiveJobRepository constructs the repository.
func NewArchiveJobRepository(db *sqlx.DB) *ArchiveJobRepository {
	return &ArchiveJobRepository{db: db}
}

// Create inserts a new job row with generated defaults.
func (r *ArchiveJobRepository) Create(ctx context.Context, job *models.ArchiveJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO archive_jobs (id, user_id, username, platforms, status, processed_items, total_items, error_message, created_at, completed_at)
VALUES (:id, :user_id, :username, :platforms, :status, :processed_items, :total_items, :error_message, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create archive job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier. Missing rows wrap sql.ErrNoRows.
func (r *ArchiveJobRepository) GetByID(ctx context.Context, id string) (*models.ArchiveJob, error) {
	query := `SELECT ` + archiveJobColumns + ` FROM archive_jobs WHERE id = $1`
	var job models.ArchiveJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get archive job: %w", err)
	}
	return &job, nil
}

// ListByUser returns all jobs owned by userID, newest first.
func (r *ArchiveJobRepository) ListByUser(ctx context.Context, userID string) ([]models.ArchiveJob, error) {
	query := `SELECT ` + archiveJobColumns + ` FROM archive_jobs WHERE user_id = $1 ORDER BY created_at DESC`
	jobs := []models.ArchiveJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("list archive jobs: %w", err)
	}
	return jobs, nil
}

// JobCursor marks the last row of a page returned by ListByStatus.
type JobCursor struct {
	CreatedAt time.Time
	ID        string
}

// ListByStatus pages through jobs in a status, oldest first. Pass the cursor of the
// previous page's last row to continue; nil starts from the beginning.
func (r *ArchiveJobRepository) ListByStatus(ctx context.Context, status models.JobStatus, after *JobCursor, limit int) ([]models.ArchiveJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + archiveJobColumns + ` FROM archive_jobs WHERE status = $1`
	args := []interface{}{status}
	if after != nil {
		query += ` AND (created_at, id) > ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var jobs []models.ArchiveJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list %s archive jobs: %w", status, err)
	}
	return jobs, nil
}

// TransitionParams describes a status change and the fields recorded with it.
type TransitionParams struct {
	From           models.JobStatus
	To             models.JobStatus
	ProcessedItems *int
	TotalItems     *int
	ErrorMessage   *string
	CompletedAt    *time.Time
}

// Transition moves a job from p.From to p.To. It fails with ErrStaleTransition when the
// stored status no longer equals p.From.
func (r *ArchiveJobRepository) Transition(ctx context.Context, id string, p TransitionParams) error {
	set := []string{"status = $1"}
	args := []interface{}{p.To}
	argPos := 2

	if p.ProcessedItems != nil {
		set = append(set, fmt.Sprintf("processed_items = $%d", argPos))
		args = append(args, *p.ProcessedItems)
		argPos++
	}
	if p.TotalItems != nil {
		set = append(set, fmt.Sprintf("total_items = $%d", argPos))
		args = append(args, *p.TotalItems)
		argPos++
	}
	if p.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *p.ErrorMessage)
		argPos++
	}
	if p.CompletedAt != nil {
		set = append(set, fmt.Sprintf("completed_at = $%d", argPos))
		args = append(args, *p.CompletedAt)
		argPos++
	}

	query := fmt.Sprintf("UPDATE archive_jobs SET %s WHERE id = $%d AND status = $%d", strings.Join(set, ", "), argPos, argPos+1)
	args = append(args, id, p.From)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition archive job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition archive job: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transition archive job %s from %s to %s: %w", id, p.From, p.To, ErrStaleTransition)
	}
	return nil
}
