package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/forum-archive-api/internal/dto"
	"github.com/noah-isme/forum-archive-api/internal/models"
	"github.com/noah-isme/forum-archive-api/internal/repository"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
	"github.com/noah-isme/forum-archive-api/pkg/jobs"
)

// ArchiveJobType tags archive entries on the shared queue.
const ArchiveJobType = "archive"

const (
	defaultRecoveryBatch = 100
	terminalWriteTimeout = 10 * time.Second
	interruptedMessage   = "archive interrupted before completion"
)

type archiveJobReader interface {
	GetByID(ctx context.Context, id string) (*models.ArchiveJob, error)
}

type archiveJobStore interface {
	archiveJobReader
	Create(ctx context.Context, job *models.ArchiveJob) error
	ListByUser(ctx context.Context, userID string) ([]models.ArchiveJob, error)
	ListByStatus(ctx context.Context, status models.JobStatus, after *repository.JobCursor, limit int) ([]models.ArchiveJob, error)
	Transition(ctx context.Context, id string, params repository.TransitionParams) error
}

type archivedItemStore interface {
	InsertBatch(ctx context.Context, jobID string, startPosition int, items []models.ArchivedItem) error
	ListByJob(ctx context.Context, jobID string) ([]models.ArchivedItem, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ContentFetcher retrieves every normalized item of a username on one platform.
type ContentFetcher interface {
	Fetch(ctx context.Context, username string) ([]models.ArchivedItem, error)
}

type jobObserver interface {
	ObserveJob(status models.JobStatus, duration time.Duration)
	AddItemsFetched(platform models.Platform, count int)
}

// ArchiveServiceConfig tunes pending job recovery.
type ArchiveServiceConfig struct {
	RecoveryBatch    int
	RecoveryInterval time.Duration
}

// ArchiveService handles the synchronous archive job entrypoints.
type ArchiveService struct {
	repo      archiveJobStore
	items     archivedItemStore
	queue     jobDispatcher
	validator *validator.Validate
	cfg       ArchiveServiceConfig
	logger    *zap.Logger
}

// NewArchiveService constructs the service.
func NewArchiveService(repo archiveJobStore, items archivedItemStore, queue jobDispatcher, validate *validator.Validate, cfg ArchiveServiceConfig, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.RecoveryBatch <= 0 {
		cfg.RecoveryBatch = defaultRecoveryBatch
	}
	return &ArchiveService{repo: repo, items: items, queue: queue, validator: validate, cfg: cfg, logger: logger}
}

// CreateJob validates the request, persists a pending job and queues it. It never waits for
// fetching or for queue capacity: when the buffer is full the job stays pending and the
// recovery sweep dispatches it later.
func (s *ArchiveService) CreateJob(ctx context.Context, actor *models.JWTClaims, req dto.CreateArchiveJobRequest) (*dto.ArchiveJobCreatedResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}

	job := &models.ArchiveJob{
		UserID:    actor.UserID,
		Username:  req.Username,
		Platforms: dedupePlatforms(req.Platforms),
		Status:    models.JobStatusPending,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create archive job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ArchiveJobType}); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			s.logger.Warn("archive queue full, job left pending for recovery",
				zap.String("job_id", job.ID),
				zap.String("user_id", job.UserID))
			return &dto.ArchiveJobCreatedResponse{ID: job.ID, Status: job.Status}, nil
		}
		msg := "failed to enqueue job"
		if updateErr := s.repo.Transition(ctx, job.ID, repository.TransitionParams{
			From:         models.JobStatusPending,
			To:           models.JobStatusFailed,
			ErrorMessage: &msg,
		}); updateErr != nil {
			s.logger.Warn("failed to mark unqueued job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue archive job")
	}
	s.logger.Info("archive job queued",
		zap.String("job_id", job.ID),
		zap.String("user_id", job.UserID),
		zap.String("username", job.Username),
		zap.Int("platforms", len(job.Platforms)))
	return &dto.ArchiveJobCreatedResponse{ID: job.ID, Status: job.Status}, nil
}

// ListJobs returns the jobs owned by actor, newest first.
func (s *ArchiveService) ListJobs(ctx context.Context, actor *models.JWTClaims) ([]dto.ArchiveJobResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	records, err := s.repo.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archive jobs")
	}
	out := make([]dto.ArchiveJobResponse, 0, len(records))
	for _, job := range records {
		out = append(out, dto.NewArchiveJobResponse(job))
	}
	return out, nil
}

// GetJob returns a single job. Reads are not restricted to the owner.
func (s *ArchiveService) GetJob(ctx context.Context, actor *models.JWTClaims, id string) (*dto.ArchiveJobResponse, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := loadJob(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewArchiveJobResponse(*job)
	return &resp, nil
}

// ListItems returns the archived items of a job in position order. Like GetJob it is
// open to any authenticated caller.
func (s *ArchiveService) ListItems(ctx context.Context, actor *models.JWTClaims, id string) ([]models.ArchivedItem, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := loadJob(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archived items")
	}
	if items == nil {
		items = []models.ArchivedItem{}
	}
	return items, nil
}

// RecoverPendingJobs re-queues pending jobs, oldest first, one page at a time. It stops
// early once the queue is full; the remaining jobs wait for the next sweep.
func (s *ArchiveService) RecoverPendingJobs(ctx context.Context) int {
	recovered := 0
	var cursor *repository.JobCursor
	for {
		page, err := s.repo.ListByStatus(ctx, models.JobStatusPending, cursor, s.cfg.RecoveryBatch)
		if err != nil {
			s.logger.Sugar().Warnw("failed to recover pending archive jobs", "error", err)
			break
		}
		for _, job := range page {
			err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ArchiveJobType})
			switch {
			case err == nil:
				recovered++
			case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrQueueStopped):
				s.logger.Sugar().Infow("pending recovery paused", "job_id", job.ID, "recovered", recovered, "reason", err)
				s.logRecovered(recovered)
				return recovered
			default:
				s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
			}
		}
		if len(page) < s.cfg.RecoveryBatch {
			break
		}
		last := page[len(page)-1]
		cursor = &repository.JobCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	s.logRecovered(recovered)
	return recovered
}

func (s *ArchiveService) logRecovered(count int) {
	if count > 0 {
		s.logger.Sugar().Infow("recovered pending archive jobs", "count", count)
	}
}

// FailInterruptedJobs marks jobs left running by a previous process as failed. Call it
// at boot before the queue accepts work; nothing else can still be running them.
func (s *ArchiveService) FailInterruptedJobs(ctx context.Context) int {
	failed := 0
	msg := interruptedMessage
	var cursor *repository.JobCursor
	for {
		page, err := s.repo.ListByStatus(ctx, models.JobStatusRunning, cursor, s.cfg.RecoveryBatch)
		if err != nil {
			s.logger.Sugar().Warnw("failed to list interrupted archive jobs", "error", err)
			break
		}
		for _, job := range page {
			if err := s.repo.Transition(ctx, job.ID, repository.TransitionParams{
				From:         models.JobStatusRunning,
				To:           models.JobStatusFailed,
				ErrorMessage: &msg,
			}); err != nil {
				s.logger.Sugar().Warnw("failed to mark interrupted job failed", "job_id", job.ID, "error", err)
				continue
			}
			failed++
		}
		if len(page) < s.cfg.RecoveryBatch {
			break
		}
		last := page[len(page)-1]
		cursor = &repository.JobCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	if failed > 0 {
		s.logger.Sugar().Infow("failed interrupted archive jobs", "count", failed)
	}
	return failed
}

// StartRecoverySweep boots a goroutine that re-queues pending jobs periodically.
func (s *ArchiveService) StartRecoverySweep(ctx context.Context) {
	if s.cfg.RecoveryInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.RecoveryInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RecoverPendingJobs(ctx)
			}
		}
	}()
}

func loadJob(ctx context.Context, repo archiveJobReader, id string) (*models.ArchiveJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "job id is required")
	}
	job, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive job")
	}
	return job, nil
}

func dedupePlatforms(in []models.Platform) models.PlatformList {
	seen := make(map[models.Platform]struct{}, len(in))
	out := make(models.PlatformList, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.ErrValidation.Message
	}
	fe := fieldErrs[0]
	switch {
	case fe.Field() == "Username":
		return "username is required"
	case fe.Field() == "Platforms":
		return "at least one platform is required"
	case fe.Tag() == "oneof":
		return fmt.Sprintf("unsupported platform %q", fe.Value())
	default:
		return fmt.Sprintf("invalid %s", strings.ToLower(fe.Field()))
	}
}

// ArchiveWorker executes queued archive jobs.
type ArchiveWorker struct {
	jobs     archiveJobStore
	items    archivedItemStore
	fetchers map[models.Platform]ContentFetcher
	metrics  jobObserver
	logger   *zap.Logger
}

// NewArchiveWorker constructs a worker. metrics may be nil.
func NewArchiveWorker(jobStore archiveJobStore, items archivedItemStore, fetchers map[models.Platform]ContentFetcher, metrics jobObserver, logger *zap.Logger) *ArchiveWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveWorker{jobs: jobStore, items: items, fetchers: fetchers, metrics: metrics, logger: logger}
}

// Handle runs one job to a terminal status. Platforms are processed in request order and
// items are persisted as soon as each platform returns.
func (w *ArchiveWorker) Handle(ctx context.Context, job jobs.Job) error {
	log := w.logger.With(zap.String("job_id", job.ID))
	record, err := w.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load archive job %s: %w", job.ID, err)
	}
	if record.Status != models.JobStatusPending {
		log.Info("skipping archive job that is not pending", zap.String("status", string(record.Status)))
		return nil
	}
	if err := w.jobs.Transition(ctx, job.ID, repository.TransitionParams{
		From: models.JobStatusPending,
		To:   models.JobStatusRunning,
	}); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			log.Info("archive job claimed elsewhere")
			return nil
		}
		return err
	}

	start := time.Now()
	total := 0
	for _, platform := range record.Platforms {
		fetcher, ok := w.fetchers[platform]
		if !ok {
			return w.fail(ctx, log, record, start, fmt.Errorf("platform %s is not configured", platform))
		}
		items, err := fetcher.Fetch(ctx, record.Username)
		if err != nil {
			return w.fail(ctx, log, record, start, err)
		}
		if err := w.items.InsertBatch(ctx, record.ID, total, items); err != nil {
			return w.fail(ctx, log, record, start, fmt.Errorf("failed to persist %s items: %w", platform, err))
		}
		total += len(items)
		if w.metrics != nil {
			w.metrics.AddItemsFetched(platform, len(items))
		}
		progress := total
		if err := w.transition(ctx, record.ID, repository.TransitionParams{
			From:           models.JobStatusRunning,
			To:             models.JobStatusRunning,
			ProcessedItems: &progress,
		}); err != nil {
			log.Warn("failed to record archive progress", zap.Error(err))
		}
		log.Info("platform archived", zap.String("platform", string(platform)), zap.Int("items", len(items)))
	}

	now := time.Now().UTC()
	if err := w.transition(ctx, record.ID, repository.TransitionParams{
		From:           models.JobStatusRunning,
		To:             models.JobStatusCompleted,
		ProcessedItems: &total,
		TotalItems:     &total,
		CompletedAt:    &now,
	}); err != nil {
		log.Error("failed to mark archive job completed", zap.Error(err))
		return err
	}
	if w.metrics != nil {
		w.metrics.ObserveJob(models.JobStatusCompleted, time.Since(start))
	}
	log.Info("archive job completed", zap.Int("items", total))
	return nil
}

func (w *ArchiveWorker) fail(ctx context.Context, log *zap.Logger, record *models.ArchiveJob, start time.Time, cause error) error {
	msg := cause.Error()
	if ctx.Err() != nil {
		msg = interruptedMessage + ": " + msg
	}
	if err := w.transition(ctx, record.ID, repository.TransitionParams{
		From:         models.JobStatusRunning,
		To:           models.JobStatusFailed,
		ErrorMessage: &msg,
	}); err != nil {
		log.Error("failed to mark archive job failed", zap.Error(err))
	}
	if w.metrics != nil {
		w.metrics.ObserveJob(models.JobStatusFailed, time.Since(start))
	}
	return cause
}

// transition writes status changes on a context detached from ctx's cancellation so a
// job cancelled mid-run still reaches a terminal status.
func (w *ArchiveWorker) transition(ctx context.Context, id string, p repository.TransitionParams) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	return w.jobs.Transition(writeCtx, id, p)
}
