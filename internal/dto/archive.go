package dto

import (
	"time"

	"github.com/noah-isme/forum-archive-api/internal/models"
)

// CreateArchiveJobRequest captures POST /archives/jobs payload.
type CreateArchiveJobRequest struct {
	Username  string            `json:"username" validate:"required"`
	Platforms []models.Platform `json:"platforms" validate:"required,min=1,dive,oneof=ea-forum lesswrong"`
}

// ArchiveJobCreatedResponse is returned right after a job is queued.
type ArchiveJobCreatedResponse struct {
	ID     string           `json:"id"`
	Status models.JobStatus `json:"status"`
}

// ArchiveJobResponse exposes job progress metadata.
type ArchiveJobResponse struct {
	ID             string            `json:"id"`
	Username       string            `json:"username"`
	Platforms      []models.Platform `json:"platforms"`
	Status         models.JobStatus  `json:"status"`
	ProcessedItems *int              `json:"processedItems,omitempty"`
	TotalItems     *int              `json:"totalItems,omitempty"`
	ErrorMessage   *string           `json:"errorMessage,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

// NewArchiveJobResponse maps a stored job to its API shape.
func NewArchiveJobResponse(job models.ArchiveJob) ArchiveJobResponse {
	platforms := []models.Platform(job.Platforms)
	if platforms == nil {
		platforms = []models.Platform{}
	}
	return ArchiveJobResponse{
		ID:             job.ID,
		Username:       job.Username,
		Platforms:      platforms,
		Status:         job.Status,
		ProcessedItems: job.ProcessedItems,
		TotalItems:     job.TotalItems,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// ExportFormat selects the export document type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)
