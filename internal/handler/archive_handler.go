package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/forum-archive-api/internal/dto"
	"github.com/noah-isme/forum-archive-api/internal/models"
	"github.com/noah-isme/forum-archive-api/internal/service"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
	"github.com/noah-isme/forum-archive-api/pkg/response"
)

type archiveService interface {
	CreateJob(ctx context.Context, actor *models.JWTClaims, req dto.CreateArchiveJobRequest) (*dto.ArchiveJobCreatedResponse, error)
	ListJobs(ctx context.Context, actor *models.JWTClaims) ([]dto.ArchiveJobResponse, error)
	GetJob(ctx context.Context, actor *models.JWTClaims, id string) (*dto.ArchiveJobResponse, error)
	ListItems(ctx context.Context, actor *models.JWTClaims, id string) ([]models.ArchivedItem, error)
}

type archiveExporter interface {
	Export(ctx context.Context, actor *models.JWTClaims, jobID string, format dto.ExportFormat) (*service.ExportResult, error)
}

// ArchiveHandler exposes archive job endpoints.
type ArchiveHandler struct {
	jobs     archiveService
	exporter archiveExporter
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(jobs archiveService, exporter archiveExporter) *ArchiveHandler {
	return &ArchiveHandler{jobs: jobs, exporter: exporter}
}

// CreateJob godoc
// @Summary Queue an archive job
// @Tags Archives
// @Accept json
// @Produce json
// @Param payload body dto.CreateArchiveJobRequest true "Username and platforms"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /archives/jobs [post]
func (h *ArchiveHandler) CreateJob(c *gin.Context) {
	var req dto.CreateArchiveJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	resp, err := h.jobs.CreateJob(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// ListJobs godoc
// @Summary List the caller's archive jobs, newest first
// @Tags Archives
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /archives/jobs [get]
func (h *ArchiveHandler) ListJobs(c *gin.Context) {
	list, err := h.jobs.ListJobs(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, map[string]interface{}{"total": len(list)})
}

// GetJob godoc
// @Summary Archive job status
// @Tags Archives
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archives/jobs/{id} [get]
func (h *ArchiveHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// ListItems godoc
// @Summary Archived items of a job in fetch order
// @Tags Archives
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archives/jobs/{id}/items [get]
func (h *ArchiveHandler) ListItems(c *gin.Context) {
	items, err := h.jobs.ListItems(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Export godoc
// @Summary Download the archived items of a job
// @Tags Archives
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Job ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archives/jobs/{id}/export [get]
func (h *ArchiveHandler) Export(c *gin.Context) {
	format := dto.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format"))))
	result, err := h.exporter.Export(c.Request.Context(), claimsFromContext(c), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
