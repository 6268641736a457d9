package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/forum-archive-api/internal/dto"
	"github.com/noah-isme/forum-archive-api/internal/models"
	appErrors "github.com/noah-isme/forum-archive-api/pkg/errors"
	"github.com/noah-isme/forum-archive-api/pkg/export"
)

// ArchiveCSVHeaders is the fixed column order of CSV exports.
var ArchiveCSVHeaders = []string{"platform", "content_type", "title", "content", "url", "date_posted", "score", "parent_title", "word_count", "username"}

var archivePDFHeaders = []string{"Platform", "Type", "Title", "Date", "Score", "Words"}

// ExportResult is a rendered export ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders the archived items of a job.
type ExportService struct {
	jobs   archiveJobReader
	items  archivedItemStore
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the package defaults.
func NewExportService(jobs archiveJobReader, items archivedItemStore, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{jobs: jobs, items: items, csv: csv, pdf: pdf, logger: logger}
}

// Export renders every item of jobID for its owner.
func (s *ExportService) Export(ctx context.Context, actor *models.JWTClaims, jobID string, format dto.ExportFormat) (*ExportResult, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	job, err := loadJob(ctx, s.jobs, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != actor.UserID {
		return nil, appErrors.WithStatus(appErrors.Clone(appErrors.ErrUnauthorized, "only the job owner can export it"), http.StatusForbidden)
	}

	items, err := s.items.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archived items")
	}

	var result *ExportResult
	switch format {
	case dto.ExportFormatPDF:
		data, err := s.pdf.Render(pdfDataset(items), fmt.Sprintf("Archive of %s", job.Username))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		result = &ExportResult{Filename: fmt.Sprintf("archive-%s.pdf", job.ID), ContentType: "application/pdf", Data: data}
	default:
		data, err := s.csv.Render(CSVDataset(items))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		result = &ExportResult{Filename: fmt.Sprintf("archive-%s.csv", job.ID), ContentType: "text/csv", Data: data}
	}
	s.logger.Info("archive exported",
		zap.String("job_id", job.ID),
		zap.String("format", string(format)),
		zap.Int("items", len(items)))
	return result, nil
}

// CSVDataset maps items to the fixed CSV columns. Absent optional fields render empty.
func CSVDataset(items []models.ArchivedItem) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"platform":     string(item.Platform),
			"content_type": string(item.ContentType),
			"title":        deref(item.Title),
			"content":      item.Content,
			"url":          item.URL,
			"date_posted":  item.DatePosted,
			"score":        formatScore(item.Score),
			"parent_title": deref(item.ParentTitle),
			"word_count":   strconv.Itoa(item.WordCount),
			"username":     item.Username,
		})
	}
	return export.Dataset{Headers: ArchiveCSVHeaders, Rows: rows}
}

func pdfDataset(items []models.ArchivedItem) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		title := deref(item.Title)
		if title == "" && item.ParentTitle != nil {
			title = "Re: " + *item.ParentTitle
		}
		rows = append(rows, map[string]string{
			"Platform": string(item.Platform),
			"Type":     string(item.ContentType),
			"Title":    title,
			"Date":     item.DatePosted,
			"Score":    formatScore(item.Score),
			"Words":    strconv.Itoa(item.WordCount),
		})
	}
	return export.Dataset{Headers: archivePDFHeaders, Rows: rows}
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
