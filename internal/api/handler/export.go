package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/domain"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/model"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet   = "Analyses"
	maxExportRows = 1000
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeaders = []string{
	"Job ID",
	"Resume ID",
	"Job Role",
	"Industry",
	"Experience Level",
	"Status",
	"Overall Score",
	"Created At",
	"Completed At",
	"Error",
}

// ExportAnalysisJobs handles GET /api/analysis-jobs/export
func (h *AnalysisHandler) ExportAnalysisJobs(c *gin.Context) {
	p, ok := requirePrincipal(c, h.logger)
	if !ok {
		return
	}

	start := time.Now()
	jobs, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		UserID:   p.UserID,
		PageSize: maxExportRows,
	})
	if err != nil {
		respondError(c, h.logger, domain.Internal("Failed to list jobs", err))
		return
	}
	if len(jobs) > maxExportRows {
		jobs = jobs[:maxExportRows]
	}

	data, err := buildAnalysisWorkbook(jobs)
	if err != nil {
		respondError(c, h.logger, domain.Internal("Failed to build export", err))
		return
	}

	h.logger.Info("Analysis export built",
		slog.String("user_id", p.UserID),
		slog.Int("rows", len(jobs)),
		slog.Duration("latency", time.Since(start)),
	)

	filename := fmt.Sprintf("resume-analyses-%s.xlsx", h.now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxMIME, data)
}

var exportColumnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "B", 38},
	{"C", "E", 22},
	{"F", "G", 14},
	{"H", "I", 22},
	{"J", "J", 60},
}

// buildAnalysisWorkbook renders jobs newest first, one per row.
func buildAnalysisWorkbook(jobs []model.AnalysisJob) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		row := []any{
			job.ID,
			job.ResumeID,
			job.JobRole,
			job.Industry,
			job.ExperienceLevel,
			job.Status,
			"",
			formatTime(job.CreatedAt),
			"",
			"",
		}
		if score := overallScore(job.Result); score != nil {
			row[6] = *score
		}
		if job.CompletedAt.Valid {
			row[8] = formatTime(job.CompletedAt.Time)
		}
		if job.Status == domain.JobStatusFailed {
			row[9] = domain.DefaultFailureMessage
			if job.ErrorMessage.Valid && job.ErrorMessage.String != "" {
				row[9] = job.ErrorMessage.String
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for _, w := range exportColumnWidths {
		if err := f.SetColWidth(exportSheet, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("set width %s:%s: %w", w.from, w.to, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
