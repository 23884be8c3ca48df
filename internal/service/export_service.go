package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
	"github.com/oculohealth/rota-api/pkg/export"
	"github.com/oculohealth/rota-api/pkg/jobs"
	"github.com/oculohealth/rota-api/pkg/storage"
)

// Export formats accepted by RequestExport.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type exportStore interface {
	Create(ctx context.Context, exp *models.RotaExport) error
	FindByID(ctx context.Context, id string) (*models.RotaExport, error)
	MarkCompleted(ctx context.Context, id, fileName string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, errMsg string, completedAt time.Time) error
}

// ExportService renders rota schedules to downloadable CSV or PDF files.
// Rendering runs on the jobs queue; callers poll the export record and
// fetch the file through a signed URL.
type ExportService struct {
	exports   exportStore
	schedules rotaScheduleStore
	roster    rosterReader
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	files     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	logger    *zap.Logger
	now       func() time.Time
}

type exportJobPayload struct {
	ExportID   string
	ScheduleID string
	Format     string
}

// NewExportService wires the exporter. Call AttachQueue before use; the
// queue handler needs the service, so construction is two-phase.
func NewExportService(
	exports exportStore,
	schedules rotaScheduleStore,
	roster rosterReader,
	files *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	logger *zap.Logger,
	now func() time.Time,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &ExportService{
		exports:   exports,
		schedules: schedules,
		roster:    roster,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		files:     files,
		signer:    signer,
		logger:    logger,
		now:       now,
	}
}

// AttachQueue installs the worker queue that runs export jobs.
func (s *ExportService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// HandleJob is the jobs.Handler for export work.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.render(ctx, payload)
}

// RequestExport records a pending export and queues the render.
func (s *ExportService) RequestExport(ctx context.Context, scheduleID, format, requestedBy string) (*models.RotaExport, error) {
	format = strings.ToLower(format)
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is not running")
	}
	if _, err := s.schedules.FindByID(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rota schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	record := &models.RotaExport{
		ID:          uuid.NewString(),
		ScheduleID:  scheduleID,
		Format:      format,
		Status:      models.ExportStatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.exports.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export record")
	}

	err := s.queue.Enqueue(jobs.Job{
		ID:   record.ID,
		Type: "rota_export",
		Payload: exportJobPayload{
			ExportID:   record.ID,
			ScheduleID: scheduleID,
			Format:     format,
		},
	})
	if err != nil {
		_ = s.exports.MarkFailed(ctx, record.ID, "queue full", s.now().UTC())
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return record, nil
}

// GetExport returns the export record, with a signed download URL token
// once the file is ready.
func (s *ExportService) GetExport(ctx context.Context, id string) (*models.RotaExport, string, error) {
	record, err := s.exports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	var token string
	if record.Status == models.ExportStatusCompleted && record.FileName != "" {
		token, _, err = s.signer.Generate(record.ID, record.FileName)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
	}
	return record, token, nil
}

// OpenDownload validates a signed token and opens the exported file.
func (s *ExportService) OpenDownload(ctx context.Context, token string) (*models.RotaExport, string, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	record, err := s.exports.FindByID(ctx, exportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	if record.Status != models.ExportStatusCompleted || record.FileName != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file is not available")
	}
	return record, relPath, nil
}

func (s *ExportService) render(ctx context.Context, payload exportJobPayload) error {
	schedule, err := s.schedules.FindByID(ctx, payload.ScheduleID)
	if err != nil {
		s.fail(ctx, payload.ExportID, "schedule not found")
		return err
	}
	roster, err := s.roster.ListActive(ctx)
	if err != nil {
		s.fail(ctx, payload.ExportID, "failed to load roster")
		return err
	}
	dataset := buildRotaDataset(schedule, roster)

	var (
		data     []byte
		fileName string
	)
	switch payload.Format {
	case ExportFormatCSV:
		data, err = s.csv.Render(dataset)
		fileName = fmt.Sprintf("rota-%s-v%d-%s.csv", schedule.PeriodID, schedule.Version, payload.ExportID[:8])
	case ExportFormatPDF:
		title := fmt.Sprintf("Rota %s (version %d)", schedule.PeriodID, schedule.Version)
		data, err = s.pdf.Render(dataset, title)
		fileName = fmt.Sprintf("rota-%s-v%d-%s.pdf", schedule.PeriodID, schedule.Version, payload.ExportID[:8])
	default:
		err = fmt.Errorf("unknown format %q", payload.Format)
	}
	if err != nil {
		s.fail(ctx, payload.ExportID, "render failed")
		return err
	}

	if _, err := s.files.Save(fileName, data); err != nil {
		s.fail(ctx, payload.ExportID, "failed to write file")
		return err
	}
	if err := s.exports.MarkCompleted(ctx, payload.ExportID, fileName, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("rota export completed",
		zap.String("export_id", payload.ExportID),
		zap.String("file", fileName),
	)
	return nil
}

func (s *ExportService) fail(ctx context.Context, exportID, reason string) {
	if err := s.exports.MarkFailed(ctx, exportID, reason, s.now().UTC()); err != nil {
		s.logger.Warn("failed to mark export failed", zap.String("export_id", exportID), zap.Error(err))
	}
}

// buildRotaDataset shapes a schedule into the tabular form both exporters
// consume: one row per active assignment, date ascending.
func buildRotaDataset(schedule *models.RotaSchedule, roster []models.RotaUser) export.Dataset {
	names := make(map[string]string, len(roster))
	for _, u := range roster {
		names[u.ID] = u.DisplayName
	}

	rows := make([]map[string]string, 0, len(schedule.Assignments))
	for _, a := range schedule.Assignments {
		if !a.Active {
			continue
		}
		name := names[a.UserID]
		if name == "" {
			name = a.UserID
		}
		rows = append(rows, map[string]string{
			"Date":       models.DateKey(a.Date),
			"Shift":      string(a.ShiftType),
			"Staff":      name,
			"Staff ID":   a.UserID,
			"Assignment": a.ID,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i]["Date"] != rows[j]["Date"] {
			return rows[i]["Date"] < rows[j]["Date"]
		}
		if rows[i]["Shift"] != rows[j]["Shift"] {
			return rows[i]["Shift"] < rows[j]["Shift"]
		}
		return rows[i]["Staff ID"] < rows[j]["Staff ID"]
	})

	return export.Dataset{
		Headers: []string{"Date", "Shift", "Staff", "Staff ID", "Assignment"},
		Rows:    rows,
	}
}
