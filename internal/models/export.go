package models

import "time"

// RotaExportStatus tracks async export jobs.
type RotaExportStatus string

const (
	ExportStatusPending   RotaExportStatus = "PENDING"
	ExportStatusCompleted RotaExportStatus = "COMPLETED"
	ExportStatusFailed    RotaExportStatus = "FAILED"
)

// RotaExport records one requested rota file export.
type RotaExport struct {
	ID          string           `db:"id" json:"id"`
	ScheduleID  string           `db:"schedule_id" json:"schedule_id"`
	Format      string           `db:"format" json:"format"`
	FileName    string           `db:"file_name" json:"file_name,omitempty"`
	Status      RotaExportStatus `db:"status" json:"status"`
	Error       string           `db:"error" json:"error,omitempty"`
	RequestedBy string           `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}
