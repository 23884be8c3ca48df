package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oculohealth/rota-api/internal/models"
)

// ExportRepository tracks requested rota exports.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository creates a new export repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a pending export record.
func (r *ExportRepository) Create(ctx context.Context, exp *models.RotaExport) error {
	const query = `INSERT INTO rota_exports (id, schedule_id, format, status, requested_by, created_at)
        VALUES (:id, :schedule_id, :format, :status, :requested_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exp); err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	return nil
}

// FindByID returns one export record.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.RotaExport, error) {
	const query = `SELECT id, schedule_id, format, file_name, status, error, requested_by, created_at, completed_at
        FROM rota_exports WHERE id = $1`
	var exp models.RotaExport
	if err := r.db.GetContext(ctx, &exp, query, id); err != nil {
		return nil, err
	}
	return &exp, nil
}

// MarkCompleted records a finished export and its file name.
func (r *ExportRepository) MarkCompleted(ctx context.Context, id, fileName string, completedAt time.Time) error {
	const query = `UPDATE rota_exports SET status = $2, file_name = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusCompleted, fileName, completedAt); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	return nil
}

// MarkFailed records an export failure.
func (r *ExportRepository) MarkFailed(ctx context.Context, id, errMsg string, completedAt time.Time) error {
	const query = `UPDATE rota_exports SET status = $2, error = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFailed, errMsg, completedAt); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}
