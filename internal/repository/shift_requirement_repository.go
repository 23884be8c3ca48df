package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oculohealth/rota-api/internal/models"
)

// ShiftRequirementRepository handles per-period shift demand rows.
type ShiftRequirementRepository struct {
	db *sqlx.DB
}

// NewShiftRequirementRepository creates a new requirement repository.
func NewShiftRequirementRepository(db *sqlx.DB) *ShiftRequirementRepository {
	return &ShiftRequirementRepository{db: db}
}

// ListByPeriod returns requirements for a period ordered by date then type.
func (r *ShiftRequirementRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftRequirement, error) {
	const query = `SELECT id, period_id, shift_date, shift_type, headcount, min_tier, created_at
        FROM shift_requirements WHERE period_id = $1 ORDER BY shift_date, shift_type`
	var reqs []models.ShiftRequirement
	if err := r.db.SelectContext(ctx, &reqs, query, periodID); err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	return reqs, nil
}

// Create inserts one requirement row.
func (r *ShiftRequirementRepository) Create(ctx context.Context, req *models.ShiftRequirement) error {
	const query = `INSERT INTO shift_requirements (id, period_id, shift_date, shift_type, headcount, min_tier, created_at)
        VALUES (:id, :period_id, :shift_date, :shift_type, :headcount, :min_tier, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create requirement: %w", err)
	}
	return nil
}

// Delete removes one requirement row.
func (r *ShiftRequirementRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM shift_requirements WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete requirement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete requirement: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
