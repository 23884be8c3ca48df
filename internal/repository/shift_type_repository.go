package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oculohealth/rota-api/internal/models"
)

// ShiftTypeRepository serves the shift type catalogue.
type ShiftTypeRepository struct {
	db *sqlx.DB
}

// NewShiftTypeRepository creates a new shift type repository.
func NewShiftTypeRepository(db *sqlx.DB) *ShiftTypeRepository {
	return &ShiftTypeRepository{db: db}
}

// List returns every shift type ordered by code.
func (r *ShiftTypeRepository) List(ctx context.Context) ([]models.ShiftType, error) {
	const query = `SELECT code, label, start_hour, duration_hours, min_tier, fairness_weight
        FROM shift_types ORDER BY code`
	var types []models.ShiftType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list shift types: %w", err)
	}
	return types, nil
}

// Upsert writes one shift type row. Used by seeding.
func (r *ShiftTypeRepository) Upsert(ctx context.Context, st *models.ShiftType) error {
	const query = `INSERT INTO shift_types (code, label, start_hour, duration_hours, min_tier, fairness_weight)
        VALUES (:code, :label, :start_hour, :duration_hours, :min_tier, :fairness_weight)
        ON CONFLICT (code)
        DO UPDATE SET label = EXCLUDED.label, start_hour = EXCLUDED.start_hour,
            duration_hours = EXCLUDED.duration_hours, min_tier = EXCLUDED.min_tier,
            fairness_weight = EXCLUDED.fairness_weight`
	if _, err := r.db.NamedExecContext(ctx, query, st); err != nil {
		return fmt.Errorf("upsert shift type: %w", err)
	}
	return nil
}
