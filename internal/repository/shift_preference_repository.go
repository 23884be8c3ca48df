package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oculohealth/rota-api/internal/models"
)

// ShiftPreferenceRepository handles per-user shift preference rows.
type ShiftPreferenceRepository struct {
	db *sqlx.DB
}

// NewShiftPreferenceRepository creates a new preference repository.
func NewShiftPreferenceRepository(db *sqlx.DB) *ShiftPreferenceRepository {
	return &ShiftPreferenceRepository{db: db}
}

const preferenceColumns = `id, period_id, user_id, shift_date, shift_type, level, created_at, updated_at`

// ListByPeriod returns every preference for a period.
func (r *ShiftPreferenceRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error) {
	query := fmt.Sprintf(`SELECT %s FROM shift_preferences WHERE period_id = $1 ORDER BY user_id, shift_date, shift_type`, preferenceColumns)
	var prefs []models.ShiftPreference
	if err := r.db.SelectContext(ctx, &prefs, query, periodID); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// ListByUser returns one user's preferences for a period.
func (r *ShiftPreferenceRepository) ListByUser(ctx context.Context, periodID, userID string) ([]models.ShiftPreference, error) {
	query := fmt.Sprintf(`SELECT %s FROM shift_preferences WHERE period_id = $1 AND user_id = $2 ORDER BY shift_date, shift_type`, preferenceColumns)
	var prefs []models.ShiftPreference
	if err := r.db.SelectContext(ctx, &prefs, query, periodID, userID); err != nil {
		return nil, fmt.Errorf("list preferences for user: %w", err)
	}
	return prefs, nil
}

// ReplaceForUser atomically swaps a user's preferences for the period.
func (r *ShiftPreferenceRepository) ReplaceForUser(ctx context.Context, periodID, userID string, prefs []models.ShiftPreference) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin preference replace: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shift_preferences WHERE period_id = $1 AND user_id = $2`, periodID, userID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear preferences: %w", err)
	}
	const insert = `INSERT INTO shift_preferences (id, period_id, user_id, shift_date, shift_type, level, created_at, updated_at)
        VALUES (:id, :period_id, :user_id, :shift_date, :shift_type, :level, :created_at, :updated_at)`
	for i := range prefs {
		if _, err := tx.NamedExecContext(ctx, insert, prefs[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert preference: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preference replace: %w", err)
	}
	return nil
}
