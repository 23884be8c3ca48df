package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/oculohealth/rota-api/internal/models"
)

// RotaScheduleRepository persists generated schedules, their assignments
// and the generation log. Writes that belong to one save run against the
// caller's transaction.
type RotaScheduleRepository struct {
	db *sqlx.DB
}

// NewRotaScheduleRepository creates a new schedule repository.
func NewRotaScheduleRepository(db *sqlx.DB) *RotaScheduleRepository {
	return &RotaScheduleRepository{db: db}
}

// CreateVersioned inserts the schedule header with the next version number
// for its period.
func (r *RotaScheduleRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.RotaSchedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.PeriodID == "" {
		return fmt.Errorf("period_id is required")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.RotaScheduleStatusDraft
	}
	if len(schedule.Meta) == 0 {
		schedule.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	row := exec.QueryRowxContext(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM rota_schedules WHERE period_id = $1`, schedule.PeriodID)
	if err := row.Scan(&schedule.Version); err != nil {
		return fmt.Errorf("next schedule version: %w", err)
	}
	const query = `INSERT INTO rota_schedules (id, period_id, version, status, meta, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := exec.ExecContext(ctx, query,
		schedule.ID, schedule.PeriodID, schedule.Version, schedule.Status, schedule.Meta,
		schedule.CreatedAt, schedule.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// InsertAssignments writes the assignment batch for a schedule.
func (r *RotaScheduleRepository) InsertAssignments(ctx context.Context, exec sqlx.ExtContext, assignments []models.ShiftAssignment) error {
	const query = `INSERT INTO shift_assignments (id, schedule_id, user_id, shift_date, shift_type, active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	now := time.Now().UTC()
	for _, a := range assignments {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if _, err := exec.ExecContext(ctx, query, a.ID, a.ScheduleID, a.UserID, a.Date, a.ShiftType, a.Active, a.CreatedAt); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	return nil
}

// InsertLog writes the generation log batch for a schedule.
func (r *RotaScheduleRepository) InsertLog(ctx context.Context, exec sqlx.ExtContext, entries []models.GenerationLogEntry) error {
	const query = `INSERT INTO generation_log (id, schedule_id, seq, kind, shift_date, shift_type, chosen_user_id, chosen_score, runner_up_id, runner_up_score, detail)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for _, e := range entries {
		if _, err := exec.ExecContext(ctx, query,
			e.ID, e.ScheduleID, e.Seq, e.Kind, e.Date, e.ShiftType,
			e.ChosenUserID, e.ChosenScore, e.RunnerUpID, e.RunnerUpScore, e.Detail,
		); err != nil {
			return fmt.Errorf("insert log entry: %w", err)
		}
	}
	return nil
}

// ListByPeriod returns schedule headers for a period, newest version first.
// Assignments and log are not hydrated.
func (r *RotaScheduleRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.RotaSchedule, error) {
	const query = `SELECT id, period_id, version, status, meta, created_at, updated_at
        FROM rota_schedules WHERE period_id = $1 ORDER BY version DESC`
	var schedules []models.RotaSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, periodID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// FindByID returns one schedule with assignments and log hydrated.
func (r *RotaScheduleRepository) FindByID(ctx context.Context, id string) (*models.RotaSchedule, error) {
	const query = `SELECT id, period_id, version, status, meta, created_at, updated_at
        FROM rota_schedules WHERE id = $1`
	var schedule models.RotaSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}

	const assignmentQuery = `SELECT id, schedule_id, user_id, shift_date, shift_type, active, created_at
        FROM shift_assignments WHERE schedule_id = $1 ORDER BY shift_date, shift_type, id`
	if err := r.db.SelectContext(ctx, &schedule.Assignments, assignmentQuery, id); err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	const logQuery = `SELECT id, schedule_id, seq, kind, shift_date, shift_type, chosen_user_id, chosen_score, runner_up_id, runner_up_score, detail
        FROM generation_log WHERE schedule_id = $1 ORDER BY seq`
	if err := r.db.SelectContext(ctx, &schedule.Log, logQuery, id); err != nil {
		return nil, fmt.Errorf("load generation log: %w", err)
	}
	return &schedule, nil
}

// UpdateStatus moves a schedule through its lifecycle.
func (r *RotaScheduleRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RotaScheduleStatus) error {
	const query = `UPDATE rota_schedules SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := exec.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a draft schedule and its children.
func (r *RotaScheduleRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule delete: %w", err)
	}
	for _, query := range []string{
		`DELETE FROM generation_log WHERE schedule_id = $1`,
		`DELETE FROM shift_assignments WHERE schedule_id = $1`,
		`DELETE FROM rota_schedules WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete schedule: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule delete: %w", err)
	}
	return nil
}

// ExistsForPeriod reports whether any schedule has been generated for the
// period. Preference submissions freeze once this is true.
func (r *RotaScheduleRepository) ExistsForPeriod(ctx context.Context, periodID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM rota_schedules WHERE period_id = $1)`, periodID); err != nil {
		return false, fmt.Errorf("check period schedules: %w", err)
	}
	return exists, nil
}

// ExchangeAssignments swaps the holders of two assignments inside the
// caller's transaction.
func (r *RotaScheduleRepository) ExchangeAssignments(ctx context.Context, exec sqlx.ExtContext, assignmentAID, assignmentBID string) error {
	const query = `UPDATE shift_assignments AS sa
        SET user_id = other.user_id
        FROM shift_assignments AS other
        WHERE sa.id IN ($1, $2)
          AND other.id IN ($1, $2)
          AND sa.id <> other.id`
	res, err := exec.ExecContext(ctx, query, assignmentAID, assignmentBID)
	if err != nil {
		return fmt.Errorf("exchange assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("exchange assignments: %w", err)
	}
	if affected != 2 {
		return fmt.Errorf("exchange assignments: expected 2 rows, got %d", affected)
	}
	return nil
}
