package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/models"
)

func TestRotaScheduleRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(version), 0) + 1 FROM rota_schedules WHERE period_id = $1`)).
		WithArgs("2026-03").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	mock.ExpectExec(`INSERT INTO rota_schedules`).
		WithArgs("sched-1", "2026-03", 3, models.RotaScheduleStatusDraft, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	schedule := &models.RotaSchedule{
		ID:       "sched-1",
		PeriodID: "2026-03",
		Status:   models.RotaScheduleStatusDraft,
	}
	require.NoError(t, repo.CreateVersioned(context.Background(), db, schedule))
	assert.Equal(t, 3, schedule.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaScheduleRepositoryCreateVersionedGeneratesIdentity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(version), 0) + 1 FROM rota_schedules WHERE period_id = $1`)).
		WithArgs("2026-03").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO rota_schedules`).
		WithArgs(sqlmock.AnyArg(), "2026-03", 1, models.RotaScheduleStatusDraft, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	schedule := &models.RotaSchedule{PeriodID: "2026-03"}
	require.NoError(t, repo.CreateVersioned(context.Background(), db, schedule))
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, models.RotaScheduleStatusDraft, schedule.Status)
	assert.False(t, schedule.CreatedAt.IsZero())
	assert.False(t, schedule.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaScheduleRepositoryFindByIDHydrates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaScheduleRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM rota_schedules WHERE id = \$1`).
		WithArgs("sched-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "period_id", "version", "status", "meta", "created_at", "updated_at"}).
			AddRow("sched-1", "2026-03", 1, models.RotaScheduleStatusPublished, []byte(`{}`), now, now))
	mock.ExpectQuery(`SELECT .+ FROM shift_assignments WHERE schedule_id = \$1`).
		WithArgs("sched-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "user_id", "shift_date", "shift_type", "active", "created_at"}).
			AddRow("a1", "sched-1", "u-a", now, models.ShiftDay, true, now))
	mock.ExpectQuery(`SELECT .+ FROM generation_log WHERE schedule_id = \$1`).
		WithArgs("sched-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "seq", "kind", "shift_date", "shift_type", "chosen_user_id", "chosen_score", "runner_up_id", "runner_up_score", "detail"}).
			AddRow("l1", "sched-1", 1, models.LogKindAssigned, now, models.ShiftDay, "u-a", 1.5, nil, nil, "assigned u-a"))

	schedule, err := repo.FindByID(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, schedule.Assignments, 1)
	require.Len(t, schedule.Log, 1)
	assert.Equal(t, "u-a", schedule.Assignments[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaScheduleRepositoryExchangeAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaScheduleRepository(db)

	mock.ExpectExec(`UPDATE shift_assignments AS sa`).
		WithArgs("a1", "a2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.ExchangeAssignments(context.Background(), db, "a1", "a2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaScheduleRepositoryExchangeAssignmentsRowCountMismatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaScheduleRepository(db)

	mock.ExpectExec(`UPDATE shift_assignments AS sa`).
		WithArgs("a1", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ExchangeAssignments(context.Background(), db, "a1", "missing")
	require.Error(t, err)
}

func TestRotaScheduleRepositoryExistsForPeriod(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaScheduleRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("2026-03").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForPeriod(context.Background(), "2026-03")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaScheduleRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaScheduleRepository(db)

	mock.ExpectExec(`UPDATE rota_schedules SET status`).
		WithArgs("missing", models.RotaScheduleStatusPublished).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), db, "missing", models.RotaScheduleStatusPublished)
	require.Error(t, err)
}
