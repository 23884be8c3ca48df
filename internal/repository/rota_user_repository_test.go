package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRotaUserRepositoryListActiveDecodesQualifications(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "display_name", "tier", "qualifications", "fairness_accrual", "active", "created_at", "updated_at"}).
		AddRow("u-a", "Dr A", 3, []byte(`["DAY","NIGHT"]`), 4.5, true, now, now).
		AddRow("u-b", "Dr B", 2, []byte(`["DAY"]`), 1.0, true, now, now)
	mock.ExpectQuery(`SELECT .+ FROM rota_users WHERE active = TRUE ORDER BY id`).WillReturnRows(rows)

	users, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []models.ShiftTypeCode{models.ShiftDay, models.ShiftNight}, users[0].Qualifications)
	assert.Equal(t, []models.ShiftTypeCode{models.ShiftDay}, users[1].Qualifications)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaUserRepositoryListActiveBadQualifications(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "display_name", "tier", "qualifications", "fairness_accrual", "active", "created_at", "updated_at"}).
		AddRow("u-a", "Dr A", 3, []byte(`{broken`), 0.0, true, now, now)
	mock.ExpectQuery(`SELECT .+ FROM rota_users WHERE active = TRUE`).WillReturnRows(rows)

	_, err := repo.ListActive(context.Background())
	require.Error(t, err)
}

func TestRotaUserRepositoryApplyAccrualDeltas(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaUserRepository(db)

	// Applied in sorted id order; zero deltas are skipped.
	mock.ExpectExec(`UPDATE rota_users SET fairness_accrual = fairness_accrual \+ \$2`).
		WithArgs("u-a", 1.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE rota_users SET fairness_accrual = fairness_accrual \+ \$2`).
		WithArgs("u-c", -1.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyAccrualDeltas(context.Background(), db, map[string]float64{
		"u-c": -1.5,
		"u-b": 0,
		"u-a": 1.5,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaUserRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRotaUserRepository(db)

	mock.ExpectExec(`UPDATE rota_users SET active = FALSE`).
		WithArgs("u-a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "u-a"))
	require.NoError(t, mock.ExpectationsWereMet())
}
