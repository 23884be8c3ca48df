package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type stubRequirementReader struct {
	requirements []models.ShiftRequirement
}

func (s *stubRequirementReader) ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftRequirement, error) {
	return s.requirements, nil
}

type stubPreferenceReader struct {
	preferences []models.ShiftPreference
}

func (s *stubPreferenceReader) ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error) {
	return s.preferences, nil
}

// recordingScheduleStore mirrors the repository contract: CreateVersioned
// fills missing identity and stamps before insert.
type recordingScheduleStore struct {
	created     *models.RotaSchedule
	assignments []models.ShiftAssignment
	logEntries  []models.GenerationLogEntry
	published   string
}

func (r *recordingScheduleStore) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.RotaSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.RotaScheduleStatusDraft
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	schedule.Version = 1
	r.created = schedule
	return nil
}

func (r *recordingScheduleStore) InsertAssignments(ctx context.Context, exec sqlx.ExtContext, assignments []models.ShiftAssignment) error {
	r.assignments = assignments
	return nil
}

func (r *recordingScheduleStore) InsertLog(ctx context.Context, exec sqlx.ExtContext, entries []models.GenerationLogEntry) error {
	r.logEntries = entries
	return nil
}

func (r *recordingScheduleStore) ListByPeriod(ctx context.Context, periodID string) ([]models.RotaSchedule, error) {
	return nil, nil
}

func (r *recordingScheduleStore) FindByID(ctx context.Context, id string) (*models.RotaSchedule, error) {
	if r.created == nil || r.created.ID != id {
		return nil, sql.ErrNoRows
	}
	return r.created, nil
}

func (r *recordingScheduleStore) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RotaScheduleStatus) error {
	if status == models.RotaScheduleStatusPublished {
		r.published = id
	}
	return nil
}

func (r *recordingScheduleStore) Delete(ctx context.Context, id string) error {
	return nil
}

type recordingAccrualWriter struct {
	deltas map[string]float64
}

func (r *recordingAccrualWriter) ApplyAccrualDeltas(ctx context.Context, exec sqlx.ExtContext, deltas map[string]float64) error {
	r.deltas = deltas
	return nil
}

type engineTxProviderMock struct {
	db *sqlx.DB
}

func newEngineTxProviderMock(t *testing.T) (*engineTxProviderMock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &engineTxProviderMock{db: sqlxdb}, mock
}

func (m *engineTxProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newEngineServiceFixture(t *testing.T, store *recordingScheduleStore, accruals *recordingAccrualWriter, tx txProvider) *RotaEngineService {
	t.Helper()
	roster := []models.RotaUser{
		engineUser("u-a", 2, 0),
		engineUser("u-b", 2, 0),
	}
	requirements := []models.ShiftRequirement{
		engineRequirement("r1", 2, models.ShiftDay, 1),
		engineRequirement("r2", 2, models.ShiftNight, 1),
	}
	return NewRotaEngineService(
		&stubRosterReader{roster: roster},
		&stubShiftTypeReader{},
		&stubRequirementReader{requirements: requirements},
		&stubPreferenceReader{},
		store,
		accruals,
		tx,
		nil, nil, NewMetricsService(),
		RotaEngineConfig{},
	)
}

func TestRotaEngineServiceSaveReturnsPersistedID(t *testing.T) {
	store := &recordingScheduleStore{}
	accruals := &recordingAccrualWriter{}
	txProvider, mock := newEngineTxProviderMock(t)
	svc := newEngineServiceFixture(t, store, accruals, txProvider)

	resp, err := svc.Generate(context.Background(), dto.GenerateRotaRequest{PeriodID: "2026-03"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ProposalID)

	mock.ExpectBegin()
	mock.ExpectCommit()

	scheduleID, err := svc.Save(context.Background(), dto.SaveRotaRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	require.NotEmpty(t, scheduleID, "Save must return the persisted schedule id")

	require.NotNil(t, store.created)
	assert.Equal(t, scheduleID, store.created.ID)
	assert.Equal(t, "2026-03", store.created.PeriodID)
	assert.False(t, store.created.CreatedAt.IsZero())

	require.NotEmpty(t, store.assignments)
	for _, a := range store.assignments {
		assert.Equal(t, scheduleID, a.ScheduleID)
		assert.NotEmpty(t, a.ID)
	}
	require.NotEmpty(t, store.logEntries)
	for _, e := range store.logEntries {
		assert.Equal(t, scheduleID, e.ScheduleID)
	}
	assert.NotEmpty(t, accruals.deltas)
	assert.Empty(t, store.published, "draft save must not publish")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaEngineServiceSavePublishes(t *testing.T) {
	store := &recordingScheduleStore{}
	txProvider, mock := newEngineTxProviderMock(t)
	svc := newEngineServiceFixture(t, store, &recordingAccrualWriter{}, txProvider)

	resp, err := svc.Generate(context.Background(), dto.GenerateRotaRequest{PeriodID: "2026-03"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	scheduleID, err := svc.Save(context.Background(), dto.SaveRotaRequest{ProposalID: resp.ProposalID, Publish: true})
	require.NoError(t, err)
	assert.Equal(t, scheduleID, store.published)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotaEngineServiceSaveUnknownProposal(t *testing.T) {
	txProvider, _ := newEngineTxProviderMock(t)
	svc := newEngineServiceFixture(t, &recordingScheduleStore{}, &recordingAccrualWriter{}, txProvider)

	_, err := svc.Save(context.Background(), dto.SaveRotaRequest{ProposalID: "gone"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRotaEngineServiceSaveConsumesProposal(t *testing.T) {
	store := &recordingScheduleStore{}
	txProvider, mock := newEngineTxProviderMock(t)
	svc := newEngineServiceFixture(t, store, &recordingAccrualWriter{}, txProvider)

	resp, err := svc.Generate(context.Background(), dto.GenerateRotaRequest{PeriodID: "2026-03"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err = svc.Save(context.Background(), dto.SaveRotaRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), dto.SaveRotaRequest{ProposalID: resp.ProposalID})
	require.Error(t, err, "a committed proposal must not be replayable")
}
