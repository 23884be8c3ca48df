package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
	"github.com/oculohealth/rota-api/pkg/jobs"
	"github.com/oculohealth/rota-api/pkg/storage"
)

type mockExportStore struct {
	records map[string]*models.RotaExport
}

func newMockExportStore() *mockExportStore {
	return &mockExportStore{records: make(map[string]*models.RotaExport)}
}

func (m *mockExportStore) Create(ctx context.Context, exp *models.RotaExport) error {
	copied := *exp
	m.records[exp.ID] = &copied
	return nil
}

func (m *mockExportStore) FindByID(ctx context.Context, id string) (*models.RotaExport, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *rec
	return &copied, nil
}

func (m *mockExportStore) MarkCompleted(ctx context.Context, id, fileName string, completedAt time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	rec.Status = models.ExportStatusCompleted
	rec.FileName = fileName
	rec.CompletedAt = &completedAt
	return nil
}

func (m *mockExportStore) MarkFailed(ctx context.Context, id, errMsg string, completedAt time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		rec = &models.RotaExport{ID: id}
		m.records[id] = rec
	}
	rec.Status = models.ExportStatusFailed
	rec.Error = errMsg
	rec.CompletedAt = &completedAt
	return nil
}

type stubScheduleFinder struct {
	schedule *models.RotaSchedule
}

func (s *stubScheduleFinder) FindByID(ctx context.Context, id string) (*models.RotaSchedule, error) {
	if s.schedule == nil || s.schedule.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.schedule, nil
}

func (s *stubScheduleFinder) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.RotaSchedule) error {
	return nil
}

func (s *stubScheduleFinder) InsertAssignments(ctx context.Context, exec sqlx.ExtContext, assignments []models.ShiftAssignment) error {
	return nil
}

func (s *stubScheduleFinder) InsertLog(ctx context.Context, exec sqlx.ExtContext, entries []models.GenerationLogEntry) error {
	return nil
}

func (s *stubScheduleFinder) ListByPeriod(ctx context.Context, periodID string) ([]models.RotaSchedule, error) {
	return nil, nil
}

func (s *stubScheduleFinder) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RotaScheduleStatus) error {
	return nil
}

func (s *stubScheduleFinder) Delete(ctx context.Context, id string) error {
	return nil
}

func newExportFixture(t *testing.T, schedule *models.RotaSchedule, roster []models.RotaUser) (*ExportService, *mockExportStore, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	store := newMockExportStore()
	svc := NewExportService(store, &stubScheduleFinder{schedule: schedule}, &stubRosterReader{roster: roster}, files, signer, nil, nil)
	return svc, store, files
}

func TestExportServiceRequestExportValidatesFormat(t *testing.T) {
	svc, _, _ := newExportFixture(t, nil, nil)

	_, err := svc.RequestExport(context.Background(), "sched-1", "xlsx", "acct-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRequestExportQueues(t *testing.T) {
	schedule := swapSchedule(swapAssignment("a1", "u-a", 2, models.ShiftDay))
	svc, store, _ := newExportFixture(t, schedule, nil)

	received := make(chan jobs.Job, 1)
	queue := jobs.NewQueue("exports-test", func(ctx context.Context, job jobs.Job) error {
		received <- job
		return nil
	}, jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()
	svc.AttachQueue(queue)

	record, err := svc.RequestExport(context.Background(), "sched-1", "csv", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusPending, record.Status)
	assert.Contains(t, store.records, record.ID)

	select {
	case job := <-received:
		payload, ok := job.Payload.(exportJobPayload)
		require.True(t, ok)
		assert.Equal(t, record.ID, payload.ExportID)
		assert.Equal(t, "sched-1", payload.ScheduleID)
		assert.Equal(t, ExportFormatCSV, payload.Format)
	case <-time.After(time.Second):
		t.Fatal("export job never reached the queue")
	}
}

func TestExportServiceRequestExportUnknownSchedule(t *testing.T) {
	svc, _, _ := newExportFixture(t, nil, nil)
	queue := jobs.NewQueue("exports-test", func(ctx context.Context, job jobs.Job) error { return nil }, jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()
	svc.AttachQueue(queue)

	_, err := svc.RequestExport(context.Background(), "missing", "csv", "acct-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderCSVAndDownload(t *testing.T) {
	schedule := swapSchedule(
		swapAssignment("a1", "u-a", 2, models.ShiftDay),
		swapAssignment("a2", "u-b", 3, models.ShiftNight),
	)
	roster := []models.RotaUser{
		engineUser("u-a", 1, 0),
		engineUser("u-b", 2, 0),
	}
	svc, store, files := newExportFixture(t, schedule, roster)

	exportID := "11112222-aaaa-bbbb-cccc-333344445555"
	require.NoError(t, store.Create(context.Background(), &models.RotaExport{ID: exportID, ScheduleID: "sched-1", Format: ExportFormatCSV, Status: models.ExportStatusPending}))

	err := svc.HandleJob(context.Background(), jobs.Job{
		ID:      exportID,
		Type:    "rota_export",
		Payload: exportJobPayload{ExportID: exportID, ScheduleID: "sched-1", Format: ExportFormatCSV},
	})
	require.NoError(t, err)

	record, token, err := svc.GetExport(context.Background(), exportID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, record.Status)
	require.NotEmpty(t, token)
	assert.True(t, strings.HasSuffix(record.FileName, ".csv"))

	opened, relPath, err := svc.OpenDownload(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, record.FileName, relPath)
	assert.Equal(t, exportID, opened.ID)

	f, err := files.Open(relPath)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Shift,Staff,Staff ID,Assignment", strings.TrimSpace(lines[0]))
}

func TestExportServiceRenderMissingScheduleMarksFailed(t *testing.T) {
	svc, store, _ := newExportFixture(t, nil, nil)
	exportID := "aaaabbbb-1111-2222-3333-ccccddddeeee"
	require.NoError(t, store.Create(context.Background(), &models.RotaExport{ID: exportID, ScheduleID: "missing", Format: ExportFormatCSV, Status: models.ExportStatusPending}))

	err := svc.HandleJob(context.Background(), jobs.Job{
		ID:      exportID,
		Payload: exportJobPayload{ExportID: exportID, ScheduleID: "missing", Format: ExportFormatCSV},
	})
	require.Error(t, err)

	record, _, err := svc.GetExport(context.Background(), exportID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFailed, record.Status)
	assert.Equal(t, "schedule not found", record.Error)
}

func TestExportServiceDownloadTokenTampered(t *testing.T) {
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := newMockExportStore()
	svc := NewExportService(store, &stubScheduleFinder{}, &stubRosterReader{}, files, signer, nil, nil)

	token, _, err := signer.Generate("exp-1", "file.csv")
	require.NoError(t, err)
	tampered := strings.Replace(token, "exp-1", "exp-2", 1)

	_, _, err = svc.OpenDownload(context.Background(), tampered)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
