package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type preferenceServiceMock struct {
	prefs        []models.ShiftPreference
	err          error
	submitUser   string
	submitPeriod string
}

func (m *preferenceServiceMock) Submit(ctx context.Context, userID string, req dto.SubmitPreferencesRequest) ([]models.ShiftPreference, error) {
	m.submitUser = userID
	m.submitPeriod = req.PeriodID
	return m.prefs, m.err
}

func (m *preferenceServiceMock) ListMine(ctx context.Context, userID, periodID string) ([]models.ShiftPreference, error) {
	return m.prefs, m.err
}

func (m *preferenceServiceMock) ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error) {
	return m.prefs, m.err
}

func TestPreferenceHandlerSubmit(t *testing.T) {
	svc := &preferenceServiceMock{prefs: []models.ShiftPreference{{ID: "p-1"}}}
	h := NewPreferenceHandler(svc)
	body := []byte(`{"periodId":"2026-03","entries":[{"date":"2026-03-02T00:00:00Z","shiftType":"DAY","level":"PREFER"}]}`)
	c, w := staffContext(t, http.MethodPut, "/preferences", body)

	h.Submit(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u-a", svc.submitUser)
	require.Equal(t, "2026-03", svc.submitPeriod)
}

func TestPreferenceHandlerSubmitInvalidPayload(t *testing.T) {
	h := NewPreferenceHandler(&preferenceServiceMock{})
	c, w := staffContext(t, http.MethodPut, "/preferences", []byte(`{bad`))

	h.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferenceHandlerSubmitLockedPeriod(t *testing.T) {
	svc := &preferenceServiceMock{err: appErrors.Clone(appErrors.ErrPeriodLocked, "period 2026-03 already has a schedule")}
	h := NewPreferenceHandler(svc)
	body := []byte(`{"periodId":"2026-03","entries":[{"date":"2026-03-02T00:00:00Z","shiftType":"DAY","level":"AVOID"}]}`)
	c, w := staffContext(t, http.MethodPut, "/preferences", body)

	h.Submit(c)

	require.Equal(t, appErrors.ErrPeriodLocked.Status, w.Code)
}

func TestPreferenceHandlerListMine(t *testing.T) {
	svc := &preferenceServiceMock{prefs: []models.ShiftPreference{{ID: "p-1"}, {ID: "p-2"}}}
	h := NewPreferenceHandler(svc)
	c, w := staffContext(t, http.MethodGet, "/preferences?periodId=2026-03", nil)

	h.ListMine(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestPreferenceHandlerListByPeriod(t *testing.T) {
	svc := &preferenceServiceMock{prefs: []models.ShiftPreference{{ID: "p-1"}}}
	h := NewPreferenceHandler(svc)
	c, w := staffContext(t, http.MethodGet, "/preferences/all?periodId=2026-03", nil)

	h.ListByPeriod(c)

	require.Equal(t, http.StatusOK, w.Code)
}
