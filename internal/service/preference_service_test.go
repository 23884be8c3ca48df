package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type mockPreferenceStore struct {
	byUser map[string][]models.ShiftPreference
}

func (m *mockPreferenceStore) ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error) {
	var all []models.ShiftPreference
	for _, prefs := range m.byUser {
		for _, p := range prefs {
			if p.PeriodID == periodID {
				all = append(all, p)
			}
		}
	}
	return all, nil
}

func (m *mockPreferenceStore) ListByUser(ctx context.Context, periodID, userID string) ([]models.ShiftPreference, error) {
	var mine []models.ShiftPreference
	for _, p := range m.byUser[userID] {
		if p.PeriodID == periodID {
			mine = append(mine, p)
		}
	}
	return mine, nil
}

func (m *mockPreferenceStore) ReplaceForUser(ctx context.Context, periodID, userID string, prefs []models.ShiftPreference) error {
	if m.byUser == nil {
		m.byUser = make(map[string][]models.ShiftPreference)
	}
	var kept []models.ShiftPreference
	for _, p := range m.byUser[userID] {
		if p.PeriodID != periodID {
			kept = append(kept, p)
		}
	}
	m.byUser[userID] = append(kept, prefs...)
	return nil
}

type mockScheduleExistence struct {
	locked map[string]bool
}

func (m *mockScheduleExistence) ExistsForPeriod(ctx context.Context, periodID string) (bool, error) {
	return m.locked[periodID], nil
}

func TestPreferenceServiceSubmitReplaces(t *testing.T) {
	store := &mockPreferenceStore{}
	svc := NewPreferenceService(store, &mockScheduleExistence{}, nil, nil,
		fixedClock(time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)))

	first := dto.SubmitPreferencesRequest{
		PeriodID: "2026-03",
		Entries: []dto.PreferenceEntry{
			{Date: engineDate(2), ShiftType: models.ShiftDay, Level: models.PrefPrefer},
			{Date: engineDate(3), ShiftType: models.ShiftNight, Level: models.PrefAvoid},
		},
	}
	saved, err := svc.Submit(context.Background(), "u-a", first)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	second := dto.SubmitPreferencesRequest{
		PeriodID: "2026-03",
		Entries: []dto.PreferenceEntry{
			{Date: engineDate(2), ShiftType: models.ShiftDay, Level: models.PrefUnavailable},
		},
	}
	_, err = svc.Submit(context.Background(), "u-a", second)
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), "u-a", "2026-03")
	require.NoError(t, err)
	require.Len(t, mine, 1, "submission is a full replacement")
	assert.Equal(t, models.PrefUnavailable, mine[0].Level)
}

func TestPreferenceServiceSubmitRejectsDuplicates(t *testing.T) {
	svc := NewPreferenceService(&mockPreferenceStore{}, &mockScheduleExistence{}, nil, nil, nil)

	req := dto.SubmitPreferencesRequest{
		PeriodID: "2026-03",
		Entries: []dto.PreferenceEntry{
			{Date: engineDate(2), ShiftType: models.ShiftDay, Level: models.PrefPrefer},
			{Date: engineDate(2), ShiftType: models.ShiftDay, Level: models.PrefAvoid},
		},
	}
	_, err := svc.Submit(context.Background(), "u-a", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPreferenceServiceSubmitLockedPeriod(t *testing.T) {
	svc := NewPreferenceService(&mockPreferenceStore{}, &mockScheduleExistence{locked: map[string]bool{"2026-03": true}}, nil, nil, nil)

	req := dto.SubmitPreferencesRequest{
		PeriodID: "2026-03",
		Entries: []dto.PreferenceEntry{
			{Date: engineDate(2), ShiftType: models.ShiftDay, Level: models.PrefPrefer},
		},
	}
	_, err := svc.Submit(context.Background(), "u-a", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPeriodLocked.Code, appErrors.FromError(err).Code)
}

func TestPreferenceServiceSubmitValidatesPayload(t *testing.T) {
	svc := NewPreferenceService(&mockPreferenceStore{}, &mockScheduleExistence{}, nil, nil, nil)

	_, err := svc.Submit(context.Background(), "u-a", dto.SubmitPreferencesRequest{PeriodID: "2026-03"})
	assert.Error(t, err, "empty entries")

	_, err = svc.Submit(context.Background(), "u-a", dto.SubmitPreferencesRequest{
		PeriodID: "2026-03",
		Entries: []dto.PreferenceEntry{
			{Date: engineDate(2), ShiftType: "THEATRE", Level: models.PrefPrefer},
		},
	})
	assert.Error(t, err, "unknown shift type")
}
