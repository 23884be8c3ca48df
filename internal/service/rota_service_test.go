package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/models"
)

type stubRosterReader struct {
	roster []models.RotaUser
	err    error
}

func (s *stubRosterReader) ListActive(ctx context.Context) ([]models.RotaUser, error) {
	return s.roster, s.err
}

type stubShiftTypeReader struct {
	types []models.ShiftType
}

func (s *stubShiftTypeReader) List(ctx context.Context) ([]models.ShiftType, error) {
	if s.types != nil {
		return s.types, nil
	}
	var list []models.ShiftType
	for _, st := range engineShiftTypes() {
		list = append(list, st)
	}
	return list, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newCoordinator(roster []models.RotaUser) *RotaService {
	return NewRotaService(nil, &stubRosterReader{roster: roster}, &stubShiftTypeReader{}, nil, time.Minute, nil, nil,
		fixedClock(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)))
}

func TestRotaServiceSubscribeAndNotify(t *testing.T) {
	svc := newCoordinator(nil)

	var events []RotaEvent
	unsubscribe := svc.Subscribe(func(e RotaEvent) { events = append(events, e) })

	schedule := swapSchedule(swapAssignment("a1", "u-a", 2, models.ShiftDay))
	svc.SetCurrent(context.Background(), schedule, RotaEventPublished)
	require.Len(t, events, 1)
	assert.Equal(t, RotaEventPublished, events[0].Kind)
	assert.Equal(t, "sched-1", events[0].ScheduleID)
	assert.Equal(t, "2026-03", events[0].PeriodID)

	unsubscribe()
	svc.SetCurrent(context.Background(), schedule, RotaEventSwapApplied)
	assert.Len(t, events, 1, "unsubscribed callback must not fire")
}

func TestRotaServiceCurrentReportsUnfilled(t *testing.T) {
	svc := newCoordinator(nil)

	schedule := swapSchedule(swapAssignment("a1", "u-a", 2, models.ShiftDay))
	schedule.Log = []models.GenerationLogEntry{
		{Kind: models.LogKindAssigned},
		{Kind: models.LogKindUnfilled},
	}
	svc.SetCurrent(context.Background(), schedule, RotaEventPublished)

	view, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, view.Unfilled)
}

func TestRotaServiceCurrentWithoutSchedule(t *testing.T) {
	svc := newCoordinator(nil)

	_, err := svc.Current(context.Background())
	assert.Error(t, err)
}

func TestRotaServiceMyAssignmentsSorted(t *testing.T) {
	svc := newCoordinator(nil)

	inactive := swapAssignment("a4", "u-a", 1, models.ShiftDay)
	inactive.Active = false
	schedule := swapSchedule(
		swapAssignment("a1", "u-a", 6, models.ShiftDay),
		swapAssignment("a2", "u-b", 3, models.ShiftDay),
		swapAssignment("a3", "u-a", 3, models.ShiftNight),
		inactive,
	)
	svc.SetCurrent(context.Background(), schedule, RotaEventPublished)

	view, err := svc.MyAssignments(context.Background(), "u-a")
	require.NoError(t, err)
	require.Len(t, view.Assignments, 2)
	assert.Equal(t, "a3", view.Assignments[0].ID)
	assert.Equal(t, "a1", view.Assignments[1].ID)
}

func TestRotaServiceNextShift(t *testing.T) {
	svc := newCoordinator(nil)

	schedule := swapSchedule(
		// Day 1 at 08:00 is already in the past for the fixed clock.
		swapAssignment("a-past", "u-a", 1, models.ShiftDay),
		swapAssignment("a-next", "u-a", 3, models.ShiftNight),
		swapAssignment("a-later", "u-a", 5, models.ShiftDay),
	)
	svc.SetCurrent(context.Background(), schedule, RotaEventPublished)

	view, err := svc.NextShift(context.Background(), "u-a")
	require.NoError(t, err)
	require.NotNil(t, view.Assignment)
	assert.Equal(t, "a-next", view.Assignment.ID)
	require.NotNil(t, view.StartsAt)
	assert.Equal(t, time.Date(2026, time.March, 3, 20, 0, 0, 0, time.UTC), *view.StartsAt)
	require.NotNil(t, view.EndsAt)
	assert.Equal(t, time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC), *view.EndsAt)
}

func TestRotaServiceMyFairness(t *testing.T) {
	roster := []models.RotaUser{
		engineUser("u-a", 3, 2),
		engineUser("u-b", 3, 6),
	}
	svc := newCoordinator(roster)

	view, err := svc.MyFairness(context.Background(), "u-a")
	require.NoError(t, err)
	assert.InDelta(t, 2, view.Accrual, 1e-9)
	assert.InDelta(t, 4, view.RosterMean, 1e-9)
	assert.InDelta(t, -2, view.MeanDeviation, 1e-9)

	_, err = svc.MyFairness(context.Background(), "u-missing")
	assert.Error(t, err)
}
