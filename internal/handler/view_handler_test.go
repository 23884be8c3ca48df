package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type rotaViewMock struct {
	current  *dto.CurrentRotaView
	schedule *models.RotaSchedule
	myRota   *dto.MyRotaView
	next     *dto.NextShiftView
	fairness *dto.MyFairnessView
	err      error
}

func (m *rotaViewMock) Current(ctx context.Context) (*dto.CurrentRotaView, error) {
	return m.current, m.err
}

func (m *rotaViewMock) Refresh(ctx context.Context, periodID string) (*models.RotaSchedule, error) {
	return m.schedule, m.err
}

func (m *rotaViewMock) MyAssignments(ctx context.Context, staffID string) (*dto.MyRotaView, error) {
	return m.myRota, m.err
}

func (m *rotaViewMock) NextShift(ctx context.Context, staffID string) (*dto.NextShiftView, error) {
	return m.next, m.err
}

func (m *rotaViewMock) MyFairness(ctx context.Context, staffID string) (*dto.MyFairnessView, error) {
	return m.fairness, m.err
}

func TestViewHandlerCurrent(t *testing.T) {
	mock := &rotaViewMock{current: &dto.CurrentRotaView{Schedule: &models.RotaSchedule{ID: "sched-1"}, Unfilled: 2}}
	h := NewViewHandler(mock)
	c, w := staffContext(t, http.MethodGet, "/rota/current", nil)

	h.Current(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestViewHandlerCurrentNotFound(t *testing.T) {
	h := NewViewHandler(&rotaViewMock{err: appErrors.Clone(appErrors.ErrNotFound, "no published rota")})
	c, w := staffContext(t, http.MethodGet, "/rota/current", nil)

	h.Current(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewHandlerRefreshRequiresPeriod(t *testing.T) {
	h := NewViewHandler(&rotaViewMock{})
	c, w := staffContext(t, http.MethodPost, "/rota/current/refresh", nil)

	h.Refresh(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewHandlerRefresh(t *testing.T) {
	h := NewViewHandler(&rotaViewMock{schedule: &models.RotaSchedule{ID: "sched-2", Version: 2}})
	c, w := staffContext(t, http.MethodPost, "/rota/current/refresh?periodId=2026-03", nil)

	h.Refresh(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestViewHandlerMyRota(t *testing.T) {
	mock := &rotaViewMock{myRota: &dto.MyRotaView{UserID: "u-a"}}
	h := NewViewHandler(mock)
	c, w := staffContext(t, http.MethodGet, "/me/rota", nil)

	h.MyRota(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestViewHandlerMyRotaWithoutRosterMembership(t *testing.T) {
	h := NewViewHandler(&rotaViewMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/me/rota", nil)
	c.Request = req

	h.MyRota(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestViewHandlerNextShift(t *testing.T) {
	start := time.Date(2026, time.March, 3, 20, 0, 0, 0, time.UTC)
	mock := &rotaViewMock{next: &dto.NextShiftView{UserID: "u-a", StartsAt: &start}}
	h := NewViewHandler(mock)
	c, w := staffContext(t, http.MethodGet, "/me/next-shift", nil)

	h.NextShift(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestViewHandlerMyFairness(t *testing.T) {
	mock := &rotaViewMock{fairness: &dto.MyFairnessView{UserID: "u-a", Accrual: 2, RosterMean: 4, MeanDeviation: -2}}
	h := NewViewHandler(mock)
	c, w := staffContext(t, http.MethodGet, "/me/fairness", nil)

	h.MyFairness(c)

	require.Equal(t, http.StatusOK, w.Code)
}
