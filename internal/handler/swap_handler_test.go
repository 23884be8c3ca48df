package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/middleware"
	"github.com/oculohealth/rota-api/internal/models"
	"github.com/oculohealth/rota-api/internal/service"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type swapBoardMock struct {
	listing      *models.SwapListing
	acceptance   *dto.SwapAcceptanceResponse
	listings     []dto.ListingView
	err          error
	cancelCalled bool
}

func (m *swapBoardMock) CreateListing(ctx context.Context, req dto.CreateListingRequest, scheduleID, callerStaffID string) (*models.SwapListing, error) {
	return m.listing, m.err
}

func (m *swapBoardMock) CancelListing(ctx context.Context, listingID, callerStaffID string) error {
	m.cancelCalled = true
	return m.err
}

func (m *swapBoardMock) AcceptListing(ctx context.Context, req dto.AcceptListingRequest, scheduleID, callerStaffID string) (*dto.SwapAcceptanceResponse, error) {
	return m.acceptance, m.err
}

func (m *swapBoardMock) ListOpen(ctx context.Context, scheduleID string) ([]dto.ListingView, error) {
	return m.listings, m.err
}

type coordinatorMock struct {
	view       *dto.CurrentRotaView
	err        error
	published  *models.RotaSchedule
	lastEvent  service.RotaEventKind
	setCurrent bool
}

func (m *coordinatorMock) Current(ctx context.Context) (*dto.CurrentRotaView, error) {
	return m.view, m.err
}

func (m *coordinatorMock) SetCurrent(ctx context.Context, schedule *models.RotaSchedule, kind service.RotaEventKind) {
	m.setCurrent = true
	m.published = schedule
	m.lastEvent = kind
}

func liveCoordinator() *coordinatorMock {
	return &coordinatorMock{view: &dto.CurrentRotaView{Schedule: &models.RotaSchedule{ID: "sched-1"}}}
}

func staffContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "acct-1", Role: models.RoleStaff, StaffID: "u-a"})
	return c, w
}

func TestSwapHandlerCreateListing(t *testing.T) {
	board := &swapBoardMock{listing: &models.SwapListing{ID: "l-1", Status: models.SwapListingOpen}}
	h := NewSwapHandler(board, liveCoordinator())
	body := []byte(`{"assignmentId":"a-1","eligibleTypes":["DAY"]}`)
	c, w := staffContext(t, http.MethodPost, "/swaps/listings", body)

	h.CreateListing(c)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestSwapHandlerCreateListingRequiresRosterMembership(t *testing.T) {
	h := NewSwapHandler(&swapBoardMock{}, liveCoordinator())
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/swaps/listings", bytes.NewReader([]byte(`{"assignmentId":"a-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.CreateListing(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSwapHandlerCreateListingInvalidPayload(t *testing.T) {
	h := NewSwapHandler(&swapBoardMock{}, liveCoordinator())
	c, w := staffContext(t, http.MethodPost, "/swaps/listings", []byte(`{bad`))

	h.CreateListing(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwapHandlerCreateListingNoCurrentRota(t *testing.T) {
	h := NewSwapHandler(&swapBoardMock{}, &coordinatorMock{err: appErrors.ErrNotFound})
	c, w := staffContext(t, http.MethodPost, "/swaps/listings", []byte(`{"assignmentId":"a-1"}`))

	h.CreateListing(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSwapHandlerAcceptPublishesOnSuccess(t *testing.T) {
	schedule := &models.RotaSchedule{ID: "sched-1"}
	board := &swapBoardMock{acceptance: &dto.SwapAcceptanceResponse{OK: true, Schedule: schedule}}
	coordinator := liveCoordinator()
	h := NewSwapHandler(board, coordinator)
	body := []byte(`{"listingId":"l-1","assignmentId":"a-2"}`)
	c, w := staffContext(t, http.MethodPost, "/swaps/accept", body)

	h.Accept(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, coordinator.setCurrent)
	require.Equal(t, service.RotaEventSwapApplied, coordinator.lastEvent)
	require.Equal(t, schedule, coordinator.published)
}

func TestSwapHandlerAcceptRejectionReturns422(t *testing.T) {
	validation := &models.SwapValidation{OK: false}
	validation.AddError(models.SwapErrDoubleBooking, "already assigned that day", "u-a")
	board := &swapBoardMock{acceptance: &dto.SwapAcceptanceResponse{OK: false, Validation: validation}}
	coordinator := liveCoordinator()
	h := NewSwapHandler(board, coordinator)
	body := []byte(`{"listingId":"l-1","assignmentId":"a-2"}`)
	c, w := staffContext(t, http.MethodPost, "/swaps/accept", body)

	h.Accept(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.False(t, coordinator.setCurrent)
}

func TestSwapHandlerListOpen(t *testing.T) {
	board := &swapBoardMock{listings: []dto.ListingView{{Listing: models.SwapListing{ID: "l-1"}}}}
	h := NewSwapHandler(board, liveCoordinator())
	c, w := staffContext(t, http.MethodGet, "/swaps/listings", nil)

	h.ListOpen(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestSwapHandlerCancel(t *testing.T) {
	board := &swapBoardMock{}
	h := NewSwapHandler(board, liveCoordinator())
	c, w := staffContext(t, http.MethodDelete, "/swaps/listings/l-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "l-1"}}

	h.Cancel(c)
	// 204 carries no body, so the test writer only records the status on flush.
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	require.True(t, board.cancelCalled)
}

func TestSwapHandlerCancelForbiddenForOthers(t *testing.T) {
	board := &swapBoardMock{err: appErrors.Clone(appErrors.ErrForbidden, "listing belongs to another user")}
	h := NewSwapHandler(board, liveCoordinator())
	c, w := staffContext(t, http.MethodDelete, "/swaps/listings/l-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "l-1"}}

	h.Cancel(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}
