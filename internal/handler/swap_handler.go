package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	"github.com/oculohealth/rota-api/internal/service"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
	"github.com/oculohealth/rota-api/pkg/response"
)

type swapBoardService interface {
	CreateListing(ctx context.Context, req dto.CreateListingRequest, scheduleID, callerStaffID string) (*models.SwapListing, error)
	CancelListing(ctx context.Context, listingID, callerStaffID string) error
	AcceptListing(ctx context.Context, req dto.AcceptListingRequest, scheduleID, callerStaffID string) (*dto.SwapAcceptanceResponse, error)
	ListOpen(ctx context.Context, scheduleID string) ([]dto.ListingView, error)
}

type currentRotaCoordinator interface {
	Current(ctx context.Context) (*dto.CurrentRotaView, error)
	SetCurrent(ctx context.Context, schedule *models.RotaSchedule, kind service.RotaEventKind)
}

// SwapHandler exposes the shift exchange noticeboard.
type SwapHandler struct {
	swaps       swapBoardService
	coordinator currentRotaCoordinator
}

// NewSwapHandler creates a new handler.
func NewSwapHandler(swaps swapBoardService, coordinator currentRotaCoordinator) *SwapHandler {
	return &SwapHandler{swaps: swaps, coordinator: coordinator}
}

// CreateListing godoc
// @Summary Offer one of your assignments for swap
// @Tags Swaps
// @Accept json
// @Produce json
// @Param payload body dto.CreateListingRequest true "Listing payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /swaps/listings [post]
func (h *SwapHandler) CreateListing(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid listing payload"))
		return
	}
	scheduleID, err := h.currentScheduleID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	listing, err := h.swaps.CreateListing(c.Request.Context(), req, scheduleID, staffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, listing)
}

// ListOpen godoc
// @Summary Browse open swap listings
// @Tags Swaps
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /swaps/listings [get]
func (h *SwapHandler) ListOpen(c *gin.Context) {
	scheduleID, err := h.currentScheduleID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	listings, err := h.swaps.ListOpen(c.Request.Context(), scheduleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listings, nil)
}

// Accept godoc
// @Summary Accept an open listing with one of your assignments
// @Tags Swaps
// @Accept json
// @Produce json
// @Param payload body dto.AcceptListingRequest true "Acceptance payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /swaps/accept [post]
func (h *SwapHandler) Accept(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	var req dto.AcceptListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid acceptance payload"))
		return
	}
	scheduleID, err := h.currentScheduleID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.swaps.AcceptListing(c.Request.Context(), req, scheduleID, staffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.OK {
		response.JSON(c, http.StatusUnprocessableEntity, result, nil)
		return
	}
	h.coordinator.SetCurrent(c.Request.Context(), result.Schedule, service.RotaEventSwapApplied)
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel your own open listing
// @Tags Swaps
// @Produce json
// @Param id path string true "Listing id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /swaps/listings/{id} [delete]
func (h *SwapHandler) Cancel(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	if err := h.swaps.CancelListing(c.Request.Context(), c.Param("id"), staffID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *SwapHandler) currentScheduleID(c *gin.Context) (string, error) {
	view, err := h.coordinator.Current(c.Request.Context())
	if err != nil {
		return "", err
	}
	return view.Schedule.ID, nil
}
