package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
	"github.com/oculohealth/rota-api/pkg/response"
)

type rotaViewService interface {
	Current(ctx context.Context) (*dto.CurrentRotaView, error)
	Refresh(ctx context.Context, periodID string) (*models.RotaSchedule, error)
	MyAssignments(ctx context.Context, staffID string) (*dto.MyRotaView, error)
	NextShift(ctx context.Context, staffID string) (*dto.NextShiftView, error)
	MyFairness(ctx context.Context, staffID string) (*dto.MyFairnessView, error)
}

// ViewHandler exposes read-only views of the live rota.
type ViewHandler struct {
	coordinator rotaViewService
}

// NewViewHandler creates a new handler.
func NewViewHandler(coordinator rotaViewService) *ViewHandler {
	return &ViewHandler{coordinator: coordinator}
}

// Current godoc
// @Summary Fetch the live published rota
// @Tags Views
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rota/current [get]
func (h *ViewHandler) Current(c *gin.Context) {
	view, err := h.coordinator.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Refresh godoc
// @Summary Reload the newest published schedule for a period
// @Tags Views
// @Produce json
// @Param periodId query string true "Scheduling period"
// @Success 200 {object} response.Envelope
// @Router /rota/current/refresh [post]
func (h *ViewHandler) Refresh(c *gin.Context) {
	periodID := c.Query("periodId")
	if periodID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "periodId is required"))
		return
	}
	schedule, err := h.coordinator.Refresh(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// MyRota godoc
// @Summary List your assignments in the live rota
// @Tags Views
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/rota [get]
func (h *ViewHandler) MyRota(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	view, err := h.coordinator.MyAssignments(c.Request.Context(), staffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// NextShift godoc
// @Summary Fetch your next upcoming shift
// @Tags Views
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/next-shift [get]
func (h *ViewHandler) NextShift(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	view, err := h.coordinator.NextShift(c.Request.Context(), staffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// MyFairness godoc
// @Summary Fetch your fairness standing against the roster
// @Tags Views
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/fairness [get]
func (h *ViewHandler) MyFairness(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	view, err := h.coordinator.MyFairness(c.Request.Context(), staffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
