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

type shiftPreferenceService interface {
	Submit(ctx context.Context, userID string, req dto.SubmitPreferencesRequest) ([]models.ShiftPreference, error)
	ListMine(ctx context.Context, userID, periodID string) ([]models.ShiftPreference, error)
	ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error)
}

// PreferenceHandler exposes shift preference submission endpoints.
type PreferenceHandler struct {
	prefs shiftPreferenceService
}

// NewPreferenceHandler creates a new handler.
func NewPreferenceHandler(prefs shiftPreferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

// Submit godoc
// @Summary Replace your preferences for a period
// @Tags Preferences
// @Accept json
// @Produce json
// @Param payload body dto.SubmitPreferencesRequest true "Preferences payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /preferences [put]
func (h *PreferenceHandler) Submit(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	var req dto.SubmitPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preferences payload"))
		return
	}
	prefs, err := h.prefs.Submit(c.Request.Context(), staffID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// ListMine godoc
// @Summary List your preferences for a period
// @Tags Preferences
// @Produce json
// @Param periodId query string true "Scheduling period"
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) ListMine(c *gin.Context) {
	staffID := staffIDFromContext(c)
	if staffID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no roster membership"))
		return
	}
	prefs, err := h.prefs.ListMine(c.Request.Context(), staffID, c.Query("periodId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// ListByPeriod godoc
// @Summary List all submitted preferences for a period
// @Tags Preferences
// @Produce json
// @Param periodId query string true "Scheduling period"
// @Success 200 {object} response.Envelope
// @Router /preferences/all [get]
func (h *PreferenceHandler) ListByPeriod(c *gin.Context) {
	prefs, err := h.prefs.ListByPeriod(c.Request.Context(), c.Query("periodId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}
