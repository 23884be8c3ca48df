package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/service"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
	"github.com/oculohealth/rota-api/pkg/response"
)

// RotaHandler exposes rota generation and lifecycle endpoints.
type RotaHandler struct {
	engine      *service.RotaEngineService
	coordinator *service.RotaService
}

// NewRotaHandler creates a new handler.
func NewRotaHandler(engine *service.RotaEngineService, coordinator *service.RotaService) *RotaHandler {
	return &RotaHandler{engine: engine, coordinator: coordinator}
}

// Generate godoc
// @Summary Generate a rota proposal for a period
// @Tags Rota
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRotaRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rota/generate [post]
func (h *RotaHandler) Generate(c *gin.Context) {
	var req dto.GenerateRotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	res, err := h.engine.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Save godoc
// @Summary Persist a generated proposal as a schedule version
// @Tags Rota
// @Accept json
// @Produce json
// @Param payload body dto.SaveRotaRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rota/save [post]
func (h *RotaHandler) Save(c *gin.Context) {
	var req dto.SaveRotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	scheduleID, err := h.engine.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.Publish {
		if schedule, err := h.engine.Get(c.Request.Context(), scheduleID); err == nil {
			h.coordinator.SetCurrent(c.Request.Context(), schedule, service.RotaEventPublished)
		}
	}
	response.Created(c, gin.H{"schedule_id": scheduleID})
}

// List godoc
// @Summary List schedule versions for a period
// @Tags Rota
// @Produce json
// @Param periodId query string true "Scheduling period"
// @Success 200 {object} response.Envelope
// @Router /rota/schedules [get]
func (h *RotaHandler) List(c *gin.Context) {
	var query dto.RotaScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	schedules, err := h.engine.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Get godoc
// @Summary Fetch one schedule with assignments and generation log
// @Tags Rota
// @Produce json
// @Param id path string true "Schedule id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rota/schedules/{id} [get]
func (h *RotaHandler) Get(c *gin.Context) {
	schedule, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Publish godoc
// @Summary Publish a draft schedule
// @Tags Rota
// @Produce json
// @Param id path string true "Schedule id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rota/schedules/{id}/publish [post]
func (h *RotaHandler) Publish(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.Publish(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	if schedule, err := h.engine.Get(c.Request.Context(), id); err == nil {
		h.coordinator.SetCurrent(c.Request.Context(), schedule, service.RotaEventPublished)
	}
	response.JSON(c, http.StatusOK, gin.H{"schedule_id": id, "status": "PUBLISHED"}, nil)
}

// Delete godoc
// @Summary Delete a draft schedule
// @Tags Rota
// @Produce json
// @Param id path string true "Schedule id"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rota/schedules/{id} [delete]
func (h *RotaHandler) Delete(c *gin.Context) {
	if err := h.engine.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
