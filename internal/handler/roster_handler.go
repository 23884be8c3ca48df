package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/service"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
	"github.com/oculohealth/rota-api/pkg/response"
)

// RosterHandler exposes staff roster and shift demand endpoints.
type RosterHandler struct {
	roster *service.RosterService
}

// NewRosterHandler creates a new handler.
func NewRosterHandler(roster *service.RosterService) *RosterHandler {
	return &RosterHandler{roster: roster}
}

// List godoc
// @Summary List active roster members
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster [get]
func (h *RosterHandler) List(c *gin.Context) {
	roster, err := h.roster.ListRoster(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Get godoc
// @Summary Fetch one roster member
// @Tags Roster
// @Produce json
// @Param id path string true "Roster member id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /roster/{id} [get]
func (h *RosterHandler) Get(c *gin.Context) {
	user, err := h.roster.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Add a staff member to the roster
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body dto.UpsertRotaUserRequest true "Roster payload"
// @Success 201 {object} response.Envelope
// @Router /roster [post]
func (h *RosterHandler) Create(c *gin.Context) {
	var req dto.UpsertRotaUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}
	user, err := h.roster.CreateUser(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update a roster member
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Roster member id"
// @Param payload body dto.UpsertRotaUserRequest true "Roster payload"
// @Success 200 {object} response.Envelope
// @Router /roster/{id} [put]
func (h *RosterHandler) Update(c *gin.Context) {
	var req dto.UpsertRotaUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}
	user, err := h.roster.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Deactivate godoc
// @Summary Remove a member from future scheduling
// @Tags Roster
// @Produce json
// @Param id path string true "Roster member id"
// @Success 204 {object} response.Envelope
// @Router /roster/{id} [delete]
func (h *RosterHandler) Deactivate(c *gin.Context) {
	if err := h.roster.DeactivateUser(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ShiftTypes godoc
// @Summary List the shift type catalogue
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /shift-types [get]
func (h *RosterHandler) ShiftTypes(c *gin.Context) {
	types, err := h.roster.ListShiftTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// ListRequirements godoc
// @Summary List shift requirements for a period
// @Tags Roster
// @Produce json
// @Param periodId query string true "Scheduling period"
// @Success 200 {object} response.Envelope
// @Router /requirements [get]
func (h *RosterHandler) ListRequirements(c *gin.Context) {
	reqs, err := h.roster.ListRequirements(c.Request.Context(), c.Query("periodId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reqs, nil)
}

// CreateRequirement godoc
// @Summary Register demand for one date and shift type
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequirementRequest true "Requirement payload"
// @Success 201 {object} response.Envelope
// @Router /requirements [post]
func (h *RosterHandler) CreateRequirement(c *gin.Context) {
	var req dto.CreateRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid requirement payload"))
		return
	}
	requirement, err := h.roster.CreateRequirement(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, requirement)
}

// DeleteRequirement godoc
// @Summary Delete a requirement
// @Tags Roster
// @Produce json
// @Param id path string true "Requirement id"
// @Success 204 {object} response.Envelope
// @Router /requirements/{id} [delete]
func (h *RosterHandler) DeleteRequirement(c *gin.Context) {
	if err := h.roster.DeleteRequirement(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
