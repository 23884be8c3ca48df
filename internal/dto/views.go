package dto

import (
	"time"

	"github.com/oculohealth/rota-api/internal/models"
)

// MyRotaView is the personal slice of the current schedule for one user.
type MyRotaView struct {
	UserID      string                   `json:"user_id"`
	ScheduleID  string                   `json:"schedule_id"`
	PeriodID    string                   `json:"period_id"`
	Assignments []models.ShiftAssignment `json:"assignments"`
}

// NextShiftView points at the user's next upcoming shift, if any.
type NextShiftView struct {
	UserID     string                  `json:"user_id"`
	Assignment *models.ShiftAssignment `json:"assignment,omitempty"`
	StartsAt   *time.Time              `json:"starts_at,omitempty"`
	EndsAt     *time.Time              `json:"ends_at,omitempty"`
}

// MyFairnessView is one user's fairness standing against the roster.
type MyFairnessView struct {
	UserID        string  `json:"user_id"`
	Accrual       float64 `json:"accrual"`
	RosterMean    float64 `json:"roster_mean"`
	MeanDeviation float64 `json:"mean_deviation"`
}

// CurrentRotaView is the published schedule with its status line.
type CurrentRotaView struct {
	Schedule *models.RotaSchedule `json:"schedule,omitempty"`
	Unfilled int                  `json:"unfilled"`
}
