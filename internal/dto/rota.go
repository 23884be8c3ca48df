package dto

import (
	"time"

	"github.com/oculohealth/rota-api/internal/models"
)

// GenerateRotaRequest instructs the engine to build a proposal for a period.
// Roster, requirements and preferences are loaded from storage by period id.
type GenerateRotaRequest struct {
	PeriodID string `json:"periodId" validate:"required"`
}

// AssignmentProposal is one generated (user, date, shift type) tuple.
type AssignmentProposal struct {
	UserID    string               `json:"userId"`
	Date      time.Time            `json:"date"`
	ShiftType models.ShiftTypeCode `json:"shiftType"`
}

// GenerationLogProposal mirrors a generation log entry before persistence.
type GenerationLogProposal struct {
	Seq           int                      `json:"seq"`
	Kind          models.GenerationLogKind `json:"kind"`
	Date          time.Time                `json:"date"`
	ShiftType     models.ShiftTypeCode     `json:"shiftType"`
	ChosenUserID  *string                  `json:"chosenUserId,omitempty"`
	ChosenScore   *float64                 `json:"chosenScore,omitempty"`
	RunnerUpID    *string                  `json:"runnerUpId,omitempty"`
	RunnerUpScore *float64                 `json:"runnerUpScore,omitempty"`
	Detail        string                   `json:"detail"`
}

// GenerateRotaResponse returns the built rota proposal.
type GenerateRotaResponse struct {
	ProposalID  string                    `json:"proposalId"`
	PeriodID    string                    `json:"periodId"`
	Assignments []AssignmentProposal      `json:"assignments"`
	Log         []GenerationLogProposal   `json:"log"`
	Unfilled    int                       `json:"unfilled"`
	Fairness    models.FairnessMetrics    `json:"fairness"`
	Preferences models.PreferenceMetrics  `json:"preferences"`
}

// SaveRotaRequest persists a proposal as a versioned rota schedule.
type SaveRotaRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Publish    bool   `json:"publish"`
}

// RotaScheduleQuery filters schedule listings by period.
type RotaScheduleQuery struct {
	PeriodID string `form:"periodId" json:"periodId"`
}
