package dto

import (
	"time"

	"github.com/oculohealth/rota-api/internal/models"
)

// PreferenceEntry is one date/shift preference inside a submission.
type PreferenceEntry struct {
	Date      time.Time              `json:"date" validate:"required"`
	ShiftType models.ShiftTypeCode   `json:"shiftType" validate:"required,oneof=DAY NIGHT WEEKEND ON_CALL"`
	Level     models.PreferenceLevel `json:"level" validate:"required,oneof=STRONGLY_PREFER PREFER NEUTRAL AVOID UNAVAILABLE"`
}

// SubmitPreferencesRequest replaces a user's preferences for a period.
// Rejected once the period's rota has been generated.
type SubmitPreferencesRequest struct {
	PeriodID string            `json:"periodId" validate:"required"`
	Entries  []PreferenceEntry `json:"entries" validate:"required,min=1,max=256,dive"`
}

// UpsertRotaUserRequest creates or updates a roster member.
type UpsertRotaUserRequest struct {
	DisplayName    string                 `json:"displayName" validate:"required"`
	Tier           int                    `json:"tier" validate:"required,min=1,max=10"`
	Qualifications []models.ShiftTypeCode `json:"qualifications" validate:"required,min=1,dive,oneof=DAY NIGHT WEEKEND ON_CALL"`
}

// CreateRequirementRequest registers demand for one date and shift type.
type CreateRequirementRequest struct {
	PeriodID  string               `json:"periodId" validate:"required"`
	Date      time.Time            `json:"date" validate:"required"`
	ShiftType models.ShiftTypeCode `json:"shiftType" validate:"required,oneof=DAY NIGHT WEEKEND ON_CALL"`
	Headcount int                  `json:"headcount" validate:"required,min=1,max=32"`
	MinTier   int                  `json:"minTier" validate:"omitempty,min=1,max=10"`
}
