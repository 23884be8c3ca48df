package dto

import (
	"time"

	"github.com/oculohealth/rota-api/internal/models"
)

// CreateListingRequest offers an assignment up for exchange.
type CreateListingRequest struct {
	AssignmentID  string                 `json:"assignmentId" validate:"required"`
	EligibleTypes []models.ShiftTypeCode `json:"eligibleTypes" validate:"omitempty,dive,oneof=DAY NIGHT WEEKEND ON_CALL"`
}

// AcceptListingRequest picks up an open listing with one of the accepting
// user's own assignments.
type AcceptListingRequest struct {
	ListingID    string `json:"listingId" validate:"required"`
	AssignmentID string `json:"assignmentId" validate:"required"`
}

// SwapAcceptanceResponse reports the outcome of processing an acceptance.
// On success Schedule carries the updated rota; on failure Validation
// explains the rejection and the schedule is untouched.
type SwapAcceptanceResponse struct {
	OK         bool                   `json:"ok"`
	Schedule   *models.RotaSchedule   `json:"schedule,omitempty"`
	Validation *models.SwapValidation `json:"validation,omitempty"`
}

// ListingView is a listing joined with its assignment for browse views.
type ListingView struct {
	Listing    models.SwapListing     `json:"listing"`
	Assignment models.ShiftAssignment `json:"assignment"`
	OwnerName  string                 `json:"owner_name,omitempty"`
	Date       time.Time              `json:"date"`
}
