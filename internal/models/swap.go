package models

import "time"

// SwapListingStatus tracks the lifecycle of an offered shift.
type SwapListingStatus string

const (
	SwapListingOpen      SwapListingStatus = "OPEN"
	SwapListingAccepted  SwapListingStatus = "ACCEPTED"
	SwapListingCancelled SwapListingStatus = "CANCELLED"
	SwapListingExpired   SwapListingStatus = "EXPIRED"
)

// SwapListing is an open offer to exchange an assignment. Closed on
// acceptance, cancellation or expiry.
type SwapListing struct {
	ID             string            `db:"id" json:"id"`
	AssignmentID   string            `db:"assignment_id" json:"assignment_id"`
	OwnerID        string            `db:"owner_id" json:"owner_id"`
	EligibleTypes  []ShiftTypeCode   `db:"-" json:"eligible_types,omitempty"`
	Status         SwapListingStatus `db:"status" json:"status"`
	AcceptedBy     *string           `db:"accepted_by" json:"accepted_by,omitempty"`
	ExpiresAt      time.Time         `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	ClosedAt       *time.Time        `db:"closed_at" json:"closed_at,omitempty"`
}

// SwapProposal identifies the two assignments to exchange.
type SwapProposal struct {
	AssignmentAID string `json:"assignment_a_id" validate:"required"`
	AssignmentBID string `json:"assignment_b_id" validate:"required"`
}

// Swap validation codes. Errors block; warnings never do.
const (
	SwapErrAssignmentNotFound    = "ASSIGNMENT_NOT_FOUND"
	SwapErrAssignmentInactive    = "ASSIGNMENT_INACTIVE"
	SwapErrSameUser              = "SAME_USER"
	SwapErrUnknownUser           = "UNKNOWN_USER"
	SwapErrQualificationMismatch = "QUALIFICATION_MISMATCH"
	SwapErrDoubleBooking         = "DOUBLE_BOOKING"
	SwapErrRestPeriod            = "REST_PERIOD"
	SwapErrIneligibleType        = "INELIGIBLE_SHIFT_TYPE"
	SwapWarnFairnessDrift        = "FAIRNESS_DRIFT"
)

// SwapValidationError is a blocking rule violation.
type SwapValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// SwapValidationWarning is an advisory signal that does not block the swap.
type SwapValidationWarning struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	UserID  string  `json:"user_id,omitempty"`
	Drift   float64 `json:"drift,omitempty"`
}

// SwapValidation is the structured outcome of validating a proposed swap.
type SwapValidation struct {
	OK       bool                    `json:"ok"`
	Errors   []SwapValidationError   `json:"errors"`
	Warnings []SwapValidationWarning `json:"warnings"`
}

// AddError appends a blocking violation and marks the validation failed.
func (v *SwapValidation) AddError(code, message, userID string) {
	v.OK = false
	v.Errors = append(v.Errors, SwapValidationError{Code: code, Message: message, UserID: userID})
}

// AddWarning appends a non-blocking advisory.
func (v *SwapValidation) AddWarning(code, message, userID string, drift float64) {
	v.Warnings = append(v.Warnings, SwapValidationWarning{Code: code, Message: message, UserID: userID, Drift: drift})
}
