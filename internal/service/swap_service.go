package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type swapListingStore interface {
	Create(ctx context.Context, listing *models.SwapListing) error
	FindByID(ctx context.Context, id string) (*models.SwapListing, error)
	Close(ctx context.Context, exec sqlx.ExtContext, id string, status models.SwapListingStatus, acceptedBy *string, closedAt time.Time) error
	ListOpen(ctx context.Context) ([]models.SwapListing, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type assignmentExchanger interface {
	ExchangeAssignments(ctx context.Context, exec sqlx.ExtContext, assignmentAID, assignmentBID string) error
}

// SwapRules holds the configured hard and soft swap constraints.
type SwapRules struct {
	MinRest            time.Duration
	FairnessDriftLimit float64
	ListingTTL         time.Duration
	// DefaultShiftWeights backs shift types whose FairnessWeight is unset,
	// matching how the generation engine costs them.
	DefaultShiftWeights map[models.ShiftTypeCode]float64
}

// SwapService validates and executes shift exchanges between two users.
// Validation is pure; execution re-validates against the live schedule and
// commits copy-on-write, so a stale acceptance never mutates anything.
type SwapService struct {
	schedules rotaScheduleStore
	roster    rosterReader
	types     shiftTypeReader
	listings  swapListingStore
	exchanger assignmentExchanger
	accruals  accrualWriter
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	rules     SwapRules
	now       func() time.Time
}

// NewSwapService wires swap dependencies. The clock is injectable for tests.
func NewSwapService(
	schedules rotaScheduleStore,
	roster rosterReader,
	types shiftTypeReader,
	listings swapListingStore,
	exchanger assignmentExchanger,
	accruals accrualWriter,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	rules SwapRules,
	now func() time.Time,
) *SwapService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules.MinRest <= 0 {
		rules.MinRest = 11 * time.Hour
	}
	if rules.FairnessDriftLimit <= 0 {
		rules.FairnessDriftLimit = 3.0
	}
	if rules.ListingTTL <= 0 {
		rules.ListingTTL = 7 * 24 * time.Hour
	}
	if rules.DefaultShiftWeights == nil {
		rules.DefaultShiftWeights = DefaultEngineWeights().DefaultShiftWeights
	}
	if now == nil {
		now = time.Now
	}
	return &SwapService{
		schedules: schedules,
		roster:    roster,
		types:     types,
		listings:  listings,
		exchanger: exchanger,
		accruals:  accruals,
		tx:        tx,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		rules:     rules,
		now:       now,
	}
}

// Validate checks a proposed exchange against the given schedule and roster.
// The schedule is not mutated; calling twice with unchanged inputs returns
// identical results.
func (s *SwapService) Validate(ctx context.Context, schedule *models.RotaSchedule, proposal models.SwapProposal, roster []models.RotaUser) (models.SwapValidation, error) {
	if err := s.validator.Struct(proposal); err != nil {
		return models.SwapValidation{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap proposal")
	}
	typeList, err := s.types.List(ctx)
	if err != nil {
		return models.SwapValidation{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift types")
	}
	typeMap := make(map[models.ShiftTypeCode]models.ShiftType, len(typeList))
	for _, st := range typeList {
		typeMap[st.Code] = st
	}
	validation := validateSwap(schedule, proposal, roster, typeMap, s.rules)
	s.metrics.ObserveSwapValidation(validation.OK)
	return validation, nil
}

// CreateListing opens a swap offer for an assignment. Only the current
// holder may list it.
func (s *SwapService) CreateListing(ctx context.Context, req dto.CreateListingRequest, scheduleID, callerStaffID string) (*models.SwapListing, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid listing payload")
	}
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	assignment := schedule.AssignmentByID(req.AssignmentID)
	if assignment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found in schedule")
	}
	if !assignment.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is no longer active")
	}
	if assignment.UserID != callerStaffID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assignment holder may list it for swap")
	}

	listing := &models.SwapListing{
		ID:            uuid.NewString(),
		AssignmentID:  assignment.ID,
		OwnerID:       assignment.UserID,
		EligibleTypes: req.EligibleTypes,
		Status:        models.SwapListingOpen,
		ExpiresAt:     s.now().UTC().Add(s.rules.ListingTTL),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create swap listing")
	}
	return listing, nil
}

// CancelListing closes an open listing. Only its owner may cancel.
func (s *SwapService) CancelListing(ctx context.Context, listingID, callerStaffID string) error {
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.OwnerID != callerStaffID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the listing owner may cancel it")
	}
	if listing.Status != models.SwapListingOpen {
		return appErrors.Clone(appErrors.ErrConflict, "listing is not open")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	if err = s.listings.Close(ctx, tx, listingID, models.SwapListingCancelled, nil, s.now().UTC()); err != nil {
		_ = tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel listing")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit cancellation")
	}
	return nil
}

// AcceptListing processes a swap acceptance. The proposal is re-validated
// against the live schedule, so acceptances racing a prior change are
// rejected cleanly with the validation result and no mutation.
func (s *SwapService) AcceptListing(ctx context.Context, req dto.AcceptListingRequest, scheduleID, callerStaffID string) (*dto.SwapAcceptanceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid acceptance payload")
	}
	listing, err := s.loadListing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.SwapListingOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "listing is not open")
	}
	if s.now().After(listing.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "listing has expired")
	}
	if listing.OwnerID == callerStaffID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot accept your own listing")
	}

	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	offered := schedule.AssignmentByID(req.AssignmentID)
	if offered == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "accepting assignment not found in schedule")
	}
	if offered.UserID != callerStaffID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you may only offer your own assignment")
	}

	roster, err := s.roster.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	typeList, err := s.types.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift types")
	}
	typeMap := make(map[models.ShiftTypeCode]models.ShiftType, len(typeList))
	for _, st := range typeList {
		typeMap[st.Code] = st
	}

	proposal := models.SwapProposal{AssignmentAID: listing.AssignmentID, AssignmentBID: offered.ID}
	validation := validateSwap(schedule, proposal, roster, typeMap, s.rules)
	if len(listing.EligibleTypes) > 0 && !containsType(listing.EligibleTypes, offered.ShiftType) {
		validation.AddError(models.SwapErrIneligibleType, fmt.Sprintf("listing does not accept %s shifts", offered.ShiftType), offered.UserID)
	}
	s.metrics.ObserveSwapValidation(validation.OK)
	if !validation.OK {
		s.logger.Info("swap acceptance rejected",
			zap.String("listing_id", listing.ID),
			zap.String("schedule_id", schedule.ID),
			zap.Int("errors", len(validation.Errors)),
		)
		return &dto.SwapAcceptanceResponse{OK: false, Validation: &validation}, nil
	}

	listed := schedule.AssignmentByID(listing.AssignmentID)
	deltas := swapAccrualDeltas(listed, offered, typeMap, s.rules.DefaultShiftWeights)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.exchanger.ExchangeAssignments(ctx, tx, listed.ID, offered.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to exchange assignments")
		return nil, err
	}
	if s.accruals != nil {
		if err = s.accruals.ApplyAccrualDeltas(ctx, tx, deltas); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fairness accruals")
			return nil, err
		}
	}
	if err = s.listings.Close(ctx, tx, listing.ID, models.SwapListingAccepted, &callerStaffID, s.now().UTC()); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close listing")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit swap")
		return nil, err
	}

	updated := exchangeInCopy(schedule, listed.ID, offered.ID)
	s.logger.Info("swap accepted",
		zap.String("listing_id", listing.ID),
		zap.String("schedule_id", schedule.ID),
		zap.String("assignment_a", listed.ID),
		zap.String("assignment_b", offered.ID),
	)
	return &dto.SwapAcceptanceResponse{OK: true, Schedule: updated, Validation: &validation}, nil
}

// ListOpen returns open listings joined with their assignments.
func (s *SwapService) ListOpen(ctx context.Context, scheduleID string) ([]dto.ListingView, error) {
	schedule, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	listings, err := s.listings.ListOpen(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swap listings")
	}
	views := make([]dto.ListingView, 0, len(listings))
	for _, l := range listings {
		assignment := schedule.AssignmentByID(l.AssignmentID)
		if assignment == nil || !assignment.Active {
			continue
		}
		views = append(views, dto.ListingView{Listing: l, Assignment: *assignment, Date: assignment.Date})
	}
	return views, nil
}

// ExpireListings closes listings past their expiry. Run periodically from
// the jobs queue.
func (s *SwapService) ExpireListings(ctx context.Context) (int64, error) {
	expired, err := s.listings.ExpireOlderThan(ctx, s.now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire listings")
	}
	if expired > 0 {
		s.logger.Info("expired swap listings", zap.Int64("count", expired))
	}
	return expired, nil
}

func (s *SwapService) loadSchedule(ctx context.Context, scheduleID string) (*models.RotaSchedule, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rota schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rota schedule")
	}
	return schedule, nil
}

func (s *SwapService) loadListing(ctx context.Context, listingID string) (*models.SwapListing, error) {
	if listingID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "listing id is required")
	}
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap listing not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap listing")
	}
	return listing, nil
}

// --- Validation core ---

// validateSwap applies the swap rulebook. It never mutates the schedule.
func validateSwap(
	schedule *models.RotaSchedule,
	proposal models.SwapProposal,
	roster []models.RotaUser,
	types map[models.ShiftTypeCode]models.ShiftType,
	rules SwapRules,
) models.SwapValidation {
	validation := models.SwapValidation{OK: true}

	a := schedule.AssignmentByID(proposal.AssignmentAID)
	b := schedule.AssignmentByID(proposal.AssignmentBID)
	if a == nil {
		validation.AddError(models.SwapErrAssignmentNotFound, fmt.Sprintf("assignment %s not found in schedule", proposal.AssignmentAID), "")
	}
	if b == nil {
		validation.AddError(models.SwapErrAssignmentNotFound, fmt.Sprintf("assignment %s not found in schedule", proposal.AssignmentBID), "")
	}
	if a == nil || b == nil {
		return validation
	}
	if !a.Active {
		validation.AddError(models.SwapErrAssignmentInactive, fmt.Sprintf("assignment %s is no longer active", a.ID), a.UserID)
	}
	if !b.Active {
		validation.AddError(models.SwapErrAssignmentInactive, fmt.Sprintf("assignment %s is no longer active", b.ID), b.UserID)
	}
	if a.UserID == b.UserID {
		validation.AddError(models.SwapErrSameUser, "both assignments belong to the same user", a.UserID)
	}
	if !validation.OK {
		return validation
	}

	users := make(map[string]models.RotaUser, len(roster))
	for _, u := range roster {
		users[u.ID] = u
	}
	userA, okA := users[a.UserID]
	userB, okB := users[b.UserID]
	if !okA {
		validation.AddError(models.SwapErrUnknownUser, fmt.Sprintf("user %s not on roster", a.UserID), a.UserID)
	}
	if !okB {
		validation.AddError(models.SwapErrUnknownUser, fmt.Sprintf("user %s not on roster", b.UserID), b.UserID)
	}
	if !validation.OK {
		return validation
	}

	// Each user takes on the other's shift.
	checkQualification(&validation, userA, *b, types)
	checkQualification(&validation, userB, *a, types)
	checkDoubleBooking(&validation, schedule, userA.ID, *b, *a)
	checkDoubleBooking(&validation, schedule, userB.ID, *a, *b)
	checkRestPeriod(&validation, schedule, userA.ID, *b, *a, types, rules.MinRest)
	checkRestPeriod(&validation, schedule, userB.ID, *a, *b, types, rules.MinRest)
	checkFairnessDrift(&validation, roster, userA, userB, *a, *b, types, rules)

	return validation
}

func checkQualification(v *models.SwapValidation, user models.RotaUser, incoming models.ShiftAssignment, types map[models.ShiftTypeCode]models.ShiftType) {
	st, ok := types[incoming.ShiftType]
	if !ok {
		v.AddError(models.SwapErrQualificationMismatch, fmt.Sprintf("unknown shift type %s", incoming.ShiftType), user.ID)
		return
	}
	if !user.Qualified(incoming.ShiftType, st.MinTier) {
		v.AddError(models.SwapErrQualificationMismatch, fmt.Sprintf("user %s is not qualified for %s shifts", user.ID, incoming.ShiftType), user.ID)
	}
}

func checkDoubleBooking(v *models.SwapValidation, schedule *models.RotaSchedule, userID string, incoming, outgoing models.ShiftAssignment) {
	incomingKey := models.DateKey(incoming.Date)
	for _, other := range schedule.Assignments {
		if !other.Active || other.UserID != userID || other.ID == outgoing.ID {
			continue
		}
		if models.DateKey(other.Date) == incomingKey {
			v.AddError(models.SwapErrDoubleBooking, fmt.Sprintf("user %s already works %s on %s", userID, other.ShiftType, incomingKey), userID)
			return
		}
	}
}

func checkRestPeriod(
	v *models.SwapValidation,
	schedule *models.RotaSchedule,
	userID string,
	incoming, outgoing models.ShiftAssignment,
	types map[models.ShiftTypeCode]models.ShiftType,
	minRest time.Duration,
) {
	inType, ok := types[incoming.ShiftType]
	if !ok {
		return
	}
	inStart := inType.Start(incoming.Date)
	inEnd := inType.End(incoming.Date)

	for _, other := range schedule.Assignments {
		if !other.Active || other.UserID != userID || other.ID == outgoing.ID {
			continue
		}
		otherType, ok := types[other.ShiftType]
		if !ok {
			continue
		}
		otherStart := otherType.Start(other.Date)
		otherEnd := otherType.End(other.Date)

		var gap time.Duration
		switch {
		case !otherEnd.After(inStart):
			gap = inStart.Sub(otherEnd)
		case !inEnd.After(otherStart):
			gap = otherStart.Sub(inEnd)
		default:
			gap = -1 // overlapping windows
		}
		if gap < minRest {
			v.AddError(models.SwapErrRestPeriod, fmt.Sprintf("user %s would have %s rest between %s and %s shifts", userID, formatGap(gap), other.ShiftType, incoming.ShiftType), userID)
			return
		}
	}
}

func checkFairnessDrift(
	v *models.SwapValidation,
	roster []models.RotaUser,
	userA, userB models.RotaUser,
	a, b models.ShiftAssignment,
	types map[models.ShiftTypeCode]models.ShiftType,
	rules SwapRules,
) {
	var sum float64
	for _, u := range roster {
		sum += u.FairnessAccrual
	}
	mean := sum / float64(len(roster))

	costA := swapShiftCost(a.ShiftType, types, rules.DefaultShiftWeights)
	costB := swapShiftCost(b.ShiftType, types, rules.DefaultShiftWeights)

	driftA := (userA.FairnessAccrual + costB - costA) - mean
	driftB := (userB.FairnessAccrual + costA - costB) - mean
	if math.Abs(driftA) > rules.FairnessDriftLimit {
		v.AddWarning(models.SwapWarnFairnessDrift, fmt.Sprintf("swap pushes user %s %.2f from roster mean", userA.ID, driftA), userA.ID, driftA)
	}
	if math.Abs(driftB) > rules.FairnessDriftLimit {
		v.AddWarning(models.SwapWarnFairnessDrift, fmt.Sprintf("swap pushes user %s %.2f from roster mean", userB.ID, driftB), userB.ID, driftB)
	}
}

// swapShiftCost resolves the fairness cost of a shift the same way the
// generation engine does: the type's own weight, then the configured
// default for its code, then 1.0.
func swapShiftCost(code models.ShiftTypeCode, types map[models.ShiftTypeCode]models.ShiftType, defaults map[models.ShiftTypeCode]float64) float64 {
	if st, ok := types[code]; ok && st.FairnessWeight > 0 {
		return st.FairnessWeight
	}
	if weight, ok := defaults[code]; ok {
		return weight
	}
	return 1.0
}

func swapAccrualDeltas(a, b *models.ShiftAssignment, types map[models.ShiftTypeCode]models.ShiftType, defaults map[models.ShiftTypeCode]float64) map[string]float64 {
	costA := swapShiftCost(a.ShiftType, types, defaults)
	costB := swapShiftCost(b.ShiftType, types, defaults)
	return map[string]float64{
		a.UserID: costB - costA,
		b.UserID: costA - costB,
	}
}

// exchangeInCopy returns a deep copy of the schedule with the two
// assignments' holders exchanged. The input schedule is untouched.
func exchangeInCopy(schedule *models.RotaSchedule, aID, bID string) *models.RotaSchedule {
	updated := *schedule
	updated.Assignments = make([]models.ShiftAssignment, len(schedule.Assignments))
	copy(updated.Assignments, schedule.Assignments)

	var a, b *models.ShiftAssignment
	for i := range updated.Assignments {
		switch updated.Assignments[i].ID {
		case aID:
			a = &updated.Assignments[i]
		case bID:
			b = &updated.Assignments[i]
		}
	}
	if a != nil && b != nil {
		a.UserID, b.UserID = b.UserID, a.UserID
	}
	return &updated
}

func containsType(list []models.ShiftTypeCode, code models.ShiftTypeCode) bool {
	for _, c := range list {
		if c == code {
			return true
		}
	}
	return false
}

func formatGap(gap time.Duration) string {
	if gap < 0 {
		return "overlapping"
	}
	return gap.String()
}
