package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type rotaUserStore interface {
	ListActive(ctx context.Context) ([]models.RotaUser, error)
	FindByID(ctx context.Context, id string) (*models.RotaUser, error)
	Create(ctx context.Context, user *models.RotaUser) error
	Update(ctx context.Context, user *models.RotaUser) error
	Deactivate(ctx context.Context, id string) error
}

type requirementStore interface {
	ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftRequirement, error)
	Create(ctx context.Context, req *models.ShiftRequirement) error
	Delete(ctx context.Context, id string) error
}

// RosterService manages staff membership and per-period shift demand.
type RosterService struct {
	users        rotaUserStore
	requirements requirementStore
	types        shiftTypeReader
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

func NewRosterService(users rotaUserStore, requirements requirementStore, types shiftTypeReader, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &RosterService{
		users:        users,
		requirements: requirements,
		types:        types,
		validator:    validate,
		logger:       logger,
		now:          now,
	}
}

// ListRoster returns all active staff.
func (s *RosterService) ListRoster(ctx context.Context) ([]models.RotaUser, error) {
	roster, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	return roster, nil
}

// GetUser loads one roster member.
func (s *RosterService) GetUser(ctx context.Context, id string) (*models.RotaUser, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster member")
	}
	return user, nil
}

// CreateUser adds a staff member to the roster with zero fairness accrual.
func (s *RosterService) CreateUser(ctx context.Context, req dto.UpsertRotaUserRequest) (*models.RotaUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}
	raw, err := json.Marshal(req.Qualifications)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode qualifications")
	}
	nowUTC := s.now().UTC()
	user := &models.RotaUser{
		ID:               uuid.NewString(),
		DisplayName:      req.DisplayName,
		Tier:             req.Tier,
		QualificationRaw: types.JSONText(raw),
		Qualifications:   req.Qualifications,
		FairnessAccrual:  0,
		Active:           true,
		CreatedAt:        nowUTC,
		UpdatedAt:        nowUTC,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create roster member")
	}
	s.logger.Info("roster member created", zap.String("user_id", user.ID), zap.Int("tier", user.Tier))
	return user, nil
}

// UpdateUser changes a member's name, tier or qualifications. Fairness
// accrual is never writable here.
func (s *RosterService) UpdateUser(ctx context.Context, id string, req dto.UpsertRotaUserRequest) (*models.RotaUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req.Qualifications)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode qualifications")
	}
	user.DisplayName = req.DisplayName
	user.Tier = req.Tier
	user.QualificationRaw = types.JSONText(raw)
	user.Qualifications = req.Qualifications
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update roster member")
	}
	return user, nil
}

// DeactivateUser removes a member from future generation runs. Existing
// assignments are untouched.
func (s *RosterService) DeactivateUser(ctx context.Context, id string) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.users.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate roster member")
	}
	s.logger.Info("roster member deactivated", zap.String("user_id", id))
	return nil
}

// ListShiftTypes returns the shift type catalogue.
func (s *RosterService) ListShiftTypes(ctx context.Context) ([]models.ShiftType, error) {
	list, err := s.types.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shift types")
	}
	return list, nil
}

// ListRequirements returns shift demand for a period.
func (s *RosterService) ListRequirements(ctx context.Context, periodID string) ([]models.ShiftRequirement, error) {
	if periodID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period id is required")
	}
	list, err := s.requirements.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirements")
	}
	return list, nil
}

// CreateRequirement registers demand for one date and shift type. The shift
// type must exist; MinTier defaults to the type's own floor.
func (s *RosterService) CreateRequirement(ctx context.Context, req dto.CreateRequirementRequest) (*models.ShiftRequirement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	typeList, err := s.types.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift types")
	}
	var shiftType *models.ShiftType
	for i := range typeList {
		if typeList[i].Code == req.ShiftType {
			shiftType = &typeList[i]
			break
		}
	}
	if shiftType == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown shift type "+string(req.ShiftType))
	}
	minTier := req.MinTier
	if minTier < shiftType.MinTier {
		minTier = shiftType.MinTier
	}
	requirement := &models.ShiftRequirement{
		ID:        uuid.NewString(),
		PeriodID:  req.PeriodID,
		Date:      req.Date,
		ShiftType: req.ShiftType,
		Headcount: req.Headcount,
		MinTier:   minTier,
		CreatedAt: s.now().UTC(),
	}
	if err := s.requirements.Create(ctx, requirement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create requirement")
	}
	return requirement, nil
}

// DeleteRequirement removes one demand row.
func (s *RosterService) DeleteRequirement(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "requirement id is required")
	}
	if err := s.requirements.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete requirement")
	}
	return nil
}
