package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type preferenceStore interface {
	ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error)
	ListByUser(ctx context.Context, periodID, userID string) ([]models.ShiftPreference, error)
	ReplaceForUser(ctx context.Context, periodID, userID string, prefs []models.ShiftPreference) error
}

type scheduleExistenceChecker interface {
	ExistsForPeriod(ctx context.Context, periodID string) (bool, error)
}

// PreferenceService manages per-user shift preferences. Submissions are
// full replacements and are frozen once any rota has been generated for the
// period.
type PreferenceService struct {
	prefs     preferenceStore
	schedules scheduleExistenceChecker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewPreferenceService(prefs preferenceStore, schedules scheduleExistenceChecker, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &PreferenceService{prefs: prefs, schedules: schedules, validator: validate, logger: logger, now: now}
}

// Submit replaces the user's preferences for the period. Duplicate
// date/shift pairs within one submission and locked periods are rejected.
func (s *PreferenceService) Submit(ctx context.Context, userID string, req dto.SubmitPreferencesRequest) ([]models.ShiftPreference, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preference payload")
	}

	seen := make(map[string]struct{}, len(req.Entries))
	for _, e := range req.Entries {
		key := models.DateKey(e.Date) + "|" + string(e.ShiftType)
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate preference for "+key)
		}
		seen[key] = struct{}{}
	}

	locked, err := s.schedules.ExistsForPeriod(ctx, req.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check period state")
	}
	if locked {
		return nil, appErrors.Clone(appErrors.ErrPeriodLocked, "preferences are locked once a rota has been generated for the period")
	}

	nowUTC := s.now().UTC()
	prefs := make([]models.ShiftPreference, 0, len(req.Entries))
	for _, e := range req.Entries {
		prefs = append(prefs, models.ShiftPreference{
			ID:        uuid.NewString(),
			PeriodID:  req.PeriodID,
			UserID:    userID,
			Date:      e.Date,
			ShiftType: e.ShiftType,
			Level:     e.Level,
			CreatedAt: nowUTC,
			UpdatedAt: nowUTC,
		})
	}
	if err := s.prefs.ReplaceForUser(ctx, req.PeriodID, userID, prefs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save preferences")
	}
	s.logger.Info("preferences submitted",
		zap.String("user_id", userID),
		zap.String("period_id", req.PeriodID),
		zap.Int("entries", len(prefs)),
	)
	return prefs, nil
}

// ListMine returns the user's preferences for a period.
func (s *PreferenceService) ListMine(ctx context.Context, userID, periodID string) ([]models.ShiftPreference, error) {
	if periodID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period id is required")
	}
	prefs, err := s.prefs.ListByUser(ctx, periodID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list preferences")
	}
	return prefs, nil
}

// ListByPeriod returns every submitted preference for a period. Coordinator
// use only.
func (s *PreferenceService) ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error) {
	if periodID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period id is required")
	}
	prefs, err := s.prefs.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list preferences")
	}
	return prefs, nil
}
