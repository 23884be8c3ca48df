package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

type rosterReader interface {
	ListActive(ctx context.Context) ([]models.RotaUser, error)
}

type shiftTypeReader interface {
	List(ctx context.Context) ([]models.ShiftType, error)
}

type requirementReader interface {
	ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftRequirement, error)
}

type preferenceReader interface {
	ListByPeriod(ctx context.Context, periodID string) ([]models.ShiftPreference, error)
}

type rotaScheduleStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.RotaSchedule) error
	InsertAssignments(ctx context.Context, exec sqlx.ExtContext, assignments []models.ShiftAssignment) error
	InsertLog(ctx context.Context, exec sqlx.ExtContext, entries []models.GenerationLogEntry) error
	ListByPeriod(ctx context.Context, periodID string) ([]models.RotaSchedule, error)
	FindByID(ctx context.Context, id string) (*models.RotaSchedule, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RotaScheduleStatus) error
	Delete(ctx context.Context, id string) error
}

type accrualWriter interface {
	ApplyAccrualDeltas(ctx context.Context, exec sqlx.ExtContext, deltas map[string]float64) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RotaEngineConfig governs engine behaviour.
type RotaEngineConfig struct {
	ProposalTTL time.Duration
	Weights     EngineWeights
}

// RotaEngineService builds rota proposals with the greedy constraint engine
// and persists accepted proposals as versioned schedules.
type RotaEngineService struct {
	roster       rosterReader
	shiftTypes   shiftTypeReader
	requirements requirementReader
	preferences  preferenceReader
	schedules    rotaScheduleStore
	accruals     accrualWriter
	tx           txProvider
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
	weights      EngineWeights
	store        *rotaProposalStore
}

// NewRotaEngineService wires engine dependencies.
func NewRotaEngineService(
	roster rosterReader,
	shiftTypes shiftTypeReader,
	requirements requirementReader,
	preferences preferenceReader,
	schedules rotaScheduleStore,
	accruals accrualWriter,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg RotaEngineConfig,
) *RotaEngineService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.Weights.DefaultShiftWeights == nil {
		cfg.Weights = DefaultEngineWeights()
	}
	return &RotaEngineService{
		roster:       roster,
		shiftTypes:   shiftTypes,
		requirements: requirements,
		preferences:  preferences,
		schedules:    schedules,
		accruals:     accruals,
		tx:           tx,
		validator:    validate,
		logger:       logger,
		metrics:      metrics,
		weights:      cfg.Weights,
		store:        newRotaProposalStore(cfg.ProposalTTL),
	}
}

// Generate runs the engine over the period's roster, requirements and
// preferences and caches the resulting proposal.
func (s *RotaEngineService) Generate(ctx context.Context, req dto.GenerateRotaRequest) (*dto.GenerateRotaResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rota generation payload")
	}
	started := time.Now()

	roster, err := s.roster.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	requirements, err := s.requirements.ListByPeriod(ctx, req.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift requirements")
	}
	preferences, err := s.preferences.ListByPeriod(ctx, req.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift preferences")
	}
	typeList, err := s.shiftTypes.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift types")
	}
	typeMap := make(map[models.ShiftTypeCode]models.ShiftType, len(typeList))
	for _, st := range typeList {
		typeMap[st.Code] = st
	}

	result, err := buildRota(engineInput{
		roster:       roster,
		requirements: requirements,
		preferences:  preferences,
		shiftTypes:   typeMap,
		weights:      s.weights,
	})
	if err != nil {
		return nil, err
	}

	proposal := rotaProposal{
		ProposalID:  uuid.NewString(),
		PeriodID:    req.PeriodID,
		Result:      result,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)

	s.metrics.ObserveGeneration(time.Since(started), result.unfilled)
	s.logger.Info("rota generated",
		zap.String("period_id", req.PeriodID),
		zap.String("proposal_id", proposal.ProposalID),
		zap.Int("assignments", len(result.assignments)),
		zap.Int("unfilled", result.unfilled),
	)

	return &dto.GenerateRotaResponse{
		ProposalID:  proposal.ProposalID,
		PeriodID:    req.PeriodID,
		Assignments: result.assignments,
		Log:         result.log,
		Unfilled:    result.unfilled,
		Fairness:    result.fairness,
		Preferences: result.preferences,
	}, nil
}

// Save commits a cached proposal: a versioned schedule row, its assignment
// and log batches, and the roster accrual deltas, all in one transaction.
func (s *RotaEngineService) Save(ctx context.Context, req dto.SaveRotaRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save rota payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if s.tx == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	metaBytes, marshalErr := json.Marshal(map[string]any{
		"generated":  proposal.RequestedAt,
		"unfilled":   proposal.Result.unfilled,
		"rosterMean": proposal.Result.fairness.RosterMean,
		"algorithm":  "greedy_v1",
	})
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode rota metadata")
		return "", err
	}

	record := &models.RotaSchedule{
		PeriodID: proposal.PeriodID,
		Status:   models.RotaScheduleStatusDraft,
		Meta:     types.JSONText(metaBytes),
	}
	if err = s.schedules.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rota schedule")
		return "", err
	}

	assignments := make([]models.ShiftAssignment, 0, len(proposal.Result.assignments))
	for _, a := range proposal.Result.assignments {
		assignments = append(assignments, models.ShiftAssignment{
			ID:         uuid.NewString(),
			ScheduleID: record.ID,
			UserID:     a.UserID,
			Date:       a.Date,
			ShiftType:  a.ShiftType,
			Active:     true,
		})
	}
	if err = s.schedules.InsertAssignments(ctx, tx, assignments); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignments")
		return "", err
	}

	entries := make([]models.GenerationLogEntry, 0, len(proposal.Result.log))
	for _, e := range proposal.Result.log {
		entries = append(entries, models.GenerationLogEntry{
			ID:            uuid.NewString(),
			ScheduleID:    record.ID,
			Seq:           e.Seq,
			Kind:          e.Kind,
			Date:          e.Date,
			ShiftType:     e.ShiftType,
			ChosenUserID:  e.ChosenUserID,
			ChosenScore:   e.ChosenScore,
			RunnerUpID:    e.RunnerUpID,
			RunnerUpScore: e.RunnerUpScore,
			Detail:        e.Detail,
		})
	}
	if err = s.schedules.InsertLog(ctx, tx, entries); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist generation log")
		return "", err
	}

	if s.accruals != nil {
		if err = s.accruals.ApplyAccrualDeltas(ctx, tx, proposal.Result.accrualDeltas); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fairness accruals")
			return "", err
		}
	}

	if req.Publish {
		if err = s.schedules.UpdateStatus(ctx, tx, record.ID, models.RotaScheduleStatusPublished); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish rota schedule")
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit rota transaction")
		return "", err
	}

	s.store.Delete(req.ProposalID)
	return record.ID, nil
}

// List returns schedules for a period.
func (s *RotaEngineService) List(ctx context.Context, query dto.RotaScheduleQuery) ([]models.RotaSchedule, error) {
	if query.PeriodID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "periodId is required")
	}
	list, err := s.schedules.ListByPeriod(ctx, query.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rota schedules")
	}
	return list, nil
}

// Get returns one schedule hydrated with assignments and log.
func (s *RotaEngineService) Get(ctx context.Context, scheduleID string) (*models.RotaSchedule, error) {
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

// Publish transitions a draft schedule to published.
func (s *RotaEngineService) Publish(ctx context.Context, scheduleID string) error {
	record, err := s.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if record.Status != models.RotaScheduleStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft schedules can be published")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	if err = s.schedules.UpdateStatus(ctx, tx, scheduleID, models.RotaScheduleStatusPublished); err != nil {
		_ = tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish rota schedule")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish")
	}
	return nil
}

// Delete removes a draft schedule version.
func (s *RotaEngineService) Delete(ctx context.Context, scheduleID string) error {
	record, err := s.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if record.Status != models.RotaScheduleStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft schedules can be deleted")
	}
	if err := s.schedules.Delete(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "rota schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete rota schedule")
	}
	return nil
}

// --- Proposal cache ---

type rotaProposal struct {
	ProposalID  string
	PeriodID    string
	Result      *engineResult
	RequestedAt time.Time
}

type rotaProposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]rotaProposal
}

func newRotaProposalStore(ttl time.Duration) *rotaProposalStore {
	return &rotaProposalStore{
		ttl:   ttl,
		items: make(map[string]rotaProposal),
	}
}

func (s *rotaProposalStore) Save(proposal rotaProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *rotaProposalStore) Get(id string) (rotaProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return rotaProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return rotaProposal{}, false
	}
	return proposal, true
}

func (s *rotaProposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
