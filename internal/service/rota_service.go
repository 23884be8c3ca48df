package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

// RotaEventKind classifies schedule change notifications.
type RotaEventKind string

const (
	RotaEventPublished   RotaEventKind = "published"
	RotaEventSwapApplied RotaEventKind = "swap_applied"
	RotaEventArchived    RotaEventKind = "archived"
)

// RotaEvent is delivered to subscribers whenever the live schedule changes.
type RotaEvent struct {
	Kind       RotaEventKind
	ScheduleID string
	PeriodID   string
	At         time.Time
}

const currentRotaCacheKey = "rota:current"

// RotaService coordinates access to the live published schedule. It holds
// the current schedule and roster under a mutex, mirrors the schedule into
// redis for cheap reads, and notifies subscribers on change.
type RotaService struct {
	schedules rotaScheduleStore
	roster    rosterReader
	types     shiftTypeReader
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time

	mu          sync.RWMutex
	current     *models.RotaSchedule
	rosterCache []models.RotaUser

	subMu       sync.Mutex
	subscribers map[int]func(RotaEvent)
	nextSubID   int
}

// NewRotaService builds the coordinator. The redis client may be nil, in
// which case only the in-process copy is kept.
func NewRotaService(
	schedules rotaScheduleStore,
	roster rosterReader,
	types shiftTypeReader,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger *zap.Logger,
	metrics *MetricsService,
	now func() time.Time,
) *RotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &RotaService{
		schedules:   schedules,
		roster:      roster,
		types:       types,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		metrics:     metrics,
		now:         now,
		subscribers: make(map[int]func(RotaEvent)),
	}
}

// Subscribe registers a callback for schedule change events and returns an
// unsubscribe function. Callbacks run synchronously in registration order.
func (s *RotaService) Subscribe(fn func(RotaEvent)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *RotaService) notify(event RotaEvent) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(RotaEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

// SetCurrent installs a schedule as the live rota and notifies subscribers.
// Called after publish and after an accepted swap.
func (s *RotaService) SetCurrent(ctx context.Context, schedule *models.RotaSchedule, kind RotaEventKind) {
	s.mu.Lock()
	s.current = schedule
	s.mu.Unlock()

	if s.cache != nil && schedule != nil {
		if payload, err := json.Marshal(schedule); err == nil {
			if err := s.cache.Set(ctx, currentRotaCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache current rota", zap.Error(err))
			}
		}
	}
	if schedule != nil {
		s.notify(RotaEvent{Kind: kind, ScheduleID: schedule.ID, PeriodID: schedule.PeriodID, At: s.now().UTC()})
	}
}

// RefreshRoster reloads the active roster into the coordinator.
func (s *RotaService) RefreshRoster(ctx context.Context) error {
	roster, err := s.roster.ListActive(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	s.mu.Lock()
	s.rosterCache = roster
	s.mu.Unlock()
	return nil
}

// Refresh loads the newest published schedule for a period from storage and
// installs it as current. Storage is the source of truth; the redis mirror
// only serves reads.
func (s *RotaService) Refresh(ctx context.Context, periodID string) (*models.RotaSchedule, error) {
	list, err := s.schedules.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	var latest *models.RotaSchedule
	for i := range list {
		if list[i].Status != models.RotaScheduleStatusPublished {
			continue
		}
		if latest == nil || list[i].Version > latest.Version {
			latest = &list[i]
		}
	}
	if latest == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no published schedule for period")
	}
	full, err := s.schedules.FindByID(ctx, latest.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rota schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	s.SetCurrent(ctx, full, RotaEventPublished)
	return full, nil
}

// Current returns the live schedule, preferring the in-process copy and
// falling back to the redis mirror.
func (s *RotaService) Current(ctx context.Context) (*dto.CurrentRotaView, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil && s.cache != nil {
		started := s.now()
		payload, err := s.cache.Get(ctx, currentRotaCacheKey).Bytes()
		switch {
		case err == nil:
			s.metrics.RecordCacheOperation(true, s.now().Sub(started))
			var cached models.RotaSchedule
			if jsonErr := json.Unmarshal(payload, &cached); jsonErr == nil {
				current = &cached
				s.mu.Lock()
				s.current = current
				s.mu.Unlock()
			}
		case errors.Is(err, redis.Nil):
			s.metrics.RecordCacheOperation(false, s.now().Sub(started))
		default:
			s.logger.Warn("failed to read rota cache", zap.Error(err))
		}
	}
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no rota is currently published")
	}
	return &dto.CurrentRotaView{Schedule: current, Unfilled: len(current.UnfilledSlots())}, nil
}

// MyAssignments returns the user's active assignments in the live schedule,
// ordered by date.
func (s *RotaService) MyAssignments(ctx context.Context, staffID string) (*dto.MyRotaView, error) {
	view, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	schedule := view.Schedule
	var mine []models.ShiftAssignment
	for _, a := range schedule.Assignments {
		if a.Active && a.UserID == staffID {
			mine = append(mine, a)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].Date.Equal(mine[j].Date) {
			return mine[i].Date.Before(mine[j].Date)
		}
		return mine[i].ShiftType < mine[j].ShiftType
	})
	return &dto.MyRotaView{
		UserID:      staffID,
		ScheduleID:  schedule.ID,
		PeriodID:    schedule.PeriodID,
		Assignments: mine,
	}, nil
}

// NextShift returns the user's next upcoming assignment, with its concrete
// start and end times derived from the shift type.
func (s *RotaService) NextShift(ctx context.Context, staffID string) (*dto.NextShiftView, error) {
	mine, err := s.MyAssignments(ctx, staffID)
	if err != nil {
		return nil, err
	}
	typeList, err := s.types.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift types")
	}
	typeMap := make(map[models.ShiftTypeCode]models.ShiftType, len(typeList))
	for _, st := range typeList {
		typeMap[st.Code] = st
	}

	nowUTC := s.now().UTC()
	view := &dto.NextShiftView{UserID: staffID}
	for i := range mine.Assignments {
		a := mine.Assignments[i]
		st, ok := typeMap[a.ShiftType]
		if !ok {
			continue
		}
		start := st.Start(a.Date)
		if start.Before(nowUTC) {
			continue
		}
		end := st.End(a.Date)
		view.Assignment = &mine.Assignments[i]
		view.StartsAt = &start
		view.EndsAt = &end
		break
	}
	return view, nil
}

// MyFairness reports the user's accrual against the current roster mean.
func (s *RotaService) MyFairness(ctx context.Context, staffID string) (*dto.MyFairnessView, error) {
	s.mu.RLock()
	roster := s.rosterCache
	s.mu.RUnlock()

	if len(roster) == 0 {
		loaded, err := s.roster.ListActive(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		roster = loaded
		s.mu.Lock()
		s.rosterCache = loaded
		s.mu.Unlock()
	}
	if len(roster) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "roster is empty")
	}

	var sum float64
	var me *models.RotaUser
	for i := range roster {
		sum += roster[i].FairnessAccrual
		if roster[i].ID == staffID {
			me = &roster[i]
		}
	}
	if me == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not on roster")
	}
	mean := sum / float64(len(roster))
	return &dto.MyFairnessView{
		UserID:        staffID,
		Accrual:       me.FairnessAccrual,
		RosterMean:    mean,
		MeanDeviation: me.FairnessAccrual - mean,
	}, nil
}

// Invalidate drops the in-process and redis copies, forcing the next read
// to hit storage.
func (s *RotaService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.rosterCache = nil
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Del(ctx, currentRotaCacheKey).Err(); err != nil {
			s.logger.Warn("failed to invalidate rota cache", zap.Error(err))
		}
	}
}
