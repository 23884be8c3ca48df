package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/oculohealth/rota-api/internal/dto"
	"github.com/oculohealth/rota-api/internal/models"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
)

// EngineWeights is the injectable scoring table for the greedy engine.
// The values are department configuration, not algorithm logic.
type EngineWeights struct {
	StronglyPrefer        float64
	Prefer                float64
	Neutral               float64
	Avoid                 float64
	FairnessPenaltyFactor float64
	// DefaultShiftWeights supply a fairness weight when a shift type row
	// carries none.
	DefaultShiftWeights map[models.ShiftTypeCode]float64
}

// DefaultEngineWeights returns the stock scoring table.
func DefaultEngineWeights() EngineWeights {
	return EngineWeights{
		StronglyPrefer:        2.0,
		Prefer:                1.0,
		Neutral:               0.0,
		Avoid:                 -2.0,
		FairnessPenaltyFactor: 0.5,
		DefaultShiftWeights: map[models.ShiftTypeCode]float64{
			models.ShiftDay:     1.0,
			models.ShiftNight:   2.5,
			models.ShiftWeekend: 2.0,
			models.ShiftOnCall:  1.5,
		},
	}
}

func (w EngineWeights) preferenceWeight(level models.PreferenceLevel) float64 {
	switch level {
	case models.PrefStronglyPrefer:
		return w.StronglyPrefer
	case models.PrefPrefer:
		return w.Prefer
	case models.PrefAvoid:
		return w.Avoid
	default:
		return w.Neutral
	}
}

func (w EngineWeights) shiftWeight(st models.ShiftType) float64 {
	if st.FairnessWeight > 0 {
		return st.FairnessWeight
	}
	if weight, ok := w.DefaultShiftWeights[st.Code]; ok {
		return weight
	}
	return 1.0
}

// engineInput is the full, immutable input to one generation run.
type engineInput struct {
	roster       []models.RotaUser
	requirements []models.ShiftRequirement
	preferences  []models.ShiftPreference
	shiftTypes   map[models.ShiftTypeCode]models.ShiftType
	weights      EngineWeights
}

// engineResult is the complete outcome: proposed assignments, the decision
// log, metric summaries and the accrual deltas to persist on save.
type engineResult struct {
	assignments   []dto.AssignmentProposal
	log           []dto.GenerationLogProposal
	unfilled      int
	fairness      models.FairnessMetrics
	preferences   models.PreferenceMetrics
	accrualDeltas map[string]float64
}

type prefKey struct {
	userID    string
	dateKey   string
	shiftType models.ShiftTypeCode
}

// engineState tracks mutable scheduling state during a run. Inputs are never
// mutated; the engine works on copies.
type engineState struct {
	accrual map[string]float64
	delta   map[string]float64
	booked  map[string]map[string]bool
	shifts  map[string]int
}

func newEngineState(roster []models.RotaUser) *engineState {
	st := &engineState{
		accrual: make(map[string]float64, len(roster)),
		delta:   make(map[string]float64, len(roster)),
		booked:  make(map[string]map[string]bool, len(roster)),
		shifts:  make(map[string]int, len(roster)),
	}
	for _, u := range roster {
		st.accrual[u.ID] = u.FairnessAccrual
	}
	return st
}

func (st *engineState) rosterMean() float64 {
	if len(st.accrual) == 0 {
		return 0
	}
	var sum float64
	for _, v := range st.accrual {
		sum += v
	}
	return sum / float64(len(st.accrual))
}

func (st *engineState) bookedOn(userID, dateKey string) bool {
	return st.booked[userID] != nil && st.booked[userID][dateKey]
}

func (st *engineState) book(userID, dateKey string, cost float64) {
	if st.booked[userID] == nil {
		st.booked[userID] = make(map[string]bool)
	}
	st.booked[userID][dateKey] = true
	st.accrual[userID] += cost
	st.delta[userID] += cost
	st.shifts[userID]++
}

func validateEngineInput(in engineInput) error {
	if len(in.roster) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "roster is empty")
	}
	if len(in.requirements) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no shift requirements for period")
	}
	for _, req := range in.requirements {
		if _, ok := in.shiftTypes[req.ShiftType]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("requirement %s references unknown shift type %s", req.ID, req.ShiftType))
		}
		if req.Headcount <= 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("requirement %s has non-positive headcount", req.ID))
		}
	}
	return nil
}

// buildRota runs the deterministic greedy pass. Requirements are processed
// by date, then shift fairness weight descending, then input index; within a
// requirement each seat takes the highest-scoring eligible candidate, ties
// broken by lowest running accrual, then lexicographic user id. Infeasible
// seats produce a single unfilled log entry and the run continues.
func buildRota(in engineInput) (*engineResult, error) {
	if err := validateEngineInput(in); err != nil {
		return nil, err
	}

	ordered := make([]models.ShiftRequirement, len(in.requirements))
	copy(ordered, in.requirements)
	index := make(map[string]int, len(ordered))
	for i, req := range in.requirements {
		index[req.ID] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := models.DateKey(ordered[i].Date), models.DateKey(ordered[j].Date)
		if di != dj {
			return di < dj
		}
		wi := in.weights.shiftWeight(in.shiftTypes[ordered[i].ShiftType])
		wj := in.weights.shiftWeight(in.shiftTypes[ordered[j].ShiftType])
		if wi != wj {
			return wi > wj
		}
		return index[ordered[i].ID] < index[ordered[j].ID]
	})

	roster := make([]models.RotaUser, len(in.roster))
	copy(roster, in.roster)
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })

	prefs := make(map[prefKey]models.PreferenceLevel, len(in.preferences))
	for _, p := range in.preferences {
		prefs[prefKey{p.UserID, models.DateKey(p.Date), p.ShiftType}] = p.Level
	}

	st := newEngineState(roster)
	result := &engineResult{}
	seq := 0

	for _, req := range ordered {
		shiftType := in.shiftTypes[req.ShiftType]
		cost := in.weights.shiftWeight(shiftType)
		dateKey := models.DateKey(req.Date)
		minTier := req.MinTier
		if shiftType.MinTier > minTier {
			minTier = shiftType.MinTier
		}

		for seat := 0; seat < req.Headcount; seat++ {
			mean := st.rosterMean()
			var best, runnerUp *scoredCandidate
			for i := range roster {
				u := roster[i]
				if !u.Qualified(req.ShiftType, minTier) {
					continue
				}
				if st.bookedOn(u.ID, dateKey) {
					continue
				}
				if prefs[prefKey{u.ID, dateKey, req.ShiftType}] == models.PrefUnavailable {
					continue
				}
				cand := &scoredCandidate{
					userID:  u.ID,
					accrual: st.accrual[u.ID],
					score:   in.weights.preferenceWeight(prefs[prefKey{u.ID, dateKey, req.ShiftType}]) - in.weights.FairnessPenaltyFactor*(st.accrual[u.ID]-mean),
				}
				if best == nil || cand.beats(best) {
					runnerUp = best
					best = cand
				} else if runnerUp == nil || cand.beats(runnerUp) {
					runnerUp = cand
				}
			}

			seq++
			if best == nil {
				remaining := req.Headcount - seat
				result.log = append(result.log, dto.GenerationLogProposal{
					Seq:       seq,
					Kind:      models.LogKindUnfilled,
					Date:      req.Date,
					ShiftType: req.ShiftType,
					Detail:    fmt.Sprintf("no eligible candidate; %d seat(s) unfilled", remaining),
				})
				result.unfilled += remaining
				break
			}

			st.book(best.userID, dateKey, cost)
			result.assignments = append(result.assignments, dto.AssignmentProposal{
				UserID:    best.userID,
				Date:      req.Date,
				ShiftType: req.ShiftType,
			})
			entry := dto.GenerationLogProposal{
				Seq:          seq,
				Kind:         models.LogKindAssigned,
				Date:         req.Date,
				ShiftType:    req.ShiftType,
				ChosenUserID: strPtr(best.userID),
				ChosenScore:  floatPtr(best.score),
				Detail:       fmt.Sprintf("assigned %s (score %.3f)", best.userID, best.score),
			}
			if runnerUp != nil {
				entry.RunnerUpID = strPtr(runnerUp.userID)
				entry.RunnerUpScore = floatPtr(runnerUp.score)
				entry.Detail = fmt.Sprintf("assigned %s (score %.3f), runner-up %s (score %.3f)", best.userID, best.score, runnerUp.userID, runnerUp.score)
			}
			result.log = append(result.log, entry)
		}
	}

	result.accrualDeltas = st.delta
	result.fairness = computeFairness(roster, st)
	result.preferences = computePreferenceMetrics(roster, result.assignments, prefs, in.weights, st)
	return result, nil
}

type scoredCandidate struct {
	userID  string
	accrual float64
	score   float64
}

// beats implements the engine tie-break contract: score descending, then
// running accrual ascending, then user id ascending.
func (c *scoredCandidate) beats(other *scoredCandidate) bool {
	if c.score != other.score {
		return c.score > other.score
	}
	if c.accrual != other.accrual {
		return c.accrual < other.accrual
	}
	return c.userID < other.userID
}

func computeFairness(roster []models.RotaUser, st *engineState) models.FairnessMetrics {
	mean := st.rosterMean()
	metrics := models.FairnessMetrics{RosterMean: mean}
	for _, u := range roster {
		deviation := st.accrual[u.ID] - mean
		if math.Abs(deviation) > metrics.MaxDeviation {
			metrics.MaxDeviation = math.Abs(deviation)
		}
		metrics.PerUser = append(metrics.PerUser, models.UserFairnessMetric{
			UserID:        u.ID,
			WeightedCost:  st.delta[u.ID],
			TotalAccrual:  st.accrual[u.ID],
			MeanDeviation: deviation,
			ShiftCount:    st.shifts[u.ID],
		})
	}
	return metrics
}

func computePreferenceMetrics(
	roster []models.RotaUser,
	assignments []dto.AssignmentProposal,
	prefs map[prefKey]models.PreferenceLevel,
	weights EngineWeights,
	st *engineState,
) models.PreferenceMetrics {
	perUser := make(map[string]*models.UserPreferenceScore, len(roster))
	for _, u := range roster {
		perUser[u.ID] = &models.UserPreferenceScore{UserID: u.ID}
	}

	for _, a := range assignments {
		score := perUser[a.UserID]
		if score == nil {
			continue
		}
		score.ShiftCount++
		level := prefs[prefKey{a.UserID, models.DateKey(a.Date), a.ShiftType}]
		score.Score += weights.preferenceWeight(level)
		switch level {
		case models.PrefStronglyPrefer, models.PrefPrefer:
			score.Matched++
		case models.PrefAvoid:
			score.Against++
		}
	}

	metrics := models.PreferenceMetrics{}
	var satisfactionSum float64
	var scored int
	for _, u := range roster {
		score := perUser[u.ID]
		if score.ShiftCount > 0 {
			score.Satisfaction = score.Score / float64(score.ShiftCount)
			satisfactionSum += score.Satisfaction
			scored++
		}
		metrics.PerUser = append(metrics.PerUser, *score)
	}
	if scored > 0 {
		metrics.MeanSatisfaction = satisfactionSum / float64(scored)
	}
	return metrics
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
