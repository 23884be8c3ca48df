package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RotaScheduleStatus represents lifecycle phases for generated rotas.
type RotaScheduleStatus string

const (
	RotaScheduleStatusDraft     RotaScheduleStatus = "DRAFT"
	RotaScheduleStatusPublished RotaScheduleStatus = "PUBLISHED"
	RotaScheduleStatusArchived  RotaScheduleStatus = "ARCHIVED"
)

// ShiftAssignment is the atomic output unit of generation: one user working
// one shift type on one date.
type ShiftAssignment struct {
	ID         string        `db:"id" json:"id"`
	ScheduleID string        `db:"schedule_id" json:"schedule_id"`
	UserID     string        `db:"user_id" json:"user_id"`
	Date       time.Time     `db:"shift_date" json:"date"`
	ShiftType  ShiftTypeCode `db:"shift_type" json:"shift_type"`
	Active     bool          `db:"active" json:"active"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// GenerationLogKind distinguishes log entry classes.
type GenerationLogKind string

const (
	LogKindAssigned GenerationLogKind = "ASSIGNED"
	LogKindUnfilled GenerationLogKind = "UNFILLED"
)

// GenerationLogEntry records one engine decision for auditability: the
// chosen candidate, the runner-up, and their scores, or the reason a slot
// stayed unfilled.
type GenerationLogEntry struct {
	ID            string            `db:"id" json:"id"`
	ScheduleID    string            `db:"schedule_id" json:"schedule_id"`
	Seq           int               `db:"seq" json:"seq"`
	Kind          GenerationLogKind `db:"kind" json:"kind"`
	Date          time.Time         `db:"shift_date" json:"date"`
	ShiftType     ShiftTypeCode     `db:"shift_type" json:"shift_type"`
	ChosenUserID  *string           `db:"chosen_user_id" json:"chosen_user_id,omitempty"`
	ChosenScore   *float64          `db:"chosen_score" json:"chosen_score,omitempty"`
	RunnerUpID    *string           `db:"runner_up_id" json:"runner_up_id,omitempty"`
	RunnerUpScore *float64          `db:"runner_up_score" json:"runner_up_score,omitempty"`
	Detail        string            `db:"detail" json:"detail"`
}

// RotaSchedule is the full assignment set for a scheduling period, plus the
// generation log. Accepted swaps are the only post-generation mutation.
type RotaSchedule struct {
	ID          string             `db:"id" json:"id"`
	PeriodID    string             `db:"period_id" json:"period_id"`
	Version     int                `db:"version" json:"version"`
	Status      RotaScheduleStatus `db:"status" json:"status"`
	Meta        types.JSONText     `db:"meta" json:"meta,omitempty"`
	Assignments []ShiftAssignment  `db:"-" json:"assignments"`
	Log         []GenerationLogEntry `db:"-" json:"log,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// AssignmentByID finds an assignment in the schedule.
func (s *RotaSchedule) AssignmentByID(id string) *ShiftAssignment {
	for i := range s.Assignments {
		if s.Assignments[i].ID == id {
			return &s.Assignments[i]
		}
	}
	return nil
}

// UnfilledSlots returns the log entries for requirements no candidate could
// cover.
func (s *RotaSchedule) UnfilledSlots() []GenerationLogEntry {
	var unfilled []GenerationLogEntry
	for _, entry := range s.Log {
		if entry.Kind == LogKindUnfilled {
			unfilled = append(unfilled, entry)
		}
	}
	return unfilled
}

// RotaScheduleMeta is lightweight metadata for list views.
type RotaScheduleMeta struct {
	ID        string             `json:"id"`
	PeriodID  string             `json:"period_id"`
	Version   int                `json:"version"`
	Status    RotaScheduleStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}
