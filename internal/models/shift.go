package models

import "time"

// ShiftTypeCode identifies a shift category.
type ShiftTypeCode string

const (
	ShiftDay     ShiftTypeCode = "DAY"
	ShiftNight   ShiftTypeCode = "NIGHT"
	ShiftWeekend ShiftTypeCode = "WEEKEND"
	ShiftOnCall  ShiftTypeCode = "ON_CALL"
)

// ShiftType is immutable reference data describing one shift category.
// FairnessWeight is the cost a single assignment of this type adds to a
// user's fairness accrual.
type ShiftType struct {
	Code           ShiftTypeCode `db:"code" json:"code"`
	Label          string        `db:"label" json:"label"`
	StartHour      int           `db:"start_hour" json:"start_hour"`
	DurationHours  int           `db:"duration_hours" json:"duration_hours"`
	MinTier        int           `db:"min_tier" json:"min_tier"`
	FairnessWeight float64       `db:"fairness_weight" json:"fairness_weight"`
}

// Start returns the wall-clock start of this shift type on the given date.
func (s ShiftType) Start(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), s.StartHour, 0, 0, 0, time.UTC)
}

// End returns the wall-clock end of this shift type on the given date.
func (s ShiftType) End(date time.Time) time.Time {
	return s.Start(date).Add(time.Duration(s.DurationHours) * time.Hour)
}

// ShiftRequirement is demand for staff on a date: input to generation,
// never mutated afterwards.
type ShiftRequirement struct {
	ID        string        `db:"id" json:"id"`
	PeriodID  string        `db:"period_id" json:"period_id"`
	Date      time.Time     `db:"shift_date" json:"date"`
	ShiftType ShiftTypeCode `db:"shift_type" json:"shift_type"`
	Headcount int           `db:"headcount" json:"headcount"`
	MinTier   int           `db:"min_tier" json:"min_tier"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// PreferenceLevel grades how much a user wants a particular date/shift.
type PreferenceLevel string

const (
	PrefStronglyPrefer PreferenceLevel = "STRONGLY_PREFER"
	PrefPrefer         PreferenceLevel = "PREFER"
	PrefNeutral        PreferenceLevel = "NEUTRAL"
	PrefAvoid          PreferenceLevel = "AVOID"
	PrefUnavailable    PreferenceLevel = "UNAVAILABLE"
)

// ValidPreferenceLevel reports whether the level is a known value.
func ValidPreferenceLevel(level PreferenceLevel) bool {
	switch level {
	case PrefStronglyPrefer, PrefPrefer, PrefNeutral, PrefAvoid, PrefUnavailable:
		return true
	}
	return false
}

// ShiftPreference is a user's stated preference for a date and shift type.
// Preferences freeze once the period's generation has run.
type ShiftPreference struct {
	ID        string          `db:"id" json:"id"`
	PeriodID  string          `db:"period_id" json:"period_id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Date      time.Time       `db:"shift_date" json:"date"`
	ShiftType ShiftTypeCode   `db:"shift_type" json:"shift_type"`
	Level     PreferenceLevel `db:"level" json:"level"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// DateKey renders a date in the canonical form used for booking sets and
// deterministic ordering.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
