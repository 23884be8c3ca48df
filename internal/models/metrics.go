package models

import "time"

// UserFairnessMetric aggregates one user's weighted shift cost within a
// schedule and their deviation from the roster mean.
type UserFairnessMetric struct {
	UserID        string  `json:"user_id"`
	WeightedCost  float64 `json:"weighted_cost"`
	TotalAccrual  float64 `json:"total_accrual"`
	MeanDeviation float64 `json:"mean_deviation"`
	ShiftCount    int     `json:"shift_count"`
}

// FairnessMetrics summarises fairness across the roster for one schedule.
type FairnessMetrics struct {
	RosterMean   float64              `json:"roster_mean"`
	MaxDeviation float64              `json:"max_deviation"`
	PerUser      []UserFairnessMetric `json:"per_user"`
}

// UserPreferenceScore measures how well the schedule matched one user's
// stated preferences.
type UserPreferenceScore struct {
	UserID       string  `json:"user_id"`
	Matched      int     `json:"matched"`
	Against      int     `json:"against"`
	Score        float64 `json:"score"`
	ShiftCount   int     `json:"shift_count"`
	Satisfaction float64 `json:"satisfaction"`
}

// PreferenceMetrics summarises preference satisfaction for one schedule.
type PreferenceMetrics struct {
	MeanSatisfaction float64               `json:"mean_satisfaction"`
	PerUser          []UserPreferenceScore `json:"per_user"`
}

// SystemMetricsSnapshot aggregates process metrics for the ops endpoint.
type SystemMetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	GenerationsTotal         uint64    `json:"generations_total"`
	UnfilledSlotsTotal       uint64    `json:"unfilled_slots_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
