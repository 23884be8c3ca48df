package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RotaUser is a staff member eligible for scheduling. FairnessAccrual is the
// running weighted cost of shifts already worked; generation and accepted
// swaps are the only writers.
type RotaUser struct {
	ID               string         `db:"id" json:"id"`
	DisplayName      string         `db:"display_name" json:"display_name"`
	Tier             int            `db:"tier" json:"tier"`
	QualificationRaw types.JSONText `db:"qualifications" json:"-"`
	Qualifications   []ShiftTypeCode `db:"-" json:"qualifications"`
	FairnessAccrual  float64        `db:"fairness_accrual" json:"fairness_accrual"`
	Active           bool           `db:"active" json:"active"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Qualified reports whether the user may work the given shift type at the
// required tier.
func (u RotaUser) Qualified(code ShiftTypeCode, minTier int) bool {
	if u.Tier < minTier {
		return false
	}
	for _, q := range u.Qualifications {
		if q == code {
			return true
		}
	}
	return false
}
