package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oculohealth/rota-api/internal/models"
)

// RotaUserRepository handles roster member persistence. Qualifications are
// stored as a JSON array and decoded on read.
type RotaUserRepository struct {
	db *sqlx.DB
}

// NewRotaUserRepository creates a new roster repository.
func NewRotaUserRepository(db *sqlx.DB) *RotaUserRepository {
	return &RotaUserRepository{db: db}
}

const rotaUserColumns = `id, display_name, tier, qualifications, fairness_accrual, active, created_at, updated_at`

// ListActive returns all active roster members ordered by id.
func (r *RotaUserRepository) ListActive(ctx context.Context) ([]models.RotaUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM rota_users WHERE active = TRUE ORDER BY id`, rotaUserColumns)
	var users []models.RotaUser
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list active rota users: %w", err)
	}
	for i := range users {
		if err := decodeQualifications(&users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// FindByID returns one roster member.
func (r *RotaUserRepository) FindByID(ctx context.Context, id string) (*models.RotaUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM rota_users WHERE id = $1`, rotaUserColumns)
	var user models.RotaUser
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	if err := decodeQualifications(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new roster member.
func (r *RotaUserRepository) Create(ctx context.Context, user *models.RotaUser) error {
	const query = `INSERT INTO rota_users (id, display_name, tier, qualifications, fairness_accrual, active, created_at, updated_at)
        VALUES (:id, :display_name, :tier, :qualifications, :fairness_accrual, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create rota user: %w", err)
	}
	return nil
}

// Update writes name, tier and qualifications. Fairness accrual is managed
// exclusively by ApplyAccrualDeltas.
func (r *RotaUserRepository) Update(ctx context.Context, user *models.RotaUser) error {
	const query = `UPDATE rota_users
        SET display_name = :display_name, tier = :tier, qualifications = :qualifications, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update rota user: %w", err)
	}
	return nil
}

// Deactivate removes a member from future scheduling.
func (r *RotaUserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE rota_users SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate rota user: %w", err)
	}
	return nil
}

// ApplyAccrualDeltas adjusts fairness accruals inside the caller's
// transaction. Deltas are applied in sorted id order to keep lock ordering
// stable.
func (r *RotaUserRepository) ApplyAccrualDeltas(ctx context.Context, exec sqlx.ExtContext, deltas map[string]float64) error {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	const query = `UPDATE rota_users SET fairness_accrual = fairness_accrual + $2, updated_at = $3 WHERE id = $1`
	now := time.Now().UTC()
	for _, id := range ids {
		if deltas[id] == 0 {
			continue
		}
		if _, err := exec.ExecContext(ctx, query, id, deltas[id], now); err != nil {
			return fmt.Errorf("apply accrual delta for %s: %w", id, err)
		}
	}
	return nil
}

func decodeQualifications(user *models.RotaUser) error {
	if len(user.QualificationRaw) == 0 {
		user.Qualifications = nil
		return nil
	}
	if err := json.Unmarshal(user.QualificationRaw, &user.Qualifications); err != nil {
		return fmt.Errorf("decode qualifications for %s: %w", user.ID, err)
	}
	return nil
}
