package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oculohealth/rota-api/internal/models"
)

// SwapListingRepository persists swap listings. Eligible shift types are
// stored as a JSON array alongside the row.
type SwapListingRepository struct {
	db *sqlx.DB
}

// NewSwapListingRepository creates a new swap listing repository.
func NewSwapListingRepository(db *sqlx.DB) *SwapListingRepository {
	return &SwapListingRepository{db: db}
}

type swapListingRow struct {
	ID            string                   `db:"id"`
	AssignmentID  string                   `db:"assignment_id"`
	OwnerID       string                   `db:"owner_id"`
	EligibleTypes []byte                   `db:"eligible_types"`
	Status        models.SwapListingStatus `db:"status"`
	AcceptedBy    *string                  `db:"accepted_by"`
	ExpiresAt     time.Time                `db:"expires_at"`
	CreatedAt     time.Time                `db:"created_at"`
	ClosedAt      *time.Time               `db:"closed_at"`
}

func (row swapListingRow) toModel() (models.SwapListing, error) {
	listing := models.SwapListing{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		OwnerID:      row.OwnerID,
		Status:       row.Status,
		AcceptedBy:   row.AcceptedBy,
		ExpiresAt:    row.ExpiresAt,
		CreatedAt:    row.CreatedAt,
		ClosedAt:     row.ClosedAt,
	}
	if len(row.EligibleTypes) > 0 {
		if err := json.Unmarshal(row.EligibleTypes, &listing.EligibleTypes); err != nil {
			return listing, fmt.Errorf("decode eligible types for %s: %w", row.ID, err)
		}
	}
	return listing, nil
}

const swapListingColumns = `id, assignment_id, owner_id, eligible_types, status, accepted_by, expires_at, created_at, closed_at`

// Create inserts a new open listing.
func (r *SwapListingRepository) Create(ctx context.Context, listing *models.SwapListing) error {
	eligible, err := json.Marshal(listing.EligibleTypes)
	if err != nil {
		return fmt.Errorf("encode eligible types: %w", err)
	}
	const query = `INSERT INTO swap_listings (id, assignment_id, owner_id, eligible_types, status, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		listing.ID, listing.AssignmentID, listing.OwnerID, eligible, listing.Status,
		listing.ExpiresAt, listing.CreatedAt,
	); err != nil {
		return fmt.Errorf("create swap listing: %w", err)
	}
	return nil
}

// FindByID returns one listing.
func (r *SwapListingRepository) FindByID(ctx context.Context, id string) (*models.SwapListing, error) {
	query := fmt.Sprintf(`SELECT %s FROM swap_listings WHERE id = $1`, swapListingColumns)
	var row swapListingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	listing, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Close finalises a listing inside the caller's transaction.
func (r *SwapListingRepository) Close(ctx context.Context, exec sqlx.ExtContext, id string, status models.SwapListingStatus, acceptedBy *string, closedAt time.Time) error {
	const query = `UPDATE swap_listings SET status = $2, accepted_by = $3, closed_at = $4
        WHERE id = $1 AND status = 'OPEN'`
	res, err := exec.ExecContext(ctx, query, id, status, acceptedBy, closedAt)
	if err != nil {
		return fmt.Errorf("close swap listing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close swap listing: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("close swap listing: listing %s is not open", id)
	}
	return nil
}

// ListOpen returns open listings ordered by creation time.
func (r *SwapListingRepository) ListOpen(ctx context.Context) ([]models.SwapListing, error) {
	query := fmt.Sprintf(`SELECT %s FROM swap_listings WHERE status = 'OPEN' ORDER BY created_at`, swapListingColumns)
	var rows []swapListingRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list open swap listings: %w", err)
	}
	listings := make([]models.SwapListing, 0, len(rows))
	for _, row := range rows {
		listing, err := row.toModel()
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// ExpireOlderThan closes open listings whose expiry has passed.
func (r *SwapListingRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE swap_listings SET status = 'EXPIRED', closed_at = $1
        WHERE status = 'OPEN' AND expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire swap listings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire swap listings: %w", err)
	}
	return affected, nil
}
