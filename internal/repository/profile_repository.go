package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/membership-consent-api/internal/models"
)

// ProfileRepository reads member profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID fetches a profile; sql.ErrNoRows when the user has none.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	const query = `SELECT user_id, display_name, is_suspended, created_at, updated_at FROM profiles WHERE user_id = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListByUserIDs returns the profiles that exist for userIDs keyed by user.
func (r *ProfileRepository) ListByUserIDs(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile)
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.Profile
	query := `SELECT user_id, display_name, is_suspended, created_at, updated_at FROM profiles WHERE user_id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	for _, row := range rows {
		result[row.UserID] = row
	}
	return result, nil
}
