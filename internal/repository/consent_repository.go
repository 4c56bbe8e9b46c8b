package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/membership-consent-api/internal/models"
)

const consentColumns = `id, user_id, document_version_id, consented_at, ip_address, user_agent, content_hash, created_at`

// ConsentRepository is the append-only consent ledger. It deliberately has no
// update or delete methods; the table triggers reject both as well.
type ConsentRepository struct {
	db *sqlx.DB
}

// NewConsentRepository constructs the repository.
func NewConsentRepository(db *sqlx.DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// Create appends a consent record. A record for the same (user, version) pair
// already present is left as is and created is false.
func (r *ConsentRepository) Create(ctx context.Context, record *models.ConsentRecord) (created bool, err error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.ConsentedAt.IsZero() {
		record.ConsentedAt = now
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	const query = `INSERT INTO consent_records
	(id, user_id, document_version_id, consented_at, ip_address, user_agent, content_hash, created_at)
	VALUES (:id, :user_id, :document_version_id, :consented_at, :ip_address, :user_agent, :content_hash, :created_at)
	ON CONFLICT (user_id, document_version_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return false, fmt.Errorf("create consent record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check consent insert rows: %w", err)
	}
	return rows == 1, nil
}

// GetByUserAndVersion fetches the consent of a user for one version.
func (r *ConsentRepository) GetByUserAndVersion(ctx context.Context, userID, versionID string) (*models.ConsentRecord, error) {
	query := `SELECT ` + consentColumns + ` FROM consent_records WHERE user_id = $1 AND document_version_id = $2`
	var record models.ConsentRecord
	if err := r.db.GetContext(ctx, &record, query, userID, versionID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByUser returns the consent history of a user, newest first.
func (r *ConsentRepository) ListByUser(ctx context.Context, userID string) ([]models.ConsentRecord, error) {
	query := `SELECT ` + consentColumns + ` FROM consent_records WHERE user_id = $1 ORDER BY consented_at DESC`
	var records []models.ConsentRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	return records, nil
}

// ConsentedVersionIDs returns the set of versions a user has consented to.
func (r *ConsentRepository) ConsentedVersionIDs(ctx context.Context, userID string) (models.VersionSet, error) {
	const query = `SELECT document_version_id FROM consent_records WHERE user_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list consented versions: %w", err)
	}
	set := make(models.VersionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

type userVersionRow struct {
	UserID            string `db:"user_id"`
	DocumentVersionID string `db:"document_version_id"`
}

// ConsentedVersionIDsByUsers maps each user to the versions they consented to.
// Users without any consent are absent from the map.
func (r *ConsentRepository) ConsentedVersionIDsByUsers(ctx context.Context, userIDs []string) (map[string]models.VersionSet, error) {
	result := make(map[string]models.VersionSet)
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return result, nil
	}
	var rows []userVersionRow
	query := `SELECT user_id, document_version_id FROM consent_records WHERE user_id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list consented versions by users: %w", err)
	}
	for _, row := range rows {
		set, ok := result[row.UserID]
		if !ok {
			set = make(models.VersionSet)
			result[row.UserID] = set
		}
		set[row.DocumentVersionID] = struct{}{}
	}
	return result, nil
}
