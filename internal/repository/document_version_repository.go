package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/membership-consent-api/internal/models"
)

const documentVersionColumns = `v.id, v.legal_document_id, v.version_number, v.commit_sha, v.content,
       v.effective_from, v.requires_reconsent, v.changes_summary, v.created_at`

// DocumentVersionRepository reads document versions. Versions are written only
// through LegalDocumentRepository.AppendVersion and are never updated or deleted.
type DocumentVersionRepository struct {
	db *sqlx.DB
}

// NewDocumentVersionRepository constructs the repository.
func NewDocumentVersionRepository(db *sqlx.DB) *DocumentVersionRepository {
	return &DocumentVersionRepository{db: db}
}

// GetByID fetches a version by identifier.
func (r *DocumentVersionRepository) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	query := `SELECT ` + documentVersionColumns + ` FROM document_versions v WHERE v.id = $1`
	var version models.DocumentVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByDocument returns the history of a document, newest first.
func (r *DocumentVersionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	query := `SELECT ` + documentVersionColumns + `
	FROM document_versions v
	WHERE v.legal_document_id = $1
	ORDER BY v.effective_from DESC, v.created_at DESC`
	var versions []models.DocumentVersion
	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return versions, nil
}

// ListRequired returns, for every active required document of scope, the version
// with the greatest effective_from not after at. One row per document.
func (r *DocumentVersionRepository) ListRequired(ctx context.Context, scopeID string, at time.Time) ([]models.RequiredVersion, error) {
	query := `SELECT DISTINCT ON (v.legal_document_id) ` + documentVersionColumns + `,
       d.name AS document_name, d.scope_id, d.grace_period_days
	FROM document_versions v
	JOIN legal_documents d ON d.id = v.legal_document_id
	WHERE d.is_required = TRUE AND d.is_active = TRUE AND d.scope_id = $1 AND v.effective_from <= $2
	ORDER BY v.legal_document_id, v.effective_from DESC, v.created_at DESC`
	var versions []models.RequiredVersion
	if err := r.db.SelectContext(ctx, &versions, query, scopeID, at); err != nil {
		return nil, fmt.Errorf("list required versions: %w", err)
	}
	return versions, nil
}

// ListCreatedBetween returns versions created in [from, to) with their document settings.
func (r *DocumentVersionRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.RequiredVersion, error) {
	query := `SELECT ` + documentVersionColumns + `,
       d.name AS document_name, d.scope_id, d.grace_period_days
	FROM document_versions v
	JOIN legal_documents d ON d.id = v.legal_document_id
	WHERE v.created_at >= $1 AND v.created_at < $2
	ORDER BY v.created_at ASC`
	var versions []models.RequiredVersion
	if err := r.db.SelectContext(ctx, &versions, query, from, to); err != nil {
		return nil, fmt.Errorf("list versions created between: %w", err)
	}
	return versions, nil
}
