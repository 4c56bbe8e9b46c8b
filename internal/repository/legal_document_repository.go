package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/membership-consent-api/internal/models"
)

const legalDocumentColumns = `id, name, scope_id, is_required, is_active, grace_period_days,
       source_folder, current_commit_sha, last_synced_at, created_at, updated_at`

// Default change summaries used when the source has no commit message.
const (
	SummaryInitialVersion = "Initial version"
	SummaryUpdated        = "Updated from source"
)

// LegalDocumentRepository persists legal documents and applies synced versions.
type LegalDocumentRepository struct {
	db *sqlx.DB
}

// NewLegalDocumentRepository constructs the repository.
func NewLegalDocumentRepository(db *sqlx.DB) *LegalDocumentRepository {
	return &LegalDocumentRepository{db: db}
}

// Create inserts a new document.
func (r *LegalDocumentRepository) Create(ctx context.Context, doc *models.LegalDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO legal_documents
	(id, name, scope_id, is_required, is_active, grace_period_days, source_folder, current_commit_sha, last_synced_at, created_at, updated_at)
	VALUES (:id, :name, :scope_id, :is_required, :is_active, :grace_period_days, :source_folder, :current_commit_sha, :last_synced_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create legal document: %w", err)
	}
	return nil
}

// UpdateSettings persists administrator-editable columns. Sync metadata is left untouched.
func (r *LegalDocumentRepository) UpdateSettings(ctx context.Context, doc *models.LegalDocument) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE legal_documents
	SET name = :name, scope_id = :scope_id, is_required = :is_required, is_active = :is_active,
	    grace_period_days = :grace_period_days, source_folder = :source_folder, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("update legal document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check legal document update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *LegalDocumentRepository) GetByID(ctx context.Context, id string) (*models.LegalDocument, error) {
	query := `SELECT ` + legalDocumentColumns + ` FROM legal_documents WHERE id = $1`
	var doc models.LegalDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents matching the filter ordered by name.
func (r *LegalDocumentRepository) List(ctx context.Context, filter models.LegalDocumentFilter) ([]models.LegalDocument, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 1)
	builder.WriteString(`SELECT ` + legalDocumentColumns + ` FROM legal_documents`)

	conditions := make([]string, 0, 2)
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.ScopeID != "" {
		args = append(args, filter.ScopeID)
		conditions = append(conditions, fmt.Sprintf("scope_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY name ASC, id ASC")

	var docs []models.LegalDocument
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list legal documents: %w", err)
	}
	return docs, nil
}

// ListActive returns every active document.
func (r *LegalDocumentRepository) ListActive(ctx context.Context) ([]models.LegalDocument, error) {
	return r.List(ctx, models.LegalDocumentFilter{ActiveOnly: true})
}

// TouchSynced advances last_synced_at without creating a version.
func (r *LegalDocumentRepository) TouchSynced(ctx context.Context, id string, syncedAt time.Time) error {
	const query = `UPDATE legal_documents SET last_synced_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, syncedAt)
	if err != nil {
		return fmt.Errorf("touch legal document sync: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check legal document sync rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendVersion stores version and records its content identity on the owning
// document in one transaction. The document row is locked while the next label
// is assigned; when the stored identity already equals version.CommitSHA nothing
// is written and applied is false.
func (r *LegalDocumentRepository) AppendVersion(ctx context.Context, version *models.DocumentVersion, syncedAt time.Time) (applied bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin append version: %w", err)
	}
	defer func() {
		if err != nil || !applied {
			_ = tx.Rollback()
		}
	}()

	var current sql.NullString
	if err = tx.GetContext(ctx, &current, `SELECT current_commit_sha FROM legal_documents WHERE id = $1 FOR UPDATE`, version.LegalDocumentID); err != nil {
		if err == sql.ErrNoRows {
			return false, err
		}
		return false, fmt.Errorf("lock legal document: %w", err)
	}
	if current.Valid && current.String == version.CommitSHA {
		return false, nil
	}

	var existing int
	if err = tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM document_versions WHERE legal_document_id = $1`, version.LegalDocumentID); err != nil {
		return false, fmt.Errorf("count document versions: %w", err)
	}

	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.EffectiveFrom.IsZero() {
		version.EffectiveFrom = syncedAt
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = syncedAt
	}
	if version.Content == nil {
		version.Content = models.LocalizedContent{}
	}
	version.VersionNumber = models.VersionLabel(existing + 1)
	version.RequiresReConsent = existing > 0
	if version.ChangesSummary == nil || strings.TrimSpace(*version.ChangesSummary) == "" {
		summary := SummaryUpdated
		if existing == 0 {
			summary = SummaryInitialVersion
		}
		version.ChangesSummary = &summary
	}

	const insert = `INSERT INTO document_versions
	(id, legal_document_id, version_number, commit_sha, content, effective_from, requires_reconsent, changes_summary, created_at)
	VALUES (:id, :legal_document_id, :version_number, :commit_sha, :content, :effective_from, :requires_reconsent, :changes_summary, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, version); err != nil {
		return false, fmt.Errorf("insert document version: %w", err)
	}

	const update = `UPDATE legal_documents SET current_commit_sha = $2, last_synced_at = $3, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, update, version.LegalDocumentID, version.CommitSHA, syncedAt); err != nil {
		return false, fmt.Errorf("record document content identity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit append version: %w", err)
	}
	applied = true
	return true, nil
}
