package models

import (
	"strings"
	"time"
)

// ScopeEveryone is the scope id of documents that apply to every member.
const ScopeEveryone = "00000000-0000-0000-0001-000000000001"

// LegalDocument is a governed document whose content is synced from the document source.
type LegalDocument struct {
	ID               string     `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	ScopeID          string     `db:"scope_id" json:"scope_id"`
	IsRequired       bool       `db:"is_required" json:"is_required"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	GracePeriodDays  int        `db:"grace_period_days" json:"grace_period_days"`
	SourceFolder     *string    `db:"source_folder" json:"source_folder,omitempty"`
	CurrentCommitSHA *string    `db:"current_commit_sha" json:"current_commit_sha,omitempty"`
	LastSyncedAt     *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Folder returns the configured source folder without surrounding slashes.
func (d LegalDocument) Folder() string {
	if d.SourceFolder == nil {
		return ""
	}
	return strings.Trim(strings.TrimSpace(*d.SourceFolder), "/")
}

// HasSourceFolder reports whether the document can be synced at all.
func (d LegalDocument) HasSourceFolder() bool {
	return d.Folder() != ""
}

// ContentIdentity returns the last synced content identity, empty before the first sync.
func (d LegalDocument) ContentIdentity() string {
	if d.CurrentCommitSHA == nil {
		return ""
	}
	return *d.CurrentCommitSHA
}

// LegalDocumentFilter narrows document listings.
type LegalDocumentFilter struct {
	ScopeID    string
	ActiveOnly bool
}
