package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CanonicalLanguage is the language whose text is legally binding.
const CanonicalLanguage = "es"

// LocalizedContent maps a lowercase language code to the full document text.
type LocalizedContent map[string]string

// Canonical returns the legally binding text.
func (c LocalizedContent) Canonical() string {
	return c[CanonicalLanguage]
}

// Languages lists the available language codes, canonical first.
func (c LocalizedContent) Languages() []string {
	langs := make([]string, 0, len(c))
	for lang := range c {
		if lang != CanonicalLanguage {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	if _, ok := c[CanonicalLanguage]; ok {
		langs = append([]string{CanonicalLanguage}, langs...)
	}
	return langs
}

// Value marshals the content map for the jsonb column.
func (c LocalizedContent) Value() (driver.Value, error) {
	if c == nil {
		c = LocalizedContent{}
	}
	data, err := json.Marshal(map[string]string(c))
	if err != nil {
		return nil, fmt.Errorf("marshal localized content: %w", err)
	}
	return data, nil
}

// Scan unmarshals the jsonb column.
func (c *LocalizedContent) Scan(value interface{}) error {
	if value == nil {
		*c = LocalizedContent{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for LocalizedContent", value)
	}
	content := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &content); err != nil {
			return fmt.Errorf("unmarshal localized content: %w", err)
		}
	}
	*c = content
	return nil
}

// DocumentVersion is an immutable snapshot of a legal document.
type DocumentVersion struct {
	ID                string           `db:"id" json:"id"`
	LegalDocumentID   string           `db:"legal_document_id" json:"legal_document_id"`
	VersionNumber     string           `db:"version_number" json:"version_number"`
	CommitSHA         string           `db:"commit_sha" json:"commit_sha"`
	Content           LocalizedContent `db:"content" json:"content"`
	EffectiveFrom     time.Time        `db:"effective_from" json:"effective_from"`
	RequiresReConsent bool             `db:"requires_reconsent" json:"requires_reconsent"`
	ChangesSummary    *string          `db:"changes_summary" json:"changes_summary,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
}

// VersionLabel renders the display label of the n-th version of a document.
func VersionLabel(n int) string {
	return fmt.Sprintf("v%d.0", n)
}

// RequiredVersion is the current version of a required document together with
// the document settings needed to evaluate consent deadlines.
type RequiredVersion struct {
	DocumentVersion
	DocumentName    string `db:"document_name" json:"document_name"`
	ScopeID         string `db:"scope_id" json:"scope_id"`
	GracePeriodDays int    `db:"grace_period_days" json:"grace_period_days"`
}

// ConsentDeadline is the instant after which missing consent makes a member inactive.
func (v RequiredVersion) ConsentDeadline() time.Time {
	return v.EffectiveFrom.Add(time.Duration(v.GracePeriodDays) * 24 * time.Hour)
}

// ExpiredAt reports whether the grace period has lapsed at now. The deadline itself counts as lapsed.
func (v RequiredVersion) ExpiredAt(now time.Time) bool {
	return !v.ConsentDeadline().After(now)
}
