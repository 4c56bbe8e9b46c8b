package models

import "time"

// ConsentRecord is the append-only fact that a user consented to a document version.
type ConsentRecord struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	DocumentVersionID string    `db:"document_version_id" json:"document_version_id"`
	ConsentedAt       time.Time `db:"consented_at" json:"consented_at"`
	IPAddress         string    `db:"ip_address" json:"ip_address"`
	UserAgent         string    `db:"user_agent" json:"user_agent"`
	ContentHash       string    `db:"content_hash" json:"content_hash"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// VersionSet is a set of document version ids.
type VersionSet map[string]struct{}

// Has reports membership.
func (s VersionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}
