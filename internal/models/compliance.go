package models

import "time"

// NonCompliantMember lists the required versions a member has let lapse.
type NonCompliantMember struct {
	UserID          string   `json:"user_id"`
	DisplayName     string   `json:"display_name"`
	MissingVersions []string `json:"missing_versions"`
	MissingNames    []string `json:"missing_documents"`
}

// SweepSummary reports a compliance sweep run.
type SweepSummary struct {
	RunAt    time.Time `json:"run_at"`
	Lapsed   []string  `json:"lapsed_users"`
	Enqueued int       `json:"enqueued"`
	Failed   int       `json:"failed"`
}

// ComplianceDigest is the data handed to the notification gateway for the board digest.
type ComplianceDigest struct {
	Date              string            `json:"date"`
	NewVersions       []RequiredVersion `json:"new_versions"`
	NonCompliantCount int               `json:"non_compliant_count"`
}

// Empty reports whether the digest has nothing worth sending.
func (d ComplianceDigest) Empty() bool {
	return len(d.NewVersions) == 0 && d.NonCompliantCount == 0
}
