package models

import "time"

// SyncOutcome classifies the result of syncing one document.
type SyncOutcome string

// Sync outcomes reported to administrators.
const (
	SyncOutcomeUpdated   SyncOutcome = "updated"
	SyncOutcomeUnchanged SyncOutcome = "unchanged"
	SyncOutcomeSkipped   SyncOutcome = "skipped"
	SyncOutcomeFailed    SyncOutcome = "failed"
)

// SyncResult describes what happened to one document during a sync.
type SyncResult struct {
	DocumentID    string           `json:"document_id"`
	DocumentName  string           `json:"document_name"`
	Outcome       SyncOutcome      `json:"outcome"`
	VersionNumber string           `json:"version_number,omitempty"`
	Message       string           `json:"message,omitempty"`
	Version       *DocumentVersion `json:"-"`
}

// SyncReport aggregates a SyncAll run.
type SyncReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Updated    []LegalDocument `json:"updated"`
	Results    []SyncResult    `json:"results"`
}

// Count returns how many results ended with the given outcome.
func (r SyncReport) Count(outcome SyncOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}
