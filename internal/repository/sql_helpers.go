package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error codes the repositories translate.
const (
	pgUniqueViolation = "23505"
	pgRaiseException  = "P0001"
)

// uniqueIDs drops blanks and duplicates while keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	return pqCode(err) == pgUniqueViolation
}

// IsImmutableViolation reports whether err was raised by an append-only trigger.
func IsImmutableViolation(err error) bool {
	return pqCode(err) == pgRaiseException
}
