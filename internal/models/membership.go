package models

import "sort"

// MembershipStatus is derived fresh on every evaluation and never stored.
type MembershipStatus string

// Membership statuses in evaluation order.
const (
	MembershipStatusNone      MembershipStatus = "None"
	MembershipStatusSuspended MembershipStatus = "Suspended"
	MembershipStatusInactive  MembershipStatus = "Inactive"
	MembershipStatusActive    MembershipStatus = "Active"
)

// UserSet is a set of user ids.
type UserSet map[string]struct{}

// Add inserts ids into the set.
func (s UserSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports membership.
func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order.
func (s UserSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MemberStatus is the status report for one user.
type MemberStatus struct {
	UserID          string           `json:"user_id"`
	ScopeID         string           `json:"scope_id"`
	Status          MembershipStatus `json:"status"`
	MissingVersions []string         `json:"missing_versions"`
}
