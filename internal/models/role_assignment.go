package models

import "time"

// RoleAssignment binds a user to a role over [ValidFrom, ValidTo).
type RoleAssignment struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	RoleName  string     `db:"role_name" json:"role_name"`
	ValidFrom time.Time  `db:"valid_from" json:"valid_from"`
	ValidTo   *time.Time `db:"valid_to" json:"valid_to,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the assignment is in force at t.
func (r RoleAssignment) ActiveAt(t time.Time) bool {
	if r.ValidFrom.After(t) {
		return false
	}
	return r.ValidTo == nil || r.ValidTo.After(t)
}
