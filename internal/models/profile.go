package models

import "time"

// Profile holds the membership attributes of a user that gate eligibility.
type Profile struct {
	UserID      string    `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	IsSuspended bool      `db:"is_suspended" json:"is_suspended"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
