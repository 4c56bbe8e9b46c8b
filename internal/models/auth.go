package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the coarse role carried in access tokens.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleBoard  UserRole = "BOARD"
	RoleMember UserRole = "MEMBER"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}
