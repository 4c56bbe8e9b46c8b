package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/membership-consent-api/internal/models"
)

// activeWindow is the validity predicate of a role assignment at bind parameter $n.
func activeWindow(n int) string {
	return fmt.Sprintf("valid_from <= $%d AND (valid_to IS NULL OR valid_to > $%d)", n, n)
}

// RoleAssignmentRepository reads role assignments. Assignments are managed elsewhere.
type RoleAssignmentRepository struct {
	db *sqlx.DB
}

// NewRoleAssignmentRepository constructs the repository.
func NewRoleAssignmentRepository(db *sqlx.DB) *RoleAssignmentRepository {
	return &RoleAssignmentRepository{db: db}
}

// HasActive reports whether the user holds any role at at.
func (r *RoleAssignmentRepository) HasActive(ctx context.Context, userID string, at time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM role_assignments WHERE user_id = $1 AND ` + activeWindow(2) + `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, at); err != nil {
		return false, fmt.Errorf("check active roles: %w", err)
	}
	return exists, nil
}

// ListActiveUserIDs returns every user holding at least one role at at.
func (r *RoleAssignmentRepository) ListActiveUserIDs(ctx context.Context, at time.Time) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM role_assignments WHERE ` + activeWindow(1) + ` ORDER BY user_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, at); err != nil {
		return nil, fmt.Errorf("list active role users: %w", err)
	}
	return ids, nil
}

// ListActiveUserIDsByRole returns the users holding roleName at at.
func (r *RoleAssignmentRepository) ListActiveUserIDsByRole(ctx context.Context, roleName string, at time.Time) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM role_assignments WHERE role_name = $1 AND ` + activeWindow(2) + ` ORDER BY user_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, roleName, at); err != nil {
		return nil, fmt.Errorf("list active users by role: %w", err)
	}
	return ids, nil
}

// ListActiveByUsers returns the assignments in force at at, grouped by user.
func (r *RoleAssignmentRepository) ListActiveByUsers(ctx context.Context, userIDs []string, at time.Time) (map[string][]models.RoleAssignment, error) {
	result := make(map[string][]models.RoleAssignment)
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT id, user_id, role_name, valid_from, valid_to, created_at
	FROM role_assignments
	WHERE ` + activeWindow(1) + ` AND user_id = ANY($2)`
	var rows []models.RoleAssignment
	if err := r.db.SelectContext(ctx, &rows, query, at, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list active roles by users: %w", err)
	}
	for _, row := range rows {
		result[row.UserID] = append(result[row.UserID], row)
	}
	return result, nil
}
