package store

import (
	"context"
	"database/sql"
	"fmt"

	"renthub/internal/apperr"
	"renthub/internal/models"
)

// RolePrefix returns the identifier prefix for a user role.
func RolePrefix(role string) string {
	switch role {
	case models.RoleAdmin:
		return "A"
	case models.RoleSeller:
		return "S"
	default:
		return "B"
	}
}

// CreateUser inserts a user, assigning its role-prefixed sequential id.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	id, err := s.NextID(ctx, RolePrefix(user.Role))
	if err != nil {
		return err
	}
	user.UserID = id

	query := `
		INSERT INTO users (user_id, name, email, phone, address, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRowxContext(ctx, query,
		user.UserID, user.Name, user.Email, user.Phone, user.Address,
		user.Role, user.Status).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUserID retrieves a user by its human-readable id.
func (s *Store) GetUserByUserID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "user not found: %s", userID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE email = $1", email)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "user not found: %s", email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserStatus sets a user's status (active/blocked).
func (s *Store) UpdateUserStatus(ctx context.Context, userID, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET status = $1, updated_at = NOW() WHERE user_id = $2",
		status, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "user not found: %s", userID)
	}
	return nil
}
