package store

import (
	"context"
	"fmt"
	"time"

	"renthub/internal/models"
)

// RoleCounts holds total and active user counts for one role.
type RoleCounts struct {
	Total  int64 `db:"total" json:"total"`
	Active int64 `db:"active" json:"active"`
}

// CountUsersByRole returns total/active counts for a role.
func (s *Store) CountUsersByRole(ctx context.Context, role string) (RoleCounts, error) {
	var rc RoleCounts
	err := s.db.GetContext(ctx, &rc, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = $2) AS active
		FROM users WHERE role = $1`,
		role, models.UserStatusActive)
	if err != nil {
		return rc, fmt.Errorf("failed to count users for role %s: %w", role, err)
	}
	return rc, nil
}

// CountUsers returns total/active counts across all roles.
func (s *Store) CountUsers(ctx context.Context) (RoleCounts, error) {
	var rc RoleCounts
	err := s.db.GetContext(ctx, &rc, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = $1) AS active
		FROM users`, models.UserStatusActive)
	return rc, err
}

// CountListings returns total and available non-deleted listings.
func (s *Store) CountListings(ctx context.Context) (total, available int64, err error) {
	err = s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_available)
		FROM listings WHERE is_deleted = FALSE`).Scan(&total, &available)
	return total, available, err
}

// CountOrdersByStatus returns the order count per status.
func (s *Store) CountOrdersByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT status, COUNT(*) FROM orders GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// RevenueBetween sums paid-or-completed order totals created in [from, to).
func (s *Store) RevenueBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var revenue int64
	err := s.db.GetContext(ctx, &revenue, `
		SELECT COALESCE(SUM(total_price), 0) FROM orders
		WHERE status IN ($1, $2) AND created_at >= $3 AND created_at < $4`,
		models.OrderStatusPaid, models.OrderStatusCompleted, from, to)
	return revenue, err
}

// TotalRevenue sums paid-or-completed order totals over all time.
func (s *Store) TotalRevenue(ctx context.Context) (int64, error) {
	var revenue int64
	err := s.db.GetContext(ctx, &revenue, `
		SELECT COALESCE(SUM(total_price), 0) FROM orders
		WHERE status IN ($1, $2)`,
		models.OrderStatusPaid, models.OrderStatusCompleted)
	return revenue, err
}
