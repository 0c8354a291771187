package store

import (
	"context"
	"database/sql"
	"fmt"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/query"

	"github.com/google/uuid"
)

// CategoryColumns maps external field names to category columns for the
// query builder.
var CategoryColumns = map[string]query.Column{
	"title":       {Name: "title", Kind: query.KindText},
	"description": {Name: "description", Kind: query.KindText},
	"createdAt":   {Name: "created_at", Kind: query.KindText},
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, cat *models.Category) error {
	if cat.ID == uuid.Nil {
		cat.ID = uuid.New()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO categories (id, title, image, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		cat.ID, cat.Title, cat.Image, cat.Description).
		Scan(&cat.CreatedAt, &cat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// GetCategory retrieves a category by id.
func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var cat models.Category
	err := s.db.GetContext(ctx, &cat, "SELECT * FROM categories WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "category not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// UpdateCategory updates a category's mutable fields.
func (s *Store) UpdateCategory(ctx context.Context, cat *models.Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET title = $1, image = $2, description = $3, updated_at = NOW()
		WHERE id = $4`,
		cat.Title, cat.Image, cat.Description, cat.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "category not found: %s", cat.ID)
	}
	return nil
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "category not found: %s", id)
	}
	return nil
}
