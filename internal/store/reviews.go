package store

import (
	"context"
	"database/sql"
	"fmt"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/query"
)

// ReviewColumns maps external field names to review columns for the query
// builder.
var ReviewColumns = map[string]query.Column{
	"userId":    {Name: "user_id", Kind: query.KindText},
	"listingId": {Name: "listing_id", Kind: query.KindText},
	"rating":    {Name: "rating", Kind: query.KindNumeric},
	"reviewed":  {Name: "reviewed", Kind: query.KindBoolean},
	"createdAt": {Name: "created_at", Kind: query.KindText},
}

// CreateReviewTx inserts a review and replaces the listing's aggregate rating
// in one transaction.
func (s *Store) CreateReviewTx(ctx context.Context, review *models.Review, score float64, count int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO reviews (user_id, listing_id, rating, comment, reviewed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		review.UserID, review.ListingID, review.Rating, review.Comment, review.Reviewed).
		Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE listings SET rating_score = $1, rating_count = $2, updated_at = NOW() WHERE listing_id = $3",
		score, count, review.ListingID)
	if err != nil {
		return fmt.Errorf("failed to update listing rating: %w", err)
	}
	return tx.Commit()
}

// GetReviewByID retrieves a review.
func (s *Store) GetReviewByID(ctx context.Context, id int64) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review, "SELECT * FROM reviews WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "review not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// HasReview reports whether the user already reviewed the listing.
func (s *Store) HasReview(ctx context.Context, userID, listingID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM reviews WHERE user_id = $1 AND listing_id = $2)",
		userID, listingID)
	return exists, err
}

// HasOrderFor reports whether the user has any order against the listing.
func (s *Store) HasOrderFor(ctx context.Context, userID, listingID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE buyer_id = $1 AND listing_id = $2)",
		userID, listingID)
	return exists, err
}

// GetListingReviews returns every review for a listing, newest first.
func (s *Store) GetListingReviews(ctx context.Context, listingID string) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.SelectContext(ctx, &reviews,
		"SELECT * FROM reviews WHERE listing_id = $1 ORDER BY created_at DESC", listingID)
	return reviews, err
}

// UpdateReview updates a review's rating and comment.
func (s *Store) UpdateReview(ctx context.Context, review *models.Review) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reviews SET rating = $1, comment = $2, updated_at = NOW() WHERE id = $3",
		review.Rating, review.Comment, review.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "review not found: %d", review.ID)
	}
	return nil
}

// DeleteReview removes a review.
func (s *Store) DeleteReview(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "review not found: %d", id)
	}
	return nil
}
