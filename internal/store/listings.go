package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/query"
)

// ListingColumns maps external field names to listing columns for the query
// builder. The serial primary key is deliberately unmapped.
var ListingColumns = map[string]query.Column{
	"listingId":    {Name: "listing_id", Kind: query.KindText},
	"title":        {Name: "title", Kind: query.KindText},
	"description":  {Name: "description", Kind: query.KindText},
	"price":        {Name: "price", Kind: query.KindNumeric},
	"category":     {Name: "category_id", Kind: query.KindIdentifier},
	"availability": {Name: "is_available", Kind: query.KindBoolean},
	"sellerId":     {Name: "seller_id", Kind: query.KindText},
	"discount":     {Name: "discount", Kind: query.KindNumeric},
	"ratingScore":  {Name: "rating_score", Kind: query.KindNumeric},
	"createdAt":    {Name: "created_at", Kind: query.KindText},
}

// CreateListing inserts a listing, assigning its sequential "L-" id.
func (s *Store) CreateListing(ctx context.Context, listing *models.Listing) error {
	id, err := s.NextID(ctx, "L")
	if err != nil {
		return err
	}
	listing.ListingID = id

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO listings (
			listing_id, title, category_id, description, price, images, seller_id,
			is_available, discount, discount_start_date, discount_end_date,
			is_discount_active, is_deleted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		listing.ListingID, listing.Title, listing.CategoryID, listing.Description,
		listing.Price, listing.Images, listing.SellerID, listing.IsAvailable,
		listing.Discount, listing.DiscountStartDate, listing.DiscountEndDate,
		listing.IsDiscountActive, listing.IsDeleted).
		Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetListingByListingID retrieves a non-deleted listing by its "L-" id.
func (s *Store) GetListingByListingID(ctx context.Context, listingID string) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.GetContext(ctx, &listing,
		"SELECT * FROM listings WHERE listing_id = $1 AND is_deleted = FALSE", listingID)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.KindNotFound, "listing not found: %s", listingID)
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// UpdateListing rewrites a listing's mutable fields.
func (s *Store) UpdateListing(ctx context.Context, listing *models.Listing) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET
			title = $1, category_id = $2, description = $3, price = $4, images = $5,
			updated_at = NOW()
		WHERE listing_id = $6 AND is_deleted = FALSE`,
		listing.Title, listing.CategoryID, listing.Description, listing.Price,
		listing.Images, listing.ListingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "listing not found: %s", listing.ListingID)
	}
	return nil
}

// SetListingAvailability sets the availability flag.
func (s *Store) SetListingAvailability(ctx context.Context, listingID string, available bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE listings SET is_available = $1, updated_at = NOW() WHERE listing_id = $2",
		available, listingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "listing not found: %s", listingID)
	}
	return nil
}

// UpdateListingDiscount persists a validated discount window.
func (s *Store) UpdateListingDiscount(ctx context.Context, listingID string, discount int, start, end sql.NullTime) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET
			discount = $1, discount_start_date = $2, discount_end_date = $3,
			updated_at = NOW()
		WHERE listing_id = $4 AND is_deleted = FALSE`,
		discount, start, end, listingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "listing not found: %s", listingID)
	}
	return nil
}

// MarkListingDeleted soft-deletes a listing.
func (s *Store) MarkListingDeleted(ctx context.Context, listingID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE listings SET is_deleted = TRUE, updated_at = NOW() WHERE listing_id = $1",
		listingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.KindNotFound, "listing not found: %s", listingID)
	}
	return nil
}

// HasPaidOrder reports whether a paid order exists against the listing.
func (s *Store) HasPaidOrder(ctx context.Context, listingID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE listing_id = $1 AND status = $2)",
		listingID, models.OrderStatusPaid)
	return exists, err
}

// UpdateListingRating replaces the aggregate review rating.
func (s *Store) UpdateListingRating(ctx context.Context, listingID string, score float64, count int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE listings SET rating_score = $1, rating_count = $2, updated_at = NOW() WHERE listing_id = $3",
		score, count, listingID)
	return err
}

// ActivateDueDiscounts turns on discounts whose window has opened. Returns the
// number of listings touched.
func (s *Store) ActivateDueDiscounts(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET is_discount_active = TRUE, updated_at = NOW()
		WHERE discount_start_date <= $1 AND is_discount_active = FALSE
		  AND discount > 0 AND is_deleted = FALSE`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireDueDiscounts zeroes and deactivates discounts whose window has closed.
func (s *Store) ExpireDueDiscounts(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET discount = 0, is_discount_active = FALSE, updated_at = NOW()
		WHERE discount_end_date <= $1 AND is_discount_active = TRUE`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
