package service

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/query"
	"renthub/internal/redisclient"
	"renthub/internal/store"
	"renthub/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const availabilityCacheTTL = 10 * time.Minute

// EffectivePrice returns the price an order is charged: the listed price with
// the discount applied while its window is active.
func EffectivePrice(l *models.Listing) int64 {
	if l.IsDiscountActive && l.Discount > 0 {
		return l.Price - l.Price*int64(l.Discount)/100
	}
	return l.Price
}

// ValidateDiscount rejects out-of-range percentages and inverted windows.
func ValidateDiscount(pct int, start, end time.Time) error {
	if pct < 0 || pct > 100 {
		return apperr.Newf(apperr.KindValidation, "discount must be between 0 and 100, got %d", pct)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return apperr.New(apperr.KindValidation, "discount end date must not precede the start date")
	}
	return nil
}

// ListingService owns listing lifecycle and discovery.
type ListingService struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

func NewListingService(s *store.Store, cache *redisclient.Client) *ListingService {
	return &ListingService{store: s, cache: cache, logger: util.GetLogger()}
}

// invalidateStats drops the cached statistics rollup after a write that
// changes it.
func (s *ListingService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStats(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// CreateListingInput is the listing creation request.
type CreateListingInput struct {
	Title       string   `json:"title" binding:"required"`
	CategoryID  string   `json:"category" binding:"required"`
	Description string   `json:"description"`
	Price       int64    `json:"price" binding:"required"`
	Images      []string `json:"images"`
	SellerID    string   `json:"sellerId" binding:"required"`
}

// CreateListing creates an available listing under the given seller.
func (s *ListingService) CreateListing(ctx context.Context, input CreateListingInput) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.CreateListing")
	defer span.End()

	if input.Price <= 0 {
		return nil, apperr.New(apperr.KindValidation, "price must be positive")
	}

	categoryID, err := uuid.Parse(input.CategoryID)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "invalid category id: %s", input.CategoryID)
	}
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}

	seller, err := s.store.GetUserByUserID(ctx, input.SellerID)
	if err != nil {
		return nil, err
	}
	if seller.Role != models.RoleSeller {
		return nil, apperr.Newf(apperr.KindValidation, "user %s is not a seller", input.SellerID)
	}

	listing := &models.Listing{
		Title:       input.Title,
		CategoryID:  categoryID,
		Description: input.Description,
		Price:       input.Price,
		Images:      input.Images,
		SellerID:    seller.UserID,
		IsAvailable: true,
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logger.Info("listing created",
		zap.String("listing_id", listing.ListingID),
		zap.String("seller_id", listing.SellerID))
	return listing, nil
}

// GetListing retrieves one non-deleted listing.
func (s *ListingService) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.GetListing")
	defer span.End()
	return s.store.GetListingByListingID(ctx, listingID)
}

// ListListings lists non-deleted listings through the query builder.
func (s *ListingService) ListListings(ctx context.Context, params url.Values) ([]models.Listing, query.Meta, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.ListListings")
	defer span.End()

	b := query.New("listings", store.ListingColumns, params).
		Where("is_deleted = ?", false).
		Search("title", "description", "price", "category").
		Filter().
		Sort().
		Paginate().
		Fields()

	start := time.Now()
	listings := []models.Listing{}
	meta, err := s.store.List(ctx, b, &listings)
	util.ListQueryLatency.WithLabelValues("listings").Observe(time.Since(start).Seconds())
	return listings, meta, err
}

// ListSellerListings lists one seller's non-deleted listings.
func (s *ListingService) ListSellerListings(ctx context.Context, sellerID string, params url.Values) ([]models.Listing, query.Meta, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.ListSellerListings")
	defer span.End()

	b := query.New("listings", store.ListingColumns, params).
		Where("is_deleted = ?", false).
		Where("seller_id = ?", sellerID).
		Search("title", "description", "price").
		Filter().
		Sort().
		Paginate().
		Fields()

	start := time.Now()
	listings := []models.Listing{}
	meta, err := s.store.List(ctx, b, &listings)
	util.ListQueryLatency.WithLabelValues("listings").Observe(time.Since(start).Seconds())
	return listings, meta, err
}

// UpdateListingInput carries the mutable listing fields.
type UpdateListingInput struct {
	Title       string   `json:"title"`
	CategoryID  string   `json:"category"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Images      []string `json:"images"`
}

// UpdateListing rewrites a listing's content fields.
func (s *ListingService) UpdateListing(ctx context.Context, listingID string, input UpdateListingInput) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.UpdateListing")
	defer span.End()

	listing, err := s.store.GetListingByListingID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if input.Title != "" {
		listing.Title = input.Title
	}
	if input.Description != "" {
		listing.Description = input.Description
	}
	if input.Price > 0 {
		listing.Price = input.Price
	}
	if len(input.Images) > 0 {
		listing.Images = input.Images
	}
	if input.CategoryID != "" {
		categoryID, err := uuid.Parse(input.CategoryID)
		if err != nil {
			return nil, apperr.Newf(apperr.KindValidation, "invalid category id: %s", input.CategoryID)
		}
		if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
			return nil, err
		}
		listing.CategoryID = categoryID
	}

	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// SetAvailability toggles the availability flag. A listing with a paid order
// is rented out and cannot be toggled.
func (s *ListingService) SetAvailability(ctx context.Context, listingID string, available bool) error {
	ctx, span := util.StartSpan(ctx, "ListingService.SetAvailability")
	defer span.End()

	if _, err := s.store.GetListingByListingID(ctx, listingID); err != nil {
		return err
	}

	rented, err := s.store.HasPaidOrder(ctx, listingID)
	if err != nil {
		return err
	}
	if rented {
		return apperr.Newf(apperr.KindConflict, "listing %s is already rented", listingID)
	}

	if err := s.store.SetListingAvailability(ctx, listingID, available); err != nil {
		return err
	}

	if err := s.cache.SetListingAvailability(ctx, listingID, available, availabilityCacheTTL); err != nil {
		s.logger.Warn("failed to cache listing availability",
			zap.String("listing_id", listingID), zap.Error(err))
	}
	s.invalidateStats(ctx)
	return nil
}

// IsAvailable answers the availability question from cache when possible.
func (s *ListingService) IsAvailable(ctx context.Context, listingID string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.IsAvailable")
	defer span.End()

	available, cached, err := s.cache.GetListingAvailability(ctx, listingID)
	if err != nil {
		s.logger.Warn("availability cache read failed",
			zap.String("listing_id", listingID), zap.Error(err))
	} else if cached {
		return available, nil
	}

	listing, err := s.store.GetListingByListingID(ctx, listingID)
	if err != nil {
		return false, err
	}

	if err := s.cache.SetListingAvailability(ctx, listingID, listing.IsAvailable, availabilityCacheTTL); err != nil {
		s.logger.Warn("failed to cache listing availability",
			zap.String("listing_id", listingID), zap.Error(err))
	}
	return listing.IsAvailable, nil
}

// UpdateDiscountInput is the discount window request.
type UpdateDiscountInput struct {
	Discount  int        `json:"discount"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// UpdateDiscount validates and stores a discount window. A window that has
// already opened takes effect immediately; otherwise the sweeper activates it.
func (s *ListingService) UpdateDiscount(ctx context.Context, listingID string, input UpdateDiscountInput) error {
	ctx, span := util.StartSpan(ctx, "ListingService.UpdateDiscount")
	defer span.End()

	var start, end time.Time
	if input.StartDate != nil {
		start = *input.StartDate
	}
	if input.EndDate != nil {
		end = *input.EndDate
	}
	if err := ValidateDiscount(input.Discount, start, end); err != nil {
		return err
	}

	if _, err := s.store.GetListingByListingID(ctx, listingID); err != nil {
		return err
	}

	return s.store.UpdateListingDiscount(ctx, listingID, input.Discount,
		nullTime(input.StartDate), nullTime(input.EndDate))
}

// DeleteListing soft-deletes a listing so existing orders keep resolving it.
func (s *ListingService) DeleteListing(ctx context.Context, listingID string) error {
	ctx, span := util.StartSpan(ctx, "ListingService.DeleteListing")
	defer span.End()

	if err := s.store.MarkListingDeleted(ctx, listingID); err != nil {
		return err
	}
	if err := s.cache.InvalidateListingAvailability(ctx, listingID); err != nil {
		s.logger.Warn("failed to drop availability cache",
			zap.String("listing_id", listingID), zap.Error(err))
	}
	s.invalidateStats(ctx)
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
