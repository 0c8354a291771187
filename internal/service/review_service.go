package service

import (
	"context"
	"net/url"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/query"
	"renthub/internal/store"
	"renthub/internal/util"

	"go.uber.org/zap"
)

// NextRating folds one new rating into a listing's aggregate.
func NextRating(score float64, count int64, rating int) (float64, int64) {
	newCount := count + 1
	newScore := (score*float64(count) + float64(rating)) / float64(newCount)
	return newScore, newCount
}

// ReviewService owns review creation and the listing rating aggregate.
type ReviewService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewReviewService(s *store.Store) *ReviewService {
	return &ReviewService{store: s, logger: util.GetLogger()}
}

// CreateReviewInput is the review submission request.
type CreateReviewInput struct {
	UserID    string `json:"userId" binding:"required"`
	ListingID string `json:"listingId" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"comment"`
}

// CreateReview records a review. Only a user who ordered the listing may
// review it, and only once; the listing aggregate updates in the same
// transaction.
func (s *ReviewService) CreateReview(ctx context.Context, input CreateReviewInput) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.CreateReview")
	defer span.End()

	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperr.Newf(apperr.KindValidation, "rating must be between 1 and 5, got %d", input.Rating)
	}

	listing, err := s.store.GetListingByListingID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}

	ordered, err := s.store.HasOrderFor(ctx, input.UserID, input.ListingID)
	if err != nil {
		return nil, err
	}
	if !ordered {
		return nil, apperr.Newf(apperr.KindValidation,
			"user %s has no order for listing %s", input.UserID, input.ListingID)
	}

	reviewed, err := s.store.HasReview(ctx, input.UserID, input.ListingID)
	if err != nil {
		return nil, err
	}
	if reviewed {
		return nil, apperr.New(apperr.KindConflict, "you have already reviewed this listing")
	}

	review := &models.Review{
		UserID:    input.UserID,
		ListingID: input.ListingID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		Reviewed:  true,
	}

	score, count := NextRating(listing.RatingScore, listing.RatingCount, input.Rating)
	if err := s.store.CreateReviewTx(ctx, review, score, count); err != nil {
		return nil, err
	}

	s.logger.Info("review created",
		zap.String("user_id", review.UserID),
		zap.String("listing_id", review.ListingID),
		zap.Int("rating", review.Rating))
	return review, nil
}

// ListReviews lists reviews through the query builder.
func (s *ReviewService) ListReviews(ctx context.Context, params url.Values) ([]models.Review, query.Meta, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.ListReviews")
	defer span.End()

	b := query.New("reviews", store.ReviewColumns, params).
		Search("userId", "listingId").
		Filter().
		Sort().
		Paginate().
		Fields()

	start := time.Now()
	reviews := []models.Review{}
	meta, err := s.store.List(ctx, b, &reviews)
	util.ListQueryLatency.WithLabelValues("reviews").Observe(time.Since(start).Seconds())
	return reviews, meta, err
}

// GetListingReviews returns all reviews of one listing.
func (s *ReviewService) GetListingReviews(ctx context.Context, listingID string) ([]models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.GetListingReviews")
	defer span.End()

	if _, err := s.store.GetListingByListingID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.store.GetListingReviews(ctx, listingID)
}

// UpdateReviewInput carries the mutable review fields.
type UpdateReviewInput struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// UpdateReview edits a review; only its author may.
func (s *ReviewService) UpdateReview(ctx context.Context, id int64, userID string, input UpdateReviewInput) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.UpdateReview")
	defer span.End()

	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperr.Newf(apperr.KindValidation, "rating must be between 1 and 5, got %d", input.Rating)
	}

	review, err := s.store.GetReviewByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, apperr.New(apperr.KindValidation, "only the author can edit a review")
	}

	review.Rating = input.Rating
	review.Comment = input.Comment
	if err := s.store.UpdateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// DeleteReview removes a review; only its author may.
func (s *ReviewService) DeleteReview(ctx context.Context, id int64, userID string) error {
	ctx, span := util.StartSpan(ctx, "ReviewService.DeleteReview")
	defer span.End()

	review, err := s.store.GetReviewByID(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != userID {
		return apperr.New(apperr.KindValidation, "only the author can delete a review")
	}
	return s.store.DeleteReview(ctx, id)
}
