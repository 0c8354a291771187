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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryService owns the listing category reference data.
type CategoryService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewCategoryService(s *store.Store) *CategoryService {
	return &CategoryService{store: s, logger: util.GetLogger()}
}

// CategoryInput is the category create/update request.
type CategoryInput struct {
	Title       string `json:"title" binding:"required"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

func (s *CategoryService) CreateCategory(ctx context.Context, input CategoryInput) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.CreateCategory")
	defer span.End()

	cat := &models.Category{
		Title:       input.Title,
		Image:       input.Image,
		Description: input.Description,
	}
	if err := s.store.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}

	s.logger.Info("category created", zap.String("id", cat.ID.String()), zap.String("title", cat.Title))
	return cat, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, rawID string) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.GetCategory")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "invalid category id: %s", rawID)
	}
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) ListCategories(ctx context.Context, params url.Values) ([]models.Category, query.Meta, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.ListCategories")
	defer span.End()

	b := query.New("categories", store.CategoryColumns, params).
		Search("title", "description").
		Filter().
		Sort().
		Paginate().
		Fields()

	start := time.Now()
	categories := []models.Category{}
	meta, err := s.store.List(ctx, b, &categories)
	util.ListQueryLatency.WithLabelValues("categories").Observe(time.Since(start).Seconds())
	return categories, meta, err
}

func (s *CategoryService) UpdateCategory(ctx context.Context, rawID string, input CategoryInput) (*models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CategoryService.UpdateCategory")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "invalid category id: %s", rawID)
	}

	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	cat.Title = input.Title
	if input.Image != "" {
		cat.Image = input.Image
	}
	if input.Description != "" {
		cat.Description = input.Description
	}
	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (s *CategoryService) DeleteCategory(ctx context.Context, rawID string) error {
	ctx, span := util.StartSpan(ctx, "CategoryService.DeleteCategory")
	defer span.End()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return apperr.Newf(apperr.KindValidation, "invalid category id: %s", rawID)
	}
	return s.store.DeleteCategory(ctx, id)
}
