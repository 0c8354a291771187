package service

import (
	"context"
	"encoding/json"
	"time"

	"renthub/internal/models"
	"renthub/internal/redisclient"
	"renthub/internal/store"
	"renthub/internal/util"

	"go.uber.org/zap"
)

// GrowthPercent computes the relative change from previous to current in
// percent. A zero baseline reports 100 for any growth and 0 for none.
func GrowthPercent(current, previous int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (float64(current) - float64(previous)) / float64(previous) * 100
}

// Overview is the read-only statistics rollup served to dashboards.
type Overview struct {
	Users struct {
		All     store.RoleCounts `json:"all"`
		Admins  store.RoleCounts `json:"admins"`
		Sellers store.RoleCounts `json:"sellers"`
		Buyers  store.RoleCounts `json:"buyers"`
	} `json:"users"`
	Listings struct {
		Total     int64 `json:"total"`
		Available int64 `json:"available"`
	} `json:"listings"`
	OrdersByStatus map[string]int64 `json:"ordersByStatus"`
	Revenue        struct {
		Total         int64   `json:"total"`
		ThisMonth     int64   `json:"thisMonth"`
		MonthlyGrowth float64 `json:"monthlyGrowthPct"`
		ThisYear      int64   `json:"thisYear"`
		YearlyGrowth  float64 `json:"yearlyGrowthPct"`
	} `json:"revenue"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// StatsService aggregates the rollup and caches it in Redis.
type StatsService struct {
	store  *store.Store
	cache  *redisclient.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatsService(s *store.Store, cache *redisclient.Client, ttl time.Duration) *StatsService {
	return &StatsService{store: s, cache: cache, ttl: ttl, logger: util.GetLogger()}
}

// GetOverview serves the cached rollup when fresh, otherwise rebuilds it.
func (s *StatsService) GetOverview(ctx context.Context) (*Overview, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.GetOverview")
	defer span.End()

	if payload, err := s.cache.GetStats(ctx); err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	} else if payload != nil {
		var cached Overview
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
	}

	overview, err := s.buildOverview(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(overview); err == nil {
		if err := s.cache.SetStats(ctx, payload, s.ttl); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return overview, nil
}

func (s *StatsService) buildOverview(ctx context.Context) (*Overview, error) {
	var o Overview
	var err error

	if o.Users.All, err = s.store.CountUsers(ctx); err != nil {
		return nil, err
	}
	if o.Users.Admins, err = s.store.CountUsersByRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if o.Users.Sellers, err = s.store.CountUsersByRole(ctx, models.RoleSeller); err != nil {
		return nil, err
	}
	if o.Users.Buyers, err = s.store.CountUsersByRole(ctx, models.RoleBuyer); err != nil {
		return nil, err
	}

	if o.Listings.Total, o.Listings.Available, err = s.store.CountListings(ctx); err != nil {
		return nil, err
	}

	if o.OrdersByStatus, err = s.store.CountOrdersByStatus(ctx); err != nil {
		return nil, err
	}

	if o.Revenue.Total, err = s.store.TotalRevenue(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevMonthStart := monthStart.AddDate(0, -1, 0)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	prevYearStart := yearStart.AddDate(-1, 0, 0)

	thisMonth, err := s.store.RevenueBetween(ctx, monthStart, now)
	if err != nil {
		return nil, err
	}
	prevMonth, err := s.store.RevenueBetween(ctx, prevMonthStart, monthStart)
	if err != nil {
		return nil, err
	}
	thisYear, err := s.store.RevenueBetween(ctx, yearStart, now)
	if err != nil {
		return nil, err
	}
	prevYear, err := s.store.RevenueBetween(ctx, prevYearStart, yearStart)
	if err != nil {
		return nil, err
	}

	o.Revenue.ThisMonth = thisMonth
	o.Revenue.MonthlyGrowth = GrowthPercent(thisMonth, prevMonth)
	o.Revenue.ThisYear = thisYear
	o.Revenue.YearlyGrowth = GrowthPercent(thisYear, prevYear)
	o.GeneratedAt = now

	return &o, nil
}
