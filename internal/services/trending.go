package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/repository"
)

const (
	defaultTrendingLimit = 20
	maxTrendingLimit     = 50
	minTrendingTTL       = time.Hour
	maxTrendingTTL       = 6 * time.Hour
	// staleWhileRevalidate lets a CDN keep serving an expired list while it refetches
	staleWhileRevalidate = 6 * time.Hour
)

// TrendingService serves the ranked place list from a short-lived in-process cache
type TrendingService struct {
	repo  repository.PlaceRepository
	cache *expirable.LRU[int, []models.Place]
	ttl   time.Duration
	group singleflight.Group
}

// NewTrendingService creates the service. ttl is clamped to [1h, 6h].
func NewTrendingService(repo repository.PlaceRepository, size int, ttl time.Duration) *TrendingService {
	if size <= 0 {
		size = 64
	}
	ttl = min(max(ttl, minTrendingTTL), maxTrendingTTL)
	return &TrendingService{
		repo:  repo,
		cache: expirable.NewLRU[int, []models.Place](size, nil, ttl),
		ttl:   ttl,
	}
}

// Top returns up to limit places ordered by trend score
func (s *TrendingService) Top(ctx context.Context, limit int) ([]models.Place, error) {
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	limit = min(limit, maxTrendingLimit)

	if places, ok := s.cache.Get(limit); ok {
		debugLog("Trending cache hit for limit %d", limit)
		return places, nil
	}

	v, err, _ := s.group.Do(strconv.Itoa(limit), func() (interface{}, error) {
		// Shared by every waiting request, so one disconnect must not fail the rest
		places, err := s.repo.Top(context.WithoutCancel(ctx), limit)
		if err != nil {
			return nil, fmt.Errorf("load trending places: %w", err)
		}
		if places == nil {
			places = []models.Place{}
		}
		s.cache.Add(limit, places)
		return places, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Place), nil
}

// Invalidate drops every cached list
func (s *TrendingService) Invalidate() {
	s.cache.Purge()
}

// CacheControl is the response header for trending lists
func (s *TrendingService) CacheControl() string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
		int(s.ttl.Seconds()), int(staleWhileRevalidate.Seconds()))
}
