package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/models"
)

// AssetMeta is optional metadata stored with a generated asset
type AssetMeta struct {
	ItemName string
	Model    string
}

// GenerationCacheService maps prompt hashes to previously generated images.
// A zero ttl keeps entries forever.
type GenerationCacheService struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewGenerationCacheService creates a new generation cache service
func NewGenerationCacheService(db *gorm.DB, ttl time.Duration) *GenerationCacheService {
	return &GenerationCacheService{db: db, ttl: ttl}
}

// Lookup returns the asset stored for promptHash. Expired entries are deleted and reported as misses.
func (s *GenerationCacheService) Lookup(ctx context.Context, promptHash string) (*models.StyleAsset, bool) {
	if s.db == nil {
		return nil, false
	}

	var asset models.StyleAsset
	err := s.db.WithContext(ctx).Where("prompt_hash = ?", promptHash).First(&asset).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			infoLog("Generation cache lookup failed for %s: %v", truncate(promptHash, 16), err)
		}
		metrics.GenerationCacheMisses.Inc()
		return nil, false
	}

	if asset.IsExpired() {
		s.db.WithContext(ctx).Delete(&asset)
		metrics.GenerationCacheMisses.Inc()
		debugLog("Generation cache entry expired for hash=%s", truncate(promptHash, 16))
		return nil, false
	}

	// Increment inline rather than spawning a goroutine per hit
	_ = s.db.WithContext(ctx).Model(&models.StyleAsset{}).
		Where("id = ?", asset.ID).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error

	metrics.GenerationCacheHits.Inc()
	debugLog("Generation cache hit for hash=%s", truncate(promptHash, 16))
	return &asset, true
}

// Store inserts a generated asset. It is a plain insert: a concurrent identical
// prompt that stored first makes this return a duplicate key error, which callers
// log and ignore since they already hold a usable image.
func (s *GenerationCacheService) Store(ctx context.Context, promptHash, prompt, imageURL string, meta AssetMeta) error {
	if s.db == nil {
		return nil
	}

	var expiresAt *time.Time
	if s.ttl > 0 {
		exp := time.Now().Add(s.ttl)
		expiresAt = &exp
	}

	var itemName *string
	if meta.ItemName != "" {
		itemName = &meta.ItemName
	}

	asset := models.StyleAsset{
		PromptHash: promptHash,
		Prompt:     prompt,
		ImageURL:   imageURL,
		ItemName:   itemName,
		Model:      meta.Model,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&asset).Error; err != nil {
		metrics.GenerationCacheStoreErrors.Inc()
		return err
	}
	return nil
}

// CacheStats summarizes the generation cache
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Expired int64 `json:"expired"`
}

// Stats returns cache statistics
func (s *GenerationCacheService) Stats() CacheStats {
	var stats CacheStats
	if s.db == nil {
		return stats
	}

	s.db.Model(&models.StyleAsset{}).Count(&stats.Entries)
	s.db.Model(&models.StyleAsset{}).Select("COALESCE(SUM(hit_count), 0)").Scan(&stats.Hits)
	s.db.Model(&models.StyleAsset{}).Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).Count(&stats.Expired)
	return stats
}

// Prune deletes expired entries and returns how many were removed
func (s *GenerationCacheService) Prune(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&models.StyleAsset{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		infoLog("Generation cache: pruned %d expired entries", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
