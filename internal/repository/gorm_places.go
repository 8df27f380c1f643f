package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawtrip/backend/internal/models"
)

// GormPlaceRepository stores places in the application's SQLite database
type GormPlaceRepository struct {
	db *gorm.DB
}

// NewGormPlaceRepository creates a repository on db
func NewGormPlaceRepository(db *gorm.DB) *GormPlaceRepository {
	return &GormPlaceRepository{db: db}
}

// Upsert inserts or replaces places by id
func (r *GormPlaceRepository) Upsert(ctx context.Context, places []models.Place) (int, error) {
	if len(places) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(places, 100)
	if result.Error != nil {
		return 0, fmt.Errorf("upsert places: %w", result.Error)
	}
	return len(places), nil
}

// Top scores the most reviewed rated places in Go; the SQLite build has no log function
func (r *GormPlaceRepository) Top(ctx context.Context, limit int) ([]models.Place, error) {
	var places []models.Place
	err := r.db.WithContext(ctx).
		Where("rating > 0 AND review_count > 0").
		Order("review_count DESC").
		Limit(candidatePool).
		Find(&places).Error
	if err != nil {
		return nil, fmt.Errorf("query trending places: %w", err)
	}
	return rankByTrend(places, limit), nil
}

// Count returns the number of stored places
func (r *GormPlaceRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Place{}).Count(&n).Error
	return n, err
}

// Close is a no-op; the database handle is owned by the caller
func (r *GormPlaceRepository) Close(context.Context) error {
	return nil
}
