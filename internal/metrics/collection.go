package metrics

import (
	"log"

	"gorm.io/gorm"

	"github.com/pawtrip/backend/internal/models"
)

// UpdateStoreMetrics queries the database and updates store size gauges.
// Call this periodically or after an admin prune.
func UpdateStoreMetrics(db *gorm.DB) {
	if db == nil {
		return
	}

	var assets int64
	if err := db.Model(&models.StyleAsset{}).Count(&assets).Error; err != nil {
		log.Printf("Metrics: failed to count style assets: %v", err)
	} else {
		StyleAssetsTotal.Set(float64(assets))
	}

	var mirrored int64
	if err := db.Model(&models.MirroredImage{}).Count(&mirrored).Error; err != nil {
		log.Printf("Metrics: failed to count mirrored images: %v", err)
	} else {
		MirroredImagesTotal.Set(float64(mirrored))
	}

	type stateCount struct {
		State string
		Count int64
	}
	var counts []stateCount
	if err := db.Model(&models.StyleSession{}).
		Select("state, COUNT(*) as count").
		Group("state").
		Scan(&counts).Error; err != nil {
		log.Printf("Metrics: failed to count sessions by state: %v", err)
	} else {
		SessionsByState.Reset()
		for _, sc := range counts {
			SessionsByState.WithLabelValues(sc.State).Set(float64(sc.Count))
		}
	}
}
