package database

import (
	"log"

	"gorm.io/gorm"
)

// RunMigrations runs data migrations that AutoMigrate cannot express.
// Each step is safe to run more than once.
func RunMigrations(db *gorm.DB) error {
	if err := createPlaceTrendIndex(db); err != nil {
		return err
	}
	resetStuckSessions(db)
	return nil
}

// createPlaceTrendIndex adds the composite index used by the trending query
func createPlaceTrendIndex(db *gorm.DB) error {
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_places_rating_reviews ON places (rating DESC, review_count DESC)`).Error
}

// resetStuckSessions marks sessions left in synthesizing by a crashed process as failed
// so the user can retry instead of waiting on a request that no longer exists.
func resetStuckSessions(db *gorm.DB) {
	result := db.Exec(`
		UPDATE style_sessions
		SET state = 'failed', last_error = 'interrupted by server restart'
		WHERE state = 'synthesizing'
	`)
	if result.Error != nil {
		log.Printf("Warning: failed to reset stuck sessions: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		log.Printf("Marked %d interrupted sessions as failed", result.RowsAffected)
	}
}
