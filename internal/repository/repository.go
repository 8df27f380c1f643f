package repository

import (
	"context"
	"sort"

	"github.com/pawtrip/backend/internal/models"
)

// PlaceRepository persists aggregated places. Upserts are keyed by Place.ID and last write wins.
type PlaceRepository interface {
	Upsert(ctx context.Context, places []models.Place) (int, error)
	// Top returns the highest trending places by rating * log1p(reviewCount)
	Top(ctx context.Context, limit int) ([]models.Place, error)
	Count(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}

// candidatePool bounds how many places are scored for the trending list
const candidatePool = 500

// rankByTrend sorts places by trend score, best first, and keeps at most limit
func rankByTrend(places []models.Place, limit int) []models.Place {
	sort.SliceStable(places, func(i, j int) bool {
		si, sj := places[i].TrendScore(), places[j].TrendScore()
		if si != sj {
			return si > sj
		}
		return places[i].ID < places[j].ID
	})
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}
	return places
}
