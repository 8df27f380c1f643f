package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/pawtrip/backend/internal/database"
	"github.com/pawtrip/backend/internal/models"
)

func samplePlaces() []models.Place {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return []models.Place{
		{ID: "naver:a", Title: "Few reviews, perfect", Rating: 5, ReviewCount: 2, Source: models.SourceNaver, Lat: 37.5, Lng: 127, UpdatedAt: now},
		{ID: "agoda:1", Title: "Popular hotel", Rating: 4.5, ReviewCount: 1200, Source: models.SourceAgoda, Lat: 33.5, Lng: 126.5, UpdatedAt: now},
		{ID: "klook:9", Title: "Solid tour", Rating: 4.0, ReviewCount: 300, Source: models.SourceKlook, Lat: 37.55, Lng: 126.99, UpdatedAt: now},
		{ID: "naver:b", Title: "Unrated", Rating: 0, ReviewCount: 0, Source: models.SourceNaver, UpdatedAt: now},
	}
}

// exerciseRepository runs the shared contract against any implementation
func exerciseRepository(t *testing.T, repo PlaceRepository) {
	ctx := context.Background()

	n, err := repo.Upsert(ctx, samplePlaces())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	top, err := repo.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "agoda:1", top[0].ID)
	assert.Equal(t, "klook:9", top[1].ID)

	// Last write wins
	updated := samplePlaces()[1]
	updated.Title = "Popular hotel (renovated)"
	updated.ReviewCount = 10
	_, err = repo.Upsert(ctx, []models.Place{updated})
	require.NoError(t, err)

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	top, err = repo.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3, "unrated places are not trending")
	assert.Equal(t, "klook:9", top[0].ID)
	for _, p := range top {
		if p.ID == "agoda:1" {
			assert.Equal(t, "Popular hotel (renovated)", p.Title)
		}
	}

	n, err = repo.Upsert(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormPlaceRepository(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "places.db"), logger.Silent)
	require.NoError(t, err)
	exerciseRepository(t, NewGormPlaceRepository(db))
}

func TestMongoPlaceRepository(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()
	dbName := fmt.Sprintf("pawtrip_test_%d", time.Now().UnixNano())

	repo, err := ConnectMongo(ctx, uri, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.client.Database(dbName).Drop(context.Background())
		_ = repo.Close(context.Background())
	})

	exerciseRepository(t, repo)
}

func TestRankByTrend(t *testing.T) {
	places := []models.Place{
		{ID: "b", Rating: 4, ReviewCount: 100},
		{ID: "a", Rating: 4, ReviewCount: 100},
		{ID: "c", Rating: 5, ReviewCount: 1000},
	}
	ranked := rankByTrend(places, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c", ranked[0].ID)
	assert.Equal(t, "a", ranked[1].ID, "ties break by id")
}
