package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/providers"
)

const (
	// jitterDegrees bounds the offset given to places without coordinates
	jitterDegrees = 0.005
	maxPageSize   = 20
)

// PlaceSink receives aggregated places for persistence. Enqueue must not block.
type PlaceSink interface {
	Enqueue(places []models.Place) bool
}

// AggregatorOptions configures a PlaceAggregator
type AggregatorOptions struct {
	DefaultLat float64
	DefaultLng float64
	// Rand returns a value in [0, 1); tests replace it
	Rand func() float64
}

// PlaceAggregator fans a query out to every configured provider and merges the results
type PlaceAggregator struct {
	providers []providers.PlaceProvider
	sink      PlaceSink
	opts      AggregatorOptions
}

// NewPlaceAggregator creates an aggregator. Provider order is the listing order for affiliates.
func NewPlaceAggregator(ps []providers.PlaceProvider, sink PlaceSink, opts AggregatorOptions) *PlaceAggregator {
	if opts.DefaultLat == 0 && opts.DefaultLng == 0 {
		opts.DefaultLat, opts.DefaultLng = 37.5665, 126.9780
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &PlaceAggregator{providers: ps, sink: sink, opts: opts}
}

// Enabled reports whether any provider is configured
func (a *PlaceAggregator) Enabled() bool {
	return len(a.providers) > 0
}

// Search returns merged results and queues them for persistence
func (a *PlaceAggregator) Search(ctx context.Context, query string, page providers.Page) ([]models.Place, error) {
	places, err := a.Fetch(ctx, query, page)
	if err != nil {
		return nil, err
	}
	if a.sink != nil && len(places) > 0 {
		a.sink.Enqueue(places)
	}
	return places, nil
}

// Fetch queries all providers in parallel. A failing provider contributes no
// results and never fails the call.
func (a *PlaceAggregator) Fetch(ctx context.Context, query string, page providers.Page) ([]models.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "q", Reason: "query is required"}
	}
	if !a.Enabled() {
		return []models.Place{}, nil
	}
	page = page.Normalize(maxPageSize)

	results := make([][]models.Place, len(a.providers))
	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			places, err := searchProvider(ctx, p, query, page)
			if err != nil {
				infoLog("Provider %s failed for %q after %v: %v", p.Name(), query, time.Since(start), err)
				return
			}
			debugLog("Provider %s returned %d places for %q", p.Name(), len(places), query)
			results[i] = places
		}()
	}
	wg.Wait()

	merged := a.merge(results)
	a.fillCoordinates(merged, results)
	return merged, nil
}

// searchProvider calls one provider, turning a panic into an error
func searchProvider(ctx context.Context, p providers.PlaceProvider, query string, page providers.Page) (places []models.Place, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return p.Search(ctx, query, page)
}

// merge lists affiliate results in provider order, then organic results with
// duplicate titles removed (first wins)
func (a *PlaceAggregator) merge(results [][]models.Place) []models.Place {
	merged := []models.Place{}
	seenIDs := map[string]bool{}

	for i, p := range a.providers {
		if !p.Affiliate() {
			continue
		}
		for _, place := range results[i] {
			if seenIDs[place.ID] {
				continue
			}
			seenIDs[place.ID] = true
			merged = append(merged, place)
		}
	}

	seenTitles := map[string]bool{}
	for i, p := range a.providers {
		if p.Affiliate() {
			continue
		}
		for _, place := range results[i] {
			key := NormalizeTitle(place.Title)
			if key == "" || seenTitles[key] || seenIDs[place.ID] {
				continue
			}
			seenTitles[key] = true
			seenIDs[place.ID] = true
			merged = append(merged, place)
		}
	}
	return merged
}

// NormalizeTitle strips markup, lowercases and keeps only letters and digits
func NormalizeTitle(title string) string {
	title = strings.ToLower(providers.StripTags(title))
	var sb strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// fillCoordinates places items without coordinates near the centroid of the
// first provider that returned any, or near the default center. No place ends up at (0,0).
func (a *PlaceAggregator) fillCoordinates(merged []models.Place, results [][]models.Place) {
	refLat, refLng := a.opts.DefaultLat, a.opts.DefaultLng
	for _, places := range results {
		if lat, lng, ok := centroid(places); ok {
			refLat, refLng = lat, lng
			break
		}
	}

	for i := range merged {
		if merged[i].HasCoords {
			continue
		}
		merged[i].Lat = refLat + (a.opts.Rand()*2-1)*jitterDegrees
		merged[i].Lng = refLng + (a.opts.Rand()*2-1)*jitterDegrees
		if merged[i].Lat == 0 && merged[i].Lng == 0 {
			merged[i].Lat, merged[i].Lng = a.opts.DefaultLat, a.opts.DefaultLng
		}
	}
}

func centroid(places []models.Place) (lat, lng float64, ok bool) {
	var n int
	for _, p := range places {
		if !p.HasCoords {
			continue
		}
		lat += p.Lat
		lng += p.Lng
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return lat / float64(n), lng / float64(n), true
}
