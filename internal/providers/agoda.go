package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pawtrip/backend/internal/models"
)

const (
	agodaSearchPath = "/affiliateservice/lt_v1"
	agodaMaxResult  = 30
)

// Agoda searches hotels with the Agoda affiliate long-tail search API.
// The API searches by city, so queries are matched against a configured city table.
type Agoda struct {
	siteID  string
	apiKey  string
	baseURL string
	cities  []agodaCity
	client  *client
}

type agodaCity struct {
	keyword string
	id      int
}

// NewAgoda creates the hotel adapter. cityIDs maps lowercase query keywords to Agoda city ids.
func NewAgoda(siteID, apiKey, baseURL string, cityIDs map[string]int, opts Options) *Agoda {
	cities := make([]agodaCity, 0, len(cityIDs))
	for k, id := range cityIDs {
		cities = append(cities, agodaCity{keyword: strings.ToLower(k), id: id})
	}
	// Longest keyword first so "jeju-si" wins over "jeju"
	sort.Slice(cities, func(i, j int) bool {
		if len(cities[i].keyword) != len(cities[j].keyword) {
			return len(cities[i].keyword) > len(cities[j].keyword)
		}
		return cities[i].keyword < cities[j].keyword
	})
	return &Agoda{
		siteID:  siteID,
		apiKey:  apiKey,
		baseURL: baseURL,
		cities:  cities,
		client:  newClient("agoda", opts),
	}
}

func (a *Agoda) Name() models.PlaceSource { return models.SourceAgoda }
func (a *Agoda) Affiliate() bool          { return true }

// cityFor returns the Agoda city id mentioned in query, or 0
func (a *Agoda) cityFor(query string) int {
	q := strings.ToLower(query)
	for _, c := range a.cities {
		if strings.Contains(q, c.keyword) {
			return c.id
		}
	}
	return 0
}

type agodaRequest struct {
	Criteria agodaCriteria `json:"criteria"`
}

type agodaCriteria struct {
	Additional   agodaAdditional `json:"additional"`
	CheckInDate  string          `json:"checkInDate"`
	CheckOutDate string          `json:"checkOutDate"`
	CityID       int             `json:"cityId"`
}

type agodaAdditional struct {
	Currency           string         `json:"currency"`
	DiscountOnly       bool           `json:"discountOnly"`
	Language           string         `json:"language"`
	MaxResult          int            `json:"maxResult"`
	MinimumReviewScore float64        `json:"minimumReviewScore"`
	MinimumStarRating  float64        `json:"minimumStarRating"`
	Occupancy          agodaOccupancy `json:"occupancy"`
	SortBy             string         `json:"sortBy"`
}

type agodaOccupancy struct {
	NumberOfAdult    int `json:"numberOfAdult"`
	NumberOfChildren int `json:"numberOfChildren"`
}

type agodaResponse struct {
	Results []agodaHotel `json:"results"`
	Error   *struct {
		ID      int    `json:"id"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type agodaHotel struct {
	HotelID     int64   `json:"hotelId"`
	HotelName   string  `json:"hotelName"`
	StarRating  float64 `json:"starRating"`
	ReviewScore float64 `json:"reviewScore"`
	ReviewCount int     `json:"reviewCount"`
	Currency    string  `json:"currency"`
	DailyRate   float64 `json:"dailyRate"`
	ImageURL    string  `json:"imageURL"`
	LandingURL  string  `json:"landingURL"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Search returns hotels in the city named by query. Queries without a known city return nothing.
func (a *Agoda) Search(ctx context.Context, query string, page Page) ([]models.Place, error) {
	cityID := a.cityFor(query)
	if cityID == 0 {
		log.Printf("[agoda] no city matched %q, skipping", query)
		return nil, nil
	}

	page = page.Normalize(agodaMaxResult)
	want := min(page.Offset()+page.Size, agodaMaxResult)
	if page.Offset() >= want {
		return nil, nil
	}

	now := a.client.now()
	checkIn := now.AddDate(0, 0, 1)
	body, err := json.Marshal(agodaRequest{Criteria: agodaCriteria{
		Additional: agodaAdditional{
			Currency:  "KRW",
			Language:  "ko-kr",
			MaxResult: want,
			Occupancy: agodaOccupancy{NumberOfAdult: 2},
			SortBy:    "Recommended",
		},
		CheckInDate:  checkIn.Format("2006-01-02"),
		CheckOutDate: checkIn.AddDate(0, 0, 1).Format("2006-01-02"),
		CityID:       cityID,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode agoda request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.baseURL, "/")+agodaSearchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", a.siteID+":"+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var resp agodaResponse
	if err := a.client.doJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("agoda error %d: %s", resp.Error.ID, resp.Error.Message)
	}

	hotels := resp.Results
	if page.Offset() >= len(hotels) {
		return nil, nil
	}
	hotels = hotels[page.Offset():min(len(hotels), page.Offset()+page.Size)]

	places := make([]models.Place, 0, len(hotels))
	for _, h := range hotels {
		places = append(places, h.toPlace(now))
	}
	return places, nil
}

func (h agodaHotel) toPlace(now time.Time) models.Place {
	place := models.Place{
		ID:          "agoda:" + strconv.FormatInt(h.HotelID, 10),
		Title:       strings.TrimSpace(h.HotelName),
		Category:    "hotel",
		ImageURL:    h.ImageURL,
		Rating:      h.ReviewScore / 2, // reviewScore is out of 10
		ReviewCount: h.ReviewCount,
		Source:      models.SourceAgoda,
		BookingURL:  h.LandingURL,
		Raw:         rawJSON(h),
		UpdatedAt:   now,
	}
	if h.Latitude != 0 || h.Longitude != 0 {
		place.Lat, place.Lng, place.HasCoords = h.Latitude, h.Longitude, true
	}
	return place
}
