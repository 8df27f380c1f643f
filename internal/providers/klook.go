package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pawtrip/backend/internal/models"
)

const (
	klookSearchPath = "/v3/affiliate/activities/search"
	klookMaxLimit   = 50
)

// Klook searches activities with the Klook affiliate API. Activities usually
// carry no coordinates; the aggregator places them near other results.
type Klook struct {
	affiliateID string
	apiKey      string
	baseURL     string
	client      *client
}

// NewKlook creates the activity adapter
func NewKlook(affiliateID, apiKey, baseURL string, opts Options) *Klook {
	return &Klook{
		affiliateID: affiliateID,
		apiKey:      apiKey,
		baseURL:     baseURL,
		client:      newClient("klook", opts),
	}
}

func (k *Klook) Name() models.PlaceSource { return models.SourceKlook }
func (k *Klook) Affiliate() bool          { return true }

type klookResponse struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Result struct {
		Total      int             `json:"total"`
		Activities []klookActivity `json:"activities"`
	} `json:"result"`
}

type klookActivity struct {
	ActivityID   int64    `json:"activity_id"`
	Title        string   `json:"title"`
	SubTitle     string   `json:"sub_title"`
	CityName     string   `json:"city_name"`
	CategoryName string   `json:"category_name"`
	ImageURL     string   `json:"image_url"`
	ReviewScore  float64  `json:"review_score"`
	ReviewCount  int      `json:"review_count"`
	DeepLink     string   `json:"deep_link"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// Search returns activities matching query
func (k *Klook) Search(ctx context.Context, query string, page Page) ([]models.Place, error) {
	page = page.Normalize(klookMaxLimit)

	params := url.Values{}
	params.Set("keyword", query)
	params.Set("page", strconv.Itoa(page.Number))
	params.Set("limit", strconv.Itoa(page.Size))
	params.Set("aid", k.affiliateID)
	params.Set("lang", "ko_KR")
	params.Set("currency", "KRW")

	endpoint := strings.TrimRight(k.baseURL, "/") + klookSearchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", k.apiKey)

	var resp klookResponse
	if err := k.client.doJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("klook error %s: %s", resp.Error.Code, resp.Error.Message)
	}

	now := k.client.now()
	places := make([]models.Place, 0, len(resp.Result.Activities))
	for _, a := range resp.Result.Activities {
		places = append(places, k.toPlace(a, now))
	}
	return places, nil
}

func (k *Klook) toPlace(a klookActivity, now time.Time) models.Place {
	category := a.CategoryName
	if category == "" {
		category = "activity"
	}
	place := models.Place{
		ID:          "klook:" + strconv.FormatInt(a.ActivityID, 10),
		Title:       strings.TrimSpace(a.Title),
		Address:     a.CityName,
		Category:    category,
		ImageURL:    a.ImageURL,
		Rating:      a.ReviewScore,
		ReviewCount: a.ReviewCount,
		Source:      models.SourceKlook,
		BookingURL:  k.bookingURL(a.DeepLink),
		Raw:         rawJSON(a),
		UpdatedAt:   now,
	}
	if a.Latitude != nil && a.Longitude != nil && (*a.Latitude != 0 || *a.Longitude != 0) {
		place.Lat, place.Lng, place.HasCoords = *a.Latitude, *a.Longitude, true
	}
	return place
}

// bookingURL makes sure the deep link carries our affiliate id
func (k *Klook) bookingURL(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	if q.Get("aid") == "" {
		q.Set("aid", k.affiliateID)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
