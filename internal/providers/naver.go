package providers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pawtrip/backend/internal/models"
)

const (
	naverLocalPath = "/v1/search/local.json"
	// The local search endpoint returns at most 5 items per call
	naverLocalMaxDisplay = 5
	naverMaxStart        = 1000
)

// naverCredentials signs requests to the Naver Open API
type naverCredentials struct {
	clientID     string
	clientSecret string
	baseURL      string
}

func (n naverCredentials) newRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	endpoint := strings.TrimRight(n.baseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", n.clientID)
	req.Header.Set("X-Naver-Client-Secret", n.clientSecret)
	return req, nil
}

// Naver searches places with the Naver local search API. Results are organic.
type Naver struct {
	creds  naverCredentials
	client *client
}

// NewNaver creates the local search adapter
func NewNaver(clientID, clientSecret, baseURL string, opts Options) *Naver {
	return &Naver{
		creds:  naverCredentials{clientID: clientID, clientSecret: clientSecret, baseURL: baseURL},
		client: newClient("naver", opts),
	}
}

func (n *Naver) Name() models.PlaceSource { return models.SourceNaver }
func (n *Naver) Affiliate() bool          { return false }

type naverLocalResponse struct {
	Total int              `json:"total"`
	Items []naverLocalItem `json:"items"`
}

type naverLocalItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Telephone   string `json:"telephone"`
	Address     string `json:"address"`
	RoadAddress string `json:"roadAddress"`
	MapX        string `json:"mapx"`
	MapY        string `json:"mapy"`
}

// Search queries Naver local search and converts coordinates to WGS84
func (n *Naver) Search(ctx context.Context, query string, page Page) ([]models.Place, error) {
	page = page.Normalize(naverLocalMaxDisplay)
	start := min(page.Offset()+1, naverMaxStart)

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(page.Size))
	params.Set("start", strconv.Itoa(start))
	params.Set("sort", "random")

	req, err := n.creds.newRequest(ctx, naverLocalPath, params)
	if err != nil {
		return nil, err
	}

	var resp naverLocalResponse
	if err := n.client.doJSON(ctx, req, &resp); err != nil {
		return nil, err
	}

	now := n.client.now()
	places := make([]models.Place, 0, len(resp.Items))
	for _, item := range resp.Items {
		places = append(places, item.toPlace(now))
	}
	return places, nil
}

func (item naverLocalItem) toPlace(now time.Time) models.Place {
	title := StripTags(item.Title)
	address := item.RoadAddress
	if address == "" {
		address = item.Address
	}

	place := models.Place{
		ID:         "naver:" + shortHash(title, address),
		Title:      title,
		Address:    address,
		Category:   StripTags(item.Category),
		Source:     models.SourceNaver,
		BookingURL: item.Link,
		Raw:        rawJSON(item),
		UpdatedAt:  now,
	}
	if lat, lng, ok := parseNaverCoords(item.MapX, item.MapY); ok {
		place.Lat, place.Lng, place.HasCoords = lat, lng, true
	} else if item.MapX != "" || item.MapY != "" {
		log.Printf("[naver] unusable coordinates for %q: mapx=%s mapy=%s", title, item.MapX, item.MapY)
	}
	return place
}

// parseNaverCoords reads mapx/mapy, which the API has returned in three forms over
// time: WGS84 degrees scaled by 1e7, KATEC metres, and plain degrees.
func parseNaverCoords(mapx, mapy string) (lat, lng float64, ok bool) {
	x, errX := strconv.ParseFloat(strings.TrimSpace(mapx), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(mapy), 64)
	if errX != nil || errY != nil || (x == 0 && y == 0) {
		return 0, 0, false
	}

	switch {
	case abs(x) > 1e8:
		lat, lng = y/1e7, x/1e7
	case abs(x) <= 360 && abs(y) <= 90:
		lat, lng = y, x
	default:
		lat, lng = KATECToWGS84(x, y)
	}
	if !inKorea(lat, lng) {
		return 0, 0, false
	}
	return lat, lng, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
