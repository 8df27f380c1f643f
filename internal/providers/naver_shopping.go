package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

const (
	naverShopPath       = "/v1/search/shop.json"
	naverShopMaxDisplay = 100
)

// Product is one shopping search result
type Product struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	ImageURL  string `json:"imageUrl"`
	LowPrice  int    `json:"lowPrice"`
	HighPrice int    `json:"highPrice,omitempty"`
	MallName  string `json:"mallName"`
	Brand     string `json:"brand,omitempty"`
	Category  string `json:"category"`
}

// NaverShopping searches products with the Naver shopping API
type NaverShopping struct {
	creds  naverCredentials
	client *client
}

// NewNaverShopping creates the shopping adapter. It shares credentials with local search.
func NewNaverShopping(clientID, clientSecret, baseURL string, opts Options) *NaverShopping {
	return &NaverShopping{
		creds:  naverCredentials{clientID: clientID, clientSecret: clientSecret, baseURL: baseURL},
		client: newClient("naver_shop", opts),
	}
}

type naverShopResponse struct {
	Total int             `json:"total"`
	Items []naverShopItem `json:"items"`
}

type naverShopItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Image     string `json:"image"`
	LPrice    string `json:"lprice"`
	HPrice    string `json:"hprice"`
	MallName  string `json:"mallName"`
	ProductID string `json:"productId"`
	Brand     string `json:"brand"`
	Category1 string `json:"category1"`
	Category2 string `json:"category2"`
	Category3 string `json:"category3"`
	Category4 string `json:"category4"`
}

// Search returns products matching query, most relevant first
func (n *NaverShopping) Search(ctx context.Context, query string, page Page) ([]Product, int, error) {
	page = page.Normalize(naverShopMaxDisplay)
	start := min(page.Offset()+1, naverMaxStart)

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(page.Size))
	params.Set("start", strconv.Itoa(start))
	params.Set("sort", "sim")

	req, err := n.creds.newRequest(ctx, naverShopPath, params)
	if err != nil {
		return nil, 0, err
	}

	var resp naverShopResponse
	if err := n.client.doJSON(ctx, req, &resp); err != nil {
		return nil, 0, err
	}

	products := make([]Product, 0, len(resp.Items))
	for _, item := range resp.Items {
		low, _ := strconv.Atoi(item.LPrice)
		high, _ := strconv.Atoi(item.HPrice)
		var categories []string
		for _, c := range []string{item.Category1, item.Category2, item.Category3, item.Category4} {
			if c != "" {
				categories = append(categories, c)
			}
		}
		products = append(products, Product{
			ID:        item.ProductID,
			Title:     StripTags(item.Title),
			Link:      item.Link,
			ImageURL:  item.Image,
			LowPrice:  low,
			HighPrice: high,
			MallName:  item.MallName,
			Brand:     item.Brand,
			Category:  strings.Join(categories, " > "),
		})
	}
	return products, resp.Total, nil
}
