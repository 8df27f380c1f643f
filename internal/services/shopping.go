package services

import (
	"context"
	"errors"
	"strings"

	"github.com/pawtrip/backend/internal/providers"
)

// ProductSearcher is a shopping search backend
type ProductSearcher interface {
	Search(ctx context.Context, query string, page providers.Page) ([]providers.Product, int, error)
}

// ShoppingResult is one page of product matches for a suggested item
type ShoppingResult struct {
	Query    string              `json:"query"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	Products []providers.Product `json:"products"`
}

// ShoppingService looks up products for the search keywords produced by analysis
type ShoppingService struct {
	search ProductSearcher
}

// NewShoppingService wraps search; nil disables shopping
func NewShoppingService(search ProductSearcher) *ShoppingService {
	return &ShoppingService{search: search}
}

func (s *ShoppingService) IsEnabled() bool {
	return s != nil && s.search != nil
}

// Search returns products for query
func (s *ShoppingService) Search(ctx context.Context, query string, page providers.Page) (*ShoppingResult, error) {
	if !s.IsEnabled() {
		return nil, ErrServiceDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "q", Reason: "query is required"}
	}
	page = page.Normalize(maxPageSize)

	products, total, err := s.search.Search(ctx, query, page)
	if err != nil {
		fetchErr := &ProviderFetchError{Provider: "naver_shopping", Err: err}
		var statusErr *providers.StatusError
		if errors.As(err, &statusErr) {
			fetchErr.StatusCode = statusErr.StatusCode
		}
		infoLog("Shopping search %q failed: %v", query, err)
		return nil, fetchErr
	}
	if products == nil {
		products = []providers.Product{}
	}
	return &ShoppingResult{Query: query, Total: total, Page: page.Number, Products: products}, nil
}
