// Package storage provides the object store that holds mirrored and generated images.
package storage

import (
	"context"
	"errors"
	"strings"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// ErrNotFound is returned by Get when no object exists at the key
var ErrNotFound = errors.New("object not found")

// ObjectStore is a bucket-scoped key/value store for binary objects with
// deterministic public URLs.
type ObjectStore interface {
	// Exists reports whether an object is stored at key
	Exists(ctx context.Context, key string) (bool, error)
	// Put stores data at key, overwriting any existing object
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the object bytes and content type
	Get(ctx context.Context, key string) ([]byte, string, error)
	// PublicURL derives the public URL for key without any network call
	PublicURL(key string) string
	// IsOwnURL reports whether rawURL already points into this store
	IsOwnURL(rawURL string) bool
}

// hasURLPrefix checks rawURL against a public base URL, ignoring a trailing slash on base
func hasURLPrefix(rawURL, base string) bool {
	if base == "" || rawURL == "" {
		return false
	}
	base = strings.TrimRight(base, "/") + "/"
	return strings.HasPrefix(rawURL, base)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
