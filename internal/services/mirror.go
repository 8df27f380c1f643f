package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/storage"
)

const (
	defaultMirrorTimeout  = 15 * time.Second
	defaultMirrorMaxBytes = 20 << 20
	mirrorUserAgent       = "PawTripMirror/1.0"
)

// MirrorOptions configures a MirrorService
type MirrorOptions struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	// Prefix is prepended to storage keys, e.g. "mirror/"
	Prefix      string
	Concurrency int
}

// MirrorService re-hosts external images on our own object store under
// sha256(sourceURL).webp. Every failure degrades to returning the source URL.
//
// Two processes mirroring the same URL may both upload; the transform is
// deterministic and Put overwrites, so they converge on identical objects.
// Within one process concurrent calls for a URL share a single fetch.
type MirrorService struct {
	store      storage.ObjectStore
	optimizer  *ImageOptimizer
	db         *gorm.DB
	httpClient *http.Client
	opts       MirrorOptions
	group      singleflight.Group
}

// NewMirrorService creates a mirror. db may be nil, in which case mirrored
// images are not recorded.
func NewMirrorService(store storage.ObjectStore, optimizer *ImageOptimizer, db *gorm.DB, opts MirrorOptions) *MirrorService {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultMirrorTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMirrorMaxBytes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if optimizer == nil {
		optimizer = NewImageOptimizer(0, 0)
	}
	return &MirrorService{
		store:      store,
		optimizer:  optimizer,
		db:         db,
		httpClient: &http.Client{Timeout: opts.FetchTimeout},
		opts:       opts,
	}
}

// StoragePath returns the object key for sourceURL
func (s *MirrorService) StoragePath(sourceURL string) string {
	return s.opts.Prefix + HashContent(sourceURL) + ".webp"
}

// Mirror returns a URL on our own storage for sourceURL, or sourceURL itself
// when it is empty, already ours, not http(s), or anything goes wrong.
func (s *MirrorService) Mirror(ctx context.Context, sourceURL string) string {
	if !s.shouldMirror(sourceURL) {
		metrics.MirrorRequestsTotal.WithLabelValues("noop").Inc()
		return sourceURL
	}

	path := s.StoragePath(sourceURL)
	// The flight is shared, so it must not end with the caller that started it
	ch := s.group.DoChan(path, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.opts.FetchTimeout)
		defer cancel()
		return s.mirror(flightCtx, sourceURL, path)
	})

	select {
	case <-ctx.Done():
		debugLog("Mirror caller gave up on %s: %v", path, ctx.Err())
		return sourceURL
	case res := <-ch:
		if res.Err != nil {
			infoLog("Mirror failed for %s, keeping original: %v", truncate(sourceURL, 120), res.Err)
			return sourceURL
		}
		if res.Shared {
			debugLog("Mirror shared in-flight result for %s", path)
		}
		return res.Val.(string)
	}
}

// MirrorAll mirrors urls with bounded concurrency. The result is index-aligned with urls.
func (s *MirrorService) MirrorAll(ctx context.Context, urls []string) []string {
	out := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = s.Mirror(gctx, u)
			return nil
		})
	}
	_ = g.Wait() // Mirror never returns an error
	return out
}

func (s *MirrorService) shouldMirror(sourceURL string) bool {
	if sourceURL == "" || s.store.IsOwnURL(sourceURL) {
		return false
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (s *MirrorService) mirror(ctx context.Context, sourceURL, path string) (string, error) {
	exists, err := s.store.Exists(ctx, path)
	if err != nil {
		// Carry on; a redundant upload is harmless
		debugLog("Mirror existence check failed for %s: %v", path, err)
	}
	if exists {
		metrics.MirrorRequestsTotal.WithLabelValues("hit").Inc()
		debugLog("Mirror hit %s", path)
		return s.store.PublicURL(path), nil
	}

	data, err := s.fetch(ctx, sourceURL)
	if err != nil {
		metrics.MirrorRequestsTotal.WithLabelValues("fetch_error").Inc()
		return "", err
	}

	optimized, err := s.optimizer.Optimize(data)
	if err != nil {
		metrics.MirrorRequestsTotal.WithLabelValues("decode_error").Inc()
		return "", err
	}

	if err := s.store.Put(ctx, path, optimized.Data, "image/webp"); err != nil {
		metrics.MirrorRequestsTotal.WithLabelValues("upload_error").Inc()
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	publicURL := s.store.PublicURL(path)
	metrics.MirrorRequestsTotal.WithLabelValues("uploaded").Inc()
	metrics.MirrorBytesTotal.Add(float64(len(optimized.Data)))
	debugLog("Mirrored %s -> %s (%d bytes, %dx%d)", truncate(sourceURL, 80), path, len(optimized.Data), optimized.Width, optimized.Height)

	s.record(sourceURL, path, publicURL, optimized)
	return publicURL, nil
}

func (s *MirrorService) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, &ProviderFetchError{Provider: "mirror-source", Err: err}
	}
	req.Header.Set("User-Agent", mirrorUserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderFetchError{Provider: "mirror-source", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderFetchError{Provider: "mirror-source", StatusCode: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); !acceptedSourceType(ct) {
		return nil, &ProviderFetchError{Provider: "mirror-source", Err: fmt.Errorf("unexpected content type %q", ct)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBytes+1))
	if err != nil {
		return nil, &ProviderFetchError{Provider: "mirror-source", Err: err}
	}
	if int64(len(data)) > s.opts.MaxBytes {
		return nil, &ProviderFetchError{Provider: "mirror-source", Err: fmt.Errorf("image exceeds %d bytes", s.opts.MaxBytes)}
	}
	return data, nil
}

// acceptedSourceType reports whether a source response may hold an image.
// Untyped bucket objects come back as octet-stream; the decoder has the final say.
func acceptedSourceType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "":
		return true
	case strings.HasPrefix(ct, "image/"):
		return true
	case strings.HasPrefix(ct, "application/octet-stream"), strings.HasPrefix(ct, "binary/octet-stream"):
		return true
	}
	return false
}

// record stores a MirroredImage row. Failures are logged only.
func (s *MirrorService) record(sourceURL, path, publicURL string, img *OptimizedImage) {
	if s.db == nil {
		return
	}
	row := models.MirroredImage{
		SourceHash:  HashContent(sourceURL),
		SourceURL:   sourceURL,
		StoragePath: path,
		PublicURL:   publicURL,
		Bytes:       len(img.Data),
		Width:       img.Width,
		Height:      img.Height,
		CreatedAt:   time.Now(),
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"public_url", "bytes", "width", "height"}),
	}).Create(&row).Error; err != nil {
		infoLog("Mirror: failed to record %s: %v", path, err)
	}
}

// MirrorStats summarizes recorded mirrors
type MirrorStats struct {
	Images int64 `json:"images"`
	Bytes  int64 `json:"bytes"`
}

// Stats returns totals from the mirrored_images table
func (s *MirrorService) Stats() MirrorStats {
	var stats MirrorStats
	if s.db == nil {
		return stats
	}
	s.db.Model(&models.MirroredImage{}).
		Select("COUNT(*) as images, COALESCE(SUM(bytes), 0) as bytes").
		Scan(&stats)
	return stats
}

// FetchImage downloads an image without storing it, for use as a model reference.
// It shares the mirror's timeout and size limit.
func (s *MirrorService) FetchImage(ctx context.Context, rawURL string) (ImageInput, error) {
	if !s.shouldMirror(rawURL) && !s.store.IsOwnURL(rawURL) {
		return ImageInput{}, &ValidationError{Field: "imageUrl", Reason: "must be an http(s) URL"}
	}
	data, err := s.fetch(ctx, rawURL)
	if err != nil {
		return ImageInput{}, err
	}
	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return ImageInput{}, &ValidationError{Field: "imageUrl", Reason: "unsupported image type " + mimeType}
	}
	return ImageInput{Data: data, MIMEType: mimeType}, nil
}
