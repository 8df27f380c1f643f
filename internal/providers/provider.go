package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pawtrip/backend/internal/metrics"
	"github.com/pawtrip/backend/internal/models"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	userAgent      = "PawTrip/1.0 (+https://pawtrip.app)"
)

// Page selects a slice of provider results. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to at least 1 and the size to [1, maxSize]
func (p Page) Normalize(maxSize int) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 10
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

// Offset is the zero-based index of the first result on the page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PlaceProvider searches one third-party source and normalizes its results
type PlaceProvider interface {
	Name() models.PlaceSource
	// Affiliate providers carry booking links and are listed before organic results
	Affiliate() bool
	Search(ctx context.Context, query string, page Page) ([]models.Place, error)
}

// StatusError is a non-2xx response from a provider
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Options are shared by every provider client
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Now               func() time.Time
}

// client performs throttled JSON calls for one provider
type client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time
}

func newClient(name string, opts Options) *client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}
	return &client{
		name:    name,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(limit, burst),
		timeout: opts.Timeout,
		now:     opts.Now,
	}
}

// doJSON sends req under the client's timeout and rate limit and decodes a 2xx body into out
func (c *client) doJSON(ctx context.Context, req *http.Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.name, "throttled").Inc()
		return fmt.Errorf("%s rate limit wait: %w", c.name, err)
	}

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ProviderRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ProviderRequestsTotal.WithLabelValues(c.name, outcome).Inc()
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.name, "error").Inc()
		return fmt.Errorf("%s read response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ProviderRequestsTotal.WithLabelValues(c.name, "status").Inc()
		return &StatusError{Provider: c.name, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.name, "decode").Inc()
		return fmt.Errorf("%s decode response: %w", c.name, err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(c.name, "success").Inc()
	return nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripTags removes HTML tags and unescapes entities, as Naver highlights matches with <b>
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

func shortHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

func rawJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
