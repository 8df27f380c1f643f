package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawtrip_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pawtrip_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pawtrip_http_requests_in_flight",
		Help: "HTTP requests currently being served",
	})

	HTTPResponseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pawtrip_http_response_bytes",
		Help:    "Response body size by route; large values are usually inline images",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"path"})

	// Gemini
	GeminiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawtrip_gemini_requests_total",
		Help: "Gemini calls by purpose (analysis, synthesis, item) and outcome",
	}, []string{"purpose", "outcome"})

	GeminiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pawtrip_gemini_request_duration_seconds",
		Help:    "Gemini call latency by purpose",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
	}, []string{"purpose"})

	SynthesisVariantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawtrip_synthesis_variants_total",
		Help: "Synthesis variants by mode and outcome",
	}, []string{"mode", "outcome"})

	// Generation cache
	GenerationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawtrip_generation_cache_hits_total",
		Help: "Generation cache lookups that returned a stored asset",
	})

	GenerationCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawtrip_generation_cache_misses_total",
		Help: "Generation cache lookups that missed",
	})

	GenerationCacheStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawtrip_generation_cache_store_errors_total",
		Help: "Failed best-effort inserts into the generation cache",
	})

	// Mirror
	MirrorRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawtrip_mirror_requests_total",
		Help: "Mirror calls by outcome (noop, hit, uploaded, fetch_error, decode_error, upload_error)",
	}, []string{"outcome"})

	MirrorBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawtrip_mirror_bytes_total",
		Help: "Optimized bytes uploaded by the mirror",
	})

	// Providers
	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawtrip_provider_requests_total",
		Help: "Third-party search calls by provider and outcome",
	}, []string{"provider", "outcome"})

	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pawtrip_provider_request_duration_seconds",
		Help:    "Third-party search latency by provider",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// Rate limiting
	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawtrip_rate_limited_total",
		Help: "Requests rejected by a rate limiter",
	}, []string{"limiter"})

	RateLimitTrackedKeys = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pawtrip_rate_limit_tracked_keys",
		Help: "Client keys currently tracked per limiter",
	}, []string{"limiter"})

	// Places
	PlaceQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pawtrip_place_queue_depth",
		Help: "Place batches waiting for the sync worker",
	})

	PlacesPersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawtrip_places_persisted_total",
		Help: "Places upserted by the sync worker",
	}, []string{"source"})

	// Store sizes, refreshed by UpdateStoreMetrics
	StyleAssetsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pawtrip_style_assets",
		Help: "Rows in the generation cache",
	})

	MirroredImagesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pawtrip_mirrored_images",
		Help: "Images mirrored into own storage",
	})

	SessionsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pawtrip_style_sessions",
		Help: "Styling sessions by state",
	}, []string{"state"})
)
