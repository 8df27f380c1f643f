package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	Listen      string          `yaml:"listen"`
	DBPath      string          `yaml:"db_path"`
	CORSOrigins []string        `yaml:"cors_origins"`
	AdminKey    string          `yaml:"admin_key"`
	Gemini      GeminiConfig    `yaml:"gemini"`
	Storage     StorageConfig   `yaml:"storage"`
	Mirror      MirrorConfig    `yaml:"mirror"`
	Cache       CacheConfig     `yaml:"cache"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Providers   ProvidersConfig `yaml:"providers"`
	Places      PlacesConfig    `yaml:"places"`
}

// GeminiConfig configures the generative model client.
type GeminiConfig struct {
	APIKey         string        `yaml:"api_key"`
	AnalysisModel  string        `yaml:"analysis_model"`
	ImageModel     string        `yaml:"image_model"`
	Timeout        time.Duration `yaml:"timeout"`
	FittingTemp    float32       `yaml:"fitting_temperature"`
	PictorialTemp  float32       `yaml:"pictorial_temperature"`
	AnalysisTemp   float32       `yaml:"analysis_temperature"`
	MaxImageBytes  int           `yaml:"max_image_bytes"`
	MaxReferences  int           `yaml:"max_references"`
	VariantTimeout time.Duration `yaml:"variant_timeout"`
}

// StorageConfig selects and configures the object store.
// Driver is "s3" or "local" (default).
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PublicURL string `yaml:"public_url"`
	LocalDir  string `yaml:"local_dir"`
}

// MirrorConfig controls remote image mirroring.
type MirrorConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	MaxDimension int           `yaml:"max_dimension"`
	Quality      float32       `yaml:"quality"`
	Concurrency  int           `yaml:"concurrency"`
}

// CacheConfig controls the generation cache and trending cache.
type CacheConfig struct {
	GenerationTTL time.Duration `yaml:"generation_ttl"`
	TrendingTTL   time.Duration `yaml:"trending_ttl"`
	TrendingSize  int           `yaml:"trending_size"`
}

// RateLimitConfig holds per-endpoint limits. Each limit is requests per Interval per client.
type RateLimitConfig struct {
	Interval               time.Duration `yaml:"interval"`
	UniqueTokenPerInterval int           `yaml:"unique_token_per_interval"`
	Analysis               int           `yaml:"analysis"`
	Synthesis              int           `yaml:"synthesis"`
	ItemImage              int           `yaml:"item_image"`
	Search                 int           `yaml:"search"`
}

// ProvidersConfig holds third-party search credentials. Empty credentials disable a provider.
type ProvidersConfig struct {
	Timeout           time.Duration  `yaml:"timeout"`
	RequestsPerSecond float64        `yaml:"requests_per_second"`
	NaverClientID     string         `yaml:"naver_client_id"`
	NaverClientSecret string         `yaml:"naver_client_secret"`
	AgodaSiteID       string         `yaml:"agoda_site_id"`
	AgodaAPIKey       string         `yaml:"agoda_api_key"`
	AgodaCityIDs      map[string]int `yaml:"agoda_city_ids"`
	KlookAffiliateID  string         `yaml:"klook_affiliate_id"`
	KlookAPIKey       string         `yaml:"klook_api_key"`
	NaverBaseURL      string         `yaml:"naver_base_url"`
	AgodaBaseURL      string         `yaml:"agoda_base_url"`
	KlookBaseURL      string         `yaml:"klook_base_url"`
}

// PlacesConfig controls place persistence and the sync worker.
// Store is "sqlite" (default) or "mongo".
type PlacesConfig struct {
	Store         string        `yaml:"store"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	DefaultLat    float64       `yaml:"default_lat"`
	DefaultLng    float64       `yaml:"default_lng"`
	QueueSize     int           `yaml:"queue_size"`
	RefreshEvery  time.Duration `yaml:"refresh_every"`
	RefreshQuery  []string      `yaml:"refresh_queries"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:      ":8080",
		DBPath:      "./data/pawtrip.db",
		CORSOrigins: []string{"http://localhost:3000"},
		Gemini: GeminiConfig{
			AnalysisModel:  "gemini-2.5-flash",
			ImageModel:     "gemini-2.5-flash-image",
			Timeout:        60 * time.Second,
			AnalysisTemp:   0.2,
			FittingTemp:    0.4,
			PictorialTemp:  0.9,
			MaxImageBytes:  10 << 20,
			MaxReferences:  4,
			VariantTimeout: 90 * time.Second,
		},
		Storage: StorageConfig{
			Driver:   "local",
			Region:   "auto",
			LocalDir: "./data/media",
		},
		Mirror: MirrorConfig{
			FetchTimeout: 15 * time.Second,
			MaxBytes:     20 << 20,
			MaxDimension: 1600,
			Quality:      80,
			Concurrency:  4,
		},
		Cache: CacheConfig{
			TrendingTTL:  time.Hour,
			TrendingSize: 64,
		},
		RateLimit: RateLimitConfig{
			Interval:               time.Minute,
			UniqueTokenPerInterval: 500,
			Analysis:               20,
			Synthesis:              5,
			ItemImage:              10,
			Search:                 60,
		},
		Providers: ProvidersConfig{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			NaverBaseURL:      "https://openapi.naver.com",
			AgodaBaseURL:      "https://affiliateapi7643.agoda.com",
			KlookBaseURL:      "https://affiliate-api.klook.com",
			AgodaCityIDs: map[string]int{
				"seoul": 14690,
				"busan": 17172,
				"jeju":  16901,
				"서울":    14690,
				"부산":    17172,
				"제주":    16901,
			},
		},
		Places: PlacesConfig{
			Store:         "sqlite",
			MongoDatabase: "pawtrip",
			DefaultLat:    37.5665,
			DefaultLng:    126.9780,
			QueueSize:     64,
			RefreshEvery:  6 * time.Hour,
			RefreshQuery:  []string{"애견동반 카페", "애견동반 숙소"},
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file
// (with ${VAR} expansion), then .env and process environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PAWTRIP_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Missing .env is normal outside local dev
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Config: could not load .env: %v", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen = getEnvOrDefault("LISTEN_ADDR", c.Listen)
	if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + port
	}
	c.DBPath = getEnvOrDefault("DB_PATH", c.DBPath)
	c.AdminKey = getEnvOrDefault("ADMIN_KEY", c.AdminKey)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	c.Gemini.APIKey = getEnvOrDefault("GEMINI_API_KEY", getEnvOrDefault("GOOGLE_API_KEY", c.Gemini.APIKey))
	c.Gemini.AnalysisModel = getEnvOrDefault("GEMINI_ANALYSIS_MODEL", c.Gemini.AnalysisModel)
	c.Gemini.ImageModel = getEnvOrDefault("GEMINI_IMAGE_MODEL", c.Gemini.ImageModel)
	c.Gemini.Timeout = getEnvAsDurationOrDefault("GEMINI_TIMEOUT", c.Gemini.Timeout)
	c.Gemini.FittingTemp = float32(getEnvAsFloatOrDefault("GEMINI_FITTING_TEMPERATURE", float64(c.Gemini.FittingTemp)))
	c.Gemini.PictorialTemp = float32(getEnvAsFloatOrDefault("GEMINI_PICTORIAL_TEMPERATURE", float64(c.Gemini.PictorialTemp)))

	c.Storage.Driver = getEnvOrDefault("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Bucket = getEnvOrDefault("STORAGE_BUCKET", c.Storage.Bucket)
	c.Storage.Region = getEnvOrDefault("STORAGE_REGION", c.Storage.Region)
	c.Storage.Endpoint = getEnvOrDefault("STORAGE_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnvOrDefault("STORAGE_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnvOrDefault("STORAGE_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.PublicURL = getEnvOrDefault("STORAGE_PUBLIC_URL", c.Storage.PublicURL)
	c.Storage.LocalDir = getEnvOrDefault("STORAGE_LOCAL_DIR", c.Storage.LocalDir)

	c.Mirror.FetchTimeout = getEnvAsDurationOrDefault("MIRROR_FETCH_TIMEOUT", c.Mirror.FetchTimeout)
	c.Mirror.MaxBytes = int64(getEnvAsIntOrDefault("MIRROR_MAX_BYTES", int(c.Mirror.MaxBytes)))

	c.Cache.GenerationTTL = getEnvAsDurationOrDefault("GENERATION_CACHE_TTL", c.Cache.GenerationTTL)
	c.Cache.TrendingTTL = getEnvAsDurationOrDefault("TRENDING_TTL", c.Cache.TrendingTTL)

	c.RateLimit.Interval = getEnvAsDurationOrDefault("RATE_LIMIT_INTERVAL", c.RateLimit.Interval)
	c.RateLimit.Analysis = getEnvAsIntOrDefault("RATE_LIMIT_ANALYSIS", c.RateLimit.Analysis)
	c.RateLimit.Synthesis = getEnvAsIntOrDefault("RATE_LIMIT_SYNTHESIS", c.RateLimit.Synthesis)
	c.RateLimit.ItemImage = getEnvAsIntOrDefault("RATE_LIMIT_ITEM_IMAGE", c.RateLimit.ItemImage)
	c.RateLimit.Search = getEnvAsIntOrDefault("RATE_LIMIT_SEARCH", c.RateLimit.Search)

	c.Providers.Timeout = getEnvAsDurationOrDefault("PROVIDER_TIMEOUT", c.Providers.Timeout)
	c.Providers.NaverClientID = getEnvOrDefault("NAVER_CLIENT_ID", c.Providers.NaverClientID)
	c.Providers.NaverClientSecret = getEnvOrDefault("NAVER_CLIENT_SECRET", c.Providers.NaverClientSecret)
	c.Providers.AgodaSiteID = getEnvOrDefault("AGODA_SITE_ID", c.Providers.AgodaSiteID)
	c.Providers.AgodaAPIKey = getEnvOrDefault("AGODA_API_KEY", c.Providers.AgodaAPIKey)
	c.Providers.KlookAffiliateID = getEnvOrDefault("KLOOK_AFFILIATE_ID", c.Providers.KlookAffiliateID)
	c.Providers.KlookAPIKey = getEnvOrDefault("KLOOK_API_KEY", c.Providers.KlookAPIKey)

	c.Places.Store = getEnvOrDefault("PLACE_STORE", c.Places.Store)
	c.Places.MongoURI = getEnvOrDefault("MONGODB_URI", c.Places.MongoURI)
	c.Places.MongoDatabase = getEnvOrDefault("MONGODB_DATABASE", c.Places.MongoDatabase)
}

// Validate checks the configuration for values the server cannot run with.
// Missing provider credentials are not errors; those providers are disabled.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR must be set for the local storage driver")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("STORAGE_BUCKET must be set for the s3 storage driver")
		}
		if c.Storage.PublicURL == "" {
			return fmt.Errorf("STORAGE_PUBLIC_URL must be set for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Places.Store {
	case "sqlite":
	case "mongo":
		if c.Places.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI must be set when PLACE_STORE=mongo")
		}
	default:
		return fmt.Errorf("unknown place store %q", c.Places.Store)
	}
	if c.RateLimit.Interval <= 0 {
		return fmt.Errorf("rate limit interval must be positive")
	}
	if c.RateLimit.UniqueTokenPerInterval <= 0 {
		return fmt.Errorf("unique_token_per_interval must be positive")
	}
	for name, v := range map[string]int{
		"analysis":   c.RateLimit.Analysis,
		"synthesis":  c.RateLimit.Synthesis,
		"item_image": c.RateLimit.ItemImage,
		"search":     c.RateLimit.Search,
	} {
		if v <= 0 {
			return fmt.Errorf("rate limit %s must be positive, got %d", name, v)
		}
	}
	if c.Gemini.Timeout <= 0 || c.Mirror.FetchTimeout <= 0 || c.Providers.Timeout <= 0 {
		return fmt.Errorf("outbound timeouts must be positive")
	}
	if c.Mirror.Quality <= 0 || c.Mirror.Quality > 100 {
		return fmt.Errorf("mirror quality must be in (0, 100], got %v", c.Mirror.Quality)
	}
	if c.Cache.TrendingTTL < time.Hour || c.Cache.TrendingTTL > 6*time.Hour {
		return fmt.Errorf("TRENDING_TTL must be between 1h and 6h, got %s", c.Cache.TrendingTTL)
	}
	return nil
}

// GeminiEnabled reports whether a Gemini API key is configured.
func (c *Config) GeminiEnabled() bool {
	return c.Gemini.APIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Config: ignoring invalid integer %s=%q", key, value)
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Config: ignoring invalid number %s=%q", key, value)
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Config: ignoring invalid duration %s=%q", key, value)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
