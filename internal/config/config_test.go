package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_BUCKET", "pawtrip-media")
	t.Setenv("STORAGE_DRIVER", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "pawtrip.yaml")
	yaml := `
listen: ":9090"
storage:
  driver: s3
  bucket: ${TEST_BUCKET}
  public_url: https://cdn.example.com
rate_limit:
  synthesis: 3
cache:
  trending_ttl: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "pawtrip-media", cfg.Storage.Bucket)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.RateLimit.Synthesis)
	assert.Equal(t, 20, cfg.RateLimit.Analysis, "unset fields keep defaults")
	assert.Equal(t, 2*time.Hour, cfg.Cache.TrendingTTL)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("RATE_LIMIT_ANALYSIS", "42")
	t.Setenv("GEMINI_TIMEOUT", "20s")
	t.Setenv("NAVER_CLIENT_ID", "naver-id")
	t.Setenv("PORT", "7000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.RateLimit.Analysis)
	assert.Equal(t, 20*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, "naver-id", cfg.Providers.NaverClientID)
	assert.Equal(t, ":7000", cfg.Listen)
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_SEARCH", "lots")
	t.Setenv("MIRROR_FETCH_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.RateLimit.Search)
	assert.Equal(t, 15*time.Second, cfg.Mirror.FetchTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Driver = "s3"; c.Storage.PublicURL = "https://cdn" },
			wantErr: "STORAGE_BUCKET",
		},
		{
			name:    "s3 without public url",
			mutate:  func(c *Config) { c.Storage.Driver = "s3"; c.Storage.Bucket = "b" },
			wantErr: "STORAGE_PUBLIC_URL",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "ftp" },
			wantErr: "unknown storage driver",
		},
		{
			name:    "mongo without uri",
			mutate:  func(c *Config) { c.Places.Store = "mongo" },
			wantErr: "MONGODB_URI",
		},
		{
			name:    "zero synthesis limit",
			mutate:  func(c *Config) { c.RateLimit.Synthesis = 0 },
			wantErr: "synthesis",
		},
		{
			name:    "trending ttl too short",
			mutate:  func(c *Config) { c.Cache.TrendingTTL = 10 * time.Minute },
			wantErr: "TRENDING_TTL",
		},
		{
			name:    "trending ttl too long",
			mutate:  func(c *Config) { c.Cache.TrendingTTL = 12 * time.Hour },
			wantErr: "TRENDING_TTL",
		},
		{
			name:    "quality out of range",
			mutate:  func(c *Config) { c.Mirror.Quality = 120 },
			wantErr: "quality",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
