package config

import (
	"testing"
	"time"

	"github.com/lukman83/adscout/internal/website"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("META_ACCESS_TOKEN", "tok")
	t.Setenv("ADSCOUT_COUNTRIES", "FR, BE ,,CH")
	t.Setenv("ADSCOUT_MAX_CONCURRENT", "8")
	t.Setenv("ADSCOUT_REQUEST_TIMEOUT", "30s")
	t.Setenv("ADSCOUT_RESPECT_ROBOTS", "false")
	t.Setenv("ADSCOUT_HEADLESS", "1")
	t.Setenv("ADSCOUT_MIN_ADS", "not-a-number")

	c := DefaultConfig()
	c.LoadFromEnv()

	assert.Equal(t, "tok", c.MetaAccessToken)
	assert.Equal(t, []string{"FR", "BE", "CH"}, c.Countries)
	assert.Equal(t, 8, c.MaxConcurrent)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.False(t, c.RespectRobots)
	assert.True(t, c.Headless)
	assert.Equal(t, 1, c.MinAds, "unparsable values keep the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"concurrency too high", func(c *Config) { c.MaxConcurrent = 21 }, "max concurrent"},
		{"concurrency zero", func(c *Config) { c.MaxConcurrent = 0 }, "max concurrent"},
		{"negative min ads", func(c *Config) { c.MinAds = -1 }, "min ads"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request timeout"},
		{"no redirects", func(c *Config) { c.MaxRedirects = 0 }, "max redirects"},
		{"no sitemap depth", func(c *Config) { c.SitemapMaxDepth = 0 }, "sitemap depth"},
		{"empty scope", func(c *Config) { c.Scope = "" }, "scope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	c := DefaultConfig()
	c.MaxConcurrent = 0
	c.MaxRedirects = 0
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max concurrent")
	assert.Contains(t, err.Error(), "max redirects")
}

func TestValidate_ConcurrencyBoundIsTheAnalyzerLimit(t *testing.T) {
	c := DefaultConfig()
	c.MaxConcurrent = website.MaxConcurrentLimit
	assert.NoError(t, c.Validate())

	c.MaxConcurrent = website.MaxConcurrentLimit + 1
	assert.Error(t, c.Validate())
}
