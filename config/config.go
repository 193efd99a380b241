package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lukman83/adscout/internal/website"
)

// MaxConcurrentLimit caps the website analysis fan-out.
const MaxConcurrentLimit = website.MaxConcurrentLimit

// Config holds all application configuration.
type Config struct {
	// Meta ad library
	MetaAccessToken string
	MetaAPIVersion  string
	Countries       []string
	Languages       []string

	// Search
	MinAds             int
	ExportMinAds       int
	KeywordConcurrency int

	// Website analysis
	MaxConcurrent   int
	RequestTimeout  time.Duration
	MaxRedirects    int
	SitemapMaxDepth int
	MaxSitemaps     int
	Headless        bool

	// Stealth
	RespectRobots bool
	DelayProfile  string // "cautious", "normal", "aggressive", "off"
	RatePerSecond float64
	RateBurst     int
	ProxyFile     string

	// HTTP server
	HTTPPort string
	APIKey   string

	// Storage
	DBPath string
	Scope  string

	LogLevel string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Countries:          []string{"FR"},
		Languages:          []string{"fr"},
		MinAds:             1,
		ExportMinAds:       15,
		KeywordConcurrency: 3,
		MaxConcurrent:      5,
		RequestTimeout:     15 * time.Second,
		MaxRedirects:       5,
		SitemapMaxDepth:    3,
		MaxSitemaps:        25,
		RespectRobots:      true,
		DelayProfile:       "normal",
		RatePerSecond:      2.0,
		RateBurst:          3,
		HTTPPort:           "8080",
		DBPath:             "adscout.db",
		Scope:              "default",
		LogLevel:           "info",
	}
}

// LoadFromEnv loads .env file (if present) then overrides config from environment variables.
func (c *Config) LoadFromEnv() {
	// Auto-load .env file; silently ignored if missing
	_ = godotenv.Load()

	if v := os.Getenv("META_ACCESS_TOKEN"); v != "" {
		c.MetaAccessToken = v
	}
	if v := os.Getenv("ADSCOUT_META_API_VERSION"); v != "" {
		c.MetaAPIVersion = v
	}
	if v := os.Getenv("ADSCOUT_COUNTRIES"); v != "" {
		c.Countries = SplitList(v)
	}
	if v := os.Getenv("ADSCOUT_LANGUAGES"); v != "" {
		c.Languages = SplitList(v)
	}
	setInt(&c.MinAds, "ADSCOUT_MIN_ADS")
	setInt(&c.ExportMinAds, "ADSCOUT_EXPORT_MIN_ADS")
	setInt(&c.KeywordConcurrency, "ADSCOUT_KEYWORD_CONCURRENCY")
	setInt(&c.MaxConcurrent, "ADSCOUT_MAX_CONCURRENT")
	if v := os.Getenv("ADSCOUT_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
	setInt(&c.MaxRedirects, "ADSCOUT_MAX_REDIRECTS")
	setInt(&c.SitemapMaxDepth, "ADSCOUT_SITEMAP_DEPTH")
	setInt(&c.MaxSitemaps, "ADSCOUT_MAX_SITEMAPS")
	if v := os.Getenv("ADSCOUT_HEADLESS"); v == "true" || v == "1" {
		c.Headless = true
	}
	if v := os.Getenv("ADSCOUT_DELAY_PROFILE"); v != "" {
		c.DelayProfile = v
	}
	if v := os.Getenv("ADSCOUT_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RatePerSecond = f
		}
	}
	setInt(&c.RateBurst, "ADSCOUT_RATE_BURST")
	if v := os.Getenv("ADSCOUT_PROXIES"); v != "" {
		c.ProxyFile = v
	}
	if v := os.Getenv("ADSCOUT_RESPECT_ROBOTS"); v == "false" {
		c.RespectRobots = false
	}
	if v := os.Getenv("PORT"); v != "" {
		c.HTTPPort = v
	}
	if v := os.Getenv("ADSCOUT_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("ADSCOUT_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ADSCOUT_SCOPE"); v != "" {
		c.Scope = v
	}
	if v := os.Getenv("ADSCOUT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate reports configuration errors that would make every call fail.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxConcurrent < 1 || c.MaxConcurrent > MaxConcurrentLimit {
		errs = append(errs, fmt.Errorf("max concurrent must be in 1..%d, got %d", MaxConcurrentLimit, c.MaxConcurrent))
	}
	if c.KeywordConcurrency < 1 {
		errs = append(errs, fmt.Errorf("keyword concurrency must be positive, got %d", c.KeywordConcurrency))
	}
	if c.MinAds < 0 {
		errs = append(errs, fmt.Errorf("min ads must not be negative, got %d", c.MinAds))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.MaxRedirects < 1 {
		errs = append(errs, fmt.Errorf("max redirects must be positive, got %d", c.MaxRedirects))
	}
	if c.SitemapMaxDepth < 1 {
		errs = append(errs, fmt.Errorf("sitemap depth must be positive, got %d", c.SitemapMaxDepth))
	}
	if c.MaxSitemaps < 1 {
		errs = append(errs, fmt.Errorf("max sitemaps must be positive, got %d", c.MaxSitemaps))
	}
	if c.RatePerSecond <= 0 || c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate limit must be positive, got %.2f/s burst %d", c.RatePerSecond, c.RateBurst))
	}
	if c.Scope == "" {
		errs = append(errs, errors.New("scope must not be empty"))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
