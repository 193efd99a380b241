package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lukman83/adscout/config"
	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/httputil"
	"github.com/lukman83/adscout/internal/meta"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/scoring"
	"github.com/lukman83/adscout/internal/search"
	"github.com/lukman83/adscout/internal/stealth"
	"github.com/lukman83/adscout/internal/store"
	"github.com/lukman83/adscout/internal/website"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "adscout",
	Short: "adscout - Meta ads scouting CLI & MCP server",
	Long: "Searches the Meta ad library for advertisers, scores their pages and ads, " +
		"and analyzes the e-commerce websites behind them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("delay-profile", "", "Delay profile: cautious, normal, aggressive, off")
	rootCmd.PersistentFlags().Bool("respect-robots", true, "Respect robots.txt rules")
	rootCmd.PersistentFlags().String("proxy-file", "", "Path to proxy list file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (\":memory:\" for a throwaway store)")
	rootCmd.PersistentFlags().String("scope", "", "Tenant scope for stored results")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("countries", "", "Comma separated ad delivery countries")
	rootCmd.PersistentFlags().String("languages", "", "Comma separated ad languages")
	rootCmd.PersistentFlags().Bool("headless", false, "Retry blocked sites in a headless browser")
}

func initConfig() {
	cfg = config.DefaultConfig()
	cfg.LoadFromEnv()

	// Override from flags
	flags := rootCmd.PersistentFlags()
	if v, _ := flags.GetString("delay-profile"); v != "" {
		cfg.DelayProfile = v
	}
	if v, _ := flags.GetBool("respect-robots"); !v {
		cfg.RespectRobots = false
	}
	if v, _ := flags.GetString("proxy-file"); v != "" {
		cfg.ProxyFile = v
	}
	if v, _ := flags.GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := flags.GetString("scope"); v != "" {
		cfg.Scope = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("countries"); v != "" {
		cfg.Countries = config.SplitList(v)
	}
	if v, _ := flags.GetString("languages"); v != "" {
		cfg.Languages = config.SplitList(v)
	}
	if v, _ := flags.GetBool("headless"); v {
		cfg.Headless = true
	}

	logger = newLogger(cfg.LogLevel)
}

// newLogger writes to stderr so stdout stays machine readable.
func newLogger(level string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "adscout",
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// buildTransport creates the stealth round tripper used for website fetches.
// The robots checker is returned too so sitemap discovery shares its cache.
func buildTransport() (*stealth.StealthTransport, *stealth.RobotsChecker, error) {
	profile, err := stealth.ParseDelayProfile(cfg.DelayProfile)
	if err != nil {
		return nil, nil, err
	}

	baseTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	var proxyRotator *stealth.ProxyRotator
	if cfg.ProxyFile != "" {
		providers, err := stealth.LoadProxyFile(cfg.ProxyFile)
		if err != nil {
			return nil, nil, err
		}
		proxyRotator = stealth.NewProxyRotator(providers)
		logger.Debug("proxies loaded", "count", proxyRotator.Len())
	}

	robotsClient := httputil.NewHTTPClient(baseTransport, 10*time.Second)
	robots := stealth.NewRobotsChecker(robotsClient, cfg.RespectRobots)

	transport := &stealth.StealthTransport{
		Base:        baseTransport,
		Robots:      robots,
		Fingerprint: stealth.NewFingerprintPool(cfg.Languages...),
		Proxy:       proxyRotator,
		Delay:       stealth.NewHumanDelay(profile),
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
	return transport, robots, nil
}

// initSources registers every ad source.
func initSources() {
	client := meta.NewClient(
		httputil.NewHTTPClient(nil, cfg.RequestTimeout),
		rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		logger,
		meta.Config{
			AccessToken: cfg.MetaAccessToken,
			APIVersion:  cfg.MetaAPIVersion,
			MaxRetries:  3,
		},
	)
	adsource.Register(client.Name(), client)
}

func openStore() (store.Store, error) {
	if cfg.DBPath == ":memory:" {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(cfg.DBPath)
}

// newRunner wires the full pipeline. The returned cleanup releases the
// store and the headless browser.
func newRunner() (*pipeline.Runner, func(), error) {
	initSources()
	src, err := adsource.Get("meta")
	if err != nil {
		return nil, nil, err
	}

	transport, robots, err := buildTransport()
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	prober := website.NewProber(transport, website.ProberOptions{
		Timeout:      cfg.RequestTimeout,
		MaxRedirects: cfg.MaxRedirects,
	})
	counter := website.NewSitemapCounter(
		httputil.NewHTTPClient(transport, 0),
		robots,
		website.SitemapOptions{
			MaxDepth:    cfg.SitemapMaxDepth,
			MaxSitemaps: cfg.MaxSitemaps,
			Timeout:     cfg.RequestTimeout,
			Language:    firstOr(cfg.Languages, ""),
		},
	)

	var headless *website.HeadlessProber
	opts := website.AnalyzerOptions{}
	if cfg.Headless {
		headless = website.NewHeadlessProber(2*cfg.RequestTimeout, cfg.MaxRedirects)
		opts.Fallback = headless
	}

	runner := &pipeline.Runner{
		Aggregator:         search.NewAggregator(src, logger, search.Options{KeywordConcurrency: cfg.KeywordConcurrency}),
		Analyzer:           website.NewAnalyzer(prober, website.DefaultClassifier(), counter, logger, opts),
		Store:              st,
		Winning:            scoring.DefaultWinning,
		Log:                logger,
		Scope:              cfg.Scope,
		Countries:          cfg.Countries,
		Languages:          cfg.Languages,
		RecountConcurrency: cfg.KeywordConcurrency,
	}

	cleanup := func() {
		if headless != nil {
			if err := headless.Close(); err != nil {
				logger.Warn("closing browser", "err", err)
			}
		}
		if err := st.Close(); err != nil {
			logger.Warn("closing store", "err", err)
		}
	}
	return runner, cleanup, nil
}

func firstOr(list []string, def string) string {
	if len(list) == 0 {
		return def
	}
	return list[0]
}
