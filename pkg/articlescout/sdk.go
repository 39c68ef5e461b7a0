// Package articlescout provides a public API for embedding the article
// discovery pipeline as a library.
//
// Example usage:
//
//	scanner := articlescout.NewScanner(
//	    articlescout.WithMaxArticles(5),
//	    articlescout.WithoutBrowser(),
//	)
//	defer scanner.Close()
//
//	articles, err := scanner.Scan(ctx, "https://example.com/blog")
package articlescout

import (
	"context"
	"log/slog"
	"os"

	"articlescout/internal/agent"
	"articlescout/internal/config"
	"articlescout/internal/extractor"
	"articlescout/internal/fetcher"
	"articlescout/internal/orchestrator"
	"articlescout/internal/types"
)

// Article is a discovered article.
type Article = types.Article

// Source identifies a website to scan.
type Source = types.Source

// ErrNoArticles is returned when every extraction strategy came up empty.
var ErrNoArticles = types.ErrNoArticles

// Option configures a Scanner.
type Option func(*config.Config)

// WithMaxArticles bounds the result set of a single scan.
func WithMaxArticles(n int) Option {
	return func(c *config.Config) { c.Scan.MaxArticles = n }
}

// WithUserAgent sets the User-Agent used by HTTP fetches.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) { c.Fetcher.UserAgent = ua }
}

// WithoutBrowser disables the rendered-DOM strategy; scans use static
// extraction (and the agent, if configured) only.
func WithoutBrowser() Option {
	return func(c *config.Config) { c.Browser.Enabled = false }
}

// WithStealth renders pages through a fingerprint-masked browser page.
func WithStealth() Option {
	return func(c *config.Config) { c.Browser.Stealth = true }
}

// WithAgent enables the agentic search strategy.
func WithAgent(apiKey string) Option {
	return func(c *config.Config) { c.Agent.APIKey = apiKey }
}

// WithPreferAgent runs the agentic strategy before the HTML ones.
func WithPreferAgent() Option {
	return func(c *config.Config) { c.Scan.PreferAgent = true }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// Scanner is the high-level API for discovering articles on a website.
// It owns an HTTP client and (lazily) a headless browser; call Close
// when done.
type Scanner struct {
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	httpC   *fetcher.Client
	browser *fetcher.Browser
	logger  *slog.Logger
}

// NewScanner creates a Scanner with the given options.
func NewScanner(opts ...Option) *Scanner {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	httpClient := fetcher.NewClient(&cfg.Fetcher, logger)

	var browser *fetcher.Browser
	var rendered *extractor.Rendered
	if cfg.Browser.Enabled {
		browser = fetcher.NewBrowser(cfg.Browser.Stealth, logger)
		rendered = extractor.NewRendered(browser, cfg.Browser.NavTimeout, cfg.Browser.SettleDelay, logger)
	}

	var agentic *extractor.Agent
	if cfg.Agent.APIKey != "" {
		client := agent.New(agent.Config{APIKey: cfg.Agent.APIKey, Endpoint: cfg.Agent.Endpoint}, logger)
		gate := extractor.NewRateGate(cfg.Agent.RateInterval)
		agentic = extractor.NewAgent(client, fetcher.NewResolver(logger), gate, cfg.Agent.Models, cfg.Agent.MaxTurns, logger)
	}

	static := extractor.NewStatic(httpClient, logger)

	var strategies []extractor.Extractor
	if cfg.Scan.PreferAgent && agentic != nil {
		strategies = append(strategies, agentic)
	}
	strategies = append(strategies, static)
	if rendered != nil {
		strategies = append(strategies, rendered)
	}
	if !cfg.Scan.PreferAgent && agentic != nil {
		strategies = append(strategies, agentic)
	}

	return &Scanner{
		cfg:     cfg,
		orch:    orchestrator.New(strategies, nil, nil, cfg.Scan.MaxArticles, logger),
		httpC:   httpClient,
		browser: browser,
		logger:  logger,
	}
}

// Scan discovers recently published articles on the given site. Returns
// ErrNoArticles when every strategy was exhausted without a valid result.
func (s *Scanner) Scan(ctx context.Context, rawURL string) ([]Article, error) {
	return s.orch.Run(ctx, Source{URL: rawURL, Name: rawURL})
}

// ScanSource discovers articles for a fully described source, binding
// results to its id, name and category.
func (s *Scanner) ScanSource(ctx context.Context, src Source) ([]Article, error) {
	return s.orch.Run(ctx, src)
}

// Close releases the HTTP client and the browser, if one was launched.
func (s *Scanner) Close() error {
	s.httpC.Close()
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}
