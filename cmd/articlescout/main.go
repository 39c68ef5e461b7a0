package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"articlescout/internal/agent"
	"articlescout/internal/config"
	"articlescout/internal/enrich"
	"articlescout/internal/extractor"
	"articlescout/internal/fetcher"
	"articlescout/internal/observability"
	"articlescout/internal/orchestrator"
	"articlescout/internal/storage"
	"articlescout/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	metricsPort int
	scanAll     bool
	saveFound   bool
	useBrowser  bool
	batchLimit  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "articlescout",
		Short: "ArticleScout — article discovery and enrichment pipeline",
		Long: `ArticleScout discovers recently published articles on configured websites
and backfills missing publication dates and descriptions.

Extraction escalates through three strategies:
  • Static HTML parsing (JSON-LD structured data, blog-section heuristics)
  • Rendered-DOM extraction through a headless browser
  • Agentic web search via a natural-language agent service

Results are validated, canonicalized, deduplicated and stored in MongoDB.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 = per config)")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(enrichCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// scanCmd creates the "scan" subcommand.
func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Discover articles on a website",
		Long: `Scan a single URL for recently published articles, or scan every
active stored source with --all. Single-URL results print to stdout;
add --save to persist them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().BoolVar(&scanAll, "all", false, "scan every active stored source")
	cmd.Flags().BoolVar(&saveFound, "save", false, "persist discovered articles")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if scanAll && len(args) > 0 {
		return fmt.Errorf("--all and a URL argument are mutually exclusive")
	}
	if !scanAll && len(args) == 0 {
		return fmt.Errorf("provide a URL to scan, or --all for stored sources")
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	// Storage is needed for --all (source list) and --save (persistence);
	// a plain single-URL scan runs without it.
	var store storage.Store
	if scanAll || saveFound {
		store, err = storage.NewMongo(ctx, &cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("connect storage: %w", err)
		}
		defer store.Close(context.Background())
	}

	pipe := buildPipeline(cfg, store, logger)
	defer pipe.close()

	if scanAll {
		return scanStoredSources(ctx, cfg, pipe, store, logger)
	}

	rawURL := args[0]
	if err := config.ValidateSourceURL(rawURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	source := types.Source{URL: rawURL, Name: rawURL}
	articles, err := pipe.orch.Run(ctx, source)
	if err != nil {
		if errors.Is(err, types.ErrNoArticles) {
			fmt.Println("No articles found.")
			return nil
		}
		return err
	}

	if store != nil {
		inserted, err := store.SaveArticles(ctx, articles)
		if err != nil {
			return err
		}
		logger.Info("articles saved", "found", len(articles), "new", inserted)
	}

	return printArticles(articles)
}

// scanStoredSources runs the pipeline over every active source. A source
// that fails does not stop the sweep.
func scanStoredSources(ctx context.Context, cfg *config.Config, pipe *pipeline, store storage.Store, logger *slog.Logger) error {
	sources, err := store.ListActiveSources(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No active sources configured.")
		return nil
	}

	start := time.Now()
	var scanned, failed, inserted int
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		scanned++

		articles, err := pipe.orch.Run(ctx, src)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			failed++
			logger.Warn("source scan failed", "source", src.URL, "error", err)
			continue
		}

		n, err := store.SaveArticles(ctx, articles)
		if err != nil {
			logger.Warn("save failed", "source", src.URL, "error", err)
			continue
		}
		inserted += n
	}

	logger.Info("sweep complete",
		"sources", scanned,
		"failed", failed,
		"new_articles", inserted,
		"elapsed", time.Since(start),
	)
	fmt.Printf("Scanned %d sources (%d failed), %d new articles in %s\n",
		scanned, failed, inserted, time.Since(start).Round(time.Millisecond))
	return nil
}

// enrichCmd creates the "enrich" subcommand.
func enrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Backfill missing dates and descriptions on stored articles",
		Long: `Run one enrichment batch over stored articles that are missing a
publication date or a usable description. The default path fetches
article pages over plain HTTP; --browser renders them through the
headless browser for script-dependent pages, gated on process memory.`,
		RunE: runEnrich,
	}

	cmd.Flags().BoolVar(&useBrowser, "browser", false, "render article pages through the headless browser")
	cmd.Flags().IntVar(&batchLimit, "limit", 0, "batch size override (0 = config default)")

	return cmd
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	store, err := storage.NewMongo(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer store.Close(context.Background())

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}
	httpClient := fetcher.NewClient(&cfg.Fetcher, logger)
	defer httpClient.Close()

	opts := []enrich.Option{enrich.WithMetrics(metrics)}
	var browser *fetcher.Browser
	if useBrowser {
		browser = fetcher.NewBrowser(cfg.Browser.Stealth, logger)
		opts = append(opts,
			enrich.WithBrowser(browser, cfg.Browser.NavTimeout, cfg.Browser.SettleDelay),
			enrich.WithMemoryGate(enrich.ProcessProbe{}, cfg.Enrich.MemoryCeilingMB),
		)
	}

	worker := enrich.NewWorker(store, httpClient, cfg.Enrich.Delay, logger, opts...)
	if browser != nil {
		defer browser.Close()
	}

	limit := cfg.Enrich.BatchLimit
	if batchLimit > 0 {
		limit = batchLimit
	}

	var res enrich.BatchResult
	if useBrowser {
		res, err = worker.RunBrowserBatch(ctx, limit)
	} else {
		res, err = worker.RunBatch(ctx, limit)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Enrichment batch: %d processed, %d enriched, %d skipped\n",
		res.Processed, res.Enriched, res.Skipped)
	return nil
}

// pipeline bundles the extraction collaborators built for one invocation.
type pipeline struct {
	orch    *orchestrator.Orchestrator
	close   func()
	metrics *observability.Metrics
}

// buildPipeline wires the extraction strategies in priority order. store
// may be nil (no health records are written then).
func buildPipeline(cfg *config.Config, store storage.Store, logger *slog.Logger) *pipeline {
	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	httpClient := fetcher.NewClient(&cfg.Fetcher, logger)
	static := extractor.NewStatic(httpClient, logger)

	var browser *fetcher.Browser
	var rendered *extractor.Rendered
	if cfg.Browser.Enabled {
		browser = fetcher.NewBrowser(cfg.Browser.Stealth, logger)
		rendered = extractor.NewRendered(browser, cfg.Browser.NavTimeout, cfg.Browser.SettleDelay, logger)
	} else {
		logger.Info("browser disabled, rendered extraction unavailable")
	}

	var agentic *extractor.Agent
	if cfg.Agent.APIKey != "" {
		client := agent.New(agent.Config{APIKey: cfg.Agent.APIKey, Endpoint: cfg.Agent.Endpoint}, logger)
		gate := extractor.NewRateGate(cfg.Agent.RateInterval)
		resolver := fetcher.NewResolver(logger)
		agentic = extractor.NewAgent(client, resolver, gate, cfg.Agent.Models, cfg.Agent.MaxTurns, logger)
	} else {
		logger.Warn("no agent API key configured, agentic extraction disabled")
	}

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

	var health orchestrator.HealthRecorder
	if store != nil {
		health = store
	}

	orch := orchestrator.New(strategies, health, metrics, cfg.Scan.MaxArticles, logger)

	return &pipeline{
		orch:    orch,
		metrics: metrics,
		close: func() {
			httpClient.Close()
			if browser != nil {
				browser.Close()
			}
		},
	}
}

func printArticles(articles []types.Article) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(articles)
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if metricsPort > 0 {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = metricsPort
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(&cfg.Logging), nil
}

// setupLogger creates a structured logger per configuration; --verbose
// forces debug level.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	return ctx, cancel
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ArticleScout %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Scan:\n")
			fmt.Printf("  Max Articles:      %d\n", cfg.Scan.MaxArticles)
			fmt.Printf("  Prefer Agent:      %v\n", cfg.Scan.PreferAgent)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Timeout:           %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Max Redirects:     %d\n", cfg.Fetcher.MaxRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Browser.Enabled)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Nav Timeout:       %s\n", cfg.Browser.NavTimeout)
			fmt.Printf("  Settle Delay:      %s\n", cfg.Browser.SettleDelay)
			fmt.Printf("\nAgent:\n")
			fmt.Printf("  Configured:        %v\n", cfg.Agent.APIKey != "")
			fmt.Printf("  Endpoint:          %s\n", cfg.Agent.Endpoint)
			fmt.Printf("  Models:            %v\n", cfg.Agent.Models)
			fmt.Printf("  Rate Interval:     %s\n", cfg.Agent.RateInterval)
			fmt.Printf("\nEnrich:\n")
			fmt.Printf("  Batch Limit:       %d\n", cfg.Enrich.BatchLimit)
			fmt.Printf("  Delay:             %s\n", cfg.Enrich.Delay)
			fmt.Printf("  Memory Ceiling:    %d MB\n", cfg.Enrich.MemoryCeilingMB)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  URI:               %s\n", cfg.Storage.URI)
			fmt.Printf("  Database:          %s\n", cfg.Storage.Database)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}
