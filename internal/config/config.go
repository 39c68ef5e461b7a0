package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for articlescout.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"    yaml:"scan"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent"   yaml:"agent"`
	Enrich  EnrichConfig  `mapstructure:"enrich"  yaml:"enrich"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ScanConfig controls the extraction orchestrator.
type ScanConfig struct {
	// MaxArticles bounds the result set of a single orchestrator run.
	MaxArticles int `mapstructure:"max_articles" yaml:"max_articles"`

	// PreferAgent runs the agentic search strategy first; its typed
	// failure falls back to the static and rendered strategies.
	PreferAgent bool `mapstructure:"prefer_agent" yaml:"prefer_agent"`
}

// FetcherConfig controls the plain HTTP fetcher.
type FetcherConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"        yaml:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"  yaml:"max_redirects"`
	MaxBodySize  int64         `mapstructure:"max_body_size"  yaml:"max_body_size"`
	UserAgent    string        `mapstructure:"user_agent"     yaml:"user_agent"`
}

// BrowserConfig controls the shared headless browser.
type BrowserConfig struct {
	Enabled     bool          `mapstructure:"enabled"      yaml:"enabled"`
	Stealth     bool          `mapstructure:"stealth"      yaml:"stealth"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"  yaml:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// AgentConfig controls the natural-language extraction agent.
type AgentConfig struct {
	// APIKey enables the agentic strategy; when empty the strategy is
	// skipped with a warning rather than failing startup.
	APIKey   string `mapstructure:"api_key"  yaml:"api_key"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Models are tried in order; the first that initializes wins and is
	// reused until the service reports it missing.
	Models []string `mapstructure:"models" yaml:"models"`

	// MaxTurns caps agent response events per query to bound latency.
	MaxTurns int `mapstructure:"max_turns" yaml:"max_turns"`

	// RateInterval is the process-wide minimum spacing between agent calls.
	RateInterval time.Duration `mapstructure:"rate_interval" yaml:"rate_interval"`
}

// EnrichConfig controls the enrichment worker.
type EnrichConfig struct {
	BatchLimit int           `mapstructure:"batch_limit" yaml:"batch_limit"`
	Delay      time.Duration `mapstructure:"delay"       yaml:"delay"`

	// MemoryCeilingMB gates the browser enrichment path; articles are
	// skipped while process RSS exceeds it.
	MemoryCeilingMB uint64 `mapstructure:"memory_ceiling_mb" yaml:"memory_ceiling_mb"`
}

// StorageConfig controls the MongoDB storage backend.
type StorageConfig struct {
	URI      string `mapstructure:"uri"      yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			MaxArticles: 3,
		},
		Fetcher: FetcherConfig{
			Timeout:      10 * time.Second,
			MaxRedirects: 5,
			MaxBodySize:  5 * 1024 * 1024, // 5MB
			UserAgent:    "Mozilla/5.0 (compatible; articlescout/1.0)",
		},
		Browser: BrowserConfig{
			Enabled:     true,
			Stealth:     false,
			NavTimeout:  30 * time.Second,
			SettleDelay: 2 * time.Second,
		},
		Agent: AgentConfig{
			Endpoint:     "https://api.agentgateway.dev",
			Models:       []string{"scout-large", "scout-standard", "scout-lite"},
			MaxTurns:     12,
			RateInterval: 7 * time.Second,
		},
		Enrich: EnrichConfig{
			BatchLimit:      10,
			Delay:           2 * time.Second,
			MemoryCeilingMB: 280,
		},
		Storage: StorageConfig{
			URI:      "mongodb://localhost:27017",
			Database: "articlescout",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
