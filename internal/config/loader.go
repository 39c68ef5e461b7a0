package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("ARTICLESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("articlescout")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".articlescout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scan.max_articles", cfg.Scan.MaxArticles)
	v.SetDefault("scan.prefer_agent", cfg.Scan.PreferAgent)

	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)

	v.SetDefault("browser.enabled", cfg.Browser.Enabled)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.nav_timeout", cfg.Browser.NavTimeout)
	v.SetDefault("browser.settle_delay", cfg.Browser.SettleDelay)

	v.SetDefault("agent.endpoint", cfg.Agent.Endpoint)
	v.SetDefault("agent.models", cfg.Agent.Models)
	v.SetDefault("agent.max_turns", cfg.Agent.MaxTurns)
	v.SetDefault("agent.rate_interval", cfg.Agent.RateInterval)

	v.SetDefault("enrich.batch_limit", cfg.Enrich.BatchLimit)
	v.SetDefault("enrich.delay", cfg.Enrich.Delay)
	v.SetDefault("enrich.memory_ceiling_mb", cfg.Enrich.MemoryCeilingMB)

	v.SetDefault("storage.uri", cfg.Storage.URI)
	v.SetDefault("storage.database", cfg.Storage.Database)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
