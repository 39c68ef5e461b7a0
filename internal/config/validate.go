package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Scan.MaxArticles < 1 {
		return fmt.Errorf("scan.max_articles must be >= 1, got %d", cfg.Scan.MaxArticles)
	}
	if cfg.Scan.MaxArticles > 20 {
		return fmt.Errorf("scan.max_articles must be <= 20, got %d", cfg.Scan.MaxArticles)
	}

	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}

	if cfg.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	if cfg.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser.settle_delay must be >= 0")
	}

	if cfg.Agent.APIKey != "" {
		if cfg.Agent.Endpoint == "" {
			return fmt.Errorf("agent.endpoint is required when agent.api_key is set")
		}
		if _, err := url.Parse(cfg.Agent.Endpoint); err != nil {
			return fmt.Errorf("invalid agent.endpoint %q: %w", cfg.Agent.Endpoint, err)
		}
		if len(cfg.Agent.Models) == 0 {
			return fmt.Errorf("agent.models must list at least one model candidate")
		}
	}
	if cfg.Agent.MaxTurns < 1 {
		return fmt.Errorf("agent.max_turns must be >= 1, got %d", cfg.Agent.MaxTurns)
	}
	if cfg.Agent.RateInterval < 0 {
		return fmt.Errorf("agent.rate_interval must be >= 0")
	}

	if cfg.Enrich.BatchLimit < 1 {
		return fmt.Errorf("enrich.batch_limit must be >= 1, got %d", cfg.Enrich.BatchLimit)
	}
	if cfg.Enrich.Delay < 0 {
		return fmt.Errorf("enrich.delay must be >= 0")
	}
	if cfg.Enrich.MemoryCeilingMB < 64 {
		return fmt.Errorf("enrich.memory_ceiling_mb must be >= 64, got %d", cfg.Enrich.MemoryCeilingMB)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateSourceURL checks if a URL string is usable as a scan source.
func ValidateSourceURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
