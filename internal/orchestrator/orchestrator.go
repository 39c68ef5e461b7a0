// Package orchestrator runs the extraction strategies in priority order
// and turns surviving candidates into domain-correct articles.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"articlescout/internal/extractor"
	"articlescout/internal/observability"
	"articlescout/internal/types"
	"articlescout/internal/validate"
)

// HealthRecorder persists per-source scrape summaries. Best-effort:
// failures are logged, never propagated.
type HealthRecorder interface {
	UpdateScrapingResult(ctx context.Context, sourceID string, rec types.ScrapeHealth) error
}

// Orchestrator is the pipeline's public entry point. Strategies run
// strictly sequentially; a later strategy starts only after the previous
// one came up empty or failed. Not safe for concurrent runs against the
// same shared browser handle — callers serialize through one worker loop.
type Orchestrator struct {
	strategies  []extractor.Extractor
	health      HealthRecorder
	metrics     *observability.Metrics
	maxArticles int
	logger      *slog.Logger

	// disabled marks strategies that reported a permanent failure for
	// the remainder of the process run.
	disabled map[string]bool
}

// New creates an orchestrator over strategies in priority order. health
// and metrics may be nil.
func New(strategies []extractor.Extractor, health HealthRecorder, metrics *observability.Metrics, maxArticles int, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		strategies:  strategies,
		health:      health,
		metrics:     metrics,
		maxArticles: maxArticles,
		logger:      logger.With("component", "orchestrator"),
		disabled:    make(map[string]bool),
	}
}

// Run extracts, validates, deduplicates and bounds articles for one
// source. Returns types.ErrNoArticles when every strategy was exhausted
// without a single valid candidate; a health record is written either way.
func (o *Orchestrator) Run(ctx context.Context, source types.Source) ([]types.Article, error) {
	src, err := url.Parse(source.URL)
	if err != nil || (src.Scheme != "http" && src.Scheme != "https") || src.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidSource, source.URL)
	}

	if o.metrics != nil {
		o.metrics.RunsTotal.Add(1)
	}

	start := time.Now()
	lastMethod := "none"
	lastFound := 0

	for _, strat := range o.strategies {
		if o.disabled[strat.Name()] {
			o.logger.Debug("strategy disabled, skipping", "strategy", strat.Name())
			continue
		}
		lastMethod = strat.Name()

		candidates, err := strat.Extract(ctx, source)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			var xerr *types.ExtractionError
			if errors.As(err, &xerr) && xerr.Permanent {
				o.disabled[strat.Name()] = true
				o.logger.Warn("strategy disabled for this run of the process",
					"strategy", strat.Name(), "error", err)
			} else {
				o.logger.Warn("strategy failed, falling back",
					"strategy", strat.Name(), "error", err)
			}
			if o.metrics != nil {
				o.metrics.StrategyFailures.Add(1)
			}
			continue
		}

		lastFound = len(candidates)
		if o.metrics != nil {
			o.metrics.CandidatesFound.Add(int64(len(candidates)))
		}

		kept := o.filter(candidates, source)
		if len(kept) == 0 {
			o.logger.Debug("strategy yielded nothing usable",
				"strategy", strat.Name(), "candidates", len(candidates))
			continue
		}

		if o.metrics != nil {
			o.metrics.CandidatesKept.Add(int64(len(kept)))
		}
		o.recordHealth(ctx, source, types.ScrapeHealth{
			CandidatesFound: len(candidates),
			CandidatesKept:  len(kept),
			Success:         true,
			Method:          strat.Name(),
			Domain:          src.Hostname(),
			CheckedAt:       time.Now(),
			Duration:        time.Since(start),
		})

		o.logger.Info("extraction succeeded",
			"source", source.URL,
			"strategy", strat.Name(),
			"found", len(candidates),
			"kept", len(kept),
			"duration", time.Since(start),
		)
		return o.toArticles(kept, source), nil
	}

	if o.metrics != nil {
		o.metrics.RunsFailed.Add(1)
	}
	o.recordHealth(ctx, source, types.ScrapeHealth{
		CandidatesFound: lastFound,
		CandidatesKept:  0,
		Success:         false,
		Method:          lastMethod,
		Domain:          src.Hostname(),
		CheckedAt:       time.Now(),
		Duration:        time.Since(start),
	})

	o.logger.Warn("all strategies exhausted", "source", source.URL)
	return nil, fmt.Errorf("%w: %s", types.ErrNoArticles, source.URL)
}

// filter validates, deduplicates by canonical URL, sorts newest-first
// (undated last), and trims to the configured bound.
func (o *Orchestrator) filter(candidates []types.Candidate, source types.Source) []types.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	var kept []types.Candidate

	for _, c := range candidates {
		if err := validate.Candidate(c, source.URL); err != nil {
			o.logger.Debug("candidate rejected", "url", c.URL, "error", err)
			continue
		}
		key := validate.CanonicalKey(c.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, c)
	}

	extractor.SortNewestFirst(kept)
	if len(kept) > o.maxArticles {
		kept = kept[:o.maxArticles]
	}
	return kept
}

func (o *Orchestrator) toArticles(candidates []types.Candidate, source types.Source) []types.Article {
	now := time.Now()
	out := make([]types.Article, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, types.Article{
			ID:          uuid.NewString(),
			SourceID:    source.ID,
			SourceName:  source.Name,
			Category:    source.Category,
			Title:       c.Title,
			URL:         c.URL,
			Description: c.Description,
			PublishedAt: c.PublishedAt,
			CreatedAt:   now,
		})
	}
	return out
}

// recordHealth writes the scrape summary. Telemetry only — a write
// failure is logged and swallowed.
func (o *Orchestrator) recordHealth(ctx context.Context, source types.Source, rec types.ScrapeHealth) {
	if o.health == nil {
		return
	}
	if err := o.health.UpdateScrapingResult(ctx, source.ID, rec); err != nil {
		o.logger.Warn("health record write failed", "source", source.ID, "error", err)
	}
}
