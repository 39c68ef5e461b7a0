// Package enrich backfills missing publication dates and descriptions on
// stored articles. Batches run one article at a time with a fixed delay;
// the browser path additionally gates on process memory.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"

	"articlescout/internal/fetcher"
	"articlescout/internal/observability"
	"articlescout/internal/pagemeta"
	"articlescout/internal/types"
)

// ArticleStore is the slice of storage the worker needs.
type ArticleStore interface {
	GetArticlesNeedingEnrichment(ctx context.Context, limit int) ([]types.EnrichmentTarget, error)
	EnrichArticle(ctx context.Context, id string, patch types.EnrichmentPatch) error
}

// BatchResult summarizes one enrichment batch.
type BatchResult struct {
	Processed int
	Enriched  int
	Skipped   int
}

// Worker runs enrichment batches. At most one batch runs at a time per
// Worker; a second call while one is in flight fails fast with
// types.ErrBatchInFlight.
type Worker struct {
	store       ArticleStore
	fetch       *fetcher.Client
	browser     *fetcher.Browser
	navTimeout  time.Duration
	settleDelay time.Duration

	delay   time.Duration
	ceiling uint64 // bytes; 0 disables the gate
	probe   MemoryProbe
	metrics *observability.Metrics
	logger  *slog.Logger

	running atomic.Bool
}

// Option configures a Worker beyond its required collaborators.
type Option func(*Worker)

// WithBrowser enables the browser enrichment path.
func WithBrowser(b *fetcher.Browser, navTimeout, settleDelay time.Duration) Option {
	return func(w *Worker) {
		w.browser = b
		w.navTimeout = navTimeout
		w.settleDelay = settleDelay
	}
}

// WithMemoryGate sets the RSS ceiling for the browser path.
func WithMemoryGate(probe MemoryProbe, ceilingMB uint64) Option {
	return func(w *Worker) {
		w.probe = probe
		w.ceiling = ceilingMB * 1024 * 1024
	}
}

// WithMetrics attaches operational counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker creates an enrichment worker using plain HTTP fetches.
func NewWorker(store ArticleStore, fetch *fetcher.Client, delay time.Duration, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:  store,
		fetch:  fetch,
		delay:  delay,
		logger: logger.With("component", "enrich_worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunBatch enriches up to limit articles using static fetches.
func (w *Worker) RunBatch(ctx context.Context, limit int) (BatchResult, error) {
	return w.run(ctx, limit, false)
}

// RunBrowserBatch enriches up to limit articles through the headless
// browser, for pages whose metadata only appears after script execution.
// Each article is followed by a forced GC; the batch aborts early when
// memory stays above the ceiling.
func (w *Worker) RunBrowserBatch(ctx context.Context, limit int) (BatchResult, error) {
	if w.browser == nil {
		return BatchResult{}, fmt.Errorf("browser enrichment requested but no browser configured")
	}
	return w.run(ctx, limit, true)
}

func (w *Worker) run(ctx context.Context, limit int, useBrowser bool) (BatchResult, error) {
	if !w.running.CompareAndSwap(false, true) {
		return BatchResult{}, types.ErrBatchInFlight
	}
	defer w.running.Store(false)

	targets, err := w.store.GetArticlesNeedingEnrichment(ctx, limit)
	if err != nil {
		return BatchResult{}, err
	}
	if w.metrics != nil {
		w.metrics.EnrichBatches.Add(1)
	}
	if len(targets) == 0 {
		w.logger.Info("no articles need enrichment")
		return BatchResult{}, nil
	}

	var res BatchResult
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if useBrowser && w.overCeiling() {
			w.logger.Warn("skipping article, memory over ceiling",
				"article", target.ID, "reason", "memory_limit")
			res.Skipped++
			if w.metrics != nil {
				w.metrics.EnrichSkipped.Add(1)
			}
			continue
		}

		res.Processed++
		if w.metrics != nil {
			w.metrics.EnrichProcessed.Add(1)
		}

		patch := w.enrichOne(ctx, target, useBrowser)
		if patch.Empty() {
			w.logger.Debug("nothing found for article", "article", target.ID, "url", target.URL)
		} else if err := w.store.EnrichArticle(ctx, target.ID, patch); err != nil {
			w.logger.Warn("enrichment write failed", "article", target.ID, "error", err)
		} else {
			res.Enriched++
			if w.metrics != nil {
				w.metrics.EnrichUpdated.Add(1)
			}
			w.logger.Info("article enriched",
				"article", target.ID,
				"date_set", patch.PublishedAt != nil,
				"description_set", patch.Description != nil,
			)
		}

		if useBrowser {
			runtime.GC()
			if w.overCeiling() {
				w.logger.Warn("memory still over ceiling after GC, aborting batch",
					"processed", res.Processed)
				res.Skipped += len(targets) - i - 1
				break
			}
		}

		if i < len(targets)-1 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(w.delay):
			}
		}
	}

	w.logger.Info("enrichment batch complete",
		"processed", res.Processed,
		"enriched", res.Enriched,
		"skipped", res.Skipped,
		"browser", useBrowser,
	)
	return res, nil
}

// enrichOne loads the article page and extracts only the fields still
// missing. Fetch and parse failures yield an empty patch; enrichment is
// best-effort and never deletes or degrades stored data.
func (w *Worker) enrichOne(ctx context.Context, target types.EnrichmentTarget, useBrowser bool) types.EnrichmentPatch {
	var doc *pagemeta.Document
	var err error
	if useBrowser {
		doc, err = w.renderPage(ctx, target.URL)
	} else {
		doc, err = w.fetchPage(ctx, target.URL)
	}
	if err != nil {
		w.logger.Warn("article page load failed", "url", target.URL, "error", err)
		return types.EnrichmentPatch{}
	}

	var patch types.EnrichmentPatch
	if target.NeedsDate() {
		patch.PublishedAt = doc.PublishedAt()
	}
	if target.NeedsDescription() {
		if desc := doc.Description(); len(desc) >= types.MinUsefulDescription {
			patch.Description = &desc
		}
	}
	return patch
}

func (w *Worker) fetchPage(ctx context.Context, rawURL string) (*pagemeta.Document, error) {
	page, err := w.fetch.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return pagemeta.Parse(page.Body)
}

func (w *Worker) renderPage(ctx context.Context, rawURL string) (*pagemeta.Document, error) {
	page, err := w.browser.Page()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			w.logger.Warn("page close failed", "url", rawURL, "error", cerr)
		}
	}()

	html, err := w.renderHTML(ctx, page, rawURL)
	if err != nil {
		return nil, err
	}
	return pagemeta.Parse([]byte(html))
}

func (w *Worker) renderHTML(ctx context.Context, page *rod.Page, rawURL string) (string, error) {
	page = page.Context(ctx)

	if err := page.Timeout(w.navTimeout).Navigate(rawURL); err != nil {
		return "", err
	}
	if err := page.Timeout(w.navTimeout).WaitStable(300 * time.Millisecond); err != nil {
		w.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(w.settleDelay):
	}
	return page.HTML()
}

// overCeiling reports whether process RSS exceeds the configured ceiling.
// A probe failure is treated as under the ceiling; the gate protects the
// happy path, it is not a correctness guarantee.
func (w *Worker) overCeiling() bool {
	if w.ceiling == 0 || w.probe == nil {
		return false
	}
	rss, err := w.probe.RSS()
	if err != nil {
		w.logger.Debug("memory probe failed", "error", err)
		return false
	}
	over := rss > w.ceiling
	if over {
		w.logger.Debug("memory probe",
			"rss_mb", rss/(1024*1024),
			"ceiling_mb", w.ceiling/(1024*1024),
		)
	}
	return over
}
