package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for the discovery pipeline.
type Metrics struct {
	// Extraction metrics
	RunsTotal        atomic.Int64
	RunsFailed       atomic.Int64
	StrategyFailures atomic.Int64
	CandidatesFound  atomic.Int64
	CandidatesKept   atomic.Int64

	// Enrichment metrics
	EnrichBatches   atomic.Int64
	EnrichProcessed atomic.Int64
	EnrichUpdated   atomic.Int64
	EnrichSkipped   atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"articlescout_runs_total", "Total orchestrator runs", m.RunsTotal.Load()},
		{"articlescout_runs_failed_total", "Runs that produced zero valid articles", m.RunsFailed.Load()},
		{"articlescout_strategy_failures_total", "Strategy-level extraction failures", m.StrategyFailures.Load()},
		{"articlescout_candidates_found_total", "Candidates produced by strategies", m.CandidatesFound.Load()},
		{"articlescout_candidates_kept_total", "Candidates surviving validation", m.CandidatesKept.Load()},
		{"articlescout_enrich_batches_total", "Enrichment batches run", m.EnrichBatches.Load()},
		{"articlescout_enrich_processed_total", "Articles examined by enrichment", m.EnrichProcessed.Load()},
		{"articlescout_enrich_updated_total", "Articles actually enriched", m.EnrichUpdated.Load()},
		{"articlescout_enrich_skipped_total", "Articles skipped by enrichment", m.EnrichSkipped.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_total":        m.RunsTotal.Load(),
		"runs_failed":       m.RunsFailed.Load(),
		"strategy_failures": m.StrategyFailures.Load(),
		"candidates_found":  m.CandidatesFound.Load(),
		"candidates_kept":   m.CandidatesKept.Load(),
		"enrich_batches":    m.EnrichBatches.Load(),
		"enrich_processed":  m.EnrichProcessed.Load(),
		"enrich_updated":    m.EnrichUpdated.Load(),
		"enrich_skipped":    m.EnrichSkipped.Load(),
	}
}
