// Package storage persists sources, articles and scrape health records.
package storage

import (
	"context"

	"articlescout/internal/types"
)

// Store is the persistence contract the pipeline runs against. The mongo
// backend is the production implementation; tests substitute fakes.
type Store interface {
	// GetSourceByID loads one configured source.
	GetSourceByID(ctx context.Context, id string) (*types.Source, error)

	// ListActiveSources returns all sources not marked paused.
	ListActiveSources(ctx context.Context) ([]types.Source, error)

	// SaveArticles upserts discovered articles keyed by URL, so re-scanning
	// a source never duplicates rows. Returns the number actually inserted.
	SaveArticles(ctx context.Context, articles []types.Article) (int, error)

	// GetArticlesNeedingEnrichment returns up to limit articles missing a
	// publication date or carrying a description too short to be useful.
	GetArticlesNeedingEnrichment(ctx context.Context, limit int) ([]types.EnrichmentTarget, error)

	// EnrichArticle applies a partial update; nil patch fields are left
	// untouched and existing values are never overwritten with less.
	EnrichArticle(ctx context.Context, id string, patch types.EnrichmentPatch) error

	// UpdateScrapingResult overwrites the source's health summary.
	UpdateScrapingResult(ctx context.Context, sourceID string, rec types.ScrapeHealth) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
