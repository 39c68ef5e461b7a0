package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"articlescout/internal/config"
	"articlescout/internal/types"
)

const (
	sourcesCollection  = "sources"
	articlesCollection = "articles"

	opTimeout = 30 * time.Second
)

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client   *mongo.Client
	sources  *mongo.Collection
	articles *mongo.Collection
	logger   *slog.Logger
}

// NewMongo connects, pings, and ensures the unique URL index that backs
// article dedup across runs.
func NewMongo(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Mongo{
		client:   client,
		sources:  db.Collection(sourcesCollection),
		articles: db.Collection(articlesCollection),
		logger:   logger.With("component", "mongo_storage"),
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		s.logger.Warn("index creation failed", "error", err)
	}
	return s, nil
}

func (s *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := s.articles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *Mongo) GetSourceByID(ctx context.Context, id string) (*types.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var src types.Source
	err := s.sources.FindOne(ctx, bson.M{"_id": id}).Decode(&src)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &types.StorageError{Op: "get_source", Err: fmt.Errorf("source %q not found", id)}
	}
	if err != nil {
		return nil, &types.StorageError{Op: "get_source", Err: err}
	}
	return &src, nil
}

func (s *Mongo) ListActiveSources(ctx context.Context) ([]types.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := s.sources.Find(ctx, bson.M{"paused": bson.M{"$ne": true}})
	if err != nil {
		return nil, &types.StorageError{Op: "list_sources", Err: err}
	}
	defer cursor.Close(ctx)

	var sources []types.Source
	if err := cursor.All(ctx, &sources); err != nil {
		return nil, &types.StorageError{Op: "list_sources", Err: err}
	}
	return sources, nil
}

// SaveArticles upserts each article by URL. A URL already present keeps
// its stored row; only genuinely new articles count as inserted.
func (s *Mongo) SaveArticles(ctx context.Context, articles []types.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(articles))
	for _, a := range articles {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"url": a.URL}).
			SetUpdate(bson.M{"$setOnInsert": a}).
			SetUpsert(true))
	}

	res, err := s.articles.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, &types.StorageError{Op: "save_articles", Err: err}
	}

	inserted := int(res.UpsertedCount)
	s.logger.Debug("articles saved", "submitted", len(articles), "inserted", inserted)
	return inserted, nil
}

// GetArticlesNeedingEnrichment selects articles with no publication date
// or a description under the useful minimum, oldest first so backfill
// makes steady progress.
func (s *Mongo) GetArticlesNeedingEnrichment(ctx context.Context, limit int) ([]types.EnrichmentTarget, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"pub_date": bson.M{"$exists": false}},
		bson.M{"pub_date": nil},
		bson.M{"$expr": bson.M{"$lt": bson.A{
			bson.M{"$strLenCP": bson.M{"$ifNull": bson.A{"$description", ""}}},
			types.MinUsefulDescription,
		}}},
	}}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.articles.Find(ctx, filter, opts)
	if err != nil {
		return nil, &types.StorageError{Op: "find_enrichment_targets", Err: err}
	}
	defer cursor.Close(ctx)

	var targets []types.EnrichmentTarget
	if err := cursor.All(ctx, &targets); err != nil {
		return nil, &types.StorageError{Op: "find_enrichment_targets", Err: err}
	}
	return targets, nil
}

// EnrichArticle sets only the fields present in the patch.
func (s *Mongo) EnrichArticle(ctx context.Context, id string, patch types.EnrichmentPatch) error {
	if patch.Empty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	set := bson.M{}
	if patch.PublishedAt != nil {
		set["pub_date"] = *patch.PublishedAt
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}

	res, err := s.articles.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return &types.StorageError{Op: "enrich_article", Err: err}
	}
	if res.MatchedCount == 0 {
		return &types.StorageError{Op: "enrich_article", Err: fmt.Errorf("article %q not found", id)}
	}
	return nil
}

// UpdateScrapingResult embeds the latest health summary on the source
// document, replacing the previous one.
func (s *Mongo) UpdateScrapingResult(ctx context.Context, sourceID string, rec types.ScrapeHealth) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.sources.UpdateOne(ctx,
		bson.M{"_id": sourceID},
		bson.M{"$set": bson.M{"scrape_health": rec}},
	)
	if err != nil {
		return &types.StorageError{Op: "update_scrape_health", Err: err}
	}
	return nil
}

func (s *Mongo) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
