package types

import (
	"time"
)

// Source is a website configured for article discovery.
type Source struct {
	ID       string `bson:"_id"      json:"id"`
	URL      string `bson:"url"      json:"url"`
	Name     string `bson:"name"     json:"name"`
	Category string `bson:"category" json:"category"`
	Paused   bool   `bson:"paused"   json:"paused"`
}

// Candidate is an unvalidated extraction result produced by a single
// strategy. URLs are absolute by the time a candidate leaves an extractor.
type Candidate struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Article is a candidate that survived validation, bound to its source.
type Article struct {
	ID          string     `bson:"_id"          json:"id"`
	SourceID    string     `bson:"source_id"    json:"source_id"`
	SourceName  string     `bson:"source_name"  json:"source_name"`
	Category    string     `bson:"category"     json:"category"`
	Title       string     `bson:"title"        json:"title"`
	URL         string     `bson:"url"          json:"url"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	PublishedAt *time.Time `bson:"pub_date,omitempty"    json:"published_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"   json:"created_at"`
}

// ScrapeHealth summarizes the most recent extraction attempt for a source.
// Overwritten after every orchestrator run; diagnostics only.
type ScrapeHealth struct {
	CandidatesFound int           `bson:"candidates_found" json:"candidates_found"`
	CandidatesKept  int           `bson:"candidates_kept"  json:"candidates_kept"`
	Success         bool          `bson:"success"          json:"success"`
	Method          string        `bson:"method"           json:"method"`
	Domain          string        `bson:"domain"           json:"domain"`
	CheckedAt       time.Time     `bson:"checked_at"       json:"checked_at"`
	Duration        time.Duration `bson:"duration_ns"      json:"duration_ns"`
}

// EnrichmentTarget is a persisted article missing a date and/or a usable
// description. Selected by storage query, mutated in place by the
// enrichment worker, never deleted by it.
type EnrichmentTarget struct {
	ID          string     `bson:"_id"      json:"id"`
	URL         string     `bson:"url"      json:"url"`
	Title       string     `bson:"title"    json:"title"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	PublishedAt *time.Time `bson:"pub_date,omitempty"    json:"published_at,omitempty"`
}

// NeedsDate reports whether the target still lacks a publication date.
func (t *EnrichmentTarget) NeedsDate() bool { return t.PublishedAt == nil }

// MinUsefulDescription is the length below which a stored description is
// considered missing for enrichment purposes.
const MinUsefulDescription = 50

// NeedsDescription reports whether the target still lacks a usable
// description.
func (t *EnrichmentTarget) NeedsDescription() bool {
	return len(t.Description) < MinUsefulDescription
}

// EnrichmentPatch carries only the fields the worker actually found.
// Nil fields are left untouched by storage.
type EnrichmentPatch struct {
	PublishedAt *time.Time
	Description *string
}

// Empty reports whether the patch would change nothing.
func (p EnrichmentPatch) Empty() bool {
	return p.PublishedAt == nil && p.Description == nil
}
