// Package extractor implements the article extraction strategies tried
// by the orchestrator: static HTML, rendered DOM, and agentic search.
// Every strategy satisfies the same contract and returns candidates with
// absolute URLs; an empty result with a nil error means "found nothing,
// try the next strategy".
package extractor

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"articlescout/internal/types"
)

// Extractor is one extraction strategy.
type Extractor interface {
	// Name identifies the strategy in logs and health records.
	Name() string

	// Extract lists candidate articles for a source. A nil error with an
	// empty slice means the strategy ran and found nothing; a
	// *types.ExtractionError means the strategy's upstream dependency
	// confirmed it cannot proceed.
	Extract(ctx context.Context, source types.Source) ([]types.Candidate, error)
}

// dedupeByURL keeps the first candidate per exact URL.
func dedupeByURL(candidates []types.Candidate) []types.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// absoluteURL resolves href against base, returning "" when either side
// is unparseable.
func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// SortNewestFirst orders dated candidates newest first; undated
// candidates sort after any dated one. The sort is stable so ties keep
// extraction order.
func SortNewestFirst(candidates []types.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].PublishedAt, candidates[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// cleanTitle collapses whitespace in extracted titles.
func cleanTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
