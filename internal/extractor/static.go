package extractor

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"articlescout/internal/fetcher"
	"articlescout/internal/pagemeta"
	"articlescout/internal/types"
)

// blogContainerSelector locates elements whose class or id hints at a
// listing of posts.
const blogContainerSelector = `[class*="blog"], [id*="blog"], [class*="post"], [id*="post"], [class*="article"], [id*="article"]`

// Static extracts candidates from raw HTML without JavaScript execution.
// Two independent passes run and their results are unioned: structured
// data (JSON-LD) and blog-section heuristics.
type Static struct {
	fetch  *fetcher.Client
	logger *slog.Logger
}

// NewStatic creates the static extraction strategy.
func NewStatic(fetch *fetcher.Client, logger *slog.Logger) *Static {
	return &Static{
		fetch:  fetch,
		logger: logger.With("component", "static_extractor"),
	}
}

func (s *Static) Name() string { return "static" }

// Extract fetches the source page and applies both passes. Total failure
// yields an empty list, not an error — the orchestrator treats empty as
// "try the next strategy".
func (s *Static) Extract(ctx context.Context, source types.Source) ([]types.Candidate, error) {
	page, err := s.fetch.Get(ctx, source.URL)
	if err != nil {
		s.logger.Warn("static fetch failed", "source", source.URL, "error", err)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		s.logger.Warn("static parse failed", "source", source.URL, "error", err)
		return nil, nil
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		base, _ = url.Parse(source.URL)
	}

	var candidates []types.Candidate
	candidates = append(candidates, s.fromStructuredData(doc, base)...)
	candidates = append(candidates, s.fromBlogSections(doc, base)...)
	candidates = dedupeByURL(candidates)

	s.logger.Debug("static extraction complete",
		"source", source.URL,
		"candidates", len(candidates),
	)
	return candidates, nil
}

// fromStructuredData reads JSON-LD blocks: Article-like objects directly,
// and ItemList elements pointing at posts.
func (s *Static) fromStructuredData(doc *goquery.Document, base *url.URL) []types.Candidate {
	var out []types.Candidate

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		for _, data := range pagemeta.DecodeJSONLD(raw) {
			out = append(out, candidatesFromJSONLD(data, base)...)
		}
	})

	return out
}

// candidatesFromJSONLD maps one JSON-LD object to candidates.
func candidatesFromJSONLD(data map[string]any, base *url.URL) []types.Candidate {
	typ, _ := data["@type"].(string)

	switch typ {
	case "Article", "BlogPosting", "NewsArticle":
		if c, ok := articleFromJSONLD(data, base); ok {
			return []types.Candidate{c}
		}
	case "ItemList":
		items, _ := data["itemListElement"].([]any)
		var out []types.Candidate
		for _, it := range items {
			entry, ok := it.(map[string]any)
			if !ok {
				continue
			}
			// ListItem wraps the target in "item" or carries url/name itself.
			if inner, ok := entry["item"].(map[string]any); ok {
				entry = inner
			}
			if c, ok := articleFromJSONLD(entry, base); ok {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

func articleFromJSONLD(data map[string]any, base *url.URL) (types.Candidate, bool) {
	title, _ := data["headline"].(string)
	if title == "" {
		title, _ = data["name"].(string)
	}

	href, _ := data["url"].(string)
	if href == "" {
		if main, ok := data["mainEntityOfPage"].(map[string]any); ok {
			href, _ = main["@id"].(string)
		} else if id, ok := data["mainEntityOfPage"].(string); ok {
			href = id
		}
	}

	abs := absoluteURL(base, href)
	if title == "" || abs == "" {
		return types.Candidate{}, false
	}

	c := types.Candidate{Title: cleanTitle(title), URL: abs}
	if desc, ok := data["description"].(string); ok {
		c.Description = strings.TrimSpace(desc)
	}
	if ds, ok := data["datePublished"].(string); ok {
		c.PublishedAt = pagemeta.ParseDate(ds)
	}
	return c, true
}

// fromBlogSections scans containers that look like post listings and
// pairs anchors with headings inside them.
func (s *Static) fromBlogSections(doc *goquery.Document, base *url.URL) []types.Candidate {
	var out []types.Candidate

	doc.Find(blogContainerSelector).Each(func(i int, container *goquery.Selection) {
		container.Find("a[href]").Each(func(j int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			abs := absoluteURL(base, href)
			if abs == "" {
				return
			}

			title := headingForAnchor(a)
			if title == "" {
				return
			}

			c := types.Candidate{Title: title, URL: abs}
			if dateText := a.Closest("li, article, div").Find("time").First().AttrOr("datetime", ""); dateText != "" {
				c.PublishedAt = pagemeta.ParseDate(dateText)
			}
			out = append(out, c)
		})
	})

	return out
}

// headingForAnchor finds the title text for a listing anchor: a heading
// inside the anchor, the anchor's own text, or a heading that wraps it.
func headingForAnchor(a *goquery.Selection) string {
	if h := a.Find("h1, h2, h3, h4").First(); h.Length() > 0 {
		return cleanTitle(h.Text())
	}
	if h := a.Closest("h1, h2, h3, h4"); h.Length() > 0 {
		return cleanTitle(h.Text())
	}
	text := cleanTitle(a.Text())
	if len(text) > 10 {
		return text
	}
	return ""
}
