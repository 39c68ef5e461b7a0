package extractor

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func renderedDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	return u
}

func TestRenderedArticleContainers(t *testing.T) {
	html := `<html><body>
<article>
  <h2>Inside the New Query Planner</h2>
  <a href="/blog/inside-the-new-query-planner">Read more</a>
  <time datetime="2025-05-12T09:00:00Z">May 12</time>
</article>
<div class="post-card">
  <a href="/blog/debugging-distributed-locks">
    <h3>Debugging Distributed Locks</h3>
  </a>
  <span class="publish-date">January 8, 2025</span>
</div>
</body></html>`

	got := extractFromRenderedDOM(renderedDoc(t, html), mustParseURL(t, "https://example.com"))
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(got), got)
	}

	if got[0].Title != "Inside the New Query Planner" {
		t.Errorf("Title = %q", got[0].Title)
	}
	if got[0].URL != "https://example.com/blog/inside-the-new-query-planner" {
		t.Errorf("URL = %q", got[0].URL)
	}
	if got[0].PublishedAt == nil {
		t.Error("datetime attribute should be parsed")
	}
	if got[1].PublishedAt == nil {
		t.Error("date-classed text should be parsed")
	}
}

func TestRenderedHeadingLinkPairs(t *testing.T) {
	html := `<html><body>
<div>
  <h2><a href="/posts/why-we-rewrote-our-scheduler-in-go">Why We Rewrote Our Scheduler In Go</a></h2>
</div>
<div>
  <h2><a href="/pricing">Pricing</a></h2>
</div>
<div>
  <h2><a href="/posts/short">Too short</a></h2>
</div>
</body></html>`

	got := extractFromRenderedDOM(renderedDoc(t, html), mustParseURL(t, "https://example.com"))
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(got), got)
	}
	if got[0].Title != "Why We Rewrote Our Scheduler In Go" {
		t.Errorf("Title = %q", got[0].Title)
	}
}

func TestRenderedBlogContainerAnchors(t *testing.T) {
	html := `<html><body>
<section id="blog-grid">
  <a href="/blog/observability-on-a-budget">Observability on a Budget</a>
  <a href="/blog/tags">tags</a>
  <a href="/about">About our company and mission</a>
</section>
</body></html>`

	got := extractFromRenderedDOM(renderedDoc(t, html), mustParseURL(t, "https://example.com"))
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(got), got)
	}
	if got[0].URL != "https://example.com/blog/observability-on-a-budget" {
		t.Errorf("URL = %q", got[0].URL)
	}
}

func TestRenderedDedupesAcrossHeuristics(t *testing.T) {
	// One post visible to all three heuristics at once.
	html := `<html><body>
<section class="blog-list">
  <article class="post-card">
    <h2><a href="/blog/a-single-post-seen-three-ways">A Single Post Seen Three Ways</a></h2>
  </article>
</section>
</body></html>`

	got := extractFromRenderedDOM(renderedDoc(t, html), mustParseURL(t, "https://example.com"))
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 after dedup: %+v", len(got), got)
	}
}

func TestRenderedEmptyPage(t *testing.T) {
	got := extractFromRenderedDOM(renderedDoc(t, "<html><body><p>Nothing here</p></body></html>"), mustParseURL(t, "https://example.com"))
	if len(got) != 0 {
		t.Errorf("got %d candidates from empty page, want 0", len(got))
	}
}
