package extractor

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"articlescout/internal/fetcher"
	"articlescout/internal/pagemeta"
	"articlescout/internal/types"
)

// articleHrefRe matches link targets that look like individual posts.
var articleHrefRe = regexp.MustCompile(`/(blog|post|article)s?/`)

// Rendered extracts candidates from a JavaScript-executed snapshot of the
// page. Invoked only when static extraction yields nothing.
type Rendered struct {
	browser     *fetcher.Browser
	navTimeout  time.Duration
	settleDelay time.Duration
	logger      *slog.Logger
}

// NewRendered creates the rendered-DOM extraction strategy on a shared
// browser handle.
func NewRendered(browser *fetcher.Browser, navTimeout, settleDelay time.Duration, logger *slog.Logger) *Rendered {
	return &Rendered{
		browser:     browser,
		navTimeout:  navTimeout,
		settleDelay: settleDelay,
		logger:      logger.With("component", "rendered_extractor"),
	}
}

func (r *Rendered) Name() string { return "rendered" }

// Extract renders the page and applies three DOM heuristics. When the
// browser runtime is unavailable the strategy logs and reports empty
// rather than propagating. The page is always closed, on every exit path.
func (r *Rendered) Extract(ctx context.Context, source types.Source) ([]types.Candidate, error) {
	page, err := r.browser.Page()
	if err != nil {
		if errors.Is(err, types.ErrBrowserUnavailable) {
			r.logger.Warn("browser unavailable, skipping rendered extraction", "source", source.URL)
			return nil, nil
		}
		r.logger.Warn("page creation failed", "source", source.URL, "error", err)
		return nil, nil
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.logger.Warn("page close failed", "source", source.URL, "error", cerr)
		}
	}()

	html, err := r.render(ctx, page, source.URL)
	if err != nil {
		r.logger.Warn("render failed", "source", source.URL, "error", err)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.logger.Warn("rendered parse failed", "source", source.URL, "error", err)
		return nil, nil
	}

	base, err := url.Parse(source.URL)
	if err != nil {
		return nil, nil
	}

	candidates := extractFromRenderedDOM(doc, base)

	r.logger.Debug("rendered extraction complete",
		"source", source.URL,
		"candidates", len(candidates),
	)
	return candidates, nil
}

// render navigates and waits for the page to quiesce. Stability timeouts
// are logged and tolerated; lazy content gets a fixed settle period.
func (r *Rendered) render(ctx context.Context, page *rod.Page, rawURL string) (string, error) {
	page = page.Context(ctx)

	if err := page.Timeout(r.navTimeout).Navigate(rawURL); err != nil {
		return "", err
	}

	if err := page.Timeout(r.navTimeout).WaitStable(300 * time.Millisecond); err != nil {
		r.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}

	// Let lazy-loaded listings settle.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(r.settleDelay):
	}

	return page.HTML()
}

// extractFromRenderedDOM applies the three heuristics and deduplicates
// across them. Split out from Extract so tests can exercise it on fixture
// HTML without a browser.
func extractFromRenderedDOM(doc *goquery.Document, base *url.URL) []types.Candidate {
	var candidates []types.Candidate
	candidates = append(candidates, articleContainers(doc, base)...)
	candidates = append(candidates, headingLinkPairs(doc, base)...)
	candidates = append(candidates, blogContainerAnchors(doc, base)...)
	return dedupeByURL(candidates)
}

// articleContainers: article-like elements holding an anchor, a heading,
// and optionally a date.
func articleContainers(doc *goquery.Document, base *url.URL) []types.Candidate {
	var out []types.Candidate

	doc.Find(`article, [class*="article-card"], [class*="post-card"], [class*="blog-card"]`).Each(func(i int, el *goquery.Selection) {
		a := el.Find("a[href]").First()
		if a.Length() == 0 {
			return
		}
		abs := absoluteURL(base, a.AttrOr("href", ""))
		if abs == "" {
			return
		}

		title := cleanTitle(el.Find("h1, h2, h3, h4").First().Text())
		if title == "" {
			title = cleanTitle(a.Text())
		}
		if title == "" {
			return
		}

		c := types.Candidate{Title: title, URL: abs}
		if dt := el.Find("time").First().AttrOr("datetime", ""); dt != "" {
			c.PublishedAt = pagemeta.ParseDate(dt)
		} else if dateText := el.Find(`[class*="date"]`).First().Text(); dateText != "" {
			c.PublishedAt = pagemeta.ParseDate(dateText)
		}
		out = append(out, c)
	})

	return out
}

// headingLinkPairs: headings of plausible title length paired with a
// nearby post-like link.
func headingLinkPairs(doc *goquery.Document, base *url.URL) []types.Candidate {
	var out []types.Candidate

	doc.Find("h1, h2, h3, h4").Each(func(i int, h *goquery.Selection) {
		title := cleanTitle(h.Text())
		if len(title) < 30 || len(title) > 200 {
			return
		}

		href := nearbyHref(h)
		if href == "" || !articleHrefRe.MatchString(href) {
			return
		}
		abs := absoluteURL(base, href)
		if abs == "" {
			return
		}
		out = append(out, types.Candidate{Title: title, URL: abs})
	})

	return out
}

// nearbyHref looks for a link associated with a heading: inside it,
// wrapping it, or within its parent.
func nearbyHref(h *goquery.Selection) string {
	if a := h.Find("a[href]").First(); a.Length() > 0 {
		return a.AttrOr("href", "")
	}
	if a := h.Closest("a[href]"); a.Length() > 0 {
		return a.AttrOr("href", "")
	}
	if a := h.Parent().Find("a[href]").First(); a.Length() > 0 {
		return a.AttrOr("href", "")
	}
	return ""
}

// blogContainerAnchors: anchors inside blog-like containers whose href
// matches a post pattern and whose text is substantial.
func blogContainerAnchors(doc *goquery.Document, base *url.URL) []types.Candidate {
	var out []types.Candidate

	doc.Find(blogContainerSelector).Each(func(i int, container *goquery.Selection) {
		container.Find("a[href]").Each(func(j int, a *goquery.Selection) {
			href := a.AttrOr("href", "")
			if !articleHrefRe.MatchString(href) {
				return
			}
			text := cleanTitle(a.Text())
			if len(text) <= 10 {
				return
			}
			abs := absoluteURL(base, href)
			if abs == "" {
				return
			}
			out = append(out, types.Candidate{Title: text, URL: abs})
		})
	})

	return out
}
