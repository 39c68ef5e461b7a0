package pagemeta

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// freeTextScanLimit bounds how much visible body text the free-text date
// scan examines.
const freeTextScanLimit = 15000

// dateMetaXPaths are explicit metadata attributes checked first, in order.
var dateMetaXPaths = []string{
	`//meta[@property='article:published_time']/@content`,
	`//meta[@name='article:published_time']/@content`,
	`//meta[@itemprop='datePublished']/@content`,
	`//meta[@name='date']/@content`,
	`//meta[@name='publish-date']/@content`,
	`//meta[@name='publication_date']/@content`,
	`//meta[@property='og:published_time']/@content`,
}

// dateTextPatterns cover the free-text formats recognized in body text,
// tried in order against the scanned region.
var dateTextPatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`), time.RFC3339},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`), "2006-01-02T15:04:05"},
	{regexp.MustCompile(`[A-Z][a-z]+ \d{1,2}, \d{4}`), "January 2, 2006"},
	{regexp.MustCompile(`\d{1,2} [A-Z][a-z]+ \d{4}`), "2 January 2006"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{4}/\d{2}/\d{2}`), "2006/01/02"},
	{regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), "1/2/2006"},
	{regexp.MustCompile(`\d{1,2}-[A-Z][a-z]{2}-\d{2}\b`), "2-Jan-06"},
}

var relativeDateRe = regexp.MustCompile(`(?i)(\d+)\s*(minute|hour|day|week|month)s?\s+ago`)

// PublishedAt walks the recognition chain: explicit metadata attributes,
// JSON-LD blocks, time elements, class/id-hinted date elements, relative
// phrases, and finally a bounded free-text scan. Returns nil when no sane
// date is found.
func (d *Document) PublishedAt() *time.Time {
	if d.node != nil {
		for _, xp := range dateMetaXPaths {
			if n, err := htmlquery.Query(d.node, xp); err == nil && n != nil {
				if t := ParseDate(htmlquery.InnerText(n)); t != nil {
					return t
				}
			}
		}
	}

	if t := d.jsonLDDate(); t != nil {
		return t
	}

	if t := d.timeElementDate(); t != nil {
		return t
	}

	if t := d.hintedElementDate(); t != nil {
		return t
	}

	text := visibleText(d.doc)
	if len(text) > freeTextScanLimit {
		text = text[:freeTextScanLimit]
	}
	if m := relativeDateRe.FindString(text); m != "" {
		if t := parseRelativeDate(m); t != nil {
			return t
		}
	}
	return scanText(text)
}

// jsonLDDate reads datePublished/dateCreated from embedded JSON-LD blocks.
func (d *Document) jsonLDDate() *time.Time {
	var found *time.Time
	d.doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		for _, data := range DecodeJSONLD(raw) {
			for _, key := range []string{"datePublished", "dateCreated", "dateModified"} {
				if s, ok := data[key].(string); ok {
					if t := ParseDate(s); t != nil {
						found = t
						return false
					}
				}
			}
		}
		return true
	})
	return found
}

// timeElementDate reads <time datetime="..."> attributes and falls back
// to the element text.
func (d *Document) timeElementDate() *time.Time {
	var found *time.Time
	d.doc.Find("time").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if dt, ok := sel.Attr("datetime"); ok {
			if t := ParseDate(dt); t != nil {
				found = t
				return false
			}
		}
		if t := ParseDate(strings.TrimSpace(sel.Text())); t != nil {
			found = t
			return false
		}
		return true
	})
	return found
}

// hintedElementDate reads elements whose class or id hints at a date.
func (d *Document) hintedElementDate() *time.Time {
	var found *time.Time
	sel := `[class*="date"], [id*="date"], [class*="published"], .post-meta, .byline`
	d.doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" || len(text) > 120 {
			return true
		}
		if t := ParseDate(text); t != nil {
			found = t
			return false
		}
		return true
	})
	return found
}

// ParseDate parses a single date string: ISO and common absolute layouts,
// then relative phrases. Every result is range-checked; dates outside
// [now-10y, now+5y] are discarded as false positives (copyright years,
// unrelated numbers). Returns nil when nothing parses.
func ParseDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for _, p := range dateTextPatterns {
		m := p.re.FindString(text)
		if m == "" {
			continue
		}
		t, err := time.Parse(p.layout, m)
		if err != nil {
			continue
		}
		if saneYear(t) {
			return &t
		}
	}

	if m := relativeDateRe.FindString(text); m != "" {
		return parseRelativeDate(m)
	}
	return nil
}

// scanText runs the absolute-date patterns over a block of body text and
// returns the first sane match.
func scanText(text string) *time.Time {
	for _, p := range dateTextPatterns {
		for _, m := range p.re.FindAllString(text, 10) {
			t, err := time.Parse(p.layout, m)
			if err != nil {
				continue
			}
			if saneYear(t) {
				return &t
			}
		}
	}
	return nil
}

// parseRelativeDate resolves "N days/hours/weeks ago" against the
// current time.
func parseRelativeDate(phrase string) *time.Time {
	m := relativeDateRe.FindStringSubmatch(phrase)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}

	var d time.Duration
	switch strings.ToLower(m[2]) {
	case "minute":
		d = time.Duration(n) * time.Minute
	case "hour":
		d = time.Duration(n) * time.Hour
	case "day":
		d = time.Duration(n) * 24 * time.Hour
	case "week":
		d = time.Duration(n) * 7 * 24 * time.Hour
	case "month":
		d = time.Duration(n) * 30 * 24 * time.Hour
	default:
		return nil
	}

	t := time.Now().Add(-d)
	return &t
}

// saneYear guards against copyright years and stray numbers parsed as
// dates: the year must fall within [current-10, current+5].
func saneYear(t time.Time) bool {
	year := time.Now().Year()
	return t.Year() >= year-10 && t.Year() <= year+5
}

// DecodeJSONLD parses a JSON-LD payload as an object, an array of
// objects, or an object with an @graph array.
func DecodeJSONLD(raw string) []map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		if graph, ok := obj["@graph"].([]any); ok {
			out := []map[string]any{obj}
			for _, g := range graph {
				if m, ok := g.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out
		}
		return []map[string]any{obj}
	}

	var arr []map[string]any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr
	}
	return nil
}

// visibleText extracts body text with scripts and styles removed.
func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}
