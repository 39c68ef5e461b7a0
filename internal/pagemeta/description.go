package pagemeta

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minDescriptionLen is the shortest paragraph accepted as a description.
const minDescriptionLen = 50

// maxDescriptionLen caps stored descriptions.
const maxDescriptionLen = 500

// boilerplatePhrases disqualify a paragraph from serving as a description.
var boilerplatePhrases = []string{
	"cookie",
	"privacy policy",
	"consent",
	"sign up",
	"subscribe",
}

// descriptionMetaSelectors are meta-tag equivalents checked first, in order.
var descriptionMetaSelectors = []string{
	`meta[name="description"]`,
	`meta[property="og:description"]`,
	`meta[name="twitter:description"]`,
}

// Description walks the recognition chain: meta description tags, JSON-LD
// description fields, then the first substantial paragraph inside an
// article-like container. Returns "" when nothing qualifies.
func (d *Document) Description() string {
	for _, sel := range descriptionMetaSelectors {
		if content, ok := d.doc.Find(sel).First().Attr("content"); ok {
			if desc := cleanDescription(content); desc != "" {
				return desc
			}
		}
	}

	if desc := d.jsonLDDescription(); desc != "" {
		return desc
	}

	return d.firstParagraph()
}

// jsonLDDescription reads description/articleBody fields from embedded
// JSON-LD blocks.
func (d *Document) jsonLDDescription() string {
	var found string
	d.doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		for _, data := range DecodeJSONLD(raw) {
			for _, key := range []string{"description", "articleBody", "abstract"} {
				if s, ok := data[key].(string); ok {
					if desc := cleanDescription(s); desc != "" {
						found = desc
						return false
					}
				}
			}
		}
		return true
	})
	return found
}

// firstParagraph returns the first paragraph within an article-like
// container that is long enough and not boilerplate.
func (d *Document) firstParagraph() string {
	var found string
	containers := `article p, main p, [class*="article"] p, [class*="post"] p, [class*="content"] p`
	d.doc.Find(containers).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) <= minDescriptionLen {
			return true
		}
		if isBoilerplate(text) {
			return true
		}
		found = truncate(text, maxDescriptionLen)
		return false
	})
	return found
}

func cleanDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) == 0 || isBoilerplate(s) {
		return ""
	}
	return truncate(s, maxDescriptionLen)
}

func isBoilerplate(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if idx := strings.LastIndex(cut, " "); idx > n/2 {
		cut = cut[:idx]
	}
	return cut
}
