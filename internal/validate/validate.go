// Package validate classifies candidate article URLs against their source.
// All functions are pure and deterministic.
package validate

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"articlescout/internal/types"
)

// Reason identifies why a candidate was rejected.
type Reason string

const (
	ReasonMissingURL       Reason = "missing_url"
	ReasonRedirectArtifact Reason = "redirect_artifact"
	ReasonInvalidURL       Reason = "invalid_url"
	ReasonWrongDomain      Reason = "wrong_domain"
	ReasonGenericHomepage  Reason = "generic_homepage"
	ReasonNonArticlePage   Reason = "non_article_page"
	ReasonPathTooShort     Reason = "path_too_short"
	ReasonGenericTitle     Reason = "generic_title"
)

// Rejection is returned when a candidate fails validation.
type Rejection struct {
	URL    string
	Reason Reason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected %q: %s", r.URL, r.Reason)
}

// MinArticlePathLen is the minimum length of the path portion of an
// article URL. Anything shorter is almost always a section index or
// landing page.
const MinArticlePathLen = 11

// redirectMarkers are substrings that identify search-service redirect
// indirections rather than real article URLs.
var redirectMarkers = []string{
	"vertexaisearch.cloud.google.com",
	"grounding-api-redirect",
	"google.com/url?",
	"/url?q=",
	"bing.com/ck/a",
	"duckduckgo.com/l/",
}

// nonArticleSlugs is the fixed denylist of generic page paths, compared
// against the lower-cased path with any trailing slash stripped.
var nonArticleSlugs = map[string]struct{}{
	"/about":            {},
	"/contact":          {},
	"/privacy":          {},
	"/privacy-policy":   {},
	"/terms":            {},
	"/terms-of-service": {},
	"/legal":            {},
	"/careers":          {},
	"/jobs":             {},
	"/team":             {},
	"/faq":              {},
	"/help":             {},
	"/support":          {},
	"/docs":             {},
	"/documentation":    {},
	"/login":            {},
	"/signup":           {},
	"/dashboard":        {},
	"/app":              {},
}

var nonArticlePrefixes = []string{"/about/", "/contact/", "/privacy", "/terms"}

// Candidate checks a candidate against its source. Returns nil on accept
// or a *Rejection carrying the first failed rule.
func Candidate(c types.Candidate, sourceURL string) error {
	if c.URL == "" || c.URL == "null" {
		return &Rejection{URL: c.URL, Reason: ReasonMissingURL}
	}

	for _, marker := range redirectMarkers {
		if strings.Contains(c.URL, marker) {
			return &Rejection{URL: c.URL, Reason: ReasonRedirectArtifact}
		}
	}

	u, err := url.Parse(c.URL)
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return &Rejection{URL: c.URL, Reason: ReasonInvalidURL}
	}

	src, err := url.Parse(sourceURL)
	if err != nil || src.Hostname() == "" {
		return types.ErrInvalidSource
	}

	if normalizeHost(u.Hostname()) != normalizeHost(src.Hostname()) {
		return &Rejection{URL: c.URL, Reason: ReasonWrongDomain}
	}

	path := u.Path
	basePath := strings.TrimRight(src.Path, "/")
	if path == "" || path == "/" || strings.TrimRight(path, "/") == basePath {
		return &Rejection{URL: c.URL, Reason: ReasonGenericHomepage}
	}

	normPath := strings.ToLower(strings.TrimRight(path, "/"))
	if _, banned := nonArticleSlugs[normPath]; banned {
		return &Rejection{URL: c.URL, Reason: ReasonNonArticlePage}
	}
	for _, prefix := range nonArticlePrefixes {
		if strings.HasPrefix(normPath, prefix) {
			return &Rejection{URL: c.URL, Reason: ReasonNonArticlePage}
		}
	}

	if len(path) < MinArticlePathLen {
		return &Rejection{URL: c.URL, Reason: ReasonPathTooShort}
	}

	title := strings.TrimSpace(c.Title)
	if title == "" || title == "Blog" || title == "Home" {
		return &Rejection{URL: c.URL, Reason: ReasonGenericTitle}
	}

	return nil
}

// normalizeHost lower-cases a hostname and strips a leading "www.".
func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// CanonicalKey normalizes a URL for deduplication:
//   - lowercases scheme and host, strips a leading "www."
//   - removes fragment and default ports
//   - sorts query parameters
//   - removes trailing slash (except root)
func CanonicalKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = normalizeHost(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
