package pagemeta

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, page string) *Document {
	t.Helper()
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDescriptionMetaTag(t *testing.T) {
	doc := mustParse(t, `<html><head>
		<meta name="description" content="A deep dive into connection pooling for busy Go services.">
	</head><body></body></html>`)

	got := doc.Description()
	if got != "A deep dive into connection pooling for busy Go services." {
		t.Errorf("unexpected description: %q", got)
	}
}

func TestDescriptionOpenGraphFallback(t *testing.T) {
	doc := mustParse(t, `<html><head>
		<meta property="og:description" content="How we cut tail latency in half with a smarter scheduler design.">
	</head><body></body></html>`)

	got := doc.Description()
	if !strings.Contains(got, "tail latency") {
		t.Errorf("expected og:description fallback, got %q", got)
	}
}

func TestDescriptionJSONLD(t *testing.T) {
	doc := mustParse(t, `<html><head>
		<script type="application/ld+json">
		{"@type":"Article","description":"An overview of the storage engine rewrite and what it unlocks for users."}
		</script>
	</head><body></body></html>`)

	got := doc.Description()
	if !strings.Contains(got, "storage engine rewrite") {
		t.Errorf("expected JSON-LD description, got %q", got)
	}
}

func TestDescriptionFirstParagraph(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<article>
			<p>Short.</p>
			<p>We accept the use of cookies on this site to improve your experience.</p>
			<p>This is the real opening paragraph of the article, long enough to qualify as a description candidate.</p>
		</article>
	</body></html>`)

	got := doc.Description()
	if !strings.Contains(got, "real opening paragraph") {
		t.Errorf("expected first substantial paragraph, got %q", got)
	}
}

// Boilerplate phrases disqualify candidates at every level.
func TestDescriptionBoilerplateRejected(t *testing.T) {
	doc := mustParse(t, `<html><head>
		<meta name="description" content="Subscribe to our newsletter for weekly updates and special offers today!">
	</head><body>
		<article>
			<p>The migration to the new queueing layer took three months and taught us a few lessons.</p>
		</article>
	</body></html>`)

	got := doc.Description()
	if !strings.Contains(got, "queueing layer") {
		t.Errorf("expected paragraph to beat boilerplate meta, got %q", got)
	}
}

func TestDescriptionNone(t *testing.T) {
	doc := mustParse(t, `<html><body><p>Tiny.</p></body></html>`)
	if got := doc.Description(); got != "" {
		t.Errorf("expected empty description, got %q", got)
	}
}

func TestDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("many words in a row ", 60)
	doc := mustParse(t, `<html><body><article><p>`+long+`</p></article></body></html>`)

	got := doc.Description()
	if got == "" {
		t.Fatal("expected a description")
	}
	if len(got) > maxDescriptionLen {
		t.Errorf("description not truncated: %d chars", len(got))
	}
}
