// Package pagemeta extracts publication dates and descriptions from
// article pages. All extraction is pure given the parsed document and
// returns zero values rather than errors when nothing matches.
package pagemeta

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document wraps a single parse of an HTML page, shared between the
// CSS-selector (goquery) and XPath (htmlquery) passes.
type Document struct {
	doc  *goquery.Document
	node *html.Node
}

// Parse builds a Document from raw HTML.
func Parse(body []byte) (*Document, error) {
	node, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Document{
		doc:  goquery.NewDocumentFromNode(node),
		node: node,
	}, nil
}

// FromGoquery wraps an already-parsed goquery document. The XPath pass
// is skipped for documents constructed this way.
func FromGoquery(doc *goquery.Document) *Document {
	return &Document{doc: doc}
}
