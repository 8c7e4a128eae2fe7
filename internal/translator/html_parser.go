package translator

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// CSSParser extracts text from HTML with a goquery selector. When the
// selector matches multiple nodes their texts are joined with blank lines,
// which keeps multi-section changelogs readable.
type CSSParser struct {
	selector string
}

// NewCSSParser creates a parser for the given selector.
func NewCSSParser(selector string) (*CSSParser, error) {
	if selector == "" {
		return nil, errors.New("css parser requires a selector")
	}
	return &CSSParser{selector: selector}, nil
}

// Parse implements NotesParser.
func (p *CSSParser) Parse(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var parts []string
	doc.Find(p.selector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, p.selector)
	}
	return strings.Join(parts, "\n\n"), nil
}

// XPathParser extracts text from HTML with an XPath expression.
type XPathParser struct {
	expr string
}

// NewXPathParser creates a parser for the given expression.
func NewXPathParser(expr string) (*XPathParser, error) {
	if expr == "" {
		return nil, errors.New("xpath parser requires an expression")
	}
	return &XPathParser{expr: expr}, nil
}

// Parse implements NotesParser.
func (p *XPathParser) Parse(data []byte) (string, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	nodes, err := htmlquery.QueryAll(doc, p.expr)
	if err != nil {
		return "", fmt.Errorf("evaluating xpath: %w", err)
	}

	var parts []string
	for _, node := range nodes {
		if text := strings.TrimSpace(nodeText(node)); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, p.expr)
	}
	return strings.Join(parts, "\n\n"), nil
}

func nodeText(node *html.Node) string {
	return htmlquery.InnerText(node)
}
