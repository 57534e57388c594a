package wikipedia

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrNoIntro means the page has no paragraph that qualifies as an introduction.
var ErrNoIntro = errors.New("no introductory paragraph found")

// contentRootSelectors locate the article body of a MediaWiki page, most specific first.
var contentRootSelectors = []string{
	"#mw-content-text .mw-parser-output",
	"div.mw-content-ltr",
	"div.mw-content-rtl",
	"#mw-content-text",
	"#bodyContent",
}

// noiseSelectors are removed before any text is read.
const noiseSelectors = "sup.reference, span.mw-editsection, span.mw-cite-backlink, style, script, .noprint, #coordinates, .geo-nondefault"

// Extractor finds the introductory paragraph of a Wikipedia article.
type Extractor struct {
	Strict  []ParagraphFilter
	Relaxed []ParagraphFilter // empty disables the second pass
}

// NewExtractor returns an extractor with the default filter chains.
func NewExtractor() *Extractor {
	return &Extractor{
		Strict:  StrictFilters(),
		Relaxed: RelaxedFilters(),
	}
}

// Extract reads an HTML page and returns the cleaned intro. pageURL is used to
// resolve relative links in the readability fallback and may be nil.
func (e *Extractor) Extract(r io.Reader, pageURL *url.URL) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	for _, root := range e.candidateRoots(doc, raw, pageURL) {
		root.Find(noiseSelectors).Remove()
		paragraphs := root.Find("p")

		if text, ok := firstParagraph(paragraphs, e.Strict); ok {
			return text, nil
		}
		if len(e.Relaxed) > 0 {
			if text, ok := firstParagraph(paragraphs, e.Relaxed); ok {
				return text, nil
			}
		}
	}
	return "", ErrNoIntro
}

// candidateRoots returns the MediaWiki content container when there is one.
// Otherwise it returns the readability article followed by the whole body.
func (e *Extractor) candidateRoots(doc *goquery.Document, raw []byte, pageURL *url.URL) []*goquery.Selection {
	for _, sel := range contentRootSelectors {
		if root := doc.Find(sel).First(); root.Length() > 0 {
			return []*goquery.Selection{root}
		}
	}

	if pageURL == nil {
		pageURL = &url.URL{Scheme: "https", Host: "localhost", Path: "/"}
	}

	var roots []*goquery.Selection
	if article, err := readability.FromReader(bytes.NewReader(raw), pageURL); err == nil && strings.TrimSpace(article.Content) != "" {
		if adoc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			roots = append(roots, adoc.Selection)
		}
	}
	return append(roots, doc.Find("body"))
}

func firstParagraph(paragraphs *goquery.Selection, filters []ParagraphFilter) (string, bool) {
	var text string
	paragraphs.EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if !acceptAll(p, filters) {
			return true
		}
		text = Clean(p.Text())
		return text == ""
	})
	return text, text != ""
}
