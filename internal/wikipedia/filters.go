package wikipedia

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ParagraphFilter reports whether a <p> may be the introductory paragraph.
type ParagraphFilter func(p *goquery.Selection) bool

// boilerplateAncestors are containers whose paragraphs are never the article intro.
const boilerplateAncestors = "table, .infobox, .hatnote, .navbox, .sidebar, .metadata, .thumb, figure, blockquote, .mw-empty-elt"

// SkipEmpty rejects paragraphs with no visible text.
func SkipEmpty(p *goquery.Selection) bool {
	return strings.TrimSpace(p.Text()) != ""
}

// SkipBoilerplate rejects paragraphs inside infoboxes, hatnotes, navboxes, figures and tables.
func SkipBoilerplate(p *goquery.Selection) bool {
	if p.HasClass("mw-empty-elt") {
		return false
	}
	return p.ParentsFiltered(boilerplateAncestors).Length() == 0
}

// SkipCitationOnly rejects paragraphs that are empty once markers are cleaned away.
func SkipCitationOnly(p *goquery.Selection) bool {
	return Clean(p.Text()) != ""
}

// RequireBoldLead accepts paragraphs that contain a non-empty <b> which is not the
// whole paragraph. Wikipedia bolds the article subject in the lead sentence in
// every language edition.
func RequireBoldLead(p *goquery.Selection) bool {
	b := p.Find("b").First()
	if b.Length() == 0 {
		return false
	}
	bold := strings.TrimSpace(b.Text())
	return bold != "" && bold != strings.TrimSpace(p.Text())
}

// MinRunes accepts paragraphs whose cleaned text has at least n characters.
func MinRunes(n int) ParagraphFilter {
	return func(p *goquery.Selection) bool {
		return utf8.RuneCountInString(Clean(p.Text())) >= n
	}
}

// StrictFilters is the default first-pass chain.
func StrictFilters() []ParagraphFilter {
	return []ParagraphFilter{SkipEmpty, SkipBoilerplate, SkipCitationOnly, RequireBoldLead}
}

// RelaxedFilters is tried when no paragraph passes the strict chain.
func RelaxedFilters() []ParagraphFilter {
	return []ParagraphFilter{SkipEmpty, SkipBoilerplate, SkipCitationOnly, MinRunes(20)}
}

func acceptAll(p *goquery.Selection, filters []ParagraphFilter) bool {
	for _, f := range filters {
		if !f(p) {
			return false
		}
	}
	return true
}
