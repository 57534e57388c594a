package wikipedia

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

type replacement struct {
	re   *regexp.Regexp
	with string
}

// cleaners run in order over the raw paragraph text.
var cleaners = []replacement{
	// invisible direction marks and zero-width characters
	{regexp.MustCompile(`[\x{200B}-\x{200F}\x{FEFF}]`), ""},

	// audio pronunciation: "(listen ⓘ)", "(/ˈmækrɒn/ ⓘ; born ...)", "Macronⓘ"
	{regexp.MustCompile(`\([^()]*ⓘ\s*\)`), ""},
	{regexp.MustCompile(`\([^()]*ⓘ\s*[;,]\s*`), "("},
	{regexp.MustCompile(`\[[^\[\]]*ⓘ\s*\]?`), ""},
	{regexp.MustCompile(`\S*ⓘ`), ""},

	// IPA slash blocks inside parentheses: "(/ɛmanɥɛl/; born ...)" and "(/ɛmanɥɛl/)"
	{regexp.MustCompile(`\(\s*/[^/()]*/\s*[;,]\s*`), "("},
	{regexp.MustCompile(`\(\s*/[^/()]*/\s*\)`), ""},

	// citation markers: [1], [a], [note 2], [citation needed], [réf. nécessaire]
	{regexp.MustCompile(`\[[^\[\]]{1,24}\]`), ""},

	// parentheses emptied by the rules above
	{regexp.MustCompile(`\(\s*[;,]\s*`), "("},
	{regexp.MustCompile(`\s*[;,]\s*\)`), ")"},
	{regexp.MustCompile(`\(\s*\)`), ""},
	{regexp.MustCompile(`\(\s+`), "("},
	{regexp.MustCompile(`\s+\)`), ")"},

	// whitespace, including no-break spaces
	{regexp.MustCompile(`[\s\x{00A0}\x{202F}\x{2009}]+`), " "},
	{regexp.MustCompile(` ([,.])`), "$1"},
}

// Clean strips citation markers, pronunciation fragments and stray whitespace from
// paragraph text and returns it trimmed and NFC-normalized.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	for _, r := range cleaners {
		text = r.re.ReplaceAllString(text, r.with)
	}
	return norm.NFC.String(strings.TrimSpace(text))
}
