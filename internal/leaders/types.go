package leaders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apierrors "github.com/olgasafonova/country-leaders-scraper/internal/errors"
)

// CountryCode is a short country key as used by the leaders API ("be", "fr", ...).
type CountryCode string

// NormalizeCountry lowercases and trims a country code.
func NormalizeCountry(s string) CountryCode {
	return CountryCode(strings.ToLower(strings.TrimSpace(s)))
}

func (c CountryCode) String() string { return string(c) }

// DateLayout is the layout of dates built with NewDate.
const DateLayout = "2006-01-02"

// layouts the API has been seen to use, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	DateLayout,
	"2006-01",
	"2006",
}

// Date is a leader date as the API sent it. The raw JSON value is kept and
// written back verbatim; Time holds the parsed calendar date when the value is
// a string in a known layout and is zero otherwise. The zero Date is null.
type Date struct {
	time.Time
	raw json.RawMessage
}

// NewDate returns the Date for year, month and day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s in one of the layouts the API uses. The returned Date
// keeps s as its raw value.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return Date{}, err
	}
	d := Date{raw: raw}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, day := t.Date()
			d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
			return d, nil
		}
	}
	return d, fmt.Errorf("unrecognized date %q", s)
}

// IsNull reports whether the API sent no date.
func (d Date) IsNull() bool {
	return len(d.raw) == 0 && d.Time.IsZero()
}

// String returns the date as the API wrote it, or YYYY-MM-DD for dates built
// with NewDate, or "" for null.
func (d Date) String() string {
	if len(d.raw) > 0 {
		var s string
		if json.Unmarshal(d.raw, &s) == nil {
			return s
		}
		return string(d.raw)
	}
	if d.Time.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	if d.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON never fails on a well-formed JSON value: unknown layouts and
// non-string values are kept as they are with a zero Time.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = Date{raw: append(json.RawMessage(nil), data...)}
		return nil
	}
	parsed, _ := ParseDate(s)
	parsed.raw = append(json.RawMessage(nil), data...)
	*d = parsed
	return nil
}

// Leader is one record from the leaders API, optionally enriched with the
// introductory paragraph of its Wikipedia page.
type Leader struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	BirthDate      Date    `json:"birth_date"`
	DeathDate      Date    `json:"death_date"`
	PlaceOfBirth   string  `json:"place_of_birth"`
	WikipediaURL   string  `json:"wikipedia_url"`
	StartMandate   Date    `json:"start_mandate"`
	EndMandate     Date    `json:"end_mandate"`
	WikipediaIntro *string `json:"wikipedia_intro"`

	// Extra holds fields the API sent that Leader does not model.
	// They are written back verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownLeaderFields = []string{
	"id", "first_name", "last_name", "birth_date", "death_date",
	"place_of_birth", "wikipedia_url", "start_mandate", "end_mandate", "wikipedia_intro",
}

// leaderFields has no methods, so encoding/json uses the default struct codec.
type leaderFields Leader

func (l Leader) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(leaderFields(l)); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if len(l.Extra) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(l.Extra))
	for k := range l.Extra {
		if !isKnownLeaderField(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	// splice the extra members in before the closing brace
	out = out[:len(out)-1]
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, name...)
		out = append(out, ':')
		out = append(out, l.Extra[k]...)
	}
	return append(out, '}'), nil
}

func (l *Leader) UnmarshalJSON(data []byte) error {
	var fields leaderFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownLeaderFields {
		delete(raw, k)
	}
	fields.Extra = nil
	if len(raw) > 0 {
		fields.Extra = raw
	}
	*l = Leader(fields)
	return nil
}

func isKnownLeaderField(k string) bool {
	for _, f := range knownLeaderFields {
		if f == k {
			return true
		}
	}
	return false
}

// FullName joins first and last name.
func (l *Leader) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Validate checks the fields the pipeline relies on.
func (l *Leader) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return apierrors.NewValidationError("id", "", "leader record has no id")
	}
	return nil
}

// Intro returns the Wikipedia intro or "" when it is not set.
func (l *Leader) Intro() string {
	if l.WikipediaIntro == nil {
		return ""
	}
	return *l.WikipediaIntro
}

// SetIntro sets the Wikipedia intro.
func (l *Leader) SetIntro(s string) {
	l.WikipediaIntro = &s
}
