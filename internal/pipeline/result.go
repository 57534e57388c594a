package pipeline

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
)

// Stage names where a Failure can occur.
const (
	StageCountries  = "countries"
	StageLeaders    = "leaders"
	StageEnrichment = "enrichment"
	StageValidation = "validation"
)

// Failure records one record or country that could not be processed.
type Failure struct {
	Stage    string              `json:"stage"`
	Country  leaders.CountryCode `json:"country,omitempty"`
	LeaderID string              `json:"leader_id,omitempty"`
	URL      string              `json:"url,omitempty"`
	Error    string              `json:"error"`
}

// ResultSet is the aggregate country -> leaders mapping built by a run.
// It serializes as the bare mapping; failures travel separately.
type ResultSet struct {
	Leaders  map[leaders.CountryCode][]leaders.Leader
	Failures []Failure
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{Leaders: make(map[leaders.CountryCode][]leaders.Leader)}
}

// Ensure creates the key for country with an empty list if it is absent.
func (rs *ResultSet) Ensure(country leaders.CountryCode) {
	if _, ok := rs.Leaders[country]; !ok {
		rs.Leaders[country] = []leaders.Leader{}
	}
}

// Add appends a leader under country.
func (rs *ResultSet) Add(country leaders.CountryCode, l leaders.Leader) {
	rs.Leaders[country] = append(rs.Leaders[country], l)
}

// Fail records a failure.
func (rs *ResultSet) Fail(f Failure) {
	rs.Failures = append(rs.Failures, f)
}

// Countries returns the country keys in sorted order.
func (rs *ResultSet) Countries() []leaders.CountryCode {
	out := make([]leaders.CountryCode, 0, len(rs.Leaders))
	for c := range rs.Leaders {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LeaderCount returns the number of leaders across all countries.
func (rs *ResultSet) LeaderCount() int {
	n := 0
	for _, ls := range rs.Leaders {
		n += len(ls)
	}
	return n
}

// Enriched returns how many leaders carry an intro.
func (rs *ResultSet) Enriched() int {
	n := 0
	for _, ls := range rs.Leaders {
		for i := range ls {
			if ls[i].WikipediaIntro != nil {
				n++
			}
		}
	}
	return n
}

// MarshalJSON writes the mapping without HTML escaping so intros keep
// characters like & and < as-is.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	m := rs.Leaders
	if m == nil {
		m = map[leaders.CountryCode][]leaders.Leader{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads a bare mapping. Failures are not part of the document.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	m := make(map[leaders.CountryCode][]leaders.Leader)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for c, ls := range m {
		if ls == nil {
			m[c] = []leaders.Leader{}
		}
	}
	rs.Leaders = m
	rs.Failures = nil
	return nil
}
