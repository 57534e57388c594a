package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
)

// csvColumns follow the leader JSON field names after the leading country column.
var csvColumns = []string{
	"country", "id", "first_name", "last_name", "birth_date", "death_date",
	"place_of_birth", "wikipedia_url", "start_mandate", "end_mandate", "wikipedia_intro",
}

// WriteCSV writes one row per leader. Countries are sorted, leaders keep their
// order. Fields the API sent beyond the modelled ones become extra columns,
// sorted by name.
func WriteCSV(w io.Writer, m Mapping) error {
	countries := make([]leaders.CountryCode, 0, len(m))
	extraSet := map[string]bool{}
	for c, ls := range m {
		countries = append(countries, c)
		for _, l := range ls {
			for k := range l.Extra {
				extraSet[k] = true
			}
		}
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i] < countries[j] })
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, csvColumns...), extras...)); err != nil {
		return err
	}
	for _, c := range countries {
		for _, l := range m[c] {
			row := []string{
				string(c), l.ID, l.FirstName, l.LastName,
				l.BirthDate.String(), l.DeathDate.String(),
				l.PlaceOfBirth, l.WikipediaURL,
				l.StartMandate.String(), l.EndMandate.String(),
				l.Intro(),
			}
			for _, k := range extras {
				row = append(row, extraValue(l.Extra[k]))
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write row for %s/%s: %w", c, l.ID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes m to path atomically under an advisory lock on path.lock.
func WriteCSVFile(path string, m Mapping) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, m)
	})
}

// extraValue renders a raw JSON value as a cell: strings unquoted, null empty,
// anything else as compact JSON.
func extraValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
