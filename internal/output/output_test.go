package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
)

func sampleMapping() Mapping {
	croo := leaders.Leader{
		ID:           "Q1",
		FirstName:    "Alexander",
		LastName:     "De Croo",
		BirthDate:    leaders.NewDate(1975, time.November, 3),
		PlaceOfBirth: "Vilvorde",
		WikipediaURL: "https://fr.wikipedia.org/wiki/Alexander_De_Croo",
		StartMandate: leaders.NewDate(2020, time.October, 1),
		Extra:        map[string]json.RawMessage{"party": json.RawMessage(`"Open VLD"`)},
	}
	croo.SetIntro("Alexander De Croo, né le 3 novembre 1975 à Vilvorde, est un homme d'État belge & libéral.")

	m6 := leaders.Leader{
		ID:           "Q2",
		FirstName:    "محمد",
		LastName:     "السادس",
		WikipediaURL: "https://ar.wikipedia.org/wiki/محمد_السادس",
		StartMandate: leaders.NewDate(1999, time.July, 23),
	}

	return Mapping{
		"be": {croo},
		"ma": {m6},
		"us": {},
	}
}

func TestWriteJSON_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleMapping()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	out := buf.String()

	checks := []string{
		"\n    \"be\": [",
		"\"wikipedia_intro\": null",
		"\"death_date\": null",
		"\"us\": []",
		"né le 3 novembre",
		"محمد",
		"belge & libéral",
		"\"party\": \"Open VLD\"",
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `\u0026`) || strings.Contains(out, `\u00e9`) {
		t.Errorf("output must not escape HTML or non-ASCII:\n%s", out)
	}
}

func TestWriteJSON_Nil(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "{}" {
		t.Errorf("WriteJSON(nil) = %q, want {}", got)
	}
}

func TestJSONFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "leaders.json")
	want := sampleMapping()

	if err := WriteJSONFile(path, want); err != nil {
		t.Fatalf("WriteJSONFile() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	got, err := ReadJSONFile(path)
	if err != nil {
		t.Fatalf("ReadJSONFile() error = %v", err)
	}
	if !reflect.DeepEqual(keys(got), keys(want)) {
		t.Fatalf("countries = %v, want %v", keys(got), keys(want))
	}
	if got["us"] == nil || len(got["us"]) != 0 {
		t.Errorf("us = %#v, want empty list", got["us"])
	}

	// structural equality: re-encoding both sides yields the same document
	var a, b bytes.Buffer
	_ = WriteJSON(&a, want)
	_ = WriteJSON(&b, got)
	if a.String() != b.String() {
		t.Errorf("round trip changed the document:\nwrote %s\nread  %s", a.String(), b.String())
	}

	l := got["be"][0]
	if !l.BirthDate.Equal(want["be"][0].BirthDate.Time) {
		t.Errorf("BirthDate = %v", l.BirthDate)
	}
	if l.WikipediaIntro == nil || *l.WikipediaIntro != *want["be"][0].WikipediaIntro {
		t.Errorf("intro = %v", l.WikipediaIntro)
	}
}

func TestWriteJSONFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaders.json")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSONFile(path, Mapping{"fr": {}}); err != nil {
		t.Fatalf("WriteJSONFile() error = %v", err)
	}
	got, err := ReadJSONFile(path)
	if err != nil {
		t.Fatalf("ReadJSONFile() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %v", got)
	}
}

func TestReadJSON_NullList(t *testing.T) {
	got, err := ReadJSON(strings.NewReader(`{"fr": null}`))
	if err != nil {
		t.Fatal(err)
	}
	if got["fr"] == nil {
		t.Error("null list should decode as empty")
	}
	if _, err := ReadJSON(strings.NewReader(`[1,2]`)); err == nil {
		t.Error("expected error for non-object document")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleMapping()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}

	header := records[0]
	if header[0] != "country" || header[len(header)-1] != "party" {
		t.Errorf("header = %v", header)
	}

	be := records[1]
	if be[0] != "be" || be[1] != "Q1" || be[4] != "1975-11-03" || be[5] != "" {
		t.Errorf("be row = %v", be)
	}
	if be[len(be)-1] != "Open VLD" {
		t.Errorf("extra column = %q", be[len(be)-1])
	}
	if !strings.HasPrefix(be[10], "Alexander De Croo, né le") {
		t.Errorf("intro cell = %q", be[10])
	}

	ma := records[2]
	if ma[0] != "ma" || ma[10] != "" || ma[len(ma)-1] != "" {
		t.Errorf("ma row = %v", ma)
	}
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaders.csv")
	if err := WriteCSVFile(path, sampleMapping()); err != nil {
		t.Fatalf("WriteCSVFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "country,id,first_name") {
		t.Errorf("file starts with %q", string(data[:min(len(data), 40)]))
	}
}

func keys(m Mapping) []leaders.CountryCode {
	out := make([]leaders.CountryCode, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
