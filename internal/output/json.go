// Package output serializes the country -> leaders mapping to JSON and CSV files.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
)

// Mapping is the document written by a run.
type Mapping = map[leaders.CountryCode][]leaders.Leader

// JSONIndent is the indentation used for JSON files
const JSONIndent = "    "

// WriteJSON writes m as indented JSON. HTML characters are not escaped and
// non-ASCII text is written as UTF-8.
func WriteJSON(w io.Writer, m Mapping) error {
	if m == nil {
		m = Mapping{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", JSONIndent)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode leaders: %w", err)
	}
	return nil
}

// WriteJSONFile writes m to path atomically under an advisory lock on path.lock.
func WriteJSONFile(path string, m Mapping) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteJSON(w, m)
	})
}

// ReadJSON decodes a mapping. Countries mapped to null come back as empty lists.
func ReadJSON(r io.Reader) (Mapping, error) {
	m := Mapping{}
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode leaders: %w", err)
	}
	for c, ls := range m {
		if ls == nil {
			m[c] = []leaders.Leader{}
		}
	}
	return m, nil
}

// ReadJSONFile reads a file written by WriteJSONFile.
func ReadJSONFile(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(bufio.NewReader(f))
}

// writeFileAtomic locks path.lock, writes path.tmp through write and renames it over path.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
