// Package sizemap holds the static category→dimensions reference used to size
// cart lines that carry no usable physical data of their own. The document is
// loaded once at startup and treated as read-only; a missing entry is a normal
// outcome, a missing document disables quoting entirely.
package sizemap

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"github.com/wreckyard/checkout/internal/domain"
)

//go:embed sizes.json
var defaultFS embed.FS

// Entry maps a normalized category key to reference dimensions.
type Entry struct {
	Key         string  `json:"key"`
	Weight      float64 `json:"weight"`
	Length      float64 `json:"length"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	PackageType string  `json:"package_type,omitempty"`
}

// Map is the immutable lookup table.
type Map struct {
	entries map[string]Entry
}

// NormalizeKey folds a category label into lookup form: lower-cased, with
// every run of whitespace and punctuation collapsed to a single space.
func NormalizeKey(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Load reads the size map document from path, or the embedded default document
// when path is empty. Entries with invalid dimensions are rejected rather than
// kept as guesses.
func Load(path string) (*Map, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = fs.ReadFile(defaultFS, "sizes.json")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read size map: %w", err)
	}
	return Parse(data)
}

// Parse decodes a size map document. Keys are re-normalized on load so
// hand-edited documents stay safe to use.
func Parse(data []byte) (*Map, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode size map: %w", err)
	}

	m := &Map{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		key := NormalizeKey(e.Key)
		if key == "" {
			return nil, fmt.Errorf("size map entry with empty key")
		}
		if _, ok := domain.NewDimensions(e.Weight, e.Length, e.Width, e.Height); !ok {
			return nil, fmt.Errorf("size map entry %q has invalid dimensions", e.Key)
		}
		e.Key = key
		m.entries[key] = e
	}
	return m, nil
}

// Lookup finds the entry for a category label, normalizing the label first.
// Absence of a match is a valid, expected outcome.
func (m *Map) Lookup(category string) (Entry, bool) {
	e, ok := m.entries[NormalizeKey(category)]
	return e, ok
}

// Dims returns the entry's dimensions as a domain value.
func (e Entry) Dims() domain.Dimensions {
	return domain.Dimensions{
		Weight: e.Weight,
		Length: e.Length,
		Width:  e.Width,
		Height: e.Height,
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}
