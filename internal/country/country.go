// Package country holds the static country dataset the search widget filters.
package country

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var defaultData []byte

var (
	// ErrDuplicateID is returned when two records share an identifier.
	ErrDuplicateID = errors.New("duplicate country id")
	// ErrInvalidRecord is returned for records with a missing id, name, or capital.
	ErrInvalidRecord = errors.New("invalid country record")
)

// Record is one dataset entry. Population is display text and is never parsed.
type Record struct {
	ID         int    `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Capital    string `yaml:"capital" json:"capital"`
	Population string `yaml:"population" json:"population"`
}

// Label returns the "Name - Capital" text used for result rows.
func (r Record) Label() string {
	return r.Name + " - " + r.Capital
}

// Dataset is an ordered, read-only list of records.
type Dataset struct {
	records []Record
}

type datasetFile struct {
	Countries []Record `yaml:"countries"`
}

// NewDataset validates records and wraps them in a Dataset.
// The slice is copied; declaration order is preserved.
func NewDataset(records []Record) (*Dataset, error) {
	seen := make(map[int]bool, len(records))
	out := make([]Record, len(records))
	for i, r := range records {
		r.Name = strings.TrimSpace(r.Name)
		r.Capital = strings.TrimSpace(r.Capital)
		r.Population = strings.TrimSpace(r.Population)
		if r.ID <= 0 {
			return nil, fmt.Errorf("%w: entry %d has id %d", ErrInvalidRecord, i, r.ID)
		}
		if r.Name == "" || r.Capital == "" {
			return nil, fmt.Errorf("%w: id %d needs a name and a capital", ErrInvalidRecord, r.ID)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = true
		out[i] = r
	}
	return &Dataset{records: out}, nil
}

// Parse decodes a YAML dataset document.
func Parse(data []byte) (*Dataset, error) {
	var f datasetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return NewDataset(f.Countries)
}

// Default returns the embedded dataset.
func Default() *Dataset {
	ds, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("embedded dataset: %v", err))
	}
	return ds
}

// Load reads a dataset from path, or returns the embedded one when path is empty.
func Load(path string) (*Dataset, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return Parse(data)
}

// Records returns a copy of the records in declaration order.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// ByID looks a record up by identifier.
func (d *Dataset) ByID(id int) (Record, bool) {
	for _, r := range d.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
