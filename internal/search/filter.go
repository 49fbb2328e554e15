// Package search implements the country filter and the search widget's
// state machine, independent of any terminal.
package search

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/runger/smartsearch/internal/country"
)

// MinQueryLength is the shortest query, in characters, that triggers filtering.
const MinQueryLength = 3

// ErrQueryTooShort is returned by CheckQuery for queries below MinQueryLength.
var ErrQueryTooShort = errors.New("query too short")

// Eligible reports whether query is long enough to be filtered.
func Eligible(query string) bool {
	return utf8.RuneCountInString(query) >= MinQueryLength
}

// CheckQuery returns ErrQueryTooShort unless query is Eligible.
func CheckQuery(query string) error {
	if !Eligible(query) {
		return fmt.Errorf("%w: %q has fewer than %d characters", ErrQueryTooShort, query, MinQueryLength)
	}
	return nil
}

// Fold lower-cases s for matching.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Filter returns the records matching query in their original order.
// The result is never nil.
func Filter(records []country.Record, query string) []country.Record {
	q := Fold(query)
	out := []country.Record{}
	for _, r := range records {
		if strings.Contains(Fold(r.Name), q) || strings.Contains(Fold(r.Capital), q) {
			out = append(out, r)
		}
	}
	return out
}

// Limit returns the first limit records. limit <= 0 means no limit.
func Limit(records []country.Record, limit int) []country.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
