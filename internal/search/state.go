package search

import "github.com/runger/smartsearch/internal/country"

// Phase is the widget phase derived from State's flags.
type Phase int

const (
	PhaseIdle       Phase = iota // Empty query, nothing selected
	PhaseTyping                  // Query below MinQueryLength
	PhaseDebouncing              // Timer armed, not yet fired
	PhaseLoading                 // Filter in flight
	PhaseResults                 // Filter complete (results may be empty)
	PhaseSelected                // A record is selected
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTyping:
		return "typing"
	case PhaseDebouncing:
		return "debouncing"
	case PhaseLoading:
		return "loading"
	case PhaseResults:
		return "results"
	case PhaseSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// State is the search widget's mutable state. The zero value is an idle widget.
//
// Invariants: results is empty whenever a record is selected, and loading is
// true only between BeginFilter and the matching CompleteFilter/FailFilter.
type State struct {
	query    string
	results  []country.Record
	loading  bool
	selected *country.Record

	pending  bool   // debounce timer armed
	filtered bool   // a filter completed for the current query
	token    uint64 // current request token; bumped whenever in-flight work goes stale

	clearShort bool
}

// SetClearShortQueries controls whether results are dropped as soon as the
// query falls below MinQueryLength. By default stale results stay visible
// until a later search replaces them.
func (s *State) SetClearShortQueries(v bool) {
	s.clearShort = v
}

// ChangeQuery records an edit of the input text and clears any selection.
// It reports whether the debounce timer should be (re)armed.
func (s *State) ChangeQuery(text string) bool {
	s.query = text
	s.selected = nil
	s.filtered = false
	s.loading = false
	s.token++

	if !Eligible(text) {
		s.pending = false
		if s.clearShort {
			s.results = nil
		}
		return false
	}
	s.pending = true
	return true
}

// BeginFilter is called when the debounce timer fires for text. It returns the
// request token to attach to the filter, or false when the fire is a no-op:
// a record was selected meanwhile, or text is no longer the current query.
func (s *State) BeginFilter(text string) (uint64, bool) {
	if s.selected != nil || text != s.query || !Eligible(text) {
		s.pending = false
		return 0, false
	}
	s.pending = false
	s.loading = true
	s.token++
	return s.token, true
}

// CompleteFilter applies matches for the request identified by token.
// Stale completions are dropped and reported as false.
func (s *State) CompleteFilter(token uint64, text string, matches []country.Record) bool {
	if token != s.token || s.selected != nil || text != s.query {
		return false
	}
	s.results = matches
	s.loading = false
	s.filtered = true
	return true
}

// FailFilter ends the loading phase of request token without touching results.
func (s *State) FailFilter(token uint64) bool {
	if token != s.token {
		return false
	}
	s.loading = false
	return true
}

// Select picks r, copies its name into the query and drops the result list.
func (s *State) Select(r country.Record) {
	s.selected = &r
	s.query = r.Name
	s.results = nil
	s.loading = false
	s.pending = false
	s.filtered = false
	s.token++
}

// Clear resets the query, results, and selection.
func (s *State) Clear() {
	clearShort := s.clearShort
	token := s.token
	*s = State{clearShort: clearShort, token: token + 1}
}

// Query returns the current query text.
func (s *State) Query() string { return s.query }

// Results returns the current result list.
func (s *State) Results() []country.Record { return s.results }

// Loading reports whether a filter is in flight.
func (s *State) Loading() bool { return s.loading }

// Pending reports whether the debounce timer is armed.
func (s *State) Pending() bool { return s.pending }

// Token returns the current request token.
func (s *State) Token() uint64 { return s.token }

// Selected returns the selected record, if any.
func (s *State) Selected() (country.Record, bool) {
	if s.selected == nil {
		return country.Record{}, false
	}
	return *s.selected, true
}

// ShowEmptyState reports whether the "No results found" message applies.
func (s *State) ShowEmptyState() bool {
	return Eligible(s.query) && s.selected == nil && !s.loading && s.filtered && len(s.results) == 0
}

// Phase derives the current phase from the flags.
func (s *State) Phase() Phase {
	switch {
	case s.selected != nil:
		return PhaseSelected
	case s.loading:
		return PhaseLoading
	case s.pending:
		return PhaseDebouncing
	case s.filtered:
		return PhaseResults
	case s.query == "":
		return PhaseIdle
	case !Eligible(s.query):
		return PhaseTyping
	default:
		return PhaseResults
	}
}
