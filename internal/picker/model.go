// Package picker is the Bubble Tea front end of the country search widget.
package picker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/search"
)

const (
	// DefaultDebounce is the quiet period after the last keystroke before filtering.
	DefaultDebounce = 300 * time.Millisecond

	defaultMaxVisible = 8
	defaultInputWidth = 40
	maxQueryLength    = 256
)

// fetchDoneMsg is sent when an async Provider.Fetch completes.
type fetchDoneMsg struct {
	requestID uint64
	query     string
	records   []country.Record
	err       error
}

// debounceMsg fires after the debounce timer expires.
type debounceMsg struct {
	id    uint64 // Must match debounceID to be accepted
	query string
}

// initMsg is sent by Init() so that an initial query is applied via Update.
type initMsg struct{}

// Model is the Bubble Tea model for the search widget.
type Model struct {
	state search.State

	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	provider Provider
	logger   *slog.Logger
	session  string

	debounce   time.Duration
	maxVisible int

	cursor   int // Index into results; -1 when none
	offset   int // First visible result row
	spinning bool
	err      error

	accepted  bool
	cancelled bool

	width  int
	height int

	// debounceID tracks the latest debounce timer; only a matching
	// debounceMsg will trigger a fetch.
	debounceID uint64

	// cancelDebounce releases the goroutine waiting on the armed timer.
	cancelDebounce context.CancelFunc

	// cancelFetch cancels the in-flight Provider.Fetch context.
	cancelFetch context.CancelFunc
}

// Option configures a Model.
type Option func(*Model)

// WithQuery pre-fills the input. The query is filtered after Init like a typed one.
func WithQuery(q string) Option {
	return func(m *Model) { m.input.SetValue(q) }
}

// WithDebounce overrides the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(m *Model) {
		if d >= 0 {
			m.debounce = d
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClearShortQueries drops results as soon as the query is too short to filter.
func WithClearShortQueries(v bool) Option {
	return func(m *Model) { m.state.SetClearShortQueries(v) }
}

// WithMaxVisible caps the number of dropdown rows.
func WithMaxVisible(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxVisible = n
		}
	}
}

// NewModel creates a new search widget Model.
func NewModel(provider Provider, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Search for a country..."
	ti.Prompt = ""
	ti.CharLimit = maxQueryLength
	ti.Width = defaultInputWidth
	ti.PlaceholderStyle = placeholderStyle
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)

	m := Model{
		input:      ti,
		spinner:    sp,
		help:       help.New(),
		keys:       defaultKeyMap(),
		provider:   provider,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		session:    uuid.NewString(),
		debounce:   DefaultDebounce,
		maxVisible: defaultMaxVisible,
		cursor:     -1,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.logger = m.logger.With("session", m.session)
	return m
}

// Result returns the accepted record. ok is false unless the user accepted a selection.
func (m Model) Result() (rec country.Record, ok bool) {
	if !m.accepted {
		return country.Record{}, false
	}
	return m.state.Selected()
}

// Cancelled reports whether the user quit without accepting.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// SessionID returns the id attached to this widget's log lines.
func (m Model) SessionID() string {
	return m.session
}

// Query returns the current query text.
func (m Model) Query() string {
	return m.state.Query()
}

// Results returns the current result list.
func (m Model) Results() []country.Record {
	return m.state.Results()
}

// Loading reports whether a filter is in flight.
func (m Model) Loading() bool {
	return m.state.Loading()
}

// Selected returns the selected record, if any.
func (m Model) Selected() (country.Record, bool) {
	return m.state.Selected()
}

// Phase returns the widget phase.
func (m Model) Phase() search.Phase {
	return m.state.Phase()
}

// Close cancels the pending debounce timer and any in-flight fetch.
// Call it on the model returned by tea.Program.Run.
func (m Model) Close() {
	m.stopDebounce()
	m.stopFetch()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg { return initMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = m.inputWidth()
		m.scrollToCursor()
		return m, nil

	case debounceMsg:
		return m.handleDebounce(msg)

	case fetchDoneMsg:
		return m.handleFetchDone(msg)

	case spinner.TickMsg:
		if !m.state.Loading() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case initMsg:
		var cmd tea.Cmd
		if q := m.input.Value(); q != "" {
			cmd = m.queryChanged(q)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelled = true
		m.Close()
		m.logger.Debug("widget cancelled")
		return m, tea.Quit

	case key.Matches(msg, m.keys.Clear):
		_, selected := m.state.Selected()
		if m.state.Query() == "" && !selected && len(m.state.Results()) == 0 {
			m.cancelled = true
			m.Close()
			m.logger.Debug("widget cancelled")
			return m, tea.Quit
		}
		m.clear()
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if rec, ok := m.state.Selected(); ok {
			m.accepted = true
			m.Close()
			m.logger.Info("selection accepted", "id", rec.ID, "name", rec.Name)
			return m, tea.Quit
		}
		results := m.state.Results()
		if m.cursor >= 0 && m.cursor < len(results) {
			m.selectRecord(results[m.cursor])
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.state.Loading() {
			return m, nil
		}
		if m.cursor > 0 {
			m.cursor--
			m.scrollToCursor()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.state.Loading() {
			return m, nil
		}
		if m.cursor < len(m.state.Results())-1 {
			m.cursor++
			m.scrollToCursor()
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		cmd = tea.Batch(cmd, m.queryChanged(after))
	}
	return m, cmd
}

// queryChanged feeds an edit into the state machine and (re)arms the
// debounce timer when the query is long enough.
func (m *Model) queryChanged(text string) tea.Cmd {
	m.stopFetch()
	m.err = nil
	arm := m.state.ChangeQuery(text)
	m.clampCursor()
	if !arm {
		m.stopDebounce()
		return nil
	}
	return m.startDebounce(text)
}

// handleDebounce starts the fetch if the debounce timer is still current.
func (m Model) handleDebounce(msg debounceMsg) (tea.Model, tea.Cmd) {
	if msg.id != m.debounceID {
		return m, nil // Stale debounce timer; ignore.
	}
	m.stopDebounce()

	token, ok := m.state.BeginFilter(msg.query)
	if !ok {
		return m, nil
	}
	m.logger.Debug("filter started", "query", msg.query, "request", token)

	cmds := []tea.Cmd{m.startFetch(token, msg.query)}
	if !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

// handleFetchDone processes the result of an async fetch.
func (m Model) handleFetchDone(msg fetchDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if !m.state.FailFilter(msg.requestID) {
			return m, nil
		}
		m.stopFetch()
		if !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
			m.logger.Warn("filter failed", "query", msg.query, "request", msg.requestID, "error", msg.err)
		}
		return m, nil
	}

	if !m.state.CompleteFilter(msg.requestID, msg.query, msg.records) {
		m.logger.Debug("stale filter result dropped", "query", msg.query, "request", msg.requestID)
		return m, nil
	}
	m.stopFetch()
	m.offset = 0
	m.cursor = -1
	m.clampCursor()
	m.logger.Debug("filter completed", "query", msg.query, "request", msg.requestID, "matches", len(msg.records))
	return m, nil
}

func (m *Model) selectRecord(rec country.Record) {
	m.stopDebounce()
	m.stopFetch()
	m.state.Select(rec)
	m.input.SetValue(rec.Name)
	m.input.CursorEnd()
	m.cursor = -1
	m.offset = 0
	m.err = nil
	m.logger.Info("country selected", "id", rec.ID, "name", rec.Name)
}

func (m *Model) clear() {
	m.stopDebounce()
	m.stopFetch()
	m.state.Clear()
	m.input.SetValue("")
	m.cursor = -1
	m.offset = 0
	m.err = nil
	m.logger.Debug("widget cleared")
}

// startDebounce cancels the armed timer, if any, and returns a command that
// delivers a debounceMsg after the quiet period. The command returns nil
// without waiting out the period once its timer is cancelled.
func (m *Model) startDebounce(query string) tea.Cmd {
	m.stopDebounce()
	m.debounceID++
	id := m.debounceID

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDebounce = cancel

	d := m.debounce
	return func() tea.Msg {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return debounceMsg{id: id, query: query}
		case <-ctx.Done():
			return nil
		}
	}
}

// startFetch cancels any in-flight fetch and returns a tea.Cmd that calls
// the provider for request token.
func (m *Model) startFetch(token uint64, query string) tea.Cmd {
	m.stopFetch()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFetch = cancel

	req := Request{RequestID: token, Query: query}
	p := m.provider
	return func() tea.Msg {
		resp, err := p.Fetch(ctx, req)
		if err != nil {
			return fetchDoneMsg{requestID: token, query: query, err: err}
		}
		return fetchDoneMsg{requestID: token, query: query, records: resp.Records}
	}
}

func (m *Model) stopDebounce() {
	if m.cancelDebounce != nil {
		m.cancelDebounce()
		m.cancelDebounce = nil
	}
}

func (m *Model) stopFetch() {
	if m.cancelFetch != nil {
		m.cancelFetch()
		m.cancelFetch = nil
	}
}

// clampCursor keeps the cursor within the result list.
func (m *Model) clampCursor() {
	n := len(m.state.Results())
	if n == 0 {
		m.cursor = -1
		m.offset = 0
		return
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	m.scrollToCursor()
}

// scrollToCursor adjusts offset so that the cursor row is visible.
func (m *Model) scrollToCursor() {
	rows := m.listHeight()
	if m.cursor < 0 {
		m.offset = 0
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

// listHeight returns the number of dropdown rows that fit the terminal.
func (m Model) listHeight() int {
	// title, input box (3 rows), status line, help line
	const chrome = 6
	h := m.maxVisible
	if m.height > 0 && m.height-chrome < h {
		h = m.height - chrome
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) inputWidth() int {
	// border, padding, glyph, clear marker
	const chrome = 10
	w := m.width - chrome
	if w < 10 {
		w = 10
	}
	return w
}
