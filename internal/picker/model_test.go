package picker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/search"
)

// --- Mock provider ---

var testRecords = []country.Record{
	{ID: 1, Name: "France", Capital: "Paris", Population: "67M"},
	{ID: 2, Name: "Germany", Capital: "Berlin", Population: "83M"},
	{ID: 3, Name: "Paraguay", Capital: "Asunción", Population: "7M"},
}

type mockProvider struct {
	mu      sync.Mutex
	records []country.Record
	err     error
	delay   time.Duration
	queries []string
}

func (p *mockProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	p.mu.Lock()
	p.queries = append(p.queries, req.Query)
	delay, err := p.delay, p.err
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if err != nil {
		return Response{}, err
	}
	return Response{RequestID: req.RequestID, Records: search.Filter(p.records, req.Query)}, nil
}

func (p *mockProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

func newTestModel(p Provider, opts ...Option) Model {
	m := NewModel(p, opts...)
	m.width = 80
	m.height = 24
	return m
}

// runCmd executes a tea.Cmd synchronously and returns the resulting message.
func runCmd(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	result, cmd := m.Update(msg)
	return result.(Model), cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: k})
}

// fireDebounce delivers the current debounce timer and returns the fetch
// command it produced, or nil.
func fireDebounce(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	m, cmd := update(t, m, debounceMsg{id: m.debounceID, query: m.input.Value()})
	if cmd == nil {
		return m, nil
	}
	msg := runCmd(cmd)
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return m, func() tea.Msg { return msg }
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		sub := c()
		if _, ok := sub.(fetchDoneMsg); ok {
			return m, func() tea.Msg { return sub }
		}
	}
	return m, nil
}

// searchFor types s, fires the debounce timer, and delivers the fetch result.
func searchFor(t *testing.T, m Model, s string) Model {
	t.Helper()
	m = typeText(t, m, s)
	m, fetch := fireDebounce(t, m)
	require.NotNil(t, fetch)
	require.True(t, m.Loading())
	m, _ = update(t, m, runCmd(fetch))
	return m
}

func names(records []country.Record) []string {
	out := []string{}
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

// --- State transition tests ---

func TestInitialState(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	assert.Equal(t, search.PhaseIdle, m.Phase())
	assert.Equal(t, -1, m.cursor)
	assert.Empty(t, m.Query())
	assert.NotEmpty(t, m.SessionID())
}

func TestInit_InitialQueryArmsDebounce(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p, WithQuery("ger"))

	msg := runCmd(m.Init())
	batch, ok := msg.(tea.BatchMsg)
	require.True(t, ok)

	var cmd tea.Cmd
	for _, c := range batch {
		if sub := runCmd(c); sub != nil {
			if _, ok := sub.(initMsg); ok {
				m, cmd = update(t, m, sub)
			}
		}
	}
	require.NotNil(t, cmd)
	assert.Equal(t, "ger", m.Query())
	assert.Equal(t, search.PhaseDebouncing, m.Phase())

	m, fetch := fireDebounce(t, m)
	m, _ = update(t, m, runCmd(fetch))
	assert.Equal(t, []string{"Germany"}, names(m.Results()))
}

func TestScenario_FilterSelectClear(t *testing.T) {
	p := &mockProvider{records: testRecords[:2]}
	m := newTestModel(p)

	m = searchFor(t, m, "par")
	assert.Equal(t, []string{"France"}, names(m.Results()))
	assert.False(t, m.Loading())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	m = searchFor(t, m, "ger")
	assert.Equal(t, []string{"Germany"}, names(m.Results()))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	m = searchFor(t, m, "xyz")
	assert.Empty(t, m.Results())
	assert.Contains(t, m.View(), "No results found")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	m = searchFor(t, m, "par")
	m, _ = press(t, m, tea.KeyEnter)
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "France", sel.Name)
	assert.Equal(t, "France", m.Query())
	assert.Equal(t, "France", m.input.Value())
	assert.Empty(t, m.Results())

	view := m.View()
	assert.Contains(t, view, "Country Details")
	assert.Contains(t, view, "Paris")
	assert.Contains(t, view, "67M")

	m, cmd := press(t, m, tea.KeyEsc)
	assert.Nil(t, cmd)
	assert.Empty(t, m.Query())
	assert.Empty(t, m.input.Value())
	assert.Empty(t, m.Results())
	_, ok = m.Selected()
	assert.False(t, ok)
	assert.False(t, m.Cancelled())
}

func TestShortQuery_NoDebounce(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("pa")})
	assert.Equal(t, uint64(0), m.debounceID)
	assert.Nil(t, m.cancelDebounce)
	assert.False(t, m.Loading())
	assert.Equal(t, search.PhaseTyping, m.Phase())
	_ = cmd // cursor blink only
	assert.Empty(t, p.calls())
}

func TestShortQuery_KeepsResults(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = searchFor(t, m, "par")
	require.Len(t, m.Results(), 2)

	m, _ = press(t, m, tea.KeyBackspace)
	assert.Equal(t, "pa", m.Query())
	assert.Len(t, m.Results(), 2)
	assert.NotContains(t, m.View(), "No results found")
}

func TestShortQuery_ClearsResultsWhenConfigured(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p, WithClearShortQueries(true))
	m = searchFor(t, m, "par")
	require.Len(t, m.Results(), 2)

	m, _ = press(t, m, tea.KeyBackspace)
	assert.Empty(t, m.Results())
	assert.Equal(t, -1, m.cursor)
}

func TestShortQuery_CancelsArmedTimer(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = typeText(t, m, "par")
	require.NotNil(t, m.cancelDebounce)
	armed := m.debounceID

	m, _ = press(t, m, tea.KeyBackspace)
	assert.Nil(t, m.cancelDebounce)

	m, cmd := update(t, m, debounceMsg{id: armed, query: "par"})
	assert.Nil(t, cmd)
	assert.False(t, m.Loading())
}

// --- Debounce tests ---

func TestDebounce_NewKeystrokeCancelsPrevious(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)

	m = typeText(t, m, "par")
	first := m.debounceID
	m = typeText(t, m, "a")
	assert.Greater(t, m.debounceID, first)

	// Old debounce fires - should be ignored
	m, cmd := update(t, m, debounceMsg{id: first, query: "par"})
	assert.Nil(t, cmd)
	assert.False(t, m.Loading())

	m, fetch := fireDebounce(t, m)
	m, _ = update(t, m, runCmd(fetch))
	assert.Equal(t, []string{"para"}, p.calls())
	assert.Equal(t, []string{"Paraguay"}, names(m.Results()))
}

func TestDebounce_TimerDeliversMessage(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords}, WithDebounce(time.Millisecond))
	cmd := m.startDebounce("par")
	msg := runCmd(cmd)
	require.IsType(t, debounceMsg{}, msg)
	assert.Equal(t, debounceMsg{id: m.debounceID, query: "par"}, msg)
}

func TestDebounce_CancelledTimerReturnsNil(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords}, WithDebounce(time.Hour))
	cmd := m.startDebounce("par")
	m.stopDebounce()

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled debounce did not return")
	}
}

func TestDebounce_RearmCancelsPreviousTimer(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords}, WithDebounce(time.Hour))
	first := m.startDebounce("par")
	_ = m.startDebounce("para")

	done := make(chan tea.Msg, 1)
	go func() { done <- first() }()
	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded debounce did not return")
	}
	m.Close()
}

func TestDebounce_FireAfterSelectionIsNoOp(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = searchFor(t, m, "ger")
	m, _ = press(t, m, tea.KeyEnter)

	m, cmd := update(t, m, debounceMsg{id: m.debounceID, query: "Germany"})
	assert.Nil(t, cmd)
	assert.Empty(t, m.Results())
	assert.Equal(t, []string{"ger"}, p.calls())
}

// --- Stale response tests ---

func TestStaleResponse_Discarded(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = typeText(t, m, "par")
	m, fetch := fireDebounce(t, m)
	stale := runCmd(fetch).(fetchDoneMsg)

	// Edit before the result arrives.
	m = typeText(t, m, "a")
	assert.False(t, m.Loading())
	m, _ = update(t, m, stale)
	assert.Empty(t, m.Results())
}

func TestCurrentResponse_Accepted(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = typeText(t, m, "ber")
	m, fetch := fireDebounce(t, m)

	msg := runCmd(fetch).(fetchDoneMsg)
	assert.Equal(t, m.state.Token(), msg.requestID)

	m, _ = update(t, m, msg)
	assert.Equal(t, []string{"Germany"}, names(m.Results()))
	assert.Equal(t, 0, m.cursor)
}

func TestEditCancelsInflightFetch(t *testing.T) {
	p := &mockProvider{records: testRecords, delay: time.Hour}
	m := newTestModel(p)
	m = typeText(t, m, "par")
	m, fetch := fireDebounce(t, m)

	done := make(chan tea.Msg, 1)
	go func() { done <- fetch() }()

	m = typeText(t, m, "a")
	select {
	case msg := <-done:
		res := msg.(fetchDoneMsg)
		assert.ErrorIs(t, res.err, context.Canceled)
		m, _ = update(t, m, res)
		assert.Nil(t, m.err)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not cancelled")
	}
}

func TestSelectDuringLoading(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = searchFor(t, m, "par")

	m = typeText(t, m, "a")
	m, fetch := fireDebounce(t, m)
	require.True(t, m.Loading())

	// Stale results are still listed; select one while loading.
	m, _ = press(t, m, tea.KeyEnter)
	assert.False(t, m.Loading())
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "France", sel.Name)

	m, _ = update(t, m, runCmd(fetch))
	assert.Empty(t, m.Results())
}

func TestFetchError_KeepsResults(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = searchFor(t, m, "par")

	p.err = errors.New("index unavailable")
	m = typeText(t, m, "a")
	m, fetch := fireDebounce(t, m)
	m, _ = update(t, m, runCmd(fetch))

	assert.False(t, m.Loading())
	assert.Len(t, m.Results(), 2)
	assert.EqualError(t, m.err, "index unavailable")
	assert.Contains(t, m.View(), "index unavailable")
	assert.NotContains(t, m.View(), "No results found")
}

// --- Key handling tests ---

func TestUpDown_Navigation(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = searchFor(t, m, "par")
	assert.Equal(t, 0, m.cursor)

	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, 1, m.cursor)

	// Down at bottom - stays
	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, 1, m.cursor)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, 0, m.cursor)

	// Up at top - stays
	m, _ = press(t, m, tea.KeyUp)
	assert.Equal(t, 0, m.cursor)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	m, _ = press(t, m, tea.KeyEnter)
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Paraguay", sel.Name)
}

func TestUpDown_NoOp_DuringLoading(t *testing.T) {
	p := &mockProvider{records: testRecords}
	m := newTestModel(p)
	m = searchFor(t, m, "par")
	m = typeText(t, m, "a")
	m, _ = fireDebounce(t, m)

	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, 0, m.cursor)
}

func TestUpDown_NoOp_WhenEmpty(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, -1, m.cursor)
	m, _ = press(t, m, tea.KeyUp)
	assert.Equal(t, -1, m.cursor)
}

func TestEnter_NoResults_NoOp(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = searchFor(t, m, "xyz")

	m, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestEnter_OnSelectionAccepts(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = searchFor(t, m, "ber")
	m, _ = press(t, m, tea.KeyEnter)

	_, ok := m.Result()
	assert.False(t, ok, "selection is not accepted until confirmed")

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, runCmd(cmd))
	rec, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, "Germany", rec.Name)
	assert.False(t, m.Cancelled())
}

func TestEditAfterSelectionClearsIt(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = searchFor(t, m, "ber")
	m, _ = press(t, m, tea.KeyEnter)

	m, _ = press(t, m, tea.KeyBackspace)
	assert.Equal(t, "German", m.Query())
	_, ok := m.Selected()
	assert.False(t, ok)
	assert.Equal(t, search.PhaseDebouncing, m.Phase())
	assert.NotContains(t, m.View(), "Country Details")
}

func TestEsc_ClearsThenQuits(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = typeText(t, m, "par")

	m, cmd := press(t, m, tea.KeyEsc)
	assert.Nil(t, cmd)
	assert.Empty(t, m.Query())
	assert.Nil(t, m.cancelDebounce)

	m, cmd = press(t, m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, runCmd(cmd))
	assert.True(t, m.Cancelled())
	_, ok := m.Result()
	assert.False(t, ok)
}

func TestEsc_ClearsStaleResults(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = searchFor(t, m, "par")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	require.NotEmpty(t, m.Results())

	m, cmd := press(t, m, tea.KeyEsc)
	assert.Nil(t, cmd)
	assert.Empty(t, m.Results())
}

func TestCtrlC_Quits(t *testing.T) {
	p := &mockProvider{records: testRecords, delay: time.Hour}
	m := newTestModel(p)
	m = typeText(t, m, "par")
	m, fetch := fireDebounce(t, m)

	done := make(chan tea.Msg, 1)
	go func() { done <- fetch() }()

	m, cmd := press(t, m, tea.KeyCtrlC)
	assert.IsType(t, tea.QuitMsg{}, runCmd(cmd))
	assert.True(t, m.Cancelled())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("quit did not cancel the in-flight fetch")
	}
}

// --- Layout ---

func TestWindowResize(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
	assert.Equal(t, 110, m.input.Width)
}

func TestScroll_KeepsCursorVisible(t *testing.T) {
	m := newTestModel(&mockProvider{records: country.Default().Records()}, WithMaxVisible(3))
	m = searchFor(t, m, "land")
	require.Greater(t, len(m.Results()), 3)

	n := len(m.Results())
	for i := 0; i < n; i++ {
		m, _ = press(t, m, tea.KeyDown)
	}
	assert.Equal(t, n-1, m.cursor)
	assert.LessOrEqual(t, m.offset, m.cursor)
	assert.Less(t, m.cursor, m.offset+m.listHeight())
}

func TestListHeight(t *testing.T) {
	m := newTestModel(&mockProvider{}, WithMaxVisible(5))
	assert.Equal(t, 5, m.listHeight())

	m.height = 8
	assert.Equal(t, 2, m.listHeight())

	m.height = 3
	assert.Equal(t, 1, m.listHeight())

	m.height = 0
	assert.Equal(t, 5, m.listHeight())
}

// --- View rendering ---

func TestView_Idle(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	view := m.View()
	assert.Contains(t, view, "Search for your Country")
	assert.Contains(t, view, "for a country...")
	assert.NotContains(t, view, clearGlyph)
	assert.NotContains(t, view, "No results found")
}

func TestView_ClearMarkerWithQuery(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = typeText(t, m, "pa")
	assert.Contains(t, m.View(), clearGlyph)
}

func TestView_Loading(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = typeText(t, m, "par")
	m, _ = fireDebounce(t, m)
	assert.Contains(t, m.View(), "Searching...")
	assert.NotContains(t, m.View(), "No results found")
}

func TestView_ListsResults(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m = searchFor(t, m, "par")
	view := m.View()
	assert.Contains(t, view, "France - Paris")
	assert.Contains(t, view, "Paraguay")
}

func TestHighlightQuery(t *testing.T) {
	got := highlightQuery("France - Paris", "PAR")
	assert.Contains(t, got, "Par")
	assert.Contains(t, got, "France - ")

	// Below the filter threshold nothing is split out.
	assert.Equal(t, normalStyle.Render("France"), highlightQuery("France", "fr"))
}

func TestHelpKeys(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	assert.Equal(t, "quit", m.helpKeys().Clear.Help().Desc)

	m = searchFor(t, m, "ber")
	assert.Equal(t, "clear", m.helpKeys().Clear.Help().Desc)
	assert.Equal(t, "select", m.helpKeys().Select.Help().Desc)

	m, _ = press(t, m, tea.KeyEnter)
	assert.Equal(t, "accept", m.helpKeys().Select.Help().Desc)
}

func TestSpinnerTick_StopsWhenIdle(t *testing.T) {
	m := newTestModel(&mockProvider{records: testRecords})
	m.spinning = true
	m, cmd := update(t, m, m.spinner.Tick())
	assert.Nil(t, cmd)
	assert.False(t, m.spinning)
}
