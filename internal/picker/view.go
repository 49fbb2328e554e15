package picker

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/search"
)

const (
	searchGlyph = "⌕"
	clearGlyph  = "✕"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	inputBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	spinnerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	selectedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	normalStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	matchStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	panelStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("245")).Padding(0, 1)
	labelStyle       = lipgloss.NewStyle().Bold(true)
)

// View implements tea.Model.
func (m Model) View() string {
	sections := []string{
		titleStyle.Render("Search for your Country"),
		m.viewInput(),
	}
	if s := m.viewContent(); s != "" {
		sections = append(sections, s)
	}
	sections = append(sections, dimStyle.Render(m.help.View(m.helpKeys())))
	return strings.Join(sections, "\n")
}

// viewInput renders the bordered query box.
func (m Model) viewInput() string {
	marker := " "
	if m.input.Value() != "" {
		marker = dimStyle.Render(clearGlyph)
	}
	return inputBoxStyle.Render(searchGlyph + " " + m.input.View() + " " + marker)
}

// viewContent renders whatever sits below the input: spinner, dropdown,
// empty state, error, or detail panel.
func (m Model) viewContent() string {
	if rec, ok := m.state.Selected(); ok {
		return m.viewDetails(rec)
	}

	var parts []string
	if m.state.Loading() {
		parts = append(parts, m.spinner.View()+dimStyle.Render(" Searching..."))
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("Search failed: %s", m.err)))
	}
	if m.state.ShowEmptyState() {
		parts = append(parts, dimStyle.Render("No results found"))
	}
	if len(m.state.Results()) > 0 {
		parts = append(parts, m.viewList())
	}
	return strings.Join(parts, "\n")
}

// viewList renders the visible window of the dropdown.
func (m Model) viewList() string {
	results := m.state.Results()
	rows := m.listHeight()
	end := m.offset + rows
	if end > len(results) {
		end = len(results)
	}

	lines := make([]string, 0, end-m.offset+1)
	for i := m.offset; i < end; i++ {
		display := ValidateUTF8(StripANSI(results[i].Label()))
		if m.width > 4 {
			display = Truncate(display, m.width-4)
		}
		if i == m.cursor {
			lines = append(lines, selectedStyle.Render("> "+display))
		} else {
			lines = append(lines, normalStyle.Render("  ")+highlightQuery(display, m.state.Query()))
		}
	}
	if len(results) > rows {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(results))))
	}
	return strings.Join(lines, "\n")
}

// viewDetails renders the detail panel for the selected record.
func (m Model) viewDetails(rec country.Record) string {
	body := strings.Join([]string{
		titleStyle.Render("Country Details"),
		labelStyle.Render("Name: ") + ValidateUTF8(StripANSI(rec.Name)),
		labelStyle.Render("Capital: ") + ValidateUTF8(StripANSI(rec.Capital)),
		labelStyle.Render("Population: ") + ValidateUTF8(StripANSI(rec.Population)),
	}, "\n")
	return panelStyle.Render(body)
}

// helpKeys adjusts binding descriptions to the current phase.
func (m Model) helpKeys() keyMap {
	k := m.keys
	if _, ok := m.state.Selected(); ok {
		k.Select.SetHelp("enter", "accept")
	}
	if m.state.Query() == "" && len(m.state.Results()) == 0 {
		k.Clear.SetHelp("esc", "quit")
	}
	return k
}

// highlightQuery renders occurrences of query in s with matchStyle,
// ignoring case. Queries too short to filter are not highlighted.
func highlightQuery(s, query string) string {
	if !search.Eligible(query) {
		return normalStyle.Render(s)
	}
	src := []rune(s)
	folded := []rune(search.Fold(s))
	q := []rune(search.Fold(query))
	if len(folded) != len(src) {
		return normalStyle.Render(s)
	}

	var b strings.Builder
	start := 0
	for i := 0; i+len(q) <= len(folded); {
		if slices.Equal(folded[i:i+len(q)], q) {
			if start < i {
				b.WriteString(normalStyle.Render(string(src[start:i])))
			}
			b.WriteString(matchStyle.Render(string(src[i : i+len(q)])))
			i += len(q)
			start = i
			continue
		}
		i++
	}
	if start < len(src) {
		b.WriteString(normalStyle.Render(string(src[start:])))
	}
	return b.String()
}
