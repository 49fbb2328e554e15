package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/picker"
	"github.com/runger/smartsearch/internal/search"
)

var (
	searchJSON  bool
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Filter countries without the interactive widget",
	Long: `Filter countries by name or capital and print the matches.

Matching is a case-insensitive substring match, the same one the widget
uses, but runs immediately with no debounce or simulated latency.
Queries must be at least 3 characters long.

Examples:
  smartsearch search par              # France - Paris, Paraguay - Asunción
  smartsearch search --json ber       # Output as JSON
  smartsearch search --limit 5 land   # Return up to 5 results`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results (0 = no limit)")
	searchCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")
}

type searchResponse struct {
	Query     string         `json:"query"`
	Results   []recordOutput `json:"results"`
	Total     int            `json:"total"`
	Truncated bool           `json:"truncated"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	applyColorMode()

	query, err := sanitizeQuery(args[0])
	if err != nil {
		return err
	}
	if err := search.CheckQuery(query); err != nil {
		return err
	}
	if searchLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	matches, err := be.search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	total := len(matches)
	matches = search.Limit(matches, searchLimit)

	out := cmd.OutOrStdout()
	if searchJSON {
		return writeSearchJSON(out, query, matches, total)
	}
	return writeSearchText(out, matches, total)
}

func writeSearchJSON(w io.Writer, query string, matches []country.Record, total int) error {
	results := make([]recordOutput, len(matches))
	for i, r := range matches {
		results[i] = toRecordOutput(r)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(searchResponse{
		Query:     query,
		Results:   results,
		Total:     total,
		Truncated: len(results) < total,
	})
}

func writeSearchText(w io.Writer, matches []country.Record, total int) error {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	width := terminalWidth()
	for _, r := range matches {
		label := picker.Truncate(r.Label(), width-runewidth.StringWidth(r.Population)-2)
		fmt.Fprintf(w, "%s  %s%s%s\n", label, colorDim, r.Population, colorReset)
	}
	if total > len(matches) {
		fmt.Fprintf(w, "%s(%d of %d shown)%s\n", colorDim, len(matches), total, colorReset)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
