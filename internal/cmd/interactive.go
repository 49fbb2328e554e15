package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/smartsearch/internal/config"
	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/picker"
)

func runInteractive(cmd *cobra.Command, _ []string) error {
	if rootOutput != outputPlain && rootOutput != outputJSON {
		return fallback(fmt.Errorf("--output must be %q or %q (got %q)", outputPlain, outputJSON, rootOutput))
	}
	query, err := sanitizeQuery(rootQuery)
	if err != nil {
		return fallback(fmt.Errorf("--query: %w", err))
	}

	if err := checkTerminal(); err != nil {
		return fallback(err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fallback(err)
	}

	paths := config.DefaultPaths()
	if err := os.MkdirAll(paths.RuntimeDir, 0o755); err != nil {
		return fallback(fmt.Errorf("failed to create runtime directory: %w", err))
	}
	lockFd, err := acquireLock(paths.LockFile())
	if err != nil {
		return fallback(err)
	}
	defer releaseLock(lockFd)

	logger, closeLog, err := newLogger(cfg, paths)
	if err != nil {
		// The widget works without a log file.
		logger, closeLog = discardLogger(), func() error { return nil }
	}
	defer closeLog()

	be, err := openBackend(commandContext(cmd), cfg)
	if err != nil {
		return fallback(err)
	}
	defer be.Close()

	model, logger := newSession(cfg, be, query, logger)

	// Open /dev/tty for TUI input/output so stdout stays free for the result.
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return fallback(fmt.Errorf("cannot open /dev/tty: %w", err))
	}
	defer tty.Close()

	// When invoked via $(smartsearch), stdout is a pipe and lipgloss would
	// default to no color. Detect from the real tty instead.
	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
	)

	finalModel, runErr := p.Run()
	m, ok := finalModel.(picker.Model)
	if ok {
		m.Close()
	}
	if runErr != nil {
		return fallback(fmt.Errorf("TUI error: %w", runErr))
	}
	if !ok {
		return fallback(fmt.Errorf("unexpected model type %T", finalModel))
	}

	rec, accepted := m.Result()
	if m.Cancelled() || !accepted {
		logger.Info("widget cancelled", "query", m.Query())
		return &exitError{code: exitCancelled}
	}
	logger.Info("record accepted", "id", rec.ID, "name", rec.Name)

	return writeRecord(cmd.OutOrStdout(), rec, rootOutput)
}

// newSession builds the widget model and returns a logger that tags every
// line with the model's session id.
func newSession(cfg *config.Config, be *backend, query string, logger *slog.Logger) (picker.Model, *slog.Logger) {
	model := picker.NewModel(be.provider,
		picker.WithQuery(query),
		picker.WithDebounce(cfg.Search.Debounce()),
		picker.WithLogger(logger),
		picker.WithClearShortQueries(cfg.Search.ClearShortQueries),
		picker.WithMaxVisible(cfg.Search.MaxVisible),
	)
	logger = logger.With("session", model.SessionID())
	logger.Info("widget started",
		"backend", cfg.Search.Backend,
		"records", len(be.records),
	)
	return model, logger
}

type recordOutput struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Capital    string `json:"capital"`
	Population string `json:"population"`
}

func toRecordOutput(r country.Record) recordOutput {
	return recordOutput{ID: r.ID, Name: r.Name, Capital: r.Capital, Population: r.Population}
}

// writeRecord prints the accepted record as a "Name - Capital" line or JSON.
func writeRecord(w io.Writer, rec country.Record, format string) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		return enc.Encode(toRecordOutput(rec))
	}
	_, err := fmt.Fprintln(w, rec.Label())
	return err
}
