package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Exit codes.
// These match the expectations of shell scripts:
//
//	0 = selection made (use the result)
//	1 = cancelled by user
//	2 = fallback (no TTY, bad flags, another instance running, etc.)
const (
	exitSuccess   = 0
	exitCancelled = 1
	exitFallback  = 2
)

// Output formats for the selected record.
const (
	outputPlain = "plain"
	outputJSON  = "json"
)

// exitError carries a process exit code through cobra's RunE. A nil err
// means the code speaks for itself and nothing is printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func fallback(err error) error {
	return &exitError{code: exitFallback, err: err}
}

var (
	rootQuery    string
	rootDataset  string
	rootBackend  string
	rootOutput   string
	rootConfig   string
	rootDebounce time.Duration
	rootLatency  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "smartsearch",
	Short: "Debounced country search in the terminal",
	Long: `smartsearch - debounced country search in the terminal

Type at least 3 characters to filter countries by name or capital.
Results appear after a short pause in typing.

  ↑/↓      move through results
  enter    select a result, enter again to accept
  esc      clear the search (quit when empty)
  ctrl+c   quit

The accepted country is printed to stdout.

Examples:
  smartsearch                         # Start with an empty search
  smartsearch --query par             # Start searching for "par"
  smartsearch --output json           # Print the accepted record as JSON
  smartsearch --backend sqlite        # Filter through an SQLite index`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

// Execute runs the root command and reports failures on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintf(os.Stderr, "smartsearch: %v\n", err)
		}
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFallback
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootConfig, "config", "", "config file (default: XDG config path)")
	pf.StringVar(&rootDataset, "dataset", "", "YAML dataset file (default: embedded countries)")
	pf.StringVar(&rootBackend, "backend", "", "search backend: memory or sqlite")

	f := rootCmd.Flags()
	f.StringVarP(&rootQuery, "query", "q", "", "initial search query")
	f.DurationVar(&rootDebounce, "debounce", 0, "quiet period before filtering (default from config)")
	f.DurationVar(&rootLatency, "latency", 0, "simulated filter latency (default from config)")
	f.StringVarP(&rootOutput, "output", "o", outputPlain, "output format: plain or json")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
