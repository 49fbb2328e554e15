package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

type searchGlobals struct {
	limit int
	json  bool
}

func withSearchGlobals(t *testing.T, g searchGlobals) {
	t.Helper()
	old := searchGlobals{limit: searchLimit, json: searchJSON}
	oldMode := colorMode
	searchLimit = g.limit
	searchJSON = g.json
	colorMode = "never"
	t.Cleanup(func() {
		searchLimit = old.limit
		searchJSON = old.json
		colorMode = oldMode
	})
}

// withTestEnv points every XDG directory at a temp dir, clears the
// SMARTSEARCH_* overrides, and writes cfgYAML (if any) to a config file
// that --config refers to.
func withTestEnv(t *testing.T, cfgYAML string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(dir, "run"))
	t.Setenv("COLUMNS", "")
	for _, key := range []string{"SMARTSEARCH_DEBUG", "SMARTSEARCH_LOG_LEVEL", "SMARTSEARCH_DATASET", "SMARTSEARCH_BACKEND"} {
		t.Setenv(key, "")
	}

	oldConfig := rootConfig
	t.Cleanup(func() { rootConfig = oldConfig })
	rootConfig = ""

	if cfgYAML != "" {
		rootConfig = filepath.Join(dir, "smartsearch.yaml")
		if err := os.WriteFile(rootConfig, []byte(cfgYAML), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	return dir
}

// runWithOutput runs fn with cmd's output redirected into a buffer.
func runWithOutput(t *testing.T, cmd *cobra.Command, fn func() error) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := fn()
	return buf.String(), err
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()
	_ = w.Close()
	os.Stdout = old
	out := <-outC
	_ = r.Close()
	return out
}
