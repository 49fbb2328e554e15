package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/runger/smartsearch/internal/config"
	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/picker"
	"github.com/runger/smartsearch/internal/storage"
)

// maxQueryLen is the maximum length of a query string in bytes.
const maxQueryLen = 4096

// loadConfig reads the config file named by --config, or the default one,
// and applies the flags the user set explicitly on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if rootConfig != "" {
		cfg, err = config.LoadFromFile(rootConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Dataset.Path = rootDataset
	}
	if flags.Changed("backend") {
		cfg.Search.Backend = rootBackend
	}
	if flags.Changed("debounce") {
		if cfg.Search.DebounceMs, err = wholeMillis("debounce", rootDebounce); err != nil {
			return nil, err
		}
	}
	if flags.Changed("latency") {
		if cfg.Search.LatencyMs, err = wholeMillis("latency", rootLatency); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// wholeMillis converts a duration flag to the config's millisecond unit.
func wholeMillis(flag string, d time.Duration) (int, error) {
	if d%time.Millisecond != 0 {
		return 0, fmt.Errorf("--%s must be a whole number of milliseconds (got %s)", flag, d)
	}
	return int(d / time.Millisecond), nil
}

// backend is an opened search source. Close releases the SQLite index,
// if there is one.
type backend struct {
	records  []country.Record
	provider picker.Provider
	index    *storage.Index
}

func (b *backend) Close() error {
	if b.index == nil {
		return nil
	}
	return b.index.Close()
}

// search filters without latency, through the index when there is one.
func (b *backend) search(ctx context.Context, query string) ([]country.Record, error) {
	if b.index != nil {
		return b.index.Search(ctx, query)
	}
	p := picker.NewDatasetProvider(b.records, 0)
	resp, err := p.Fetch(ctx, picker.Request{Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// openBackend loads the dataset and builds the provider the config asks for.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	ds, err := country.Load(cfg.Dataset.Path)
	if err != nil {
		return nil, err
	}
	// Cleaning can empty a field, so validate the cleaned records again.
	ds, err = country.NewDataset(cleanRecords(ds.Records()))
	if err != nil {
		return nil, err
	}
	records := ds.Records()

	b := &backend{records: records}
	switch cfg.Search.Backend {
	case config.BackendSQLite:
		idx, err := storage.OpenIndex(cfg.Search.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		if _, err := idx.Load(ctx, records); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
		b.index = idx
		b.provider = picker.NewIndexProvider(idx, cfg.Search.Latency())
	default:
		b.provider = picker.NewDatasetProvider(records, cfg.Search.Latency())
	}
	return b, nil
}

// cleanRecords strips escape sequences and invalid UTF-8 from user supplied
// dataset text before it reaches the terminal.
func cleanRecords(records []country.Record) []country.Record {
	clean := func(s string) string {
		return picker.StripANSI(picker.ValidateUTF8(s))
	}
	for i := range records {
		records[i].Name = clean(records[i].Name)
		records[i].Capital = clean(records[i].Capital)
		records[i].Population = clean(records[i].Population)
	}
	return records
}

// sanitizeQuery strips control characters and validates the query string.
func sanitizeQuery(q string) (string, error) {
	if q == "" {
		return "", nil
	}

	if strings.ContainsAny(q, "\n\r") {
		return "", fmt.Errorf("query must not contain newlines")
	}

	// Strip control characters (0x00-0x1F) except tab (0x09).
	var b strings.Builder
	b.Grow(len(q))
	for _, r := range q {
		if r <= 0x1F && r != 0x09 {
			continue
		}
		b.WriteRune(r)
	}
	result := b.String()

	if len(result) > maxQueryLen {
		result = result[:maxQueryLen]
		for !utf8.ValidString(result) {
			result = result[:len(result)-1]
		}
	}

	return result, nil
}
