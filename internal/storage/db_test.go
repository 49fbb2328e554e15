package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/search"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := OpenIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestOpenIndex_InMemorySchema(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	for _, table := range []string{"schema_meta", "countries"} {
		_, err := idx.DB().ExecContext(context.Background(), "SELECT 1 FROM "+table+" LIMIT 1")
		assert.NoError(t, err, table)
	}

	var version int
	require.NoError(t, idx.DB().QueryRow(`SELECT MAX(version) FROM schema_meta`).Scan(&version))
	assert.Equal(t, 1, version)
}

func TestOpenIndex_FileCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "nested", "index.db")
	idx, err := OpenIndex(path)
	require.NoError(t, err)
	defer idx.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenIndex_ReopenSkipsApplied(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenIndex(path)
	require.NoError(t, err)
	_, err = idx.Load(context.Background(), country.Default().Records())
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = OpenIndex(path)
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, country.Default().Len(), n)
}

func TestIndex_SearchMatchesFilter(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	records := country.Default().Records()
	n, err := idx.Load(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, len(records), n)

	for _, q := range []string{"par", "ger", "BER", "xyz", "unci", "land", "D.C"} {
		t.Run(q, func(t *testing.T) {
			got, err := idx.Search(context.Background(), q)
			require.NoError(t, err)
			assert.Equal(t, search.Filter(records, q), got)
		})
	}
}

func TestIndex_LoadReplaces(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	ctx := context.Background()
	_, err := idx.Load(ctx, country.Default().Records())
	require.NoError(t, err)

	_, err = idx.Load(ctx, []country.Record{{ID: 9, Name: "Iceland", Capital: "Reykjavik", Population: "0.4M"}})
	require.NoError(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := idx.Search(ctx, "par")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestIndex_LoadDuplicateIDRollsBack(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	ctx := context.Background()
	_, err := idx.Load(ctx, []country.Record{{ID: 1, Name: "France", Capital: "Paris"}})
	require.NoError(t, err)

	_, err = idx.Load(ctx, []country.Record{
		{ID: 2, Name: "Germany", Capital: "Berlin"},
		{ID: 2, Name: "Austria", Capital: "Vienna"},
	})
	require.Error(t, err)

	got, err := idx.Search(ctx, "par")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "France", got[0].Name)
}

func TestIndex_ClosedErrors(t *testing.T) {
	t.Parallel()

	idx, err := OpenIndex("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close(), "Close is idempotent")

	_, err = idx.Search(context.Background(), "par")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Count(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIndex_SearchCancelledContext(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	_, err := idx.Load(context.Background(), country.Default().Records())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.Search(ctx, "par")
	assert.Error(t, err)
}
