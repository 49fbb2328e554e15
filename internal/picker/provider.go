package picker

import (
	"context"
	"time"

	"github.com/runger/smartsearch/internal/country"
	"github.com/runger/smartsearch/internal/search"
)

// Provider is the interface for data sources that answer the widget's filters.
type Provider interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Request describes one filter run.
type Request struct {
	RequestID uint64 // Request token, for stale response detection
	Query     string // Search filter, already at least search.MinQueryLength characters
}

// Response carries matching records back from a Provider.
type Response struct {
	RequestID uint64           // Must match Request.RequestID to be accepted
	Records   []country.Record // Matches in dataset order
}

// DatasetProvider filters an in-memory record list.
type DatasetProvider struct {
	records []country.Record
	latency time.Duration
}

// Compile-time check that DatasetProvider implements Provider.
var _ Provider = (*DatasetProvider)(nil)

// NewDatasetProvider returns a provider over records. Every Fetch waits
// latency before filtering.
func NewDatasetProvider(records []country.Record, latency time.Duration) *DatasetProvider {
	return &DatasetProvider{records: records, latency: latency}
}

// Fetch waits out the simulated latency, then runs search.Filter.
func (p *DatasetProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	if err := wait(ctx, p.latency); err != nil {
		return Response{}, err
	}
	return Response{
		RequestID: req.RequestID,
		Records:   search.Filter(p.records, req.Query),
	}, nil
}

// Searcher answers substring queries. storage.Index implements it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]country.Record, error)
}

// IndexProvider delegates filtering to a Searcher.
type IndexProvider struct {
	index   Searcher
	latency time.Duration
}

// Compile-time check that IndexProvider implements Provider.
var _ Provider = (*IndexProvider)(nil)

// NewIndexProvider returns a provider backed by index.
func NewIndexProvider(index Searcher, latency time.Duration) *IndexProvider {
	return &IndexProvider{index: index, latency: latency}
}

// Fetch waits out the simulated latency, then queries the index.
func (p *IndexProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	if err := wait(ctx, p.latency); err != nil {
		return Response{}, err
	}
	records, err := p.index.Search(ctx, req.Query)
	if err != nil {
		return Response{}, err
	}
	return Response{RequestID: req.RequestID, Records: records}, nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
