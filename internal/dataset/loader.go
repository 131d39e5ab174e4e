package dataset

import (
	"bytes"
	"context"
	"fmt"

	"github.com/JoacoLucen/EPH-Insight-App/internal/adapters/storage"
	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"

	"golang.org/x/sync/errgroup"
)

const defaultParallelism = 4

// Loader reads every extract of a source in parallel and derives the
// indicators of the merged dataset.
type Loader struct {
	source      Source
	codebook    *codebook.Codebook
	log         *logger.Logger
	parallelism int
}

// NewLoader creates a loader.
func NewLoader(source Source, cb *codebook.Codebook, log *logger.Logger) *Loader {
	return &Loader{source: source, codebook: cb, log: log, parallelism: defaultParallelism}
}

// Source returns the underlying source.
func (l *Loader) Source() Source {
	return l.source
}

// Fingerprint returns the current identity of the source.
func (l *Loader) Fingerprint(ctx context.Context) (string, []Entry, error) {
	entries, err := l.source.List(ctx)
	if err != nil {
		return "", nil, err
	}
	return Fingerprint(entries), entries, nil
}

// Load reads entries and returns the derived dataset. Files are merged in
// entry order whatever order they finish parsing in.
func (l *Loader) Load(ctx context.Context, entries []Entry) (*microdata.Dataset, error) {
	parts := make([]*microdata.Dataset, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for i, entry := range entries {
		g.Go(func() error {
			ds, err := l.loadEntry(gctx, entry)
			if err != nil {
				return err
			}
			parts[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := microdata.NewDataset()
	for _, part := range parts {
		merged.Merge(part)
	}
	merged.FlagUnknownClusters(l.codebook.IsKnownCluster)
	indicators.Derive(merged)

	for _, file := range merged.Report.Files {
		for _, reason := range file.Exclusions.Reasons() {
			l.log.RecordsExcluded(file.Name, reason, file.Exclusions[reason])
		}
	}
	for code, n := range merged.Report.UnknownClusters {
		l.log.RecordsExcluded(l.source.Location(), "unknown_cluster:"+code, n)
	}
	return merged, nil
}

func (l *Loader) loadEntry(ctx context.Context, entry Entry) (*microdata.Dataset, error) {
	data, err := l.source.Read(ctx, entry.Name)
	if err != nil {
		return nil, err
	}
	if storage.IsArchive(entry.Name) {
		return microdata.ReadArchive(data, entry.Name)
	}

	kind, ok := microdata.KindOf(entry.Name)
	if !ok {
		return nil, apperr.Malformed(entry.Name, 0, fmt.Errorf("not a survey table"))
	}
	ds := microdata.NewDataset()
	if err := ds.ReadTable(bytes.NewReader(data), kind, entry.Name); err != nil {
		return nil, err
	}
	return ds, nil
}
