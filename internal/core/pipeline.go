package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fedragon/go-takeout/internal/fs"
	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"

	"go.uber.org/zap"
)

const AlbumsDir = "Albums"

// Pipeline runs one migration of Source into Output.
type Pipeline struct {
	Layout          fs.Layout
	Types           fs.Types
	MinPrefixLength int
	NumWorkers      int
	DryRun          bool
	Albums          bool
	LinkDuplicates  bool

	Hasher    ContentHasher
	Extractor CaptureTimeExtractor
	Now       func() time.Time

	// Index, when set, is used as the starting state instead of an empty index.
	Index *MigrationIndex

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Result holds every record of the run; each one is in a terminal state
// unless the run was cancelled.
type Result struct {
	Catalog *Catalog
	Index   *MigrationIndex
}

// Outcomes returns the outcome of every indexed file, followed by the
// indexing errors that have no record.
func (r *Result) Outcomes() []models.Outcome {
	outcomes := make([]models.Outcome, 0, len(r.Catalog.Records)+len(r.Catalog.Errors))
	for _, m := range r.Catalog.Records {
		outcomes = append(outcomes, m.Outcome())
	}
	for _, e := range r.Catalog.Errors {
		outcomes = append(outcomes, models.Outcome{
			SourcePath:  e.Path,
			Status:      models.StatusError,
			ErrorStage:  e.Stage,
			ErrorDetail: e.Err.Error(),
		})
	}
	return outcomes
}

// Run processes files one at a time in indexing order. A cancelled context
// stops the run between files; what was copied so far is complete.
func (p *Pipeline) Run(ctx context.Context, source, output string) (*Result, error) {
	indexer := &Indexer{Layout: p.Layout, Types: p.Types, Logger: p.Logger, Metrics: p.Metrics}
	catalog, err := indexer.Index(ctx, source)
	if err != nil {
		return nil, err
	}

	matcher := &Matcher{MinPrefixLength: p.MinPrefixLength, Logger: p.Logger, Metrics: p.Metrics}
	matcher.Match(catalog.Albums)

	index := p.Index
	if index == nil {
		index = NewMigrationIndex()
	}
	result := &Result{Catalog: catalog, Index: index}

	dates := NewDateResolver(p.Extractor, p.Now)
	dates.Metrics = p.Metrics

	deduper := &DedupEngine{
		Index:      index,
		Hasher:     p.Hasher,
		Dates:      NewDateResolver(p.Extractor, p.Now),
		Types:      p.Types,
		NumWorkers: p.NumWorkers,
		Logger:     p.Logger,
		Metrics:    p.Metrics,
	}

	sizes := make(map[int64]bool, len(catalog.Records))
	for _, m := range catalog.Records {
		sizes[m.Size] = true
	}
	if err := deduper.Prescan(ctx, output, sizes, AlbumsDir); err != nil {
		return result, err
	}

	copier := &CopyEngine{Output: output, DryRun: p.DryRun, Index: index, Logger: p.Logger, Metrics: p.Metrics}

	for i, m := range catalog.Records {
		if err := ctx.Err(); err != nil {
			p.Logger.Warn("Run cancelled", zap.Int("processed", i), zap.Int("total", len(catalog.Records)))
			return result, err
		}
		if i > 0 && i%1000 == 0 {
			p.Logger.Info("Processed a(nother) batch of files", zap.Int("count", i))
		}

		dates.Apply(m)
		deduper.Classify(m)

		switch {
		case m.Status == models.StatusPending:
			copier.Copy(m)
		case m.Resumed:
			copier.Restore(m)
		}
	}

	if p.Albums {
		linker := &AlbumLinker{
			Root:           filepath.Join(output, AlbumsDir),
			DryRun:         p.DryRun,
			LinkDuplicates: p.LinkDuplicates,
			Logger:         p.Logger,
			Metrics:        p.Metrics,
		}
		if err := linker.Link(ctx, catalog.Albums); err != nil {
			return result, err
		}
	}

	return result, nil
}
