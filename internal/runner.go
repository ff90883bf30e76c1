package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fedragon/go-takeout/internal/config"
	"github.com/fedragon/go-takeout/internal/core"
	dedb "github.com/fedragon/go-takeout/internal/db"
	"github.com/fedragon/go-takeout/internal/fs"
	"github.com/fedragon/go-takeout/internal/metadata"
	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrLocked = errors.New("another run is using the output directory")

type Runner struct {
	logger *zap.Logger
	cfg    config.Config
	runID  string
	now    func() time.Time
}

func NewRunner(logger *zap.Logger, cfg config.Config) *Runner {
	runID := uuid.NewString()
	return &Runner{
		logger: logger.With(zap.String("run_id", runID)),
		cfg:    cfg,
		runID:  runID,
		now:    time.Now,
	}
}

// Summary describes a finished, or interrupted, run.
type Summary struct {
	RunID        string
	DryRun       bool
	Elapsed      time.Duration
	Metrics      *metrics.Metrics
	Outcomes     []models.Outcome
	ManifestPath string
}

// Run migrates the configured source into the configured output. The error
// is non-nil only for run-fatal conditions or cancellation; per-file
// failures are in the summary.
func (r *Runner) Run(ctx context.Context) (summary *Summary, err error) {
	start := time.Now()
	defer func() {
		r.logger.Info("Elapsed time", zap.Duration("elapsed", time.Since(start)))
	}()

	if r.cfg.DryRun {
		r.logger.Info("Running in DRY-RUN mode: nothing will be copied or linked")
	}

	if err := checkSource(r.cfg.Source); err != nil {
		return nil, err
	}

	if !r.cfg.DryRun {
		if err := os.MkdirAll(r.cfg.Output, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create output directory %v: %w", r.cfg.Output, err)
		}

		lock := flock.New(filepath.Join(r.cfg.Output, config.LockFileName))
		locked, lockErr := lock.TryLock()
		if lockErr != nil {
			return nil, fmt.Errorf("unable to lock output directory %v: %w", r.cfg.Output, lockErr)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %v", ErrLocked, r.cfg.Output)
		}
		defer func() {
			err = multierr.Append(err, lock.Unlock())
		}()
	}

	repo, closeCache := r.openCache()
	defer func() {
		err = multierr.Append(err, closeCache())
	}()

	r.logger.Info("Determined number of workers", zap.Int("num_workers", r.cfg.Workers))

	mx := metrics.NewMetrics()
	pipeline := &core.Pipeline{
		Layout:          fs.Layout{ExportRootPrefix: r.cfg.ExportRootPrefix, ContainerName: r.cfg.ContainerName},
		Types:           fs.NewTypes(r.cfg.MediaExtensions),
		MinPrefixLength: r.cfg.MinPrefixLength,
		NumWorkers:      r.cfg.Workers,
		DryRun:          r.cfg.DryRun,
		Albums:          r.cfg.Albums,
		LinkDuplicates:  r.cfg.LinkDuplicates,
		Hasher:          &fs.Hasher{Cache: repo, Metrics: mx},
		Extractor:       metadata.NewEXIF(r.logger),
		Now:             r.now,
		Logger:          r.logger,
		Metrics:         mx,
	}

	result, runErr := pipeline.Run(ctx, r.cfg.Source, r.cfg.Output)
	if result == nil {
		return nil, runErr
	}

	manifest := &core.Manifest{}
	reporter := core.Reporters{manifest, &core.LogReporter{Logger: r.logger}}
	for _, o := range result.Outcomes() {
		reporter.Report(o)
	}

	summary = &Summary{
		RunID:    r.runID,
		DryRun:   r.cfg.DryRun,
		Elapsed:  time.Since(start),
		Metrics:  mx,
		Outcomes: manifest.Outcomes(),
	}

	if !r.cfg.DryRun {
		path := filepath.Join(r.cfg.Output, config.ManifestFileName)
		if err := manifest.WriteFile(path); err != nil {
			r.logger.Error("Cannot write migration log", zap.String("path", path), zap.Error(err))
		} else {
			summary.ManifestPath = path
		}
	}

	if runErr == nil && !r.cfg.NoCache {
		if err := core.Sweep(repo, r.logger); err != nil {
			r.logger.Warn("Cannot sweep hash cache", zap.Error(err))
		}
	}

	return summary, runErr
}

func checkSource(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("unable to read source %v: %w", source, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %v is not a directory", source)
	}
	return nil
}

// openCache falls back to hashing everything when the cache cannot be opened.
func (r *Runner) openCache() (dedb.Repository, func() error) {
	noop := func() error { return nil }
	if r.cfg.NoCache {
		return dedb.NopRepository{}, noop
	}

	db, err := dedb.Connect(r.cfg.DBPath)
	if err != nil {
		r.logger.Warn("Hash cache unavailable, hashing everything", zap.String("db", r.cfg.DBPath), zap.Error(err))
		return dedb.NopRepository{}, noop
	}

	repo, err := dedb.NewRepository(db, r.logger)
	if err != nil {
		r.logger.Warn("Hash cache unusable, hashing everything", zap.String("db", r.cfg.DBPath), zap.Error(err))
		return dedb.NopRepository{}, db.Close
	}

	return repo, db.Close
}
