package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fedragon/go-takeout/internal/fs"
	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"
	"github.com/fedragon/go-takeout/internal/sidecar"

	"go.uber.org/zap"
)

const fingerprintLayout = "2006-01-02T15:04"

// Fingerprint combines a content hash with a date truncated to the minute.
// The date is taken in UTC, so the same instant always yields the same key
// whatever location it carries.
func Fingerprint(hash []byte, date time.Time) string {
	return hex.EncodeToString(hash) + "@" + date.UTC().Format(fingerprintLayout)
}

// Canonical is the single entry a fingerprint maps to.
type Canonical struct {
	Fingerprint string
	Record      *models.MediaRecord
	Path        string
	// Seeded entries were found in the destination before the run started;
	// Claimed ones have since been matched by a source record.
	Seeded  bool
	Claimed bool
}

type occupant struct {
	fingerprint string
	placed      bool
}

// MigrationIndex is the run-scoped dedup state: one canonical entry per
// fingerprint, and the destination paths already taken.
type MigrationIndex struct {
	entries map[string]*Canonical
	paths   map[string]occupant
}

func NewMigrationIndex() *MigrationIndex {
	return &MigrationIndex{
		entries: make(map[string]*Canonical),
		paths:   make(map[string]occupant),
	}
}

// Seed registers a file that already exists in the destination. The first
// path seeded for a fingerprint is canonical; later ones only occupy their path.
func (ix *MigrationIndex) Seed(fingerprint, path string) {
	ix.paths[path] = occupant{fingerprint: fingerprint}
	if _, ok := ix.entries[fingerprint]; !ok {
		ix.entries[fingerprint] = &Canonical{Fingerprint: fingerprint, Path: path, Seeded: true}
	}
}

// Occupy marks path as taken by a file of unknown fingerprint.
func (ix *MigrationIndex) Occupy(path string) {
	if _, ok := ix.paths[path]; !ok {
		ix.paths[path] = occupant{}
	}
}

func (ix *MigrationIndex) Lookup(fingerprint string) (*Canonical, bool) {
	c, ok := ix.entries[fingerprint]
	return c, ok
}

// Register makes m the canonical record of its fingerprint.
func (ix *MigrationIndex) Register(m *models.MediaRecord) *Canonical {
	c := &Canonical{Fingerprint: m.Fingerprint, Record: m}
	ix.entries[m.Fingerprint] = c
	return c
}

// Place records that the canonical record of fingerprint now lives at path.
func (ix *MigrationIndex) Place(fingerprint, path string) {
	if c, ok := ix.entries[fingerprint]; ok {
		c.Path = path
	}
	ix.paths[path] = occupant{fingerprint: fingerprint, placed: true}
}

// Claim hands a seeded entry to the source record m that matches it.
func (ix *MigrationIndex) Claim(c *Canonical, m *models.MediaRecord) {
	c.Claimed = true
	c.Record = m
	ix.paths[c.Path] = occupant{fingerprint: c.Fingerprint, placed: true}
}

// Release forgets a seeded occupant so its path can be written again.
func (ix *MigrationIndex) Release(path string) {
	o, ok := ix.paths[path]
	if !ok || o.placed {
		return
	}
	delete(ix.paths, path)
	if c, ok := ix.entries[o.fingerprint]; ok && c.Seeded && !c.Claimed && c.Path == path {
		delete(ix.entries, o.fingerprint)
	}
}

// Occupied reports whether path is taken, and whether it belongs to a record
// of this run.
func (ix *MigrationIndex) Occupied(path string) (taken, placed bool) {
	o, ok := ix.paths[path]
	return ok, o.placed
}

// Len is the number of canonical entries.
func (ix *MigrationIndex) Len() int {
	return len(ix.entries)
}

type DedupEngine struct {
	Index      *MigrationIndex
	Hasher     ContentHasher
	Dates      *DateResolver
	Types      fs.Types
	NumWorkers int
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type scanned struct {
	path        string
	fingerprint string
	err         error
}

// Prescan seeds the index from the destination tree. Only files whose size
// matches one of sizes are fingerprinted; every other file only occupies its
// path. The albums directory and hidden entries are not visited.
func (de *DedupEngine) Prescan(parentCtx context.Context, output string, sizes map[int64]bool, skip ...string) error {
	if _, err := os.Stat(output); os.IsNotExist(err) {
		return nil
	}

	de.Logger.Info("Scanning destination", zap.String("output", output))

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	candidates := make(chan fs.File)
	var occupied []string
	var walkErr error

	go func() {
		defer close(candidates)
		for f := range fs.Walk(output, de.Types, skip...) {
			if f.Err != nil {
				if walkErr == nil && f.Path == output {
					walkErr = f.Err
				}
				de.Logger.Warn("Cannot scan destination entry", zap.String("path", f.Path), zap.Error(f.Err))
				continue
			}
			if !sizes[f.Size] {
				occupied = append(occupied, f.Path)
				continue
			}
			select {
			case <-ctx.Done():
				// keep draining so the walk can finish
			case candidates <- f:
			}
		}
	}()

	numWorkers := de.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	workers := make([]<-chan scanned, numWorkers)
	for i := 0; i < numWorkers; i++ {
		workers[i] = de.fingerprint(ctx, i, candidates)
	}

	var results []scanned
	for r := range merge(ctx, workers...) {
		results = append(results, r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if walkErr != nil {
		return fmt.Errorf("unable to scan destination %v: %w", output, walkErr)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	var seeded int
	for _, r := range results {
		if r.err != nil {
			de.Logger.Warn("Cannot fingerprint destination file", zap.String("path", r.path), zap.Error(r.err))
			de.Index.Occupy(r.path)
			continue
		}
		de.Index.Seed(r.fingerprint, r.path)
		seeded++
	}
	for _, p := range occupied {
		de.Index.Occupy(p)
	}

	de.Logger.Info("Scanned destination", zap.Int("fingerprinted", seeded), zap.Int("occupied", len(occupied)))
	return nil
}

func (de *DedupEngine) fingerprint(ctx context.Context, id int, files <-chan fs.File) <-chan scanned {
	out := make(chan scanned)
	log := de.Logger.With(zap.Int("worker_id", id))

	go func() {
		defer close(out)

		for f := range files {
			r := scanned{path: f.Path}

			hash, err := de.Hasher.Hash(f.Path, f.Size, f.ModTime)
			if err != nil {
				r.err = err
			} else {
				in := DateInput{Path: f.Path, ModTime: f.ModTime}
				if sc := sidecar.NameFor(f.Path); fileExists(sc) {
					in.Sidecar = sidecar.Load(sc)
				}
				date, _ := de.Dates.Resolve(in)
				r.fingerprint = Fingerprint(hash, date)
				log.Debug("Fingerprinted destination file", zap.String("path", f.Path))
			}

			select {
			case <-ctx.Done():
				return
			case out <- r:
			}
		}
	}()

	return out
}

// Classify fingerprints m and decides whether it is new, already migrated by
// an earlier run, or a duplicate of a record seen earlier in this run. New
// records stay pending for the copy stage.
func (de *DedupEngine) Classify(m *models.MediaRecord) {
	hash, err := de.Hasher.Hash(m.SourcePath, m.Size, m.ModTime)
	if err != nil {
		m.Fail(models.StageHash, err)
		_ = de.Metrics.Increment(metrics.Errors)
		return
	}
	m.Hash = hash
	m.Fingerprint = Fingerprint(hash, m.ResolvedDate)

	c, ok := de.Index.Lookup(m.Fingerprint)
	switch {
	case !ok, c.Record != nil && c.Record.Status == models.StatusError:
		de.Index.Register(m)
	case c.Seeded && !c.Claimed:
		de.Index.Claim(c, m)
		m.Status = models.StatusCopied
		m.Resumed = true
		m.DestinationPath = c.Path
		m.CanonicalPath = c.Path
		_ = de.Metrics.Increment(metrics.Resumed)
	default:
		m.Status = models.StatusDuplicate
		m.CanonicalPath = c.Path
		_ = de.Metrics.Increment(metrics.Duplicates)
		de.Logger.Debug("Duplicate", zap.String("path", m.SourcePath), zap.String("canonical", c.Path))
	}
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
