package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fedragon/go-takeout/internal/fs"
	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"
	"github.com/fedragon/go-takeout/internal/sidecar"

	"go.uber.org/zap"
)

const maxSuffix = 10000

var ErrNoFreeName = errors.New("no free destination name")

// SuffixedName returns name with _n inserted before the extension; n < 2
// returns name unchanged.
func SuffixedName(name string, n int) string {
	if n < 2 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

// DatedDir is the directory that holds media resolved to the given date.
func DatedDir(output string, m *models.MediaRecord) string {
	return filepath.Join(output, m.ResolvedDate.Format("2006"), m.ResolvedDate.Format("01"))
}

type CopyEngine struct {
	Output  string
	DryRun  bool
	Index   *MigrationIndex
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Copy materialises a pending canonical record into the dated tree. The copy
// gets the resolved date as modification time, so rescanning it later yields
// the same fingerprint even if its sidecar is lost. In
// dry-run mode the destination is chosen and recorded exactly as in a real
// run, but nothing is written.
func (ce *CopyEngine) Copy(m *models.MediaRecord) {
	dest, err := ce.destination(m)
	if err != nil {
		ce.fail(m, err)
		return
	}

	if ce.DryRun {
		ce.Logger.Info("Would have copied file", zap.String("source", m.SourcePath), zap.String("dest", dest))
	} else {
		ce.Logger.Debug("Atomically copying file", zap.String("source", m.SourcePath), zap.String("dest", dest))
		if err := fs.CopyFile(m.SourcePath, dest, m.ResolvedDate); err != nil {
			ce.fail(m, fmt.Errorf("unable to copy to %v: %w", dest, err))
			return
		}
		ce.copySidecar(m, dest)
	}

	ce.Index.Place(m.Fingerprint, dest)
	m.Status = models.StatusCopied
	m.DestinationPath = dest
	m.CanonicalPath = dest
	_ = ce.Metrics.Increment(metrics.Copied)
	_ = ce.Metrics.Add(metrics.BytesCopied, m.Size)
}

// Restore puts back the sidecar of a record migrated by an earlier run, if
// it went missing.
func (ce *CopyEngine) Restore(m *models.MediaRecord) {
	if ce.DryRun || m.Sidecar == nil || m.DestinationPath == "" {
		return
	}
	if fileExists(sidecar.NameFor(m.DestinationPath)) {
		return
	}
	ce.Logger.Info("Restoring missing sidecar", zap.String("dest", m.DestinationPath))
	ce.copySidecar(m, m.DestinationPath)
}

// A failed sidecar copy leaves the media in place; the next run restores it.
func (ce *CopyEngine) copySidecar(m *models.MediaRecord, dest string) {
	if m.Sidecar == nil || m.Sidecar.Path == "" {
		return
	}

	info, err := os.Stat(m.Sidecar.Path)
	if err == nil {
		err = fs.CopyFile(m.Sidecar.Path, sidecar.NameFor(dest), info.ModTime())
	}
	if err != nil {
		ce.Logger.Warn("Cannot copy sidecar", zap.String("sidecar", m.Sidecar.Path), zap.String("dest", dest), zap.Error(err))
	}
}

// destination returns the first free name.ext, name_2.ext, ... in the dated
// directory of m. A name is free when nothing occupies it, or when the
// occupant predates this run and is a truncated copy of m.
func (ce *CopyEngine) destination(m *models.MediaRecord) (string, error) {
	dir := DatedDir(ce.Output, m)

	for n := 1; n <= maxSuffix; n++ {
		candidate := filepath.Join(dir, SuffixedName(m.Name, n))

		taken, placed := ce.Index.Occupied(candidate)
		if !taken && !fileExists(candidate) {
			return candidate, nil
		}
		if placed {
			continue
		}

		if partial, err := fs.IsPartialCopy(m.SourcePath, candidate); err == nil && partial {
			ce.Logger.Warn("Replacing partial copy", zap.String("dest", candidate))
			ce.Index.Release(candidate)
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w for %v in %v", ErrNoFreeName, m.Name, dir)
}

func (ce *CopyEngine) fail(m *models.MediaRecord, err error) {
	ce.Logger.Error("Cannot copy file", zap.String("source", m.SourcePath), zap.Error(err))
	m.Fail(models.StageCopy, err)
	_ = ce.Metrics.Increment(metrics.Errors)
}
