package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"

	"go.uber.org/zap"
)

var albumNameReplacer = strings.NewReplacer("/", "-", ":", "-")

// AlbumDirName turns an album name into a directory name, or "" if nothing usable is left.
func AlbumDirName(name string) string {
	return strings.TrimSpace(albumNameReplacer.Replace(name))
}

type AlbumLinker struct {
	Root           string
	DryRun         bool
	LinkDuplicates bool
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Link creates Root/<album>/ for every named album, holding one relative
// symlink per copied member. A member whose link cannot be created is failed
// and linking goes on with the rest.
func (al *AlbumLinker) Link(ctx context.Context, albums []*models.AlbumRecord) error {
	for _, a := range albums {
		if err := ctx.Err(); err != nil {
			return err
		}

		if a.Synthetic {
			al.Logger.Debug("Skipping generated album", zap.String("album", a.Name))
			continue
		}

		name := AlbumDirName(a.Name)
		if name == "" {
			al.Logger.Warn("Skipping album without a usable name", zap.String("album", a.Name))
			continue
		}

		al.link(filepath.Join(al.Root, name), al.members(a))
	}
	return nil
}

type linkTarget struct {
	record *models.MediaRecord
	path   string
}

func (al *AlbumLinker) members(a *models.AlbumRecord) []linkTarget {
	var targets []linkTarget
	for _, m := range a.Entries {
		switch {
		case m.Status == models.StatusCopied && m.DestinationPath != "":
			targets = append(targets, linkTarget{record: m, path: m.DestinationPath})
		case al.LinkDuplicates && m.Status == models.StatusDuplicate && m.CanonicalPath != "":
			targets = append(targets, linkTarget{record: m, path: m.CanonicalPath})
		}
	}
	return targets
}

func (al *AlbumLinker) link(dir string, targets []linkTarget) {
	if len(targets) == 0 {
		return
	}

	if !al.DryRun {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			for _, t := range targets {
				al.fail(t.record, fmt.Errorf("unable to create album directory %v: %w", dir, err))
			}
			return
		}
	}

	planned := make(map[string]string)
	for _, t := range targets {
		rel, err := filepath.Rel(dir, t.path)
		if err != nil {
			al.fail(t.record, err)
			continue
		}

		link, exists, err := al.linkName(dir, filepath.Base(t.path), rel, planned)
		if err != nil {
			al.fail(t.record, err)
			continue
		}
		planned[link] = rel
		if exists {
			continue
		}

		if al.DryRun {
			al.Logger.Info("Would have linked", zap.String("link", link), zap.String("target", rel))
		} else if err := os.Symlink(rel, link); err != nil {
			al.fail(t.record, fmt.Errorf("unable to link %v: %w", link, err))
			continue
		}
		_ = al.Metrics.Increment(metrics.Linked)
	}
}

// linkName finds the name for a link to target: base, base_2, ... An existing
// link that already points at target is reused.
func (al *AlbumLinker) linkName(dir, base, target string, planned map[string]string) (string, bool, error) {
	for n := 1; n <= maxSuffix; n++ {
		link := filepath.Join(dir, SuffixedName(base, n))

		if existing, ok := planned[link]; ok {
			if existing == target {
				return link, true, nil
			}
			continue
		}

		info, err := os.Lstat(link)
		if os.IsNotExist(err) {
			return link, false, nil
		}
		if err != nil {
			return "", false, err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if existing, err := os.Readlink(link); err == nil && existing == target {
				return link, true, nil
			}
		}
	}
	return "", false, fmt.Errorf("%w for link %v in %v", ErrNoFreeName, base, dir)
}

func (al *AlbumLinker) fail(m *models.MediaRecord, err error) {
	al.Logger.Error("Cannot link album member", zap.String("source", m.SourcePath), zap.Error(err))
	m.Fail(models.StageAlbum, err)
	_ = al.Metrics.Increment(metrics.Errors)
}
