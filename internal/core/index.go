package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fedragon/go-takeout/internal/fs"
	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"
	"github.com/fedragon/go-takeout/internal/sidecar"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoExportRoots = errors.New("no export roots found")

	syntheticAlbum = regexp.MustCompile(`(?i)^Photos from \d{4}$`)
)

// IsSynthetic reports whether name is one of the per-year albums generated by the export.
func IsSynthetic(name string) bool {
	return syntheticAlbum.MatchString(strings.TrimSpace(name))
}

// Catalog is everything the Indexer found.
type Catalog struct {
	Roots   []string
	Albums  []*models.AlbumRecord
	Records []*models.MediaRecord
	Errors  []*models.StageError
}

type Indexer struct {
	Layout  fs.Layout
	Types   fs.Types
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Index lists every export root under source and groups what it finds by
// album. Albums with the same name in different roots become one album.
// Records come out in root order, then walk order.
func (ix *Indexer) Index(ctx context.Context, source string) (*Catalog, error) {
	ix.Logger.Info("Indexing export", zap.String("source", source))

	roots, err := ix.Layout.FindContainers(source)
	if err != nil {
		return nil, fmt.Errorf("unable to read source %v: %w", source, err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w in %v", ErrNoExportRoots, source)
	}

	catalog := &Catalog{Roots: roots}
	albums := make(map[string]*models.AlbumRecord)

	album := func(name string) *models.AlbumRecord {
		key := norm.NFC.String(name)
		a, ok := albums[key]
		if !ok {
			a = &models.AlbumRecord{Name: key, Synthetic: IsSynthetic(key)}
			albums[key] = a
			catalog.Albums = append(catalog.Albums, a)
		}
		return a
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return catalog, err
		}

		ix.Logger.Info("Indexing export root", zap.String("root", root))
		before := len(catalog.Records)

		fs.ListContainer(root, func(e fs.Entry) {
			if !utf8.ValidString(e.Name) {
				ix.Logger.Warn("File name is not valid UTF-8", zap.ByteString("name", []byte(e.Name)), zap.String("album", e.Album))
			}

			switch {
			case strings.EqualFold(e.Name, sidecar.AlbumMetadataName):
				return
			case sidecar.IsSidecar(e.Name):
				sc := sidecar.Load(e.Path)
				if sc.Err != nil {
					ix.Logger.Warn("Unreadable sidecar", zap.String("path", e.Path), zap.Error(sc.Err))
				}
				a := album(e.Album)
				a.Sidecars = append(a.Sidecars, sc)
			case ix.Types.Match(e.Name):
				m := &models.MediaRecord{
					SourcePath: e.Path,
					Name:       e.Name,
					Size:       e.Size,
					ModTime:    e.ModTime,
					Status:     models.StatusPending,
				}
				a := album(e.Album)
				m.Album = a.Name
				a.Entries = append(a.Entries, m)
				catalog.Records = append(catalog.Records, m)
				_ = ix.Metrics.Increment(metrics.Indexed)
			default:
				ix.Logger.Debug("Skipping unknown file type", zap.String("path", e.Path))
			}
		}, func(path string, err error) {
			ix.Logger.Warn("Cannot read directory entry", zap.String("path", path), zap.Error(err))
			catalog.Errors = append(catalog.Errors, &models.StageError{Path: path, Stage: models.StageIndex, Err: err})
			_ = ix.Metrics.Increment(metrics.Errors)
		})

		ix.Logger.Info("Indexed export root", zap.String("root", root), zap.Int("media", len(catalog.Records)-before))
	}

	ix.Logger.Info("Indexed media in total", zap.Int("total", len(catalog.Records)), zap.Int("albums", len(catalog.Albums)))
	return catalog, nil
}
