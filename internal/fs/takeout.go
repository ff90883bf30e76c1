package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultExportRootPrefix = "Takeout"
	DefaultContainerName    = "Google Photos"
)

// Layout describes how export archives are laid out on disk.
type Layout struct {
	ExportRootPrefix string
	ContainerName    string
}

// FindContainers returns the photo containers reachable from source, in
// lexical order. It accepts, in this order of preference:
//
//	source/Takeout*/Google Photos
//	source/Google Photos
//	source itself, when it is a Google Photos directory with sub-directories
//	source/*/Takeout*/Google Photos
func (l Layout) FindContainers(source string) ([]string, error) {
	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), l.ExportRootPrefix) {
			if c := filepath.Join(source, e.Name(), l.ContainerName); isDir(c) {
				dirs = append(dirs, c)
			}
		}
	}
	if len(dirs) > 0 {
		return dirs, nil
	}

	if c := filepath.Join(source, l.ContainerName); isDir(c) {
		return []string{c}, nil
	}

	if filepath.Base(filepath.Clean(source)) == l.ContainerName {
		for _, e := range entries {
			if e.IsDir() {
				return []string{source}, nil
			}
		}
	}

	for _, child := range entries {
		if !child.IsDir() {
			continue
		}
		grandchildren, err := os.ReadDir(filepath.Join(source, child.Name()))
		if err != nil {
			continue
		}
		for _, g := range grandchildren {
			if g.IsDir() && strings.HasPrefix(g.Name(), l.ExportRootPrefix) {
				if c := filepath.Join(source, child.Name(), g.Name(), l.ContainerName); isDir(c) {
					dirs = append(dirs, c)
				}
			}
		}
	}

	return dirs, nil
}

// Entry is one file inside an album directory.
type Entry struct {
	Path    string
	Album   string
	Name    string
	Size    int64
	ModTime time.Time
}

// ListContainer visits every non-hidden regular file below container that
// sits inside an album directory, in lexical order. Files at the top of the
// container belong to no album and are ignored. Read failures are passed to
// onErr and the listing continues.
func ListContainer(container string, visit func(Entry), onErr func(path string, err error)) {
	_ = filepath.WalkDir(container, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			onErr(path, err)
			return nil
		}

		if d.IsDir() {
			if path != container && IsHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || IsHidden(d.Name()) {
			return nil
		}

		parent := filepath.Dir(path)
		if parent == filepath.Clean(container) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			onErr(path, err)
			return nil
		}

		visit(Entry{
			Path:    path,
			Album:   filepath.Base(parent),
			Name:    d.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
