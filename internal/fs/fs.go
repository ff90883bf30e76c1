package fs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fedragon/go-takeout/internal/db"
	"github.com/fedragon/go-takeout/internal/metrics"

	"lukechampine.com/blake3"
)

const (
	BMP  = ".bmp"
	GIF  = ".gif"
	GP3  = ".3gp"
	HEIC = ".heic"
	JPEG = ".jpeg"
	JPG  = ".jpg"
	M4V  = ".m4v"
	MKV  = ".mkv"
	MOV  = ".mov"
	MP4  = ".mp4"
	MPEG = ".mpeg"
	MPG  = ".mpg"
	PNG  = ".png"
	TIF  = ".tif"
	TIFF = ".tiff"
	WEBP = ".webp"
	WMV  = ".wmv"
	AVI  = ".avi"
)

var DefaultMediaTypes = []string{
	JPG, JPEG, PNG, GIF, HEIC, WEBP, BMP, TIFF, TIF,
	MP4, MOV, AVI, MKV, M4V, GP3, WMV, MPG, MPEG,
}

// Types is a set of lower-case file extensions.
type Types map[string]bool

func NewTypes(exts []string) Types {
	types := make(Types, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		types[e] = true
	}
	return types
}

func (t Types) Match(name string) bool {
	return t[strings.ToLower(filepath.Ext(name))]
}

func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func hash(metrics *metrics.Metrics, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stop := metrics.Record("hash")
	defer func() { _ = stop() }()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// Hasher computes whole-file content hashes, consulting Cache first.
type Hasher struct {
	Cache   db.Repository
	Metrics *metrics.Metrics
}

func (h *Hasher) Hash(path string, size int64, modTime time.Time) ([]byte, error) {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}

	if h.Cache != nil {
		if cached, ok := h.Cache.Lookup(key, size, modTime); ok {
			_ = h.Metrics.Increment(metrics.CacheHits)
			return cached, nil
		}
	}

	sum, err := hash(h.Metrics, path)
	if err != nil {
		return nil, err
	}
	_ = h.Metrics.Increment(metrics.Hash)

	if h.Cache != nil {
		// a cache write failure only costs a re-hash next time
		_ = h.Cache.Store(key, size, modTime, sum)
	}

	return sum, nil
}

// File is a regular file found while walking a tree.
type File struct {
	Path    string
	Size    int64
	ModTime time.Time
	Err     error
}

// Walk streams every regular, non-hidden file under root whose extension is in
// types. Directories named in skip (relative to root) and hidden directories
// are not descended into. Unreadable entries are reported with Err set and the
// walk continues.
func Walk(root string, types Types, skip ...string) <-chan File {
	files := make(chan File)

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Clean(s)] = true
	}

	go func() {
		defer close(files)

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				files <- File{Path: path, Err: err}
				return nil
			}

			if d.IsDir() {
				if path == root {
					return nil
				}
				rel, _ := filepath.Rel(root, path)
				if IsHidden(d.Name()) || skipped[rel] {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || IsHidden(d.Name()) || !types.Match(d.Name()) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				files <- File{Path: path, Err: err}
				return nil
			}

			files <- File{Path: path, Size: info.Size(), ModTime: info.ModTime()}
			return nil
		})
	}()

	return files
}
