// Package metadata extracts capture times embedded in image files.
package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
)

const (
	exifLayout = "2006:01:02 15:04:05"
	minYear    = 1970
)

var (
	// tags are tried in order; the first parseable one wins.
	tags = []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime}

	exifTypes = map[string]bool{".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true, ".png": true}
)

// EXIF reads capture times from EXIF blocks.
type EXIF struct {
	Logger *zap.Logger
}

func NewEXIF(logger *zap.Logger) *EXIF {
	return &EXIF{Logger: logger}
}

// CaptureTime returns the embedded capture time of the image at path, in UTC.
// ok is false when the file type carries no EXIF, the block is missing or
// unreadable, or no date tag holds a plausible value.
func (e *EXIF) CaptureTime(path string) (time.Time, bool) {
	if !exifTypes[strings.ToLower(filepath.Ext(path))] {
		return time.Time{}, false
	}

	f, err := os.Open(path)
	if err != nil {
		e.Logger.Debug("Cannot open file for EXIF", zap.String("path", path), zap.Error(err))
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		e.Logger.Debug("No readable EXIF block", zap.String("path", path), zap.Error(err))
		return time.Time{}, false
	}

	for _, name := range tags {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, ok := parse(value); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

func parse(value string) (time.Time, bool) {
	value = strings.TrimSpace(strings.TrimRight(value, "\x00"))
	if len(value) < len(exifLayout) {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(exifLayout, value[:len(exifLayout)], time.UTC)
	if err != nil || t.Year() < minYear {
		return time.Time{}, false
	}
	return t, true
}
