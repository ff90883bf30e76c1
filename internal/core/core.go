// Package core implements the migration pipeline: indexing an export forest,
// pairing media with sidecars, resolving capture dates, deduplicating by
// fingerprint, copying into a dated tree, and linking albums.
package core

import (
	"time"

	"github.com/fedragon/go-takeout/internal/models"
)

// CaptureTimeExtractor reads a capture time embedded in a media file.
type CaptureTimeExtractor interface {
	CaptureTime(path string) (time.Time, bool)
}

// ContentHasher returns the content hash of a file.
type ContentHasher interface {
	Hash(path string, size int64, modTime time.Time) ([]byte, error)
}

// Reporter receives one outcome per indexed file.
type Reporter interface {
	Report(outcome models.Outcome)
}

type noCaptureTime struct{}

func (noCaptureTime) CaptureTime(string) (time.Time, bool) { return time.Time{}, false }
