package models

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCopied    Status = "copied"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

// Terminal reports whether the record has left the pipeline.
func (s Status) Terminal() bool {
	return s == StatusCopied || s == StatusDuplicate || s == StatusError
}

type DateSource string

const (
	DateFromEXIF           DateSource = "exif"
	DateFromSidecarTaken   DateSource = "json_taken"
	DateFromFilename       DateSource = "filename"
	DateFromSidecarCreated DateSource = "json_created"
	DateFromModTime        DateSource = "mtime"
)

type Stage string

const (
	StageIndex Stage = "index"
	StageMatch Stage = "match"
	StageDate  Stage = "date"
	StageHash  Stage = "hash"
	StageDedup Stage = "dedup"
	StageCopy  Stage = "copy"
	StageAlbum Stage = "album"
)

// StageError is a non-fatal, per-file failure.
type StageError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type GeoPoint struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// SidecarRecord holds the optional fields of a per-file metadata document.
// A nil time or geo pointer means the field was missing or malformed.
type SidecarRecord struct {
	Path         string
	Title        string
	TakenTime    *time.Time
	CreationTime *time.Time
	People       []string
	Geo          *GeoPoint
	Description  string
	Err          error
}

type MediaRecord struct {
	SourcePath string
	Name       string
	Size       int64
	ModTime    time.Time
	Album      string

	Sidecar   *SidecarRecord
	MatchedBy string

	ResolvedDate time.Time
	DateSource   DateSource

	Hash        []byte
	Fingerprint string

	DestinationPath string
	CanonicalPath   string
	Resumed         bool

	Status Status
	Err    *StageError
}

// Fail moves the record to the error state. Only the album stage may fail
// a record that is already copied.
func (m *MediaRecord) Fail(stage Stage, err error) {
	m.Status = StatusError
	m.Err = &StageError{Path: m.SourcePath, Stage: stage, Err: err}
}

type AlbumRecord struct {
	Name      string
	Synthetic bool
	Entries   []*MediaRecord
	Sidecars  []*SidecarRecord
}

// Members returns the entries that ended up copied.
func (a *AlbumRecord) Members() []*MediaRecord {
	members := make([]*MediaRecord, 0, len(a.Entries))
	for _, m := range a.Entries {
		if m.Status == StatusCopied && m.DestinationPath != "" {
			members = append(members, m)
		}
	}
	return members
}

type Outcome struct {
	SourcePath      string     `json:"source_path"`
	Album           string     `json:"album"`
	Status          Status     `json:"status"`
	ResolvedDate    time.Time  `json:"resolved_date"`
	DateSource      DateSource `json:"date_source"`
	Fingerprint     string     `json:"fingerprint,omitempty"`
	DestinationPath string     `json:"destination_path,omitempty"`
	CanonicalPath   string     `json:"canonical_path,omitempty"`
	Resumed         bool       `json:"resumed,omitempty"`
	Sidecar         string     `json:"sidecar,omitempty"`
	ErrorStage      Stage      `json:"error_stage,omitempty"`
	ErrorDetail     string     `json:"error_detail,omitempty"`
}

func (m *MediaRecord) Outcome() Outcome {
	o := Outcome{
		SourcePath:      m.SourcePath,
		Album:           m.Album,
		Status:          m.Status,
		ResolvedDate:    m.ResolvedDate,
		DateSource:      m.DateSource,
		Fingerprint:     m.Fingerprint,
		DestinationPath: m.DestinationPath,
		CanonicalPath:   m.CanonicalPath,
		Resumed:         m.Resumed,
	}
	if m.Sidecar != nil {
		o.Sidecar = m.Sidecar.Path
	}
	if m.Err != nil {
		o.ErrorStage = m.Err.Stage
		o.ErrorDetail = m.Err.Err.Error()
	}
	return o
}
