package core

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"
)

const minFilenameYear = 1970

// DateInput is everything a DateRule may look at.
type DateInput struct {
	Path    string
	ModTime time.Time
	Sidecar *models.SidecarRecord
}

// DateRule is one step of the date cascade. Resolve reports false when its
// source is absent or unparseable.
type DateRule struct {
	Source  models.DateSource
	Resolve func(in DateInput) (time.Time, bool)
}

type datePattern struct {
	regex  *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`(?:^|\D)(\d{8}_\d{6})(?:\D|$)`), "20060102_150405"},
	{regexp.MustCompile(`(?:^|\D)(\d{4}-\d{2}-\d{2})[_ -](\d{2}-\d{2}-\d{2})(?:\D|$)`), "2006-01-02_15-04-05"},
	{regexp.MustCompile(`(?:^|\D)(\d{8})(?:\D|$)`), "20060102"},
}

// DateResolver runs its rules in order; the first that resolves wins.
type DateResolver struct {
	Rules   []DateRule
	Metrics *metrics.Metrics
}

// NewDateResolver returns the standard cascade: embedded metadata, sidecar
// capture time, filename, sidecar creation time, modification time.
func NewDateResolver(extractor CaptureTimeExtractor, now func() time.Time) *DateResolver {
	if extractor == nil {
		extractor = noCaptureTime{}
	}
	if now == nil {
		now = time.Now
	}

	return &DateResolver{
		Rules: []DateRule{
			{Source: models.DateFromEXIF, Resolve: func(in DateInput) (time.Time, bool) {
				return extractor.CaptureTime(in.Path)
			}},
			{Source: models.DateFromSidecarTaken, Resolve: SidecarTakenTime},
			{Source: models.DateFromFilename, Resolve: func(in DateInput) (time.Time, bool) {
				return DateFromFilename(filepath.Base(in.Path), now())
			}},
			{Source: models.DateFromSidecarCreated, Resolve: SidecarCreationTime},
			{Source: models.DateFromModTime, Resolve: ModTime},
		},
	}
}

// Resolve never fails: when no rule resolves, the modification time is used.
func (r *DateResolver) Resolve(in DateInput) (time.Time, models.DateSource) {
	for _, rule := range r.Rules {
		if t, ok := rule.Resolve(in); ok {
			return t, rule.Source
		}
	}
	return in.ModTime, models.DateFromModTime
}

// Apply resolves the date of m and records it.
func (r *DateResolver) Apply(m *models.MediaRecord) {
	m.ResolvedDate, m.DateSource = r.Resolve(DateInput{Path: m.SourcePath, ModTime: m.ModTime, Sidecar: m.Sidecar})
	_ = r.Metrics.Increment(metrics.DateSource + string(m.DateSource))
}

func SidecarTakenTime(in DateInput) (time.Time, bool) {
	if in.Sidecar == nil || in.Sidecar.TakenTime == nil {
		return time.Time{}, false
	}
	return *in.Sidecar.TakenTime, true
}

func SidecarCreationTime(in DateInput) (time.Time, bool) {
	if in.Sidecar == nil || in.Sidecar.CreationTime == nil {
		return time.Time{}, false
	}
	return *in.Sidecar.CreationTime, true
}

func ModTime(in DateInput) (time.Time, bool) {
	return in.ModTime, !in.ModTime.IsZero()
}

// DateFromFilename recognises the common camera and phone naming schemes.
// Years outside [1970, now+1] are rejected.
func DateFromFilename(name string, now time.Time) (time.Time, bool) {
	for _, p := range datePatterns {
		groups := p.regex.FindStringSubmatch(name)
		if groups == nil {
			continue
		}

		value := strings.Join(groups[1:], "_")
		t, err := time.Parse(p.layout, value)
		if err != nil {
			continue
		}
		if t.Year() < minFilenameYear || t.Year() > now.Year()+1 {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
