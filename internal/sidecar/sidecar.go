// Package sidecar reads the per-file JSON metadata documents that travel
// next to exported media, and knows the naming conventions used for them.
//
// Every field is optional. A field that is missing or has an unexpected
// shape is left empty; only a document that is not JSON at all produces an
// error, and even then the returned record is usable for name matching.
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fedragon/go-takeout/internal/models"
)

const (
	Ext = ".json"

	// AlbumMetadataName is the per-album document; it never describes a media file.
	AlbumMetadataName = "metadata.json"
)

// suffixes lists every form of the sidecar suffix, from the complete one to
// the shortest, as produced when long names are truncated during export.
var suffixes = []string{
	".supplemental-metadata.json",
	".supplemental-metadat.json",
	".supplemental-metada.json",
	".supplemental-metad.json",
	".supplemental-meta.json",
	".supplemental-met.json",
	".supplemental-me.json",
	".supplemental-m.json",
	".supplemental-.json",
	".supplemental.json",
	".supplementa.json",
	".supplement.json",
	".supplemen.json",
	".suppleme.json",
	".supplem.json",
	".supple.json",
	".suppl.json",
	".supp.json",
	".sup.json",
	".su.json",
	".s.json",
	".json",
}

// IsSidecar reports whether name looks like a media sidecar.
func IsSidecar(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, Ext) && lower != AlbumMetadataName
}

// StripSuffix removes the longest known sidecar suffix from name and
// returns the remaining media name. ok is false if name is not a sidecar name.
func StripSuffix(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return name[:len(name)-len(s)], true
		}
	}
	return "", false
}

// NameFor is the name a sidecar gets when copied next to mediaPath.
func NameFor(mediaPath string) string {
	return mediaPath + Ext
}

type document struct {
	Title          json.RawMessage `json:"title"`
	Description    json.RawMessage `json:"description"`
	PhotoTakenTime json.RawMessage `json:"photoTakenTime"`
	CreationTime   json.RawMessage `json:"creationTime"`
	GeoData        json.RawMessage `json:"geoData"`
	GeoDataExif    json.RawMessage `json:"geoDataExif"`
	People         json.RawMessage `json:"people"`
}

// Load reads and parses the sidecar at path. The returned record is never nil.
func Load(path string) *models.SidecarRecord {
	b, err := os.ReadFile(path)
	if err != nil {
		return &models.SidecarRecord{Path: path, Err: fmt.Errorf("read sidecar: %w", err)}
	}
	r := Parse(b)
	r.Path = path
	return r
}

// Parse decodes a sidecar document. The returned record is never nil.
func Parse(b []byte) *models.SidecarRecord {
	r := &models.SidecarRecord{}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		r.Err = fmt.Errorf("parse sidecar: %w", err)
		return r
	}

	r.Title = parseString(doc.Title)
	r.Description = parseString(doc.Description)
	r.TakenTime = parseTimestamp(doc.PhotoTakenTime)
	r.CreationTime = parseTimestamp(doc.CreationTime)
	r.Geo = parseGeo(doc.GeoData)
	if r.Geo == nil {
		r.Geo = parseGeo(doc.GeoDataExif)
	}
	r.People = parsePeople(doc.People)

	return r
}

func parseString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// parseTimestamp accepts {"timestamp": "1589155200"} as well as a bare number.
func parseTimestamp(raw json.RawMessage) *time.Time {
	if len(raw) == 0 {
		return nil
	}

	var obj struct {
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(obj.Timestamp, &n); err != nil {
		var s string
		if err := json.Unmarshal(obj.Timestamp, &s); err != nil {
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}

	secs, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}

	t := time.Unix(secs, 0).UTC()
	return &t
}

func parseGeo(raw json.RawMessage) *models.GeoPoint {
	if len(raw) == 0 {
		return nil
	}

	var g struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Altitude  float64 `json:"altitude"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil
	}
	if g.Latitude == 0 && g.Longitude == 0 {
		return nil
	}

	return &models.GeoPoint{Latitude: g.Latitude, Longitude: g.Longitude, Altitude: g.Altitude}
}

func parsePeople(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var people []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &people); err != nil {
		return nil
	}

	var names []string
	for _, p := range people {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}
