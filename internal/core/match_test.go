package core

import (
	"path/filepath"
	"testing"

	"github.com/fedragon/go-takeout/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRankPrefixCandidates(t *testing.T) {
	cases := []struct {
		name      string
		media     string
		keys      []string
		minLength int
		expected  []Candidate
	}{
		{
			name:      "truncated sidecar key is a prefix of the media name",
			media:     "Screenshot_2019-05-02-10-15-03-123_com.example.jpg",
			keys:      []string{"Screenshot_2019-05-02-10-15-03-123_com.exa", "unrelated"},
			minLength: 10,
			expected:  []Candidate{{Key: "Screenshot_2019-05-02-10-15-03-123_com.exa", Length: 42}},
		},
		{
			name:      "media name is a prefix of the key",
			media:     "holiday_pictures",
			keys:      []string{"holiday_pictures.jpg"},
			minLength: 10,
			expected:  []Candidate{{Key: "holiday_pictures.jpg", Length: 16}},
		},
		{
			name:      "short prefixes are rejected",
			media:     "IMG_1234.jpg",
			keys:      []string{"IMG_12"},
			minLength: 10,
		},
		{
			name:      "exact key is not a prefix candidate",
			media:     "long_file_name.jpg",
			keys:      []string{"long_file_name.jpg"},
			minLength: 1,
		},
		{
			name:      "longest first then by key",
			media:     "abcdefghijklmnop.jpg",
			keys:      []string{"abcdefghijkl", "abcdefghijklmn", "abcdefghijklmnp", "abcdefghijkl"},
			minLength: 10,
			expected: []Candidate{
				{Key: "abcdefghijklmn", Length: 14},
				{Key: "abcdefghijkl", Length: 12},
				{Key: "abcdefghijkl", Length: 12},
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, RankPrefixCandidates(c.media, c.keys, c.minLength))
		})
	}
}

func TestPickPrefixCandidate(t *testing.T) {
	cases := []struct {
		name     string
		ranked   []Candidate
		expected string
		ok       bool
	}{
		{name: "no candidates"},
		{
			name:     "single candidate",
			ranked:   []Candidate{{Key: "a", Length: 12}},
			expected: "a",
			ok:       true,
		},
		{
			name:     "longest unambiguous wins",
			ranked:   []Candidate{{Key: "a", Length: 14}, {Key: "b", Length: 12}, {Key: "c", Length: 12}},
			expected: "a",
			ok:       true,
		},
		{
			name:     "ambiguous longest group falls back to a shorter unambiguous one",
			ranked:   []Candidate{{Key: "a", Length: 14}, {Key: "b", Length: 14}, {Key: "c", Length: 12}},
			expected: "c",
			ok:       true,
		},
		{
			name:   "everything ambiguous",
			ranked: []Candidate{{Key: "a", Length: 14}, {Key: "b", Length: 14}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := PickPrefixCandidate(c.ranked)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.expected, got)
		})
	}
}

func album(name string, media []string, sidecars map[string]string) *models.AlbumRecord {
	a := &models.AlbumRecord{Name: name}
	for _, m := range media {
		a.Entries = append(a.Entries, &models.MediaRecord{
			SourcePath: filepath.Join("/src", name, m),
			Name:       m,
			Album:      name,
		})
	}
	for file, title := range sidecars {
		a.Sidecars = append(a.Sidecars, &models.SidecarRecord{Path: filepath.Join("/src", name, file), Title: title})
	}
	return a
}

func TestMatch(t *testing.T) {
	cases := []struct {
		name     string
		media    string
		sidecars map[string]string
		expected string
		by       string
	}{
		{
			name:     "exact name",
			media:    "IMG_0001.jpg",
			sidecars: map[string]string{"IMG_0001.jpg.json": "something else"},
			expected: "IMG_0001.jpg.json",
			by:       MatchedByName,
		},
		{
			name:     "supplemental metadata suffix",
			media:    "IMG_0001.jpg",
			sidecars: map[string]string{"IMG_0001.jpg.supplemental-metadata.json": ""},
			expected: "IMG_0001.jpg.supplemental-metadata.json",
			by:       MatchedByName,
		},
		{
			name:     "numbered copy",
			media:    "IMG_0001(1).jpg",
			sidecars: map[string]string{"IMG_0001.jpg(1).json": "", "IMG_0001.jpg.json": ""},
			expected: "IMG_0001.jpg(1).json",
			by:       MatchedByName,
		},
		{
			name:     "title case sensitive",
			media:    "Beach.JPG",
			sidecars: map[string]string{"other.json": "Beach.JPG", "third.json": "beach.jpg"},
			expected: "other.json",
			by:       MatchedByTitle,
		},
		{
			name:     "title case insensitive",
			media:    "Beach.JPG",
			sidecars: map[string]string{"other.json": "beach.jpg"},
			expected: "other.json",
			by:       MatchedByTitleFold,
		},
		{
			name:     "truncated sidecar name",
			media:    "a_very_long_file_name_exported_from_the_phone_gallery.jpg",
			sidecars: map[string]string{"a_very_long_file_name_exported_from_the_pho.json": ""},
			expected: "a_very_long_file_name_exported_from_the_pho.json",
			by:       MatchedByPrefix,
		},
		{
			name:  "ambiguous truncation matches nothing",
			media: "a_very_long_file_name.jpg",
			sidecars: map[string]string{
				"a_very_long_file_name.jpg(1).json": "",
				"a_very_long_file_name.jpg(2).json": "",
			},
		},
		{
			name:     "edited variant uses the original sidecar",
			media:    "IMG_0001-edited.jpg",
			sidecars: map[string]string{"IMG_0001.jpg.json": ""},
			expected: "IMG_0001.jpg.json",
			by:       MatchedByEdited,
		},
		{
			name:     "localised edited variant",
			media:    "IMG_0001-bearbeitet.jpg",
			sidecars: map[string]string{"IMG_0001.jpg.json": ""},
			expected: "IMG_0001.jpg.json",
			by:       MatchedByEdited,
		},
		{
			name:     "no sidecar",
			media:    "IMG_0001.jpg",
			sidecars: map[string]string{"IMG_0002.jpg.json": ""},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := album("Trip", []string{c.media}, c.sidecars)
			(&Matcher{MinPrefixLength: 10, Logger: zap.NewNop()}).Match([]*models.AlbumRecord{a})

			m := a.Entries[0]
			if c.expected == "" {
				assert.Nil(t, m.Sidecar)
				return
			}
			if assert.NotNil(t, m.Sidecar) {
				assert.Equal(t, c.expected, filepath.Base(m.Sidecar.Path))
				assert.Equal(t, c.by, m.MatchedBy)
			}
		})
	}
}

func TestMatchStaysWithinAlbum(t *testing.T) {
	trip := album("Trip", []string{"IMG_0001.jpg"}, nil)
	party := album("Party", nil, map[string]string{"IMG_0001.jpg.json": "IMG_0001.jpg"})

	(&Matcher{MinPrefixLength: 10, Logger: zap.NewNop()}).Match([]*models.AlbumRecord{trip, party})

	assert.Nil(t, trip.Entries[0].Sidecar)
}

func TestMatchLongestPrefix(t *testing.T) {
	a := album("Trip", []string{"a_very_long_file_name_exported.jpg"}, map[string]string{
		"a_very_long_file_name_exp.json": "",
		"a_very_long_file_name_exq.json": "",
		"a_very_long_file_name_ex.json":  "",
	})
	(&Matcher{MinPrefixLength: 10, Logger: zap.NewNop()}).Match([]*models.AlbumRecord{a})

	// "a_very_long_file_name_exp" is the only key sharing 25 bytes
	if assert.NotNil(t, a.Entries[0].Sidecar) {
		assert.Equal(t, "a_very_long_file_name_exp.json", filepath.Base(a.Entries[0].Sidecar.Path))
	}
}

func TestMatchTitleSharedByTwoEntries(t *testing.T) {
	a := album("Trip", []string{"copy_one.jpg", "copy_two.jpg"}, nil)
	a.Sidecars = []*models.SidecarRecord{
		{Path: "/src/Trip/x.json", Title: "same"},
		{Path: "/src/Trip/y.json", Title: "same"},
	}
	a.Entries[0].Name = "same"
	a.Entries[1].Name = "same"

	(&Matcher{MinPrefixLength: 10, Logger: zap.NewNop()}).Match([]*models.AlbumRecord{a})

	assert.Equal(t, "/src/Trip/x.json", a.Entries[0].Sidecar.Path)
	assert.Equal(t, "/src/Trip/y.json", a.Entries[1].Sidecar.Path)
}
