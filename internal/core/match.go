package core

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"
	"github.com/fedragon/go-takeout/internal/sidecar"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Labels for how a sidecar was paired with its media file.
const (
	MatchedByName      = "name"
	MatchedByTitle     = "title"
	MatchedByTitleFold = "title_fold"
	MatchedByPrefix    = "prefix"
	MatchedByEdited    = "edited"
)

var (
	// IMG(1).jpg is described by IMG.jpg(1).json
	numbered = regexp.MustCompile(`^(.*)\((\d+)\)(\.[^.]*)$`)

	editedSuffixes = []string{"-edited", "-bearbeitet", "-modifié", "-editado", "-modificato"}
)

// Candidate is a sidecar key that shares a prefix with a media name.
type Candidate struct {
	Key    string
	Length int
}

// RankPrefixCandidates returns the keys that are a prefix of name, or of which
// name is a prefix, sharing at least minLength bytes with it. The result is
// ordered by shared length, longest first, then by key.
func RankPrefixCandidates(name string, keys []string, minLength int) []Candidate {
	var ranked []Candidate
	for _, k := range keys {
		if k == "" || k == name {
			continue
		}

		var length int
		switch {
		case strings.HasPrefix(name, k):
			length = len(k)
		case strings.HasPrefix(k, name):
			length = len(name)
		default:
			continue
		}

		if length >= minLength {
			ranked = append(ranked, Candidate{Key: k, Length: length})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Length != ranked[j].Length {
			return ranked[i].Length > ranked[j].Length
		}
		return ranked[i].Key < ranked[j].Key
	})
	return ranked
}

// PickPrefixCandidate returns the key of the longest shared length held by
// exactly one candidate.
func PickPrefixCandidate(ranked []Candidate) (string, bool) {
	for i := 0; i < len(ranked); {
		j := i
		for j < len(ranked) && ranked[j].Length == ranked[i].Length {
			j++
		}
		if j-i == 1 {
			return ranked[i].Key, true
		}
		i = j
	}
	return "", false
}

type Matcher struct {
	MinPrefixLength int
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

// Match pairs every entry of every album with at most one sidecar of the
// same album.
func (mt *Matcher) Match(albums []*models.AlbumRecord) {
	var matched int
	for _, a := range albums {
		idx := newSidecarIndex(a.Sidecars)
		for _, m := range a.Entries {
			sc, by := idx.find(norm.NFC.String(m.Name), mt.MinPrefixLength)
			if sc == nil {
				mt.Logger.Debug("No sidecar found", zap.String("path", m.SourcePath))
				continue
			}

			m.Sidecar = sc
			m.MatchedBy = by
			idx.claimed[sc] = true
			matched++
			_ = mt.Metrics.Increment(metrics.SidecarMatched)
		}
	}
	mt.Logger.Info("Matched sidecars", zap.Int("matched", matched))
}

type sidecarIndex struct {
	byName      map[string]*models.SidecarRecord
	byTitle     map[string][]*models.SidecarRecord
	byTitleFold map[string][]*models.SidecarRecord
	keys        []string
	claimed     map[*models.SidecarRecord]bool
	fold        cases.Caser
}

func newSidecarIndex(sidecars []*models.SidecarRecord) *sidecarIndex {
	idx := &sidecarIndex{
		byName:      make(map[string]*models.SidecarRecord),
		byTitle:     make(map[string][]*models.SidecarRecord),
		byTitleFold: make(map[string][]*models.SidecarRecord),
		claimed:     make(map[*models.SidecarRecord]bool),
		fold:        cases.Fold(),
	}

	for _, sc := range sidecars {
		if stripped, ok := sidecar.StripSuffix(filepath.Base(sc.Path)); ok {
			key := norm.NFC.String(stripped)
			if _, seen := idx.byName[key]; !seen {
				idx.byName[key] = sc
				idx.keys = append(idx.keys, key)
			}
		}

		if sc.Title != "" {
			title := norm.NFC.String(sc.Title)
			idx.byTitle[title] = append(idx.byTitle[title], sc)
			folded := idx.fold.String(title)
			idx.byTitleFold[folded] = append(idx.byTitleFold[folded], sc)
		}
	}

	return idx
}

func (idx *sidecarIndex) find(name string, minPrefix int) (*models.SidecarRecord, string) {
	if sc, by := idx.findExact(name, minPrefix); sc != nil {
		return sc, by
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for _, suffix := range editedSuffixes {
		if base, ok := cutSuffixFold(stem, suffix); ok && base != "" {
			if sc, _ := idx.findExact(base+ext, minPrefix); sc != nil {
				return sc, MatchedByEdited
			}
		}
	}

	return nil, ""
}

func (idx *sidecarIndex) findExact(name string, minPrefix int) (*models.SidecarRecord, string) {
	if sc, ok := idx.byName[name]; ok {
		return sc, MatchedByName
	}
	if groups := numbered.FindStringSubmatch(name); groups != nil {
		if sc, ok := idx.byName[groups[1]+groups[3]+"("+groups[2]+")"]; ok {
			return sc, MatchedByName
		}
	}

	if sc := idx.pick(idx.byTitle[name]); sc != nil {
		return sc, MatchedByTitle
	}
	if sc := idx.pick(idx.byTitleFold[idx.fold.String(name)]); sc != nil {
		return sc, MatchedByTitleFold
	}

	if key, ok := PickPrefixCandidate(RankPrefixCandidates(name, idx.keys, minPrefix)); ok {
		return idx.byName[key], MatchedByPrefix
	}

	return nil, ""
}

// pick prefers a sidecar no other entry has taken yet.
func (idx *sidecarIndex) pick(candidates []*models.SidecarRecord) *models.SidecarRecord {
	for _, sc := range candidates {
		if !idx.claimed[sc] {
			return sc
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) < len(suffix) || !strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s, false
	}
	return s[:len(s)-len(suffix)], true
}
