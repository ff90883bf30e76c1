package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fedragon/go-takeout/internal/fs"
	"github.com/fedragon/go-takeout/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIndexer(mx *metrics.Metrics) *Indexer {
	return &Indexer{
		Layout:  fs.Layout{ExportRootPrefix: fs.DefaultExportRootPrefix, ContainerName: fs.DefaultContainerName},
		Types:   fs.NewTypes(fs.DefaultMediaTypes),
		Logger:  zap.NewNop(),
		Metrics: mx,
	}
}

func TestIndex(t *testing.T) {
	source := t.TempDir()
	first := filepath.Join(source, "Takeout")
	second := filepath.Join(source, "Takeout 2")

	writeMedia(t, first, "Trip", "a.jpg", "a", mayTheSecond)
	writeMedia(t, second, "Trip", "b.jpg", "b", mayTheSecond)
	writeMedia(t, second, "Photos from 2019", "c.mp4", "c", mayTheSecond)
	writeFile(t, filepath.Join(first, fs.DefaultContainerName, "Trip", "metadata.json"), `{"title": "Trip"}`)
	writeFile(t, filepath.Join(first, fs.DefaultContainerName, "Trip", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(first, fs.DefaultContainerName, "Empty", ".keep"), "")

	mx := metrics.NewMetrics()
	catalog, err := newIndexer(mx).Index(context.Background(), source)
	require.NoError(t, err)

	assert.Len(t, catalog.Roots, 2)
	require.Len(t, catalog.Albums, 2)

	trip := catalog.Albums[0]
	assert.Equal(t, "Trip", trip.Name)
	assert.False(t, trip.Synthetic)
	assert.Len(t, trip.Entries, 2)
	assert.Len(t, trip.Sidecars, 2)

	assert.Equal(t, "Photos from 2019", catalog.Albums[1].Name)
	assert.True(t, catalog.Albums[1].Synthetic)

	var names []string
	for _, m := range catalog.Records {
		names = append(names, m.Name)
		assert.Equal(t, int64(1), m.Size)
	}
	assert.Equal(t, []string{"a.jpg", "c.mp4", "b.jpg"}, names)
	assert.Equal(t, int64(3), mx.Count(metrics.Indexed))
	assert.Empty(t, catalog.Errors)
}

func TestIndexMergesNormalisedAlbumNames(t *testing.T) {
	source := t.TempDir()
	writeMedia(t, filepath.Join(source, "Takeout"), "Caf\u00e9", "a.jpg", "a", mayTheSecond)
	writeMedia(t, filepath.Join(source, "Takeout 2"), "Cafe\u0301", "b.jpg", "b", mayTheSecond)

	catalog, err := newIndexer(nil).Index(context.Background(), source)
	require.NoError(t, err)

	require.Len(t, catalog.Albums, 1)
	assert.Equal(t, "Caf\u00e9", catalog.Albums[0].Name)
	assert.Len(t, catalog.Albums[0].Entries, 2)
}

func TestIndexKeepsUndecodableNames(t *testing.T) {
	source := t.TempDir()
	album := "Tr\xffip"
	name := "p\xfeic.jpg"
	writeFile(t, filepath.Join(source, "Takeout", fs.DefaultContainerName, album, name), "pic")

	mx := metrics.NewMetrics()
	catalog, err := newIndexer(mx).Index(context.Background(), source)
	require.NoError(t, err)

	require.Len(t, catalog.Records, 1)
	assert.Equal(t, name, catalog.Records[0].Name)
	assert.Equal(t, filepath.Join(source, "Takeout", fs.DefaultContainerName, album, name), catalog.Records[0].SourcePath)
	require.Len(t, catalog.Albums, 1)
	assert.Len(t, catalog.Albums[0].Entries, 1)
	assert.Equal(t, int64(1), mx.Count(metrics.Indexed))
	assert.Empty(t, catalog.Errors)
}

func TestIndexErrors(t *testing.T) {
	cases := []struct {
		name   string
		source func(t *testing.T) string
		target error
	}{
		{
			name:   "missing source",
			source: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
		},
		{
			name: "no export roots",
			source: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, filepath.Join(dir, "random", "file.jpg"), "x")
				return dir
			},
			target: ErrNoExportRoots,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := newIndexer(nil).Index(context.Background(), c.source(t))
			require.Error(t, err)
			if c.target != nil {
				assert.True(t, errors.Is(err, c.target))
			}
		})
	}
}
