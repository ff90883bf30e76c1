package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fedragon/go-takeout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsSynthetic(t *testing.T) {
	cases := []struct {
		name     string
		expected bool
	}{
		{name: "Photos from 2020", expected: true},
		{name: "photos FROM 1999", expected: true},
		{name: "Photos from 2020 - Italy", expected: false},
		{name: "Photos from 20", expected: false},
		{name: "Summer Trip", expected: false},
	}

	for _, c := range cases {
		if got := IsSynthetic(c.name); got != c.expected {
			t.Errorf("IsSynthetic(%q)\n\tExpected %v but got %v instead", c.name, c.expected, got)
		}
	}
}

func TestAlbumDirName(t *testing.T) {
	assert.Equal(t, "AC-DC live- 2020", AlbumDirName("AC/DC live: 2020"))
	assert.Equal(t, "", AlbumDirName("   "))
}

func copied(path string) *models.MediaRecord {
	return &models.MediaRecord{SourcePath: "/src/" + filepath.Base(path), Status: models.StatusCopied, DestinationPath: path, CanonicalPath: path}
}

func TestLink(t *testing.T) {
	out := t.TempDir()
	a := writeFile(t, filepath.Join(out, "2019", "05", "a.jpg"), "a")
	b := writeFile(t, filepath.Join(out, "2020", "01", "a.jpg"), "b")
	c := writeFile(t, filepath.Join(out, "2020", "01", "c.jpg"), "c")

	duplicate := &models.MediaRecord{SourcePath: "/src/dup.jpg", Status: models.StatusDuplicate, CanonicalPath: c}
	failed := &models.MediaRecord{SourcePath: "/src/err.jpg", Status: models.StatusError}

	albums := []*models.AlbumRecord{
		{Name: "Summer: Trip", Entries: []*models.MediaRecord{copied(a), copied(b), duplicate, failed}},
		{Name: "Photos from 2019", Synthetic: true, Entries: []*models.MediaRecord{copied(c)}},
		{Name: " ", Entries: []*models.MediaRecord{copied(c)}},
	}

	root := filepath.Join(out, AlbumsDir)
	linker := &AlbumLinker{Root: root, Logger: zap.NewNop()}
	require.NoError(t, linker.Link(context.Background(), albums))

	assert.Equal(t, []string{"Summer- Trip"}, readDir(t, root))

	dir := filepath.Join(root, "Summer- Trip")
	assert.Equal(t, []string{"a.jpg", "a_2.jpg"}, readDir(t, dir))

	target, err := os.Readlink(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "..", "2019", "05", "a.jpg"), target)

	content, err := os.ReadFile(filepath.Join(dir, "a_2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(content))

	// linking again changes nothing
	require.NoError(t, linker.Link(context.Background(), albums))
	assert.Equal(t, []string{"a.jpg", "a_2.jpg"}, readDir(t, dir))
}

func TestLinkDuplicates(t *testing.T) {
	out := t.TempDir()
	c := writeFile(t, filepath.Join(out, "2020", "01", "c.jpg"), "c")
	duplicate := &models.MediaRecord{SourcePath: "/src/dup.jpg", Status: models.StatusDuplicate, CanonicalPath: c}

	root := filepath.Join(out, AlbumsDir)
	linker := &AlbumLinker{Root: root, LinkDuplicates: true, Logger: zap.NewNop()}
	require.NoError(t, linker.Link(context.Background(), []*models.AlbumRecord{{Name: "Party", Entries: []*models.MediaRecord{duplicate}}}))

	assert.Equal(t, []string{"c.jpg"}, readDir(t, filepath.Join(root, "Party")))
	assert.Equal(t, models.StatusDuplicate, duplicate.Status)
}

func TestLinkFailure(t *testing.T) {
	out := t.TempDir()
	a := writeFile(t, filepath.Join(out, "2019", "05", "a.jpg"), "a")
	root := filepath.Join(out, AlbumsDir)

	// a regular file where the album directory should go
	writeFile(t, filepath.Join(root, "Trip"), "")

	member := copied(a)
	linker := &AlbumLinker{Root: root, Logger: zap.NewNop()}
	require.NoError(t, linker.Link(context.Background(), []*models.AlbumRecord{{Name: "Trip", Entries: []*models.MediaRecord{member}}}))

	assert.Equal(t, models.StatusError, member.Status)
	assert.Equal(t, models.StageAlbum, member.Err.Stage)
}

func TestLinkDryRun(t *testing.T) {
	out := t.TempDir()
	a := writeFile(t, filepath.Join(out, "2019", "05", "a.jpg"), "a")
	root := filepath.Join(out, AlbumsDir)

	linker := &AlbumLinker{Root: root, DryRun: true, Logger: zap.NewNop()}
	require.NoError(t, linker.Link(context.Background(), []*models.AlbumRecord{{Name: "Trip", Entries: []*models.MediaRecord{copied(a)}}}))

	assert.NoDirExists(t, root)
}

func readDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
