package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fedragon/go-takeout/internal/fs"
	"github.com/fedragon/go-takeout/internal/metrics"
	"github.com/fedragon/go-takeout/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2019-05-02T10:15:03Z
const mayTheSecond = 1556792103

var (
	mayTheSecondUTC = time.Unix(mayTheSecond, 0).UTC()
	fixedNow        = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

// inLocation makes loc the local time zone until the test ends.
func inLocation(t *testing.T, loc *time.Location) {
	t.Helper()
	saved := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = saved })
}

func writeFile(t testing.TB, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sidecarJSON(title string, taken int64) string {
	return fmt.Sprintf(`{"title": %q, "photoTakenTime": {"timestamp": "%d"}}`, title, taken)
}

// writeMedia writes a media file and its sidecar into album under root.
func writeMedia(t testing.TB, root, album, name, content string, taken int64) string {
	t.Helper()
	path := writeFile(t, filepath.Join(root, fs.DefaultContainerName, album, name), content)
	writeFile(t, path+".json", sidecarJSON(name, taken))
	return path
}

// fakeEXIF answers by base name so copies resolve like their source.
type fakeEXIF map[string]time.Time

func (f fakeEXIF) CaptureTime(path string) (time.Time, bool) {
	t, ok := f[filepath.Base(path)]
	return t, ok
}

func newPipeline(dryRun bool, mx *metrics.Metrics) *Pipeline {
	return &Pipeline{
		Layout:          fs.Layout{ExportRootPrefix: fs.DefaultExportRootPrefix, ContainerName: fs.DefaultContainerName},
		Types:           fs.NewTypes(fs.DefaultMediaTypes),
		MinPrefixLength: 10,
		NumWorkers:      2,
		DryRun:          dryRun,
		Albums:          true,
		Hasher:          &fs.Hasher{},
		Extractor:       fakeEXIF{},
		Now:             func() time.Time { return fixedNow },
		Logger:          zap.NewNop(),
		Metrics:         mx,
	}
}

// listFiles returns every regular file below root, relative to it.
func listFiles(t testing.TB, root string) []string {
	t.Helper()

	var files []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, rel)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

func byStatus(records []*models.MediaRecord, status models.Status) []string {
	var paths []string
	for _, m := range records {
		if m.Status == status {
			paths = append(paths, m.SourcePath)
		}
	}
	sort.Strings(paths)
	return paths
}
