package export

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmlog/internal/batch"
	"swarmlog/internal/metrics"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testBatch() *batch.Batch {
	return &batch.Batch{
		ID:      uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"),
		Root:    "/data",
		Mode:    batch.ModeMetrics,
		Columns: []string{"loc_offset", metrics.NameStableTime},
		Results: []batch.RunResult{
			{
				Path:   "/data/run1",
				Status: batch.StatusCompleted,
				Values: []metrics.Value{
					{Name: "loc_offset", Value: 3},
					{Name: metrics.NameStableTime, Value: 66.67},
				},
			},
			{
				Path:   "/data/run2",
				Status: batch.StatusError,
				Err:    errors.New("no outformation file"),
			},
			{
				Path:   "/data/run3",
				Status: batch.StatusCompleted,
				Values: []metrics.Value{
					{Name: "loc_offset", Value: metrics.Undefined},
					{Name: metrics.NameStableTime, Value: 100},
				},
			},
		},
	}
}

// TestWriteResults tests the result table layout
func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, testBatch()))

	expected := "Path,Status,loc_offset,stable_time\n" +
		"/data/run1,Completed,3,66.67\n" +
		"/data/run2,Error,,\n" +
		"/data/run3,Completed,-1,100\n"
	assert.Equal(t, expected, buf.String())
}

func newTestArchive(t *testing.T, now time.Time) (*Archive, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "results")

	archive, err := NewArchive(dir, true, testLogger())
	require.NoError(t, err)
	archive.now = func() time.Time { return now }
	return archive, dir
}

// TestArchive_Save tests result file naming and compression of older files
func TestArchive_Save(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	archive, dir := newTestArchive(t, now)
	assert.DirExists(t, dir)

	old := filepath.Join(dir, "metrics_2024-03-14_aaaaaaaa.csv")
	require.NoError(t, os.WriteFile(old, []byte("Path,Status\n"), 0644))
	sameDay := filepath.Join(dir, "metrics_2024-03-15_bbbbbbbb.csv")
	require.NoError(t, os.WriteFile(sameDay, []byte("Path,Status\n"), 0644))

	path, err := archive.Save(testBatch())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "metrics_2024-03-15_0f8fad5b.csv"), path)
	assert.FileExists(t, path)
	assert.FileExists(t, sameDay)

	// The older file is replaced by its gzip copy
	assert.NoFileExists(t, old)
	f, err := os.Open(old + ".gz")
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, "metrics_2024-03-14_aaaaaaaa.csv", gz.Name)
	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "Path,Status\n", string(content))

	files, err := archive.Files()
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

// TestArchive_Cleanup tests removal of old result files
func TestArchive_Cleanup(t *testing.T) {
	archive, dir := newTestArchive(t, time.Now())

	oldFile := filepath.Join(dir, "metrics_2023-01-01_aaaaaaaa.csv.gz")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := filepath.Join(dir, "metrics_2023-12-31_bbbbbbbb.csv")
	require.NoError(t, os.WriteFile(recentFile, []byte("recent"), 0644))

	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep"), 0644))
	require.NoError(t, os.Chtimes(other, oldTime, oldTime))

	removed, err := archive.Cleanup(5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, recentFile)
	assert.FileExists(t, other)

	_, err = archive.Cleanup(0)
	assert.Error(t, err)
}
