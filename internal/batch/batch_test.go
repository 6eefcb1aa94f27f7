package batch

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"swarmlog/internal/frame"
	"swarmlog/internal/geo"
	"swarmlog/internal/logtable"
	"swarmlog/internal/metrics"
	"swarmlog/internal/record"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func header(id int32, t, lng, lat, h float64) []byte {
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))
	for i, v := range []float64{t, lng, lat, h} {
		b = protowire.AppendTag(b, protowire.Number(3+i), protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

// writeRun creates a run directory with two aircraft over two time steps
func writeRun(t *testing.T, dir string, withEvents bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))

	aircraft := []byte{0x00}
	for _, s := range []struct {
		id  int32
		t   float64
		lng float64
	}{{1, 1, 13.10}, {2, 1, 13.12}, {1, 2, 13.11}, {2, 2, 13.13}} {
		p := protowire.AppendTag(nil, 1, protowire.BytesType)
		p = protowire.AppendBytes(p, header(s.id, s.t, s.lng, 43.7, 2000))
		aircraft = frame.AppendLength(aircraft, len(p))
		aircraft = append(aircraft, p...)
		aircraft = append(aircraft, 0x00)
	}

	var centers []byte
	for _, tm := range []float64{1, 2} {
		p := header(record.CenterBroadcastID, tm, 13.1, 43.7, 2000)
		centers = append(centers, 2)
		centers = frame.AppendLength(centers, len(p))
		centers = append(centers, p...)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "simudata_1.log"), aircraft, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "expdata_1.log"), centers, 0644))
	if withEvents {
		events := "time:1 outFormation:0 totalsize:20\ntime:2 outFormation:0 totalsize:20\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "outformation_1.txt"), []byte(events), 0644))
	}
}

func newRunner(t *testing.T, options Options) *Runner {
	t.Helper()
	logger := testLogger()
	builder := logtable.NewBuilder(geo.WebMercator{}, logger)
	engine := metrics.NewEngine(metrics.DefaultParams(), geo.WebMercator{})

	runner, err := NewRunner(builder, engine, options, logger)
	require.NoError(t, err)
	return runner
}

// TestStatus_String tests status labels
func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
		done     bool
	}{
		{StatusPending, "Pending", false},
		{StatusWaiting, "Waiting", false},
		{StatusProcessing, "Processing", false},
		{StatusCompleted, "Completed", true},
		{StatusError, "Error", true},
		{Status(42), "Unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
			assert.Equal(t, tt.done, tt.status.Done())
		})
	}
}

// TestWalkRunDirectories tests run directory discovery
func TestWalkRunDirectories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"run_b", "run_a", "empty", "nested/run_c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "run_b", "simudata_1.log"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "run_a", "outformation_1.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "run_c", "msgData_1.log"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty", "notes.txt"), nil, 0644))

	dirs, err := WalkRunDirectories(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "nested", "run_c"),
		filepath.Join(root, "run_a"),
		filepath.Join(root, "run_b"),
	}, dirs)

	_, err = WalkRunDirectories(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

// TestRunner_Metrics tests a metrics batch with one failing run
func TestRunner_Metrics(t *testing.T) {
	root := t.TempDir()
	good1 := filepath.Join(root, "run1")
	bad := filepath.Join(root, "run2")
	good2 := filepath.Join(root, "run3")
	writeRun(t, good1, true)
	writeRun(t, bad, false)
	writeRun(t, good2, true)
	require.NoError(t, os.WriteFile(filepath.Join(good1, logtable.InputFile),
		[]byte("20,3,0.5,2,0.8,0.05,2,0,5,1,1,2,3,1,6,2,4,5,6\n"), 0644))

	runner := newRunner(t, Options{
		Mode:    ModeMetrics,
		Workers: 2,
		Columns: []string{"loc_offset", metrics.NameStableTime, metrics.NameExecuteTime},
	})

	var mu sync.Mutex
	seen := make(map[int][]Status)
	runner.OnProgress(func(i int, res RunResult) {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = append(seen[i], res.Status)
	})

	batch, err := runner.Run(context.Background(), root, []string{good1, bad, good2})
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)
	assert.NotEqual(t, [16]byte{}, [16]byte(batch.ID))
	assert.Equal(t, 1, batch.Failed())

	assert.Equal(t, StatusCompleted, batch.Results[0].Status)
	assert.Equal(t, []metrics.Value{
		{Name: "loc_offset", Value: 3},
		{Name: metrics.NameStableTime, Value: 100},
		{Name: metrics.NameExecuteTime, Value: 2},
	}, batch.Results[0].Values)

	assert.Equal(t, StatusError, batch.Results[1].Status)
	assert.True(t, errors.Is(batch.Results[1].Err, logtable.ErrMissingInputFile))
	assert.Nil(t, batch.Results[1].Values)

	// No input table: parameters and execute_time are undefined
	assert.Equal(t, StatusCompleted, batch.Results[2].Status)
	assert.Equal(t, metrics.Undefined, batch.Results[2].Values[0].Value)
	assert.Equal(t, metrics.Undefined, batch.Results[2].Values[2].Value)

	assert.Equal(t, []Status{StatusWaiting, StatusProcessing, StatusCompleted}, seen[0])
	assert.Equal(t, []Status{StatusWaiting, StatusProcessing, StatusError}, seen[1])
}

// TestRunner_Decode tests a decode batch refreshing the CSV tables
func TestRunner_Decode(t *testing.T) {
	root := t.TempDir()
	run := filepath.Join(root, "run1")
	writeRun(t, run, false)

	runner := newRunner(t, Options{Mode: ModeDecode})
	batch, err := runner.Run(context.Background(), root, []string{run})
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	assert.Equal(t, StatusCompleted, batch.Results[0].Status)
	assert.Nil(t, batch.Columns)
	assert.FileExists(t, filepath.Join(run, logtable.AircraftCacheFile))
	assert.FileExists(t, filepath.Join(run, logtable.CenterCacheFile))
}

// TestRunner_Cancelled tests that a cancelled context marks pending runs failed
func TestRunner_Cancelled(t *testing.T) {
	root := t.TempDir()
	run := filepath.Join(root, "run1")
	writeRun(t, run, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := newRunner(t, Options{Mode: ModeMetrics})
	batch, err := runner.Run(ctx, root, []string{run})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StatusError, batch.Results[0].Status)
}

// TestNewRunner_Columns tests column validation and defaults
func TestNewRunner_Columns(t *testing.T) {
	logger := testLogger()
	builder := logtable.NewBuilder(geo.WebMercator{}, logger)
	engine := metrics.NewEngine(metrics.DefaultParams(), geo.WebMercator{})

	_, err := NewRunner(builder, engine, Options{Mode: ModeMetrics, Columns: []string{"adjust_ratio"}}, logger)
	assert.Error(t, err)

	runner, err := NewRunner(builder, engine, Options{Mode: ModeMetrics}, logger)
	require.NoError(t, err)
	assert.Equal(t, DefaultColumns(), runner.options.Columns)
	assert.Equal(t, DefaultWorkers, runner.options.Workers)
	assert.Len(t, DefaultColumns(), len(logtable.ReportedParameters)+len(metrics.Names))

	assert.Equal(t, "decode", ModeDecode.String())
	assert.Equal(t, "metrics", ModeMetrics.String())
}
