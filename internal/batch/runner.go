package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"swarmlog/internal/logtable"
	"swarmlog/internal/metrics"
)

// Mode selects what a batch does with each run
type Mode int

const (
	// ModeDecode only refreshes the decoded CSV tables
	ModeDecode Mode = iota
	// ModeMetrics builds the tables and computes the selected columns
	ModeMetrics
)

// String returns the mode name
func (m Mode) String() string {
	if m == ModeDecode {
		return "decode"
	}
	return "metrics"
}

// DefaultWorkers is the number of runs processed in parallel
const DefaultWorkers = 4

// Options configures a batch
type Options struct {
	Mode    Mode
	Workers int
	Force   bool
	Columns []string // metric and reported parameter names, in order
}

// DefaultColumns lists the reported run parameters followed by every metric
func DefaultColumns() []string {
	columns := append([]string{}, logtable.ReportedParameters...)
	return append(columns, metrics.Names...)
}

// RunResult is the outcome of one run directory
type RunResult struct {
	Path     string
	Status   Status
	Err      error
	Values   []metrics.Value
	Duration time.Duration
}

// Batch is the outcome of one invocation over a set of run directories
type Batch struct {
	ID       uuid.UUID
	Root     string
	Mode     Mode
	Columns  []string
	Started  time.Time
	Finished time.Time
	Results  []RunResult
}

// Failed returns how many runs ended in error
func (b *Batch) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == StatusError {
			n++
		}
	}
	return n
}

// ProgressFunc receives every status change of a run. Calls are serialized.
type ProgressFunc func(index int, result RunResult)

// Runner processes run directories in parallel. Runs are independent: a
// failing run is marked StatusError and the others continue.
type Runner struct {
	logger   *logrus.Logger
	builder  *logtable.Builder
	engine   *metrics.Engine
	options  Options
	progress ProgressFunc

	mu sync.Mutex
}

// NewRunner creates a new batch runner
func NewRunner(builder *logtable.Builder, engine *metrics.Engine, options Options, logger *logrus.Logger) (*Runner, error) {
	if options.Workers <= 0 {
		options.Workers = DefaultWorkers
	}
	if options.Mode == ModeMetrics {
		if len(options.Columns) == 0 {
			options.Columns = DefaultColumns()
		}
		for _, name := range options.Columns {
			if !IsColumn(name) {
				return nil, fmt.Errorf("unknown column %q", name)
			}
		}
	}

	return &Runner{
		logger:  logger,
		builder: builder,
		engine:  engine,
		options: options,
	}, nil
}

// OnProgress registers a status callback
func (r *Runner) OnProgress(fn ProgressFunc) {
	r.progress = fn
}

// Run processes dirs and returns their results in directory order. The
// returned error is only set when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, root string, dirs []string) (*Batch, error) {
	batch := &Batch{
		ID:      uuid.New(),
		Root:    root,
		Mode:    r.options.Mode,
		Started: time.Now(),
		Results: make([]RunResult, len(dirs)),
	}
	if r.options.Mode == ModeMetrics {
		batch.Columns = r.options.Columns
	}

	for i, dir := range dirs {
		batch.Results[i] = RunResult{Path: dir, Status: StatusPending}
	}
	for i := range dirs {
		r.update(batch, i, func(res *RunResult) { res.Status = StatusWaiting })
	}

	r.logger.WithFields(logrus.Fields{
		"batch":   batch.ID,
		"mode":    r.options.Mode.String(),
		"runs":    len(dirs),
		"workers": r.options.Workers,
	}).Info("Starting batch")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.Workers)

	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				r.fail(batch, i, err)
				return nil
			}
			r.process(batch, i, dir)
			return nil
		})
	}
	_ = g.Wait()

	batch.Finished = time.Now()

	r.logger.WithFields(logrus.Fields{
		"batch":    batch.ID,
		"runs":     len(dirs),
		"failed":   batch.Failed(),
		"duration": batch.Finished.Sub(batch.Started).Round(time.Millisecond),
	}).Info("Batch finished")

	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

func (r *Runner) process(batch *Batch, i int, dir string) {
	start := time.Now()
	r.update(batch, i, func(res *RunResult) { res.Status = StatusProcessing })

	values, err := r.processRun(dir)
	if err != nil {
		r.logger.WithError(err).WithField("dir", dir).Error("Run failed")
		r.fail(batch, i, err)
		return
	}

	r.update(batch, i, func(res *RunResult) {
		res.Status = StatusCompleted
		res.Values = values
		res.Duration = time.Since(start)
	})

	r.logger.WithFields(logrus.Fields{
		"dir":      dir,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Run completed")
}

func (r *Runner) processRun(dir string) ([]metrics.Value, error) {
	if r.options.Mode == ModeDecode {
		_, err := r.builder.Decode(dir, r.options.Force)
		return nil, err
	}

	tables, err := r.builder.Build(dir, r.options.Force)
	if err != nil {
		return nil, err
	}

	inputs, err := logtable.ReadRunParameters(dir)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.WithField("dir", dir).Warn("Run has no input table, parameters are undefined")
		inputs = nil
	} else if err != nil {
		return nil, err
	}

	var metricNames []string
	for _, name := range r.options.Columns {
		if metrics.IsMetric(name) {
			metricNames = append(metricNames, name)
		}
	}

	computed, err := r.engine.Compute(metrics.Run{Tables: tables, Inputs: inputs}, metricNames)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]float64, len(computed))
	for _, v := range computed {
		byName[v.Name] = v.Value
	}

	values := make([]metrics.Value, len(r.options.Columns))
	for j, name := range r.options.Columns {
		v, ok := byName[name]
		if !ok {
			if v, ok = inputs.Get(name); !ok {
				v = metrics.Undefined
			}
		}
		values[j] = metrics.Value{Name: name, Value: v}
	}
	return values, nil
}

func (r *Runner) fail(batch *Batch, i int, err error) {
	r.update(batch, i, func(res *RunResult) {
		res.Status = StatusError
		res.Err = err
	})
}

// update changes one result and reports it under the runner lock
func (r *Runner) update(batch *Batch, i int, fn func(*RunResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&batch.Results[i])
	if r.progress != nil {
		r.progress(i, batch.Results[i])
	}
}

// IsColumn reports whether name is a metric or a reported run parameter
func IsColumn(name string) bool {
	return metrics.IsMetric(name) || isReportedParameter(name)
}

func isReportedParameter(name string) bool {
	for _, p := range logtable.ReportedParameters {
		if p == name {
			return true
		}
	}
	return false
}
