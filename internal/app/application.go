package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"swarmlog/internal/batch"
	"swarmlog/internal/export"
	"swarmlog/internal/geo"
	"swarmlog/internal/logtable"
	"swarmlog/internal/messages"
	"swarmlog/internal/metrics"
	"swarmlog/internal/store"
)

// Application represents the main application
type Application struct {
	config  Config
	logger  *logrus.Logger
	builder *logtable.Builder
	engine  *metrics.Engine
	ctx     context.Context
	cancel  context.CancelFunc
}

// MessageOptions selects the messages written by Messages
type MessageOptions struct {
	Start, End       float64
	HasStart, HasEnd bool
	IDs              []int
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	projector := geo.WebMercator{}

	return &Application{
		config:  config,
		logger:  logger,
		builder: logtable.NewBuilder(projector, logger),
		engine:  metrics.NewEngine(config.Params, projector),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Logger returns the application logger
func (app *Application) Logger() *logrus.Logger {
	return app.logger
}

// HandleSignals cancels running batches on SIGINT or SIGTERM
func (app *Application) HandleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			app.logger.Info("Received shutdown signal")
			app.cancel()
		case <-app.ctx.Done():
		}
	}()
}

// Shutdown stops the application
func (app *Application) Shutdown() {
	app.cancel()
}

// Decode refreshes the decoded tables of every run directory under root
func (app *Application) Decode(root string) (*batch.Batch, error) {
	b, err := app.runBatch(root, batch.Options{
		Mode:    batch.ModeDecode,
		Workers: app.config.Workers,
		Force:   app.config.Force,
	})
	if err != nil {
		return b, err
	}

	if failed := b.Failed(); failed > 0 {
		return b, fmt.Errorf("%d of %d runs failed", failed, len(b.Results))
	}
	return b, nil
}

// Metrics computes the configured columns for every run directory under
// root, writes the result table to w and, when enabled, archives and stores
// the batch. Failed runs stay in the table with empty cells.
func (app *Application) Metrics(root string, w io.Writer, archive bool) (*batch.Batch, error) {
	b, err := app.runBatch(root, batch.Options{
		Mode:    batch.ModeMetrics,
		Workers: app.config.Workers,
		Force:   app.config.Force,
		Columns: app.config.Metrics,
	})
	if err != nil {
		return b, err
	}

	if w != nil {
		if err := export.WriteResults(w, b); err != nil {
			return b, fmt.Errorf("failed to write results: %w", err)
		}
	}

	if archive {
		if err := app.archiveBatch(b); err != nil {
			return b, err
		}
	}

	if app.config.Database != "" {
		if err := app.storeBatch(b); err != nil {
			return b, err
		}
	}

	return b, nil
}

func (app *Application) runBatch(root string, options batch.Options) (*batch.Batch, error) {
	dirs, err := batch.WalkRunDirectories(root)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no run directories found under %s", root)
	}

	runner, err := batch.NewRunner(app.builder, app.engine, options, app.logger)
	if err != nil {
		return nil, err
	}

	done := 0
	runner.OnProgress(func(i int, res batch.RunResult) {
		if !res.Status.Done() {
			return
		}
		done++
		app.logger.WithFields(logrus.Fields{
			"dir":      res.Path,
			"status":   res.Status.String(),
			"progress": fmt.Sprintf("%d/%d", done, len(dirs)),
		}).Info("Run finished")
	})

	return runner.Run(app.ctx, root, dirs)
}

func (app *Application) archiveBatch(b *batch.Batch) error {
	archive, err := export.NewArchive(app.config.ResultsDir, app.config.ResultsUTC, app.logger)
	if err != nil {
		return err
	}

	if _, err := archive.Save(b); err != nil {
		return err
	}

	if app.config.RetentionDays > 0 {
		if _, err := archive.Cleanup(app.config.RetentionDays); err != nil {
			app.logger.WithError(err).Warn("Failed to clean up old result files")
		}
	}
	return nil
}

func (app *Application) storeBatch(b *batch.Batch) error {
	s := store.NewSQLiteStore(app.config.Database)
	defer s.Close()

	if err := s.SaveBatch(app.ctx, b); err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"database": app.config.Database,
		"batch":    b.ID,
	}).Info("Stored batch results")
	return nil
}

// Messages decodes a message log and writes the selected messages as CSV.
// Unset bounds default to the whole-second range of the log.
func (app *Application) Messages(path string, opts MessageOptions, w io.Writer) error {
	rows, err := messages.Load(path, app.logger)
	if err != nil {
		return err
	}

	start, end, ok := messages.TimeBounds(rows)
	if !ok {
		app.logger.WithField("file", path).Warn("Message log is empty")
	}
	if opts.HasStart {
		start = opts.Start
	}
	if opts.HasEnd {
		end = opts.End
	}
	if start > end {
		return fmt.Errorf("start time %g is after end time %g", start, end)
	}

	selected := messages.Filter(rows, messages.Query{Start: start, End: end, IDs: opts.IDs})
	counts := messages.Count(selected)

	app.logger.WithFields(logrus.Fields{
		"participants": len(messages.Participants(rows)),
		"selected":     humanize.Comma(int64(len(selected))),
		"total":        humanize.Comma(int64(len(rows))),
		"success":      counts[messages.Success],
		"failed":       counts[messages.Failed],
		"pending":      counts[messages.Pending],
	}).Info("Selected messages")

	return messages.WriteCSV(w, selected)
}
