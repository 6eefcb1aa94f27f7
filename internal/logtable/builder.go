package logtable

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"swarmlog/internal/geo"
	"swarmlog/internal/record"
)

// Builder turns the log files of a run directory into tables
type Builder struct {
	logger    *logrus.Logger
	projector geo.Projector
}

// NewBuilder creates a new table builder
func NewBuilder(projector geo.Projector, logger *logrus.Logger) *Builder {
	return &Builder{
		logger:    logger,
		projector: projector,
	}
}

// Build loads every table of a run: the decoded aircraft and center logs
// (from the CSV cache unless force) and the formation events
func (b *Builder) Build(dir string, force bool) (*Tables, error) {
	eventsPath, err := FindInputFile(dir, FormationPattern)
	if err != nil {
		return nil, err
	}

	tables, err := b.Decode(dir, force)
	if err != nil {
		return nil, err
	}

	events, err := readFile(eventsPath, record.ReadFormationEvents)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(eventsPath), err)
	}
	tables.Events = events

	b.logger.WithFields(logrus.Fields{
		"dir":    dir,
		"events": len(events),
	}).Debug("Loaded formation events")

	return tables, nil
}

// Decode builds the aircraft, center and joined tables of a run and refreshes
// the CSV cache. An existing cache is reused unless force is set.
func (b *Builder) Decode(dir string, force bool) (*Tables, error) {
	aircraftCache := filepath.Join(dir, AircraftCacheFile)
	centerCache := filepath.Join(dir, CenterCacheFile)

	if !force && fileExists(aircraftCache) && fileExists(centerCache) {
		return b.loadCache(aircraftCache, centerCache)
	}

	aircraftPath, err := FindInputFile(dir, AircraftPattern)
	if err != nil {
		return nil, err
	}
	centerPath, err := FindInputFile(dir, CenterPattern)
	if err != nil {
		return nil, err
	}

	aircraft, err := decodeFile(b, aircraftPath, func(buf []byte) ([]record.AircraftState, error) {
		return record.DecodeAircraftLog(buf, b.projector, b.logger)
	})
	if err != nil {
		return nil, err
	}
	pings, err := decodeFile(b, centerPath, func(buf []byte) ([]record.CenterPing, error) {
		return record.DecodeCenterLog(buf, b.logger)
	})
	if err != nil {
		return nil, err
	}

	tables := NewTables(aircraft, pings, nil)

	if err := writeFile(aircraftCache, func(w io.Writer) error {
		return WriteAircraftCSV(w, tables.Aircraft)
	}); err != nil {
		return nil, fmt.Errorf("writing %s: %w", AircraftCacheFile, err)
	}
	if err := writeFile(centerCache, func(w io.Writer) error {
		return WriteExpCenterCSV(w, tables.ExpCenter)
	}); err != nil {
		return nil, fmt.Errorf("writing %s: %w", CenterCacheFile, err)
	}

	b.logger.WithFields(logrus.Fields{
		"dir":        dir,
		"aircraft":   len(tables.Aircraft),
		"centers":    len(tables.Centers),
		"exp_center": len(tables.ExpCenter),
	}).Info("Decoded run logs")

	return tables, nil
}

func (b *Builder) loadCache(aircraftCache, centerCache string) (*Tables, error) {
	aircraft, err := readFile(aircraftCache, ReadAircraftCSV)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", AircraftCacheFile, err)
	}
	rows, err := readFile(centerCache, ReadExpCenterCSV)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", CenterCacheFile, err)
	}

	b.logger.WithFields(logrus.Fields{
		"dir":        filepath.Dir(aircraftCache),
		"aircraft":   len(aircraft),
		"exp_center": len(rows),
	}).Debug("Using cached tables")

	return &Tables{
		Aircraft:  aircraft,
		Centers:   ComputeCenters(aircraft),
		ExpCenter: rows,
	}, nil
}

// decodeFile reads a whole log file into memory and decodes it
func decodeFile[T any](b *Builder, path string, decode func([]byte) ([]T, error)) ([]T, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}

	rows, err := decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	b.logger.WithFields(logrus.Fields{
		"file": filepath.Base(path),
		"size": humanize.Bytes(uint64(len(buf))),
		"rows": len(rows),
	}).Debug("Decoded log file")

	return rows, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
