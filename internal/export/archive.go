package export

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"swarmlog/internal/batch"
)

const (
	archivePrefix = "metrics_"
	archiveExt    = ".csv"
	dateLayout    = "2006-01-02"
)

// Archive keeps batch result files in a directory, one file per batch.
// Files from earlier days are compressed with gzip.
type Archive struct {
	dir    string
	useUTC bool
	logger *logrus.Logger
	now    func() time.Time
}

// NewArchive creates a new result archive
func NewArchive(dir string, useUTC bool, logger *logrus.Logger) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &Archive{
		dir:    dir,
		useUTC: useUTC,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (a *Archive) today() time.Time {
	if a.useUTC {
		return a.now().UTC()
	}
	return a.now()
}

// FileName returns the archive file name of a batch
func (a *Archive) FileName(b *batch.Batch) string {
	id := strings.SplitN(b.ID.String(), "-", 2)[0]
	return fmt.Sprintf("%s%s_%s%s", archivePrefix, a.today().Format(dateLayout), id, archiveExt)
}

// Save writes the results of a batch and compresses result files of earlier
// days. It returns the path of the new file.
func (a *Archive) Save(b *batch.Batch) (string, error) {
	path := filepath.Join(a.dir, a.FileName(b))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create result file %s: %w", path, err)
	}
	if err := WriteResults(file, b); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write result file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	a.logger.WithFields(logrus.Fields{
		"file":  path,
		"batch": b.ID,
		"runs":  len(b.Results),
	}).Info("Saved batch results")

	if err := a.compressOld(); err != nil {
		a.logger.WithError(err).Error("Failed to compress old result files")
	}

	return path, nil
}

// compressOld compresses every plain result file not dated today
func (a *Archive) compressOld() error {
	files, err := filepath.Glob(filepath.Join(a.dir, archivePrefix+"*"+archiveExt))
	if err != nil {
		return err
	}

	today := a.today().Format(dateLayout)
	for _, file := range files {
		if fileDate(file) == today {
			continue
		}
		if err := a.compressFile(file); err != nil {
			return err
		}
	}
	return nil
}

// fileDate extracts the date of metrics_<date>_<batch>.csv
func fileDate(path string) string {
	name := strings.TrimPrefix(filepath.Base(path), archivePrefix)
	if len(name) < len(dateLayout) {
		return ""
	}
	return name[:len(dateLayout)]
}

// compressFile replaces a result file by its gzip copy
func (a *Archive) compressFile(path string) error {
	gzipPath := path + ".gz"

	a.logger.WithFields(logrus.Fields{
		"source": path,
		"target": gzipPath,
	}).Info("Compressing result file")

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := os.Create(gzipPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", gzipPath, err)
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	gzWriter.Name = filepath.Base(path)
	gzWriter.ModTime = a.now()

	if _, err := io.Copy(gzWriter, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	src.Close()
	return os.Remove(path)
}

// Files returns every result file, compressed ones included
func (a *Archive) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(a.dir, archivePrefix+"*"+archiveExt+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list result files: %w", err)
	}
	return files, nil
}

// Cleanup removes result files older than maxDays and returns how many were
// removed
func (a *Archive) Cleanup(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive")
	}

	files, err := a.Files()
	if err != nil {
		return 0, err
	}

	cutoff := a.today().AddDate(0, 0, -maxDays)

	removed := 0
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			a.logger.WithError(err).WithField("file", file).Warn("Failed to stat result file")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(file); err != nil {
			a.logger.WithError(err).WithField("file", file).Error("Failed to remove old result file")
			continue
		}
		a.logger.WithField("file", file).Info("Removed old result file")
		removed++
	}

	a.logger.WithField("count", removed).Info("Cleaned up old result files")
	return removed, nil
}
