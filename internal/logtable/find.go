package logtable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Log file patterns of a run directory
const (
	CenterPattern    = "expdata_*"
	AircraftPattern  = "simudata_*"
	MessagePattern   = "msgData_*"
	FormationPattern = "outformation_*"
)

// Derived files written next to the logs
const (
	AircraftCacheFile = "simudata.csv"
	CenterCacheFile   = "exp_center.csv"
	InputFile         = "input.csv"
)

// Patterns lists every log pattern of a run directory
var Patterns = []string{CenterPattern, AircraftPattern, MessagePattern, FormationPattern}

// FindInputFile returns the first regular file of dir, in lexical order,
// whose name matches pattern
func FindInputFile(dir, pattern string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading run directory: %w", err)
	}

	// ReadDir sorts by file name
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return "", fmt.Errorf("matching %s: %w", pattern, err)
		}
		if ok {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", &MissingInputFileError{Dir: dir, Pattern: pattern}
}

// HasLogFiles reports whether dir holds a file matching any log pattern
func HasLogFiles(dir string) (bool, error) {
	for _, pattern := range Patterns {
		_, err := FindInputFile(dir, pattern)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrMissingInputFile) {
			return false, err
		}
	}
	return false, nil
}
