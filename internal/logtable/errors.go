package logtable

import (
	"errors"
	"fmt"
)

// ErrMissingInputFile is matched by every MissingInputFileError
var ErrMissingInputFile = errors.New("missing input file")

// MissingInputFileError reports a run directory without a file matching a
// required pattern
type MissingInputFileError struct {
	Dir     string
	Pattern string
}

func (e *MissingInputFileError) Error() string {
	return fmt.Sprintf("no %s file found in %q", e.Pattern, e.Dir)
}

// Is lets errors.Is match ErrMissingInputFile
func (e *MissingInputFileError) Is(target error) bool {
	return target == ErrMissingInputFile
}
