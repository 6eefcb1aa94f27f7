package frame

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame is matched by every MalformedFrameError
var ErrMalformedFrame = errors.New("malformed frame")

// MalformedFrameError reports a frame whose length prefix or payload crosses
// the end of the buffer. Offsets after it cannot be recovered, so the whole
// decode is aborted.
type MalformedFrameError struct {
	Offset int
	Reason string
}

func newMalformed(off int, reason string) *MalformedFrameError {
	return &MalformedFrameError{Offset: off, Reason: reason}
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame at offset %d: %s", e.Offset, e.Reason)
}

// Is lets errors.Is match ErrMalformedFrame
func (e *MalformedFrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}
