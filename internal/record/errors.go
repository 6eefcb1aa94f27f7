package record

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload is returned for protobuf payloads that cannot be parsed
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrMalformedLine is matched by every MalformedLineError
	ErrMalformedLine = errors.New("malformed line")
)

// MalformedLineError reports a formation-event line that does not match the
// expected pattern
type MalformedLineError struct {
	Line int // 1-based, zero when parsing a single line
	Text string
}

func (e *MalformedLineError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed formation event at line %d: %q", e.Line, e.Text)
	}
	return fmt.Sprintf("malformed formation event: %q", e.Text)
}

// Is lets errors.Is match ErrMalformedLine
func (e *MalformedLineError) Is(target error) bool {
	return target == ErrMalformedLine
}
