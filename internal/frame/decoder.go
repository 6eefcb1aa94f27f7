package frame

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Layout selects how frames are laid out in a log buffer
type Layout int

const (
	// LayoutTrailer frames carry no type byte and end with one separator byte:
	// [length][payload][separator]
	LayoutTrailer Layout = iota
	// LayoutTyped frames start with a type byte and have no separator:
	// [type][length][payload]
	LayoutTyped
)

// String returns the layout name
func (l Layout) String() string {
	switch l {
	case LayoutTrailer:
		return "trailer"
	case LayoutTyped:
		return "typed"
	default:
		return "unknown"
	}
}

// Frame is one length-prefixed record of a log buffer
type Frame struct {
	Type    byte   // Leading type byte, zero for LayoutTrailer
	Payload []byte // Sub-slice of the decoder buffer, not a copy
	Offset  int    // Offset of the first byte of the frame
	Next    int    // Offset of the following frame
}

// Decoder walks the frames of a buffer. It is finite and cannot be restarted.
type Decoder struct {
	logger *logrus.Logger
	layout Layout
	buf    []byte
	offset int
	frames int
	err    error
}

// NewDecoder creates a decoder reading frames of the given layout from buf,
// starting at offset start
func NewDecoder(buf []byte, start int, layout Layout, logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Decoder{
		logger: logger,
		layout: layout,
		buf:    buf,
		offset: start,
	}
}

// Offset returns the offset of the next frame to decode
func (d *Decoder) Offset() int {
	return d.offset
}

// Frames returns how many frames were decoded so far
func (d *Decoder) Frames() int {
	return d.frames
}

// Next decodes the next frame. It returns io.EOF once the offset reaches the
// end of the buffer. After a MalformedFrameError every call returns the same
// error.
func (d *Decoder) Next() (Frame, error) {
	if d.err != nil {
		return Frame{}, d.err
	}
	if d.offset >= len(d.buf) {
		return Frame{}, io.EOF
	}

	start := d.offset
	lengthAt := start
	var frameType byte

	if d.layout == LayoutTyped {
		frameType = d.buf[start]
		lengthAt = start + 1
		if lengthAt >= len(d.buf) {
			return d.fail(newMalformed(start, "type byte without length prefix"))
		}
	}

	length, payloadAt, err := ReadLength(d.buf, lengthAt)
	if err != nil {
		return d.fail(err)
	}

	end := payloadAt + length
	if end > len(d.buf) {
		return d.fail(newMalformed(start, "payload runs past end of buffer"))
	}

	next := end
	if d.layout == LayoutTrailer {
		// Tolerate a final frame whose separator byte was never written
		next = min(end+1, len(d.buf))
	}

	f := Frame{
		Type:    frameType,
		Payload: d.buf[payloadAt:end:end],
		Offset:  start,
		Next:    next,
	}

	if d.logger.IsLevelEnabled(logrus.DebugLevel) {
		d.logger.WithFields(logrus.Fields{
			"layout":      d.layout.String(),
			"frame_type":  frameType,
			"offset":      start,
			"payload_len": length,
		}).Debug("Decoded frame")
	}

	d.offset = next
	d.frames++

	return f, nil
}

// All decodes every remaining frame. Any malformed frame aborts the whole
// decode.
func (d *Decoder) All() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := d.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
}

func (d *Decoder) fail(err error) (Frame, error) {
	d.err = err
	d.logger.WithError(err).WithField("frames", d.frames).Debug("Frame decoding aborted")
	return Frame{}, err
}
