package record

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"swarmlog/internal/frame"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// scaleProjector multiplies degrees by ten so projected values are easy to check
type scaleProjector struct{}

func (scaleProjector) Project(lng, lat float64) (float64, float64) {
	return lng * 10, lat * 10
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func encodeHeader(id, typ int32, t, lng, lat, h float64) []byte {
	var b []byte
	b = appendInt32(b, headerID, id)
	b = appendInt32(b, headerType, typ)
	b = appendDouble(b, headerTime, t)
	b = appendDouble(b, headerLng, lng)
	b = appendDouble(b, headerLat, lat)
	return appendDouble(b, headerHeight, h)
}

func encodeAircraft(head []byte, roll, pitch, yaw, speed float64) []byte {
	b := appendMessage(nil, aircraftHead, head)
	b = appendDouble(b, aircraftRoll, roll)
	b = appendDouble(b, aircraftPitch, pitch)
	b = appendDouble(b, aircraftYaw, yaw)
	return appendDouble(b, aircraftSpeed, speed)
}

func encodeBatch(t float64, receiveID int32, entries ...[2]int32) []byte {
	b := appendDouble(nil, batchTime, t)
	b = appendInt32(b, batchReceiveID, receiveID)
	for _, e := range entries {
		var m []byte
		m = appendInt32(m, msgInfoSendID, e[0])
		m = appendInt32(m, msgInfoType, e[1])
		b = appendMessage(b, batchMsgInfo, m)
	}
	return b
}

// trailerLog builds a log with one header byte and separator-terminated frames
func trailerLog(payloads ...[]byte) []byte {
	buf := []byte{0x0A}
	for _, p := range payloads {
		buf = frame.AppendLength(buf, len(p))
		buf = append(buf, p...)
		buf = append(buf, 0x00)
	}
	return buf
}

func typedLog(frames ...[]byte) []byte {
	var buf []byte
	for _, f := range frames {
		buf = append(buf, f[0])
		buf = frame.AppendLength(buf, len(f)-1)
		buf = append(buf, f[1:]...)
	}
	return buf
}

// TestDecodeAircraftLog tests aircraft decoding, filtering and projection
func TestDecodeAircraftLog(t *testing.T) {
	buf := trailerLog(
		encodeAircraft(encodeHeader(3, 7, 1.5, 13.1, 43.6, 2000), 0.1, 0.2, 0.3, 55),
		encodeAircraft(encodeHeader(4, ExcludedAircraftType, 1.5, 13.2, 43.7, 2000), 0, 0, 0, 0),
		encodeAircraft(encodeHeader(5, 7, 1.6, 13.3, 43.8, 1990), 0.4, 0.5, 0.6, 60),
	)

	states, err := DecodeAircraftLog(buf, scaleProjector{}, testLogger())
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, AircraftState{
		ID: 3, Type: 7, Time: 1.5, Lng: 13.1, Lat: 43.6, Height: 2000,
		Roll: 0.1, Pitch: 0.2, Yaw: 0.3, Speed: 55,
		X: 13.1 * 10, Y: 43.6 * 10,
	}, states[0])
	assert.Equal(t, 5, states[1].ID)
	assert.Equal(t, 1990.0, states[1].Height)
}

// TestDecodeAircraftLog_UnknownFields tests that unknown fields are skipped
func TestDecodeAircraftLog_UnknownFields(t *testing.T) {
	head := encodeHeader(1, 2, 3, 4, 5, 6)
	head = appendInt32(head, 15, 99)

	payload := encodeAircraft(head, 1, 2, 3, 4)
	payload = appendMessage(payload, 12, []byte("extra"))
	payload = protowire.AppendTag(payload, 13, protowire.Fixed32Type)
	payload = protowire.AppendFixed32(payload, 7)

	states, err := DecodeAircraftLog(trailerLog(payload), scaleProjector{}, testLogger())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 4.0, states[0].Speed)
	assert.Equal(t, 6.0, states[0].Height)
}

// TestDecodeAircraftLog_Empty tests logs without frames
func TestDecodeAircraftLog_Empty(t *testing.T) {
	for _, buf := range [][]byte{nil, {0x0A}} {
		states, err := DecodeAircraftLog(buf, scaleProjector{}, testLogger())
		require.NoError(t, err)
		assert.Empty(t, states)
	}
}

// TestDecodeAircraftLog_Errors tests error kinds of broken logs
func TestDecodeAircraftLog_Errors(t *testing.T) {
	good := encodeAircraft(encodeHeader(1, 2, 3, 4, 5, 6), 1, 2, 3, 4)

	tests := []struct {
		name   string
		buf    []byte
		target error
	}{
		{
			name:   "Truncated frame",
			buf:    trailerLog(good)[:10],
			target: frame.ErrMalformedFrame,
		},
		{
			name:   "Truncated double",
			buf:    trailerLog(good[:len(good)-3]),
			target: ErrMalformedPayload,
		},
		{
			name:   "Nested header truncated",
			buf:    trailerLog(appendMessage(nil, aircraftHead, []byte{0x19, 0x01})),
			target: ErrMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states, err := DecodeAircraftLog(tt.buf, scaleProjector{}, testLogger())
			require.Error(t, err)
			assert.Nil(t, states)
			assert.True(t, errors.Is(err, tt.target), err.Error())
		})
	}
}

// TestDecodeCenterLog tests control frame skipping and id filtering
func TestDecodeCenterLog(t *testing.T) {
	control := append([]byte{ControlFrameType}, 0xFF, 0xFF)
	center := append([]byte{2}, encodeHeader(CenterBroadcastID, 9, 1.0, 13.1, 43.6, 2000)...)
	other := append([]byte{2}, encodeHeader(12, 9, 1.0, 13.1, 43.6, 2000)...)
	center2 := append([]byte{3}, encodeHeader(CenterBroadcastID, 9, 2.0, 13.2, 43.7, 2010)...)

	pings, err := DecodeCenterLog(typedLog(control, center, other, center2), testLogger())
	require.NoError(t, err)
	require.Len(t, pings, 2)

	assert.Equal(t, CenterPing{ID: CenterBroadcastID, Type: 9, Time: 1.0, Lng: 13.1, Lat: 43.6, Height: 2000}, pings[0])
	assert.Equal(t, 2.0, pings[1].Time)
	assert.Equal(t, 2010.0, pings[1].Height)
}

// TestDecodeMessageLog tests flattening of receive batches
func TestDecodeMessageLog(t *testing.T) {
	buf := trailerLog(
		encodeBatch(1.25, 4, [2]int32{1, 2}, [2]int32{3, 0}),
		encodeBatch(1.5, 5),
		encodeBatch(2.0, 6, [2]int32{4, 1}),
	)

	messages, err := DecodeMessageLog(buf, testLogger())
	require.NoError(t, err)

	assert.Equal(t, []ReceivedMessage{
		{Time: 1.25, ReceiveID: 4, SendID: 1, Type: 2},
		{Time: 1.25, ReceiveID: 4, SendID: 3, Type: 0},
		{Time: 2.0, ReceiveID: 6, SendID: 4, Type: 1},
	}, messages)
}

// TestDecodeMessageLog_NegativeIDs tests sign extension of int32 fields
func TestDecodeMessageLog_NegativeIDs(t *testing.T) {
	messages, err := DecodeMessageLog(trailerLog(encodeBatch(1, -1, [2]int32{-7, 2})), testLogger())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, -1, messages[0].ReceiveID)
	assert.Equal(t, -7, messages[0].SendID)
}

// TestParseFormationEventLine tests the formation-event line pattern
func TestParseFormationEventLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected FormationEvent
		wantErr  bool
	}{
		{
			name:     "Single spaces",
			line:     "time:1.25 outFormation:3 totalsize:20",
			expected: FormationEvent{Time: 1.25, OutFormation: 3, TotalSize: 20},
		},
		{
			name:     "Extra whitespace",
			line:     "  time:10\t outFormation:0    totalsize:19  ",
			expected: FormationEvent{Time: 10, OutFormation: 0, TotalSize: 19},
		},
		{
			name:    "Missing field",
			line:    "time:1.0 outFormation:3",
			wantErr: true,
		},
		{
			name:    "Trailing text",
			line:    "time:1.0 outFormation:3 totalsize:20 extra",
			wantErr: true,
		},
		{
			name:    "Leading text",
			line:    "x time:1.0 outFormation:3 totalsize:20",
			wantErr: true,
		},
		{
			name:    "Two decimal points",
			line:    "time:1.0.1 outFormation:3 totalsize:20",
			wantErr: true,
		},
		{
			name:    "Negative count",
			line:    "time:1.0 outFormation:-3 totalsize:20",
			wantErr: true,
		},
		{
			name:    "Blank",
			line:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseFormationEventLine(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedLine))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, event)
		})
	}
}

// TestReadFormationEvents tests reading a whole formation-event log
func TestReadFormationEvents(t *testing.T) {
	input := "time:0 outFormation:0 totalsize:20\r\n" +
		"time:1 outFormation:5 totalsize:20\n" +
		"time:2 outFormation:1 totalsize:20\n"

	events, err := ReadFormationEvents(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []FormationEvent{
		{Time: 0, OutFormation: 0, TotalSize: 20},
		{Time: 1, OutFormation: 5, TotalSize: 20},
		{Time: 2, OutFormation: 1, TotalSize: 20},
	}, events)
}

// TestReadFormationEvents_Malformed tests that a bad line fails the read
func TestReadFormationEvents_Malformed(t *testing.T) {
	input := "time:0 outFormation:0 totalsize:20\n\ntime:2 outFormation:1 totalsize:20\n"

	events, err := ReadFormationEvents(strings.NewReader(input))
	require.Error(t, err)
	assert.Nil(t, events)

	var mle *MalformedLineError
	require.True(t, errors.As(err, &mle))
	assert.Equal(t, 2, mle.Line)
	assert.Contains(t, err.Error(), "line 2")
}

// TestFormationEvent_Locked tests the lock predicate at the 95% boundary
func TestFormationEvent_Locked(t *testing.T) {
	assert.True(t, FormationEvent{OutFormation: 0, TotalSize: 20}.Locked(0.95))
	assert.True(t, FormationEvent{OutFormation: 1, TotalSize: 20}.Locked(0.95))
	assert.False(t, FormationEvent{OutFormation: 5, TotalSize: 20}.Locked(0.95))

	// A shrunken formation compares against the exact share, 18 < 0.95*19
	assert.False(t, FormationEvent{OutFormation: 1, TotalSize: 19}.Locked(0.95))
	assert.True(t, FormationEvent{OutFormation: 0, TotalSize: 19}.Locked(0.95))
	assert.Equal(t, 15, FormationEvent{OutFormation: 5, TotalSize: 20}.InFormation())
}
