package record

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the simulator payload schemas
const (
	headerID     protowire.Number = 1
	headerType   protowire.Number = 2
	headerTime   protowire.Number = 3
	headerLng    protowire.Number = 4
	headerLat    protowire.Number = 5
	headerHeight protowire.Number = 6

	aircraftHead  protowire.Number = 1
	aircraftRoll  protowire.Number = 2
	aircraftPitch protowire.Number = 3
	aircraftYaw   protowire.Number = 4
	aircraftSpeed protowire.Number = 5

	batchTime      protowire.Number = 1
	batchReceiveID protowire.Number = 2
	batchMsgInfo   protowire.Number = 3

	msgInfoSendID protowire.Number = 1
	msgInfoType   protowire.Number = 2
)

// header is the position header shared by aircraft and center payloads
type header struct {
	id, typ           int32
	time, lng, lat, h float64
}

type aircraftPayload struct {
	head                    header
	roll, pitch, yaw, speed float64
}

type msgInfo struct {
	sendID, msgType int32
}

type receiveBatch struct {
	time      float64
	receiveID int32
	entries   []msgInfo
}

// fieldVisitor consumes the value of one field and returns the number of
// bytes read. Returning zero leaves the field to be skipped as unknown.
type fieldVisitor func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedPayload, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

// consumeInt32 reads an int32 varint field. A field of another wire type is
// left unread.
func consumeInt32(typ protowire.Type, b []byte, dst *int32) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n > 0 {
		*dst = int32(v)
	}
	return n
}

// consumeDouble reads a double field, accepting float for fixed32 fields
func consumeDouble(typ protowire.Type, b []byte, dst *float64) int {
	switch typ {
	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(b)
		if n > 0 {
			*dst = math.Float64frombits(v)
		}
		return n
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n > 0 {
			*dst = float64(math.Float32frombits(v))
		}
		return n
	default:
		return 0
	}
}

// consumeMessage reads a length-delimited field and parses it with parse
func consumeMessage(typ protowire.Type, b []byte, parse func([]byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, parse(v)
}

func decodeHeader(b []byte) (header, error) {
	var h header
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case headerID:
			return consumeInt32(typ, v, &h.id), nil
		case headerType:
			return consumeInt32(typ, v, &h.typ), nil
		case headerTime:
			return consumeDouble(typ, v, &h.time), nil
		case headerLng:
			return consumeDouble(typ, v, &h.lng), nil
		case headerLat:
			return consumeDouble(typ, v, &h.lat), nil
		case headerHeight:
			return consumeDouble(typ, v, &h.h), nil
		}
		return 0, nil
	})
	return h, err
}

func decodeAircraft(b []byte) (aircraftPayload, error) {
	var a aircraftPayload
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case aircraftHead:
			return consumeMessage(typ, v, func(m []byte) error {
				h, err := decodeHeader(m)
				a.head = h
				return err
			})
		case aircraftRoll:
			return consumeDouble(typ, v, &a.roll), nil
		case aircraftPitch:
			return consumeDouble(typ, v, &a.pitch), nil
		case aircraftYaw:
			return consumeDouble(typ, v, &a.yaw), nil
		case aircraftSpeed:
			return consumeDouble(typ, v, &a.speed), nil
		}
		return 0, nil
	})
	return a, err
}

func decodeMsgInfo(b []byte) (msgInfo, error) {
	var m msgInfo
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case msgInfoSendID:
			return consumeInt32(typ, v, &m.sendID), nil
		case msgInfoType:
			return consumeInt32(typ, v, &m.msgType), nil
		}
		return 0, nil
	})
	return m, err
}

func decodeReceiveBatch(b []byte) (receiveBatch, error) {
	var rb receiveBatch
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case batchTime:
			return consumeDouble(typ, v, &rb.time), nil
		case batchReceiveID:
			return consumeInt32(typ, v, &rb.receiveID), nil
		case batchMsgInfo:
			return consumeMessage(typ, v, func(m []byte) error {
				entry, err := decodeMsgInfo(m)
				if err != nil {
					return err
				}
				rb.entries = append(rb.entries, entry)
				return nil
			})
		}
		return 0, nil
	})
	return rb, err
}
