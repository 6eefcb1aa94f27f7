package record

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"swarmlog/internal/frame"
	"swarmlog/internal/geo"
)

// Start offsets of the framed log files. Aircraft and message logs begin
// with one header byte.
const (
	aircraftLogStart = 1
	centerLogStart   = 0
	messageLogStart  = 1
)

// DecodeAircraftLog decodes a whole aircraft-state log. Frames of type
// ExcludedAircraftType are dropped and X/Y are set from the projector.
func DecodeAircraftLog(buf []byte, projector geo.Projector, logger *logrus.Logger) ([]AircraftState, error) {
	var states []AircraftState

	err := eachFrame(buf, aircraftLogStart, frame.LayoutTrailer, logger, func(f frame.Frame) error {
		a, err := decodeAircraft(f.Payload)
		if err != nil {
			return err
		}
		if a.head.typ == ExcludedAircraftType {
			return nil
		}

		x, y := projector.Project(a.head.lng, a.head.lat)
		states = append(states, AircraftState{
			ID:     int(a.head.id),
			Type:   int(a.head.typ),
			Time:   a.head.time,
			Lng:    a.head.lng,
			Lat:    a.head.lat,
			Height: a.head.h,
			Roll:   a.roll,
			Pitch:  a.pitch,
			Yaw:    a.yaw,
			Speed:  a.speed,
			X:      x,
			Y:      y,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding aircraft log: %w", err)
	}

	return states, nil
}

// DecodeCenterLog decodes a whole experiment-center log, keeping only the
// pings of the center broadcast channel
func DecodeCenterLog(buf []byte, logger *logrus.Logger) ([]CenterPing, error) {
	var pings []CenterPing

	err := eachFrame(buf, centerLogStart, frame.LayoutTyped, logger, func(f frame.Frame) error {
		if f.Type == ControlFrameType {
			return nil
		}

		h, err := decodeHeader(f.Payload)
		if err != nil {
			return err
		}
		if h.id != CenterBroadcastID {
			return nil
		}

		pings = append(pings, CenterPing{
			ID:     int(h.id),
			Type:   int(h.typ),
			Time:   h.time,
			Lng:    h.lng,
			Lat:    h.lat,
			Height: h.h,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding center log: %w", err)
	}

	return pings, nil
}

// DecodeMessageLog decodes a whole message log into one row per received
// message entry
func DecodeMessageLog(buf []byte, logger *logrus.Logger) ([]ReceivedMessage, error) {
	var messages []ReceivedMessage

	err := eachFrame(buf, messageLogStart, frame.LayoutTrailer, logger, func(f frame.Frame) error {
		batch, err := decodeReceiveBatch(f.Payload)
		if err != nil {
			return err
		}

		for _, entry := range batch.entries {
			messages = append(messages, ReceivedMessage{
				Time:      batch.time,
				ReceiveID: int(batch.receiveID),
				SendID:    int(entry.sendID),
				Type:      int(entry.msgType),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding message log: %w", err)
	}

	return messages, nil
}

func eachFrame(buf []byte, start int, layout frame.Layout, logger *logrus.Logger, fn func(frame.Frame) error) error {
	decoder := frame.NewDecoder(buf, start, layout, logger)

	for {
		f, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := fn(f); err != nil {
			return fmt.Errorf("frame at offset %d: %w", f.Offset, err)
		}
	}
}
