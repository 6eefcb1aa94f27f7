package messages

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"swarmlog/internal/record"
)

// Type is the delivery state of a message
type Type int

const (
	Pending Type = iota
	Failed
	Success
)

// String returns the delivery state name
func (t Type) String() string {
	switch t {
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	case Success:
		return "success"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// TypeOf returns the delivery state of a decoded message
func TypeOf(m record.ReceivedMessage) Type {
	return Type(m.Type)
}

// Load decodes a message log file
func Load(path string, logger *logrus.Logger) ([]record.ReceivedMessage, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading message log: %w", err)
	}

	rows, err := record.DecodeMessageLog(buf, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	logger.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"size":     humanize.Bytes(uint64(len(buf))),
		"messages": len(rows),
	}).Info("Loaded message log")

	return rows, nil
}

// Participants returns the sorted ids that sent or received a message
func Participants(rows []record.ReceivedMessage) []int {
	seen := make(map[int]struct{})
	for _, r := range rows {
		seen[r.SendID] = struct{}{}
		seen[r.ReceiveID] = struct{}{}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TimeBounds returns the whole-second range covering every message. ok is
// false when rows is empty.
func TimeBounds(rows []record.ReceivedMessage) (start, end float64, ok bool) {
	if len(rows) == 0 {
		return 0, 0, false
	}

	lo, hi := rows[0].Time, rows[0].Time
	for _, r := range rows[1:] {
		lo = math.Min(lo, r.Time)
		hi = math.Max(hi, r.Time)
	}
	return math.Floor(lo), math.Ceil(hi), true
}

// Query selects messages by time window and participants
type Query struct {
	Start float64
	End   float64
	IDs   []int // empty selects every participant
}

// Filter returns the messages sent inside [Start, End] whose sender and
// receiver are both selected. Row order is kept.
func Filter(rows []record.ReceivedMessage, q Query) []record.ReceivedMessage {
	var ids map[int]struct{}
	if len(q.IDs) > 0 {
		ids = make(map[int]struct{}, len(q.IDs))
		for _, id := range q.IDs {
			ids[id] = struct{}{}
		}
	}

	selected := func(id int) bool {
		if ids == nil {
			return true
		}
		_, ok := ids[id]
		return ok
	}

	var out []record.ReceivedMessage
	for _, r := range rows {
		if r.Time < q.Start || r.Time > q.End {
			continue
		}
		if !selected(r.SendID) || !selected(r.ReceiveID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Count returns how many messages are in each delivery state
func Count(rows []record.ReceivedMessage) map[Type]int {
	counts := make(map[Type]int)
	for _, r := range rows {
		counts[TypeOf(r)]++
	}
	return counts
}

// WriteCSV writes messages with a time,receive_id,send_id,type header
func WriteCSV(w io.Writer, rows []record.ReceivedMessage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "receive_id", "send_id", "type"}); err != nil {
		return err
	}

	for _, r := range rows {
		err := cw.Write([]string{
			strconv.FormatFloat(r.Time, 'f', -1, 64),
			strconv.Itoa(r.ReceiveID),
			strconv.Itoa(r.SendID),
			strconv.Itoa(r.Type),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
