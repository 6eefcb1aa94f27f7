package logtable

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"swarmlog/internal/record"
)

// AircraftColumns is the header of the aircraft-state table
var AircraftColumns = []string{"id", "type", "time", "lng", "lat", "height", "roll", "pitch", "yaw", "speed", "x", "y"}

// ExpCenterColumns is the header of the joined experiment-center table
var ExpCenterColumns = []string{"id", "type", "time", "lng", "lat", "height", "r_x", "r_y", "r_h"}

// formatFloat writes the shortest text that parses back to the same value
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteAircraftCSV writes the aircraft-state table
func WriteAircraftCSV(w io.Writer, states []record.AircraftState) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AircraftColumns); err != nil {
		return err
	}

	for _, s := range states {
		row := []string{
			strconv.Itoa(s.ID),
			strconv.Itoa(s.Type),
			formatFloat(s.Time),
			formatFloat(s.Lng),
			formatFloat(s.Lat),
			formatFloat(s.Height),
			formatFloat(s.Roll),
			formatFloat(s.Pitch),
			formatFloat(s.Yaw),
			formatFloat(s.Speed),
			formatFloat(s.X),
			formatFloat(s.Y),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteExpCenterCSV writes the joined experiment-center table
func WriteExpCenterCSV(w io.Writer, rows []ExpCenterRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExpCenterColumns); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.Type),
			formatFloat(r.Time),
			formatFloat(r.Lng),
			formatFloat(r.Lat),
			formatFloat(r.Height),
			formatFloat(r.RX),
			formatFloat(r.RY),
			formatFloat(r.RH),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadAircraftCSV reads an aircraft-state table. Columns are located by
// header name, so extra columns such as a leading index are ignored.
func ReadAircraftCSV(r io.Reader) ([]record.AircraftState, error) {
	var states []record.AircraftState

	err := readTable(r, AircraftColumns, func(f *fieldReader) {
		states = append(states, record.AircraftState{
			ID:     f.int("id"),
			Type:   f.int("type"),
			Time:   f.float("time"),
			Lng:    f.float("lng"),
			Lat:    f.float("lat"),
			Height: f.float("height"),
			Roll:   f.float("roll"),
			Pitch:  f.float("pitch"),
			Yaw:    f.float("yaw"),
			Speed:  f.float("speed"),
			X:      f.float("x"),
			Y:      f.float("y"),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading aircraft table: %w", err)
	}
	return states, nil
}

// ReadExpCenterCSV reads a joined experiment-center table
func ReadExpCenterCSV(r io.Reader) ([]ExpCenterRow, error) {
	var rows []ExpCenterRow

	err := readTable(r, ExpCenterColumns, func(f *fieldReader) {
		rows = append(rows, ExpCenterRow{
			ID:     f.int("id"),
			Type:   f.int("type"),
			Time:   f.float("time"),
			Lng:    f.float("lng"),
			Lat:    f.float("lat"),
			Height: f.float("height"),
			RX:     f.float("r_x"),
			RY:     f.float("r_y"),
			RH:     f.float("r_h"),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading experiment-center table: %w", err)
	}
	return rows, nil
}

// fieldReader parses named cells of one CSV row and keeps the first error
type fieldReader struct {
	columns map[string]int
	row     []string
	line    int
	err     error
}

func (f *fieldReader) cell(name string) string {
	return strings.TrimSpace(f.row[f.columns[name]])
}

func (f *fieldReader) float(name string) float64 {
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(f.cell(name), 64)
	if err != nil {
		f.err = fmt.Errorf("line %d column %s: %w", f.line, name, err)
	}
	return v
}

// int also accepts integral floats such as "3.0"
func (f *fieldReader) int(name string) int {
	if f.err != nil {
		return 0
	}
	text := f.cell(name)
	if v, err := strconv.Atoi(text); err == nil {
		return v
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v != float64(int(v)) {
		f.err = fmt.Errorf("line %d column %s: invalid integer %q", f.line, name, text)
		return 0
	}
	return int(v)
}

func readTable(r io.Reader, required []string, emit func(*fieldReader)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return fmt.Errorf("empty table")
	}
	if err != nil {
		return err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return fmt.Errorf("missing column %q", name)
		}
	}

	f := &fieldReader{columns: columns, line: 1}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		f.line++
		if len(row) != len(header) {
			return fmt.Errorf("line %d: expected %d fields, got %d", f.line, len(header), len(row))
		}

		f.row = row
		emit(f)
		if f.err != nil {
			return f.err
		}
	}
}

// writeFile creates path and fills it with write, removing it on failure
func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}

	return file.Close()
}

// readFile opens path and parses it with read
func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	file, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer file.Close()

	return read(file)
}
