package logtable

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// Run parameter names used by the metrics
const (
	ParamControlTime       = "time"
	ParamSecondControlTime = "time.1"
)

type parameterColumn struct {
	name    string
	isFloat bool
}

// runParameterColumns is the column order of input.csv
var runParameterColumns = []parameterColumn{
	{"initial_number", false},
	{"loc_offset", false},
	{"loc_err", true},
	{"angle_err", false},
	{"perception", true},
	{"lost_possibility", true},
	{"control_num", false},
	{"time", false},
	{"gap", false},
	{"type", false},
	{"R1", false},
	{"R2", false},
	{"R3", false},
	{"time.1", false},
	{"gap.1", false},
	{"type.1", false},
	{"R1.1", false},
	{"R2.1", false},
	{"R3.1", false},
}

// ReportedParameters are the run parameters exported next to the metrics
var ReportedParameters = []string{
	"loc_offset",
	"perception",
	"lost_possibility",
	"time",
	"gap",
	"type",
	"R1",
	"R2",
	"R3",
	"time.1",
	"gap.1",
	"type.1",
	"R1.1",
	"R2.1",
	"R3.1",
}

// RunParameters holds the configured inputs of one simulation run
type RunParameters map[string]float64

// Get returns a parameter and whether the run defines it
func (p RunParameters) Get(name string) (float64, bool) {
	v, ok := p[name]
	return v, ok
}

// ParseRunParameters reads the first row of an input table. The row has no
// header; columns are matched by position and trailing columns may be absent.
func ParseRunParameters(r io.Reader) (RunParameters, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	row, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input table")
	}
	if err != nil {
		return nil, fmt.Errorf("reading input table: %w", err)
	}

	params := make(RunParameters, len(runParameterColumns))
	for i, col := range runParameterColumns {
		if i >= len(row) {
			break
		}
		text := strings.TrimSpace(row[i])

		if col.isFloat {
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", col.name, err)
			}
			params[col.name] = v
			continue
		}

		v, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", col.name, err)
		}
		params[col.name] = float64(v)
	}

	return params, nil
}

// ReadRunParameters reads input.csv of a run directory
func ReadRunParameters(dir string) (RunParameters, error) {
	return readFile(filepath.Join(dir, InputFile), ParseRunParameters)
}
