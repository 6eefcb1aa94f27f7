package metrics

import (
	"fmt"

	"swarmlog/internal/geo"
	"swarmlog/internal/logtable"
)

// Metric names in report order
const (
	NameFormationNum       = "formation_num"
	NameInitialReduce      = "initial_reduce"
	NameFinalTotalSize     = "final_total_size"
	NameDispersion         = "dispersion"
	NameDensity            = "density"
	NameCenterGap          = "center_gap"
	NameDangerousFrequency = "dangerous_frequency"
	NameCrashProbability   = "crash_probability"
	NamePolarization       = "polarization"
	NameExecuteTime        = "execute_time"
	NameAirwayBias         = "airway_bias"
	NameLocBias            = "loc_bias"
	NameStableTime         = "stable_time"
)

// Names lists every metric in report order
var Names = []string{
	NameFormationNum,
	NameInitialReduce,
	NameFinalTotalSize,
	NameDispersion,
	NameDensity,
	NameCenterGap,
	NameDangerousFrequency,
	NameCrashProbability,
	NamePolarization,
	NameExecuteTime,
	NameAirwayBias,
	NameLocBias,
	NameStableTime,
}

// Value is one named metric result
type Value struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Run is the input of one metrics pass
type Run struct {
	Tables *logtable.Tables
	Inputs logtable.RunParameters // nil when the run has no input table
}

// Engine computes metrics with fixed parameters. The airway direction and
// target are projected once per engine.
type Engine struct {
	params Params
	airway geo.Vec3
	target geo.Vec3
}

// NewEngine creates a new metrics engine
func NewEngine(params Params, projector geo.Projector) *Engine {
	return &Engine{
		params: params,
		airway: params.AirwayEnd.Project(projector).Sub(params.AirwayStart.Project(projector)),
		target: params.Target.Project(projector),
	}
}

// Params returns the engine parameters
func (e *Engine) Params() Params {
	return e.params
}

// Compute evaluates the named metrics in the given order. Unknown names are
// an error; metrics without data are Undefined.
func (e *Engine) Compute(run Run, names []string) ([]Value, error) {
	for _, name := range names {
		if !IsMetric(name) {
			return nil, fmt.Errorf("unknown metric %q", name)
		}
	}

	t := run.Tables
	p := e.params

	values := make([]Value, 0, len(names))
	for _, name := range names {
		var v float64
		switch name {
		case NameFormationNum:
			v = FormationNum(t.Events, p)
		case NameInitialReduce:
			v = InitialReduce(t.Events, p)
		case NameFinalTotalSize:
			v = FinalTotalSize(t.Events)
		case NameDispersion:
			v = Dispersion(t.ExpCenter, t.Aircraft, t.Events, p)
		case NameDensity:
			v = Density(t.ExpCenter, t.Aircraft, p)
		case NameCenterGap:
			v = CenterGap(t.ExpCenter, t.Aircraft, p)
		case NameDangerousFrequency:
			v = DangerousFrequency(t.Events, p)
		case NameCrashProbability:
			v = CrashProbability(t.Events, p)
		case NamePolarization:
			v = Polarization(t.ExpCenter, t.Aircraft, t.Events, p)
		case NameExecuteTime:
			v = e.executeTime(run)
		case NameAirwayBias:
			v = AirwayBias(t.ExpCenter, e.airway)
		case NameLocBias:
			v = LocBias(t.ExpCenter, e.target)
		case NameStableTime:
			v = StableTime(t.Events, p)
		}
		values = append(values, Value{Name: name, Value: v})
	}

	return values, nil
}

func (e *Engine) executeTime(run Run) float64 {
	first, ok := run.Inputs.Get(logtable.ParamControlTime)
	if !ok {
		return Undefined
	}
	second, ok := run.Inputs.Get(logtable.ParamSecondControlTime)
	if !ok {
		return Undefined
	}
	return ExecuteTime(run.Tables.Events, [2]float64{first, second}, e.params)
}

// IsMetric reports whether name is a known metric
func IsMetric(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}
