package metrics

import (
	"fmt"

	"swarmlog/internal/geo"
)

// Undefined is returned by metrics that have nothing to measure
const Undefined = -1.0

// Default metric parameters
const (
	DefaultNominalSize      = 20
	DefaultLockRatio        = 0.95
	DefaultEventTolerance   = 1e-4
	DefaultMemberTolerance  = 1e-3
	DefaultTrimRatio        = 0.9
	DefaultDensityScale     = 100 * 100 * 100
	DefaultFormationDivisor = 50
	DefaultLastEventEpsilon = 1e-6
)

// Reference points of the planned airway
var (
	DefaultAirwayStart = geo.Point{Lng: 13.147670731635747, Lat: 43.65982853870639, Height: 2000}
	DefaultAirwayEnd   = geo.Point{Lng: 13.186799589095362, Lat: 43.78649351263097, Height: 2000}
)

// Params tunes the metric definitions
type Params struct {
	NominalSize      int       `yaml:"nominal_size"`
	LockRatio        float64   `yaml:"lock_ratio"`
	EventTolerance   float64   `yaml:"event_tolerance"`
	MemberTolerance  float64   `yaml:"member_tolerance"`
	TrimRatio        float64   `yaml:"trim_ratio"`
	DensityScale     float64   `yaml:"density_scale"`
	FormationDivisor float64   `yaml:"formation_divisor"`
	AirwayStart      geo.Point `yaml:"airway_start"`
	AirwayEnd        geo.Point `yaml:"airway_end"`
	Target           geo.Point `yaml:"target"`
}

// DefaultParams returns the parameters of the reference scenario
func DefaultParams() Params {
	return Params{
		NominalSize:      DefaultNominalSize,
		LockRatio:        DefaultLockRatio,
		EventTolerance:   DefaultEventTolerance,
		MemberTolerance:  DefaultMemberTolerance,
		TrimRatio:        DefaultTrimRatio,
		DensityScale:     DefaultDensityScale,
		FormationDivisor: DefaultFormationDivisor,
		AirwayStart:      DefaultAirwayStart,
		AirwayEnd:        DefaultAirwayEnd,
		Target:           DefaultAirwayEnd,
	}
}

// Validate checks that the parameters can produce meaningful metrics
func (p Params) Validate() error {
	if p.NominalSize <= 0 {
		return fmt.Errorf("nominal size must be positive, got %d", p.NominalSize)
	}
	if p.LockRatio <= 0 || p.LockRatio > 1 {
		return fmt.Errorf("lock ratio must be in (0, 1], got %g", p.LockRatio)
	}
	if p.EventTolerance <= 0 || p.MemberTolerance <= 0 {
		return fmt.Errorf("tolerances must be positive")
	}
	if p.TrimRatio <= 0 || p.TrimRatio > 1 {
		return fmt.Errorf("trim ratio must be in (0, 1], got %g", p.TrimRatio)
	}
	if p.FormationDivisor <= 0 {
		return fmt.Errorf("formation divisor must be positive, got %g", p.FormationDivisor)
	}
	return nil
}
