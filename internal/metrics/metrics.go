package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"swarmlog/internal/geo"
	"swarmlog/internal/logtable"
	"swarmlog/internal/record"
)

// round2 rounds to two decimals, the resolution of the aircraft time base
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Members returns the aircraft samples taken at the row time t
func Members(sim []record.AircraftState, t, tolerance float64) []record.AircraftState {
	tt := round2(t)

	var members []record.AircraftState
	for _, a := range sim {
		if math.Abs(a.Time-tt) < tolerance {
			members = append(members, a)
		}
	}
	return members
}

func position(a record.AircraftState) geo.Vec3 {
	return geo.Vec3{X: a.X, Y: a.Y, H: a.Height}
}

// trimmedDistances returns the sorted distances of members to center with the
// largest (1 - ratio) share dropped
func trimmedDistances(members []record.AircraftState, center geo.Vec3, ratio float64) []float64 {
	distances := make([]float64, len(members))
	for i, m := range members {
		distances[i] = geo.Distance(position(m), center)
	}
	sort.Float64s(distances)

	return distances[:int(ratio*float64(len(distances)))]
}

func meanOrUndefined(values []float64) float64 {
	if len(values) == 0 {
		return Undefined
	}
	return stat.Mean(values, nil)
}

// FormationNum is the total in-formation count over every event divided by
// the whole seconds of the last event times the divisor
func FormationNum(events []record.FormationEvent, p Params) float64 {
	if len(events) == 0 {
		return Undefined
	}

	num := 0
	for _, e := range events {
		num += e.InFormation()
	}
	last := events[len(events)-1].Time

	return float64(num) / (float64(int(last)) * p.FormationDivisor)
}

// InitialReduce is the time of the first event below the nominal size, zero
// when the formation never shrinks
func InitialReduce(events []record.FormationEvent, p Params) float64 {
	for _, e := range events {
		if e.TotalSize < p.NominalSize {
			return e.Time
		}
	}
	return 0
}

// FinalTotalSize is the formation size at the last event
func FinalTotalSize(events []record.FormationEvent) float64 {
	if len(events) == 0 {
		return Undefined
	}
	return float64(events[len(events)-1].TotalSize)
}

// Dispersion is the mean coefficient of variation of member distances to the
// broadcast center over rows whose matching event is locked
func Dispersion(exp []logtable.ExpCenterRow, sim []record.AircraftState, events []record.FormationEvent, p Params) float64 {
	cursor := NewEventCursor(events, p.EventTolerance)

	var ratios []float64
	for _, row := range exp {
		e, ok := cursor.Seek(row.Time)
		if !ok || !e.Locked(p.LockRatio) || !row.HasCenter() {
			continue
		}

		distances := trimmedDistances(Members(sim, row.Time, p.MemberTolerance), row.Center(), p.TrimRatio)
		if len(distances) == 0 {
			continue
		}
		// Population deviation, no degrees-of-freedom correction
		m, std := stat.PopMeanStdDev(distances, nil)
		if m == 0 {
			continue
		}
		ratios = append(ratios, std/m)
	}

	return meanOrUndefined(ratios)
}

// Density is the local density of the inner members summed over the rows
// and divided by the row count, scaled by DensityScale. Rows without a center
// or without members add nothing but still count. A zero radius yields +Inf.
func Density(exp []logtable.ExpCenterRow, sim []record.AircraftState, p Params) float64 {
	densities := make([]float64, 0, len(exp))
	for _, row := range exp {
		if !row.HasCenter() {
			continue
		}
		members := Members(sim, row.Time, p.MemberTolerance)
		if len(members) == 0 {
			continue
		}

		distances := trimmedDistances(members, row.Center(), p.TrimRatio)
		b := len(distances)
		if b == 0 {
			densities = append(densities, 0)
			continue
		}

		r := distances[b-1]
		densities = append(densities, 3*float64(b)/(4*math.Pi*r*r*r))
	}

	if len(densities) == 0 {
		return Undefined
	}
	return floats.Sum(densities) / float64(len(exp)) * p.DensityScale
}

// CenterGap is the mean distance of the inner members to their own centroid
func CenterGap(exp []logtable.ExpCenterRow, sim []record.AircraftState, p Params) float64 {
	var gaps []float64
	for _, row := range exp {
		members := Members(sim, row.Time, p.MemberTolerance)
		if len(members) == 0 {
			continue
		}

		var centroid geo.Vec3
		for _, m := range members {
			centroid = centroid.Add(position(m))
		}
		n := float64(len(members))
		centroid = geo.Vec3{X: centroid.X / n, Y: centroid.Y / n, H: centroid.H / n}

		distances := trimmedDistances(members, centroid, p.TrimRatio)
		if len(distances) == 0 {
			continue
		}
		gaps = append(gaps, stat.Mean(distances, nil))
	}

	return meanOrUndefined(gaps)
}

// sizeDrops walks the events and calls fn with every decrease of the
// formation size, starting from the nominal size
func sizeDrops(events []record.FormationEvent, nominal int, fn func(drop int)) {
	previous := nominal
	for _, e := range events {
		if e.TotalSize < previous {
			fn(previous - e.TotalSize)
			previous = e.TotalSize
		}
	}
}

// DangerousFrequency accumulates d*(d-1) over every size drop d
func DangerousFrequency(events []record.FormationEvent, p Params) float64 {
	total := 0
	sizeDrops(events, p.NominalSize, func(d int) {
		total += d * (d - 1)
	})
	return float64(total) / float64(p.NominalSize)
}

// CrashProbability accumulates every size drop
func CrashProbability(events []record.FormationEvent, p Params) float64 {
	total := 0
	sizeDrops(events, p.NominalSize, func(d int) {
		total += d
	})
	return float64(total) / float64(p.NominalSize)
}

// Polarization is the mean norm of the summed member displacements relative
// to the center displacement, over consecutive rows with a locked event
func Polarization(exp []logtable.ExpCenterRow, sim []record.AircraftState, events []record.FormationEvent, p Params) float64 {
	cursor := NewEventCursor(events, p.EventTolerance)

	var norms []float64
	for i := 1; i < len(exp); i++ {
		row, prev := exp[i], exp[i-1]

		e, ok := cursor.Seek(row.Time)
		if !ok || !e.Locked(p.LockRatio) || !row.HasCenter() || !prev.HasCenter() {
			continue
		}

		current := Members(sim, row.Time, p.MemberTolerance)
		if len(current) == 0 {
			continue
		}
		previous := Members(sim, prev.Time, p.MemberTolerance)
		centerDir := row.Center().Sub(prev.Center())

		var sum geo.Vec3
		for _, m := range current {
			for _, pm := range previous {
				if pm.ID == m.ID {
					itemDir := position(m).Sub(position(pm))
					sum = sum.Add(itemDir.Sub(centerDir))
					break
				}
			}
		}
		norms = append(norms, sum.Norm())
	}

	return meanOrUndefined(norms)
}

// ExecuteTime accumulates the time spent reaching a locked formation after
// each of the two control commands. controls holds the command times.
func ExecuteTime(events []record.FormationEvent, controls [2]float64, p Params) float64 {
	if len(events) == 0 {
		return 0
	}

	last := events[len(events)-1].Time
	elapsed := 0.0
	phase := 0
	current := controls[0]

	for _, e := range events {
		if math.Abs(e.Time-last) < DefaultLastEventEpsilon {
			elapsed += e.Time - current
			break
		}

		// A crossed command boundary closes the running phase first
		if phase+1 < len(controls) && e.Time > controls[phase+1] {
			elapsed += e.Time - current
			current = controls[phase+1]
			phase++
		}

		if e.Locked(p.LockRatio) && e.Time > current {
			elapsed += e.Time - current
			if phase+1 == len(controls) {
				break
			}
			current = controls[phase+1]
			phase++
		}
	}

	return elapsed
}

// AirwayBias is the mean angle in radians between the center displacement of
// consecutive rows and the airway direction
func AirwayBias(exp []logtable.ExpCenterRow, airway geo.Vec3) float64 {
	airwayNorm := airway.Norm()

	var angles []float64
	for i := 1; i < len(exp); i++ {
		row, prev := exp[i], exp[i-1]
		if !row.HasCenter() || !prev.HasCenter() {
			continue
		}

		dir := row.Center().Sub(prev.Center())
		n := dir.Norm()
		if n == 0 || airwayNorm == 0 {
			continue
		}

		cos := airway.Dot(dir) / (airwayNorm * n)
		angles = append(angles, math.Acos(math.Max(-1, math.Min(1, cos))))
	}

	return meanOrUndefined(angles)
}

// LocBias is the smallest distance between the center and the target
func LocBias(exp []logtable.ExpCenterRow, target geo.Vec3) float64 {
	best := math.Inf(1)
	for _, row := range exp {
		if !row.HasCenter() {
			continue
		}
		best = math.Min(best, geo.Distance(row.Center(), target))
	}

	if math.IsInf(best, 1) {
		return Undefined
	}
	return best
}

// StableTime is the percentage of locked events, rounded to two decimals
func StableTime(events []record.FormationEvent, p Params) float64 {
	if len(events) == 0 {
		return 0
	}

	locked := 0
	for _, e := range events {
		if e.Locked(p.LockRatio) {
			locked++
		}
	}
	return round2(float64(locked) / float64(len(events)) * 100)
}
