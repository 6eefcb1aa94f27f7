package logtable

import (
	"swarmlog/internal/geo"
	"swarmlog/internal/record"
)

// NoCenter is written to r_x, r_y and r_h when no center matches a row
const NoCenter = -1.0

// Center is the centroid of every aircraft sharing one exact timestamp
type Center struct {
	Time   float64
	X      float64
	Y      float64
	Height float64
}

// ExpCenterRow is a center ping joined with the aircraft centroid of the
// same timestamp
type ExpCenterRow struct {
	ID     int
	Type   int
	Time   float64
	Lng    float64
	Lat    float64
	Height float64
	RX     float64
	RY     float64
	RH     float64
}

// Center returns the joined centroid as a vector
func (r ExpCenterRow) Center() geo.Vec3 {
	return geo.Vec3{X: r.RX, Y: r.RY, H: r.RH}
}

// HasCenter reports whether the row joined to a centroid
func (r ExpCenterRow) HasCenter() bool {
	return r.RX != NoCenter || r.RY != NoCenter || r.RH != NoCenter
}

// Tables holds every table of one run. They are read only once built.
type Tables struct {
	Aircraft  []record.AircraftState
	Centers   []Center
	ExpCenter []ExpCenterRow
	Events    []record.FormationEvent
}

// NewTables assembles the tables of a run from decoded records
func NewTables(aircraft []record.AircraftState, pings []record.CenterPing, events []record.FormationEvent) *Tables {
	centers := ComputeCenters(aircraft)
	return &Tables{
		Aircraft:  aircraft,
		Centers:   centers,
		ExpCenter: JoinCenters(pings, centers),
		Events:    events,
	}
}

// ComputeCenters groups aircraft by exact time and averages x, y and height.
// Groups follow the first appearance of each time.
func ComputeCenters(aircraft []record.AircraftState) []Center {
	type sum struct {
		x, y, h float64
		n       int
	}

	index := make(map[float64]int)
	var times []float64
	var sums []sum

	for _, a := range aircraft {
		i, ok := index[a.Time]
		if !ok {
			i = len(sums)
			index[a.Time] = i
			times = append(times, a.Time)
			sums = append(sums, sum{})
		}
		sums[i].x += a.X
		sums[i].y += a.Y
		sums[i].h += a.Height
		sums[i].n++
	}

	centers := make([]Center, len(sums))
	for i, s := range sums {
		n := float64(s.n)
		centers[i] = Center{Time: times[i], X: s.x / n, Y: s.y / n, Height: s.h / n}
	}
	return centers
}

// JoinCenters left-joins every center ping with the centroid of exactly the
// same time. Rows without a match get NoCenter. The output has one row per
// ping in ping order.
func JoinCenters(pings []record.CenterPing, centers []Center) []ExpCenterRow {
	byTime := make(map[float64]Center, len(centers))
	for _, c := range centers {
		if _, ok := byTime[c.Time]; !ok {
			byTime[c.Time] = c
		}
	}

	rows := make([]ExpCenterRow, len(pings))
	for i, p := range pings {
		row := ExpCenterRow{
			ID:     p.ID,
			Type:   p.Type,
			Time:   p.Time,
			Lng:    p.Lng,
			Lat:    p.Lat,
			Height: p.Height,
			RX:     NoCenter,
			RY:     NoCenter,
			RH:     NoCenter,
		}
		if c, ok := byTime[p.Time]; ok {
			row.RX, row.RY, row.RH = c.X, c.Y, c.Height
		}
		rows[i] = row
	}
	return rows
}
