package geo

import (
	"math"

	"github.com/wroge/wgs84"
)

// EarthRadius is the sphere radius of EPSG:3857 in meters
const EarthRadius = 6378137.0

// Projector maps geographic degrees to planar meters
type Projector interface {
	Project(lng, lat float64) (x, y float64)
}

// Transform is a Projector backed by a wgs84 coordinate transformation from
// longitude/latitude to a planar reference system
type Transform struct {
	fn wgs84.Func
}

// NewTransform returns the Projector from EPSG:4326 degrees to crs
func NewTransform(crs wgs84.CoordinateReferenceSystem) Transform {
	return Transform{fn: wgs84.LonLat().To(crs)}
}

// Project converts longitude/latitude in degrees to easting/northing
func (t Transform) Project(lng, lat float64) (float64, float64) {
	x, y, _ := t.fn(lng, lat, 0)
	return x, y
}

var webMercator = NewTransform(wgs84.WebMercator())

// WebMercator projects EPSG:4326 coordinates to EPSG:3857 (spherical Mercator)
type WebMercator struct{}

// Project converts longitude/latitude in degrees to easting/northing in meters
func (WebMercator) Project(lng, lat float64) (float64, float64) {
	return webMercator.Project(lng, lat)
}

// Vec3 is a planar position (or displacement) with height, in meters
type Vec3 struct {
	X, Y, H float64
}

// Sub returns v - o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, H: v.H - o.H}
}

// Add returns v + o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, H: v.H + o.H}
}

// Dot returns the dot product of v and o
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.H*o.H
}

// Norm returns the Euclidean length of v
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Distance returns the Euclidean distance between v and o
func Distance(v, o Vec3) float64 {
	return v.Sub(o).Norm()
}

// Point is a geographic position in degrees with a height in meters
type Point struct {
	Lng    float64 `yaml:"lng"`
	Lat    float64 `yaml:"lat"`
	Height float64 `yaml:"height"`
}

// Project returns the planar position of p
func (p Point) Project(proj Projector) Vec3 {
	x, y := proj.Project(p.Lng, p.Lat)
	return Vec3{X: x, Y: y, H: p.Height}
}
