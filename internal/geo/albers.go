// Package geo provides the planar geometry used by the processing steps:
// projection to NAD83 / California Albers (EPSG:3310), cardinal direction of
// travel between consecutive stops, and linear referencing along shapes.
package geo

import (
	"fmt"
	"math"
	"strings"
)

// CRS identifiers understood by the projection code.
const (
	WGS84      = "EPSG:4326"
	ProjectCRS = "EPSG:3310"
)

// GRS80 ellipsoid parameters.
const (
	grs80A  = 6378137.0
	grs80F  = 1 / 298.257222101
	degToRd = math.Pi / 180
)

// Point is a planar coordinate. For WGS84 X is longitude and Y is latitude.
type Point struct {
	X float64
	Y float64
}

// Albers is an ellipsoidal Albers equal-area conic projection.
type Albers struct {
	a, e, e2   float64
	lon0       float64
	x0, y0     float64
	n, c, rho0 float64
}

// NewAlbers builds a projection from standard parallels, origin and false
// easting/northing, all in degrees and meters.
func NewAlbers(lat1, lat2, lat0, lon0, x0, y0 float64) *Albers {
	e2 := grs80F * (2 - grs80F)
	p := &Albers{
		a:    grs80A,
		e:    math.Sqrt(e2),
		e2:   e2,
		lon0: lon0 * degToRd,
		x0:   x0,
		y0:   y0,
	}

	phi1, phi2, phi0 := lat1*degToRd, lat2*degToRd, lat0*degToRd
	m1, m2 := p.m(phi1), p.m(phi2)
	q1, q2, q0 := p.q(phi1), p.q(phi2), p.q(phi0)

	p.n = (m1*m1 - m2*m2) / (q2 - q1)
	p.c = m1*m1 + p.n*q1
	p.rho0 = p.a * math.Sqrt(p.c-p.n*q0) / p.n
	return p
}

// CaliforniaAlbers is EPSG:3310.
var CaliforniaAlbers = NewAlbers(34, 40.5, 0, -120, 0, -4000000)

func (p *Albers) m(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-p.e2*s*s)
}

func (p *Albers) q(phi float64) float64 {
	s := math.Sin(phi)
	es := p.e * s
	return (1 - p.e2) * (s/(1-p.e2*s*s) - (1/(2*p.e))*math.Log((1-es)/(1+es)))
}

// Forward projects a lon/lat pair in degrees to meters.
func (p *Albers) Forward(lon, lat float64) Point {
	rho := p.a * math.Sqrt(p.c-p.n*p.q(lat*degToRd)) / p.n
	theta := p.n * (lon*degToRd - p.lon0)
	return Point{
		X: rho*math.Sin(theta) + p.x0,
		Y: p.rho0 - rho*math.Cos(theta) + p.y0,
	}
}

// Projector returns the forward projection for a CRS identifier.
func Projector(crs string) (func(lon, lat float64) Point, error) {
	switch strings.ToUpper(strings.TrimSpace(crs)) {
	case ProjectCRS:
		return CaliforniaAlbers.Forward, nil
	case WGS84:
		return func(lon, lat float64) Point { return Point{X: lon, Y: lat} }, nil
	default:
		return nil, fmt.Errorf("unsupported crs %q (supported: %s, %s)", crs, ProjectCRS, WGS84)
	}
}
