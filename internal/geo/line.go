package geo

import "math"

// MPHPerMPS converts meters/second to miles/hour.
const MPHPerMPS = 2.237

// LineString is an ordered polyline in a planar CRS.
type LineString []Point

// Length returns the planar length of the line.
func (l LineString) Length() float64 {
	total := 0.0
	for i := 1; i < len(l); i++ {
		total += dist(l[i-1], l[i])
	}
	return total
}

// Project returns the distance along the line to the point on it nearest p.
// Lines with fewer than two points project everything to 0.
func (l LineString) Project(p Point) float64 {
	if len(l) < 2 {
		return 0
	}

	best := math.Inf(1)
	bestAlong := 0.0
	walked := 0.0
	for i := 1; i < len(l); i++ {
		a, b := l[i-1], l[i]
		segLen := dist(a, b)

		t := 0.0
		if segLen > 0 {
			t = ((p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)) / (segLen * segLen)
			t = math.Max(0, math.Min(1, t))
		}
		nearest := Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}

		if d := dist(p, nearest); d < best {
			best = d
			bestAlong = walked + t*segLen
		}
		walked += segLen
	}
	return bestAlong
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// SpeedMPH converts meters over seconds to miles per hour.
func SpeedMPH(metersElapsed, secElapsed float64) float64 {
	return metersElapsed / secElapsed * MPHPerMPS
}

// IsMonotonic reports whether values strictly increase. Slices shorter than
// two elements are trivially monotonic.
func IsMonotonic(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if !(values[i]-values[i-1] > 0) {
			return false
		}
	}
	return true
}
