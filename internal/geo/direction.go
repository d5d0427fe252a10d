package geo

import "math"

// Direction is the primary cardinal direction of travel.
type Direction string

// Cardinal directions.
const (
	Northbound Direction = "Northbound"
	Southbound Direction = "Southbound"
	Eastbound  Direction = "Eastbound"
	Westbound  Direction = "Westbound"
	Unknown    Direction = "Unknown"
)

var opposites = map[Direction]Direction{
	Northbound: Southbound,
	Southbound: Northbound,
	Eastbound:  Westbound,
	Westbound:  Eastbound,
	Unknown:    "",
}

// Opposite returns the reverse direction. Unknown has no opposite.
func (d Direction) Opposite() Direction {
	return opposites[d]
}

// CardinalDirection picks the dominant axis of a displacement. Ties go to the
// north/south axis; zero or NaN displacement is Unknown.
func CardinalDirection(distanceEast, distanceNorth float64) Direction {
	if math.Abs(distanceEast) > math.Abs(distanceNorth) {
		switch {
		case distanceEast > 0:
			return Eastbound
		case distanceEast < 0:
			return Westbound
		default:
			return Unknown
		}
	}

	switch {
	case distanceNorth > 0:
		return Northbound
	case distanceNorth < 0:
		return Southbound
	default:
		return Unknown
	}
}

// Directions assigns a direction to each point of an ordered path. The first
// point has no predecessor and is Unknown.
func Directions(path []Point) []Direction {
	out := make([]Direction, len(path))
	for i := range path {
		if i == 0 {
			out[i] = Unknown
			continue
		}
		out[i] = CardinalDirection(path[i].X-path[i-1].X, path[i].Y-path[i-1].Y)
	}
	return out
}
