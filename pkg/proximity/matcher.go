package proximity

import "roadassist/pkg/location"

// DefaultRadiusKm is used when a caller does not supply a radius.
const DefaultRadiusKm = 10.0

// DispatchDegrees is the fixed box half-width used for emergency dispatch (~11 km).
const DispatchDegrees = 0.1

// Query describes a proximity search. When DegreeDelta is positive the box
// is a fixed ±DegreeDelta square; otherwise RadiusKm is converted to degrees.
type Query struct {
	Latitude    float64
	Longitude   float64
	RadiusKm    float64
	DegreeDelta float64
}

// Radius returns a radius query around (lat, lng).
func Radius(lat, lng, radiusKm float64) Query {
	return Query{Latitude: lat, Longitude: lng, RadiusKm: radiusKm}
}

// Degrees returns a fixed-degree query around (lat, lng).
func Degrees(lat, lng, delta float64) Query {
	return Query{Latitude: lat, Longitude: lng, DegreeDelta: delta}
}

// Box is the only cutoff applied by Within.
func (q Query) Box() location.BoundingBox {
	if q.DegreeDelta > 0 {
		return location.BoxAroundDegrees(q.Latitude, q.Longitude, q.DegreeDelta)
	}
	return location.BoxAroundKm(q.Latitude, q.Longitude, q.RadiusKm)
}

// Locatable is anything with a stored coordinate.
type Locatable interface {
	Coordinates() (lat, lng float64)
}

// Candidate is a match annotated with its great-circle distance from the query point.
type Candidate[T Locatable] struct {
	Item       T
	DistanceKm float64
}

// Within keeps the items whose coordinate falls inside q.Box(), in input order.
// The distance is informational; items in the corners of the box beyond the
// radius are still returned.
func Within[T Locatable](q Query, items []T) []Candidate[T] {
	b := q.Box()
	out := make([]Candidate[T], 0, len(items))
	for _, it := range items {
		lat, lng := it.Coordinates()
		if !b.Contains(lat, lng) {
			continue
		}
		out = append(out, Candidate[T]{
			Item:       it,
			DistanceKm: location.HaversineKm(q.Latitude, q.Longitude, lat, lng),
		})
	}
	return out
}
