// Package geo holds the great-circle helpers used by proximity search.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Point is a position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Finite reports whether both components are finite numbers.
func (p Point) Finite() bool {
	return isFinite(p.Lat) && isFinite(p.Lng)
}

// InRange reports whether p is a finite point within [-90,90] x [-180,180].
func (p Point) InRange() bool {
	return p.Finite() && p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceKm returns the haversine distance between from and to. ok is false
// when either point has a non-finite component; callers must treat that as an
// unknown distance, never as zero.
func DistanceKm(from, to Point) (km float64, ok bool) {
	if !from.Finite() || !to.Finite() {
		return 0, false
	}

	dLat := degreesToRadians(to.Lat - from.Lat)
	dLng := degreesToRadians(to.Lng - from.Lng)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(from.Lat))*math.Cos(degreesToRadians(to.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// rounding can push a marginally above 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c, true
}

// DistanceFrom is DistanceKm with an optional target, as stored on providers.
// A nil target yields an unknown distance.
func DistanceFrom(from Point, to *Point) (float64, bool) {
	if to == nil {
		return 0, false
	}
	return DistanceKm(from, *to)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
