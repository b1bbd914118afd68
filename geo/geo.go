// Package geo decides whether a claimed location lies inside a group's
// geofence.
package geo

import (
	"math"

	"github.com/zkpresence/zkpresence/types"
)

// earthRadius is the mean Earth radius in meters used by the haversine
// formula.
const earthRadius = 6371000.0

// DistanceMeters returns the great-circle distance between a and b in
// meters, using the haversine formula on a spherical Earth.
func DistanceMeters(a, b types.Location) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinGeofence reports whether loc falls inside fence. The computed
// distance is returned either way so callers can report it. A point exactly
// on the boundary is inside.
func WithinGeofence(loc types.Location, fence types.Geofence) (bool, float64) {
	d := DistanceMeters(loc, fence.Center())
	return d <= fence.Radius, d
}
