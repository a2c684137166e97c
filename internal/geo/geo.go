// Package geo provides great-circle distance and travel-time estimation
// helpers shared by the network index and the trip planner.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the spherical
// approximation.
const earthRadiusMeters = 6_371_000.0

// walkingSpeedMPS is the assumed pedestrian speed (~5 km/h).
const walkingSpeedMPS = 1.39

// Point is a WGS-84 coordinate pair. It is an immutable value type.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceMeters returns the haversine great-circle distance in meters
// between two points on a spherical Earth.
func DistanceMeters(a, b Point) float64 {
	const deg2rad = math.Pi / 180.0

	dLat := (b.Lat - a.Lat) * deg2rad
	dLon := (b.Lon - a.Lon) * deg2rad
	lat1 := a.Lat * deg2rad
	lat2 := b.Lat * deg2rad

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// WalkingMinutes returns the estimated walking time in whole minutes for the
// given distance, rounded up.
func WalkingMinutes(distanceMeters float64) int {
	if distanceMeters <= 0 {
		return 0
	}
	seconds := distanceMeters / walkingSpeedMPS
	return int(math.Ceil(seconds / 60))
}

// TransitSpeedMPS returns the assumed average vehicle speed in m/s for a
// transport class. Unknown classes fall back to the bus speed.
func TransitSpeedMPS(class string) float64 {
	switch class {
	case "tram":
		return 20.0 / 3.6
	case "train":
		return 60.0 / 3.6
	default: // bus, mixed
		return 15.0 / 3.6
	}
}

// TransitMinutes returns the estimated in-vehicle time in whole minutes for
// the given distance and transport class, rounded up.
func TransitMinutes(distanceMeters float64, class string) int {
	if distanceMeters <= 0 {
		return 0
	}
	seconds := distanceMeters / TransitSpeedMPS(class)
	return int(math.Ceil(seconds / 60))
}

// Midpoint returns the arithmetic midpoint of two points. Good enough at
// city scale; not a geodesic midpoint.
func Midpoint(a, b Point) Point {
	return Point{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}
