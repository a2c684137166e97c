package routing

import "context"

// Profile selects the travel mode for a path lookup.
//
// ProfileDriving doubles as the proxy profile for drawing a transit
// vehicle's path: the external service has no bus/tram mode, and a driving
// path follows the same street geometry.
type Profile string

const (
	ProfileWalking Profile = "walking"
	ProfileDriving Profile = "driving"
)

// RoutingRequest holds the origin and destination coordinates and the travel
// profile for a path calculation.
type RoutingRequest struct {
	OriginLat      float64
	OriginLon      float64
	DestinationLat float64
	DestinationLon float64
	Profile        Profile
}

// RoutingResponse holds the result of a path calculation.
type RoutingResponse struct {
	// Polyline is the encoded polyline string (Google's Encoded Polyline
	// Algorithm format). Clients are expected to decode this themselves.
	Polyline  string
	DistanceM int
	DurationS int
}

// Router calculates a path between two geographic points.
//
// Implementations must return an error on failure rather than substituting a
// straight-line estimate: the planner decides per segment whether a failed
// lookup rejects the whole candidate.
type Router interface {
	Route(ctx context.Context, req RoutingRequest) (*RoutingResponse, error)
}
