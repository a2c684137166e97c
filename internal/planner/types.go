// Package planner implements the multi-modal trip planner: candidate
// generation over the transit network, scoring/ranking, and the
// fallback-driven orchestration that assembles the final response.
package planner

import (
	"time"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
)

// Segment kinds.
const (
	SegmentWalking = "walking"
	SegmentTransit = "transit"
)

// StopRef is a lightweight stop reference embedded in train segments so the
// client can display intermediate calls.
type StopRef struct {
	ID       int32     `json:"id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
}

// Segment is one atomic leg of an itinerary. Kind selects which of the
// walking- or transit-specific fields are meaningful. Segments are owned by
// the itinerary that contains them and are never shared.
type Segment struct {
	Kind        string    `json:"kind"`
	From        geo.Point `json:"from"`
	To          geo.Point `json:"to"`
	DistanceM   float64   `json:"distance_m"`
	DurationMin int       `json:"duration_min"`
	Polyline    string    `json:"polyline,omitempty"`
	Instruction string    `json:"instruction,omitempty"`

	// Walking fields.
	Accessible bool `json:"accessible,omitempty"`

	// Transit fields.
	FromStopID        int32     `json:"from_stop_id,omitempty"`
	FromStopName      string    `json:"from_stop_name,omitempty"`
	ToStopID          int32     `json:"to_stop_id,omitempty"`
	ToStopName        string    `json:"to_stop_name,omitempty"`
	LineID            string    `json:"line_id,omitempty"`
	Class             string    `json:"class,omitempty"`
	Departure         time.Time `json:"departure,omitempty"`
	Arrival           time.Time `json:"arrival,omitempty"`
	IntermediateStops []StopRef `json:"intermediate_stops,omitempty"`
}

// Itinerary is a complete door-to-door trip plan. It is immutable once
// scored: the ranker only reorders and filters.
type Itinerary struct {
	Segments []Segment `json:"segments"`

	TotalDistanceM   float64 `json:"total_distance_m"`
	TotalDurationMin int     `json:"total_duration_min"`
	WalkDistanceM    float64 `json:"walk_distance_m"`
	WalkMinutes      int     `json:"walk_minutes"`
	Transfers        int     `json:"transfers"`
}

// HasTransit reports whether the itinerary contains at least one transit leg.
func (it *Itinerary) HasTransit() bool {
	for _, s := range it.Segments {
		if s.Kind == SegmentTransit {
			return true
		}
	}
	return false
}

// newItinerary assembles an itinerary from its segments and computes the
// derived aggregates. extraWaitMin is explicitly modeled waiting time (initial
// wait plus simulated departure offset) added on top of the segment sum.
func newItinerary(segments []Segment, extraWaitMin int) Itinerary {
	it := Itinerary{Segments: segments, TotalDurationMin: extraWaitMin}
	transit := 0
	for _, s := range segments {
		it.TotalDistanceM += s.DistanceM
		it.TotalDurationMin += s.DurationMin
		if s.Kind == SegmentTransit {
			transit++
		} else {
			it.WalkDistanceM += s.DistanceM
			it.WalkMinutes += s.DurationMin
		}
	}
	if transit > 1 {
		it.Transfers = transit - 1
	}
	return it
}

// Preferences are the rider's planning preferences.
type Preferences struct {
	MinimizeWalking   bool `json:"minimize_walking"`
	MinimizeTransfers bool `json:"minimize_transfers"`
	MinimizeTime      bool `json:"minimize_time"`
	AvoidStairs       bool `json:"avoid_stairs"`
	PreferExpress     bool `json:"prefer_express"`
}

// PlanRequest is the planner's input.
type PlanRequest struct {
	Start geo.Point `json:"start"`
	End   geo.Point `json:"end"`
	// Modes restricts the transport classes considered (bus/tram/train).
	// Empty means no restriction.
	Modes       []string    `json:"modes"`
	Preferences Preferences `json:"preferences"`

	// Optional overrides of the default stop-discovery limits.
	MaxWalkingDistanceM float64 `json:"max_walking_distance_m,omitempty"`
	MaxWalkingTimeMin   int     `json:"max_walking_time_min,omitempty"`
}

// Warning severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Warning types.
const (
	WarningClassSubstituted = "class_substituted"
	WarningExtendedWalk     = "extended_walk"
	WarningDistanceTooLong  = "distance_too_long"
	WarningNoTrainService   = "no_train_service"
	WarningPlanningFailed   = "planning_failed"
	WarningPlannerRecovered = "planner_recovered"
	WarningLineDisrupted    = "line_disrupted"
)

// Warning is a non-fatal annotation on a plan response.
type Warning struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Metadata identifies one planning run.
type Metadata struct {
	RequestID string `json:"request_id"`
	Algorithm string `json:"algorithm"`
	Version   string `json:"version"`
}

// PlanResponse is the planner's output: the best itinerary, up to four
// alternatives, and any warnings accumulated along the fallback ladder.
type PlanResponse struct {
	Primary      *Itinerary  `json:"primary_route"`
	Alternatives []Itinerary `json:"alternative_routes"`
	Warnings     []Warning   `json:"warnings"`
	Metadata     Metadata    `json:"metadata"`
}
