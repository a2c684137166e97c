package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/network"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/routing"
)

// stubRouter answers routing requests from straight-line distance: walking at
// pedestrian speed, driving at 30 km/h. Failures are scriptable per profile.
type stubRouter struct {
	mu         sync.Mutex
	walkCalls  int
	driveCalls int
	walkErr    error
	driveErr   error
}

func (s *stubRouter) Route(_ context.Context, req routing.RoutingRequest) (*routing.RoutingResponse, error) {
	dist := geo.DistanceMeters(
		geo.Point{Lat: req.OriginLat, Lon: req.OriginLon},
		geo.Point{Lat: req.DestinationLat, Lon: req.DestinationLon},
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Profile == routing.ProfileWalking {
		s.walkCalls++
		if s.walkErr != nil {
			return nil, s.walkErr
		}
		return &routing.RoutingResponse{Polyline: "walkpoly", DistanceM: int(dist), DurationS: int(dist / 1.39)}, nil
	}
	s.driveCalls++
	if s.driveErr != nil {
		return nil, s.driveErr
	}
	return &routing.RoutingResponse{Polyline: "drivepoly", DistanceM: int(dist), DurationS: int(dist / 8.33)}, nil
}

func (s *stubRouter) driveCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driveCalls
}

// routeFunc adapts a function to the Router interface for one-off scripting.
type routeFunc func(context.Context, routing.RoutingRequest) (*routing.RoutingResponse, error)

func (f routeFunc) Route(ctx context.Context, req routing.RoutingRequest) (*routing.RoutingResponse, error) {
	return f(ctx, req)
}

// cityNetwork is a fixture with two separated clusters: a tram pair sharing
// line 8 (direct trips) and a three-stop chain where only a hub connects the
// outer stops (forced transfer).
func cityNetwork() *network.Index {
	return network.NewIndex(network.Dataset{
		Stops: []network.Stop{
			{ID: 1, Name: "Plac Inwalidów", Location: geo.Point{Lat: 50.0605, Lon: 19.9310}, Class: network.ClassTram, Lines: []string{"8"}},
			{ID: 2, Name: "Dworzec Towarowy", Location: geo.Point{Lat: 50.0695, Lon: 19.9490}, Class: network.ClassTram, Lines: []string{"8"}},

			{ID: 10, Name: "Salwator", Location: geo.Point{Lat: 50.0000, Lon: 19.9000}, Class: network.ClassTram, Lines: []string{"1"}},
			{ID: 11, Name: "Filharmonia", Location: geo.Point{Lat: 50.0000, Lon: 19.9100}, Class: network.ClassTram, Lines: []string{"1", "2"}},
			{ID: 12, Name: "Poczta Główna", Location: geo.Point{Lat: 50.0000, Lon: 19.9200}, Class: network.ClassTram, Lines: []string{"2"}},
		},
		Lines: []network.Line{
			{ID: "8", Name: "8", Class: network.ClassTram},
			{ID: "1", Name: "1", Class: network.ClassTram},
			{ID: "2", Name: "2", Class: network.ClassTram},
		},
	})
}

// railNetwork is a fixture whose only service is a three-station train line,
// with every station several kilometers from the trip endpoints.
func railNetwork() *network.Index {
	return network.NewIndex(network.Dataset{
		Stops: []network.Stop{
			{ID: 20, Name: "Kraków Swoszowice", Location: geo.Point{Lat: 50.2000, Lon: 20.1000}, Class: network.ClassTrain, Lines: []string{"SKA"}},
			{ID: 21, Name: "Kraków Bieżanów", Location: geo.Point{Lat: 50.2300, Lon: 20.1500}, Class: network.ClassTrain, Lines: []string{"SKA"}},
			{ID: 22, Name: "Wieliczka Rynek", Location: geo.Point{Lat: 50.2600, Lon: 20.2000}, Class: network.ClassTrain, Lines: []string{"SKA"}},
		},
		Lines: []network.Line{
			{ID: "SKA", Name: "SKA", Class: network.ClassTrain, Stops: []int32{20, 21, 22}},
		},
	})
}

// fastTunables is the production parameter set with retry delays shrunk so
// failure-path tests don't sleep.
func fastTunables() Tunables {
	tun := DefaultTunables()
	tun.RetryBaseDelay = time.Millisecond
	return tun
}

func newTestPlanner(net *network.Index, router routing.Router) *Planner {
	tun := fastTunables()
	gen := NewGenerator(net, router, fixedRand(0), tun)
	return New(net, gen, tun, WithIDGenerator(func() string { return "req-test" }))
}

// assertContiguous verifies that consecutive segments chain location to
// location.
func assertContiguous(t *testing.T, it *Itinerary) {
	t.Helper()
	for i := 1; i < len(it.Segments); i++ {
		if it.Segments[i].From != it.Segments[i-1].To {
			t.Errorf("segment %d starts at %+v but segment %d ends at %+v",
				i, it.Segments[i].From, i-1, it.Segments[i-1].To)
		}
	}
}

func TestPlan_TrivialDistanceWalksOnly(t *testing.T) {
	p := newTestPlanner(cityNetwork(), &stubRouter{})

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0600, Lon: 19.9300},
		End:   geo.Point{Lat: 50.0610, Lon: 19.9310},
	})

	if resp.Primary == nil {
		t.Fatal("expected a primary route")
	}
	if resp.Primary.HasTransit() {
		t.Error("sub-300m trip should not use transit")
	}
	if len(resp.Primary.Segments) != 1 || resp.Primary.Segments[0].Kind != SegmentWalking {
		t.Errorf("segments = %+v, want a single walking leg", resp.Primary.Segments)
	}
	if len(resp.Alternatives) != 0 || len(resp.Warnings) != 0 {
		t.Errorf("trivial trip produced alternatives=%d warnings=%d", len(resp.Alternatives), len(resp.Warnings))
	}
	if resp.Metadata.RequestID != "req-test" || resp.Metadata.Algorithm == "" {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
}

func TestPlan_DirectSharedLine(t *testing.T) {
	p := newTestPlanner(cityNetwork(), &stubRouter{})

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0600, Lon: 19.9300},
		End:   geo.Point{Lat: 50.0700, Lon: 19.9500},
	})

	if resp.Primary == nil {
		t.Fatal("expected a primary route")
	}
	assertContiguous(t, resp.Primary)

	var transit []Segment
	for _, s := range resp.Primary.Segments {
		if s.Kind == SegmentTransit {
			transit = append(transit, s)
		}
	}
	if len(transit) != 1 {
		t.Fatalf("transit legs = %d, want 1", len(transit))
	}
	if transit[0].LineID != "8" {
		t.Errorf("line = %q, want 8", transit[0].LineID)
	}
	if resp.Primary.Transfers != 0 {
		t.Errorf("transfers = %d, want 0", resp.Primary.Transfers)
	}
	if len(resp.Primary.Segments) < 2 || len(resp.Primary.Segments) > 3 {
		t.Errorf("segment count = %d, want walk+transit(+walk)", len(resp.Primary.Segments))
	}
	if len(resp.Alternatives) > 4 {
		t.Errorf("alternatives = %d, want at most 4", len(resp.Alternatives))
	}
	for _, alt := range resp.Alternatives {
		assertContiguous(t, &alt)
	}
}

func TestPlan_ForcedTransfer(t *testing.T) {
	p := newTestPlanner(cityNetwork(), &stubRouter{})

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0005, Lon: 19.9000},
		End:   geo.Point{Lat: 50.0005, Lon: 19.9200},
	})

	if resp.Primary == nil {
		t.Fatal("expected a primary route")
	}
	assertContiguous(t, resp.Primary)

	var transit []Segment
	for _, s := range resp.Primary.Segments {
		if s.Kind == SegmentTransit {
			transit = append(transit, s)
		}
	}
	if len(transit) != 2 {
		t.Fatalf("transit legs = %d, want 2 (one transfer)", len(transit))
	}
	if resp.Primary.Transfers != 1 {
		t.Errorf("transfers = %d, want 1", resp.Primary.Transfers)
	}
	if transit[0].LineID != "1" || transit[1].LineID != "2" {
		t.Errorf("lines = %q, %q, want 1 then 2", transit[0].LineID, transit[1].LineID)
	}
	if transit[0].ToStopID != 11 || transit[1].FromStopID != 11 {
		t.Errorf("transfer should pass through stop 11, got %d -> %d", transit[0].ToStopID, transit[1].FromStopID)
	}
}

func TestPlan_NoStopsTooFarToWalk(t *testing.T) {
	p := newTestPlanner(cityNetwork(), &stubRouter{})

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 49.9000, Lon: 19.7000},
		End:   geo.Point{Lat: 49.9300, Lon: 19.7500},
		Modes: []string{network.ClassBus},
	})

	if resp.Primary != nil {
		t.Errorf("expected no route, got %+v", resp.Primary)
	}
	if len(resp.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want exactly one", resp.Warnings)
	}
	w := resp.Warnings[0]
	if w.Type != WarningDistanceTooLong || w.Severity != SeverityError {
		t.Errorf("warning = %+v, want %s/%s", w, WarningDistanceTooLong, SeverityError)
	}
	if w.Message == "" {
		t.Error("warning message should mention the distance")
	}
}

func TestPlan_ExtendedTrainRadius(t *testing.T) {
	p := newTestPlanner(railNetwork(), &stubRouter{})

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.1700, Lon: 20.1000},
		End:   geo.Point{Lat: 50.2900, Lon: 20.2000},
		Modes: []string{network.ClassTrain},
	})

	if resp.Primary == nil {
		t.Fatal("expected a primary route via the extended station radius")
	}
	assertContiguous(t, resp.Primary)

	var train *Segment
	for i := range resp.Primary.Segments {
		if resp.Primary.Segments[i].Kind == SegmentTransit {
			train = &resp.Primary.Segments[i]
		}
	}
	if train == nil {
		t.Fatal("expected a train segment")
	}
	if train.Class != network.ClassTrain || train.LineID != "SKA" {
		t.Errorf("train segment = class %q line %q", train.Class, train.LineID)
	}
	if len(train.IntermediateStops) != 1 || train.IntermediateStops[0].ID != 21 {
		t.Errorf("intermediate stops = %+v, want the middle station", train.IntermediateStops)
	}

	var found bool
	for _, w := range resp.Warnings {
		if w.Type == WarningExtendedWalk && w.Severity == SeverityInfo {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %+v, want an extended-walk notice", resp.Warnings)
	}
}

func TestPlan_TrainUnreachable(t *testing.T) {
	p := newTestPlanner(railNetwork(), &stubRouter{})

	// Endpoints tens of kilometers from any station.
	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 49.8000, Lon: 19.5000},
		End:   geo.Point{Lat: 49.8500, Lon: 19.6000},
		Modes: []string{network.ClassTrain},
	})

	if resp.Primary != nil {
		t.Errorf("expected no route, got %+v", resp.Primary)
	}
	var found bool
	for _, w := range resp.Warnings {
		if w.Type == WarningNoTrainService && w.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %+v, want a no-train-service error", resp.Warnings)
	}
}

func TestPlan_GeometryExhaustionFallsBackToWalking(t *testing.T) {
	router := &stubRouter{driveErr: errors.New("routes api down")}
	p := newTestPlanner(cityNetwork(), router)

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0600, Lon: 19.9300},
		End:   geo.Point{Lat: 50.0700, Lon: 19.9500},
	})

	if resp.Primary == nil {
		t.Fatal("expected a walking fallback route")
	}
	if resp.Primary.HasTransit() {
		t.Error("no transit leg should survive a geometry fetch exhaustion")
	}
	if router.driveCallCount() == 0 {
		t.Error("driving geometry was never attempted")
	}
}

func TestPlan_RecoversFromPanic(t *testing.T) {
	var calls int
	router := routeFunc(func(_ context.Context, req routing.RoutingRequest) (*routing.RoutingResponse, error) {
		calls++
		if calls == 1 {
			panic("injected failure")
		}
		return &routing.RoutingResponse{Polyline: "walkpoly", DistanceM: 150, DurationS: 110}, nil
	})
	p := newTestPlanner(cityNetwork(), router)

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0600, Lon: 19.9300},
		End:   geo.Point{Lat: 50.0610, Lon: 19.9310},
	})

	if resp.Primary == nil {
		t.Fatal("expected a degraded walking route after recovery")
	}
	var found bool
	for _, w := range resp.Warnings {
		if w.Type == WarningPlannerRecovered {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %+v, want a planner-recovered notice", resp.Warnings)
	}
}

func TestPlan_SurvivesPanicInCandidateSearch(t *testing.T) {
	// Panic on every geometry lookup: each candidate goroutine blows up
	// mid-generation. The plan must still resolve (walking fallback) instead
	// of taking the process down.
	router := routeFunc(func(_ context.Context, req routing.RoutingRequest) (*routing.RoutingResponse, error) {
		if req.Profile == routing.ProfileDriving {
			panic("injected failure inside candidate search")
		}
		dist := geo.DistanceMeters(
			geo.Point{Lat: req.OriginLat, Lon: req.OriginLon},
			geo.Point{Lat: req.DestinationLat, Lon: req.DestinationLon},
		)
		return &routing.RoutingResponse{Polyline: "walkpoly", DistanceM: int(dist), DurationS: int(dist / 1.39)}, nil
	})
	p := newTestPlanner(cityNetwork(), router)

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0600, Lon: 19.9300},
		End:   geo.Point{Lat: 50.0700, Lon: 19.9500},
	})

	if resp.Primary == nil {
		t.Fatal("expected a walking fallback route")
	}
	if resp.Primary.HasTransit() {
		t.Error("no transit candidate should survive a panicking geometry lookup")
	}
}

func TestPlan_ExhaustedFallbacksEmitPlanningFailed(t *testing.T) {
	// Every routing call fails, so neither transit candidates nor the
	// walking-only last rung can be built.
	router := &stubRouter{
		walkErr:  errors.New("routes api down"),
		driveErr: errors.New("routes api down"),
	}
	p := newTestPlanner(cityNetwork(), router)

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0600, Lon: 19.9300},
		End:   geo.Point{Lat: 50.0700, Lon: 19.9500},
	})

	if resp.Primary != nil {
		t.Errorf("expected no route, got %+v", resp.Primary)
	}
	var found bool
	for _, w := range resp.Warnings {
		if w.Type == WarningPlanningFailed && w.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %+v, want a planning-failed error", resp.Warnings)
	}
}

func TestPlan_DedupesAndBoundsAlternatives(t *testing.T) {
	p := newTestPlanner(cityNetwork(), &stubRouter{})

	resp := p.Plan(context.Background(), PlanRequest{
		Start: geo.Point{Lat: 50.0600, Lon: 19.9300},
		End:   geo.Point{Lat: 50.0700, Lon: 19.9500},
	})

	if resp.Primary == nil {
		t.Fatal("expected a primary route")
	}
	if len(resp.Alternatives) > 4 {
		t.Fatalf("alternatives = %d, want at most 4", len(resp.Alternatives))
	}
	// All returned itineraries share the same transit legs here, so any pair
	// closer than the dedupe window would be a duplicate.
	all := append([]Itinerary{*resp.Primary}, resp.Alternatives...)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if abs(all[i].TotalDurationMin-all[j].TotalDurationMin) < 5 {
				t.Errorf("itineraries %d and %d are near-duplicates: %d vs %d min",
					i, j, all[i].TotalDurationMin, all[j].TotalDurationMin)
			}
		}
	}
}
