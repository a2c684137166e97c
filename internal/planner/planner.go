package planner

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/network"
)

const (
	algorithmName  = "multi-modal-fallback"
	plannerVersion = "1.0.0"
)

// Planner is the top-level trip planning entry point. It is stateless per
// request: the only shared state is the read-only network index and the
// best-effort route cache behind the generator, so one Planner serves
// concurrent requests.
type Planner struct {
	net   *network.Index
	gen   *Generator
	tun   Tunables
	newID func() string
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithIDGenerator overrides the request-ID source. Tests use this for
// deterministic metadata.
func WithIDGenerator(fn func() string) PlannerOption {
	return func(p *Planner) { p.newID = fn }
}

// New creates a Planner over the given network index and candidate generator.
func New(net *network.Index, gen *Generator, tun Tunables, opts ...PlannerOption) *Planner {
	p := &Planner{net: net, gen: gen, tun: tun, newID: uuid.NewString}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Plan produces ranked door-to-door itineraries for the request. It never
// returns an error: every failure mode resolves into warnings on the
// response, with an empty route list only when all fallbacks are exhausted.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (resp *PlanResponse) {
	resp = &PlanResponse{
		Alternatives: []Itinerary{},
		Warnings:     []Warning{},
		Metadata: Metadata{
			RequestID: p.newID(),
			Algorithm: algorithmName,
			Version:   plannerVersion,
		},
	}

	// Last line of defense: an unexpected panic anywhere below downgrades to
	// a walking-only attempt instead of taking the request down.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("planner: recovered from panic: %v", r)
			resp.Primary = nil
			resp.Alternatives = []Itinerary{}
			if it, err := p.walkingOnly(ctx, req); err == nil {
				resp.Primary = it
				resp.Warnings = append(resp.Warnings, Warning{
					Type:     WarningPlannerRecovered,
					Message:  "planning was degraded to a walking-only route after an internal error",
					Severity: SeverityWarning,
				})
			} else {
				resp.Warnings = append(resp.Warnings, Warning{
					Type:     WarningPlannerRecovered,
					Message:  "planning failed; check your connectivity and retry",
					Severity: SeverityError,
				})
			}
		}
	}()

	directMeters := geo.DistanceMeters(req.Start, req.End)

	// Short trips don't need transit unless the rider asked to minimize
	// walking.
	if directMeters < p.tun.TrivialDistanceM && !req.Preferences.MinimizeWalking {
		if it, err := p.walkingOnly(ctx, req); err == nil {
			resp.Primary = it
			return resp
		}
		// Walking plan failed; fall through to the full search.
	}

	startStops, endStops := p.discoverStops(req)

	if len(startStops) == 0 || len(endStops) == 0 {
		p.runFallbackLadder(ctx, req, directMeters, resp)
		return resp
	}

	candidates := p.searchCandidates(ctx, req, startStops, endStops)
	if len(candidates) == 0 {
		p.resolveWalkingOnly(ctx, req, resp)
		return resp
	}

	p.selectRoutes(candidates, req.Preferences, resp)
	return resp
}

// discoverStops finds nearby stops around both endpoints, escalating the
// search radius when either side comes up empty. The escalation is applied
// per side; the configured limits themselves are never mutated.
func (p *Planner) discoverStops(req PlanRequest) (start, end []network.StopDistance) {
	base := p.tun.DefaultRadius
	if hasClass(req.Modes, network.ClassTrain) {
		base = p.tun.TrainRadius
	}
	if req.MaxWalkingDistanceM > 0 {
		base.Meters = req.MaxWalkingDistanceM
	}
	if req.MaxWalkingTimeMin > 0 {
		base.WalkMinutes = req.MaxWalkingTimeMin
	}

	start = p.net.NearbyStops(req.Start, base.Meters, base.WalkMinutes, req.Modes)
	end = p.net.NearbyStops(req.End, base.Meters, base.WalkMinutes, req.Modes)

	for _, step := range p.tun.EscalationSteps {
		if len(start) > 0 && len(end) > 0 {
			break
		}
		classes := req.Modes
		if step.AllClasses {
			classes = nil
		}
		if len(start) == 0 {
			start = p.net.NearbyStops(req.Start, step.Meters, step.WalkMinutes, classes)
		}
		if len(end) == 0 {
			end = p.net.NearbyStops(req.End, step.Meters, step.WalkMinutes, classes)
		}
	}
	return start, end
}

// runFallbackLadder resolves a request for which stop discovery failed. The
// strategies run in order; the first one that handles the request wins.
func (p *Planner) runFallbackLadder(ctx context.Context, req PlanRequest, directMeters float64, resp *PlanResponse) {
	strategies := []struct {
		name string
		fn   func(context.Context, PlanRequest, float64, *PlanResponse) bool
	}{
		{"substitute-surface-transit", p.fallbackSubstituteClass},
		{"too-far-to-walk", p.fallbackTooFar},
		{"extended-train-radius", p.fallbackExtendedTrain},
		{"train-unavailable", p.fallbackTrainUnavailable},
		{"walking-only", p.fallbackWalkingOnly},
	}

	for _, s := range strategies {
		if s.fn(ctx, req, directMeters, resp) {
			log.Printf("planner: request %s resolved by fallback %q", resp.Metadata.RequestID, s.name)
			return
		}
	}
}

// fallbackSubstituteClass handles train-only requests with no reachable train
// stops by retrying the discovery over bus and tram.
func (p *Planner) fallbackSubstituteClass(ctx context.Context, req PlanRequest, _ float64, resp *PlanResponse) bool {
	if !trainOnly(req.Modes) {
		return false
	}

	surface := req
	surface.Modes = []string{network.ClassBus, network.ClassTram}
	start, end := p.discoverStops(surface)
	if len(start) == 0 || len(end) == 0 {
		return false
	}

	candidates := p.searchCandidates(ctx, surface, start, end)
	if len(candidates) == 0 {
		return false
	}

	p.selectRoutes(candidates, req.Preferences, resp)
	resp.Warnings = append(resp.Warnings, Warning{
		Type:     WarningClassSubstituted,
		Message:  "no train stops nearby; the route uses bus/tram service instead",
		Severity: SeverityInfo,
	})
	return true
}

// fallbackTooFar rejects non-train requests whose endpoints are too far apart
// to walk when no transit was found.
func (p *Planner) fallbackTooFar(_ context.Context, req PlanRequest, directMeters float64, resp *PlanResponse) bool {
	if hasClass(req.Modes, network.ClassTrain) || directMeters <= p.tun.TooFarToWalkM {
		return false
	}
	resp.Warnings = append(resp.Warnings, Warning{
		Type:     WarningDistanceTooLong,
		Message:  fmt.Sprintf("the %.0f m distance is too long to walk and no transit connection was found", directMeters),
		Severity: SeverityError,
	})
	return true
}

// fallbackExtendedTrain retries train requests with a substantially larger
// access radius; train riders accept a longer walk to the station.
func (p *Planner) fallbackExtendedTrain(ctx context.Context, req PlanRequest, _ float64, resp *PlanResponse) bool {
	if !hasClass(req.Modes, network.ClassTrain) {
		return false
	}

	ext := p.tun.ExtendedTrain
	trains := []string{network.ClassTrain}
	start := p.net.NearbyStops(req.Start, ext.Meters, ext.WalkMinutes, trains)
	end := p.net.NearbyStops(req.End, ext.Meters, ext.WalkMinutes, trains)

	if len(start) > 0 && len(end) > 0 {
		if candidates := p.searchCandidates(ctx, req, start, end); len(candidates) > 0 {
			p.selectRoutes(candidates, req.Preferences, resp)
			resp.Warnings = append(resp.Warnings, Warning{
				Type:     WarningExtendedWalk,
				Message:  "the nearest train station requires an extended walk",
				Severity: SeverityInfo,
			})
			return true
		}
	}

	resp.Warnings = append(resp.Warnings, Warning{
		Type:     WarningNoTrainService,
		Message:  "no reachable train connection was found for this trip",
		Severity: SeverityError,
	})
	return true
}

// fallbackTrainUnavailable is the terminal strategy for train requests that
// slipped past the extended-radius retry.
func (p *Planner) fallbackTrainUnavailable(_ context.Context, req PlanRequest, _ float64, resp *PlanResponse) bool {
	if !hasClass(req.Modes, network.ClassTrain) {
		return false
	}
	resp.Warnings = append(resp.Warnings, Warning{
		Type:     WarningNoTrainService,
		Message:  "no reachable train connection was found for this trip",
		Severity: SeverityError,
	})
	return true
}

// fallbackWalkingOnly is the last rung: walk the whole way.
func (p *Planner) fallbackWalkingOnly(ctx context.Context, req PlanRequest, _ float64, resp *PlanResponse) bool {
	p.resolveWalkingOnly(ctx, req, resp)
	return true
}

// resolveWalkingOnly fills resp with a walking-only plan, or with an
// error-severity warning when even that is impossible.
func (p *Planner) resolveWalkingOnly(ctx context.Context, req PlanRequest, resp *PlanResponse) {
	it, err := p.walkingOnly(ctx, req)
	if err != nil {
		resp.Warnings = append(resp.Warnings, Warning{
			Type:     WarningPlanningFailed,
			Message:  "no route could be planned; check your connectivity and retry",
			Severity: SeverityError,
		})
		return
	}
	resp.Primary = it
}

// walkingOnly builds a single-segment walking itinerary between the request
// endpoints. The walk sanity bounds still apply.
func (p *Planner) walkingOnly(ctx context.Context, req PlanRequest) (*Itinerary, error) {
	seg, err := p.gen.walkSegment(ctx, req.Start, req.End, "Walk to destination", req.Preferences)
	if err != nil {
		return nil, fmt.Errorf("planner: walking-only plan: %w", err)
	}
	it := newItinerary([]Segment{seg}, 0)
	return &it, nil
}

// searchCandidates evaluates the bounded Cartesian product of start stops ×
// end stops × departure offsets, generating a direct and a transfer candidate
// for each combination concurrently. Each unit of work is independent; the
// final ordering is imposed by ranking after the join.
func (p *Planner) searchCandidates(ctx context.Context, req PlanRequest, starts, ends []network.StopDistance) []Itinerary {
	if len(starts) > p.tun.MaxStartStops {
		starts = starts[:p.tun.MaxStartStops]
	}
	if len(ends) > p.tun.MaxEndStops {
		ends = ends[:p.tun.MaxEndStops]
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []Itinerary
	)

	collect := func(it *Itinerary, err error) {
		if err != nil || it == nil {
			// Candidate-level failures stay at candidate level.
			return
		}
		mu.Lock()
		out = append(out, *it)
		mu.Unlock()
	}

	// A panic inside a candidate goroutine would kill the process before the
	// request-level recover can run; contain it here and drop the candidate
	// like any other generation failure.
	guard := func() {
		if r := recover(); r != nil {
			log.Printf("planner: candidate search recovered from panic: %v", r)
		}
	}

	for _, s := range starts {
		for _, e := range ends {
			if s.Stop.ID == e.Stop.ID {
				continue
			}
			for _, offset := range p.tun.DepartureOffsets {
				s, e, offset := s, e, offset
				wg.Add(2)
				go func() {
					defer wg.Done()
					defer guard()
					collect(p.gen.DirectCandidate(ctx, req.Start, req.End, s, e, req.Preferences, offset))
				}()
				go func() {
					defer wg.Done()
					defer guard()
					collect(p.gen.TransferCandidate(ctx, req.Start, req.End, s, e, req.Preferences, offset))
				}()
			}
		}
	}

	wg.Wait()
	return out
}

// selectRoutes ranks candidates by total duration, deduplicates them, and
// fills the response: the score-best itinerary becomes the primary route and
// up to MaxAlternatives more follow in duration order.
func (p *Planner) selectRoutes(candidates []Itinerary, prefs Preferences, resp *PlanResponse) {
	ranked := Dedupe(Rank(candidates), p.tun.DedupeWindowMin)
	if len(ranked) == 0 {
		return
	}

	best := BestOf(ranked, prefs, p.tun.Weights)
	resp.Primary = &ranked[best]

	for i := range ranked {
		if i == best {
			continue
		}
		if len(resp.Alternatives) == p.tun.MaxAlternatives {
			break
		}
		resp.Alternatives = append(resp.Alternatives, ranked[i])
	}
}

func hasClass(modes []string, class string) bool {
	for _, m := range modes {
		if m == class {
			return true
		}
	}
	return false
}

func trainOnly(modes []string) bool {
	if len(modes) == 0 {
		return false
	}
	for _, m := range modes {
		if m != network.ClassTrain {
			return false
		}
	}
	return true
}
