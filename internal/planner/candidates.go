package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/network"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/routing"
)

// Candidate rejection reasons. The orchestrator discards rejected candidates
// silently; tests use errors.Is to assert on the reason.
var (
	ErrNoSharedLine  = errors.New("stops share no line")
	ErrNoTrainPath   = errors.New("no train line covers both stops in direction of travel")
	ErrWalkRejected  = errors.New("walking leg outside sanity bounds")
	ErrNoTransfer    = errors.New("no usable transfer stop")
	ErrGeometryFetch = errors.New("transit geometry fetch failed")
)

// Generator builds direct and one-transfer itinerary candidates between a
// start and end stop pair. All failures reject the whole candidate — a
// partial itinerary is never returned.
type Generator struct {
	net    *network.Index
	router routing.Router
	rng    Rand
	tun    Tunables
	now    func() time.Time
}

// NewGenerator creates a candidate generator. router is expected to be a
// *routing.CachedRouter in production so repeated stop-pair lookups within a
// search hit the cache.
func NewGenerator(net *network.Index, router routing.Router, rng Rand, tun Tunables) *Generator {
	return &Generator{net: net, router: router, rng: rng, tun: tun, now: time.Now}
}

// DirectCandidate builds a walk → single transit leg → walk itinerary, or
// reports why none exists. departureOffsetMin simulates a later departure so
// the search can produce alternative-timed candidates.
func (g *Generator) DirectCandidate(
	ctx context.Context,
	from, to geo.Point,
	start, end network.StopDistance,
	prefs Preferences,
	departureOffsetMin int,
) (*Itinerary, error) {
	walkIn, err := g.walkSegment(ctx, from, start.Stop.Location, "Walk to "+start.Stop.Name, prefs)
	if err != nil {
		return nil, fmt.Errorf("direct: access walk: %w", err)
	}

	waitMin := g.rng.IntBetween(g.tun.WaitMin, g.tun.WaitMax)
	departure := g.now().
		Add(time.Duration(departureOffsetMin) * time.Minute).
		Add(time.Duration(waitMin) * time.Minute).
		Add(time.Duration(walkIn.DurationMin) * time.Minute)

	transit, err := g.transitSegment(ctx, start.Stop, end.Stop, prefs, departure)
	if err != nil {
		return nil, fmt.Errorf("direct: transit leg: %w", err)
	}

	walkOut, err := g.walkSegment(ctx, end.Stop.Location, to, "Walk from "+end.Stop.Name, prefs)
	if err != nil {
		return nil, fmt.Errorf("direct: egress walk: %w", err)
	}

	it := newItinerary([]Segment{walkIn, transit, walkOut}, waitMin+departureOffsetMin)
	return &it, nil
}

// TransferCandidate builds a walk → transit → transfer walk → transit → walk
// itinerary through one intermediate stop. At most the closest TransferTries
// transfer stops are attempted.
func (g *Generator) TransferCandidate(
	ctx context.Context,
	from, to geo.Point,
	start, end network.StopDistance,
	prefs Preferences,
	departureOffsetMin int,
) (*Itinerary, error) {
	candidates := g.net.TransferCandidates(start.Stop, end.Stop)
	if len(candidates) == 0 {
		return nil, ErrNoTransfer
	}
	if len(candidates) > g.tun.TransferTries {
		candidates = candidates[:g.tun.TransferTries]
	}

	walkIn, err := g.walkSegment(ctx, from, start.Stop.Location, "Walk to "+start.Stop.Name, prefs)
	if err != nil {
		return nil, fmt.Errorf("transfer: access walk: %w", err)
	}

	walkOut, err := g.walkSegment(ctx, end.Stop.Location, to, "Walk from "+end.Stop.Name, prefs)
	if err != nil {
		return nil, fmt.Errorf("transfer: egress walk: %w", err)
	}

	waitMin := g.rng.IntBetween(g.tun.WaitMin, g.tun.WaitMax)

	var lastErr error
	for _, via := range candidates {
		departure := g.now().
			Add(time.Duration(departureOffsetMin) * time.Minute).
			Add(time.Duration(waitMin) * time.Minute).
			Add(time.Duration(walkIn.DurationMin) * time.Minute)

		leg1, err := g.transitSegment(ctx, start.Stop, via, prefs, departure)
		if err != nil {
			lastErr = fmt.Errorf("transfer: first leg via %q: %w", via.Name, err)
			continue
		}

		change := g.transferWalk(via)

		leg2Departure := leg1.Arrival.Add(time.Duration(change.DurationMin) * time.Minute)
		leg2, err := g.transitSegment(ctx, via, end.Stop, prefs, leg2Departure)
		if err != nil {
			lastErr = fmt.Errorf("transfer: second leg via %q: %w", via.Name, err)
			continue
		}

		it := newItinerary([]Segment{walkIn, leg1, change, leg2, walkOut}, waitMin+departureOffsetMin)
		return &it, nil
	}

	if lastErr == nil {
		lastErr = ErrNoTransfer
	}
	return nil, lastErr
}

// walkSegment builds a walking segment through the path service. Results
// outside the sanity bounds reject the segment — a straight-line guess is
// never substituted for an unreasonable walk.
func (g *Generator) walkSegment(ctx context.Context, from, to geo.Point, instruction string, prefs Preferences) (Segment, error) {
	resp, err := g.router.Route(ctx, routing.RoutingRequest{
		OriginLat:      from.Lat,
		OriginLon:      from.Lon,
		DestinationLat: to.Lat,
		DestinationLon: to.Lon,
		Profile:        routing.ProfileWalking,
	})
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %v", ErrWalkRejected, err)
	}

	durationMin := int(math.Ceil(float64(resp.DurationS) / 60))
	if float64(resp.DistanceM) > g.tun.WalkSanityMaxM || durationMin > g.tun.WalkSanityMaxMin {
		return Segment{}, fmt.Errorf("%w: %dm / %dmin", ErrWalkRejected, resp.DistanceM, durationMin)
	}

	return Segment{
		Kind:        SegmentWalking,
		From:        from,
		To:          to,
		DistanceM:   float64(resp.DistanceM),
		DurationMin: durationMin,
		Polyline:    resp.Polyline,
		Instruction: instruction,
		Accessible:  prefs.AvoidStairs,
	}, nil
}

// transferWalk builds the short fixed-cost walk between the two platforms of
// a transfer stop. The nominal distance stands in for an unknown platform
// layout; the duration never drops below the configured minimum.
func (g *Generator) transferWalk(via network.Stop) Segment {
	dur := geo.WalkingMinutes(g.tun.TransferWalkM)
	if dur < g.tun.TransferWalkMinimum {
		dur = g.tun.TransferWalkMinimum
	}
	return Segment{
		Kind:        SegmentWalking,
		From:        via.Location,
		To:          via.Location,
		DistanceM:   g.tun.TransferWalkM,
		DurationMin: dur,
		Instruction: "Change at " + via.Name,
		Accessible:  true,
	}
}

// transitSegment builds the transit leg between two stops. When both stops
// are train stops it follows the fixed line path; otherwise it estimates
// from straight-line distance and the class's assumed speed.
func (g *Generator) transitSegment(ctx context.Context, a, b network.Stop, prefs Preferences, departure time.Time) (Segment, error) {
	if a.Class == network.ClassTrain && b.Class == network.ClassTrain {
		return g.trainSegment(ctx, a, b, departure)
	}

	shared := g.net.CommonLines(a.ID, b.ID)
	if len(shared) == 0 {
		return Segment{}, ErrNoSharedLine
	}

	lineID := pickLine(shared, prefs.PreferExpress)
	line, _ := g.net.Line(lineID)
	class := line.Class
	if class == "" || class == network.ClassMixed {
		class = a.Class
	}

	distance := geo.DistanceMeters(a.Location, b.Location)
	// ±2 minute jitter emulates schedule variance around the estimate.
	durationMin := geo.TransitMinutes(distance, class) + g.rng.IntBetween(g.tun.JitterMin, g.tun.JitterMax)
	if durationMin < 1 {
		durationMin = 1
	}

	delay, note := g.disruptionDelay(lineID)
	durationMin += delay

	polyline, err := g.fetchTransitGeometry(ctx, a.Location, b.Location)
	if err != nil {
		return Segment{}, err
	}

	instruction := fmt.Sprintf("Take line %s towards %s", lineID, b.Name)
	if note != "" {
		instruction += " (" + note + ")"
	}

	return Segment{
		Kind:         SegmentTransit,
		From:         a.Location,
		To:           b.Location,
		FromStopID:   a.ID,
		FromStopName: a.Name,
		ToStopID:     b.ID,
		ToStopName:   b.Name,
		LineID:       lineID,
		Class:        class,
		DistanceM:    distance,
		DurationMin:  durationMin,
		Departure:    departure,
		Arrival:      departure.Add(time.Duration(durationMin) * time.Minute),
		Polyline:     polyline,
		Instruction:  instruction,
	}, nil
}

// trainSegment builds a fixed-route train leg. Duration derives from the
// cumulative inter-stop track distance at the assumed train speed, plus any
// active-disruption delay. Intermediate stops are embedded for display.
func (g *Generator) trainSegment(ctx context.Context, a, b network.Stop, departure time.Time) (Segment, error) {
	line, path, meters, ok := g.net.TrainPath(a.ID, b.ID)
	if !ok {
		return Segment{}, ErrNoTrainPath
	}

	speedMPS := g.tun.TrainSpeedKMH / 3.6
	durationMin := int(math.Ceil(meters / speedMPS / 60))
	if durationMin < 1 {
		durationMin = 1
	}

	delay, note := g.disruptionDelay(line.ID)
	durationMin += delay

	polyline, err := g.fetchTransitGeometry(ctx, a.Location, b.Location)
	if err != nil {
		return Segment{}, err
	}

	// Embed the intermediate calls (exclusive of both endpoints).
	var via []StopRef
	for _, s := range path[1 : len(path)-1] {
		via = append(via, StopRef{ID: s.ID, Name: s.Name, Location: s.Location})
	}

	instruction := fmt.Sprintf("Take train %s towards %s", line.ID, b.Name)
	if note != "" {
		instruction += " (" + note + ")"
	}

	return Segment{
		Kind:              SegmentTransit,
		From:              a.Location,
		To:                b.Location,
		FromStopID:        a.ID,
		FromStopName:      a.Name,
		ToStopID:          b.ID,
		ToStopName:        b.Name,
		LineID:            line.ID,
		Class:             network.ClassTrain,
		DistanceM:         meters,
		DurationMin:       durationMin,
		Departure:         departure,
		Arrival:           departure.Add(time.Duration(durationMin) * time.Minute),
		Polyline:          polyline,
		Instruction:       instruction,
		IntermediateStops: via,
	}, nil
}

// fetchTransitGeometry fetches the vehicle path through the driving profile,
// retrying with linear backoff. Exhaustion is permanent for this candidate:
// the caller must reject it rather than draw a straight line.
func (g *Generator) fetchTransitGeometry(ctx context.Context, from, to geo.Point) (string, error) {
	req := routing.RoutingRequest{
		OriginLat:      from.Lat,
		OriginLon:      from.Lon,
		DestinationLat: to.Lat,
		DestinationLon: to.Lon,
		Profile:        routing.ProfileDriving,
	}

	var lastErr error
	for attempt := 1; attempt <= g.tun.GeometryRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrGeometryFetch, err)
		}

		resp, err := g.router.Route(ctx, req)
		if err == nil {
			return resp.Polyline, nil
		}
		lastErr = err

		if attempt == g.tun.GeometryRetries {
			break
		}

		// Linear backoff: 1x, 2x, 3x the base delay.
		timer := time.NewTimer(time.Duration(attempt) * g.tun.RetryBaseDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %v", ErrGeometryFetch, ctx.Err())
		case <-timer.C:
		}
	}

	return "", fmt.Errorf("%w: %v", ErrGeometryFetch, lastErr)
}

// disruptionDelay sums the delay minutes of the active disruptions on a line
// and returns a short annotation for the segment instruction.
func (g *Generator) disruptionDelay(lineID string) (int, string) {
	disruptions := g.net.ActiveDisruptions(lineID)
	if len(disruptions) == 0 {
		return 0, ""
	}
	total := 0
	titles := make([]string, 0, len(disruptions))
	for _, d := range disruptions {
		total += d.DelayMinutes
		if d.Title != "" {
			titles = append(titles, d.Title)
		}
	}
	return total, strings.Join(titles, "; ")
}

// pickLine deterministically selects the line to board from a non-empty,
// sorted set of shared line IDs. With preferExpress the highest-numbered
// line wins — express services carry the high numbers on this network —
// otherwise the lowest numeric ID wins. Non-numeric IDs lose numeric
// comparisons but keep lexicographic order among themselves.
func pickLine(lineIDs []string, preferExpress bool) string {
	best := lineIDs[0]
	bestNum, bestIsNum := lineNumber(best)

	for _, id := range lineIDs[1:] {
		num, isNum := lineNumber(id)
		switch {
		case isNum && !bestIsNum:
			best, bestNum, bestIsNum = id, num, true
		case isNum && bestIsNum && preferExpress && num > bestNum:
			best, bestNum = id, num
		case isNum && bestIsNum && !preferExpress && num < bestNum:
			best, bestNum = id, num
		}
	}
	return best
}

// lineNumber extracts the numeric value of a line ID like "8" or "N8".
func lineNumber(id string) (int, bool) {
	trimmed := strings.TrimLeftFunc(id, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	return n, true
}
