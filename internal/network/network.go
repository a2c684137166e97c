// Package network holds the static transit dataset (stops, lines, active
// disruptions) and the read-only index queries the trip planner runs against.
//
// The dataset is loaded once at process start and shared by all planning
// requests. Nothing in this package mutates it after construction, so the
// index is safe for concurrent use without locking.
package network

import (
	"sort"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
)

// Transport classes served by a stop or line. Walking is a segment mode, not
// a stop class.
const (
	ClassBus   = "bus"
	ClassTram  = "tram"
	ClassTrain = "train"
	ClassMixed = "mixed"
)

// Stop is a public transport stop. Read-only after dataset construction.
type Stop struct {
	ID       int32
	Name     string
	Location geo.Point
	Class    string
	// Lines holds the IDs of every line serving this stop.
	Lines []string
}

// Line is a transit route. For fixed-route lines (trains) Stops holds the
// ordered stop sequence in travel direction.
type Line struct {
	ID    string
	Name  string
	Class string
	Color string
	Stops []int32
}

// Disruption is an active service disruption on a line.
type Disruption struct {
	Severity     string
	DelayMinutes int
	Title        string
}

// Dataset is the raw static network handed to NewIndex.
type Dataset struct {
	Stops       []Stop
	Lines       []Line
	Disruptions map[string][]Disruption
}

// StopDistance pairs a stop with its straight-line distance and estimated
// walking time from a query point.
type StopDistance struct {
	Stop        Stop
	Meters      float64
	WalkMinutes int
}

// Index provides the planner's lookups over the static dataset.
type Index struct {
	stops       []Stop
	stopsByID   map[int32]Stop
	linesByID   map[string]Line
	stopLines   map[int32]map[string]struct{}
	disruptions map[string][]Disruption
}

// NewIndex builds the lookup structures over a dataset.
func NewIndex(ds Dataset) *Index {
	idx := &Index{
		stops:       ds.Stops,
		stopsByID:   make(map[int32]Stop, len(ds.Stops)),
		linesByID:   make(map[string]Line, len(ds.Lines)),
		stopLines:   make(map[int32]map[string]struct{}, len(ds.Stops)),
		disruptions: ds.Disruptions,
	}
	for _, s := range ds.Stops {
		idx.stopsByID[s.ID] = s
		set := make(map[string]struct{}, len(s.Lines))
		for _, l := range s.Lines {
			set[l] = struct{}{}
		}
		idx.stopLines[s.ID] = set
	}
	for _, l := range ds.Lines {
		idx.linesByID[l.ID] = l
	}
	return idx
}

// maxNearbyStops bounds the result size of NearbyStops.
const maxNearbyStops = 5

// NearbyStops returns up to five stops around p, ordered by distance
// ascending. A stop qualifies when both the distance and walking-time limits
// hold and, if allowedClasses is non-empty, its class is allowed or mixed.
func (idx *Index) NearbyStops(p geo.Point, maxMeters float64, maxWalkMinutes int, allowedClasses []string) []StopDistance {
	allowed := make(map[string]struct{}, len(allowedClasses))
	for _, c := range allowedClasses {
		allowed[c] = struct{}{}
	}

	var out []StopDistance
	for _, s := range idx.stops {
		if len(allowed) > 0 {
			if _, ok := allowed[s.Class]; !ok && s.Class != ClassMixed {
				continue
			}
		}
		d := geo.DistanceMeters(p, s.Location)
		if d > maxMeters {
			continue
		}
		walk := geo.WalkingMinutes(d)
		if walk > maxWalkMinutes {
			continue
		}
		out = append(out, StopDistance{Stop: s, Meters: d, WalkMinutes: walk})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Meters < out[j].Meters })
	if len(out) > maxNearbyStops {
		out = out[:maxNearbyStops]
	}
	return out
}

// Stop returns the stop with the given ID, or (Stop{}, false).
func (idx *Index) Stop(id int32) (Stop, bool) {
	s, ok := idx.stopsByID[id]
	return s, ok
}

// Line returns the line with the given ID, or (Line{}, false).
func (idx *Index) Line(id string) (Line, bool) {
	l, ok := idx.linesByID[id]
	return l, ok
}

// CommonLines returns the IDs of lines serving both stops, sorted for
// deterministic downstream selection.
func (idx *Index) CommonLines(a, b int32) []string {
	setA, setB := idx.stopLines[a], idx.stopLines[b]
	if len(setA) == 0 || len(setB) == 0 {
		return nil
	}
	var out []string
	for id := range setA {
		if _, ok := setB[id]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Transfer-stop search bounds. A transfer point closer than the lower bound
// is trivially reachable on foot; beyond the upper bound the transfer walk
// dominates the trip. Tunable heuristics, not hard semantics.
const (
	transferMinMeters = 200.0
	transferMaxMeters = 2000.0
)

// TransferCandidates returns stops usable as a single transfer point between
// a and b: they share at least one line with each, are neither endpoint, and
// sit within the transfer distance band from both. Results are ordered by
// proximity to the a-b midpoint.
func (idx *Index) TransferCandidates(a, b Stop) []Stop {
	mid := geo.Midpoint(a.Location, b.Location)

	type scored struct {
		stop Stop
		dMid float64
	}
	var out []scored
	for _, s := range idx.stops {
		if s.ID == a.ID || s.ID == b.ID {
			continue
		}
		if len(idx.CommonLines(a.ID, s.ID)) == 0 || len(idx.CommonLines(s.ID, b.ID)) == 0 {
			continue
		}
		dA := geo.DistanceMeters(a.Location, s.Location)
		dB := geo.DistanceMeters(b.Location, s.Location)
		if dA < transferMinMeters || dA > transferMaxMeters || dB < transferMinMeters || dB > transferMaxMeters {
			continue
		}
		out = append(out, scored{stop: s, dMid: geo.DistanceMeters(mid, s.Location)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].dMid < out[j].dMid })
	stops := make([]Stop, len(out))
	for i, sc := range out {
		stops[i] = sc.stop
	}
	return stops
}

// TrainPath returns the ordered stop sequence of a fixed-route train line
// from stop a to stop b (inclusive), together with the cumulative track
// distance in meters. The line must cover both stops with a appearing before
// b in its travel direction; otherwise ok is false.
func (idx *Index) TrainPath(a, b int32) (line Line, path []Stop, meters float64, ok bool) {
	// Iterate line IDs in sorted order so the chosen line is deterministic
	// when several cover the same stop pair.
	ids := make([]string, 0, len(idx.linesByID))
	for id := range idx.linesByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		l := idx.linesByID[id]
		if l.Class != ClassTrain {
			continue
		}
		iA, iB := -1, -1
		for i, id := range l.Stops {
			if id == a {
				iA = i
			}
			if id == b {
				iB = i
			}
		}
		if iA < 0 || iB < 0 || iA >= iB {
			continue
		}

		seq := make([]Stop, 0, iB-iA+1)
		total := 0.0
		for i := iA; i <= iB; i++ {
			s, found := idx.stopsByID[l.Stops[i]]
			if !found {
				continue
			}
			if len(seq) > 0 {
				total += geo.DistanceMeters(seq[len(seq)-1].Location, s.Location)
			}
			seq = append(seq, s)
		}
		if len(seq) < 2 {
			continue
		}
		return l, seq, total, true
	}
	return Line{}, nil, 0, false
}

// ActiveDisruptions returns the active disruptions for a line. The slice is
// shared; callers must not mutate it.
func (idx *Index) ActiveDisruptions(lineID string) []Disruption {
	return idx.disruptions[lineID]
}
