package planner

import (
	"fmt"
	"sort"
	"strings"
)

// Score converts an itinerary into a comparable cost; lower is better.
// The weighting follows the rider's preferences: duration counts double under
// MinimizeTime, walking distance is weighted up under MinimizeWalking, each
// transfer costs more under MinimizeTransfers. Any transit leg earns a flat
// bonus so a feasible transit trip outranks a long walk, and walking-only
// itineraries past the long-walk threshold pay a distance penalty.
func Score(it *Itinerary, prefs Preferences, w ScoringWeights) float64 {
	durationFactor := 1.0
	if prefs.MinimizeTime {
		durationFactor = w.MinimizeTimeFactor
	}
	score := float64(it.TotalDurationMin) * durationFactor

	walkFactor := w.WalkFactorDefault
	if prefs.MinimizeWalking {
		walkFactor = w.WalkFactorMinimize
	}
	score += it.WalkDistanceM * walkFactor

	transferCost := w.TransferCostDefault
	if prefs.MinimizeTransfers {
		transferCost = w.TransferCostMin
	}
	score += float64(it.Transfers) * transferCost

	if it.HasTransit() {
		score += w.TransitBonus
	} else if it.TotalDistanceM > w.LongWalkThresholdM {
		score += it.TotalDistanceM * w.LongWalkFactor
	}

	return score
}

// Rank orders candidates ascending by total duration. The sort is stable so
// equal-duration candidates keep their generation order, which keeps the
// final selection deterministic.
func Rank(candidates []Itinerary) []Itinerary {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TotalDurationMin < candidates[j].TotalDurationMin
	})
	return candidates
}

// BestOf returns the index of the lowest-scoring itinerary, or -1 for an
// empty slice. Used for single best-of selection between a walking plan and
// a transit plan.
func BestOf(candidates []Itinerary, prefs Preferences, w ScoringWeights) int {
	best := -1
	bestScore := 0.0
	for i := range candidates {
		s := Score(&candidates[i], prefs, w)
		if best == -1 || s < bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// Dedupe drops itineraries that duplicate an earlier one: total durations
// within windowMin minutes of each other and the identical sequence of
// transit-leg endpoint coordinates. Order is preserved; the first occurrence
// wins. Running Dedupe twice yields the same result as running it once.
func Dedupe(itineraries []Itinerary, windowMin int) []Itinerary {
	type kept struct {
		sig string
		dur int
	}

	var seen []kept
	out := make([]Itinerary, 0, len(itineraries))
	for _, it := range itineraries {
		sig := transitSignature(&it)
		dup := false
		for _, k := range seen {
			if k.sig == sig && abs(k.dur-it.TotalDurationMin) < windowMin {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen = append(seen, kept{sig: sig, dur: it.TotalDurationMin})
		out = append(out, it)
	}
	return out
}

// transitSignature serializes the (start, end) coordinate pairs of every
// transit leg, in order. 5 decimal places ≈ 1 m resolution, matching the
// polyline precision.
func transitSignature(it *Itinerary) string {
	var sb strings.Builder
	for _, s := range it.Segments {
		if s.Kind != SegmentTransit {
			continue
		}
		fmt.Fprintf(&sb, "%.5f,%.5f>%.5f,%.5f;", s.From.Lat, s.From.Lon, s.To.Lat, s.To.Lon)
	}
	return sb.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
