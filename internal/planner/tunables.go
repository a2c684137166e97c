package planner

import "time"

// ScoringWeights parameterizes the itinerary cost function. The magic values
// in DefaultTunables are carried over from field tuning; they encode "prefer
// transit, penalize transfers and long walks" rather than any derived model,
// so they live in configuration instead of code.
type ScoringWeights struct {
	MinimizeTimeFactor  float64 `yaml:"minimize_time_factor" validate:"gt=0"`
	WalkFactorMinimize  float64 `yaml:"walk_factor_minimize" validate:"gte=0"`
	WalkFactorDefault   float64 `yaml:"walk_factor_default" validate:"gte=0"`
	TransferCostMin     float64 `yaml:"transfer_cost_minimize" validate:"gte=0"`
	TransferCostDefault float64 `yaml:"transfer_cost_default" validate:"gte=0"`
	TransitBonus        float64 `yaml:"transit_bonus"`
	LongWalkFactor      float64 `yaml:"long_walk_factor" validate:"gte=0"`
	LongWalkThresholdM  float64 `yaml:"long_walk_threshold_m" validate:"gt=0"`
}

// RadiusStep is one rung of the stop-discovery escalation ladder.
type RadiusStep struct {
	Meters      float64 `yaml:"meters" validate:"gt=0"`
	WalkMinutes int     `yaml:"walk_minutes" validate:"gt=0"`
	// AllClasses lifts the transport-class restriction for this step.
	AllClasses bool `yaml:"all_classes"`
}

// Tunables gathers every empirically chosen planner parameter. All of them
// are heuristics, not semantics; deployments may override them via the YAML
// tunables file.
type Tunables struct {
	Weights ScoringWeights `yaml:"weights"`

	// Stop discovery.
	DefaultRadius   RadiusStep   `yaml:"default_radius"`
	TrainRadius     RadiusStep   `yaml:"train_radius"`
	EscalationSteps []RadiusStep `yaml:"escalation_steps" validate:"dive"`
	ExtendedTrain   RadiusStep   `yaml:"extended_train_radius"`

	// Orchestration.
	TrivialDistanceM float64 `yaml:"trivial_distance_m" validate:"gt=0"`
	TooFarToWalkM    float64 `yaml:"too_far_to_walk_m" validate:"gt=0"`
	DepartureOffsets []int   `yaml:"departure_offsets_min" validate:"min=1"`
	MaxStartStops    int     `yaml:"max_start_stops" validate:"gt=0"`
	MaxEndStops      int     `yaml:"max_end_stops" validate:"gt=0"`
	MaxAlternatives  int     `yaml:"max_alternatives" validate:"gte=0"`

	// Candidate generation.
	WalkSanityMaxM      float64       `yaml:"walk_sanity_max_m" validate:"gt=0"`
	WalkSanityMaxMin    int           `yaml:"walk_sanity_max_min" validate:"gt=0"`
	WaitMin             int           `yaml:"wait_min" validate:"gte=0"`
	WaitMax             int           `yaml:"wait_max" validate:"gte=0"`
	JitterMin           int           `yaml:"jitter_min"`
	JitterMax           int           `yaml:"jitter_max"`
	TransferTries       int           `yaml:"transfer_tries" validate:"gt=0"`
	TransferWalkM       float64       `yaml:"transfer_walk_m" validate:"gt=0"`
	TransferWalkMinimum int           `yaml:"transfer_walk_minimum_min" validate:"gt=0"`
	GeometryRetries     int           `yaml:"geometry_retries" validate:"gt=0"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
	TrainSpeedKMH       float64       `yaml:"train_speed_kmh" validate:"gt=0"`

	// DedupeWindowMin is the total-duration delta below which two itineraries
	// with identical transit legs count as duplicates.
	DedupeWindowMin int `yaml:"dedupe_window_min" validate:"gt=0"`
}

// DefaultTunables returns the production parameter set.
func DefaultTunables() Tunables {
	return Tunables{
		Weights: ScoringWeights{
			MinimizeTimeFactor:  2,
			WalkFactorMinimize:  3,
			WalkFactorDefault:   0.5,
			TransferCostMin:     600,
			TransferCostDefault: 300,
			TransitBonus:        -500,
			LongWalkFactor:      0.5,
			LongWalkThresholdM:  1000,
		},

		DefaultRadius: RadiusStep{Meters: 150, WalkMinutes: 5},
		TrainRadius:   RadiusStep{Meters: 1200, WalkMinutes: 15},
		EscalationSteps: []RadiusStep{
			{Meters: 2000, WalkMinutes: 25},
			{Meters: 2500, WalkMinutes: 30, AllClasses: true},
		},
		ExtendedTrain: RadiusStep{Meters: 5000, WalkMinutes: 60},

		TrivialDistanceM: 300,
		TooFarToWalkM:    3000,
		DepartureOffsets: []int{0, 10, 15, 20, 25},
		MaxStartStops:    3,
		MaxEndStops:      3,
		MaxAlternatives:  4,

		WalkSanityMaxM:      5000,
		WalkSanityMaxMin:    60,
		WaitMin:             2,
		WaitMax:             5,
		JitterMin:           -2,
		JitterMax:           2,
		TransferTries:       2,
		TransferWalkM:       100,
		TransferWalkMinimum: 2,
		GeometryRetries:     3,
		RetryBaseDelay:      200 * time.Millisecond,
		TrainSpeedKMH:       80,

		DedupeWindowMin: 5,
	}
}
