package opt

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// First solution strategies.
const (
	StrategyAutomatic                 = "AUTOMATIC"
	StrategyPathCheapestArc           = "PATH_CHEAPEST_ARC"
	StrategyParallelCheapestInsertion = "PARALLEL_CHEAPEST_INSERTION"
	StrategyLocalCheapestInsertion    = "LOCAL_CHEAPEST_INSERTION"
)

// Solver names select the acceptance rule of the improvement search.
const (
	SolverALNS          = "ALNS"
	SolverGreedyDescent = "GREEDY_DESCENT"
)

// TimeConfig configures the time dimension.
type TimeConfig struct {
	// WaitingTimeAllowedMin bounds the slack a vehicle may spend waiting
	// at a node for its time window to open.
	WaitingTimeAllowedMin int `json:"waiting_time_allowed_min" yaml:"waiting_time_allowed_min"`
	// MaxTotalRouteTimeMin bounds the duration of each trip; 0 means unbounded.
	MaxTotalRouteTimeMin int  `json:"max_total_route_time_min" yaml:"max_total_route_time_min"`
	CountTimeFromZero    bool `json:"count_time_from_zero" yaml:"count_time_from_zero"`
}

// PriorityConfig configures the priority dimension.
type PriorityConfig struct {
	CountPriorityFromZero   bool `json:"count_priority_from_zero" yaml:"count_priority_from_zero"`
	PriorityCostCoefficient int  `json:"priority_cost_coefficient" yaml:"priority_cost_coefficient"`
}

// MatchConfig declares the constraints, objective and search budget of one
// match. It is loaded before a solve and never mutated by it.
type MatchConfig struct {
	ZeroTime              time.Time      `json:"zero_time" yaml:"zero_time"`
	FirstSolutionStrategy string         `json:"first_solution_strategy" yaml:"first_solution_strategy"`
	SolverName            string         `json:"solver_name" yaml:"solver_name"`
	SolverTimeoutMs       int            `json:"solver_timeout_ms" yaml:"solver_timeout_ms"`
	CapacityCountFromZero bool           `json:"capacity_count_from_zero" yaml:"capacity_count_from_zero"`
	Time                  TimeConfig     `json:"time" yaml:"time"`
	Priority              PriorityConfig `json:"priority" yaml:"priority"`
	DroppedPenalty        int            `json:"dropped_penalty" yaml:"dropped_penalty"`
	ReloadPerVehicle      int            `json:"reload_per_vehicle" yaml:"reload_per_vehicle"`

	// Search knobs.
	MaxIterations               int     `json:"max_iterations" yaml:"max_iterations"`
	IterationsBetweenMonitoring int     `json:"iterations_between_monitoring" yaml:"iterations_between_monitoring"`
	Seed                        int64   `json:"seed" yaml:"seed"`
	InitialTemp                 float64 `json:"initial_temp" yaml:"initial_temp"`
	Cooling                     float64 `json:"cooling" yaml:"cooling"`
}

// DefaultMatchConfig returns the configuration used when nothing is loaded.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		FirstSolutionStrategy: StrategyAutomatic,
		SolverName:            SolverALNS,
		SolverTimeoutMs:       1000,
		CapacityCountFromZero: true,
		Time: TimeConfig{
			WaitingTimeAllowedMin: 30,
			MaxTotalRouteTimeMin:  0,
			CountTimeFromZero:     true,
		},
		Priority: PriorityConfig{
			CountPriorityFromZero:   true,
			PriorityCostCoefficient: 1,
		},
		DroppedPenalty:              10000,
		ReloadPerVehicle:            0,
		MaxIterations:               500,
		IterationsBetweenMonitoring: 10,
		Seed:                        1,
		InitialTemp:                 10,
		Cooling:                     0.995,
	}
}

// SetDefaults fills the zero values of optional fields.
func (c *MatchConfig) SetDefaults() {
	if c.FirstSolutionStrategy == "" {
		c.FirstSolutionStrategy = StrategyAutomatic
	}
	if c.SolverName == "" {
		c.SolverName = SolverALNS
	}
	c.FirstSolutionStrategy = strings.ToUpper(c.FirstSolutionStrategy)
	c.SolverName = strings.ToUpper(c.SolverName)
	if c.SolverTimeoutMs == 0 && c.MaxIterations == 0 {
		c.SolverTimeoutMs = 1000
	}
	if c.IterationsBetweenMonitoring == 0 {
		c.IterationsBetweenMonitoring = 1
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.InitialTemp == 0 {
		c.InitialTemp = 10
	}
	if c.Cooling == 0 {
		c.Cooling = 0.995
	}
}

// Validate rejects values the model cannot be built from.
func (c MatchConfig) Validate() error {
	switch c.FirstSolutionStrategy {
	case StrategyAutomatic, StrategyPathCheapestArc, StrategyParallelCheapestInsertion, StrategyLocalCheapestInsertion:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.FirstSolutionStrategy)
	}
	switch c.SolverName {
	case SolverALNS, SolverGreedyDescent:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSolver, c.SolverName)
	}
	if c.ReloadPerVehicle < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeReload, c.ReloadPerVehicle)
	}
	checks := []struct {
		name string
		ok   bool
	}{
		{"solver_timeout_ms must be >= 0", c.SolverTimeoutMs >= 0},
		{"dropped_penalty must be >= 0", c.DroppedPenalty >= 0},
		{"time.waiting_time_allowed_min must be >= 0", c.Time.WaitingTimeAllowedMin >= 0},
		{"time.max_total_route_time_min must be >= 0", c.Time.MaxTotalRouteTimeMin >= 0},
		{"max_iterations must be >= 0", c.MaxIterations >= 0},
		{"iterations_between_monitoring must be >= 0", c.IterationsBetweenMonitoring >= 0},
		{"initial_temp must be >= 0", c.InitialTemp >= 0},
		{"cooling must be in (0,1)", c.Cooling == 0 || (c.Cooling > 0 && c.Cooling < 1)},
		{"one of solver_timeout_ms or max_iterations must be set", c.SolverTimeoutMs > 0 || c.MaxIterations > 0},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.name)
		}
	}
	return nil
}

// SolverTimeout returns the wall-clock budget of the search.
func (c MatchConfig) SolverTimeout() time.Duration {
	return time.Duration(c.SolverTimeoutMs) * time.Millisecond
}

// LoadMatchConfig reads a yaml or json file on top of DefaultMatchConfig.
// DM_MATCH__ prefixed environment variables override file values, with "__"
// separating nested keys (DM_MATCH__TIME__MAX_TOTAL_ROUTE_TIME_MIN).
func LoadMatchConfig(path string) (MatchConfig, error) {
	cfg := DefaultMatchConfig()
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return cfg, fmt.Errorf("load match config: unsupported format %q", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return cfg, fmt.Errorf("load match config: %w", err)
		}
	}
	if err := k.Load(env.Provider("DM_MATCH__", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dm_match__")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("load match config: %w", err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return cfg, fmt.Errorf("load match config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
