package symex

import (
	"fmt"
	"math/rand"
	"time"
)

// Default limits applied by DefaultConfig().
const (
	DefaultMaxPaths            = 100
	DefaultMaxLoopIterations   = 10
	DefaultWallClockBudget     = 30 * time.Second
	DefaultMaxContainerWitness = 16
)

// Search strategies.
const (
	SearchDFS    = "dfs"
	SearchBFS    = "bfs"
	SearchRandom = "random"
	SearchMixed  = "mixed" // alternates depth-first & breadth-first
)

// Config represents the limits of a single exploration. The zero value of
// MaxPaths & WallClockBudgetMS means unlimited.
type Config struct {
	MaxPaths          int      `yaml:"max_paths" json:"max_paths"`
	MaxLoopIterations int      `yaml:"max_loop_iterations" json:"max_loop_iterations"`
	AllowedTypes      []string `yaml:"allowed_types" json:"allowed_types"`
	SolverTimeoutMS   int      `yaml:"solver_timeout_ms" json:"solver_timeout_ms"`
	WallClockBudgetMS int      `yaml:"wall_clock_budget_ms" json:"wall_clock_budget_ms"`

	// Frontier strategy: "dfs" (default), "bfs", "random" or "mixed".
	// Only affects which paths survive truncation.
	Search string `yaml:"search" json:"search"`
	Seed   int64  `yaml:"seed" json:"seed"`

	// Maximum number of list elements reported per witness.
	MaxContainerWitness int `yaml:"max_container_witness" json:"max_container_witness"`
}

// DefaultConfig returns a configuration allowing scalar types only.
func DefaultConfig() Config {
	return Config{
		MaxPaths:            DefaultMaxPaths,
		MaxLoopIterations:   DefaultMaxLoopIterations,
		AllowedTypes:        []string{"int", "bool", "string", "float"},
		SolverTimeoutMS:     int(DefaultSolverTimeout / time.Millisecond),
		WallClockBudgetMS:   int(DefaultWallClockBudget / time.Millisecond),
		Search:              SearchDFS,
		MaxContainerWitness: DefaultMaxContainerWitness,
	}
}

// Validate returns an error if a limit is negative or a type tag or search
// strategy is unknown.
func (c *Config) Validate() error {
	switch {
	case c.MaxPaths < 0:
		return fmt.Errorf("max_paths must not be negative: %d", c.MaxPaths)
	case c.MaxLoopIterations < 0:
		return fmt.Errorf("max_loop_iterations must not be negative: %d", c.MaxLoopIterations)
	case c.SolverTimeoutMS < 0:
		return fmt.Errorf("solver_timeout_ms must not be negative: %d", c.SolverTimeoutMS)
	case c.WallClockBudgetMS < 0:
		return fmt.Errorf("wall_clock_budget_ms must not be negative: %d", c.WallClockBudgetMS)
	case c.MaxContainerWitness < 0:
		return fmt.Errorf("max_container_witness must not be negative: %d", c.MaxContainerWitness)
	}

	if _, err := c.TypeSet(); err != nil {
		return err
	}
	switch c.Search {
	case "", SearchDFS, SearchBFS, SearchRandom, SearchMixed:
	default:
		return fmt.Errorf("unknown search strategy: %q", c.Search)
	}
	return nil
}

// TypeSet returns the set of allowed types. An empty list allows scalar types.
func (c *Config) TypeSet() (TypeSet, error) {
	if len(c.AllowedTypes) == 0 {
		return ScalarTypes, nil
	}

	var set TypeSet
	for _, s := range c.AllowedTypes {
		typ, err := ParseType(s)
		if err != nil {
			return 0, err
		}
		set = set.Add(typ)
	}
	return set, nil
}

// SolverTimeout returns the per-call solver timeout.
func (c *Config) SolverTimeout() time.Duration {
	if c.SolverTimeoutMS <= 0 {
		return DefaultSolverTimeout
	}
	return time.Duration(c.SolverTimeoutMS) * time.Millisecond
}

// WallClockBudget returns the overall exploration budget. Zero means none.
func (c *Config) WallClockBudget() time.Duration {
	return time.Duration(c.WallClockBudgetMS) * time.Millisecond
}

// NewSearcher returns a new frontier for the configured search strategy.
func (c *Config) NewSearcher() (Searcher, error) {
	switch c.Search {
	case "", SearchDFS:
		return NewDFSSearcher(), nil
	case SearchBFS:
		return NewBFSSearcher(), nil
	case SearchRandom:
		return NewRandomSearcher(rand.New(rand.NewSource(c.Seed))), nil
	case SearchMixed:
		return NewMultiSearcher(NewDFSSearcher(), NewBFSSearcher()), nil
	default:
		return nil, fmt.Errorf("unknown search strategy: %q", c.Search)
	}
}

func (c *Config) maxContainerWitness() int {
	if c.MaxContainerWitness <= 0 {
		return DefaultMaxContainerWitness
	}
	return c.MaxContainerWitness
}
