package symex

import (
	"sort"
	"strings"
)

// ExplorationResult represents the outcome of an exploration.
type ExplorationResult struct {
	Paths            []*PathResult `json:"paths"`
	TotalPaths       int           `json:"total_paths"`
	Truncated        bool          `json:"truncated"`
	TruncationReason *string       `json:"truncation_reason"`
	Diagnostics      []*Diagnostic `json:"diagnostics"`
	Stats            Stats         `json:"stats"`
}

// PathResult represents a completed path.
type PathResult struct {
	// Human-readable constraints of the path.
	PathCondition []string `json:"path_condition"`

	// Input values satisfying the path condition.
	Witness map[string]interface{} `json:"witness"`

	// Returned value: a primitive if concrete, the expression text if
	// symbolic, or nil if the path returned no value.
	ReturnValue interface{} `json:"return_value"`

	// Returned value under the witness.
	ReturnWitness interface{} `json:"return_witness,omitempty"`

	// Set if a loop exit was forced on this path.
	Truncated bool `json:"truncated,omitempty"`

	// Set if a solver call on this path returned unknown.
	TimedOut bool `json:"timed_out,omitempty"`

	Depth int `json:"depth"`

	choices []int
}

// Diagnostic kinds.
const (
	DiagnosticUnsupportedConstruct = "unsupported_construct"
	DiagnosticUnsupportedType      = "unsupported_type"
	DiagnosticRuntimeError         = "runtime_error"
	DiagnosticAssertionViolation   = "assertion_violation"
	DiagnosticSolverTimeout        = "solver_timeout"
	DiagnosticSolverError          = "solver_error"
	DiagnosticLoopTruncated        = "loop_truncated"
	DiagnosticMarshalError         = "marshal_error"
	DiagnosticNoReturn             = "no_return"
)

// Diagnostic represents a non-fatal event recorded during exploration.
type Diagnostic struct {
	State   int    `json:"state"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Site    string `json:"site,omitempty"`

	// Witness of the state, if one could be computed.
	Witness map[string]interface{} `json:"witness,omitempty"`

	choices []int
	seq     int
}

// Stats represents counters collected during exploration.
type Stats struct {
	States      int `json:"states"`
	Forks       int `json:"forks"`
	Pruned      int `json:"pruned"`
	SolverCalls int `json:"solver_calls"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
}

// resultBuilder collects terminal states & diagnostics into a result.
type resultBuilder struct {
	paths       []*PathResult
	diagnostics []*Diagnostic
	reasons     []string
}

// addReason marks the result as truncated. Duplicate reasons are ignored.
func (b *resultBuilder) addReason(reason string) {
	for _, other := range b.reasons {
		if other == reason {
			return
		}
	}
	b.reasons = append(b.reasons, reason)
}

func (b *resultBuilder) addDiagnostic(state *State, kind, site, msg string) *Diagnostic {
	d := &Diagnostic{
		State:   state.ID(),
		Kind:    kind,
		Message: msg,
		Site:    site,
		choices: append([]int(nil), state.Choices()...),
		seq:     len(b.diagnostics),
	}
	b.diagnostics = append(b.diagnostics, d)
	return d
}

// build returns the result with paths & diagnostics in canonical order.
func (b *resultBuilder) build(stats Stats) *ExplorationResult {
	sort.SliceStable(b.paths, func(i, j int) bool {
		return compareChoices(b.paths[i].choices, b.paths[j].choices) < 0
	})
	sort.SliceStable(b.diagnostics, func(i, j int) bool {
		if cmp := compareChoices(b.diagnostics[i].choices, b.diagnostics[j].choices); cmp != 0 {
			return cmp < 0
		}
		return b.diagnostics[i].seq < b.diagnostics[j].seq
	})

	result := &ExplorationResult{
		Paths:       b.paths,
		TotalPaths:  len(b.paths),
		Truncated:   len(b.reasons) > 0,
		Diagnostics: b.diagnostics,
		Stats:       stats,
	}
	if result.Paths == nil {
		result.Paths = []*PathResult{}
	}
	if result.Diagnostics == nil {
		result.Diagnostics = []*Diagnostic{}
	}
	if result.Truncated {
		reason := strings.Join(b.reasons, "; ")
		result.TruncationReason = &reason
	}
	return result
}

// compareChoices orders branch traces so that then/continue (0) precedes
// else/exit (1) at the first fork where two paths diverge.
func compareChoices(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] < b[i] {
			return -1
		} else if a[i] > b[i] {
			return 1
		}
	}
	if len(a) < len(b) {
		return -1
	} else if len(a) > len(b) {
		return 1
	}
	return 0
}
