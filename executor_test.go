package symex_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/symex"
	"github.com/benbjohnson/symex/ir"
	"github.com/google/go-cmp/cmp"
)

// branchProgram returns x or -1 depending on the sign of x.
const branchProgram = `
name: sign
params: [{name: x, type: int}]
body:
  - kind: if
    line: 2
    cond: "x > 0"
    then: [{kind: return, line: 3, value: 1}]
    else: [{kind: return, line: 5, value: -1}]
`

// sumProgram has four paths over two independent branches.
const sumProgram = `
name: sum
params: [{name: x, type: int}, {name: y, type: int}]
body:
  - {kind: assign, target: r, value: 0}
  - {kind: if, cond: "x > 0", then: [{kind: assign, target: r, op: "+=", value: 1}]}
  - {kind: if, cond: "y > 0", then: [{kind: assign, target: r, op: "+=", value: 2}]}
  - {kind: return, value: r}
`

func TestExplore(t *testing.T) {
	t.Run("Branch", func(t *testing.T) {
		result := MustExplore(t, MustParseProgram(t, branchProgram), NewConstantSolver("1"), symex.DefaultConfig())
		if diff := cmp.Diff([][]string{{"x > 0"}, {"x <= 0"}}, pathConditions(result)); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff([]interface{}{int64(1), int64(-1)}, pathReturns(result)); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff(map[string]interface{}{"x": int64(1)}, result.Paths[0].Witness); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Paths[1].Depth, 1; got != want {
			t.Fatalf("unexpected depth: %d", got)
		} else if result.Truncated || result.TruncationReason != nil {
			t.Fatal("unexpected truncation")
		} else if got, want := len(result.Diagnostics), 0; got != want {
			t.Fatalf("unexpected diagnostic count: %d", got)
		}

		if diff := cmp.Diff(symex.Stats{
			States:      3,
			Forks:       1,
			SolverCalls: 4,
			Completed:   2,
		}, result.Stats); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("OneSided", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			// Only executions with a non-positive x are possible.
			if c := constraints[len(constraints)-1].String(); c == "x > 0" {
				return symex.Unsatisfiable, nil, nil
			}
			return symex.Satisfiable, constantValues(terms, "0"), nil
		}

		result := MustExplore(t, MustParseProgram(t, branchProgram), &solver, symex.DefaultConfig())
		if diff := cmp.Diff([][]string{{"x <= 0"}}, pathConditions(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Paths[0].Depth, 0; got != want {
			t.Fatalf("unexpected depth: %d", got)
		} else if got, want := result.Stats.Forks, 0; got != want {
			t.Fatalf("unexpected forks: %d", got)
		}
	})

	// A condition already implied by the path is not asserted again.
	t.Run("ImpliedCondition", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			m := make(map[string]bool)
			for _, c := range constraints {
				m[c.String()] = true
			}
			if m["x > 0"] && m["x <= 0"] {
				return symex.Unsatisfiable, nil, nil
			}
			return symex.Satisfiable, constantValues(terms, "1"), nil
		}

		prog := MustParseProgram(t, `
name: twice
params: [{name: x, type: int}]
body:
  - kind: if
    cond: "x > 0"
    then: [{kind: if, cond: "x > 0", then: [{kind: return, value: 1}]}]
  - {kind: return, value: 0}
`)
		result := MustExplore(t, prog, &solver, symex.DefaultConfig())
		if diff := cmp.Diff([][]string{{"x > 0"}, {"x <= 0"}}, pathConditions(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Stats.Forks, 1; got != want {
			t.Fatalf("unexpected forks: %d", got)
		}
	})

	t.Run("SymbolicReturn", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: inc
params: [{name: x, type: int}]
body: [{kind: return, value: "x + 1"}]
`)
		result := MustExplore(t, prog, NewConstantSolver("4"), symex.DefaultConfig())
		if got, want := result.Paths[0].ReturnValue, "x + 1"; got != want {
			t.Fatalf("unexpected return: %#v", got)
		} else if got, want := result.Paths[0].ReturnWitness, int64(4); got != want {
			t.Fatalf("unexpected return witness: %#v", got)
		} else if got, want := len(result.Paths[0].PathCondition), 0; got != want {
			t.Fatalf("unexpected path condition: %v", result.Paths[0].PathCondition)
		}
	})

	t.Run("NullReturn", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: noop
params: [{name: x, type: int}]
body: [{kind: assign, target: y, value: "x * 2"}]
`)
		result := MustExplore(t, prog, NewConstantSolver("1"), symex.DefaultConfig())
		if got, want := len(result.Paths), 1; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if result.Paths[0].ReturnValue != nil {
			t.Fatalf("unexpected return: %#v", result.Paths[0].ReturnValue)
		}
	})

	// Paths are reported in the same order regardless of the frontier.
	t.Run("Ordering", func(t *testing.T) {
		for _, search := range []string{symex.SearchDFS, symex.SearchBFS, symex.SearchRandom, symex.SearchMixed} {
			t.Run(search, func(t *testing.T) {
				config := symex.DefaultConfig()
				config.Search, config.Seed = search, 7
				result := MustExplore(t, MustParseProgram(t, sumProgram), NewConstantSolver("1"), config)

				if diff := cmp.Diff([]interface{}{int64(3), int64(1), int64(2), int64(0)}, pathReturns(result)); diff != "" {
					t.Fatal(diff)
				} else if diff := cmp.Diff([][]string{
					{"x > 0", "y > 0"},
					{"x > 0", "y <= 0"},
					{"x <= 0", "y > 0"},
					{"x <= 0", "y <= 0"},
				}, pathConditions(result)); diff != "" {
					t.Fatal(diff)
				}
			})
		}
	})

	t.Run("MaxPaths", func(t *testing.T) {
		config := symex.DefaultConfig()
		config.MaxPaths = 1
		result := MustExplore(t, MustParseProgram(t, sumProgram), NewConstantSolver("1"), config)

		if diff := cmp.Diff([]interface{}{int64(3)}, pathReturns(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.TotalPaths, 1; got != want {
			t.Fatalf("unexpected total: %d", got)
		} else if !result.Truncated {
			t.Fatal("expected truncation")
		} else if got, want := *result.TruncationReason, "max_paths limit reached (1)"; got != want {
			t.Fatalf("unexpected reason: %s", got)
		}
	})

	// A limit equal to the number of paths does not truncate.
	t.Run("MaxPathsExact", func(t *testing.T) {
		config := symex.DefaultConfig()
		config.MaxPaths = 2
		result := MustExplore(t, MustParseProgram(t, branchProgram), NewConstantSolver("1"), config)
		if got, want := len(result.Paths), 2; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if result.Truncated {
			t.Fatal("unexpected truncation")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := symex.Explore(ctx, MustParseProgram(t, branchProgram), &mockSolver{}, symex.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		} else if got, want := len(result.Paths), 0; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if got, want := *result.TruncationReason, "cancelled"; got != want {
			t.Fatalf("unexpected reason: %s", got)
		}
	})

	t.Run("WallClockBudget", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			time.Sleep(5 * time.Millisecond)
			return symex.Satisfiable, nil, nil
		}

		config := symex.DefaultConfig()
		config.WallClockBudgetMS = 1

		// Both children of the first fork are left on the frontier.
		result := MustExplore(t, MustParseProgram(t, branchProgram), &solver, config)
		if got, want := len(result.Paths), 0; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if got, want := *result.TruncationReason, "wall-clock budget exceeded"; got != want {
			t.Fatalf("unexpected reason: %s", got)
		}
	})

	t.Run("SolverTimeout", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Unknown, nil, symex.ErrSolverTimeout
		}

		result := MustExplore(t, MustParseProgram(t, branchProgram), &solver, symex.DefaultConfig())
		if got, want := len(result.Paths), 2; got != want {
			t.Fatalf("unexpected path count: %d", got)
		}
		for _, path := range result.Paths {
			if !path.TimedOut {
				t.Fatal("expected timed out path")
			} else if diff := cmp.Diff(map[string]interface{}{}, path.Witness); diff != "" {
				t.Fatal(diff)
			}
		}

		// One diagnostic per path, recorded at the first unknown result.
		if diff := cmp.Diff([]string{
			"solver_timeout L2",
			"solver_timeout L2",
		}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("SolverError", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Unknown, nil, errors.New("marker")
		}

		result := MustExplore(t, MustParseProgram(t, branchProgram), &solver, symex.DefaultConfig())
		if got, want := len(result.Paths), 0; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if diff := cmp.Diff([]string{"solver_error L2"}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Diagnostics[0].Message, "solver: marker"; got != want {
			t.Fatalf("unexpected message: %s", got)
		} else if got, want := result.Stats.Failed, 1; got != want {
			t.Fatalf("unexpected failed: %d", got)
		}
	})

	t.Run("Assume", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Unsatisfiable, nil, nil
		}

		prog := MustParseProgram(t, `
name: never
params: [{name: x, type: int}]
body:
  - {kind: assume, cond: "x > 0 && x < 0"}
  - {kind: return, value: x}
`)
		result := MustExplore(t, prog, &solver, symex.DefaultConfig())
		if got, want := len(result.Paths), 0; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if got, want := result.Stats.Pruned, 1; got != want {
			t.Fatalf("unexpected pruned: %d", got)
		} else if got, want := len(result.Diagnostics), 0; got != want {
			t.Fatalf("unexpected diagnostic count: %d", got)
		}
	})

	t.Run("AssertionViolation", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: check
params: [{name: x, type: int}]
body:
  - {kind: assert, line: 2, cond: "x > 0", message: "x must be positive"}
  - {kind: return, line: 3, value: x}
`)
		result := MustExplore(t, prog, NewConstantSolver("1"), symex.DefaultConfig())
		if diff := cmp.Diff([]string{"assertion_violation L2"}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Diagnostics[0].Message, "x must be positive"; got != want {
			t.Fatalf("unexpected message: %s", got)
		} else if diff := cmp.Diff(map[string]interface{}{"x": int64(1)}, result.Diagnostics[0].Witness); diff != "" {
			t.Fatal(diff)
		}

		// Execution continues assuming the assertion holds.
		if diff := cmp.Diff([][]string{{"x > 0"}}, pathConditions(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Paths[0].ReturnValue, "x"; got != want {
			t.Fatalf("unexpected return: %#v", got)
		}
	})

	t.Run("UnsupportedConstruct", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: open
params: [{name: x, type: int}]
body:
  - {kind: if, line: 2, cond: "x > 0", then: [{kind: unsupported, line: 3, construct: with, text: "with f:"}]}
  - {kind: return, line: 4, value: x}
`)
		result := MustExplore(t, prog, NewConstantSolver("1"), symex.DefaultConfig())
		if diff := cmp.Diff([][]string{{"x <= 0"}}, pathConditions(result)); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff([]string{"unsupported_construct L3"}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Diagnostics[0].Message, "unsupported construct at line 3: with: with f:"; got != want {
			t.Fatalf("unexpected message: %s", got)
		}
	})

	t.Run("UnsupportedCall", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: call
params: [{name: x, type: int}]
body: [{kind: return, line: 2, value: "abs(x)"}]
`)
		result := MustExplore(t, prog, &mockSolver{}, symex.DefaultConfig())
		if diff := cmp.Diff([]string{"unsupported_construct L2"}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Diagnostics[0].Message, "unsupported construct at line 2: call to abs(x)"; got != want {
			t.Fatalf("unexpected message: %s", got)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: first
params: [{name: a, type: list}]
body: [{kind: return, value: "a[0]"}]
`)
		result := MustExplore(t, prog, &mockSolver{}, symex.DefaultConfig())
		if got, want := len(result.Paths), 0; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if diff := cmp.Diff([]string{"unsupported_type -"}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		} else if msg := result.Diagnostics[0].Message; !strings.HasPrefix(msg, `unsupported type "list" for variable "a"`) {
			t.Fatalf("unexpected message: %s", msg)
		} else if got, want := result.Stats.Failed, 1; got != want {
			t.Fatalf("unexpected failed: %d", got)
		}
	})

	t.Run("RuntimeError", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: div
params: [{name: x, type: int}]
body: [{kind: return, line: 2, value: "x / 0"}]
`)
		result := MustExplore(t, prog, &mockSolver{}, symex.DefaultConfig())
		if diff := cmp.Diff([]string{"runtime_error L2"}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Diagnostics[0].Message, "line 2: division by zero"; got != want {
			t.Fatalf("unexpected message: %s", got)
		}
	})

	t.Run("NoReturn", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: partial
params: [{name: x, type: int}]
body:
  - {kind: if, line: 2, cond: "x > 0", then: [{kind: return, line: 3, value: 1}]}
`)
		result := MustExplore(t, prog, NewConstantSolver("1"), symex.DefaultConfig())
		if diff := cmp.Diff([][]string{{"x > 0"}}, pathConditions(result)); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff([]string{"no_return -"}, diagnosticStrings(result)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("List", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: head
params: [{name: a, type: list}]
body:
  - {kind: if, cond: "len(a) > 0", then: [{kind: return, value: "a[0]"}]}
  - {kind: return, value: -1}
`)
		config := symex.DefaultConfig()
		config.AllowedTypes = []string{"int", "list"}
		config.MaxContainerWitness = 2
		result := MustExplore(t, prog, NewConstantSolver("1"), config)

		if got, want := len(result.Paths), 2; got != want {
			t.Fatalf("unexpected path count: %d", got)
		} else if diff := cmp.Diff(map[string]interface{}{"a": []interface{}{int64(1)}}, result.Paths[0].Witness); diff != "" {
			t.Fatal(diff)
		} else if got, want := result.Paths[0].ReturnValue, "a[0]"; got != want {
			t.Fatalf("unexpected return: %#v", got)
		} else if got, want := result.Paths[0].ReturnWitness, int64(1); got != want {
			t.Fatalf("unexpected return witness: %#v", got)
		} else if got, want := result.Paths[1].ReturnValue, int64(-1); got != want {
			t.Fatalf("unexpected return: %#v", got)
		}
	})

	t.Run("ConcreteContainers", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: build
body:
  - {kind: assign, target: a, value: [1, 2]}
  - {kind: assign, target: a, value: "append(a, 3)"}
  - {kind: assign, target: a, index: 0, op: "+=", value: 10}
  - {kind: assign, target: m, value: {kind: map, entries: [{key: '"k"', value: 1}]}}
  - {kind: assign, target: m, index: '"j"', value: "len(a)"}
  - {kind: return, value: m}
`)
		result := MustExplore(t, prog, &mockSolver{}, symex.DefaultConfig())
		if diff := cmp.Diff(map[string]interface{}{"k": int64(1), "j": int64(3)}, result.Paths[0].ReturnValue); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ErrValidation", func(t *testing.T) {
		prog := MustParseProgram(t, `
name: bad
body: [{kind: return, value: "x"}]
`)
		var verr *symex.ValidationError
		if _, err := symex.Explore(context.Background(), prog, &mockSolver{}, symex.DefaultConfig()); !errors.As(err, &verr) {
			t.Fatalf("unexpected error: %v", err)
		} else if diff := cmp.Diff([]string{"undefined variable: x"}, verr.Errors); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ErrConfig", func(t *testing.T) {
		config := symex.DefaultConfig()
		config.MaxPaths = -1
		if _, err := symex.Explore(context.Background(), MustParseProgram(t, branchProgram), &mockSolver{}, config); err == nil || err.Error() != "invalid program: max_paths must not be negative: -1" {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestExecutor_ExecuteNextState(t *testing.T) {
	e, err := symex.NewExecutor(MustParseProgram(t, sumProgram), NewConstantSolver("1"), symex.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// The root state runs until its first fork.
	state, err := e.ExecuteNextState(context.Background())
	if err != nil {
		t.Fatal(err)
	} else if state != e.RootState() {
		t.Fatal("expected root state")
	} else if !state.Forked() || state.Terminated() {
		t.Fatalf("unexpected state: %s", state.Status())
	}

	var n int
	for {
		if _, err := e.ExecuteNextState(context.Background()); err == symex.ErrNoStateAvailable {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		n++
	}
	if got, want := n, 6; got != want {
		t.Fatalf("unexpected state count: %d", got)
	} else if got, want := e.Result().TotalPaths, 4; got != want {
		t.Fatalf("unexpected total: %d", got)
	}
}

// Changes to the program after the executor is created are not observed.
func TestExecutor_ProgramIsolation(t *testing.T) {
	prog := MustParseProgram(t, `
name: one
body: [{kind: return, value: 1}]
`)
	e, err := symex.NewExecutor(prog, &mockSolver{}, symex.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	prog.Body[0].(*ir.ReturnStmt).Value = &ir.IntLit{Value: "2"}

	result, err := e.Explore(context.Background())
	if err != nil {
		t.Fatal(err)
	} else if got, want := result.Paths[0].ReturnValue, int64(1); got != want {
		t.Fatalf("unexpected return: %#v", got)
	}
}

// MustParseProgram parses a YAML program. Fatal on error.
func MustParseProgram(tb testing.TB, s string) *ir.Program {
	tb.Helper()
	prog, err := ir.Parse([]byte(s))
	if err != nil {
		tb.Fatal(err)
	}
	return prog
}

// MustExplore explores prog with solver. Fatal on error.
func MustExplore(tb testing.TB, prog *ir.Program, solver symex.Solver, config symex.Config) *symex.ExplorationResult {
	tb.Helper()
	result, err := symex.Explore(context.Background(), prog, solver, config)
	if err != nil {
		tb.Fatal(err)
	}
	return result
}

// NewConstantSolver returns a solver that finds every formula satisfiable
// and assigns text to every term.
func NewConstantSolver(text string) *mockSolver {
	return &mockSolver{
		CheckFunc: func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Satisfiable, constantValues(terms, text), nil
		},
	}
}

func constantValues(terms []symex.Expr, text string) []symex.RawValue {
	values := make([]symex.RawValue, len(terms))
	for i, term := range terms {
		values[i] = symex.RawValue{Type: symex.ExprType(term), Text: text}
	}
	return values
}

func pathConditions(result *symex.ExplorationResult) [][]string {
	a := make([][]string, len(result.Paths))
	for i, path := range result.Paths {
		a[i] = path.PathCondition
	}
	return a
}

func pathReturns(result *symex.ExplorationResult) []interface{} {
	a := make([]interface{}, len(result.Paths))
	for i, path := range result.Paths {
		a[i] = path.ReturnValue
	}
	return a
}

// diagnosticStrings returns the kind & site of each diagnostic.
func diagnosticStrings(result *symex.ExplorationResult) []string {
	a := make([]string, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		site := d.Site
		if site == "" {
			site = "-"
		}
		a[i] = d.Kind + " " + site
	}
	return a
}
