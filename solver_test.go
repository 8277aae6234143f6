package symex_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/symex"
	"github.com/google/go-cmp/cmp"
)

func TestSolverAdapter_Solve(t *testing.T) {
	t.Run("Model", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			if diff := cmp.Diff([]string{"n", "b", "n + 1"}, exprStrings(terms)); diff != "" {
				t.Fatal(diff)
			}
			return symex.Satisfiable, []symex.RawValue{{Type: symex.TypeInt, Text: "4"}, {Type: symex.TypeBool, Text: "true"}, {Type: symex.TypeInt, Text: "5"}}, nil
		}

		n := symex.NewVarExpr("n", symex.TypeInt)
		bv := symex.NewVarExpr("b", symex.TypeBool)
		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		outcome, err := a.Solve(context.Background(),
			[]symex.Expr{symex.NewBinaryExpr(symex.GT, n, symex.NewIntConstantExpr(3))},
			[]symex.Expr{n, bv},
			symex.NewBinaryExpr(symex.ADD, n, symex.NewIntConstantExpr(1)),
		)
		if err != nil {
			t.Fatal(err)
		} else if got, want := outcome.Status, symex.Satisfiable; got != want {
			t.Fatalf("unexpected status: %s", got)
		} else if diff := cmp.Diff(map[string]interface{}{"n": int64(4), "b": true}, outcome.Model); diff != "" {
			t.Fatal(diff)
		} else if diff := cmp.Diff([]interface{}{int64(5)}, outcome.Values); diff != "" {
			t.Fatal(diff)
		} else if got, want := a.Calls(), 1; got != want {
			t.Fatalf("unexpected calls: %d", got)
		}
	})

	t.Run("List", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			if diff := cmp.Diff([]string{"len(a)", "a[0]", "a[1]"}, exprStrings(terms)); diff != "" {
				t.Fatal(diff)
			}
			return symex.Satisfiable, []symex.RawValue{{Text: "1"}, {Text: "9"}, {Text: "0"}}, nil
		}

		m := symex.NewTypeMarshaler(symex.AllTypes)
		m.MaxContainer = 2
		a := symex.NewSolverAdapter(&solver, m)
		outcome, err := a.Solve(context.Background(), nil, []symex.Expr{symex.NewArray("a", symex.TypeList)})
		if err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(map[string]interface{}{"a": []interface{}{int64(9)}}, outcome.Model); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Map", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			if diff := cmp.Diff([]string{`"k"`, `m["k"]`}, exprStrings(terms)); diff != "" {
				t.Fatal(diff)
			}
			return symex.Satisfiable, []symex.RawValue{{Text: "k"}, {Text: "3"}}, nil
		}

		mv := symex.NewArray("m", symex.TypeMap)
		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.AllTypes))
		outcome, err := a.Solve(context.Background(),
			[]symex.Expr{symex.NewBinaryExpr(symex.GT, mv.Select(symex.NewStringConstantExpr("k")), symex.NewIntConstantExpr(2))},
			[]symex.Expr{mv},
		)
		if err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(map[string]interface{}{"m": map[string]interface{}{"k": int64(3)}}, outcome.Model); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Unknown, nil, symex.ErrSolverTimeout
		}

		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		outcome, err := a.Solve(context.Background(), nil, []symex.Expr{symex.NewVarExpr("x", symex.TypeInt)})
		if err != nil {
			t.Fatal(err)
		} else if got, want := outcome.Status, symex.Unknown; got != want {
			t.Fatalf("unexpected status: %s", got)
		} else if got, want := outcome.Reason, "Solver timeout"; got != want {
			t.Fatalf("unexpected reason: %s", got)
		} else if outcome.Model != nil {
			t.Fatalf("unexpected model: %v", outcome.Model)
		}
	})

	t.Run("ErrSolver", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Unknown, nil, errors.New("marker")
		}

		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		if _, err := a.Solve(context.Background(), nil, []symex.Expr{symex.NewVarExpr("x", symex.TypeInt)}); err == nil || err.Error() != "marker" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrValueCount", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Satisfiable, nil, nil
		}

		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		if _, err := a.Solve(context.Background(), nil, []symex.Expr{symex.NewVarExpr("x", symex.TypeInt)}); err == nil || err.Error() != "solver returned 0 values for 1 terms" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("MarshalError", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Satisfiable, []symex.RawValue{{Text: "99999999999999999999"}, {Text: "1"}}, nil
		}

		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		outcome, err := a.Solve(context.Background(), nil, []symex.Expr{symex.NewVarExpr("x", symex.TypeInt), symex.NewVarExpr("y", symex.TypeInt)})
		if err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff(map[string]interface{}{"y": int64(1)}, outcome.Model); diff != "" {
			t.Fatal(diff)
		} else if got, want := len(outcome.Errors), 1; got != want {
			t.Fatalf("unexpected error count: %d", got)
		} else if got, want := outcome.Errors[0].Error(), `cannot marshal int value "99999999999999999999" for "x": out of int64 range`; got != want {
			t.Fatalf("unexpected error: %s", got)
		}
	})

	t.Run("Trivial", func(t *testing.T) {
		var solver mockSolver
		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		if outcome, err := a.Solve(context.Background(), []symex.Expr{symex.NewBoolConstantExpr(true)}, nil); err != nil {
			t.Fatal(err)
		} else if got, want := outcome.Status, symex.Satisfiable; got != want {
			t.Fatalf("unexpected status: %s", got)
		} else if got, want := a.Calls(), 0; got != want {
			t.Fatalf("unexpected calls: %d", got)
		}
	})
}

func TestSolverAdapter_Prove(t *testing.T) {
	var solver mockSolver
	solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
		if diff := cmp.Diff([]string{"x > 0", "x >= 10"}, exprStrings(constraints)); diff != "" {
			t.Fatal(diff)
		}
		return symex.Satisfiable, []symex.RawValue{{Text: "10"}}, nil
	}

	xv := symex.NewVarExpr("x", symex.TypeInt)
	a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
	outcome, err := a.Prove(context.Background(),
		symex.NewBinaryExpr(symex.LT, xv, symex.NewIntConstantExpr(10)),
		[]symex.Expr{symex.NewBinaryExpr(symex.GT, xv, symex.NewIntConstantExpr(0))},
		[]symex.Expr{xv},
	)
	if err != nil {
		t.Fatal(err)
	} else if outcome.Valid {
		t.Fatal("expected invalid")
	} else if diff := cmp.Diff(map[string]interface{}{"x": int64(10)}, outcome.Counterexample); diff != "" {
		t.Fatal(diff)
	}
}

func TestSolverAdapter_Branch(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		var solver mockSolver
		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		if outcome, err := a.Branch(context.Background(), nil, symex.NewBoolConstantExpr(false)); err != nil {
			t.Fatal(err)
		} else if outcome.ThenFeasible() || !outcome.ElseFeasible() {
			t.Fatalf("unexpected outcome: %+v", outcome)
		} else if got, want := a.Calls(), 0; got != want {
			t.Fatalf("unexpected calls: %d", got)
		}
	})

	t.Run("OneSided", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			if constraints[len(constraints)-1].String() == "x <= 0" {
				return symex.Unsatisfiable, nil, nil
			}
			return symex.Satisfiable, nil, nil
		}

		xv := symex.NewVarExpr("x", symex.TypeInt)
		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		outcome, err := a.Branch(context.Background(),
			[]symex.Expr{symex.NewBinaryExpr(symex.GT, xv, symex.NewIntConstantExpr(5))},
			symex.NewBinaryExpr(symex.GT, xv, symex.NewIntConstantExpr(0)),
		)
		if err != nil {
			t.Fatal(err)
		} else if !outcome.ThenFeasible() || outcome.ElseFeasible() {
			t.Fatalf("unexpected outcome: %+v", outcome)
		} else if got, want := a.Calls(), 2; got != want {
			t.Fatalf("unexpected calls: %d", got)
		}
	})

	t.Run("UnknownIsFeasible", func(t *testing.T) {
		var solver mockSolver
		solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
			return symex.Unknown, nil, symex.ErrSolverResourceLimit
		}

		a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
		outcome, err := a.Branch(context.Background(), nil, symex.NewVarExpr("b", symex.TypeBool))
		if err != nil {
			t.Fatal(err)
		} else if !outcome.ThenFeasible() || !outcome.ElseFeasible() {
			t.Fatalf("unexpected outcome: %+v", outcome)
		} else if outcome.Then != symex.Unknown {
			t.Fatalf("unexpected status: %s", outcome.Then)
		}
	})
}

func TestSolverAdapter_Timeout(t *testing.T) {
	var timeouts []time.Duration
	var solver mockSolver
	solver.CheckFunc = func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
		timeouts = append(timeouts, timeout)
		return symex.Satisfiable, nil, nil
	}

	a := symex.NewSolverAdapter(&solver, symex.NewTypeMarshaler(symex.ScalarTypes))
	a.Timeout = 2 * time.Second
	cond := []symex.Expr{symex.NewVarExpr("b", symex.TypeBool)}
	if _, _, err := a.IsSatisfiable(context.Background(), cond); err != nil {
		t.Fatal(err)
	}

	// Deadline in the past caps the timeout to its minimum.
	a.Deadline = time.Now().Add(-time.Second)
	if _, _, err := a.IsSatisfiable(context.Background(), cond); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]time.Duration{2 * time.Second, time.Millisecond}, timeouts); diff != "" {
		t.Fatal(diff)
	}
}

// mockSolver is a Solver that delegates to a function.
type mockSolver struct {
	CheckFunc func(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error)
}

func (s *mockSolver) Check(ctx context.Context, constraints, terms []symex.Expr, timeout time.Duration) (symex.SolveStatus, []symex.RawValue, error) {
	if s.CheckFunc == nil {
		panic("mockSolver: unexpected call to Check")
	}
	return s.CheckFunc(ctx, constraints, terms, timeout)
}
