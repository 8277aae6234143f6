package symex

import (
	"context"
	"fmt"
	"time"
)

// DefaultSolverTimeout is the per-call timeout used when none is configured.
const DefaultSolverTimeout = 5 * time.Second

// SolveStatus represents the result of a satisfiability check.
type SolveStatus int

const (
	Unsatisfiable SolveStatus = iota
	Satisfiable
	Unknown
)

// String returns the SMT-LIB name of the status.
func (s SolveStatus) String() string {
	switch s {
	case Unsatisfiable:
		return "unsat"
	case Satisfiable:
		return "sat"
	default:
		return "unknown"
	}
}

// RawValue represents a value from a solver model as text.
//
// Ints are decimal, floats are decimal or "p/q" rationals, bools are "true"
// or "false" and strings are the unquoted contents.
type RawValue struct {
	Type Type
	Text string
}

// Solver represents a logical constraint solver.
type Solver interface {
	// Check returns the satisfiability of the set of constraints. If the
	// formula is satisfiable, a value is returned for each scalar term.
	//
	// A solver that can neither prove nor refute the formula within timeout
	// returns Unknown with one of the ErrSolver errors.
	Check(ctx context.Context, constraints []Expr, terms []Expr, timeout time.Duration) (SolveStatus, []RawValue, error)
}

// SolverAdapter wraps a Solver so that only host primitives are returned.
// Every call is bounded by Timeout and, if set, by Deadline.
type SolverAdapter struct {
	Solver    Solver
	Marshaler *TypeMarshaler

	// Per-call timeout. Defaults to DefaultSolverTimeout if zero or negative.
	Timeout time.Duration

	// Overall deadline of the exploration. Caps each call's timeout.
	Deadline time.Time

	calls int
}

// NewSolverAdapter returns a new instance of SolverAdapter.
func NewSolverAdapter(solver Solver, marshaler *TypeMarshaler) *SolverAdapter {
	return &SolverAdapter{
		Solver:    solver,
		Marshaler: marshaler,
		Timeout:   DefaultSolverTimeout,
	}
}

// Calls returns the number of calls made to the underlying solver.
func (a *SolverAdapter) Calls() int { return a.calls }

// timeout returns the timeout for the next call.
func (a *SolverAdapter) timeout() time.Duration {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultSolverTimeout
	}
	if !a.Deadline.IsZero() {
		if remaining := time.Until(a.Deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return timeout
}

// check calls the underlying solver. Solver errors meaning "unknown" are
// returned as an Unknown status with a nil error.
func (a *SolverAdapter) check(ctx context.Context, constraints, terms []Expr) (SolveStatus, []RawValue, string, error) {
	// Avoid the solver for constant formulas that need no model.
	if len(terms) == 0 {
		trivial := true
		for _, c := range constraints {
			if IsConstantFalse(c) {
				return Unsatisfiable, nil, "", nil
			} else if !IsConstantTrue(c) {
				trivial = false
			}
		}
		if trivial {
			return Satisfiable, nil, "", nil
		}
	}

	a.calls++
	status, values, err := a.Solver.Check(ctx, constraints, terms, a.timeout())
	if IsSolverUnknown(err) {
		return Unknown, nil, err.Error(), nil
	} else if err != nil {
		return Unknown, nil, "", err
	} else if status == Satisfiable && len(values) != len(terms) {
		return Unknown, nil, "", fmt.Errorf("solver returned %d values for %d terms", len(values), len(terms))
	}
	return status, values, "", nil
}

// SolveOutcome represents the result of Solve. Model & Values are only set
// if Status is Satisfiable.
type SolveOutcome struct {
	Status SolveStatus

	// Witness values of each input by name.
	Model map[string]interface{}

	// Values of each additional term, in order. Nil where marshaling failed.
	Values []interface{}

	// Per-entry marshaling errors. Failed entries are left out of Model.
	Errors []error

	// Reason for an Unknown status.
	Reason string
}

// Solve checks the constraints and returns one witness model over inputs.
// The terms are evaluated under the same model.
func (a *SolverAdapter) Solve(ctx context.Context, constraints, inputs []Expr, terms ...Expr) (*SolveOutcome, error) {
	var plans []termPlan
	var exprs []Expr
	for _, input := range inputs {
		plan := a.plan(input, constraints, terms)
		plans, exprs = append(plans, plan), append(exprs, plan.exprs...)
	}
	for _, term := range terms {
		plan := a.plan(term, constraints, terms)
		plans, exprs = append(plans, plan), append(exprs, plan.exprs...)
	}

	status, values, reason, err := a.check(ctx, constraints, exprs)
	if err != nil {
		return nil, err
	}
	outcome := &SolveOutcome{Status: status, Reason: reason}
	if status != Satisfiable {
		return outcome, nil
	}

	outcome.Model = make(map[string]interface{}, len(inputs))
	for i, plan := range plans {
		raw := values[:len(plan.exprs)]
		values = values[len(plan.exprs):]

		// Inputs are gated by the allowed types, returned terms are not.
		var v interface{}
		var err error
		if i < len(inputs) {
			v, err = a.marshalInput(plan, raw)
		} else {
			v, err = plan.marshal(raw, a.maxContainer())
		}

		if err != nil {
			if err, ok := err.(*MarshalError); ok && err.Name == "" {
				err.Name = plan.name
			}
			outcome.Errors = append(outcome.Errors, err)
		}
		if i < len(inputs) {
			if err == nil {
				outcome.Model[plan.name] = v
			}
		} else {
			outcome.Values = append(outcome.Values, v)
		}
	}
	return outcome, nil
}

func (a *SolverAdapter) marshalInput(plan termPlan, raw []RawValue) (interface{}, error) {
	switch plan.typ {
	case TypeList:
		return a.Marshaler.MarshalList(raw[0], raw[1:])
	case TypeMap:
		return a.Marshaler.MarshalMap(splitEntries(raw))
	default:
		return a.Marshaler.Marshal(plan.typ, raw[0])
	}
}

func (a *SolverAdapter) maxContainer() int {
	if a.Marshaler == nil || a.Marshaler.MaxContainer <= 0 {
		return DefaultMaxContainerWitness
	}
	return a.Marshaler.MaxContainer
}

// ProofOutcome represents the result of Prove.
type ProofOutcome struct {
	// True if the assertion holds under every model of the assumptions.
	Valid bool

	// Unsatisfiable if valid, Satisfiable if a counterexample exists.
	Status SolveStatus

	// Inputs falsifying the assertion. Only set if Status is Satisfiable.
	Counterexample map[string]interface{}

	Reason string
}

// Prove checks whether assertion holds under all models of assumptions.
func (a *SolverAdapter) Prove(ctx context.Context, assertion Expr, assumptions, inputs []Expr) (*ProofOutcome, error) {
	outcome, err := a.Solve(ctx, AddConstraint(assumptions, NewNotExpr(assertion)), inputs)
	if err != nil {
		return nil, err
	}
	return &ProofOutcome{
		Valid:          outcome.Status == Unsatisfiable,
		Status:         outcome.Status,
		Counterexample: outcome.Model,
		Reason:         outcome.Reason,
	}, nil
}

// IsSatisfiable returns true if the constraints may be satisfied. An Unknown
// status is reported as satisfiable.
func (a *SolverAdapter) IsSatisfiable(ctx context.Context, constraints []Expr) (bool, SolveStatus, error) {
	status, _, _, err := a.check(ctx, constraints, nil)
	if err != nil {
		return false, status, err
	}
	return status != Unsatisfiable, status, nil
}

// termPlan describes the scalar terms submitted to the solver to rebuild
// the value of one expression.
type termPlan struct {
	name  string
	typ   Type
	exprs []Expr
}

// plan returns the scalar terms for expr. Lists are read through their length
// and leading elements. Maps are read through the keys referenced by the
// constraints & terms, plus any keys stored on the map itself.
func (a *SolverAdapter) plan(expr Expr, constraints, terms []Expr) termPlan {
	plan := termPlan{name: inputName(expr), typ: ExprType(expr)}

	arr, ok := expr.(*Array)
	if !ok {
		plan.exprs = []Expr{expr}
		return plan
	}

	switch arr.Type {
	case TypeList:
		plan.exprs = append(plan.exprs, arr.Len)
		for i := 0; i < a.maxContainer(); i++ {
			plan.exprs = append(plan.exprs, arr.Select(NewIntConstantExpr(int64(i))))
		}
	case TypeMap:
		var keys []Expr
		for upd := arr.Updates; upd != nil; upd = upd.Next {
			keys = appendUniqueExpr(keys, upd.Index)
		}
		if arr.Name != "" {
			for _, sel := range FindSelects(arr.Name, append(append([]Expr(nil), constraints...), terms...)...) {
				keys = appendUniqueExpr(keys, sel.Index)
			}
		}
		for _, key := range keys {
			plan.exprs = append(plan.exprs, key, arr.Select(key))
		}
	}
	return plan
}

// marshal converts the raw values of the plan without type gating.
func (plan termPlan) marshal(raw []RawValue, max int) (interface{}, error) {
	switch plan.typ {
	case TypeList:
		return marshalList(raw[0], raw[1:], max)
	case TypeMap:
		return marshalMap(splitEntries(raw))
	default:
		return marshalScalar(plan.typ, raw[0])
	}
}

// splitEntries splits alternating key & value pairs.
func splitEntries(raw []RawValue) (keys, values []RawValue) {
	for i := 0; i+1 < len(raw); i += 2 {
		keys, values = append(keys, raw[i]), append(values, raw[i+1])
	}
	return keys, values
}

func appendUniqueExpr(a []Expr, expr Expr) []Expr {
	for _, other := range a {
		if CompareExpr(other, expr) == 0 {
			return a
		}
	}
	return append(a, expr)
}

// BranchOutcome represents the feasibility of both sides of a condition.
type BranchOutcome struct {
	Then SolveStatus // status of constraints ∧ cond
	Else SolveStatus // status of constraints ∧ ¬cond
}

// ThenFeasible returns true unless the condition is proven unsatisfiable.
func (b BranchOutcome) ThenFeasible() bool { return b.Then != Unsatisfiable }

// ElseFeasible returns true unless the negated condition is proven unsatisfiable.
func (b BranchOutcome) ElseFeasible() bool { return b.Else != Unsatisfiable }

// Branch checks the feasibility of cond and of its negation under constraints.
// Constant conditions are decided without calling the solver.
func (a *SolverAdapter) Branch(ctx context.Context, constraints []Expr, cond Expr) (BranchOutcome, error) {
	if cond, ok := cond.(*ConstantExpr); ok {
		if cond.IsTrue() {
			return BranchOutcome{Then: Satisfiable, Else: Unsatisfiable}, nil
		}
		return BranchOutcome{Then: Unsatisfiable, Else: Satisfiable}, nil
	}

	var outcome BranchOutcome
	var err error
	if _, outcome.Then, err = a.IsSatisfiable(ctx, AddConstraint(constraints, cond)); err != nil {
		return outcome, err
	} else if _, outcome.Else, err = a.IsSatisfiable(ctx, AddConstraint(constraints, NewNotExpr(cond))); err != nil {
		return outcome, err
	}
	return outcome, nil
}
