package symex

import (
	"context"
	"fmt"
	"strings"

	"github.com/benbjohnson/symex/ir"
)

// LoopHandler bounds loop execution so that every loop terminates.
//
// Each loop site carries a fuel counter on the state which is incremented on
// every iteration. Once the counter reaches MaxIterations, symbolic loops
// are forced to exit and concrete loops stop the state.
type LoopHandler struct {
	MaxIterations int
	Solver        *SolverAdapter
}

// NewLoopHandler returns a new instance of LoopHandler.
func NewLoopHandler(maxIterations int, solver *SolverAdapter) *LoopHandler {
	return &LoopHandler{MaxIterations: maxIterations, Solver: solver}
}

// LoopStep represents the decision made at the head of a loop.
type LoopStep struct {
	BranchOutcome

	// True if the condition was constant and no fork is needed.
	Concrete bool

	// Fuel ran out on a symbolic condition. The exit branch is taken without
	// asserting the negated condition.
	Forced bool

	// Fuel ran out on a condition that is constant true.
	Exceeded bool
}

// Step decides which branches of the loop at site are taken by state.
func (h *LoopHandler) Step(ctx context.Context, state *State, site string, cond Expr) (LoopStep, error) {
	n := state.LoopCounter(site)

	if c, ok := cond.(*ConstantExpr); ok {
		step := LoopStep{Concrete: true}
		if !c.IsTrue() {
			step.Then, step.Else = Unsatisfiable, Satisfiable
		} else if n >= h.MaxIterations {
			step.Then, step.Else = Unsatisfiable, Unsatisfiable
			step.Exceeded = true
		} else {
			step.Then, step.Else = Satisfiable, Unsatisfiable
		}
		return step, nil
	}

	if n >= h.MaxIterations {
		return LoopStep{BranchOutcome: BranchOutcome{Then: Unsatisfiable, Else: Satisfiable}, Forced: true}, nil
	}

	outcome, err := h.Solver.Branch(ctx, state.PathCondition(), cond)
	if err != nil {
		return LoopStep{}, err
	}
	return LoopStep{BranchOutcome: outcome}, nil
}

// enterIteration consumes one unit of fuel and starts executing body.
// The loop statement stays current so that it is re-evaluated afterward.
func (s *State) enterIteration(site string, body []ir.Stmt) {
	s.loopCounters[site]++
	s.push(body, site)
}

// exitLoop clears the fuel & iterator of the loop at site and moves past
// the loop statement.
func (s *State) exitLoop(site string) {
	delete(s.loopCounters, site)
	delete(s.ranges, site)
	if f := s.frame(); f != nil {
		f.pc++
	}
}

// unwindLoop pops frames up to & including the innermost loop body. Returns
// the site of the loop. Returns an empty string if not inside a loop.
func (s *State) unwindLoop() string {
	for len(s.frames) > 0 {
		if f := s.pop(); f.site != "" {
			return f.site
		}
	}
	return ""
}

// cond returns the condition of the next iteration.
func (it rangeIter) cond() Expr {
	if it.step < 0 {
		return NewBinaryExpr(GT, it.next, it.stop)
	}
	return NewBinaryExpr(LT, it.next, it.stop)
}

// advance returns the iterator for the following iteration.
func (it rangeIter) advance() rangeIter {
	it.next = NewBinaryExpr(ADD, it.next, NewIntConstantExpr(it.step))
	return it
}

// loopSites assigns a unique site name to every loop in body. Loops are
// named by their explicit site, by kind & line ("while@L3") or by kind &
// ordinal ("for#2"). Duplicate names are suffixed with "#n".
func loopSites(body []ir.Stmt) map[ir.Stmt]string {
	m := make(map[ir.Stmt]string)
	used := make(map[string]int)
	ordinals := make(map[string]int)

	ir.Walk(body, func(stmt ir.Stmt) {
		var kind, explicit string
		switch stmt := stmt.(type) {
		case *ir.WhileStmt:
			kind, explicit = "while", stmt.Site
		case *ir.RangeStmt:
			kind, explicit = "for", stmt.Site
		default:
			return
		}
		ordinals[kind]++

		name := strings.TrimSpace(explicit)
		if name == "" {
			if line := stmt.Position().Line; line > 0 {
				name = fmt.Sprintf("%s@L%d", kind, line)
			} else {
				name = fmt.Sprintf("%s#%d", kind, ordinals[kind])
			}
		}

		if used[name]++; used[name] > 1 {
			name = fmt.Sprintf("%s#%d", name, used[name])
		}
		m[stmt] = name
	})
	return m
}
