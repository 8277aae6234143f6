package symex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/benbjohnson/symex/ir"
)

var (
	ErrNoStateAvailable = errors.New("symex: no state available")
)

// Executor explores the paths of a single program.
//
// States are executed one at a time in the order chosen by the Searcher.
// Each call to ExecuteNextState() runs a state until it forks or reaches a
// terminal status. Explore() repeats this until the frontier is empty or a
// limit is reached and returns the assembled result.
type Executor struct {
	prog       *ir.Program        // cloned program
	root       *State             // initial state
	stateIDSeq int                // autoincrementing state ID
	sites      map[ir.Stmt]string // loop statement to site name
	hasReturn  bool               // true if the body contains a return

	config  Config
	builder resultBuilder
	stats   Stats

	// Used for solving symbolic values.
	Solver *SolverAdapter

	// Bounds loop execution.
	Loops *LoopHandler

	// Search strategy for the executor. Defaults to depth-first.
	Searcher Searcher

	// Receives exploration events. Defaults to discarding them.
	Logger *log.Logger
}

// NewExecutor returns a new instance of Executor for prog. The program is
// validated and cloned so that later changes by the caller are not observed.
// Returns a *ValidationError if prog or config is invalid.
func NewExecutor(prog *ir.Program, solver Solver, config Config) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	} else if err := Validate(prog); err != nil {
		return nil, err
	}

	allowed, err := config.TypeSet()
	if err != nil {
		return nil, err
	}
	searcher, err := config.NewSearcher()
	if err != nil {
		return nil, err
	}

	marshaler := NewTypeMarshaler(allowed)
	marshaler.MaxContainer = config.maxContainerWitness()
	adapter := NewSolverAdapter(solver, marshaler)
	adapter.Timeout = config.SolverTimeout()

	e := &Executor{
		prog:     ir.CloneProgram(prog),
		config:   config,
		Solver:   adapter,
		Loops:    NewLoopHandler(config.MaxLoopIterations, adapter),
		Searcher: searcher,
		Logger:   log.New(io.Discard, "", 0),
	}
	e.sites = loopSites(e.prog.Body)
	ir.Walk(e.prog.Body, func(stmt ir.Stmt) {
		if _, ok := stmt.(*ir.ReturnStmt); ok {
			e.hasReturn = true
		}
	})

	// Initialize entry state & declare parameters as symbolic inputs.
	e.root = NewState(allowed)
	e.root.id = e.nextStateID()
	e.root.push(e.prog.Body, "")
	e.stats.States++

	for _, p := range e.prog.Params {
		typ, _ := ParseType(p.Type)
		if _, err := e.root.DeclareVariable(p.Name, typ); err != nil {
			e.fail(e.root, DiagnosticUnsupportedType, "", err)
			return e, nil
		}
	}

	e.Searcher.AddState(e.root)
	return e, nil
}

// Explore explores every path of prog and returns the result.
func Explore(ctx context.Context, prog *ir.Program, solver Solver, config Config) (*ExplorationResult, error) {
	e, err := NewExecutor(prog, solver, config)
	if err != nil {
		return nil, err
	}
	return e.Explore(ctx)
}

// RootState returns the initial state for the program execution.
func (e *Executor) RootState() *State { return e.root }

// Program returns the program being explored.
func (e *Executor) Program() *ir.Program { return e.prog }

// nextStateID returns the next autoincrementing state ID.
func (e *Executor) nextStateID() int {
	e.stateIDSeq++
	return e.stateIDSeq
}

// Explore executes states until the frontier is empty or a limit is reached.
//
// Cancellation of ctx, the wall-clock budget and max_paths are checked
// between states. When one fires, the remaining frontier is marked truncated
// and the partial result is returned. Only unexpected internal failures are
// returned as errors.
func (e *Executor) Explore(ctx context.Context) (*ExplorationResult, error) {
	if budget := e.config.WallClockBudget(); budget > 0 {
		e.Solver.Deadline = time.Now().Add(budget)
	}

	for {
		if ctx.Err() != nil {
			e.drain("cancelled")
			break
		} else if !e.Solver.Deadline.IsZero() && !time.Now().Before(e.Solver.Deadline) {
			e.drain("wall-clock budget exceeded")
			break
		} else if limit := e.config.MaxPaths; limit > 0 && len(e.builder.paths) >= limit {
			e.drain(fmt.Sprintf("max_paths limit reached (%d)", limit))
			break
		}

		if _, err := e.ExecuteNextState(ctx); err == ErrNoStateAvailable {
			break
		} else if err != nil {
			return nil, err
		}
	}
	return e.Result(), nil
}

// Result returns the result assembled from the states terminated so far.
func (e *Executor) Result() *ExplorationResult {
	stats := e.stats
	stats.SolverCalls = e.Solver.Calls()
	return e.builder.build(stats)
}

// drain marks every state remaining on the frontier as truncated.
func (e *Executor) drain(reason string) {
	var n int
	for state := e.Searcher.SelectState(); state != nil; state = e.Searcher.SelectState() {
		state.setStatus(StateTruncated, reason, nil)
		n++
	}
	if n > 0 {
		e.Logger.Printf("[state] truncated %d states: %s", n, reason)
		e.builder.addReason(reason)
	}
}

// ExecuteNextState executes the next available state. This can be called
// continually until ErrNoStateAvailable is returned.
func (e *Executor) ExecuteNextState(ctx context.Context) (*State, error) {
	state := e.Searcher.SelectState()
	if state == nil {
		return nil, ErrNoStateAvailable
	}

	e.Logger.Printf("[state] begin: #%d %s", state.ID(), state.Position())

	// Loop until new states available or completion.
	for !state.Done() {
		if err := e.executeNextStmt(ctx, state); err != nil && !e.failOnError(state, err) {
			return state, err
		}
	}

	e.Logger.Printf("[state] end: #%d %s", state.ID(), state.Status())
	return state, nil
}

// failOnError fails the state if err is specific to the state. Returns false
// if the error should abort the exploration.
func (e *Executor) failOnError(state *State, err error) bool {
	var site string
	if pos := state.Position(); pos.Line > 0 {
		site = pos.String()
	}

	var constructErr *UnsupportedConstructError
	var typeErr *UnsupportedTypeError
	var runtimeErr *RuntimeError
	var solverErr *SolverError
	switch {
	case errors.As(err, &constructErr):
		e.fail(state, DiagnosticUnsupportedConstruct, site, err)
	case errors.As(err, &typeErr):
		e.fail(state, DiagnosticUnsupportedType, site, err)
	case errors.As(err, &runtimeErr):
		e.fail(state, DiagnosticRuntimeError, site, err)
	case errors.As(err, &solverErr):
		e.fail(state, DiagnosticSolverError, site, err)
	default:
		return false
	}
	return true
}

func (e *Executor) executeNextStmt(ctx context.Context, state *State) error {
	// End of a statement list returns to the enclosing list. The loop
	// statement of a finished body stays current so it is evaluated again.
	stmt := state.Stmt()
	if stmt == nil {
		if len(state.frames) > 1 {
			state.pop()
			return nil
		}
		return e.executeEndOfBody(ctx, state)
	}

	e.Logger.Printf("[exec] #%d %s: %s", state.ID(), stmt.Position(), stmtName(stmt))

	switch stmt := stmt.(type) {
	case *ir.AssignStmt:
		return e.executeAssignStmt(state, stmt)
	case *ir.DeclareStmt:
		return e.executeDeclareStmt(state, stmt)
	case *ir.IfStmt:
		return e.executeIfStmt(ctx, state, stmt)
	case *ir.WhileStmt:
		return e.executeWhileStmt(ctx, state, stmt)
	case *ir.RangeStmt:
		return e.executeRangeStmt(ctx, state, stmt)
	case *ir.ReturnStmt:
		return e.executeReturnStmt(ctx, state, stmt)
	case *ir.AssumeStmt:
		return e.executeAssumeStmt(ctx, state, stmt)
	case *ir.AssertStmt:
		return e.executeAssertStmt(ctx, state, stmt)
	case *ir.ExprStmt:
		return e.executeExprStmt(state, stmt)
	case *ir.BreakStmt:
		state.exitLoop(state.unwindLoop())
		return nil
	case *ir.ContinueStmt:
		state.unwindLoop()
		return nil
	case *ir.UnsupportedStmt:
		construct := stmt.Kind
		if stmt.Text != "" {
			construct += ": " + stmt.Text
		}
		return &UnsupportedConstructError{Construct: construct, Line: stmt.Line}
	default:
		return &UnsupportedConstructError{Construct: stmtName(stmt), Line: stmt.Position().Line}
	}
}

// executeEndOfBody completes a state that ran past its last statement.
func (e *Executor) executeEndOfBody(ctx context.Context, state *State) error {
	if e.hasReturn {
		e.fail(state, DiagnosticNoReturn, "", errors.New("reached end of body without return"))
		return nil
	}
	return e.complete(ctx, state, nil)
}

func (e *Executor) executeAssignStmt(state *State, stmt *ir.AssignStmt) error {
	value, err := e.eval(state, stmt.Value, stmt.Line)
	if err != nil {
		return err
	}
	op, err := parseAssignOp(stmt.Op)
	if err != nil {
		return &RuntimeError{Message: err.Error(), Line: stmt.Line}
	}

	if stmt.Index != nil {
		return e.executeStoreStmt(state, stmt, op, value)
	}

	if op != nil {
		prev, ok := state.Lookup(stmt.Target)
		if !ok {
			return &RuntimeError{Message: "undefined variable: " + stmt.Target, Line: stmt.Line}
		} else if value, err = e.binary(*op, prev, value, stmt.Line); err != nil {
			return err
		}
	}

	state.Bind(stmt.Target, value)
	state.frame().pc++
	return nil
}

// executeStoreStmt writes to an element of a list or map.
func (e *Executor) executeStoreStmt(state *State, stmt *ir.AssignStmt, op *BinaryOp, value Expr) error {
	v, ok := state.Lookup(stmt.Target)
	if !ok {
		return &RuntimeError{Message: "undefined variable: " + stmt.Target, Line: stmt.Line}
	}
	arr, ok := v.(*Array)
	if !ok {
		return &UnsupportedConstructError{Construct: fmt.Sprintf("element assignment to %s", ExprType(v)), Line: stmt.Line}
	}

	index, err := e.eval(state, stmt.Index, stmt.Line)
	if err != nil {
		return err
	} else if err := e.checkBounds(state, arr, index, stmt.Line); err != nil {
		return err
	}

	if op != nil {
		if value, err = e.binary(*op, arr.Select(index), value, stmt.Line); err != nil {
			return err
		}
	}

	state.Bind(stmt.Target, arr.Store(index, value))
	state.frame().pc++
	return nil
}

func (e *Executor) executeDeclareStmt(state *State, stmt *ir.DeclareStmt) error {
	typ, err := ParseType(stmt.Type)
	if err != nil {
		return &RuntimeError{Message: err.Error(), Line: stmt.Line}
	} else if _, err := state.DeclareVariable(stmt.Name, typ); err != nil {
		return err
	}
	state.frame().pc++
	return nil
}

func (e *Executor) executeIfStmt(ctx context.Context, state *State, stmt *ir.IfStmt) error {
	cond, err := e.evalCond(state, stmt.Cond, stmt.Line)
	if err != nil {
		return err
	}

	outcome, err := e.Solver.Branch(ctx, state.PathCondition(), cond)
	if err != nil {
		return &SolverError{Err: err}
	}
	state.frame().pc++

	then, els := e.branch(state, cond, outcome, stmt.Position().String())
	if then == nil && els == nil {
		e.prune(state, "both branches unsatisfiable")
		return nil
	}
	if then != nil {
		then.push(stmt.Then, "")
	}
	if els != nil {
		els.push(stmt.Else, "")
	}
	return nil
}

// branch continues state down each feasible side of cond and returns the
// state taking each side, or nil for an infeasible side.
//
// The state only forks if both sides are feasible. The else side is added to
// the searcher first so that depth-first search explores the then side first.
func (e *Executor) branch(state *State, cond Expr, outcome BranchOutcome, site string) (then, els *State) {
	switch {
	case outcome.ThenFeasible() && outcome.ElseFeasible():
		e.stats.Forks++

		e.Logger.Print("[fork] condition false")
		els = e.fork(state, 1, NewNotExpr(cond), outcome.Else, site)

		e.Logger.Print("[fork] condition true")
		then = e.fork(state, 0, cond, outcome.Then, site)
		return then, els

	case outcome.ThenFeasible():
		state.AssertConstraint(cond)
		if outcome.Then == Unknown {
			e.markTimedOut(state, site)
		}
		return state, nil

	case outcome.ElseFeasible():
		state.AssertConstraint(NewNotExpr(cond))
		if outcome.Else == Unknown {
			e.markTimedOut(state, site)
		}
		return nil, state

	default:
		return nil, nil
	}
}

// fork returns a child of state constrained by cond and adds it to the searcher.
func (e *Executor) fork(state *State, choice int, cond Expr, status SolveStatus, site string) *State {
	child := state.Fork()
	child.id = e.nextStateID()
	child.choices = append(child.choices, choice)
	child.AssertConstraint(cond)
	e.stats.States++

	if status == Unknown {
		e.markTimedOut(child, site)
	}
	e.Searcher.AddState(child)
	return child
}

func (e *Executor) executeWhileStmt(ctx context.Context, state *State, stmt *ir.WhileStmt) error {
	site := e.sites[stmt]

	cond, err := e.evalCond(state, stmt.Cond, stmt.Line)
	if err != nil {
		return err
	}
	return e.executeLoop(ctx, state, site, cond, stmt.Body, nil)
}

func (e *Executor) executeRangeStmt(ctx context.Context, state *State, stmt *ir.RangeStmt) error {
	site := e.sites[stmt]

	// The iterator is frozen on entry so later changes to the bounds'
	// variables do not affect the loop.
	it, ok := state.ranges[site]
	if !ok {
		start := Expr(NewIntConstantExpr(0))
		if stmt.Start != nil {
			v, err := e.eval(state, stmt.Start, stmt.Line)
			if err != nil {
				return err
			}
			start = v
		}

		stop, err := e.eval(state, stmt.Stop, stmt.Line)
		if err != nil {
			return err
		}

		step := int64(1)
		if stmt.Step != nil {
			v, _ := constantInt(stmt.Step)
			step = v.Int64()
		}

		it = rangeIter{next: start, stop: stop, step: step}
		state.ranges[site] = it
	}

	return e.executeLoop(ctx, state, site, it.cond(), stmt.Body, func(s *State) {
		s.Bind(stmt.Var, it.next)
		s.ranges[site] = it.advance()
	})
}

// executeLoop evaluates the head of a loop. The continuing state runs enter,
// if set, and then the body. The exiting state moves past the loop.
func (e *Executor) executeLoop(ctx context.Context, state *State, site string, cond Expr, body []ir.Stmt, enter func(*State)) error {
	step, err := e.Loops.Step(ctx, state, site, cond)
	if err != nil {
		return &SolverError{Err: err}
	}

	switch {
	case step.Exceeded:
		msg := fmt.Sprintf("loop %s exceeded max_loop_iterations (%d)", site, e.Loops.MaxIterations)
		e.builder.addReason(msg)
		e.builder.addDiagnostic(state, DiagnosticLoopTruncated, site, msg)
		state.setStatus(StateTruncated, msg, nil)
		e.Logger.Printf("[state] truncated: %s", msg)
		return nil

	case step.Forced:
		msg := fmt.Sprintf("loop %s forced to exit after %d iterations", site, state.LoopCounter(site))
		e.builder.addReason(msg)
		e.builder.addDiagnostic(state, DiagnosticLoopTruncated, site, msg)
		state.truncation = append(state.truncation, site)
		state.exitLoop(site)
		return nil
	}

	cont, exit := e.branch(state, cond, step.BranchOutcome, site)
	if cont == nil && exit == nil {
		e.prune(state, "loop condition unsatisfiable")
		return nil
	}
	if exit != nil {
		exit.exitLoop(site)
	}
	if cont != nil {
		if enter != nil {
			enter(cont)
		}
		cont.enterIteration(site, body)
	}
	return nil
}

func (e *Executor) executeReturnStmt(ctx context.Context, state *State, stmt *ir.ReturnStmt) error {
	var value Expr
	if stmt.Value != nil {
		v, err := e.eval(state, stmt.Value, stmt.Line)
		if err != nil {
			return err
		}
		value = v
	}
	return e.complete(ctx, state, value)
}

func (e *Executor) executeAssumeStmt(ctx context.Context, state *State, stmt *ir.AssumeStmt) error {
	cond, err := e.evalCond(state, stmt.Cond, stmt.Line)
	if err != nil {
		return err
	} else if IsConstantTrue(cond) {
		state.frame().pc++
		return nil
	}

	ok, status, err := e.Solver.IsSatisfiable(ctx, AddConstraint(state.PathCondition(), cond))
	if err != nil {
		return &SolverError{Err: err}
	} else if !ok {
		e.prune(state, "assumption unsatisfiable")
		return nil
	} else if status == Unknown {
		e.markTimedOut(state, stmt.Position().String())
	}

	state.AssertConstraint(cond)
	state.frame().pc++
	return nil
}

// executeAssertStmt reports a diagnostic if the condition can be false on
// this path. Execution continues under the assumption that it holds.
func (e *Executor) executeAssertStmt(ctx context.Context, state *State, stmt *ir.AssertStmt) error {
	cond, err := e.evalCond(state, stmt.Cond, stmt.Line)
	if err != nil {
		return err
	} else if IsConstantTrue(cond) {
		state.frame().pc++
		return nil
	}

	proof, err := e.Solver.Prove(ctx, cond, state.PathCondition(), state.Inputs())
	if err != nil {
		return &SolverError{Err: err}
	}

	switch proof.Status {
	case Satisfiable:
		msg := stmt.Message
		if msg == "" {
			msg = "assertion may fail: " + cond.String()
		}
		d := e.builder.addDiagnostic(state, DiagnosticAssertionViolation, stmt.Position().String(), msg)
		d.Witness = proof.Counterexample
	case Unknown:
		e.markTimedOut(state, stmt.Position().String())
	}

	if IsConstantFalse(cond) {
		e.prune(state, "assertion always fails")
		return nil
	}
	state.AssertConstraint(cond)
	state.frame().pc++
	return nil
}

func (e *Executor) executeExprStmt(state *State, stmt *ir.ExprStmt) error {
	if _, err := e.eval(state, stmt.X, stmt.Line); err != nil {
		return err
	}
	state.frame().pc++
	return nil
}

// complete solves the witness of state and records it as a path. The
// returned value is evaluated under the same model.
func (e *Executor) complete(ctx context.Context, state *State, value Expr) error {
	var terms []Expr
	if value != nil && !IsConstantExpr(value) {
		if arr, ok := value.(*Array); !ok || arr.IsSymbolic() {
			terms = append(terms, value)
		}
	}

	outcome, err := e.Solver.Solve(ctx, state.PathCondition(), state.Inputs(), terms...)
	if err != nil {
		return &SolverError{Err: err}
	} else if outcome.Status == Unsatisfiable {
		e.prune(state, "path condition unsatisfiable")
		return nil
	}

	state.returnValue, state.returned = value, true
	if outcome.Status == Unknown {
		e.markTimedOut(state, "")
		state.setStatus(StateTimedOut, outcome.Reason, nil)
	} else {
		state.setStatus(StateCompleted, "", nil)
	}
	for _, err := range outcome.Errors {
		e.builder.addDiagnostic(state, DiagnosticMarshalError, "", err.Error())
	}

	path := &PathResult{
		PathCondition: make([]string, len(state.PathCondition())),
		Witness:       outcome.Model,
		ReturnValue:   returnValue(value),
		Truncated:     len(state.Truncation()) > 0,
		TimedOut:      state.TimedOut(),
		Depth:         state.Depth(),
		choices:       append([]int(nil), state.Choices()...),
	}
	for i, c := range state.PathCondition() {
		path.PathCondition[i] = c.String()
	}
	if path.Witness == nil {
		path.Witness = make(map[string]interface{})
	}
	if len(terms) > 0 && len(outcome.Values) > 0 {
		path.ReturnWitness = outcome.Values[0]
	}

	e.builder.paths = append(e.builder.paths, path)
	e.stats.Completed++
	e.Logger.Printf("[state] completed: #%d depth=%d", state.ID(), state.Depth())
	return nil
}

// prune marks the state as infeasible.
func (e *Executor) prune(state *State, reason string) {
	e.Logger.Printf("[prune] #%d: %s", state.ID(), reason)
	state.setStatus(StatePruned, reason, nil)
	e.stats.Pruned++
}

// fail marks the state as failed and records a diagnostic.
func (e *Executor) fail(state *State, kind, site string, err error) {
	e.Logger.Printf("[state] failed: #%d: %s", state.ID(), err)
	state.setStatus(StateFailed, err.Error(), err)
	e.builder.addDiagnostic(state, kind, site, err.Error())
	e.stats.Failed++
}

// markTimedOut flags the state after a solver call returned unknown. Only
// the first occurrence on a path is recorded as a diagnostic.
func (e *Executor) markTimedOut(state *State, site string) {
	if state.timedOut {
		return
	}
	state.timedOut = true
	e.builder.addDiagnostic(state, DiagnosticSolverTimeout, site, "solver returned unknown; branch kept as feasible")
}

// evalCond evaluates a boolean condition.
func (e *Executor) evalCond(state *State, expr ir.Expr, line int) (Expr, error) {
	cond, err := e.eval(state, expr, line)
	if err != nil {
		return nil, err
	} else if typ := ExprType(cond); typ != TypeBool {
		return nil, &RuntimeError{Message: fmt.Sprintf("condition must be bool, got %s", typ), Line: line}
	}
	return cond, nil
}

// eval returns the symbolic value of expr in state. Reads of list elements
// constrain the path to in-bounds indices.
func (e *Executor) eval(state *State, expr ir.Expr, line int) (Expr, error) {
	switch expr := expr.(type) {
	case *ir.Ident:
		v, ok := state.Lookup(expr.Name)
		if !ok {
			return nil, &RuntimeError{Message: "undefined variable: " + expr.Name, Line: line}
		}
		return v, nil

	case *ir.IntLit:
		v, ok := new(big.Int).SetString(expr.Value, 0)
		if !ok {
			return nil, &RuntimeError{Message: "invalid integer literal: " + expr.Value, Line: line}
		}
		return NewBigIntConstantExpr(v), nil

	case *ir.FloatLit:
		v, ok := new(big.Rat).SetString(expr.Value)
		if !ok {
			return nil, &RuntimeError{Message: "invalid float literal: " + expr.Value, Line: line}
		}
		return NewFloatConstantExpr(v), nil

	case *ir.BoolLit:
		return NewBoolConstantExpr(expr.Value), nil

	case *ir.StringLit:
		return NewStringConstantExpr(expr.Value), nil

	case *ir.ListLit:
		elems, err := e.evalTyped(state, expr.Elems, TypeInt, "list element", line)
		if err != nil {
			return nil, err
		}
		return NewListLiteral(elems), nil

	case *ir.MapLit:
		keys, err := e.evalTyped(state, expr.Keys, TypeString, "map key", line)
		if err != nil {
			return nil, err
		}
		values, err := e.evalTyped(state, expr.Values, TypeInt, "map value", line)
		if err != nil {
			return nil, err
		}
		return NewMapLiteral(keys, values), nil

	case *ir.BinaryExpr:
		return e.evalBinaryExpr(state, expr, line)

	case *ir.UnaryExpr:
		x, err := e.eval(state, expr.X, line)
		if err != nil {
			return nil, err
		}
		switch typ := ExprType(x); expr.Op {
		case "not", "!":
			if typ != TypeBool {
				return nil, &RuntimeError{Message: fmt.Sprintf("invalid operand type for not: %s", typ), Line: line}
			}
			return NewNotExpr(x), nil
		case "-":
			if !typ.IsNumeric() {
				return nil, &RuntimeError{Message: fmt.Sprintf("invalid operand type for -: %s", typ), Line: line}
			}
			return NewNegExpr(x), nil
		default:
			return nil, &UnsupportedConstructError{Construct: "unary operator " + expr.Op, Line: line}
		}

	case *ir.CallExpr:
		return e.evalCallExpr(state, expr, line)

	case *ir.IndexExpr:
		x, err := e.eval(state, expr.X, line)
		if err != nil {
			return nil, err
		}
		arr, ok := x.(*Array)
		if !ok {
			return nil, &UnsupportedConstructError{Construct: fmt.Sprintf("indexing %s", ExprType(x)), Line: line}
		}
		index, err := e.eval(state, expr.Index, line)
		if err != nil {
			return nil, err
		} else if err := e.checkBounds(state, arr, index, line); err != nil {
			return nil, err
		}
		return arr.Select(index), nil

	case *ir.BadExpr:
		return nil, &UnsupportedConstructError{Construct: expr.Text, Line: line}

	default:
		return nil, &UnsupportedConstructError{Construct: fmt.Sprintf("%T", expr), Line: line}
	}
}

// evalTyped evaluates exprs which must all have type typ.
func (e *Executor) evalTyped(state *State, exprs []ir.Expr, typ Type, what string, line int) ([]Expr, error) {
	a := make([]Expr, len(exprs))
	for i, expr := range exprs {
		v, err := e.eval(state, expr, line)
		if err != nil {
			return nil, err
		} else if ExprType(v) != typ {
			return nil, &RuntimeError{Message: fmt.Sprintf("%s must be %s, got %s", what, typ, ExprType(v)), Line: line}
		}
		a[i] = v
	}
	return a, nil
}

func (e *Executor) evalBinaryExpr(state *State, expr *ir.BinaryExpr, line int) (Expr, error) {
	op, err := ParseBinaryOp(expr.Op)
	if err != nil {
		return nil, &UnsupportedConstructError{Construct: "operator " + expr.Op, Line: line}
	}

	lhs, err := e.eval(state, expr.X, line)
	if err != nil {
		return nil, err
	}

	// Concrete operands short circuit so the RHS may rely on the LHS.
	if c, ok := lhs.(*ConstantExpr); ok && c.Type == TypeBool {
		if (op == AND && !c.Bool) || (op == OR && c.Bool) {
			return c, nil
		}
	}

	rhs, err := e.eval(state, expr.Y, line)
	if err != nil {
		return nil, err
	}
	return e.binary(op, lhs, rhs, line)
}

// binary applies op after checking the operand types. Division by a
// concrete zero is a runtime error.
func (e *Executor) binary(op BinaryOp, lhs, rhs Expr, line int) (Expr, error) {
	if _, err := CheckBinaryExpr(op, ExprType(lhs), ExprType(rhs)); err != nil {
		return nil, &RuntimeError{Message: err.Error(), Line: line}
	}

	switch op {
	case DIV, REM, FLOORDIV, MOD:
		if c, ok := rhs.(*ConstantExpr); ok && c.IsZero() {
			return nil, &RuntimeError{Message: "division by zero", Line: line}
		}
	}
	return NewBinaryExpr(op, lhs, rhs), nil
}

// evalCallExpr evaluates a call to a builtin. Any other function is an
// unsupported construct.
func (e *Executor) evalCallExpr(state *State, call *ir.CallExpr, line int) (Expr, error) {
	args := make([]Expr, len(call.Args))
	types := make([]Type, len(call.Args))
	for i, arg := range call.Args {
		v, err := e.eval(state, arg, line)
		if err != nil {
			return nil, err
		}
		args[i], types[i] = v, ExprType(v)
	}

	typ, err := builtinType(call.Func, types)
	if err != nil {
		return nil, &RuntimeError{Message: err.Error(), Line: line}
	} else if typ == typeUnknown {
		return nil, &UnsupportedConstructError{Construct: "call to " + call.String(), Line: line}
	}

	switch call.Func {
	case "len":
		return NewLenExpr(args[0]), nil
	case "float":
		return NewCastExpr(args[0]), nil
	case "int":
		return args[0], nil
	case "append":
		return args[0].(*Array).Append(args[1]), nil
	default:
		return nil, &UnsupportedConstructError{Construct: "call to " + call.String(), Line: line}
	}
}

// checkBounds constrains the path to executions where index is a valid
// index of arr. Indices that are never valid are a runtime error.
func (e *Executor) checkBounds(state *State, arr *Array, index Expr, line int) error {
	if typ := ExprType(index); typ != arr.KeyType() {
		return &RuntimeError{Message: fmt.Sprintf("%s index must be %s, got %s", arr.Type, arr.KeyType(), typ), Line: line}
	}

	cond := arr.InBounds(index)
	if IsConstantFalse(cond) {
		return &RuntimeError{Message: fmt.Sprintf("index out of range: %s", index), Line: line}
	}
	state.AssertConstraint(cond)
	return nil
}

// returnValue returns the host value of a concrete return value or the
// expression text of a symbolic one.
func returnValue(value Expr) interface{} {
	switch value := value.(type) {
	case nil:
		return nil
	case *ConstantExpr:
		return value.Value()
	case *Array:
		if v, ok := concreteArray(value); ok {
			return v
		}
	}
	return value.String()
}

// concreteArray returns the host value of an array whose entries are all concrete.
func concreteArray(a *Array) (interface{}, bool) {
	if a.IsSymbolic() {
		return nil, false
	}

	if a.Type == TypeMap {
		m := make(map[string]interface{})
		for upd := a.Updates; upd != nil; upd = upd.Next {
			m[upd.Index.(*ConstantExpr).Str] = upd.Value.(*ConstantExpr).Value()
		}
		return m, true
	}

	n := a.Len.(*ConstantExpr).Int
	if !n.IsInt64() {
		return nil, false
	}
	elems := make([]interface{}, n.Int64())
	for i := range elems {
		v, ok := a.Select(NewIntConstantExpr(int64(i))).(*ConstantExpr)
		if !ok {
			return nil, false
		}
		elems[i] = v.Value()
	}
	return elems, true
}

// stmtName returns the statement kind for logging, e.g. "IfStmt".
func stmtName(stmt ir.Stmt) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*ir.")
}
