package symex

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/benbjohnson/symex/ir"
)

// StateStatus represents the current status of a state. The state will also
// include a reason if the status is not active.
type StateStatus string

const (
	StateActive    = StateStatus("active")    // on the frontier or executing
	StateCompleted = StateStatus("completed") // reached a return or the end of the body
	StatePruned    = StateStatus("pruned")    // path condition proven unsatisfiable
	StateTimedOut  = StateStatus("timed_out") // witness could not be solved in time
	StateTruncated = StateStatus("truncated") // stopped by a path, fuel or time limit
	StateFailed    = StateStatus("failed")    // unsupported construct, type or runtime error
)

// State represents a path under exploration: variable bindings, the path
// condition and the loop fuel consumed so far.
//
// States are only created by NewState() for the root and by Fork(). A state
// is exclusively owned by the executor while on the frontier.
type State struct {
	id int

	// Execution hierarchy.
	parent   *State
	children []*State

	status StateStatus
	reason string
	err    error

	// Persistent map of variable name to Expr. Sharing after fork is safe
	// because every update returns a new map.
	variables *immutable.SortedMap

	// Constraints collected so far during execution.
	constraints []Expr

	// Iterations consumed per loop site & frozen range iterators.
	loopCounters map[string]int
	ranges       map[string]rangeIter

	// Number of forks taken to reach this state.
	depth int

	// Continuation stack of statement lists.
	frames []*frame

	// Declared inputs in declaration order.
	inputs []Expr

	// Branch taken at each fork: 0 for then/continue, 1 for else/exit.
	choices []int

	allowed TypeSet

	returnValue Expr
	returned    bool
	truncation  []string
	timedOut    bool
}

// NewState returns a root state whose declarations are limited to allowed.
func NewState(allowed TypeSet) *State {
	return &State{
		status:       StateActive,
		variables:    immutable.NewSortedMap(&stringComparer{}),
		loopCounters: make(map[string]int),
		ranges:       make(map[string]rangeIter),
		allowed:      allowed,
	}
}

// ID returns an autoincrementing ID assigned by the executor.
func (s *State) ID() int { return s.id }

// Parent returns the state this state was forked from.
func (s *State) Parent() *State { return s.parent }

// Fork returns a child copy of the state. The child's variables, path
// condition, loop counters, frames and inputs are independent of s.
func (s *State) Fork() *State {
	frames := make([]*frame, len(s.frames))
	for i := range s.frames {
		frames[i] = s.frames[i].clone()
	}

	loopCounters := make(map[string]int, len(s.loopCounters))
	for k, v := range s.loopCounters {
		loopCounters[k] = v
	}
	ranges := make(map[string]rangeIter, len(s.ranges))
	for k, v := range s.ranges {
		ranges[k] = v
	}

	child := &State{
		parent:       s,
		status:       StateActive,
		variables:    s.variables,
		constraints:  append([]Expr(nil), s.constraints...),
		loopCounters: loopCounters,
		ranges:       ranges,
		depth:        s.depth + 1,
		frames:       frames,
		inputs:       append([]Expr(nil), s.inputs...),
		choices:      append([]int(nil), s.choices...),
		allowed:      s.allowed,
		truncation:   append([]string(nil), s.truncation...),
		timedOut:     s.timedOut,
	}
	s.children = append(s.children, child)
	return child
}

// Bind sets the value of a variable on this state only.
func (s *State) Bind(name string, value Expr) {
	s.variables = s.variables.Set(name, value)
}

// Lookup returns the value bound to name.
func (s *State) Lookup(name string) (Expr, bool) {
	v, ok := s.variables.Get(name)
	if !ok {
		return nil, false
	}
	return v.(Expr), true
}

// Variables returns a copy of the current bindings.
func (s *State) Variables() map[string]Expr {
	m := make(map[string]Expr, s.variables.Len())
	itr := s.variables.Iterator()
	for {
		k, v := itr.Next()
		if k == nil {
			return m
		}
		m[k.(string)] = v.(Expr)
	}
}

// AssertConstraint adds a constraint to the path condition of this state
// only. Panic if expr is a constant false.
func (s *State) AssertConstraint(expr Expr) {
	if expr, ok := expr.(*ConstantExpr); ok {
		assert(expr.IsTrue(), "invalid false constraint")
		return
	}
	s.constraints = AddConstraint(s.constraints, expr)
}

// AddConstraint returns a new constraint list holding a followed by expr.
// If expr is a binary AND expression then its LHS & RHS are split into
// independent constraints. Constraints already in a are not added again.
// The backing array of a is never written.
func AddConstraint(a []Expr, expr Expr) []Expr {
	other := make([]Expr, len(a), len(a)+2)
	copy(other, a)
	return appendConstraint(other, expr)
}

func appendConstraint(a []Expr, expr Expr) []Expr {
	if IsConstantTrue(expr) {
		return a
	} else if expr, ok := expr.(*BinaryExpr); ok && expr.Op == AND {
		a = appendConstraint(a, expr.LHS)
		return appendConstraint(a, expr.RHS)
	}

	for _, other := range a {
		if CompareExpr(other, expr) == 0 {
			return a
		}
	}
	return append(a, expr)
}

// DeclareVariable binds name to a fresh symbolic input of type typ. Returns
// an *UnsupportedTypeError if typ is not allowed for this exploration.
func (s *State) DeclareVariable(name string, typ Type) (Expr, error) {
	if !s.allowed.Contains(typ) {
		return nil, &UnsupportedTypeError{Name: name, Type: typ, Allowed: s.allowed}
	}

	var value Expr
	switch typ {
	case TypeList, TypeMap:
		a := NewArray(name, typ)
		if typ == TypeList {
			s.AssertConstraint(NewBinaryExpr(GE, a.Len, NewIntConstantExpr(0)))
		}
		value = a
	default:
		value = NewVarExpr(name, typ)
	}

	// Redeclaring an input replaces it.
	for i := range s.inputs {
		if inputName(s.inputs[i]) == name {
			s.inputs = append(s.inputs[:i:i], s.inputs[i+1:]...)
			break
		}
	}
	s.inputs = append(s.inputs, value)
	s.Bind(name, value)
	return value, nil
}

// Inputs returns the symbolic inputs declared on this path.
func (s *State) Inputs() []Expr { return s.inputs }

func inputName(expr Expr) string {
	switch expr := expr.(type) {
	case *VarExpr:
		return expr.Name
	case *Array:
		return expr.Name
	default:
		return ""
	}
}

// PathCondition returns the constraints collected so far.
func (s *State) PathCondition() []Expr { return s.constraints }

// LoopCounter returns the iterations consumed by the loop at site.
func (s *State) LoopCounter(site string) int { return s.loopCounters[site] }

// Depth returns the number of forks taken to reach the state.
func (s *State) Depth() int { return s.depth }

// Choices returns the branch taken at each fork.
func (s *State) Choices() []int { return s.choices }

// Status returns the current status of the state.
// See Reason() for additional information if status is not active.
func (s *State) Status() StateStatus { return s.status }

// Reason returns additional information about the status of the state.
func (s *State) Reason() string { return s.reason }

// Err returns the error that failed the state, if any.
func (s *State) Err() error { return s.err }

// ReturnValue returns the value returned by a completed state. Returns nil
// if the path ended without a value.
func (s *State) ReturnValue() Expr { return s.returnValue }

// TimedOut returns true if a solver call on this path returned unknown.
func (s *State) TimedOut() bool { return s.timedOut }

// Truncation returns the loop sites whose exit was forced on this path.
func (s *State) Truncation() []string { return s.truncation }

// Terminated returns true if the state has reached a terminal status.
func (s *State) Terminated() bool {
	return s.status != StateActive
}

// Forked returns true if state has a child state.
func (s *State) Forked() bool {
	return len(s.children) > 0
}

// Done returns true if the state has finished executing, either by
// terminating or by handing off execution to its children.
func (s *State) Done() bool {
	return s.Terminated() || s.Forked()
}

// setStatus marks the state as terminated.
func (s *State) setStatus(status StateStatus, reason string, err error) {
	s.status, s.reason, s.err = status, reason, err
}

// frame returns the current frame.
func (s *State) frame() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// push adds a new frame executing stmts. Site is set for loop bodies.
func (s *State) push(stmts []ir.Stmt, site string) {
	s.frames = append(s.frames, &frame{stmts: stmts, site: site})
}

// pop removes the current frame.
func (s *State) pop() *frame {
	f := s.frame()
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

// Stmt returns the next statement of the current frame. Returns nil if the
// current frame is finished.
func (s *State) Stmt() ir.Stmt {
	if f := s.frame(); f != nil && f.pc < len(f.stmts) {
		return f.stmts[f.pc]
	}
	return nil
}

// Position returns the position of the next statement.
func (s *State) Position() ir.Pos {
	if stmt := s.Stmt(); stmt != nil {
		return stmt.Position()
	}
	return ir.Pos{}
}

// Dump returns the contents of the state as a string.
func (s *State) Dump() string {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "EXECUTION STATE")
	fmt.Fprintln(&buf, "===============")
	fmt.Fprintf(&buf, "id=%d depth=%d choices=%v\n", s.id, s.depth, s.choices)
	fmt.Fprintf(&buf, "status=%s\n", s.status)
	fmt.Fprintf(&buf, "reason=%s\n", s.reason)
	fmt.Fprintln(&buf, "")
	for i := len(s.frames) - 1; i >= 0; i-- {
		fmt.Fprintf(&buf, "== FRAME #%d\n", i)
		fmt.Fprintln(&buf, s.frames[i].Dump())
	}

	fmt.Fprintln(&buf, "== VARIABLES")
	itr := s.variables.Iterator()
	for {
		k, v := itr.Next()
		if k == nil {
			break
		}
		fmt.Fprintf(&buf, "%s = %s\n", k.(string), v.(Expr).String())
	}
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== LOOPS")
	sites := make([]string, 0, len(s.loopCounters))
	for site := range s.loopCounters {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	for _, site := range sites {
		fmt.Fprintf(&buf, "%s: %d\n", site, s.loopCounters[site])
	}
	sites = sites[:0]
	for site := range s.ranges {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	for _, site := range sites {
		it := s.ranges[site]
		fmt.Fprintf(&buf, "%s: next=%s stop=%s step=%d\n", site, it.next, it.stop, it.step)
	}
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== CONSTRAINTS")
	for i, expr := range s.constraints {
		fmt.Fprintf(&buf, "%d. %s\n", i, expr.String())
	}
	return buf.String()
}

// frame represents a statement list under execution.
type frame struct {
	stmts []ir.Stmt
	pc    int
	site  string // loop site if this frame is a loop body
}

func (f *frame) clone() *frame {
	other := *f
	return &other
}

// Dump returns the contents of the frame as a string.
func (f *frame) Dump() string {
	var buf bytes.Buffer
	if f.site != "" {
		fmt.Fprintf(&buf, "loop=%s\n", f.site)
	}
	for i, stmt := range f.stmts {
		marker := " "
		if i == f.pc {
			marker = ">"
		}
		fmt.Fprintf(&buf, "%s %s %s\n", marker, stmt.Position(), strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*ir."))
	}
	return buf.String()
}

// rangeIter is the frozen iterator of a range loop.
type rangeIter struct {
	next Expr
	stop Expr
	step int64
}

// stringComparer compares two strings. Implements immutable.Comparer.
type stringComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not a string.
func (c *stringComparer) Compare(a, b interface{}) int {
	return strings.Compare(a.(string), b.(string))
}
