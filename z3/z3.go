// Package z3 implements symex.Solver using an embedded Z3 solver.
package z3

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
	"unsafe"

	"github.com/benbjohnson/symex"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure solver implements interface.
var _ symex.Solver = (*Solver)(nil)

// Solver represents a solver that uses an embedded Z3 solver.
// A Solver is safe for concurrent use but calls are serialized.
type Solver struct {
	mu    sync.Mutex
	ctx   *Context
	stats Stats
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	return &Solver{
		ctx: NewContext(),
	}
}

// Close deletes the underlying Z3 context.
func (s *Solver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Check returns the satisfiability of constraints and, if satisfiable, the
// value of each term in the model. A fresh Z3 solver is used for every call.
func (s *Solver) Check(ctx context.Context, constraints []symex.Expr, terms []symex.Expr, timeout time.Duration) (status symex.SolveStatus, values []symex.RawValue, err error) {
	if err := ctx.Err(); err != nil {
		return symex.Unknown, nil, symex.ErrSolverCanceled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()

	solver := C.Z3_mk_solver(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_solver"); err != nil {
		return symex.Unknown, nil, err
	}
	C.Z3_solver_inc_ref(s.ctx.raw, solver)
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	if err := s.ctx.setTimeout(solver, timeout); err != nil {
		return symex.Unknown, nil, err
	}

	// Assert constraints.
	for _, constraint := range constraints {
		z3Constraint, err := s.ctx.toAST(constraint)
		if err != nil {
			return symex.Unknown, nil, err
		}
		C.Z3_solver_assert(s.ctx.raw, solver, z3Constraint)
		if err := s.ctx.err("Z3_solver_assert"); err != nil {
			return symex.Unknown, nil, err
		}
	}

	// Interrupt the check if the context is canceled while it runs.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			C.Z3_interrupt(s.ctx.raw)
		case <-done:
		}
	}()

	ret := C.Z3_solver_check(s.ctx.raw, solver)
	close(done)
	wg.Wait()

	// Exit immediately if unsatisfiable or the solver encountered an error.
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return symex.Unknown, nil, err
	} else if ret == C.Z3_L_FALSE {
		return symex.Unsatisfiable, nil, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return symex.Unknown, nil, symex.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return symex.Unknown, nil, symex.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return symex.Unknown, nil, symex.ErrSolverResourceLimit
		case strings.Contains(reason, "unknown"), strings.Contains(reason, "incomplete"):
			return symex.Unknown, nil, symex.ErrSolverUnknown
		default:
			return symex.Unknown, nil, fmt.Errorf("z3: %s", reason)
		}
	} else if len(terms) == 0 {
		return symex.Satisfiable, nil, nil // no terms, ignore model
	}

	// Calculate a model for the given formula.
	model := C.Z3_solver_get_model(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return symex.Unknown, nil, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	defer C.Z3_model_dec_ref(s.ctx.raw, model)

	// Evaluate each term against the model.
	if values, err = s.ctx.eval(model, terms); err != nil {
		return symex.Unknown, nil, err
	}
	return symex.Satisfiable, values, nil
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// setTimeout sets the "timeout" parameter of solver in milliseconds.
func (ctx *Context) setTimeout(solver C.Z3_solver, timeout time.Duration) error {
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	} else if ms > 1<<32-1 {
		ms = 1<<32 - 1
	}

	params := C.Z3_mk_params(ctx.raw)
	if err := ctx.err("Z3_mk_params"); err != nil {
		return err
	}
	C.Z3_params_inc_ref(ctx.raw, params)
	defer C.Z3_params_dec_ref(ctx.raw, params)

	cname := C.CString("timeout")
	defer C.free(unsafe.Pointer(cname))
	C.Z3_params_set_uint(ctx.raw, params, C.Z3_mk_string_symbol(ctx.raw, cname), C.uint(ms))
	if err := ctx.err("Z3_params_set_uint"); err != nil {
		return err
	}

	C.Z3_solver_set_params(ctx.raw, solver, params)
	return ctx.err("Z3_solver_set_params")
}

// toAST returns a new instance of Z3_ast from a symex expression.
func (ctx *Context) toAST(expr symex.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *symex.ConstantExpr:
		return ctx.toConstantAST(expr)
	case *symex.VarExpr:
		return ctx.toVarAST(expr)
	case *symex.Array:
		return ctx.makeArrayWithUpdate(expr, expr.Updates)
	case *symex.SelectExpr:
		return ctx.toSelectAST(expr)
	case *symex.CastExpr:
		return ctx.toCastAST(expr)
	case *symex.LenExpr:
		return ctx.toLenAST(expr)
	case *symex.NegExpr:
		return ctx.toNegAST(expr)
	case *symex.NotExpr:
		return ctx.toNotAST(expr)
	case *symex.BinaryExpr:
		return ctx.toBinaryAST(expr)
	default:
		return nil, fmt.Errorf("z3.Context.toAST: invalid expression type: %T", expr)
	}
}

func (ctx *Context) toConstantAST(expr *symex.ConstantExpr) (C.Z3_ast, error) {
	switch expr.Type {
	case symex.TypeBool:
		if expr.IsTrue() {
			return ctx.makeTrue()
		}
		return ctx.makeFalse()
	case symex.TypeInt:
		return ctx.makeNumeral(expr.Int.String(), symex.TypeInt)
	case symex.TypeFloat:
		return ctx.makeNumeral(expr.Float.RatString(), symex.TypeFloat)
	case symex.TypeString:
		return ctx.makeString(expr.Str)
	default:
		return nil, fmt.Errorf("z3.Context.toConstantAST: invalid expression type: %s", expr.Type)
	}
}

func (ctx *Context) toVarAST(expr *symex.VarExpr) (C.Z3_ast, error) {
	sort, err := ctx.makeSort(expr.Type)
	if err != nil {
		return nil, err
	}
	return ctx.makeConst(expr.Name, sort)
}

func (ctx *Context) toSelectAST(expr *symex.SelectExpr) (C.Z3_ast, error) {
	array, err := ctx.makeArrayWithUpdate(expr.Array, expr.Array.Updates)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(expr.Index)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_select(ctx.raw, array, index), ctx.err("Z3_mk_select")
}

func (ctx *Context) toCastAST(expr *symex.CastExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Src)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_int2real(ctx.raw, src), ctx.err("Z3_mk_int2real")
}

func (ctx *Context) toLenAST(expr *symex.LenExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_seq_length(ctx.raw, src), ctx.err("Z3_mk_seq_length")
}

func (ctx *Context) toNegAST(expr *symex.NegExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unary_minus(ctx.raw, src), ctx.err("Z3_mk_unary_minus")
}

func (ctx *Context) toNotAST(expr *symex.NotExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")
}

func (ctx *Context) toBinaryAST(expr *symex.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	switch expr.Op {
	case symex.ADD:
		if symex.ExprType(expr.LHS) == symex.TypeString {
			return ctx.makeConcat(lhs, rhs)
		}
		return ctx.makeAdd(lhs, rhs)
	case symex.SUB:
		return ctx.makeSub(lhs, rhs)
	case symex.MUL:
		return ctx.makeMul(lhs, rhs)
	case symex.DIV:
		if symex.ExprType(expr.LHS) == symex.TypeFloat {
			return C.Z3_mk_div(ctx.raw, lhs, rhs), ctx.err("Z3_mk_div")
		}
		return ctx.makeTruncDiv(lhs, rhs)
	case symex.REM:
		return ctx.makeTruncRem(lhs, rhs)
	case symex.FLOORDIV:
		return ctx.makeFloorDiv(lhs, rhs)
	case symex.MOD:
		return ctx.makeFloorMod(lhs, rhs)
	case symex.AND:
		return ctx.makeAnd(lhs, rhs)
	case symex.OR:
		return ctx.makeOr(lhs, rhs)
	case symex.EQ:
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case symex.NE:
		eq := C.Z3_mk_eq(ctx.raw, lhs, rhs)
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	case symex.LT:
		return C.Z3_mk_lt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_lt")
	case symex.LE:
		return C.Z3_mk_le(ctx.raw, lhs, rhs), ctx.err("Z3_mk_le")
	case symex.GT:
		return C.Z3_mk_gt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_gt")
	case symex.GE:
		return C.Z3_mk_ge(ctx.raw, lhs, rhs), ctx.err("Z3_mk_ge")
	default:
		return nil, fmt.Errorf("z3.Context.toBinaryAST: unexpected operation: %s", expr.Op)
	}
}

// makeTruncDiv returns the quotient of a & b rounded toward zero.
// Z3's integer division rounds so that the remainder is non-negative.
//
//	ite((a >= 0) == (b >= 0), div(|a|, |b|), -div(|a|, |b|))
func (ctx *Context) makeTruncDiv(a, b C.Z3_ast) (C.Z3_ast, error) {
	absA, err := ctx.makeAbs(a)
	if err != nil {
		return nil, err
	}
	absB, err := ctx.makeAbs(b)
	if err != nil {
		return nil, err
	}
	q := C.Z3_mk_div(ctx.raw, absA, absB)
	if err := ctx.err("Z3_mk_div"); err != nil {
		return nil, err
	}
	negQ := C.Z3_mk_unary_minus(ctx.raw, q)
	if err := ctx.err("Z3_mk_unary_minus"); err != nil {
		return nil, err
	}

	aNonNeg, err := ctx.makeNonNegative(a)
	if err != nil {
		return nil, err
	}
	bNonNeg, err := ctx.makeNonNegative(b)
	if err != nil {
		return nil, err
	}
	sameSign := C.Z3_mk_eq(ctx.raw, aNonNeg, bNonNeg)
	if err := ctx.err("Z3_mk_eq"); err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, sameSign, q, negQ), ctx.err("Z3_mk_ite")
}

// makeTruncRem returns a - b*truncdiv(a, b).
func (ctx *Context) makeTruncRem(a, b C.Z3_ast) (C.Z3_ast, error) {
	q, err := ctx.makeTruncDiv(a, b)
	if err != nil {
		return nil, err
	}
	return ctx.makeRemainder(a, b, q)
}

// makeFloorDiv returns the quotient of a & b rounded toward negative infinity.
//
//	ite(b >= 0, div(a, b), div(-a, -b))
func (ctx *Context) makeFloorDiv(a, b C.Z3_ast) (C.Z3_ast, error) {
	q := C.Z3_mk_div(ctx.raw, a, b)
	if err := ctx.err("Z3_mk_div"); err != nil {
		return nil, err
	}
	negA := C.Z3_mk_unary_minus(ctx.raw, a)
	if err := ctx.err("Z3_mk_unary_minus"); err != nil {
		return nil, err
	}
	negB := C.Z3_mk_unary_minus(ctx.raw, b)
	if err := ctx.err("Z3_mk_unary_minus"); err != nil {
		return nil, err
	}
	negQ := C.Z3_mk_div(ctx.raw, negA, negB)
	if err := ctx.err("Z3_mk_div"); err != nil {
		return nil, err
	}

	bNonNeg, err := ctx.makeNonNegative(b)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, bNonNeg, q, negQ), ctx.err("Z3_mk_ite")
}

// makeFloorMod returns a - b*floordiv(a, b).
func (ctx *Context) makeFloorMod(a, b C.Z3_ast) (C.Z3_ast, error) {
	q, err := ctx.makeFloorDiv(a, b)
	if err != nil {
		return nil, err
	}
	return ctx.makeRemainder(a, b, q)
}

// makeRemainder returns a - b*q.
func (ctx *Context) makeRemainder(a, b, q C.Z3_ast) (C.Z3_ast, error) {
	bq, err := ctx.makeMul(b, q)
	if err != nil {
		return nil, err
	}
	return ctx.makeSub(a, bq)
}

func (ctx *Context) makeAbs(a C.Z3_ast) (C.Z3_ast, error) {
	nonNeg, err := ctx.makeNonNegative(a)
	if err != nil {
		return nil, err
	}
	neg := C.Z3_mk_unary_minus(ctx.raw, a)
	if err := ctx.err("Z3_mk_unary_minus"); err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, nonNeg, a, neg), ctx.err("Z3_mk_ite")
}

func (ctx *Context) makeNonNegative(a C.Z3_ast) (C.Z3_ast, error) {
	zero, err := ctx.makeNumeral("0", symex.TypeInt)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ge(ctx.raw, a, zero), ctx.err("Z3_mk_ge")
}

func (ctx *Context) makeAdd(lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_add(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_add")
}

func (ctx *Context) makeSub(lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_sub(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_sub")
}

func (ctx *Context) makeMul(lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_mul(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_mul")
}

func (ctx *Context) makeAnd(lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
}

func (ctx *Context) makeOr(lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
}

func (ctx *Context) makeConcat(lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_seq_concat(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_seq_concat")
}

func (ctx *Context) makeTrue() (C.Z3_ast, error) {
	return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
}

func (ctx *Context) makeFalse() (C.Z3_ast, error) {
	return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
}

// makeNumeral returns an int or real numeral from its decimal or "p/q" text.
func (ctx *Context) makeNumeral(s string, typ symex.Type) (C.Z3_ast, error) {
	sort, err := ctx.makeSort(typ)
	if err != nil {
		return nil, err
	}

	neg := strings.HasPrefix(s, "-")
	cs := C.CString(strings.TrimPrefix(s, "-"))
	defer C.free(unsafe.Pointer(cs))

	v := C.Z3_mk_numeral(ctx.raw, cs, sort)
	if err := ctx.err("Z3_mk_numeral"); err != nil {
		return nil, err
	} else if !neg {
		return v, nil
	}
	return C.Z3_mk_unary_minus(ctx.raw, v), ctx.err("Z3_mk_unary_minus")
}

// maxChar is the largest character Z3 accepts in a string.
const maxChar = 0x2ffff

// makeString returns a string literal built from the code points of s so
// backslashes & non-ASCII characters are never read as Z3 escapes.
func (ctx *Context) makeString(s string) (C.Z3_ast, error) {
	chars := make([]C.uint, 0, len(s))
	for _, r := range s {
		if r > maxChar {
			return nil, fmt.Errorf("z3: character out of range: %U", r)
		}
		chars = append(chars, C.uint(r))
	}

	var p *C.uint
	if len(chars) > 0 {
		p = &chars[0]
	}
	return C.Z3_mk_u32string(ctx.raw, C.uint(len(chars)), p), ctx.err("Z3_mk_u32string")
}

// stringValue returns the Go string for a string literal from a model.
func (ctx *Context) stringValue(ast C.Z3_ast) (string, error) {
	n := C.Z3_get_string_length(ctx.raw, ast)
	if err := ctx.err("Z3_get_string_length"); err != nil {
		return "", err
	} else if n == 0 {
		return "", nil
	}

	chars := make([]C.uint, n)
	C.Z3_get_string_contents(ctx.raw, ast, n, &chars[0])
	if err := ctx.err("Z3_get_string_contents"); err != nil {
		return "", err
	}

	var buf strings.Builder
	for _, ch := range chars {
		if uint32(ch) > maxChar || !utf8.ValidRune(rune(ch)) {
			return "", fmt.Errorf("z3: invalid character in model value: %#x", uint32(ch))
		}
		buf.WriteRune(rune(ch))
	}
	return buf.String(), nil
}

// makeConst returns a named constant of the given sort.
func (ctx *Context) makeConst(name string, sort C.Z3_sort) (C.Z3_ast, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	nameSymbol := C.Z3_mk_string_symbol(ctx.raw, cname)
	return C.Z3_mk_const(ctx.raw, nameSymbol, sort), ctx.err("Z3_mk_const")
}

// makeSort returns the Z3 sort for a scalar type or container.
// Lists map ints to ints and maps map strings to ints.
func (ctx *Context) makeSort(typ symex.Type) (C.Z3_sort, error) {
	switch typ {
	case symex.TypeInt:
		return C.Z3_mk_int_sort(ctx.raw), ctx.err("Z3_mk_int_sort")
	case symex.TypeFloat:
		return C.Z3_mk_real_sort(ctx.raw), ctx.err("Z3_mk_real_sort")
	case symex.TypeBool:
		return C.Z3_mk_bool_sort(ctx.raw), ctx.err("Z3_mk_bool_sort")
	case symex.TypeString:
		return C.Z3_mk_string_sort(ctx.raw), ctx.err("Z3_mk_string_sort")
	case symex.TypeList, symex.TypeMap:
		domainSort, err := ctx.makeSort(symex.TypeInt)
		if err != nil {
			return nil, err
		}
		if typ == symex.TypeMap {
			if domainSort, err = ctx.makeSort(symex.TypeString); err != nil {
				return nil, err
			}
		}
		rangeSort, err := ctx.makeSort(symex.TypeInt)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_array_sort(ctx.raw, domainSort, rangeSort), ctx.err("Z3_mk_array_sort")
	default:
		return nil, fmt.Errorf("z3.Context.makeSort: invalid type: %q", typ)
	}
}

// makeArrayConst returns the root array with no updates. Literal arrays
// have no name and read as zero at every index.
func (ctx *Context) makeArrayConst(array *symex.Array) (C.Z3_ast, error) {
	if array.Name != "" {
		sort, err := ctx.makeSort(array.Type)
		if err != nil {
			return nil, err
		}
		return ctx.makeConst(array.Name, sort)
	}

	domainSort, err := ctx.makeSort(array.KeyType())
	if err != nil {
		return nil, err
	}
	zero, err := ctx.makeNumeral("0", symex.TypeInt)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_const_array(ctx.raw, domainSort, zero), ctx.err("Z3_mk_const_array")
}

// makeArrayWithUpdate returns an array with updates recursively applied.
func (ctx *Context) makeArrayWithUpdate(root *symex.Array, upd *symex.ArrayUpdate) (C.Z3_ast, error) {
	if upd == nil {
		return ctx.makeArrayConst(root)
	}

	array, err := ctx.makeArrayWithUpdate(root, upd.Next)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(upd.Index)
	if err != nil {
		return nil, err
	}
	value, err := ctx.toAST(upd.Value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_store(ctx.raw, array, index, value), ctx.err("Z3_mk_store")
}

// eval evaluates terms against the model into raw values.
func (ctx *Context) eval(model C.Z3_model, terms []symex.Expr) ([]symex.RawValue, error) {
	values := make([]symex.RawValue, 0, len(terms))
	for _, term := range terms {
		value, err := ctx.evalTerm(model, term)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// evalTerm evaluates a single scalar term with model completion.
func (ctx *Context) evalTerm(model C.Z3_model, term symex.Expr) (symex.RawValue, error) {
	typ := symex.ExprType(term)
	value := symex.RawValue{Type: typ}

	z3Term, err := ctx.toAST(term)
	if err != nil {
		return value, err
	}

	var z3Expr C.Z3_ast
	if ok := C.Z3_model_eval(ctx.raw, model, z3Term, C.bool(true), &z3Expr); !bool(ok) {
		if err := ctx.err("Z3_model_eval"); err != nil {
			return value, err
		}
		return value, fmt.Errorf("z3: cannot evaluate term: %s", term)
	}

	switch typ {
	case symex.TypeInt, symex.TypeFloat:
		// Irrational reals are approximated by their lower rational bound.
		if typ == symex.TypeFloat && bool(C.Z3_is_algebraic_number(ctx.raw, z3Expr)) {
			z3Expr = C.Z3_get_algebraic_number_lower(ctx.raw, z3Expr, 20)
			if err := ctx.err("Z3_get_algebraic_number_lower"); err != nil {
				return value, err
			}
		}
		if !bool(C.Z3_is_numeral_ast(ctx.raw, z3Expr)) {
			return value, fmt.Errorf("z3: non-numeral model value: %s", ctx.astToString(z3Expr))
		}
		value.Text = C.GoString(C.Z3_get_numeral_string(ctx.raw, z3Expr))
		return value, ctx.err("Z3_get_numeral_string")

	case symex.TypeBool:
		switch C.Z3_get_bool_value(ctx.raw, z3Expr) {
		case C.Z3_L_TRUE:
			value.Text = "true"
		case C.Z3_L_FALSE:
			value.Text = "false"
		default:
			return value, fmt.Errorf("z3: non-boolean model value: %s", ctx.astToString(z3Expr))
		}
		return value, nil

	case symex.TypeString:
		if !bool(C.Z3_is_string(ctx.raw, z3Expr)) {
			return value, fmt.Errorf("z3: non-string model value: %s", ctx.astToString(z3Expr))
		}
		text, err := ctx.stringValue(z3Expr)
		value.Text = text
		return value, err

	default:
		return value, fmt.Errorf("z3.Context.evalTerm: invalid term type: %s", typ)
	}
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

// Stats represents statistics for the solver.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
