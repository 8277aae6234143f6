package symex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/benbjohnson/symex/ir"
)

// typeUnknown is the type of expressions that are only checked during
// exploration, such as calls to unsupported functions.
const typeUnknown = Type("")

// Validate checks the structure & typing of a program before exploration.
// Returns a *ValidationError listing every problem found.
func Validate(prog *ir.Program) error {
	v := &validator{env: make(map[string]Type)}

	if prog == nil {
		v.errorf(ir.Pos{}, "program required")
		return v.err()
	}

	for _, p := range prog.Params {
		typ, err := ParseType(p.Type)
		if err != nil {
			v.errorf(ir.Pos{}, "param %q: %s", p.Name, err)
			continue
		} else if p.Name == "" {
			v.errorf(ir.Pos{}, "param name required")
			continue
		} else if _, ok := v.env[p.Name]; ok {
			v.errorf(ir.Pos{}, "duplicate param: %q", p.Name)
			continue
		}
		v.env[p.Name] = typ
	}

	v.checkStmts(prog.Body)
	return v.err()
}

type validator struct {
	env    map[string]Type
	loops  int
	errors []string
}

func (v *validator) err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

func (v *validator) errorf(pos ir.Pos, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if pos.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", pos.Line, msg)
	}
	v.errors = append(v.errors, msg)
}

// define records the type of a variable. A variable keeps one type for the
// whole body, so an int is never stored into a float variable.
func (v *validator) define(pos ir.Pos, name string, typ Type) {
	if typ == typeUnknown {
		if _, ok := v.env[name]; !ok {
			v.env[name] = typ
		}
		return
	}

	prev, ok := v.env[name]
	switch {
	case !ok, prev == typeUnknown:
		v.env[name] = typ
	case prev == typ:
	default:
		v.errorf(pos, "inconsistent type for %q: %s and %s", name, prev, typ)
	}
}

func (v *validator) checkStmts(stmts []ir.Stmt) {
	for _, stmt := range stmts {
		v.checkStmt(stmt)
	}
}

func (v *validator) checkStmt(stmt ir.Stmt) {
	pos := stmt.Position()

	switch stmt := stmt.(type) {
	case *ir.AssignStmt:
		v.checkAssignStmt(stmt)

	case *ir.DeclareStmt:
		typ, err := ParseType(stmt.Type)
		if err != nil {
			v.errorf(pos, "declare %q: %s", stmt.Name, err)
			return
		} else if stmt.Name == "" {
			v.errorf(pos, "declare: name required")
			return
		}
		v.define(pos, stmt.Name, typ)

	case *ir.IfStmt:
		v.checkCond(pos, stmt.Cond)
		v.checkStmts(stmt.Then)
		v.checkStmts(stmt.Else)

	case *ir.WhileStmt:
		v.checkCond(pos, stmt.Cond)
		v.loops++
		v.checkStmts(stmt.Body)
		v.loops--

	case *ir.RangeStmt:
		v.checkRangeStmt(stmt)

	case *ir.ReturnStmt:
		if stmt.Value != nil {
			v.checkExpr(pos, stmt.Value)
		}

	case *ir.AssumeStmt:
		v.checkCond(pos, stmt.Cond)

	case *ir.AssertStmt:
		v.checkCond(pos, stmt.Cond)

	case *ir.ExprStmt:
		v.checkExpr(pos, stmt.X)

	case *ir.BreakStmt:
		if v.loops == 0 {
			v.errorf(pos, "break outside loop")
		}

	case *ir.ContinueStmt:
		if v.loops == 0 {
			v.errorf(pos, "continue outside loop")
		}

	case *ir.UnsupportedStmt:
		// reported per state during exploration

	default:
		v.errorf(pos, "unexpected statement: %T", stmt)
	}
}

func (v *validator) checkAssignStmt(stmt *ir.AssignStmt) {
	pos := stmt.Position()
	if stmt.Target == "" {
		v.errorf(pos, "assign: target required")
		return
	} else if stmt.Value == nil {
		v.errorf(pos, "assign %q: value required", stmt.Target)
		return
	}

	op, err := parseAssignOp(stmt.Op)
	if err != nil {
		v.errorf(pos, "assign %q: %s", stmt.Target, err)
		return
	}
	typ := v.checkExpr(pos, stmt.Value)

	// Element assignment requires an existing container.
	if stmt.Index != nil {
		ctyp, ok := v.env[stmt.Target]
		if !ok {
			v.errorf(pos, "undefined variable: %s", stmt.Target)
			return
		}
		index := v.checkExpr(pos, stmt.Index)
		switch ctyp {
		case TypeList:
			v.expect(pos, index, TypeInt, "list index")
		case TypeMap:
			v.expect(pos, index, TypeString, "map key")
		case typeUnknown:
			return
		default:
			v.errorf(pos, "cannot assign to element of %s %q", ctyp, stmt.Target)
			return
		}
		if op != nil {
			if _, err := CheckBinaryExpr(*op, TypeInt, typ); err != nil && typ != typeUnknown {
				v.errorf(pos, "%s", err)
			}
			return
		}
		v.expect(pos, typ, TypeInt, "element value")
		return
	}

	// Augmented assignment reads the target first.
	if op != nil {
		prev, ok := v.env[stmt.Target]
		if !ok {
			v.errorf(pos, "undefined variable: %s", stmt.Target)
			return
		} else if prev == typeUnknown || typ == typeUnknown {
			return
		}
		result, err := CheckBinaryExpr(*op, prev, typ)
		if err != nil {
			v.errorf(pos, "%s", err)
			return
		}
		typ = result
	}
	v.define(pos, stmt.Target, typ)
}

func (v *validator) checkRangeStmt(stmt *ir.RangeStmt) {
	pos := stmt.Position()
	if stmt.Var == "" {
		v.errorf(pos, "range: variable required")
	}
	if stmt.Start != nil {
		v.expect(pos, v.checkExpr(pos, stmt.Start), TypeInt, "range start")
	}
	if stmt.Stop == nil {
		v.errorf(pos, "range: stop required")
	} else {
		v.expect(pos, v.checkExpr(pos, stmt.Stop), TypeInt, "range stop")
	}
	if stmt.Step != nil {
		if step, ok := constantInt(stmt.Step); !ok {
			v.errorf(pos, "range step must be an integer constant: %s", stmt.Step)
		} else if step.Sign() == 0 {
			v.errorf(pos, "range step must not be zero")
		} else if !step.IsInt64() {
			v.errorf(pos, "range step out of range: %s", step)
		}
	}

	if stmt.Var != "" {
		v.define(pos, stmt.Var, TypeInt)
	}
	v.loops++
	v.checkStmts(stmt.Body)
	v.loops--
}

func (v *validator) checkCond(pos ir.Pos, cond ir.Expr) {
	if cond == nil {
		v.errorf(pos, "condition required")
		return
	}
	v.expect(pos, v.checkExpr(pos, cond), TypeBool, "condition")
}

func (v *validator) expect(pos ir.Pos, got, want Type, what string) {
	if got != want && got != typeUnknown {
		v.errorf(pos, "%s must be %s, got %s", what, want, got)
	}
}

// checkExpr returns the type of expr, recording any errors.
func (v *validator) checkExpr(pos ir.Pos, expr ir.Expr) Type {
	switch expr := expr.(type) {
	case *ir.Ident:
		typ, ok := v.env[expr.Name]
		if !ok {
			v.errorf(pos, "undefined variable: %s", expr.Name)
			return typeUnknown
		}
		return typ

	case *ir.IntLit:
		if _, ok := new(big.Int).SetString(expr.Value, 0); !ok {
			v.errorf(pos, "invalid integer literal: %s", expr.Value)
		}
		return TypeInt

	case *ir.FloatLit:
		if _, ok := new(big.Rat).SetString(expr.Value); !ok {
			v.errorf(pos, "invalid float literal: %s", expr.Value)
		}
		return TypeFloat

	case *ir.BoolLit:
		return TypeBool

	case *ir.StringLit:
		return TypeString

	case *ir.ListLit:
		for _, elem := range expr.Elems {
			v.expect(pos, v.checkExpr(pos, elem), TypeInt, "list element")
		}
		return TypeList

	case *ir.MapLit:
		for i := range expr.Keys {
			v.expect(pos, v.checkExpr(pos, expr.Keys[i]), TypeString, "map key")
			v.expect(pos, v.checkExpr(pos, expr.Values[i]), TypeInt, "map value")
		}
		return TypeMap

	case *ir.BinaryExpr:
		op, err := ParseBinaryOp(expr.Op)
		lhs, rhs := v.checkExpr(pos, expr.X), v.checkExpr(pos, expr.Y)
		if err != nil {
			v.errorf(pos, "%s", err)
			return typeUnknown
		} else if lhs == typeUnknown || rhs == typeUnknown {
			if op.IsCompare() || op.IsLogical() {
				return TypeBool
			}
			return typeUnknown
		}
		typ, err := CheckBinaryExpr(op, lhs, rhs)
		if err != nil {
			v.errorf(pos, "%s", err)
			return typeUnknown
		}
		return typ

	case *ir.UnaryExpr:
		typ := v.checkExpr(pos, expr.X)
		switch expr.Op {
		case "not", "!":
			v.expect(pos, typ, TypeBool, "operand of not")
			return TypeBool
		case "-":
			if typ != typeUnknown && !typ.IsNumeric() {
				v.errorf(pos, "invalid operand type for -: %s", typ)
				return typeUnknown
			}
			return typ
		default:
			v.errorf(pos, "unknown operator: %q", expr.Op)
			return typeUnknown
		}

	case *ir.CallExpr:
		return v.checkCallExpr(pos, expr)

	case *ir.IndexExpr:
		typ, index := v.checkExpr(pos, expr.X), v.checkExpr(pos, expr.Index)
		switch typ {
		case TypeList:
			v.expect(pos, index, TypeInt, "list index")
			return TypeInt
		case TypeMap:
			v.expect(pos, index, TypeString, "map key")
			return TypeInt
		default:
			return typeUnknown
		}

	case *ir.BadExpr:
		return typeUnknown

	case nil:
		v.errorf(pos, "expression required")
		return typeUnknown

	default:
		v.errorf(pos, "unexpected expression: %T", expr)
		return typeUnknown
	}
}

func (v *validator) checkCallExpr(pos ir.Pos, call *ir.CallExpr) Type {
	args := make([]Type, len(call.Args))
	for i, arg := range call.Args {
		args[i] = v.checkExpr(pos, arg)
	}

	typ, err := builtinType(call.Func, args)
	if err != nil {
		v.errorf(pos, "%s", err)
		return typeUnknown
	}
	return typ
}

// builtinType returns the result type of a builtin call. Unknown functions
// have an unknown type and fail the calling state during exploration.
func builtinType(name string, args []Type) (Type, error) {
	for _, arg := range args {
		if arg == typeUnknown {
			return typeUnknown, nil
		}
	}

	switch name {
	case "len":
		if len(args) != 1 {
			return typeUnknown, fmt.Errorf("len: expected 1 argument, got %d", len(args))
		} else if args[0] != TypeString && args[0] != TypeList {
			return typeUnknown, fmt.Errorf("len: invalid argument type: %s", args[0])
		}
		return TypeInt, nil

	case "float":
		if len(args) != 1 {
			return typeUnknown, fmt.Errorf("float: expected 1 argument, got %d", len(args))
		} else if !args[0].IsNumeric() {
			return typeUnknown, fmt.Errorf("float: invalid argument type: %s", args[0])
		}
		return TypeFloat, nil

	case "int":
		if len(args) != 1 {
			return typeUnknown, fmt.Errorf("int: expected 1 argument, got %d", len(args))
		} else if args[0] != TypeInt {
			return typeUnknown, nil // float truncation is not modeled
		}
		return TypeInt, nil

	case "append":
		if len(args) != 2 {
			return typeUnknown, fmt.Errorf("append: expected 2 arguments, got %d", len(args))
		} else if args[0] != TypeList || args[1] != TypeInt {
			return typeUnknown, fmt.Errorf("append: invalid argument types: %s, %s", args[0], args[1])
		}
		return TypeList, nil

	default:
		return typeUnknown, nil
	}
}

// parseAssignOp returns the binary operation of an augmented assignment
// such as "+=". Returns nil for a plain assignment.
func parseAssignOp(s string) (*BinaryOp, error) {
	if s == "" || s == "=" || s == ":=" {
		return nil, nil
	} else if !strings.HasSuffix(s, "=") {
		return nil, fmt.Errorf("unknown assignment operator: %q", s)
	}

	op, err := ParseBinaryOp(strings.TrimSuffix(s, "="))
	if err != nil {
		return nil, fmt.Errorf("unknown assignment operator: %q", s)
	} else if !op.IsArithmetic() {
		return nil, fmt.Errorf("unknown assignment operator: %q", s)
	}
	return &op, nil
}

// constantInt returns the value of an integer literal, optionally negated.
func constantInt(expr ir.Expr) (*big.Int, bool) {
	switch expr := expr.(type) {
	case *ir.IntLit:
		return new(big.Int).SetString(expr.Value, 0)
	case *ir.UnaryExpr:
		if expr.Op != "-" {
			return nil, false
		}
		v, ok := constantInt(expr.X)
		if !ok {
			return nil, false
		}
		return v.Neg(v), true
	default:
		return nil, false
	}
}
