// Package ir defines the simplified statement model explored by the engine.
//
// A Program is a single function body whose parameters carry declared type
// tags. Programs are produced by front ends (see package gofront) or decoded
// from YAML/JSON documents with Parse.
package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Program represents a function body lowered to statements.
type Program struct {
	Name   string
	Params []*Param
	Body   []Stmt
}

// Param represents a symbolic input of the program.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Node represents any statement or expression.
type Node interface {
	node()
}

// Pos is the source line of a statement. Zero means unknown.
type Pos struct {
	Line int
}

// Position returns p. Embedding Pos satisfies the position part of Stmt.
func (p Pos) Position() Pos { return p }

// String returns "L<line>" or "-" if the line is unknown.
func (p Pos) String() string {
	if p.Line == 0 {
		return "-"
	}
	return "L" + strconv.Itoa(p.Line)
}

// Stmt represents a statement.
type Stmt interface {
	Node
	Position() Pos
	stmt()
}

func (*AssertStmt) stmt()      {}
func (*AssignStmt) stmt()      {}
func (*AssumeStmt) stmt()      {}
func (*BreakStmt) stmt()       {}
func (*ContinueStmt) stmt()    {}
func (*DeclareStmt) stmt()     {}
func (*ExprStmt) stmt()        {}
func (*IfStmt) stmt()          {}
func (*RangeStmt) stmt()       {}
func (*ReturnStmt) stmt()      {}
func (*UnsupportedStmt) stmt() {}
func (*WhileStmt) stmt()       {}

func (*AssertStmt) node()      {}
func (*AssignStmt) node()      {}
func (*AssumeStmt) node()      {}
func (*BreakStmt) node()       {}
func (*ContinueStmt) node()    {}
func (*DeclareStmt) node()     {}
func (*ExprStmt) node()        {}
func (*IfStmt) node()          {}
func (*RangeStmt) node()       {}
func (*ReturnStmt) node()      {}
func (*UnsupportedStmt) node() {}
func (*WhileStmt) node()       {}

// AssignStmt binds Value to Target, or to Target[Index] when Index is set.
// Op is "=" or an augmented operator such as "+=".
type AssignStmt struct {
	Pos
	Target string
	Index  Expr
	Op     string
	Value  Expr
}

// DeclareStmt introduces a fresh symbolic variable.
type DeclareStmt struct {
	Pos
	Name string
	Type string
}

// IfStmt represents a two-way conditional.
type IfStmt struct {
	Pos
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// WhileStmt represents a loop guarded by Cond. Site optionally names the loop.
type WhileStmt struct {
	Pos
	Site string
	Cond Expr
	Body []Stmt
}

// RangeStmt represents "for Var in range(Start, Stop, Step)". A nil Start is
// zero and a nil Step is one.
type RangeStmt struct {
	Pos
	Site  string
	Var   string
	Start Expr
	Stop  Expr
	Step  Expr
	Body  []Stmt
}

// ReturnStmt ends the program. Value may be nil.
type ReturnStmt struct {
	Pos
	Value Expr
}

// AssumeStmt restricts the remaining path to executions where Cond holds.
type AssumeStmt struct {
	Pos
	Cond Expr
}

// AssertStmt checks that Cond holds on every execution reaching it.
type AssertStmt struct {
	Pos
	Cond    Expr
	Message string
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	Pos
	X Expr
}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	Pos
}

// ContinueStmt starts the next iteration of the innermost loop.
type ContinueStmt struct {
	Pos
}

// UnsupportedStmt is a placeholder for source constructs the front end could
// not lower. Reaching one fails the exploring state.
type UnsupportedStmt struct {
	Pos
	Kind string
	Text string
}

// Expr represents an expression.
type Expr interface {
	Node
	String() string
	expr()
}

func (*BadExpr) expr()    {}
func (*BinaryExpr) expr() {}
func (*BoolLit) expr()    {}
func (*CallExpr) expr()   {}
func (*FloatLit) expr()   {}
func (*Ident) expr()      {}
func (*IndexExpr) expr()  {}
func (*IntLit) expr()     {}
func (*ListLit) expr()    {}
func (*MapLit) expr()     {}
func (*StringLit) expr()  {}
func (*UnaryExpr) expr()  {}

func (*BadExpr) node()    {}
func (*BinaryExpr) node() {}
func (*BoolLit) node()    {}
func (*CallExpr) node()   {}
func (*FloatLit) node()   {}
func (*Ident) node()      {}
func (*IndexExpr) node()  {}
func (*IntLit) node()     {}
func (*ListLit) node()    {}
func (*MapLit) node()     {}
func (*StringLit) node()  {}
func (*UnaryExpr) node()  {}

// Ident references a variable.
type Ident struct {
	Name string
}

func (e *Ident) String() string { return e.Name }

// IntLit is an integer literal in Go syntax (decimal, hex, octal or binary).
type IntLit struct {
	Value string
}

func (e *IntLit) String() string { return e.Value }

// FloatLit is a decimal floating point literal.
type FloatLit struct {
	Value string
}

func (e *FloatLit) String() string { return e.Value }

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
}

func (e *BoolLit) String() string { return strconv.FormatBool(e.Value) }

// StringLit is a string literal holding the unquoted value.
type StringLit struct {
	Value string
}

func (e *StringLit) String() string { return strconv.Quote(e.Value) }

// ListLit is a list literal.
type ListLit struct {
	Elems []Expr
}

func (e *ListLit) String() string { return "[" + joinExprs(e.Elems) + "]" }

// MapLit is a map literal. Keys & Values have the same length.
type MapLit struct {
	Keys   []Expr
	Values []Expr
}

func (e *MapLit) String() string {
	a := make([]string, len(e.Keys))
	for i := range e.Keys {
		a[i] = fmt.Sprintf("%s: %s", e.Keys[i], e.Values[i])
	}
	return "{" + strings.Join(a, ", ") + "}"
}

// BinaryExpr applies Op to X and Y.
type BinaryExpr struct {
	Op string
	X  Expr
	Y  Expr
}

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", operand(e.X), e.Op, operand(e.Y))
}

// UnaryExpr applies Op ("not" or "-") to X.
type UnaryExpr struct {
	Op string
	X  Expr
}

func (e *UnaryExpr) String() string {
	if e.Op == "not" {
		return "not " + operand(e.X)
	}
	return e.Op + operand(e.X)
}

// CallExpr calls a named builtin.
type CallExpr struct {
	Func string
	Args []Expr
}

func (e *CallExpr) String() string { return e.Func + "(" + joinExprs(e.Args) + ")" }

// IndexExpr reads X[Index].
type IndexExpr struct {
	X     Expr
	Index Expr
}

func (e *IndexExpr) String() string { return fmt.Sprintf("%s[%s]", operand(e.X), e.Index) }

// BadExpr is a placeholder for an expression the front end could not lower.
type BadExpr struct {
	Text string
}

func (e *BadExpr) String() string { return e.Text }

func operand(e Expr) string {
	switch e.(type) {
	case *BinaryExpr, *UnaryExpr:
		return "(" + e.String() + ")"
	default:
		return e.String()
	}
}

func joinExprs(a []Expr) string {
	s := make([]string, len(a))
	for i := range a {
		s[i] = a[i].String()
	}
	return strings.Join(s, ", ")
}

// Walk calls fn for every statement in body, depth-first in source order.
func Walk(body []Stmt, fn func(Stmt)) {
	for _, stmt := range body {
		fn(stmt)
		switch stmt := stmt.(type) {
		case *IfStmt:
			Walk(stmt.Then, fn)
			Walk(stmt.Else, fn)
		case *WhileStmt:
			Walk(stmt.Body, fn)
		case *RangeStmt:
			Walk(stmt.Body, fn)
		}
	}
}
