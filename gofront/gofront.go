// Package gofront lowers Go functions into programs for symbolic exploration.
//
// Function parameters become the symbolic inputs of the program. Only a
// small subset of Go is lowered: assignments, if statements, counting for
// loops, condition-only for loops, returns & calls to builtins. Anything else
// is lowered to an unsupported statement which fails the states reaching it.
//
// Calls to functions named "assume" & "assert" are lowered to assumptions &
// assertions. Calls to panic() are lowered to an assertion that always fails.
package gofront

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/format"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"github.com/benbjohnson/symex/ir"
	"golang.org/x/tools/go/packages"
)

// ErrFunctionNotFound is returned when the named function does not exist.
var ErrFunctionNotFound = errors.New("gofront: function not found")

// Load loads the packages matching pattern and lowers the function named name.
func Load(ctx context.Context, pattern, name string) (*ir.Program, error) {
	pkgs, err := packages.Load(&packages.Config{
		Mode:    packages.LoadSyntax,
		Context: ctx,
	}, pattern)
	if err != nil {
		return nil, err
	} else if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("packages contain errors")
	}

	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			if decl := findFunc(file, name); decl != nil {
				return Lower(pkg.Fset, pkg.TypesInfo, decl)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
}

// ParseFile parses & type checks a single Go source file and lowers the
// function named name. The src argument is passed to parser.ParseFile().
func ParseFile(filename string, src interface{}, name string) (*ir.Program, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, 0)
	if err != nil {
		return nil, err
	}

	info := &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}
	config := &types.Config{Importer: importer.Default()}
	if _, err := config.Check(file.Name.Name, fset, []*ast.File{file}, info); err != nil {
		return nil, err
	}

	decl := findFunc(file, name)
	if decl == nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return Lower(fset, info, decl)
}

// findFunc returns the top-level function named name, if any.
func findFunc(file *ast.File, name string) *ast.FuncDecl {
	for _, decl := range file.Decls {
		if decl, ok := decl.(*ast.FuncDecl); ok && decl.Recv == nil && decl.Name.Name == name {
			return decl
		}
	}
	return nil
}

// Lower converts a type-checked function declaration into a program.
// Returns an error if a parameter has a type with no type tag.
func Lower(fset *token.FileSet, info *types.Info, decl *ast.FuncDecl) (*ir.Program, error) {
	if decl.Body == nil {
		return nil, fmt.Errorf("function has no body: %s", decl.Name.Name)
	}

	l := &lowerer{fset: fset, info: info}
	prog := &ir.Program{Name: decl.Name.Name}

	for _, field := range decl.Type.Params.List {
		tag, err := l.typeTag(field.Type)
		if err != nil {
			return nil, err
		}
		for _, name := range field.Names {
			if name.Name == "_" {
				continue
			}
			prog.Params = append(prog.Params, &ir.Param{Name: name.Name, Type: tag})
		}
	}

	prog.Body = l.lowerStmts(decl.Body.List)
	return prog, nil
}

// TypeTag returns the type tag of a Go type. Returns an error for types with
// no tag, such as structs or slices of strings.
func TypeTag(typ types.Type) (string, error) {
	switch typ := typ.Underlying().(type) {
	case *types.Basic:
		switch {
		case typ.Info()&types.IsInteger != 0:
			return "int", nil
		case typ.Info()&types.IsFloat != 0:
			return "float", nil
		case typ.Info()&types.IsBoolean != 0:
			return "bool", nil
		case typ.Info()&types.IsString != 0:
			return "string", nil
		}
	case *types.Slice:
		if tag, _ := TypeTag(typ.Elem()); tag == "int" {
			return "list", nil
		}
	case *types.Map:
		k, _ := TypeTag(typ.Key())
		v, _ := TypeTag(typ.Elem())
		if k == "string" && v == "int" {
			return "map", nil
		}
	}
	return "", fmt.Errorf("unsupported type: %s", typ)
}

type lowerer struct {
	fset *token.FileSet
	info *types.Info
}

func (l *lowerer) typeTag(expr ast.Expr) (string, error) {
	tv, ok := l.info.Types[expr]
	if !ok {
		return "", fmt.Errorf("%s: type unknown: %s", l.fset.Position(expr.Pos()), types.ExprString(expr))
	}
	tag, err := TypeTag(tv.Type)
	if err != nil {
		return "", fmt.Errorf("%s: %s", l.fset.Position(expr.Pos()), err)
	}
	return tag, nil
}

// expr lowers a Go expression. Constant subexpressions, including named
// constants, are folded into literals of their type.
func (l *lowerer) expr(x ast.Expr) ir.Expr {
	return ir.FromGoExprWith(x, l.literal)
}

// literal returns x as a literal if it is a constant, or nil otherwise.
func (l *lowerer) literal(x ast.Expr) ir.Expr {
	tv, ok := l.info.Types[x]
	if !ok || tv.Value == nil {
		return nil
	}

	tag, err := TypeTag(tv.Type)
	if err != nil {
		return nil
	}
	switch tag {
	case "int":
		if v := constant.ToInt(tv.Value); v.Kind() == constant.Int {
			return &ir.IntLit{Value: v.ExactString()}
		}
	case "float":
		if v := constant.ToFloat(tv.Value); v.Kind() == constant.Float || v.Kind() == constant.Int {
			return &ir.FloatLit{Value: v.ExactString()}
		}
	case "bool":
		return &ir.BoolLit{Value: constant.BoolVal(tv.Value)}
	case "string":
		return &ir.StringLit{Value: constant.StringVal(tv.Value)}
	}
	return nil
}

func (l *lowerer) pos(node ast.Node) ir.Pos {
	return ir.Pos{Line: l.fset.Position(node.Pos()).Line}
}

// unsupported returns a placeholder statement for node.
func (l *lowerer) unsupported(node ast.Node, kind string) ir.Stmt {
	var buf bytes.Buffer
	if err := format.Node(&buf, l.fset, node); err != nil {
		buf.Reset()
	}
	text := strings.SplitN(buf.String(), "\n", 2)[0]
	return &ir.UnsupportedStmt{Pos: l.pos(node), Kind: kind, Text: text}
}

func (l *lowerer) lowerStmts(list []ast.Stmt) []ir.Stmt {
	var a []ir.Stmt
	for _, stmt := range list {
		a = append(a, l.lowerStmt(stmt)...)
	}
	return a
}

func (l *lowerer) lowerStmt(stmt ast.Stmt) []ir.Stmt {
	switch stmt := stmt.(type) {
	case *ast.AssignStmt:
		return []ir.Stmt{l.lowerAssignStmt(stmt)}
	case *ast.IncDecStmt:
		op := "+="
		if stmt.Tok == token.DEC {
			op = "-="
		}
		return []ir.Stmt{l.assign(stmt, stmt.X, op, &ir.IntLit{Value: "1"})}
	case *ast.DeclStmt:
		return l.lowerDeclStmt(stmt)
	case *ast.BlockStmt:
		return l.lowerStmts(stmt.List)
	case *ast.IfStmt:
		return l.lowerIfStmt(stmt)
	case *ast.ForStmt:
		return l.lowerForStmt(stmt)
	case *ast.ReturnStmt:
		switch len(stmt.Results) {
		case 0:
			return []ir.Stmt{&ir.ReturnStmt{Pos: l.pos(stmt)}}
		case 1:
			return []ir.Stmt{&ir.ReturnStmt{Pos: l.pos(stmt), Value: l.expr(stmt.Results[0])}}
		}
		return []ir.Stmt{l.unsupported(stmt, "multiple return values")}
	case *ast.BranchStmt:
		if stmt.Label != nil {
			return []ir.Stmt{l.unsupported(stmt, "labeled branch")}
		}
		switch stmt.Tok {
		case token.BREAK:
			return []ir.Stmt{&ir.BreakStmt{Pos: l.pos(stmt)}}
		case token.CONTINUE:
			return []ir.Stmt{&ir.ContinueStmt{Pos: l.pos(stmt)}}
		}
		return []ir.Stmt{l.unsupported(stmt, stmt.Tok.String())}
	case *ast.ExprStmt:
		return []ir.Stmt{l.lowerExprStmt(stmt)}
	case *ast.EmptyStmt:
		return nil
	default:
		kind := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*ast."), "Stmt"))
		return []ir.Stmt{l.unsupported(stmt, kind)}
	}
}

var assignOps = map[token.Token]string{
	token.ASSIGN:     "=",
	token.DEFINE:     "=",
	token.ADD_ASSIGN: "+=",
	token.SUB_ASSIGN: "-=",
	token.MUL_ASSIGN: "*=",
	token.QUO_ASSIGN: "/=",
	token.REM_ASSIGN: "%=",
}

func (l *lowerer) lowerAssignStmt(stmt *ast.AssignStmt) ir.Stmt {
	if len(stmt.Lhs) != 1 || len(stmt.Rhs) != 1 {
		return l.unsupported(stmt, "multiple assignment")
	}
	op, ok := assignOps[stmt.Tok]
	if !ok {
		return l.unsupported(stmt, "assignment operator "+stmt.Tok.String())
	}
	return l.assign(stmt, stmt.Lhs[0], op, l.expr(stmt.Rhs[0]))
}

// assign returns an assignment to a variable or to an element of one.
func (l *lowerer) assign(node ast.Node, lhs ast.Expr, op string, value ir.Expr) ir.Stmt {
	switch lhs := lhs.(type) {
	case *ast.Ident:
		if lhs.Name == "_" {
			return &ir.ExprStmt{Pos: l.pos(node), X: value}
		}
		return &ir.AssignStmt{Pos: l.pos(node), Target: lhs.Name, Op: op, Value: value}
	case *ast.IndexExpr:
		if ident, ok := lhs.X.(*ast.Ident); ok {
			return &ir.AssignStmt{Pos: l.pos(node), Target: ident.Name, Index: l.expr(lhs.Index), Op: op, Value: value}
		}
	}
	return l.unsupported(node, "assignment target")
}

// lowerDeclStmt lowers "var" declarations. Variables without a value are
// assigned the zero value of their type.
func (l *lowerer) lowerDeclStmt(stmt *ast.DeclStmt) []ir.Stmt {
	decl, ok := stmt.Decl.(*ast.GenDecl)
	if !ok || decl.Tok != token.VAR {
		return nil // constants are folded by the type checker, types are ignored
	}

	var a []ir.Stmt
	for _, spec := range decl.Specs {
		spec := spec.(*ast.ValueSpec)
		for i, name := range spec.Names {
			var value ir.Expr
			if i < len(spec.Values) {
				value = l.expr(spec.Values[i])
			} else if value = l.zero(name); value == nil {
				a = append(a, l.unsupported(stmt, "declaration"))
				continue
			}
			a = append(a, &ir.AssignStmt{Pos: l.pos(spec), Target: name.Name, Op: "=", Value: value})
		}
	}
	return a
}

// zero returns the zero value of the variable defined by ident.
func (l *lowerer) zero(ident *ast.Ident) ir.Expr {
	obj := l.info.Defs[ident]
	if obj == nil {
		return nil
	}
	tag, err := TypeTag(obj.Type())
	if err != nil {
		return nil
	}
	switch tag {
	case "int":
		return &ir.IntLit{Value: "0"}
	case "float":
		return &ir.FloatLit{Value: "0.0"}
	case "bool":
		return &ir.BoolLit{}
	case "string":
		return &ir.StringLit{}
	case "list":
		return &ir.ListLit{}
	default:
		return &ir.MapLit{}
	}
}

func (l *lowerer) lowerIfStmt(stmt *ast.IfStmt) []ir.Stmt {
	var a []ir.Stmt
	if stmt.Init != nil {
		a = append(a, l.lowerStmt(stmt.Init)...)
	}

	s := &ir.IfStmt{Pos: l.pos(stmt), Cond: l.expr(stmt.Cond), Then: l.lowerStmts(stmt.Body.List)}
	if stmt.Else != nil {
		s.Else = l.lowerStmt(stmt.Else)
	}
	return append(a, s)
}

// lowerForStmt lowers counting loops of the form "for i := a; i < b; i++" to
// range loops and all other loops to while loops.
func (l *lowerer) lowerForStmt(stmt *ast.ForStmt) []ir.Stmt {
	if s := l.lowerCountingLoop(stmt); s != nil {
		return []ir.Stmt{s}
	}

	// The post statement runs after each iteration so a continue would skip it.
	if stmt.Post != nil && hasContinue(stmt.Body) {
		return []ir.Stmt{l.unsupported(stmt, "for loop with continue")}
	}

	var a []ir.Stmt
	if stmt.Init != nil {
		a = append(a, l.lowerStmt(stmt.Init)...)
	}

	var cond ir.Expr = &ir.BoolLit{Value: true}
	if stmt.Cond != nil {
		cond = l.expr(stmt.Cond)
	}

	body := l.lowerStmts(stmt.Body.List)
	if stmt.Post != nil {
		body = append(body, l.lowerStmt(stmt.Post)...)
	}
	return append(a, &ir.WhileStmt{Pos: l.pos(stmt), Cond: cond, Body: body})
}

// lowerCountingLoop returns a range loop if stmt counts a variable toward a
// bound by a constant step that the body never assigns. Returns nil otherwise.
func (l *lowerer) lowerCountingLoop(stmt *ast.ForStmt) ir.Stmt {
	init, ok := stmt.Init.(*ast.AssignStmt)
	if !ok || init.Tok != token.DEFINE || len(init.Lhs) != 1 || len(init.Rhs) != 1 {
		return nil
	}
	ident, ok := init.Lhs[0].(*ast.Ident)
	if !ok {
		return nil
	}

	cond, ok := stmt.Cond.(*ast.BinaryExpr)
	if !ok {
		return nil
	} else if x, ok := cond.X.(*ast.Ident); !ok || x.Name != ident.Name {
		return nil
	}

	if obj := l.info.Defs[ident]; obj == nil {
		return nil
	} else if tag, _ := TypeTag(obj.Type()); tag != "int" {
		return nil
	}

	// The bound is evaluated once so the body must not change it.
	step, ok := l.loopStep(stmt.Post, ident.Name)
	if !ok || assigns(stmt.Body, ident.Name) {
		return nil
	}
	for _, name := range identNames(cond.Y) {
		if assigns(stmt.Body, name) {
			return nil
		}
	}

	// Inclusive bounds are converted to exclusive ones.
	stop := l.expr(cond.Y)
	switch {
	case cond.Op == token.LSS && step > 0, cond.Op == token.GTR && step < 0:
	case cond.Op == token.LEQ && step > 0:
		stop = &ir.BinaryExpr{Op: "+", X: stop, Y: &ir.IntLit{Value: "1"}}
	case cond.Op == token.GEQ && step < 0:
		stop = &ir.BinaryExpr{Op: "-", X: stop, Y: &ir.IntLit{Value: "1"}}
	default:
		return nil
	}

	s := &ir.RangeStmt{
		Pos:   l.pos(stmt),
		Var:   ident.Name,
		Start: l.expr(init.Rhs[0]),
		Stop:  stop,
		Body:  l.lowerStmts(stmt.Body.List),
	}
	if step < 0 {
		s.Step = &ir.UnaryExpr{Op: "-", X: &ir.IntLit{Value: strconv.FormatInt(-step, 10)}}
	} else if step != 1 {
		s.Step = &ir.IntLit{Value: strconv.FormatInt(step, 10)}
	}
	return s
}

// loopStep returns the constant increment applied to name by post.
func (l *lowerer) loopStep(post ast.Stmt, name string) (int64, bool) {
	switch post := post.(type) {
	case *ast.IncDecStmt:
		if x, ok := post.X.(*ast.Ident); !ok || x.Name != name {
			return 0, false
		} else if post.Tok == token.INC {
			return 1, true
		}
		return -1, true
	case *ast.AssignStmt:
		if len(post.Lhs) != 1 || len(post.Rhs) != 1 {
			return 0, false
		} else if x, ok := post.Lhs[0].(*ast.Ident); !ok || x.Name != name {
			return 0, false
		}
		tv, ok := l.info.Types[post.Rhs[0]]
		if !ok || tv.Value == nil {
			return 0, false
		}
		v, err := constantInt64(tv)
		if err != nil {
			return 0, false
		}
		switch post.Tok {
		case token.ADD_ASSIGN:
			return v, v != 0
		case token.SUB_ASSIGN:
			return -v, v != 0
		}
	}
	return 0, false
}

func (l *lowerer) lowerExprStmt(stmt *ast.ExprStmt) ir.Stmt {
	call, ok := stmt.X.(*ast.CallExpr)
	if !ok {
		return &ir.ExprStmt{Pos: l.pos(stmt), X: l.expr(stmt.X)}
	}

	fn, _ := call.Fun.(*ast.Ident)
	switch {
	case fn == nil:
	case fn.Name == "assume" && len(call.Args) == 1:
		return &ir.AssumeStmt{Pos: l.pos(stmt), Cond: l.expr(call.Args[0])}
	case fn.Name == "assert" && len(call.Args) >= 1:
		s := &ir.AssertStmt{Pos: l.pos(stmt), Cond: l.expr(call.Args[0])}
		if len(call.Args) > 1 {
			s.Message = l.message(call.Args[1])
		}
		return s
	case fn.Name == "panic" && len(call.Args) == 1:
		return &ir.AssertStmt{Pos: l.pos(stmt), Cond: &ir.BoolLit{}, Message: "panic: " + l.message(call.Args[0])}
	}
	return &ir.ExprStmt{Pos: l.pos(stmt), X: l.expr(call)}
}

// message returns the constant string value of expr or its source text.
func (l *lowerer) message(expr ast.Expr) string {
	if tv, ok := l.info.Types[expr]; ok && tv.Value != nil {
		if s, ok := constantString(tv); ok {
			return s
		}
	}
	return types.ExprString(expr)
}

// hasContinue returns true if body continues its enclosing loop.
func hasContinue(body *ast.BlockStmt) bool {
	var found bool
	ast.Inspect(body, func(node ast.Node) bool {
		switch node := node.(type) {
		case *ast.ForStmt, *ast.RangeStmt, *ast.FuncLit:
			return false // continues in nested loops target those loops
		case *ast.BranchStmt:
			if node.Tok == token.CONTINUE {
				found = true
			}
		}
		return !found
	})
	return found
}

// assigns returns true if body assigns to the variable name.
func assigns(body *ast.BlockStmt, name string) bool {
	var found bool
	ast.Inspect(body, func(node ast.Node) bool {
		switch node := node.(type) {
		case *ast.AssignStmt:
			for _, lhs := range node.Lhs {
				if ident, ok := lhs.(*ast.Ident); ok && ident.Name == name {
					found = true
				}
			}
		case *ast.IncDecStmt:
			if ident, ok := node.X.(*ast.Ident); ok && ident.Name == name {
				found = true
			}
		}
		return !found
	})
	return found
}

// constantInt64 returns the value of an integer constant.
func constantInt64(tv types.TypeAndValue) (int64, error) {
	v := constant.ToInt(tv.Value)
	if v.Kind() != constant.Int {
		return 0, fmt.Errorf("not an integer constant: %s", tv.Value)
	}
	i, exact := constant.Int64Val(v)
	if !exact {
		return 0, fmt.Errorf("integer constant overflows int64: %s", tv.Value)
	}
	return i, nil
}

// constantString returns the value of a string constant.
func constantString(tv types.TypeAndValue) (string, bool) {
	if tv.Value.Kind() != constant.String {
		return "", false
	}
	return constant.StringVal(tv.Value), true
}

// identNames returns the names of identifiers referenced by expr.
func identNames(expr ast.Expr) []string {
	var a []string
	ast.Inspect(expr, func(node ast.Node) bool {
		if ident, ok := node.(*ast.Ident); ok {
			a = append(a, ident.Name)
		}
		return true
	})
	return a
}
