package ir

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io/ioutil"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseFile reads and decodes the program stored at path.
func ParseFile(path string) (*Program, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Parse decodes a program from a YAML or JSON document.
//
// Statements are mappings selected by their "kind" field. Expressions may be
// written as strings in Go expression syntax ("x > 0 && len(s) < 3"), as
// plain YAML numbers & booleans, as sequences (list literals), or as
// mappings with a "kind" field.
func Parse(data []byte) (*Program, error) {
	var prog Program
	if err := yaml.Unmarshal(data, &prog); err != nil {
		return nil, err
	}
	return &prog, nil
}

// UnmarshalYAML decodes a program from a YAML node.
func (p *Program) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name   string      `yaml:"name"`
		Params []*Param    `yaml:"params"`
		Body   []yaml.Node `yaml:"body"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	body, err := decodeStmts(raw.Body)
	if err != nil {
		return err
	}
	p.Name, p.Params, p.Body = raw.Name, raw.Params, body
	return nil
}

func decodeStmts(nodes []yaml.Node) ([]Stmt, error) {
	a := make([]Stmt, 0, len(nodes))
	for i := range nodes {
		stmt, err := decodeStmt(&nodes[i])
		if err != nil {
			return nil, err
		}
		a = append(a, stmt)
	}
	return a, nil
}

func decodeStmt(node *yaml.Node) (Stmt, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: statement must be a mapping", node.Line)
	}

	var head struct {
		Kind string `yaml:"kind"`
		Line int    `yaml:"line"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}
	pos := Pos{Line: head.Line}

	switch head.Kind {
	case "assign":
		var raw struct {
			Target string    `yaml:"target"`
			Index  yaml.Node `yaml:"index"`
			Op     string    `yaml:"op"`
			Value  yaml.Node `yaml:"value"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		stmt := &AssignStmt{Pos: pos, Target: raw.Target, Op: raw.Op}
		if stmt.Op == "" {
			stmt.Op = "="
		}
		var err error
		if stmt.Index, err = decodeExpr(&raw.Index); err != nil {
			return nil, err
		} else if stmt.Value, err = decodeExpr(&raw.Value); err != nil {
			return nil, err
		}
		return stmt, nil

	case "declare":
		var raw struct {
			Name string `yaml:"name"`
			Type string `yaml:"type"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		return &DeclareStmt{Pos: pos, Name: raw.Name, Type: raw.Type}, nil

	case "if":
		var raw struct {
			Cond yaml.Node   `yaml:"cond"`
			Then []yaml.Node `yaml:"then"`
			Else []yaml.Node `yaml:"else"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		stmt := &IfStmt{Pos: pos}
		var err error
		if stmt.Cond, err = decodeExpr(&raw.Cond); err != nil {
			return nil, err
		} else if stmt.Then, err = decodeStmts(raw.Then); err != nil {
			return nil, err
		} else if stmt.Else, err = decodeStmts(raw.Else); err != nil {
			return nil, err
		}
		return stmt, nil

	case "while":
		var raw struct {
			Site string      `yaml:"site"`
			Cond yaml.Node   `yaml:"cond"`
			Body []yaml.Node `yaml:"body"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		stmt := &WhileStmt{Pos: pos, Site: raw.Site}
		var err error
		if stmt.Cond, err = decodeExpr(&raw.Cond); err != nil {
			return nil, err
		} else if stmt.Body, err = decodeStmts(raw.Body); err != nil {
			return nil, err
		}
		return stmt, nil

	case "range", "for":
		var raw struct {
			Site  string      `yaml:"site"`
			Var   string      `yaml:"var"`
			Start yaml.Node   `yaml:"start"`
			Stop  yaml.Node   `yaml:"stop"`
			Step  yaml.Node   `yaml:"step"`
			Body  []yaml.Node `yaml:"body"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		stmt := &RangeStmt{Pos: pos, Site: raw.Site, Var: raw.Var}
		var err error
		if stmt.Start, err = decodeExpr(&raw.Start); err != nil {
			return nil, err
		} else if stmt.Stop, err = decodeExpr(&raw.Stop); err != nil {
			return nil, err
		} else if stmt.Step, err = decodeExpr(&raw.Step); err != nil {
			return nil, err
		} else if stmt.Body, err = decodeStmts(raw.Body); err != nil {
			return nil, err
		}
		return stmt, nil

	case "return":
		var raw struct {
			Value yaml.Node `yaml:"value"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		value, err := decodeExpr(&raw.Value)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Pos: pos, Value: value}, nil

	case "assume", "assert":
		var raw struct {
			Cond    yaml.Node `yaml:"cond"`
			Message string    `yaml:"message"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		cond, err := decodeExpr(&raw.Cond)
		if err != nil {
			return nil, err
		}
		if head.Kind == "assume" {
			return &AssumeStmt{Pos: pos, Cond: cond}, nil
		}
		return &AssertStmt{Pos: pos, Cond: cond, Message: raw.Message}, nil

	case "expr":
		var raw struct {
			X yaml.Node `yaml:"x"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		x, err := decodeExpr(&raw.X)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Pos: pos, X: x}, nil

	case "break":
		return &BreakStmt{Pos: pos}, nil
	case "continue":
		return &ContinueStmt{Pos: pos}, nil

	case "unsupported":
		var raw struct {
			Construct string `yaml:"construct"`
			Text      string `yaml:"text"`
		}
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		return &UnsupportedStmt{Pos: pos, Kind: raw.Construct, Text: raw.Text}, nil

	case "":
		return nil, fmt.Errorf("line %d: statement kind required", node.Line)
	default:
		// Unknown statements are kept so that exploration can report them per path.
		return &UnsupportedStmt{Pos: pos, Kind: head.Kind}, nil
	}
}

func decodeExpr(node *yaml.Node) (Expr, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.AliasNode:
		return decodeExpr(node.Alias)
	case yaml.SequenceNode:
		lit := &ListLit{}
		for _, child := range node.Content {
			elem, err := decodeExpr(child)
			if err != nil {
				return nil, err
			}
			lit.Elems = append(lit.Elems, elem)
		}
		return lit, nil
	case yaml.MappingNode:
		return decodeExprMapping(node)
	}

	switch node.Tag {
	case "!!null":
		return nil, nil
	case "!!int":
		return &IntLit{Value: node.Value}, nil
	case "!!float":
		return &FloatLit{Value: node.Value}, nil
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return &BoolLit{Value: v}, nil
	default:
		expr, err := ParseExpr(node.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return expr, nil
	}
}

func decodeExprMapping(node *yaml.Node) (Expr, error) {
	var raw struct {
		Kind    string      `yaml:"kind"`
		Name    string      `yaml:"name"`
		Value   yaml.Node   `yaml:"value"`
		Op      string      `yaml:"op"`
		X       yaml.Node   `yaml:"x"`
		Y       yaml.Node   `yaml:"y"`
		Func    string      `yaml:"func"`
		Args    []yaml.Node `yaml:"args"`
		Index   yaml.Node   `yaml:"index"`
		Elems   []yaml.Node `yaml:"elems"`
		Entries []struct {
			Key   yaml.Node `yaml:"key"`
			Value yaml.Node `yaml:"value"`
		} `yaml:"entries"`
	}
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}

	switch raw.Kind {
	case "name":
		return &Ident{Name: raw.Name}, nil
	case "int":
		return &IntLit{Value: raw.Value.Value}, nil
	case "float":
		return &FloatLit{Value: raw.Value.Value}, nil
	case "bool":
		var v bool
		if err := raw.Value.Decode(&v); err != nil {
			return nil, err
		}
		return &BoolLit{Value: v}, nil
	case "string":
		return &StringLit{Value: raw.Value.Value}, nil

	case "list":
		lit := &ListLit{}
		for i := range raw.Elems {
			elem, err := decodeExpr(&raw.Elems[i])
			if err != nil {
				return nil, err
			}
			lit.Elems = append(lit.Elems, elem)
		}
		return lit, nil

	case "map":
		lit := &MapLit{}
		for i := range raw.Entries {
			key, err := decodeExpr(&raw.Entries[i].Key)
			if err != nil {
				return nil, err
			}
			value, err := decodeExpr(&raw.Entries[i].Value)
			if err != nil {
				return nil, err
			}
			lit.Keys, lit.Values = append(lit.Keys, key), append(lit.Values, value)
		}
		return lit, nil

	case "binary":
		x, err := decodeExpr(&raw.X)
		if err != nil {
			return nil, err
		}
		y, err := decodeExpr(&raw.Y)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: raw.Op, X: x, Y: y}, nil

	case "unary":
		x, err := decodeExpr(&raw.X)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: raw.Op, X: x}, nil

	case "call":
		call := &CallExpr{Func: raw.Func}
		for i := range raw.Args {
			arg, err := decodeExpr(&raw.Args[i])
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil

	case "index":
		x, err := decodeExpr(&raw.X)
		if err != nil {
			return nil, err
		}
		index, err := decodeExpr(&raw.Index)
		if err != nil {
			return nil, err
		}
		return &IndexExpr{X: x, Index: index}, nil

	default:
		return nil, fmt.Errorf("line %d: unknown expression kind: %q", node.Line, raw.Kind)
	}
}

// ParseExpr parses an expression written in Go syntax.
func ParseExpr(src string) (Expr, error) {
	x, err := parser.ParseExpr(src)
	if err != nil {
		return nil, err
	}
	return FromGoExpr(x), nil
}

// FromGoExpr lowers a Go expression. Operators are passed through by their Go
// spelling except for "&&", "||" & "!" which become "and", "or" & "not".
// Expressions with no lowering become a BadExpr.
func FromGoExpr(x ast.Expr) Expr {
	return FromGoExprWith(x, nil)
}

// FromGoExprWith lowers a Go expression like FromGoExpr. The constant
// function is called first on every subexpression and its result, if not
// nil, is used in place of the subexpression.
func FromGoExprWith(x ast.Expr, constant func(ast.Expr) Expr) Expr {
	if constant != nil {
		if lit := constant(x); lit != nil {
			return lit
		}
	}
	lower := func(x ast.Expr) Expr { return FromGoExprWith(x, constant) }

	switch x := x.(type) {
	case *ast.Ident:
		switch x.Name {
		case "true":
			return &BoolLit{Value: true}
		case "false":
			return &BoolLit{Value: false}
		}
		return &Ident{Name: x.Name}

	case *ast.BasicLit:
		switch x.Kind {
		case token.INT:
			return &IntLit{Value: x.Value}
		case token.FLOAT:
			return &FloatLit{Value: x.Value}
		case token.STRING:
			if s, err := strconv.Unquote(x.Value); err == nil {
				return &StringLit{Value: s}
			}
		}

	case *ast.ParenExpr:
		return lower(x.X)

	case *ast.BinaryExpr:
		op := x.Op.String()
		switch x.Op {
		case token.LAND:
			op = "and"
		case token.LOR:
			op = "or"
		}
		return &BinaryExpr{Op: op, X: lower(x.X), Y: lower(x.Y)}

	case *ast.UnaryExpr:
		switch x.Op {
		case token.NOT:
			return &UnaryExpr{Op: "not", X: lower(x.X)}
		case token.ADD:
			return lower(x.X)
		default:
			return &UnaryExpr{Op: x.Op.String(), X: lower(x.X)}
		}

	case *ast.CallExpr:
		if x.Ellipsis.IsValid() {
			break
		}
		call := &CallExpr{Func: types.ExprString(x.Fun)}
		switch call.Func {
		case "float32", "float64":
			call.Func = "float"
		case "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
			call.Func = "int"
		}
		for _, arg := range x.Args {
			call.Args = append(call.Args, lower(arg))
		}
		return call

	case *ast.IndexExpr:
		return &IndexExpr{X: lower(x.X), Index: lower(x.Index)}

	case *ast.CompositeLit:
		switch x.Type.(type) {
		case *ast.ArrayType:
			lit := &ListLit{}
			for _, elt := range x.Elts {
				if _, ok := elt.(*ast.KeyValueExpr); ok {
					return &BadExpr{Text: types.ExprString(x)}
				}
				lit.Elems = append(lit.Elems, lower(elt))
			}
			return lit
		case *ast.MapType:
			lit := &MapLit{}
			for _, elt := range x.Elts {
				kv, ok := elt.(*ast.KeyValueExpr)
				if !ok {
					return &BadExpr{Text: types.ExprString(x)}
				}
				lit.Keys = append(lit.Keys, lower(kv.Key))
				lit.Values = append(lit.Values, lower(kv.Value))
			}
			return lit
		}
	}
	return &BadExpr{Text: types.ExprString(x)}
}
