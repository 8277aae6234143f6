package ir

// CloneProgram returns a deep copy of prog.
func CloneProgram(prog *Program) *Program {
	if prog == nil {
		return nil
	}
	other := &Program{Name: prog.Name, Body: cloneStmtSlice(prog.Body)}
	for _, p := range prog.Params {
		other.Params = append(other.Params, &Param{Name: p.Name, Type: p.Type})
	}
	return other
}

// Clone returns a deep copy of node.
func Clone(node Node) Node {
	switch node := node.(type) {
	case *AssertStmt:
		return &AssertStmt{
			Pos:     node.Pos,
			Cond:    cloneExpr(node.Cond),
			Message: node.Message,
		}
	case *AssignStmt:
		return &AssignStmt{
			Pos:    node.Pos,
			Target: node.Target,
			Index:  cloneExpr(node.Index),
			Op:     node.Op,
			Value:  cloneExpr(node.Value),
		}
	case *AssumeStmt:
		return &AssumeStmt{
			Pos:  node.Pos,
			Cond: cloneExpr(node.Cond),
		}
	case *BreakStmt:
		return &BreakStmt{Pos: node.Pos}
	case *ContinueStmt:
		return &ContinueStmt{Pos: node.Pos}
	case *DeclareStmt:
		return &DeclareStmt{
			Pos:  node.Pos,
			Name: node.Name,
			Type: node.Type,
		}
	case *ExprStmt:
		return &ExprStmt{
			Pos: node.Pos,
			X:   cloneExpr(node.X),
		}
	case *IfStmt:
		return &IfStmt{
			Pos:  node.Pos,
			Cond: cloneExpr(node.Cond),
			Then: cloneStmtSlice(node.Then),
			Else: cloneStmtSlice(node.Else),
		}
	case *RangeStmt:
		return &RangeStmt{
			Pos:   node.Pos,
			Site:  node.Site,
			Var:   node.Var,
			Start: cloneExpr(node.Start),
			Stop:  cloneExpr(node.Stop),
			Step:  cloneExpr(node.Step),
			Body:  cloneStmtSlice(node.Body),
		}
	case *ReturnStmt:
		return &ReturnStmt{
			Pos:   node.Pos,
			Value: cloneExpr(node.Value),
		}
	case *UnsupportedStmt:
		return &UnsupportedStmt{
			Pos:  node.Pos,
			Kind: node.Kind,
			Text: node.Text,
		}
	case *WhileStmt:
		return &WhileStmt{
			Pos:  node.Pos,
			Site: node.Site,
			Cond: cloneExpr(node.Cond),
			Body: cloneStmtSlice(node.Body),
		}

	case *BadExpr:
		return &BadExpr{Text: node.Text}
	case *BinaryExpr:
		return &BinaryExpr{
			Op: node.Op,
			X:  cloneExpr(node.X),
			Y:  cloneExpr(node.Y),
		}
	case *BoolLit:
		return &BoolLit{Value: node.Value}
	case *CallExpr:
		return &CallExpr{
			Func: node.Func,
			Args: cloneExprSlice(node.Args),
		}
	case *FloatLit:
		return &FloatLit{Value: node.Value}
	case *Ident:
		return &Ident{Name: node.Name}
	case *IndexExpr:
		return &IndexExpr{
			X:     cloneExpr(node.X),
			Index: cloneExpr(node.Index),
		}
	case *IntLit:
		return &IntLit{Value: node.Value}
	case *ListLit:
		return &ListLit{Elems: cloneExprSlice(node.Elems)}
	case *MapLit:
		return &MapLit{
			Keys:   cloneExprSlice(node.Keys),
			Values: cloneExprSlice(node.Values),
		}
	case *StringLit:
		return &StringLit{Value: node.Value}
	case *UnaryExpr:
		return &UnaryExpr{
			Op: node.Op,
			X:  cloneExpr(node.X),
		}
	case nil:
		return nil
	default:
		panic("unreachable")
	}
}

func cloneExpr(expr Expr) Expr {
	if expr == nil {
		return nil
	}
	return Clone(expr).(Expr)
}

func cloneStmt(stmt Stmt) Stmt {
	if stmt == nil {
		return nil
	}
	return Clone(stmt).(Stmt)
}

func cloneExprSlice(a []Expr) []Expr {
	if a == nil {
		return nil
	}
	other := make([]Expr, len(a))
	for i := range a {
		other[i] = cloneExpr(a[i])
	}
	return other
}

func cloneStmtSlice(a []Stmt) []Stmt {
	if a == nil {
		return nil
	}
	other := make([]Stmt, len(a))
	for i := range a {
		other[i] = cloneStmt(a[i])
	}
	return other
}
