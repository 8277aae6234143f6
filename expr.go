package symex

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Expr represents a symbolic expression.
type Expr interface {
	expr()
	String() string
}

func (*Array) expr()        {}
func (*BinaryExpr) expr()   {}
func (*CastExpr) expr()     {}
func (*ConstantExpr) expr() {}
func (*LenExpr) expr()      {}
func (*NegExpr) expr()      {}
func (*NotExpr) expr()      {}
func (*SelectExpr) expr()   {}
func (*VarExpr) expr()      {}

// ExprType returns the type of the value produced by the expression.
func ExprType(expr Expr) Type {
	switch expr := expr.(type) {
	case *Array:
		return expr.Type
	case *BinaryExpr:
		if expr.Op.IsCompare() || expr.Op.IsLogical() {
			return TypeBool
		}
		return ExprType(expr.LHS)
	case *CastExpr:
		return TypeFloat
	case *ConstantExpr:
		return expr.Type
	case *LenExpr:
		return TypeInt
	case *NegExpr:
		return ExprType(expr.Expr)
	case *NotExpr:
		return TypeBool
	case *SelectExpr:
		return TypeInt
	case *VarExpr:
		return expr.Type
	default:
		panic("unreachable")
	}
}

// BinaryOp represents a binary expression operations.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	DIV      // truncated for ints, exact for floats
	REM      // remainder of truncated division
	FLOORDIV // floored division
	MOD      // remainder of floored division
	arithmetic_op_end

	logical_op_begin
	AND
	OR
	logical_op_end

	compare_op_begin
	EQ
	NE
	LT
	LE
	GT
	GE
	compare_op_end
)

var binaryOps = [...]string{
	ADD:      "+",
	SUB:      "-",
	MUL:      "*",
	DIV:      "/",
	REM:      "%",
	FLOORDIV: "//",
	MOD:      "mod",
	AND:      "and",
	OR:       "or",
	EQ:       "==",
	NE:       "!=",
	LT:       "<",
	LE:       "<=",
	GT:       ">",
	GE:       ">=",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// ParseBinaryOp returns the operation for its string representation.
// The Go spellings "&&" and "||" are accepted for AND & OR.
func ParseBinaryOp(s string) (BinaryOp, error) {
	switch s {
	case "&&":
		return AND, nil
	case "||":
		return OR, nil
	}
	for op, str := range binaryOps {
		if str != "" && str == s {
			return BinaryOp(op), nil
		}
	}
	return 0, fmt.Errorf("unknown operator: %q", s)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsLogical returns true if op is a boolean connective.
func (op BinaryOp) IsLogical() bool {
	return op > logical_op_begin && op < logical_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// negate returns the comparison that is true exactly when op is false.
func (op BinaryOp) negate() (BinaryOp, bool) {
	switch op {
	case EQ:
		return NE, true
	case NE:
		return EQ, true
	case LT:
		return GE, true
	case LE:
		return GT, true
	case GT:
		return LE, true
	case GE:
		return LT, true
	default:
		return 0, false
	}
}

func (op BinaryOp) precedence() int {
	switch {
	case op == OR:
		return 1
	case op == AND:
		return 2
	case op.IsCompare():
		return 4
	case op == ADD || op == SUB:
		return 5
	default:
		return 6
	}
}

// CheckBinaryExpr returns the result type of op applied to operands of the
// given types. Returns an error if the operands are not valid for op.
func CheckBinaryExpr(op BinaryOp, lhs, rhs Type) (Type, error) {
	switch {
	case op.IsLogical():
		if lhs == TypeBool && rhs == TypeBool {
			return TypeBool, nil
		}
	case op == EQ || op == NE:
		if lhs == rhs && !lhs.IsContainer() {
			return TypeBool, nil
		} else if lhs.IsNumeric() && rhs.IsNumeric() {
			return TypeBool, nil
		}
	case op.IsCompare():
		if lhs.IsNumeric() && rhs.IsNumeric() {
			return TypeBool, nil
		}
	case op == ADD && lhs == TypeString && rhs == TypeString:
		return TypeString, nil
	case op == REM || op == FLOORDIV || op == MOD:
		if lhs == TypeInt && rhs == TypeInt {
			return TypeInt, nil
		}
	case op.IsArithmetic():
		if lhs == TypeInt && rhs == TypeInt {
			return TypeInt, nil
		} else if lhs.IsNumeric() && rhs.IsNumeric() {
			return TypeFloat, nil
		}
	default:
		return "", fmt.Errorf("unknown operator: %s", op)
	}
	return "", fmt.Errorf("invalid operand types for %s: %s and %s", op, lhs, rhs)
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new expression for op applied to lhs & rhs. Mixed
// int & float operands are promoted to float. Operand types must already be
// valid for op, see CheckBinaryExpr().
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if op.IsArithmetic() || op.IsCompare() {
		switch lt, rt := ExprType(lhs), ExprType(rhs); {
		case lt == TypeInt && rt == TypeFloat:
			lhs = NewCastExpr(lhs)
		case lt == TypeFloat && rt == TypeInt:
			rhs = NewCastExpr(rhs)
		}
	}

	switch op {
	case ADD:
		return newAddExpr(lhs, rhs)
	case SUB:
		return newSubExpr(lhs, rhs)
	case MUL:
		return newMulExpr(lhs, rhs)
	case DIV, REM, FLOORDIV, MOD:
		return newDivExpr(op, lhs, rhs)
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case EQ, NE:
		return newEqExpr(op, lhs, rhs)
	case LT, LE, GT, GE:
		return newCompareExpr(op, lhs, rhs)
	default:
		panic("unreachable")
	}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	p := e.Op.precedence()
	lhsMin, rhsMin := p, p+1
	if e.Op.IsCompare() {
		lhsMin = p + 1 // never chain comparisons
	}
	return fmt.Sprintf("%s %s %s", parenthesize(e.LHS, lhsMin), e.Op, parenthesize(e.RHS, rhsMin))
}

// newAddExpr returns the expression representing the sum of lhs & rhs.
func newAddExpr(lhs, rhs Expr) Expr {
	typ := ExprType(lhs)

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Add(rhs)
		}
	}
	if typ == TypeString {
		return &BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs}
	}

	// Move constant expression to right hand side.
	if IsConstantExpr(lhs) {
		lhs, rhs = rhs, lhs
	}

	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsZero() {
			return lhs
		}

		// Merge constant with constant in LHS binary expression.
		if lhs, ok := lhs.(*BinaryExpr); ok {
			if c, ok := lhs.RHS.(*ConstantExpr); ok {
				if lhs.Op == ADD { // (x+Y) + Z == x + (Y+Z)
					return NewBinaryExpr(ADD, lhs.LHS, c.Add(rhs))
				} else if lhs.Op == SUB { // (x-Y) + Z == x + (Z-Y)
					return NewBinaryExpr(ADD, lhs.LHS, rhs.Sub(c))
				}
			}
		}

		// Render addition of a negative constant as subtraction.
		if rhs.Sign() < 0 {
			return &BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs.Neg()}
		}
	}

	return &BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs}
}

// newSubExpr returns an expression representing the difference of lhs & rhs.
func newSubExpr(lhs, rhs Expr) Expr {
	// Subtracting a value from itself is zero.
	if CompareExpr(lhs, rhs) == 0 {
		return zeroOf(ExprType(lhs))
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Sub(rhs)
		}
	}

	// If constant is on right side, refactor to addition of the negation.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		return NewBinaryExpr(ADD, lhs, rhs.Neg())
	}

	return &BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs}
}

// newMulExpr returns an expression that represents the product of lhs & rhs.
func newMulExpr(lhs, rhs Expr) Expr {
	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Mul(rhs)
		}
	}

	// Optimize for multiplication with a constant 1 or 0.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsOne() {
			return lhs
		} else if rhs.IsZero() {
			return rhs
		}
	}
	return &BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs}
}

// newDivExpr returns an expression that represents a division of lhs by rhs.
// Division by a constant zero is never folded.
func newDivExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if rhs, ok := rhs.(*ConstantExpr); ok && !rhs.IsZero() {
		if lhs, ok := lhs.(*ConstantExpr); ok {
			return lhs.Div(op, rhs)
		}
		if rhs.IsOne() {
			switch op {
			case DIV, FLOORDIV:
				return lhs
			case REM, MOD:
				return zeroOf(ExprType(lhs))
			}
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// newAndExpr returns an expression that represents the conjunction of lhs & rhs.
func newAndExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.IsTrue() {
			return rhs
		}
		return lhs
	}
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsTrue() {
			return lhs
		}
		return rhs
	}
	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
}

// newOrExpr returns an expression that represents the disjunction of lhs & rhs.
func newOrExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.IsTrue() {
			return lhs
		}
		return rhs
	}
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsTrue() {
			return rhs
		}
		return lhs
	}
	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
}

// newEqExpr returns an expression that compares lhs & rhs for (in)equality.
func newEqExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return NewBoolConstantExpr((lhs.Compare(rhs) == 0) == (op == EQ))
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(op == EQ)
	}

	// Simplify boolean comparisons against a constant.
	if ExprType(lhs) == TypeBool {
		if IsConstantExpr(lhs) {
			lhs, rhs = rhs, lhs
		}
		if rhs, ok := rhs.(*ConstantExpr); ok {
			if rhs.IsTrue() == (op == EQ) {
				return lhs
			}
			return NewNotExpr(lhs)
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// newCompareExpr returns an ordering comparison of lhs & rhs.
func newCompareExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			cmp := lhs.Compare(rhs)
			switch op {
			case LT:
				return NewBoolConstantExpr(cmp < 0)
			case LE:
				return NewBoolConstantExpr(cmp <= 0)
			case GT:
				return NewBoolConstantExpr(cmp > 0)
			default:
				return NewBoolConstantExpr(cmp >= 0)
			}
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(op == LE || op == GE)
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// NotExpr represents the boolean negation of an expression.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns the negation of expr. Comparisons are inverted instead
// of wrapped so that "not x > 0" becomes "x <= 0".
func NewNotExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return NewBoolConstantExpr(!expr.Bool)
	case *NotExpr:
		return expr.Expr
	case *BinaryExpr:
		if op, ok := expr.Op.negate(); ok {
			return &BinaryExpr{Op: op, LHS: expr.LHS, RHS: expr.RHS}
		}
	}
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return "not " + parenthesize(e.Expr, 3)
}

// NegExpr represents the arithmetic negation of an expression.
type NegExpr struct {
	Expr Expr
}

// NewNegExpr returns the arithmetic negation of expr.
func NewNegExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Neg()
	case *NegExpr:
		return expr.Expr
	}
	return &NegExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NegExpr) String() string {
	return "-" + parenthesize(e.Expr, 7)
}

// CastExpr represents the promotion of an int expression to a float.
type CastExpr struct {
	Src Expr
}

// NewCastExpr returns src promoted to float. Float expressions are returned as-is.
func NewCastExpr(src Expr) Expr {
	if ExprType(src) == TypeFloat {
		return src
	}
	assert(ExprType(src) == TypeInt, "cast: invalid source type: %s", ExprType(src))
	if src, ok := src.(*ConstantExpr); ok {
		return NewFloatConstantExpr(new(big.Rat).SetInt(src.Int))
	}
	return &CastExpr{Src: src}
}

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	return fmt.Sprintf("float(%s)", e.Src)
}

// LenExpr represents the length of a string expression.
type LenExpr struct {
	Expr Expr
}

// NewLenExpr returns the length of a string or list expression.
func NewLenExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case *Array:
		assert(expr.Type == TypeList, "len: invalid container type: %s", expr.Type)
		return expr.Len
	case *ConstantExpr:
		assert(expr.Type == TypeString, "len: invalid constant type: %s", expr.Type)
		return NewIntConstantExpr(int64(utf8.RuneCountInString(expr.Str)))
	}
	return &LenExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *LenExpr) String() string {
	return fmt.Sprintf("len(%s)", e.Expr)
}

// VarExpr represents a named symbolic input of a declared type.
type VarExpr struct {
	Name string
	Type Type
}

// NewVarExpr returns a new instance of VarExpr.
func NewVarExpr(name string, typ Type) *VarExpr {
	return &VarExpr{Name: name, Type: typ}
}

// String returns the name of the variable.
func (e *VarExpr) String() string {
	return e.Name
}

// ConstantExpr represents a concrete scalar value. Only the field matching
// Type is used.
type ConstantExpr struct {
	Type  Type
	Int   *big.Int
	Float *big.Rat
	Bool  bool
	Str   string
}

// NewIntConstantExpr returns a new int constant.
func NewIntConstantExpr(v int64) *ConstantExpr {
	return &ConstantExpr{Type: TypeInt, Int: big.NewInt(v)}
}

// NewBigIntConstantExpr returns a new int constant holding a copy of v.
func NewBigIntConstantExpr(v *big.Int) *ConstantExpr {
	return &ConstantExpr{Type: TypeInt, Int: new(big.Int).Set(v)}
}

// NewFloatConstantExpr returns a new float constant holding a copy of v.
func NewFloatConstantExpr(v *big.Rat) *ConstantExpr {
	return &ConstantExpr{Type: TypeFloat, Float: new(big.Rat).Set(v)}
}

// NewFloat64ConstantExpr returns a new float constant. Panic if f is not finite.
func NewFloat64ConstantExpr(f float64) *ConstantExpr {
	r := new(big.Rat).SetFloat64(f)
	assert(r != nil, "non-finite float constant: %v", f)
	return &ConstantExpr{Type: TypeFloat, Float: r}
}

// NewBoolConstantExpr returns a new bool constant.
func NewBoolConstantExpr(v bool) *ConstantExpr {
	return &ConstantExpr{Type: TypeBool, Bool: v}
}

// NewStringConstantExpr returns a new string constant.
func NewStringConstantExpr(v string) *ConstantExpr {
	return &ConstantExpr{Type: TypeString, Str: v}
}

func zeroOf(typ Type) *ConstantExpr {
	switch typ {
	case TypeInt:
		return NewIntConstantExpr(0)
	case TypeFloat:
		return NewFloatConstantExpr(new(big.Rat))
	default:
		panic(fmt.Sprintf("zero: invalid type: %s", typ))
	}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	switch e.Type {
	case TypeInt:
		return e.Int.String()
	case TypeFloat:
		return formatFloat(e.Float)
	case TypeBool:
		return strconv.FormatBool(e.Bool)
	case TypeString:
		return strconv.Quote(e.Str)
	default:
		return fmt.Sprintf("(const %s)", e.Type)
	}
}

// formatFloat formats r as the nearest float64, always keeping a decimal point.
func formatFloat(r *big.Rat) string {
	f, _ := r.Float64()
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// Value returns the constant as a host primitive. Ints that overflow int64
// are returned as *big.Int.
func (e *ConstantExpr) Value() interface{} {
	switch e.Type {
	case TypeInt:
		if e.Int.IsInt64() {
			return e.Int.Int64()
		}
		return new(big.Int).Set(e.Int)
	case TypeFloat:
		f, _ := e.Float.Float64()
		return f
	case TypeBool:
		return e.Bool
	default:
		return e.Str
	}
}

// IsTrue returns true if the expression is a constant true.
func (e *ConstantExpr) IsTrue() bool { return e.Type == TypeBool && e.Bool }

// IsFalse returns true if the expression is a constant false.
func (e *ConstantExpr) IsFalse() bool { return e.Type == TypeBool && !e.Bool }

// Sign returns -1, 0, or +1 for numeric constants and 0 otherwise.
func (e *ConstantExpr) Sign() int {
	switch e.Type {
	case TypeInt:
		return e.Int.Sign()
	case TypeFloat:
		return e.Float.Sign()
	default:
		return 0
	}
}

// IsZero returns true if the expression is a numeric zero.
func (e *ConstantExpr) IsZero() bool { return e.Type.IsNumeric() && e.Sign() == 0 }

// IsOne returns true if the expression is a numeric one.
func (e *ConstantExpr) IsOne() bool {
	switch e.Type {
	case TypeInt:
		return e.Int.IsInt64() && e.Int.Int64() == 1
	case TypeFloat:
		return e.Float.IsInt() && e.Float.Num().IsInt64() && e.Float.Num().Int64() == 1
	default:
		return false
	}
}

// Add returns the sum of two numeric constants or the concatenation of two strings.
func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	switch e.Type {
	case TypeInt:
		return &ConstantExpr{Type: TypeInt, Int: new(big.Int).Add(e.Int, other.Int)}
	case TypeFloat:
		return &ConstantExpr{Type: TypeFloat, Float: new(big.Rat).Add(e.Float, other.Float)}
	case TypeString:
		return NewStringConstantExpr(e.Str + other.Str)
	default:
		panic(fmt.Sprintf("add: invalid type: %s", e.Type))
	}
}

// Sub returns the difference of two numeric constants.
func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	return e.Add(other.Neg())
}

// Mul returns the product of two numeric constants.
func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	switch e.Type {
	case TypeInt:
		return &ConstantExpr{Type: TypeInt, Int: new(big.Int).Mul(e.Int, other.Int)}
	case TypeFloat:
		return &ConstantExpr{Type: TypeFloat, Float: new(big.Rat).Mul(e.Float, other.Float)}
	default:
		panic(fmt.Sprintf("mul: invalid type: %s", e.Type))
	}
}

// Div returns the result of a division operation. Panic if other is zero.
func (e *ConstantExpr) Div(op BinaryOp, other *ConstantExpr) *ConstantExpr {
	assert(!other.IsZero(), "division by zero")

	if e.Type == TypeFloat {
		assert(op == DIV, "invalid float division op: %s", op)
		return &ConstantExpr{Type: TypeFloat, Float: new(big.Rat).Quo(e.Float, other.Float)}
	}

	switch op {
	case DIV:
		return &ConstantExpr{Type: TypeInt, Int: new(big.Int).Quo(e.Int, other.Int)}
	case REM:
		return &ConstantExpr{Type: TypeInt, Int: new(big.Int).Rem(e.Int, other.Int)}
	case FLOORDIV:
		q, _ := floorDivMod(e.Int, other.Int)
		return &ConstantExpr{Type: TypeInt, Int: q}
	case MOD:
		_, m := floorDivMod(e.Int, other.Int)
		return &ConstantExpr{Type: TypeInt, Int: m}
	default:
		panic(fmt.Sprintf("invalid division op: %s", op))
	}
}

// floorDivMod returns the floored quotient & modulus of x and y.
func floorDivMod(x, y *big.Int) (q, m *big.Int) {
	q, m = new(big.Int).QuoRem(x, y, new(big.Int))
	if m.Sign() != 0 && (m.Sign() < 0) != (y.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
		m.Add(m, y)
	}
	return q, m
}

// Neg returns the negation of a numeric constant.
func (e *ConstantExpr) Neg() *ConstantExpr {
	switch e.Type {
	case TypeInt:
		return &ConstantExpr{Type: TypeInt, Int: new(big.Int).Neg(e.Int)}
	case TypeFloat:
		return &ConstantExpr{Type: TypeFloat, Float: new(big.Rat).Neg(e.Float)}
	default:
		panic(fmt.Sprintf("neg: invalid type: %s", e.Type))
	}
}

// Compare returns -1, 0, or +1 comparing e to other. Both must be the same type.
func (e *ConstantExpr) Compare(other *ConstantExpr) int {
	assert(e.Type == other.Type, "compare: type mismatch: %s != %s", e.Type, other.Type)
	switch e.Type {
	case TypeInt:
		return e.Int.Cmp(other.Int)
	case TypeFloat:
		return e.Float.Cmp(other.Float)
	case TypeBool:
		if e.Bool == other.Bool {
			return 0
		} else if !e.Bool {
			return -1
		}
		return 1
	default:
		return strings.Compare(e.Str, other.Str)
	}
}

// IsConstantExpr returns true if expr is an instance of ConstantExpr.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is an instance of ConstantExpr and is true.
func IsConstantTrue(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsTrue()
}

// IsConstantFalse returns true if expr is an instance of ConstantExpr and is false.
func IsConstantFalse(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsFalse()
}

// parenthesize returns the string of expr, wrapped in parentheses if it binds
// more loosely than min.
func parenthesize(expr Expr, min int) string {
	if exprPrecedence(expr) < min {
		return "(" + expr.String() + ")"
	}
	return expr.String()
}

func exprPrecedence(expr Expr) int {
	switch expr := expr.(type) {
	case *BinaryExpr:
		return expr.Op.precedence()
	case *NotExpr:
		return 3
	case *NegExpr:
		return 7
	case *ConstantExpr:
		if expr.Sign() < 0 {
			return 7
		}
	}
	return 8
}

// CompareExpr returns an integer comparing two expressions.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *VarExpr:
		return compareVarExpr(a, b.(*VarExpr))
	case *Array:
		return CompareArray(a, b.(*Array))
	case *SelectExpr:
		return compareSelectExpr(a, b.(*SelectExpr))
	case *LenExpr:
		return CompareExpr(a.Expr, b.(*LenExpr).Expr)
	case *CastExpr:
		return CompareExpr(a.Src, b.(*CastExpr).Src)
	case *NegExpr:
		return CompareExpr(a.Expr, b.(*NegExpr).Expr)
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	default:
		panic("unreachable")
	}
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Type != b.Type {
		return strings.Compare(string(a.Type), string(b.Type))
	}
	return a.Compare(b)
}

func compareVarExpr(a, b *VarExpr) int {
	if cmp := strings.Compare(a.Name, b.Name); cmp != 0 {
		return cmp
	}
	return strings.Compare(string(a.Type), string(b.Type))
}

func compareSelectExpr(a, b *SelectExpr) int {
	if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
		return cmp
	}
	return CompareArray(a.Array, b.Array)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *VarExpr:
		return 2
	case *Array:
		return 3
	case *SelectExpr:
		return 4
	case *LenExpr:
		return 5
	case *CastExpr:
		return 6
	case *NegExpr:
		return 7
	case *NotExpr:
		return 8
	case *BinaryExpr:
		return 9
	default:
		panic("unreachable")
	}
}

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Executed for every visited node. Children are skipped if nil is returned.
	Visit(expr Expr) ExprVisitor
}

// WalkExpr traverses expr depth-first, including array lengths & updates.
func WalkExpr(v ExprVisitor, expr Expr) {
	if v = v.Visit(expr); v == nil {
		return
	}

	switch expr := expr.(type) {
	case *Array:
		if expr.Len != nil {
			WalkExpr(v, expr.Len)
		}
		for upd := expr.Updates; upd != nil; upd = upd.Next {
			WalkExpr(v, upd.Index)
			WalkExpr(v, upd.Value)
		}
	case *BinaryExpr:
		WalkExpr(v, expr.LHS)
		WalkExpr(v, expr.RHS)
	case *CastExpr:
		WalkExpr(v, expr.Src)
	case *ConstantExpr, *VarExpr:
		// nop
	case *LenExpr:
		WalkExpr(v, expr.Expr)
	case *NegExpr:
		WalkExpr(v, expr.Expr)
	case *NotExpr:
		WalkExpr(v, expr.Expr)
	case *SelectExpr:
		WalkExpr(v, expr.Array)
		WalkExpr(v, expr.Index)
	default:
		panic("unreachable")
	}
}

// FindVars returns all variables referenced by the expressions, sorted by name.
func FindVars(exprs ...Expr) []*VarExpr {
	v := &varExprVisitor{m: make(map[string]*VarExpr)}
	for _, expr := range exprs {
		WalkExpr(v, expr)
	}

	a := make([]*VarExpr, 0, len(v.m))
	for _, expr := range v.m {
		a = append(a, expr)
	}
	sort.Slice(a, func(i, j int) bool { return CompareExpr(a[i], a[j]) < 0 })
	return a
}

type varExprVisitor struct {
	m map[string]*VarExpr
}

func (v *varExprVisitor) Visit(expr Expr) ExprVisitor {
	if expr, ok := expr.(*VarExpr); ok {
		v.m[expr.Name] = expr
	}
	return v
}
