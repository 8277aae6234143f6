package symex

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Array represents a flat list of ints or a map of strings to ints. Arrays
// are immutable: Store & Append return new copies that share history.
type Array struct {
	Name    string       // symbolic base name, empty for literals
	Type    Type         // TypeList or TypeMap
	Len     Expr         // list length, nil for maps
	Updates *ArrayUpdate // linked list of updates, most recent first
}

// NewArray returns a symbolic container named name. The length of a list is
// itself a symbolic int named by LenName().
func NewArray(name string, typ Type) *Array {
	assert(typ.IsContainer(), "array: invalid type: %s", typ)
	a := &Array{Name: name, Type: typ}
	if typ == TypeList {
		a.Len = NewVarExpr(LenName(name), TypeInt)
	}
	return a
}

// LenName returns the name of the length variable of a symbolic list.
func LenName(name string) string {
	return "len(" + name + ")"
}

// NewListLiteral returns a concrete-length list holding elems.
func NewListLiteral(elems []Expr) *Array {
	a := &Array{Type: TypeList, Len: NewIntConstantExpr(0)}
	for _, elem := range elems {
		a = a.Append(elem)
	}
	return a
}

// NewMapLiteral returns a map holding the given entries. Missing keys read as zero.
func NewMapLiteral(keys, values []Expr) *Array {
	assert(len(keys) == len(values), "map literal: key/value count mismatch: %d != %d", len(keys), len(values))
	a := &Array{Type: TypeMap}
	for i := range keys {
		a = a.Store(keys[i], values[i])
	}
	return a
}

// String returns a string representation of the array.
func (a *Array) String() string {
	if s, ok := a.literalString(); ok {
		return s
	}

	var buf bytes.Buffer
	switch {
	case a.Name != "":
		buf.WriteString(a.Name)
	case a.Type == TypeList:
		buf.WriteString("[]")
	default:
		buf.WriteString("{}")
	}

	var updates []*ArrayUpdate
	for upd := a.Updates; upd != nil; upd = upd.Next {
		updates = append(updates, upd)
	}
	for i := len(updates) - 1; i >= 0; i-- {
		fmt.Fprintf(&buf, "[%s := %s]", updates[i].Index, updates[i].Value)
	}
	return buf.String()
}

// literalString formats a literal whose entries all have concrete indices.
func (a *Array) literalString() (string, bool) {
	if a.Name != "" {
		return "", false
	}

	var entries []string
	for upd := a.Updates; upd != nil; upd = upd.Next {
		if !IsConstantExpr(upd.Index) {
			return "", false
		}
		entries = append(entries, fmt.Sprintf("%s: %s", upd.Index, upd.Value))
	}
	if a.Type == TypeMap {
		sort.Strings(entries)
		return "{" + strings.Join(entries, ", ") + "}", true
	}

	// Lists must be written densely from zero to render as a literal.
	n, ok := a.Len.(*ConstantExpr)
	if !ok || !n.Int.IsInt64() || n.Int.Int64() != int64(len(entries)) {
		return "", false
	}
	elems := make([]string, len(entries))
	for upd := a.Updates; upd != nil; upd = upd.Next {
		idx := upd.Index.(*ConstantExpr).Int
		if !idx.IsInt64() || idx.Int64() < 0 || idx.Int64() >= int64(len(elems)) {
			return "", false
		}
		elems[idx.Int64()] = upd.Value.String()
	}
	return "[" + strings.Join(elems, ", ") + "]", true
}

// Clone returns a copy of the array.
func (a *Array) Clone() *Array {
	return &Array{
		Name:    a.Name,
		Type:    a.Type,
		Len:     a.Len,
		Updates: a.Updates,
	}
}

// KeyType returns the type used to index the array.
func (a *Array) KeyType() Type {
	if a.Type == TypeMap {
		return TypeString
	}
	return TypeInt
}

// Select reads a value from the array.
//
// Attempts to find a concrete value by traversing the array update history.
// Falls back to a select expression if either the selected index or an
// update's index is symbolic.
func (a *Array) Select(index Expr) Expr {
	for upd := a.Updates; upd != nil; upd = upd.Next {
		cond, ok := NewBinaryExpr(EQ, index, upd.Index).(*ConstantExpr)
		if !ok {
			return &SelectExpr{Array: a, Index: index} // found symbolic index, exit
		} else if cond.IsTrue() {
			return upd.Value
		}
	}

	// Literals have no symbolic base so unwritten entries are zero.
	if a.Name == "" && IsConstantExpr(index) {
		return NewIntConstantExpr(0)
	}
	return &SelectExpr{Array: a, Index: index}
}

// Store writes value at index. Returns a new copy of the array.
func (a *Array) Store(index, value Expr) *Array {
	other := a.Clone()
	other.Updates = NewArrayUpdate(index, value, withoutIndex(a.Updates, index))
	return other
}

// Append writes value past the end of a list. Returns a new copy of the array.
func (a *Array) Append(value Expr) *Array {
	assert(a.Type == TypeList, "append: invalid type: %s", a.Type)
	other := a.Store(a.Len, value)
	other.Len = NewBinaryExpr(ADD, a.Len, NewIntConstantExpr(1))
	return other
}

// InBounds returns a boolean expression stating index is a valid list index.
// Every key of a map is in bounds.
func (a *Array) InBounds(index Expr) Expr {
	if a.Type == TypeMap {
		return NewBoolConstantExpr(true)
	}
	return NewBinaryExpr(AND,
		NewBinaryExpr(GE, index, NewIntConstantExpr(0)),
		NewBinaryExpr(LT, index, a.Len),
	)
}

// IsSymbolic returns true if any element of the array is symbolic.
func (a *Array) IsSymbolic() bool {
	if a.Name != "" || !IsConstantExpr(a.Len) && a.Type == TypeList {
		return true
	}
	for upd := a.Updates; upd != nil; upd = upd.Next {
		if !IsConstantExpr(upd.Index) || !IsConstantExpr(upd.Value) {
			return true
		}
	}
	return false
}

// withoutIndex returns the update chain with prior writes to a concrete index
// removed. Nodes are copied, never modified, since chains are shared by copies.
func withoutIndex(upd *ArrayUpdate, index Expr) *ArrayUpdate {
	if upd == nil || !IsConstantExpr(index) {
		return upd
	}

	cond, ok := NewBinaryExpr(EQ, index, upd.Index).(*ConstantExpr)
	if !ok {
		return upd // symbolic index, keep remaining history
	}

	next := withoutIndex(upd.Next, index)
	if cond.IsTrue() {
		return next
	} else if next == upd.Next {
		return upd
	}
	return &ArrayUpdate{Index: upd.Index, Value: upd.Value, Next: next}
}

// CompareArray returns an integer comparing two arrays.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArray(a, b *Array) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if cmp := strings.Compare(a.Name, b.Name); cmp != 0 {
		return cmp
	} else if cmp := strings.Compare(string(a.Type), string(b.Type)); cmp != 0 {
		return cmp
	} else if cmp := CompareExpr(a.Len, b.Len); cmp != 0 {
		return cmp
	}
	return CompareArrayUpdate(a.Updates, b.Updates)
}

// ArrayUpdate represents a write to an array.
type ArrayUpdate struct {
	Index Expr
	Value Expr

	Next *ArrayUpdate // linked list of next update
}

// NewArrayUpdate returns a new instance of ArrayUpdate.
func NewArrayUpdate(index, value Expr, next *ArrayUpdate) *ArrayUpdate {
	return &ArrayUpdate{
		Index: index,
		Value: value,
		Next:  next,
	}
}

// CompareArrayUpdate returns an integer comparing two array updates.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArrayUpdate(a, b *ArrayUpdate) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
		return cmp
	} else if cmp := CompareExpr(a.Value, b.Value); cmp != 0 {
		return cmp
	}
	return CompareArrayUpdate(a.Next, b.Next)
}

// SelectExpr represents a read from an array at a symbolic index.
type SelectExpr struct {
	Array *Array
	Index Expr
}

// NewSelectExpr returns a new instance of SelectExpr without folding.
func NewSelectExpr(a *Array, index Expr) *SelectExpr {
	return &SelectExpr{Array: a, Index: index}
}

// String returns the string representation of the expression.
func (e *SelectExpr) String() string {
	return fmt.Sprintf("%s[%s]", e.Array, e.Index)
}

// FindSelects returns every read from the symbolic array named name found in
// the expressions, deduplicated by index.
func FindSelects(name string, exprs ...Expr) []*SelectExpr {
	v := &selectExprVisitor{name: name}
	for _, expr := range exprs {
		WalkExpr(v, expr)
	}
	return v.a
}

type selectExprVisitor struct {
	name string
	a    []*SelectExpr
}

func (v *selectExprVisitor) Visit(expr Expr) ExprVisitor {
	if expr, ok := expr.(*SelectExpr); ok && expr.Array.Name == v.name {
		for _, other := range v.a {
			if CompareExpr(other.Index, expr.Index) == 0 {
				return v
			}
		}
		v.a = append(v.a, expr)
	}
	return v
}
