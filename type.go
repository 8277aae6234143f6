package symex

import (
	"fmt"
	"strings"
)

// Type represents the declared type of a symbolic value.
type Type string

const (
	TypeInt    = Type("int")
	TypeBool   = Type("bool")
	TypeString = Type("string")
	TypeFloat  = Type("float")
	TypeList   = Type("list") // flat list of ints
	TypeMap    = Type("map")  // flat map of string to int
)

// types lists every type in bit order.
var types = [...]Type{TypeInt, TypeBool, TypeString, TypeFloat, TypeList, TypeMap}

// ParseType returns the type for a type tag.
func ParseType(s string) (Type, error) {
	for _, typ := range types {
		if string(typ) == s {
			return typ, nil
		}
	}
	return "", fmt.Errorf("unknown type: %q", s)
}

// IsNumeric returns true for int & float types.
func (t Type) IsNumeric() bool { return t == TypeInt || t == TypeFloat }

// IsContainer returns true for list & map types.
func (t Type) IsContainer() bool { return t == TypeList || t == TypeMap }

// TypeSet represents a set of types.
type TypeSet uint8

// NewTypeSet returns a set containing the given types.
func NewTypeSet(a ...Type) TypeSet {
	var set TypeSet
	for _, typ := range a {
		set = set.Add(typ)
	}
	return set
}

// ScalarTypes is the set of all scalar types.
var ScalarTypes = NewTypeSet(TypeInt, TypeBool, TypeString, TypeFloat)

// AllTypes is the set of all types.
var AllTypes = NewTypeSet(types[:]...)

func typeBit(typ Type) TypeSet {
	for i := range types {
		if types[i] == typ {
			return 1 << uint(i)
		}
	}
	return 0
}

// Add returns a copy of the set with typ included.
func (set TypeSet) Add(typ Type) TypeSet { return set | typeBit(typ) }

// Contains returns true if typ is in the set.
func (set TypeSet) Contains(typ Type) bool {
	bit := typeBit(typ)
	return bit != 0 && set&bit != 0
}

// Types returns the types in the set in a stable order.
func (set TypeSet) Types() []Type {
	var a []Type
	for _, typ := range types {
		if set.Contains(typ) {
			a = append(a, typ)
		}
	}
	return a
}

// String returns the set as a comma-separated list.
func (set TypeSet) String() string {
	a := make([]string, 0, len(types))
	for _, typ := range set.Types() {
		a = append(a, string(typ))
	}
	return "{" + strings.Join(a, ",") + "}"
}
