package symex

import (
	"math"
	"math/big"
)

// TypeMarshaler converts raw solver values into host primitives: int64,
// float64, bool, string, []interface{} & map[string]interface{}.
type TypeMarshaler struct {
	// Types that declared variables may have.
	Allowed TypeSet

	// Maximum number of list elements reported in a witness.
	MaxContainer int
}

// NewTypeMarshaler returns a new instance of TypeMarshaler.
func NewTypeMarshaler(allowed TypeSet) *TypeMarshaler {
	return &TypeMarshaler{Allowed: allowed, MaxContainer: DefaultMaxContainerWitness}
}

// Marshal converts raw into a host primitive for a variable of the declared
// type. Returns an *UnsupportedTypeError if declared is not allowed.
func (m *TypeMarshaler) Marshal(declared Type, raw RawValue) (interface{}, error) {
	if !m.Allowed.Contains(declared) {
		return nil, &UnsupportedTypeError{Type: declared, Allowed: m.Allowed}
	}
	return marshalScalar(declared, raw)
}

// MarshalList converts a list model into a slice. The list is truncated to
// the length reported by the solver and to MaxContainer elements.
func (m *TypeMarshaler) MarshalList(length RawValue, elems []RawValue) ([]interface{}, error) {
	if !m.Allowed.Contains(TypeList) {
		return nil, &UnsupportedTypeError{Type: TypeList, Allowed: m.Allowed}
	}
	return marshalList(length, elems, m.MaxContainer)
}

// MarshalMap converts the entries of a map model into a map. Entries with
// duplicate keys keep the first value.
func (m *TypeMarshaler) MarshalMap(keys, values []RawValue) (map[string]interface{}, error) {
	if !m.Allowed.Contains(TypeMap) {
		return nil, &UnsupportedTypeError{Type: TypeMap, Allowed: m.Allowed}
	}
	return marshalMap(keys, values)
}

func marshalScalar(typ Type, raw RawValue) (interface{}, error) {
	switch typ {
	case TypeInt:
		v, ok := new(big.Int).SetString(raw.Text, 10)
		if !ok {
			return nil, &MarshalError{Type: typ, Value: raw.Text, Reason: "invalid integer"}
		} else if !v.IsInt64() {
			return nil, &MarshalError{Type: typ, Value: raw.Text, Reason: "out of int64 range"}
		}
		return v.Int64(), nil

	case TypeFloat:
		r, ok := new(big.Rat).SetString(raw.Text)
		if !ok {
			return nil, &MarshalError{Type: typ, Value: raw.Text, Reason: "invalid rational"}
		}

		// Rounds to the nearest float64, ties to even.
		f, _ := r.Float64()
		if math.IsInf(f, 0) {
			return nil, &MarshalError{Type: typ, Value: raw.Text, Reason: "out of float64 range"}
		}
		return f, nil

	case TypeBool:
		switch raw.Text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, &MarshalError{Type: typ, Value: raw.Text, Reason: "invalid boolean"}

	case TypeString:
		return raw.Text, nil

	default:
		return nil, &MarshalError{Type: typ, Value: raw.Text, Reason: "not a scalar type"}
	}
}

func marshalList(length RawValue, elems []RawValue, max int) ([]interface{}, error) {
	n, err := marshalScalar(TypeInt, length)
	if err != nil {
		return nil, err
	}

	sz := n.(int64)
	if sz < 0 {
		return nil, &MarshalError{Type: TypeList, Value: length.Text, Reason: "negative length"}
	}
	if max > 0 && sz > int64(max) {
		sz = int64(max)
	}
	if sz > int64(len(elems)) {
		sz = int64(len(elems))
	}

	a := make([]interface{}, sz)
	for i := range a {
		if a[i], err = marshalScalar(TypeInt, elems[i]); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func marshalMap(keys, values []RawValue) (map[string]interface{}, error) {
	assert(len(keys) == len(values), "marshal map: key/value count mismatch: %d != %d", len(keys), len(values))

	m := make(map[string]interface{}, len(keys))
	for i := range keys {
		if _, ok := m[keys[i].Text]; ok {
			continue
		}
		v, err := marshalScalar(TypeInt, values[i])
		if err != nil {
			return nil, err
		}
		m[keys[i].Text] = v
	}
	return m, nil
}
