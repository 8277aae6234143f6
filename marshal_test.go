package symex_test

import (
	"errors"
	"testing"

	"github.com/benbjohnson/symex"
	"github.com/google/go-cmp/cmp"
)

func TestTypeMarshaler_Marshal(t *testing.T) {
	m := symex.NewTypeMarshaler(symex.ScalarTypes)

	t.Run("OK", func(t *testing.T) {
		for _, tt := range []struct {
			typ  symex.Type
			text string
			want interface{}
		}{
			{symex.TypeInt, "-42", int64(-42)},
			{symex.TypeInt, "9223372036854775807", int64(9223372036854775807)},
			{symex.TypeFloat, "1/4", 0.25},
			{symex.TypeFloat, "-2.5", -2.5},
			{symex.TypeFloat, "1/3", 1.0 / 3},
			{symex.TypeBool, "true", true},
			{symex.TypeBool, "false", false},
			{symex.TypeString, "a b", "a b"},
			{symex.TypeString, "", ""},
		} {
			v, err := m.Marshal(tt.typ, symex.RawValue{Type: tt.typ, Text: tt.text})
			if err != nil {
				t.Fatalf("%s %q: %s", tt.typ, tt.text, err)
			} else if diff := cmp.Diff(tt.want, v); diff != "" {
				t.Fatalf("%s %q: %s", tt.typ, tt.text, diff)
			}
		}
	})

	t.Run("ErrMarshal", func(t *testing.T) {
		for _, tt := range []struct {
			typ    symex.Type
			text   string
			reason string
		}{
			{symex.TypeInt, "9223372036854775808", "out of int64 range"},
			{symex.TypeInt, "1.5", "invalid integer"},
			{symex.TypeFloat, "x", "invalid rational"},
			{symex.TypeFloat, "1e400", "out of float64 range"},
			{symex.TypeBool, "1", "invalid boolean"},
		} {
			_, err := m.Marshal(tt.typ, symex.RawValue{Type: tt.typ, Text: tt.text})
			var merr *symex.MarshalError
			if !errors.As(err, &merr) {
				t.Fatalf("%s %q: unexpected error: %v", tt.typ, tt.text, err)
			} else if merr.Reason != tt.reason {
				t.Fatalf("%s %q: unexpected reason: %s", tt.typ, tt.text, merr.Reason)
			}
		}
	})

	t.Run("ErrUnsupportedType", func(t *testing.T) {
		m := symex.NewTypeMarshaler(symex.NewTypeSet(symex.TypeInt))
		var terr *symex.UnsupportedTypeError
		if _, err := m.Marshal(symex.TypeString, symex.RawValue{Type: symex.TypeString, Text: "a"}); !errors.As(err, &terr) {
			t.Fatalf("unexpected error: %v", err)
		} else if terr.Type != symex.TypeString {
			t.Fatalf("unexpected type: %s", terr.Type)
		}
	})
}

func TestTypeMarshaler_MarshalList(t *testing.T) {
	m := symex.NewTypeMarshaler(symex.AllTypes)
	m.MaxContainer = 2

	elems := []symex.RawValue{{Text: "7"}, {Text: "8"}, {Text: "9"}}
	t.Run("Truncated", func(t *testing.T) {
		if a, err := m.MarshalList(symex.RawValue{Text: "5"}, elems); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff([]interface{}{int64(7), int64(8)}, a); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Short", func(t *testing.T) {
		if a, err := m.MarshalList(symex.RawValue{Text: "1"}, elems); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff([]interface{}{int64(7)}, a); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Empty", func(t *testing.T) {
		if a, err := m.MarshalList(symex.RawValue{Text: "0"}, elems); err != nil {
			t.Fatal(err)
		} else if a == nil || len(a) != 0 {
			t.Fatalf("unexpected list: %#v", a)
		}
	})
	t.Run("ErrNegativeLength", func(t *testing.T) {
		if _, err := m.MarshalList(symex.RawValue{Text: "-1"}, elems); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("ErrUnsupportedType", func(t *testing.T) {
		m := symex.NewTypeMarshaler(symex.ScalarTypes)
		if _, err := m.MarshalList(symex.RawValue{Text: "0"}, nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestTypeMarshaler_MarshalMap(t *testing.T) {
	m := symex.NewTypeMarshaler(symex.AllTypes)
	v, err := m.MarshalMap(
		[]symex.RawValue{{Text: "a"}, {Text: "b"}, {Text: "a"}},
		[]symex.RawValue{{Text: "1"}, {Text: "2"}, {Text: "3"}},
	)
	if err != nil {
		t.Fatal(err)
	} else if diff := cmp.Diff(map[string]interface{}{"a": int64(1), "b": int64(2)}, v); diff != "" {
		t.Fatal(diff)
	}
}
