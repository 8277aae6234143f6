package symex_test

import (
	"testing"

	"github.com/benbjohnson/symex"
)

func TestArray(t *testing.T) {
	t.Run("Literal", func(t *testing.T) {
		t.Run("List", func(t *testing.T) {
			a := symex.NewListLiteral([]symex.Expr{symex.NewIntConstantExpr(10), symex.NewIntConstantExpr(20)})
			if got, want := a.String(), "[10, 20]"; got != want {
				t.Fatalf("unexpected string: %s", got)
			} else if got, want := a.Len.String(), "2"; got != want {
				t.Fatalf("unexpected len: %s", got)
			} else if got, want := a.Select(symex.NewIntConstantExpr(1)).String(), "20"; got != want {
				t.Fatalf("unexpected value: %s", got)
			} else if a.IsSymbolic() {
				t.Fatal("expected concrete")
			}
		})

		t.Run("Map", func(t *testing.T) {
			a := symex.NewMapLiteral(
				[]symex.Expr{symex.NewStringConstantExpr("b"), symex.NewStringConstantExpr("a")},
				[]symex.Expr{symex.NewIntConstantExpr(2), symex.NewIntConstantExpr(1)},
			)
			if got, want := a.String(), `{"a": 1, "b": 2}`; got != want {
				t.Fatalf("unexpected string: %s", got)
			} else if got, want := a.Select(symex.NewStringConstantExpr("missing")).String(), "0"; got != want {
				t.Fatalf("unexpected value: %s", got)
			}
		})

		t.Run("SymbolicElement", func(t *testing.T) {
			a := symex.NewListLiteral([]symex.Expr{symex.NewVarExpr("x", symex.TypeInt)})
			if !a.IsSymbolic() {
				t.Fatal("expected symbolic")
			} else if got, want := a.String(), "[x]"; got != want {
				t.Fatalf("unexpected string: %s", got)
			}
		})
	})

	t.Run("Symbolic", func(t *testing.T) {
		t.Run("Empty", func(t *testing.T) {
			a := symex.NewArray("a", symex.TypeList)
			if got, want := a.Select(symex.NewIntConstantExpr(0)).String(), "a[0]"; got != want {
				t.Fatalf("unexpected value: %s", got)
			} else if got, want := a.Len.String(), "len(a)"; got != want {
				t.Fatalf("unexpected len: %s", got)
			} else if !a.IsSymbolic() {
				t.Fatal("expected symbolic")
			}
		})

		t.Run("ConcreteIndex", func(t *testing.T) {
			a := symex.NewArray("a", symex.TypeList).Store(symex.NewIntConstantExpr(1), symex.NewIntConstantExpr(5))
			if got, want := a.Select(symex.NewIntConstantExpr(1)).String(), "5"; got != want {
				t.Fatalf("unexpected value: %s", got)
			} else if got, want := a.Select(symex.NewIntConstantExpr(0)).String(), "a[1 := 5][0]"; got != want {
				t.Fatalf("unexpected value: %s", got)
			}
		})

		t.Run("SymbolicIndex", func(t *testing.T) {
			i := symex.NewVarExpr("i", symex.TypeInt)
			a := symex.NewArray("a", symex.TypeList).Store(i, symex.NewIntConstantExpr(5))

			// The stored index may alias any concrete index.
			if got, want := a.Select(symex.NewIntConstantExpr(0)).String(), "a[i := 5][0]"; got != want {
				t.Fatalf("unexpected value: %s", got)
			} else if got, want := a.Select(i).String(), "5"; got != want {
				t.Fatalf("unexpected value: %s", got)
			}
		})

		t.Run("SymbolicIndexOverwritten", func(t *testing.T) {
			i := symex.NewVarExpr("i", symex.TypeInt)
			a := symex.NewArray("a", symex.TypeList).
				Store(i, symex.NewIntConstantExpr(5)).
				Store(symex.NewIntConstantExpr(0), symex.NewIntConstantExpr(7))
			if got, want := a.Select(symex.NewIntConstantExpr(0)).String(), "7"; got != want {
				t.Fatalf("unexpected value: %s", got)
			} else if got, want := a.Select(i).String(), "a[i := 5][0 := 7][i]"; got != want {
				t.Fatalf("unexpected value: %s", got)
			}
		})

		t.Run("Append", func(t *testing.T) {
			a := symex.NewArray("a", symex.TypeList).Append(symex.NewIntConstantExpr(3))
			if got, want := a.Len.String(), "len(a) + 1"; got != want {
				t.Fatalf("unexpected len: %s", got)
			} else if got, want := a.Select(symex.NewArray("a", symex.TypeList).Len).String(), "3"; got != want {
				t.Fatalf("unexpected value: %s", got)
			}
		})
	})

	t.Run("Immutable", func(t *testing.T) {
		a := symex.NewListLiteral([]symex.Expr{symex.NewIntConstantExpr(1)})
		other := a.Store(symex.NewIntConstantExpr(0), symex.NewIntConstantExpr(2))
		if got, want := a.String(), "[1]"; got != want {
			t.Fatalf("unexpected original: %s", got)
		} else if got, want := other.String(), "[2]"; got != want {
			t.Fatalf("unexpected copy: %s", got)
		}
	})

	t.Run("GC", func(t *testing.T) {
		t.Run("ConcreteIndex", func(t *testing.T) {
			a := symex.NewArray("m", symex.TypeMap).
				Store(symex.NewStringConstantExpr("k"), symex.NewIntConstantExpr(1)).
				Store(symex.NewStringConstantExpr("j"), symex.NewIntConstantExpr(2)).
				Store(symex.NewStringConstantExpr("k"), symex.NewIntConstantExpr(3))
			if got, want := a.String(), `m["j" := 2]["k" := 3]`; got != want {
				t.Fatalf("unexpected string: %s", got)
			}
		})

		t.Run("SymbolicIndex", func(t *testing.T) {
			key := symex.NewVarExpr("key", symex.TypeString)
			a := symex.NewArray("m", symex.TypeMap).
				Store(symex.NewStringConstantExpr("k"), symex.NewIntConstantExpr(1)).
				Store(key, symex.NewIntConstantExpr(2)).
				Store(symex.NewStringConstantExpr("k"), symex.NewIntConstantExpr(3))
			if got, want := a.String(), `m["k" := 1][key := 2]["k" := 3]`; got != want {
				t.Fatalf("unexpected string: %s", got)
			}
		})
	})

	t.Run("InBounds", func(t *testing.T) {
		i := symex.NewVarExpr("i", symex.TypeInt)
		if got, want := symex.NewArray("a", symex.TypeList).InBounds(i).String(), "i >= 0 and i < len(a)"; got != want {
			t.Fatalf("unexpected expr: %s", got)
		} else if got, want := symex.NewArray("m", symex.TypeMap).InBounds(i).String(), "true"; got != want {
			t.Fatalf("unexpected expr: %s", got)
		}

		lit := symex.NewListLiteral([]symex.Expr{symex.NewIntConstantExpr(1)})
		if got, want := lit.InBounds(symex.NewIntConstantExpr(1)).String(), "false"; got != want {
			t.Fatalf("unexpected expr: %s", got)
		}
	})
}

func TestCompareArray(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if cmp := symex.CompareArray(nil, nil); cmp != 0 {
			t.Fatalf("unexpected value: %d", cmp)
		} else if cmp := symex.CompareArray(nil, &symex.Array{}); cmp != -1 {
			t.Fatalf("unexpected value: %d", cmp)
		} else if cmp := symex.CompareArray(&symex.Array{}, nil); cmp != 1 {
			t.Fatalf("unexpected value: %d", cmp)
		}
	})
	t.Run("Name", func(t *testing.T) {
		if cmp := symex.CompareArray(symex.NewArray("a", symex.TypeList), symex.NewArray("b", symex.TypeList)); cmp != -1 {
			t.Fatalf("unexpected value: %d", cmp)
		}
	})
	t.Run("Updates", func(t *testing.T) {
		a := symex.NewArray("a", symex.TypeList)
		if cmp := symex.CompareArray(a, a.Store(symex.NewIntConstantExpr(0), symex.NewIntConstantExpr(1))); cmp != -1 {
			t.Fatalf("unexpected value: %d", cmp)
		}
	})
}

func TestCompareArrayUpdate(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if cmp := symex.CompareArrayUpdate(nil, nil); cmp != 0 {
			t.Fatalf("unexpected value: %d", cmp)
		} else if cmp := symex.CompareArrayUpdate(nil, &symex.ArrayUpdate{}); cmp != -1 {
			t.Fatalf("unexpected value: %d", cmp)
		} else if cmp := symex.CompareArrayUpdate(&symex.ArrayUpdate{}, nil); cmp != 1 {
			t.Fatalf("unexpected value: %d", cmp)
		}
	})
	t.Run("Index", func(t *testing.T) {
		if cmp := symex.CompareArrayUpdate(
			symex.NewArrayUpdate(symex.NewIntConstantExpr(1), symex.NewIntConstantExpr(0), nil),
			symex.NewArrayUpdate(symex.NewIntConstantExpr(2), symex.NewIntConstantExpr(0), nil),
		); cmp != -1 {
			t.Fatalf("unexpected value: %d", cmp)
		}
	})
	t.Run("Value", func(t *testing.T) {
		if cmp := symex.CompareArrayUpdate(
			symex.NewArrayUpdate(symex.NewIntConstantExpr(1), symex.NewIntConstantExpr(3), nil),
			symex.NewArrayUpdate(symex.NewIntConstantExpr(1), symex.NewIntConstantExpr(2), nil),
		); cmp != 1 {
			t.Fatalf("unexpected value: %d", cmp)
		}
	})
	t.Run("Next", func(t *testing.T) {
		if cmp := symex.CompareArrayUpdate(
			symex.NewArrayUpdate(symex.NewIntConstantExpr(1), symex.NewIntConstantExpr(2), nil),
			symex.NewArrayUpdate(symex.NewIntConstantExpr(1), symex.NewIntConstantExpr(2), &symex.ArrayUpdate{}),
		); cmp != -1 {
			t.Fatalf("unexpected value: %d", cmp)
		}
	})
}

func TestFindSelects(t *testing.T) {
	m := symex.NewArray("m", symex.TypeMap)
	k1, k2 := symex.NewStringConstantExpr("a"), symex.NewVarExpr("k", symex.TypeString)
	expr := symex.NewBinaryExpr(symex.AND,
		symex.NewBinaryExpr(symex.GT, m.Select(k1), m.Select(k2)),
		symex.NewBinaryExpr(symex.LT, m.Select(k1), symex.NewIntConstantExpr(9)),
	)

	sels := symex.FindSelects("m", expr)
	if got, want := len(sels), 2; got != want {
		t.Fatalf("unexpected select count: %d", got)
	} else if got, want := sels[0].Index.String(), `"a"`; got != want {
		t.Fatalf("unexpected index: %s", got)
	} else if got, want := sels[1].Index.String(), "k"; got != want {
		t.Fatalf("unexpected index: %s", got)
	}

	if sels := symex.FindSelects("other", expr); len(sels) != 0 {
		t.Fatalf("unexpected selects: %v", sels)
	}
}
