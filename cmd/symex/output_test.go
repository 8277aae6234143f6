package main

import (
	"bytes"
	"testing"

	"github.com/benbjohnson/symex"
	"github.com/google/go-cmp/cmp"
)

func TestWriteText(t *testing.T) {
	reason := "max_paths limit reached (2)"
	result := &symex.ExplorationResult{
		Paths: []*symex.PathResult{
			{
				PathCondition: []string{"x > 0"},
				Witness:       map[string]interface{}{"x": int64(1), "s": "é"},
				ReturnValue:   "x + 1",
				ReturnWitness: int64(2),
			},
			{
				PathCondition: []string{},
				Witness:       map[string]interface{}{},
				ReturnValue:   nil,
				Truncated:     true,
			},
		},
		TotalPaths:       2,
		Truncated:        true,
		TruncationReason: &reason,
		Diagnostics: []*symex.Diagnostic{
			{State: 3, Kind: symex.DiagnosticLoopTruncated, Site: "while@L2", Message: "loop exit forced"},
		},
		Stats: symex.Stats{States: 3, Forks: 1, SolverCalls: 4, Completed: 2},
	}

	var buf bytes.Buffer
	if err := writeText(&buf, result); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(`PATH  CONDITION  WITNESS    RETURN     FLAGS
1     x > 0      s="é" x=1  x + 1 = 2
2     true                  null       truncated

state#3 while@L2 loop_truncated: loop exit forced

paths=2 states=3 forks=1 pruned=0 failed=0 solver_calls=4
truncated: max_paths limit reached (2)
`, buf.String()); diff != "" {
		t.Fatal(diff)
	}
}

func TestFormatValue(t *testing.T) {
	for _, tt := range []struct {
		v    interface{}
		want string
	}{
		{nil, "null"},
		{int64(-3), "-3"},
		{true, "true"},
		{"a b", `"a b"`},
		{[]interface{}{int64(1), int64(2)}, "[1,2]"},
		{map[string]interface{}{"k": int64(1)}, `{"k":1}`},
	} {
		if got := formatValue(tt.v); got != tt.want {
			t.Errorf("formatValue(%#v)=%s, want %s", tt.v, got, tt.want)
		}
	}
}
