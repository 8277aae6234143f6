package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/benbjohnson/symex"
	"github.com/davecgh/go-spew/spew"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

// writeJSON writes result as JSON. Output is indented for terminals.
func writeJSON(w io.Writer, result *symex.ExplorationResult) error {
	enc := json.NewEncoder(w)
	if isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeText writes one row per path followed by diagnostics & a summary.
func writeText(w io.Writer, result *symex.ExplorationResult) error {
	rows := [][]string{{"PATH", "CONDITION", "WITNESS", "RETURN", "FLAGS"}}
	for i, path := range result.Paths {
		cond := strings.Join(path.PathCondition, " && ")
		if cond == "" {
			cond = "true"
		}

		// Symbolic returns are reported as expression text.
		ret := formatValue(path.ReturnValue)
		if path.ReturnWitness != nil {
			ret = fmt.Sprintf("%v = %s", path.ReturnValue, formatValue(path.ReturnWitness))
		}

		var flags []string
		if path.Truncated {
			flags = append(flags, "truncated")
		}
		if path.TimedOut {
			flags = append(flags, "timed_out")
		}

		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			cond,
			formatWitness(path.Witness),
			ret,
			strings.Join(flags, ","),
		})
	}
	if err := writeTable(w, rows); err != nil {
		return err
	}

	if len(result.Diagnostics) > 0 {
		fmt.Fprintln(w, "")
		for _, d := range result.Diagnostics {
			site := d.Site
			if site == "" {
				site = "-"
			}
			fmt.Fprintf(w, "state#%d %s %s: %s\n", d.State, site, d.Kind, d.Message)
		}
	}

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "paths=%d states=%d forks=%d pruned=%d failed=%d solver_calls=%d\n",
		result.TotalPaths, result.Stats.States, result.Stats.Forks, result.Stats.Pruned,
		result.Stats.Failed, result.Stats.SolverCalls)
	if result.TruncationReason != nil {
		fmt.Fprintf(w, "truncated: %s\n", *result.TruncationReason)
	}
	return nil
}

// writeTable writes rows with columns aligned by display width.
func writeTable(w io.Writer, rows [][]string) error {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				line.WriteString(cell)
				break
			}
			line.WriteString(runewidth.FillRight(cell, widths[i]))
			line.WriteString("  ")
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

// formatWitness returns the witness as "name=value" pairs sorted by name.
func formatWitness(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	a := make([]string, len(keys))
	for i, k := range keys {
		a[i] = k + "=" + formatValue(m[k])
	}
	return strings.Join(a, " ")
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case []interface{}, map[string]interface{}:
		buf, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(buf)
	default:
		return fmt.Sprint(v)
	}
}

// dump writes the full structure of v for debugging.
func dump(w io.Writer, v interface{}) {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	cfg.Fdump(w, v)
}
