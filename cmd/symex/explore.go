package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/symex"
	"github.com/benbjohnson/symex/ir"
	"github.com/benbjohnson/symex/z3"
	"gopkg.in/yaml.v3"
)

// ExploreCommand represents a command for exploring a program file.
type ExploreCommand struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExploreCommand returns a new instance of ExploreCommand.
func NewExploreCommand() *ExploreCommand {
	return &ExploreCommand{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the "explore" subcommand.
func (cmd *ExploreCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("symex-explore", flag.ContinueOnError)
	var opts options
	opts.register(fs)
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("program file required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many program files specified")
	}

	config, err := opts.Config(fs)
	if err != nil {
		return err
	}

	prog, err := ir.ParseFile(fs.Arg(0))
	if err != nil {
		return err
	}
	return explore(ctx, prog, config, &opts, cmd.Stdout, cmd.Stderr)
}

func (cmd *ExploreCommand) usage() {
	fmt.Fprintln(cmd.Stderr, `
usage: symex explore [arguments] FILE

Explores every path of the program stored in FILE. The file is a YAML or
JSON document with a name, a list of typed params & a body of statements.

Arguments:
`[1:]+optionsUsage)
}

// options represents the flags shared by all exploring commands.
type options struct {
	configPath        string
	maxPaths          int
	maxLoopIterations int
	allowedTypes      string
	solverTimeout     time.Duration
	budget            time.Duration
	search            string
	seed              int64

	format  string
	dump    bool
	verbose bool
}

const optionsUsage = `
	-config PATH
	    Read limits from a YAML configuration file.

	-max-paths N
	    Stop after N completed paths. Zero is unlimited.

	-max-loop-iterations N
	    Iterations explored per loop entry.

	-allowed-types TYPES
	    Comma-separated list of allowed input types.

	-solver-timeout DURATION
	    Timeout of a single solver call.

	-budget DURATION
	    Wall-clock budget of the exploration. Zero is unlimited.

	-search STRATEGY
	    Frontier strategy: dfs, bfs, random or mixed.

	-seed N
	    Seed of the random search strategy.

	-format FORMAT
	    Output format: json or text.

	-dump
	    Dump the decoded program & the full result to stderr.

	-v
	    Enable verbose logging.
`

func (opts *options) register(fs *flag.FlagSet) {
	fs.StringVar(&opts.configPath, "config", "", "config file")
	fs.IntVar(&opts.maxPaths, "max-paths", symex.DefaultMaxPaths, "max completed paths")
	fs.IntVar(&opts.maxLoopIterations, "max-loop-iterations", symex.DefaultMaxLoopIterations, "iterations per loop entry")
	fs.StringVar(&opts.allowedTypes, "allowed-types", "", "allowed input types")
	fs.DurationVar(&opts.solverTimeout, "solver-timeout", symex.DefaultSolverTimeout, "solver call timeout")
	fs.DurationVar(&opts.budget, "budget", symex.DefaultWallClockBudget, "wall-clock budget")
	fs.StringVar(&opts.search, "search", symex.SearchDFS, "search strategy")
	fs.Int64Var(&opts.seed, "seed", 0, "random seed")
	fs.StringVar(&opts.format, "format", "json", "output format")
	fs.BoolVar(&opts.dump, "dump", false, "dump result")
	fs.BoolVar(&opts.verbose, "v", false, "verbose")
}

// Config returns the default configuration overlaid by the config file and
// then by any flags set explicitly on the command line.
func (opts *options) Config(fs *flag.FlagSet) (symex.Config, error) {
	config := symex.DefaultConfig()
	if opts.configPath != "" {
		buf, err := ioutil.ReadFile(opts.configPath)
		if err != nil {
			return config, err
		} else if err := yaml.Unmarshal(buf, &config); err != nil {
			return config, fmt.Errorf("%s: %w", opts.configPath, err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-paths":
			config.MaxPaths = opts.maxPaths
		case "max-loop-iterations":
			config.MaxLoopIterations = opts.maxLoopIterations
		case "allowed-types":
			config.AllowedTypes = nil
			for _, s := range strings.Split(opts.allowedTypes, ",") {
				if s = strings.TrimSpace(s); s != "" {
					config.AllowedTypes = append(config.AllowedTypes, s)
				}
			}
		case "solver-timeout":
			config.SolverTimeoutMS = int(opts.solverTimeout / time.Millisecond)
		case "budget":
			config.WallClockBudgetMS = int(opts.budget / time.Millisecond)
		case "search":
			config.Search = opts.search
		case "seed":
			config.Seed = opts.seed
		}
	})

	switch opts.format {
	case "json", "text":
	default:
		return config, fmt.Errorf("unknown format: %q", opts.format)
	}
	return config, config.Validate()
}

// explore runs the exploration of prog against z3 and writes the result.
func explore(ctx context.Context, prog *ir.Program, config symex.Config, opts *options, stdout, stderr io.Writer) error {
	solver := z3.NewSolver()
	defer solver.Close()

	if opts.dump {
		dump(stderr, prog)
	}

	e, err := symex.NewExecutor(prog, solver, config)
	if err != nil {
		return err
	}
	if opts.verbose {
		e.Logger = log.New(stderr, "", 0)
	}

	result, err := e.Explore(ctx)
	if err != nil {
		return err
	}

	if opts.dump {
		dump(stderr, result)
	}
	if opts.verbose {
		stats := solver.Stats()
		e.Logger.Printf("[z3] solves=%d time=%s", stats.SolveN, stats.SolveTime)
	}

	if opts.format == "text" {
		return writeText(stdout, result)
	}
	return writeJSON(stdout, result)
}
