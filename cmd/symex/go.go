package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/symex/gofront"
)

// GoCommand represents a command for exploring a function of a Go package.
type GoCommand struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewGoCommand returns a new instance of GoCommand.
func NewGoCommand() *GoCommand {
	return &GoCommand{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the "go" subcommand.
func (cmd *GoCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("symex-go", flag.ContinueOnError)
	var opts options
	opts.register(fs)
	name := fs.String("func", "", "function name")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if *name == "" {
		return fmt.Errorf("function name required")
	} else if fs.NArg() == 0 {
		return fmt.Errorf("package required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many packages specified")
	}

	config, err := opts.Config(fs)
	if err != nil {
		return err
	}

	prog, err := gofront.Load(ctx, fs.Arg(0), *name)
	if err != nil {
		return err
	}
	return explore(ctx, prog, config, &opts, cmd.Stdout, cmd.Stderr)
}

func (cmd *GoCommand) usage() {
	fmt.Fprintln(cmd.Stderr, `
usage: symex go [arguments] -func NAME PACKAGE

Explores every path of the function NAME in the Go package PACKAGE. The
function parameters are the symbolic inputs.

Arguments:

	-func NAME
	    Name of the top-level function to explore.
`[1:]+optionsUsage)
}
