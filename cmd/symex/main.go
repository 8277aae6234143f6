package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var cmd string
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "", "-h", "--help", "help":
		usage()
		return flag.ErrHelp
	case "explore":
		return NewExploreCommand().Run(ctx, args)
	case "go":
		return NewGoCommand().Run(ctx, args)
	default:
		return fmt.Errorf(`symex %s: unknown command`, cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `
Symex is a tool for symbolic execution of small programs.

Usage:

	symex <command> [arguments]

The commands are:

	explore     explore a program file
	go          explore a Go function
	help        this screen
`[1:])
}
