package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/adnansarkar/revmig/internal/cli"
	"github.com/adnansarkar/revmig/internal/logger"
)

// version is injected at build time via -ldflags.
var version = "dev"

const (
	exitOK   = 0
	exitFail = 1
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	c := &cli.CLI{}
	parser, err := kong.New(c,
		kong.Name("revmig"),
		kong.Description("Revision-ordered schema migration runner."),
		kong.UsageOnError(),
		kong.DefaultEnvars("REVMIG"),
		kong.Vars{"version": version},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	log := logger.New(
		colorable.NewColorable(os.Stderr),
		c.JSON,
		isatty.IsTerminal(os.Stderr.Fd()),
	)
	rctx := &cli.RunContext{
		Log:    log,
		Stdout: colorable.NewColorable(os.Stdout),
	}

	if err := kctx.Run(rctx); err != nil {
		log.Error("migration run failed", "error", err)
		return exitFail
	}
	return exitOK
}
