// Package cli wires the divbench commands together.
package cli

import (
	"os"

	"github.com/urfave/cli/v2"

	"divbench/cli/bundle"
	"divbench/cli/qgen"
	"divbench/cli/run"
)

var (
	Version = "dev"
)

func Start() error {
	app := cli.NewApp()

	app.Name = "divbench"
	app.Usage = "divergent-index benchmarking harness for PostgreSQL replica clusters"
	app.Version = Version

	app.Commands = []*cli.Command{
		run.Command,
		qgen.Command,
		bundle.Command,
	}

	return app.Run(os.Args)
}
