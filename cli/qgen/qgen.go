// Package qgen implements the standalone query-set generator: many
// seeded instances per TPC-H template, written as individual .sql files
// for later runs with --copy-test-set.
package qgen

import (
	"context"
	"math/rand"

	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"divbench/tpc"
	"divbench/util"
)

var Command = &cli.Command{
	Name:  "qgen",
	Usage: "generate a TPC-H query test set",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "scale-factor", Aliases: []string{"s"}, Value: 10,
			Usage: "tpc-h scale factor for generated queries"},
		&cli.IntFlag{Name: "queries-per-template", Aliases: []string{"n"}, Value: 50,
			Usage: "queries to generate from each template"},
		&cli.StringFlag{Name: "out-path", Aliases: []string{"o"}, Value: "/proj/qdina-PG0/qdina-1100",
			Usage: "location to write generated queries"},
		&cli.Int64Flag{Name: "rng-seed", Aliases: []string{"e"},
			Usage: "base seed for the generated queries (random when omitted)"},
		&cli.StringFlag{Name: "dbgen-dir", Aliases: []string{"g"}, Value: "./tpc-h/dbgen",
			Usage: "the path to the TPC-H dbgen directory"},
		&cli.StringFlag{Name: "templates-dir",
			Usage: "corrected TPC-H query templates to install into the runkit"},
	},
	Action: action,
}

func action(c *cli.Context) error {
	util.SetupLogging(true)

	seed := c.Int64("rng-seed")
	if seed == 0 {
		seed = 1_000_000_000 + rand.Int63n(9_000_000_000)
	}

	gen := tpc.NewTPCH(c.String("dbgen-dir"), c.String("out-path"),
		c.String("templates-dir"), c.Int("scale-factor"))

	zlog.Info().Int64("seed", seed).Int("perTemplate", c.Int("queries-per-template")).
		Msg("generating query set")

	return gen.GenerateQuerySet(context.Background(), c.String("out-path"),
		c.Int("queries-per-template"), seed)
}
