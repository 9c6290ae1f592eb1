// Package run implements the end-to-end benchmark command: generate
// the TPC data, load it into every replica, then measure the routed
// query workload under the recommender's index configuration.
package run

import (
	"context"
	"fmt"

	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"divbench/bench"
	"divbench/config"
	"divbench/load"
	"divbench/results"
	"divbench/tpc"
	"divbench/util"
	"divbench/workload"
)

var Command = &cli.Command{
	Name:      "run",
	Usage:     "generate, load, and benchmark a divergent-index configuration",
	ArgsUsage: "BENCHMARK PHASE...   (BENCHMARK: h|ds; PHASE: generate|load|run|all)",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "scale-factor", Aliases: []string{"s"}, Value: 10,
			Usage: "the TPC-H/DS scale factor"},
		&cli.StringFlag{Name: "dbgen-dir", Aliases: []string{"g"},
			Usage: "the path to the TPC runkit tools directory"},
		&cli.StringFlag{Name: "data-dir", Aliases: []string{"d"}, Value: "./data",
			Usage: "where the generated data is stored"},
		&cli.StringFlag{Name: "replicas", Aliases: []string{"r"}, Value: "replicas.csv",
			Usage: "the CSV file with replica connection details"},
		&cli.StringFlag{Name: "index-config", Aliases: []string{"i"}, Value: "config.csv",
			Usage: "the path to the index configuration"},
		&cli.StringFlag{Name: "routing-table", Aliases: []string{"t"}, Value: "routes.csv",
			Usage: "the path to the routing table"},
		&cli.StringFlag{Name: "partial-templates", Aliases: []string{"p"}, Value: "partial.csv",
			Usage: "the templates of the training partition (may be nonexistent)"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"},
			Usage: "enable verbose log output"},
		&cli.BoolFlag{Name: "copy-test-set", Aliases: []string{"c"},
			Usage: "use a pregenerated query set instead of generated queries"},
		&cli.StringFlag{Name: "copy-source", Value: "/proj/qdina-PG0/dina-set/h/test",
			Usage: "where the pregenerated query set is stored (directory or .bundle)"},
		&cli.Int64Flag{Name: "rng-seed", Aliases: []string{"e"},
			Usage: "seed to pass to the database generator"},
		&cli.StringFlag{Name: "templates-dir",
			Usage: "corrected TPC-H query templates to install into the runkit"},
		&cli.StringFlag{Name: "options", Aliases: []string{"o"},
			Usage: "YAML file with run options"},
		&cli.BoolFlag{Name: "no-indexes",
			Usage: "skip index creation (indexes are already in place)"},
	},
	Action: action,
}

func action(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: run [flags] BENCHMARK PHASE...")
	}

	bm, err := tpc.ParseBenchmark(args[0])
	if err != nil {
		return err
	}
	phases, err := parsePhases(args[1:])
	if err != nil {
		return err
	}

	util.SetupLogging(c.Bool("verbose"))

	cfg, err := config.Load(config.Paths{
		Replicas:         c.String("replicas"),
		IndexConfig:      c.String("index-config"),
		RouteTable:       c.String("routing-table"),
		PartialTemplates: c.String("partial-templates"),
	})
	if err != nil {
		return err
	}

	opts, err := bench.LoadOptions(c.String("options"))
	if err != nil {
		return err
	}
	if c.Bool("no-indexes") {
		opts.CreateIndexes = false
	}

	gen := newGenerator(bm, c)
	ctx := context.Background()

	if phases["generate"] {
		zlog.Info().Str("benchmark", bm.String()).Int("scaleFactor", c.Int("scale-factor")).
			Msg("generating data")
		if err := gen.Generate(ctx, c.Int64("rng-seed")); err != nil {
			return err
		}
	} else {
		zlog.Info().Str("benchmark", bm.String()).Msg("skipping data generation")
	}

	if phases["load"] {
		zlog.Info().Str("benchmark", bm.String()).Msg("loading data")
		loader := &load.Loader{Replicas: cfg.Replicas, Layout: gen.Layout(), Benchmark: gen.Benchmark()}
		if err := loader.Run(ctx); err != nil {
			return err
		}
	} else {
		zlog.Info().Str("benchmark", bm.String()).
			Msg("skipping database load, data must already be present")
	}

	if phases["run"] {
		return measure(ctx, c, cfg, opts, gen)
	}
	return nil
}

func measure(ctx context.Context, c *cli.Context,
	cfg *config.Config, opts bench.Options, gen tpc.Generator) error {

	bm := gen.Benchmark()

	var wl *workload.Workload
	var err error
	if c.Bool("copy-test-set") {
		wl, err = workload.ReadSource(c.String("copy-source"), bm.Templates())
	} else {
		wl, err = workload.ReadGenerated(gen.Layout(), bm)
	}
	if err != nil {
		return err
	}

	session, err := bench.OpenSession(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer session.Close()

	setupStart := util.EpochSeconds()
	runner := bench.NewRunner(bm, cfg, opts, session)

	run, err := runner.Run(ctx, wl)
	if err != nil {
		return err
	}
	run.ScaleFactor = c.Int("scale-factor")

	zlog.Info().Float64("seconds", util.EpochSeconds()-setupStart).Msg("run finished")
	results.PrintSummary(run, cfg.Partial)

	if opts.ResultsDB != "" {
		store, err := results.OpenStore(opts.ResultsDB)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(run); err != nil {
			return err
		}
		zlog.Info().Str("db", opts.ResultsDB).Str("run", run.ID).Msg("results persisted")
	}

	return nil
}

func parsePhases(args []string) (map[string]bool, error) {
	phases := map[string]bool{}
	for _, phase := range args {
		switch phase {
		case "generate", "load", "run":
			phases[phase] = true
		case "all":
			return map[string]bool{"generate": true, "load": true, "run": true}, nil
		default:
			return nil, fmt.Errorf("unknown phase %q (want generate, load, run, or all)", phase)
		}
	}
	return phases, nil
}

func newGenerator(bm tpc.Benchmark, c *cli.Context) tpc.Generator {
	toolDir := c.String("dbgen-dir")
	dataDir := c.String("data-dir")
	sf := c.Int("scale-factor")

	if bm == tpc.TPCDS {
		if toolDir == "" {
			toolDir = "./tpc-ds/tools"
		}
		return tpc.NewTPCDS(toolDir, dataDir, sf)
	}

	if toolDir == "" {
		toolDir = "./tpc-h/dbgen"
	}
	return tpc.NewTPCH(toolDir, dataDir, c.String("templates-dir"), sf)
}
