// Package bundle packs a query test set into a single compressed file
// and back, so test sets move between machines as one artifact.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"divbench/tpc"
	"divbench/util"
	"divbench/workload"
)

var Command = &cli.Command{
	Name:  "bundle",
	Usage: "pack or unpack a query test set",
	Subcommands: []*cli.Command{
		{
			Name:      "pack",
			Usage:     "pack a test set directory into a bundle file",
			ArgsUsage: "TEST-SET-DIR OUT" + workload.BundleExt,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "benchmark", Aliases: []string{"b"}, Value: "h",
					Usage: "which benchmark the test set belongs to (h|ds)"},
			},
			Action: pack,
		},
		{
			Name:      "unpack",
			Usage:     "unpack a bundle file into a test set directory",
			ArgsUsage: "IN" + workload.BundleExt + " TEST-SET-DIR",
			Action:    unpack,
		},
	},
}

func pack(c *cli.Context) error {
	util.SetupLogging(false)
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: bundle pack TEST-SET-DIR OUT%s", workload.BundleExt)
	}

	bm, err := tpc.ParseBenchmark(c.String("benchmark"))
	if err != nil {
		return err
	}

	wl, err := workload.ReadTestSet(c.Args().Get(0), bm.Templates())
	if err != nil {
		return err
	}

	out, err := os.Create(c.Args().Get(1))
	if err != nil {
		return err
	}
	defer out.Close()

	if err := workload.WriteBundle(out, wl); err != nil {
		return err
	}
	zlog.Info().Int("queries", len(wl.Queries)).Str("file", c.Args().Get(1)).Msg("bundle written")
	return out.Close()
}

func unpack(c *cli.Context) error {
	util.SetupLogging(false)
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: bundle unpack IN%s TEST-SET-DIR", workload.BundleExt)
	}

	in, err := os.Open(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer in.Close()

	wl, err := workload.ReadBundle(in)
	if err != nil {
		return err
	}

	dir := c.Args().Get(1)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, q := range wl.Queries {
		path := filepath.Join(dir, fmt.Sprintf("%d_%d.sql", q.Template+1, q.Instance))
		// the header line keeps unpacked files readable by ReadTestSet
		content := fmt.Sprintf("-- unpacked from %s\n%s\n", filepath.Base(c.Args().Get(0)), q.SQL)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}

	zlog.Info().Int("queries", len(wl.Queries)).Str("dir", dir).Msg("bundle unpacked")
	return nil
}
