package tpc

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	zlog "github.com/rs/zerolog/log"
)

// TPCDSGenerator drives the dsdgen/dsqgen tools of the TPC-DS runkit.
// ToolDir points at the runkit's tools directory; the query templates
// are taken from the sibling query_templates directory, as shipped.
type TPCDSGenerator struct {
	ToolDir     string
	ScaleFactor int

	layout Layout
}

func NewTPCDS(toolDir, dataDir string, scaleFactor int) *TPCDSGenerator {
	return &TPCDSGenerator{
		ToolDir:     toolDir,
		ScaleFactor: scaleFactor,
		layout:      Layout{Root: dataDir},
	}
}

func (g *TPCDSGenerator) Benchmark() Benchmark { return TPCDS }
func (g *TPCDSGenerator) Layout() Layout       { return g.layout }

func (g *TPCDSGenerator) Generate(ctx context.Context, seed int64) error {
	if seed == 0 {
		seed = 1_000_000_000 + rand.Int63n(9_000_000_000)
	}

	if err := g.createDirectories(); err != nil {
		return err
	}
	if err := g.compile(ctx); err != nil {
		return err
	}
	if err := g.createTableData(ctx, seed); err != nil {
		return err
	}
	if err := g.createQueries(ctx, seed); err != nil {
		return err
	}
	return nil
}

func (g *TPCDSGenerator) createDirectories() error {
	zlog.Debug().Str("dir", g.layout.Root).Msg("creating data directories")

	for _, dir := range []string{g.layout.TablesDir(), g.layout.QueriesDir(), g.layout.SchemaDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir failed: %w", err)
		}
	}
	return nil
}

func (g *TPCDSGenerator) compile(ctx context.Context) error {
	zlog.Debug().Str("dir", g.ToolDir).Msg("compiling dsdgen")
	return runTool(ctx, g.ToolDir, nil, nil, "make")
}

func (g *TPCDSGenerator) createTableData(ctx context.Context, seed int64) error {
	zlog.Debug().Int("scaleFactor", g.ScaleFactor).Msg("creating table data")

	err := runTool(ctx, g.ToolDir, nil, nil,
		filepath.Join(g.ToolDir, "dsdgen"),
		"-DIR", g.layout.TablesDir(),
		"-SCALE", fmt.Sprint(g.ScaleFactor),
		"-TERMINATE", "N",
		"-RNGSEED", fmt.Sprint(seed))
	if err != nil {
		return err
	}

	if err := copyFile(filepath.Join(g.ToolDir, "tpcds.sql"), g.layout.SchemaDDL()); err != nil {
		return fmt.Errorf("copying schema: %w", err)
	}
	if err := copyFile(filepath.Join(g.ToolDir, "tpcds_ri.sql"), g.layout.SchemaKeys()); err != nil {
		return fmt.Errorf("copying key schema: %w", err)
	}
	return nil
}

func (g *TPCDSGenerator) createQueries(ctx context.Context, seed int64) error {
	zlog.Debug().Msg("creating TPC-DS query data")

	templatesDir := filepath.Join(g.ToolDir, "..", "query_templates")

	for i := 1; i <= TPCDS.Templates(); i++ {
		out, err := os.Create(g.layout.QueryFile(i))
		if err != nil {
			return fmt.Errorf("os.Create failed: %w", err)
		}

		err = runTool(ctx, g.ToolDir, nil, out,
			filepath.Join(g.ToolDir, "dsqgen"),
			"-SCALE", fmt.Sprint(g.ScaleFactor),
			"-RNGSEED", fmt.Sprint(seed),
			"-TEMPLATE", fmt.Sprintf("query%d.tpl", i),
			"-DIALECT", "netezza",
			"-DIRECTORY", filepath.Clean(templatesDir),
			"-FILTER", "Y")
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
