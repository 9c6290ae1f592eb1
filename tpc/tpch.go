package tpc

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	zlog "github.com/rs/zerolog/log"
)

// The runkit ships dss.ddl but no key script, so the harness carries the
// standard TPC-H primary/foreign keys itself.
//
//go:embed tpch_keys.sql
var tpchKeysSQL string

// TPCHGenerator drives the dbgen/qgen tools of the TPC-H runkit. The
// tools are expected to be downloaded (with a Makefile prepared) under
// ToolDir; Generate recompiles them before producing data.
type TPCHGenerator struct {
	ToolDir      string
	TemplatesDir string // corrected query templates; empty keeps the runkit's
	ScaleFactor  int

	layout Layout
}

func NewTPCH(toolDir, dataDir, templatesDir string, scaleFactor int) *TPCHGenerator {
	return &TPCHGenerator{
		ToolDir:      toolDir,
		TemplatesDir: templatesDir,
		ScaleFactor:  scaleFactor,
		layout:       Layout{Root: dataDir},
	}
}

func (g *TPCHGenerator) Benchmark() Benchmark { return TPCH }
func (g *TPCHGenerator) Layout() Layout       { return g.layout }

func (g *TPCHGenerator) Generate(ctx context.Context, seed int64) error {
	if err := g.createDirectories(); err != nil {
		return err
	}
	if err := g.installQueryTemplates(); err != nil {
		return err
	}
	if err := g.compile(ctx); err != nil {
		return err
	}
	if err := g.createTableData(ctx); err != nil {
		return err
	}
	if err := g.createQueries(ctx, seed); err != nil {
		return err
	}
	return nil
}

func (g *TPCHGenerator) createDirectories() error {
	zlog.Debug().Str("dir", g.layout.Root).Msg("creating data directories")

	for _, dir := range []string{g.layout.TablesDir(), g.layout.QueriesDir(), g.layout.SchemaDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir failed: %w", err)
		}
	}
	return nil
}

// installQueryTemplates replaces the runkit's query templates with the
// corrected set (the stock ones are not valid PostgreSQL), when a
// corrected set was provided.
func (g *TPCHGenerator) installQueryTemplates() error {
	if g.TemplatesDir == "" {
		return nil
	}

	stock, err := filepath.Glob(filepath.Join(g.ToolDir, "queries", "*.sql"))
	if err != nil {
		return err
	}
	for _, path := range stock {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing stock template: %w", err)
		}
	}

	corrected, err := filepath.Glob(filepath.Join(g.TemplatesDir, "*.sql"))
	if err != nil {
		return err
	}
	for _, path := range corrected {
		dst := filepath.Join(g.ToolDir, "queries", filepath.Base(path))
		if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("installing template %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

func (g *TPCHGenerator) compile(ctx context.Context) error {
	zlog.Debug().Str("dir", g.ToolDir).Msg("compiling dbgen")
	return runTool(ctx, g.ToolDir, nil, nil, "make")
}

func (g *TPCHGenerator) createTableData(ctx context.Context) error {
	zlog.Debug().Int("scaleFactor", g.ScaleFactor).Msg("creating table data")

	err := runTool(ctx, g.ToolDir, nil, nil,
		filepath.Join(g.ToolDir, "dbgen"), "-s", fmt.Sprint(g.ScaleFactor), "-vf")
	if err != nil {
		return err
	}

	// dbgen writes the .tbl files into its own directory
	tables, err := filepath.Glob(filepath.Join(g.ToolDir, "*.tbl"))
	if err != nil {
		return err
	}
	for _, path := range tables {
		dst := filepath.Join(g.layout.TablesDir(), filepath.Base(path))
		if err := os.Rename(path, dst); err != nil {
			return fmt.Errorf("moving table data: %w", err)
		}
	}

	if err := copyFile(filepath.Join(g.ToolDir, "dss.ddl"), g.layout.SchemaDDL()); err != nil {
		return fmt.Errorf("copying schema: %w", err)
	}
	if err := os.WriteFile(g.layout.SchemaKeys(), []byte(tpchKeysSQL), 0o644); err != nil {
		return fmt.Errorf("writing key schema: %w", err)
	}
	return nil
}

func (g *TPCHGenerator) createQueries(ctx context.Context, seed int64) error {
	zlog.Debug().Msg("creating TPC-H query data")

	env := []string{"DSS_QUERY=" + filepath.Join(g.ToolDir, "queries")}

	for i := 1; i <= TPCH.Templates(); i++ {
		args := []string{"-s", fmt.Sprint(g.ScaleFactor)}
		if seed != 0 {
			args = append(args, "-r", fmt.Sprint(seed))
		}
		args = append(args, fmt.Sprint(i))

		if err := g.qgenToFile(ctx, g.layout.QueryFile(i), env, args); err != nil {
			return err
		}
	}
	return nil
}

func (g *TPCHGenerator) qgenToFile(ctx context.Context, path string, env, args []string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("os.Create failed: %w", err)
	}
	defer out.Close()

	return runTool(ctx, g.ToolDir, env, out, filepath.Join(g.ToolDir, "qgen"), args...)
}

// GenerateQuerySet produces perTemplate instances of every TPC-H query
// template under outPath, named <template>_<instance>.sql. Instance j of
// every template uses seed+j so reruns with the same seed are stable.
func (g *TPCHGenerator) GenerateQuerySet(ctx context.Context, outPath string, perTemplate int, seed int64) error {
	if err := os.MkdirAll(outPath, 0o755); err != nil {
		return fmt.Errorf("mkdir failed: %w", err)
	}
	if err := g.installQueryTemplates(); err != nil {
		return err
	}
	if err := g.compile(ctx); err != nil {
		return err
	}

	env := []string{"DSS_QUERY=" + filepath.Join(g.ToolDir, "queries")}
	bar := pb.Full.Start(TPCH.Templates() * perTemplate)
	defer bar.Finish()

	for i := 1; i <= TPCH.Templates(); i++ {
		for j := 0; j < perTemplate; j++ {
			path := filepath.Join(outPath, fmt.Sprintf("%d_%d.sql", i, j))
			args := []string{"-s", fmt.Sprint(g.ScaleFactor), "-r", fmt.Sprint(seed + int64(j)), fmt.Sprint(i)}
			if err := g.qgenToFile(ctx, path, env, args); err != nil {
				return err
			}
			bar.Increment()
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
