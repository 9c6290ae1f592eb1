// Package tpc drives the vendor-supplied TPC-H and TPC-DS runkits as
// subprocesses to produce table data and query workloads, and knows the
// small amount of benchmark metadata the rest of the harness needs
// (template counts, column-prefix to table mapping, data file layout).
package tpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Benchmark selects between the two supported TPC workloads.
type Benchmark string

const (
	TPCH  Benchmark = "h"
	TPCDS Benchmark = "ds"
)

// ParseBenchmark converts a command-line selector into a Benchmark.
func ParseBenchmark(s string) (Benchmark, error) {
	switch s {
	case "h":
		return TPCH, nil
	case "ds":
		return TPCDS, nil
	}
	return "", fmt.Errorf("unknown benchmark %q (want 'h' or 'ds')", s)
}

func (b Benchmark) String() string {
	if b == TPCDS {
		return "TPC-DS"
	}
	return "TPC-H"
}

// Templates returns the number of query templates in the workload.
func (b Benchmark) Templates() int {
	if b == TPCDS {
		return 99
	}
	return 22
}

// TableFileExt returns the extension of the generated table data files.
func (b Benchmark) TableFileExt() string {
	if b == TPCDS {
		return ".dat"
	}
	return ".tbl"
}

var tpchTables = map[string]string{
	"l":  "lineitem",
	"p":  "part",
	"ps": "partsupp",
	"o":  "orders",
	"c":  "customer",
	"n":  "nation",
	"r":  "region",
	"s":  "supplier",
}

var tpcdsTables = map[string]string{
	"ss":  "store_sales",
	"sr":  "store_returns",
	"cs":  "catalog_sales",
	"cr":  "catalog_returns",
	"ws":  "web_sales",
	"wr":  "web_returns",
	"inv": "inventory",
	"s":   "store",
	"cc":  "call_center",
	"cp":  "catalog_page",
	"web": "web_site",
	"wp":  "web_page",
	"w":   "warehouse",
	"c":   "customer",
	"ca":  "customer_address",
	"cd":  "customer_demographics",
	"d":   "date_dim",
	"hd":  "household_demographics",
	"i":   "item",
	"ib":  "income_band",
	"p":   "promotion",
	"r":   "reason",
	"sm":  "ship_mode",
	"t":   "time_dim",
	"dv":  "dsdgen_version",
}

// TableForColumn resolves the table an index candidate targets from the
// prefix of its first column name (eg ps_suppkey -> partsupp).
func (b Benchmark) TableForColumn(column string) (string, error) {
	prefix := strings.SplitN(column, "_", 2)[0]

	tables := tpchTables
	if b == TPCDS {
		tables = tpcdsTables
	}

	table, ok := tables[prefix]
	if !ok {
		return "", fmt.Errorf("column %q has no known %s table prefix", column, b)
	}
	return table, nil
}

// GenError reports a runkit tool exiting non-zero, with its stderr.
type GenError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *GenError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *GenError) Unwrap() error { return e.Err }

// Layout describes the on-disk data directory a Generator fills in and
// the load phase reads back.
type Layout struct {
	Root string
}

func (l Layout) TablesDir() string  { return filepath.Join(l.Root, "tables") }
func (l Layout) QueriesDir() string { return filepath.Join(l.Root, "queries") }
func (l Layout) SchemaDir() string  { return filepath.Join(l.Root, "schema") }

// SchemaDDL is the CREATE TABLE script copied out of the runkit.
func (l Layout) SchemaDDL() string { return filepath.Join(l.SchemaDir(), "dss.ddl") }

// SchemaKeys is the primary/foreign key script applied after the load.
func (l Layout) SchemaKeys() string { return filepath.Join(l.SchemaDir(), "schema_keys.sql") }

// QueryFile is the path of one generated query template instance.
func (l Layout) QueryFile(template int) string {
	return filepath.Join(l.QueriesDir(), fmt.Sprintf("%d.sql", template))
}

// A Generator produces table files and query files for one benchmark at
// a fixed scale factor. Implementations shell out to the vendor tools.
type Generator interface {
	// Generate compiles the runkit and produces table data, query data,
	// and schema scripts under Layout. A zero seed lets the tool pick.
	Generate(ctx context.Context, seed int64) error
	Benchmark() Benchmark
	Layout() Layout
}

// runTool executes one runkit binary, capturing stderr for diagnostics.
// Stdout is redirected to out when non-nil (qgen writes queries there).
func runTool(ctx context.Context, dir string, env []string, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	if out != nil {
		cmd.Stdout = out
	}

	stderr := bytes.Buffer{}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &GenError{Tool: filepath.Base(name), Stderr: stderr.String(), Err: err}
	}
	return nil
}

// SplitDataLine splits one runkit table row on the given delimiter,
// dropping the trailing delimiter the tools emit at end of line.
func SplitDataLine(line string, delim byte) []string {
	line = strings.TrimSuffix(line, string(delim))
	return strings.Split(line, string(delim))
}

// TableName derives the table a data file loads into from its filename
// (lineitem.tbl -> lineitem, store_sales.dat -> store_sales).
func TableName(path string) string {
	name := filepath.Base(path)
	return strings.SplitN(name, ".", 2)[0]
}
