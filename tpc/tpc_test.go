package tpc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseBenchmark(t *testing.T) {
	if b, err := ParseBenchmark("h"); err != nil || b != TPCH {
		t.Errorf("ParseBenchmark(h) = %v, %v", b, err)
	}
	if b, err := ParseBenchmark("ds"); err != nil || b != TPCDS {
		t.Errorf("ParseBenchmark(ds) = %v, %v", b, err)
	}
	if _, err := ParseBenchmark("tpcc"); err == nil {
		t.Error("ParseBenchmark(tpcc) should fail")
	}
}

func TestTemplates(t *testing.T) {
	if got := TPCH.Templates(); got != 22 {
		t.Errorf("TPCH.Templates() = %d", got)
	}
	if got := TPCDS.Templates(); got != 99 {
		t.Errorf("TPCDS.Templates() = %d", got)
	}
}

func TestTableForColumn(t *testing.T) {
	tests := []struct {
		bench  Benchmark
		column string
		table  string
	}{
		{TPCH, "l_orderkey", "lineitem"},
		{TPCH, "ps_suppkey", "partsupp"},
		{TPCH, "o_orderdate", "orders"},
		{TPCH, "s_nationkey", "supplier"},
		{TPCDS, "ss_sold_date_sk", "store_sales"},
		{TPCDS, "inv_item_sk", "inventory"},
		{TPCDS, "cd_gender", "customer_demographics"},
		{TPCDS, "s_store_sk", "store"},
	}

	for _, tt := range tests {
		got, err := tt.bench.TableForColumn(tt.column)
		if err != nil {
			t.Errorf("TableForColumn(%s, %s): %v", tt.bench, tt.column, err)
			continue
		}
		if got != tt.table {
			t.Errorf("TableForColumn(%s, %s) = %s, want %s", tt.bench, tt.column, got, tt.table)
		}
	}

	if _, err := TPCH.TableForColumn("zz_unknown"); err == nil {
		t.Error("unknown prefix should fail")
	}
}

func TestSplitDataLine(t *testing.T) {
	got := SplitDataLine("1|ACME|12.50|", '|')
	want := []string{"1", "ACME", "12.50"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitDataLine = %v, want %v", got, want)
	}

	// lines without the trailing delimiter pass through unchanged
	got = SplitDataLine("1|ACME", '|')
	want = []string{"1", "ACME"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitDataLine = %v, want %v", got, want)
	}

	// empty trailing field is preserved when the line ends in a double delimiter
	got = SplitDataLine("1||", '|')
	want = []string{"1", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitDataLine = %v, want %v", got, want)
	}
}

func TestTableName(t *testing.T) {
	if got := TableName("/data/tables/lineitem.tbl"); got != "lineitem" {
		t.Errorf("TableName = %s", got)
	}
	if got := TableName("store_sales.dat"); got != "store_sales" {
		t.Errorf("TableName = %s", got)
	}
}

func TestGeneratorBenchmarks(t *testing.T) {
	if got := NewTPCH("./dbgen", "./data", "", 1).Benchmark(); got != TPCH {
		t.Errorf("TPCH generator reports %v", got)
	}
	if got := NewTPCDS("./tools", "./data", 1).Benchmark(); got != TPCDS {
		t.Errorf("TPCDS generator reports %v", got)
	}
}

// writeTool drops an executable shell script into dir, standing in for
// a compiled runkit binary.
func writeTool(t *testing.T, dir, name, script string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestRunToolCapturesStderr(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "dbgen", "echo 'bad scale factor' >&2\nexit 3\n")

	err := runTool(context.Background(), dir, nil, nil, filepath.Join(dir, "dbgen"))
	if err == nil {
		t.Fatal("runTool should fail when the tool exits non-zero")
	}

	var genErr *GenError
	if !errors.As(err, &genErr) {
		t.Fatalf("error is %T, want *GenError", err)
	}
	if genErr.Tool != "dbgen" {
		t.Errorf("GenError.Tool = %q, want dbgen", genErr.Tool)
	}
	if !strings.Contains(genErr.Stderr, "bad scale factor") {
		t.Errorf("GenError.Stderr = %q, stderr not captured", genErr.Stderr)
	}
	if !strings.Contains(genErr.Error(), "bad scale factor") {
		t.Errorf("GenError.Error() = %q, should include stderr", genErr.Error())
	}
}

func TestRunToolStdoutAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "qgen", "echo \"query from $DSS_QUERY\"\n")

	var out bytes.Buffer
	err := runTool(context.Background(), dir, []string{"DSS_QUERY=/templates"}, &out, filepath.Join(dir, "qgen"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "query from /templates" {
		t.Errorf("stdout = %q", got)
	}
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/data"}
	if got := l.QueryFile(7); got != "/data/queries/7.sql" {
		t.Errorf("QueryFile = %s", got)
	}
	if got := l.SchemaDDL(); got != "/data/schema/dss.ddl" {
		t.Errorf("SchemaDDL = %s", got)
	}
}
