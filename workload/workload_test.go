package workload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"divbench/tpc"
)

func TestFixupPostgresInterval(t *testing.T) {
	in := "where l_shipdate <= date '1998-12-01' - ( 90 days)"
	out := FixupPostgres(in)
	if !strings.Contains(out, "interval '90 days')") {
		t.Errorf("interval rewrite missing: %q", out)
	}
}

func TestFixupPostgresLimit(t *testing.T) {
	out := FixupPostgres("select * from nation;\nlimit 10")
	if strings.Contains(out, ";") {
		t.Errorf("statement split not joined: %q", out)
	}
	if !strings.Contains(out, " limit 10") {
		t.Errorf("limit dropped: %q", out)
	}

	out = FixupPostgres("select * from nation limit -1")
	if strings.Contains(out, "limit -1") {
		t.Errorf("limit -1 not removed: %q", out)
	}
}

func TestFixupPostgresSubqueryAlias(t *testing.T) {
	in := "select avg(total) from (select sum(l_quantity) as total from lineitem group by l_orderkey) where total > 100"
	out := FixupPostgres(in)
	if !strings.Contains(out, "as alias123") {
		t.Errorf("subquery alias not added: %q", out)
	}

	// aliased subqueries are left alone
	in = "select * from (select 1) t where 1 = 1"
	out = FixupPostgres(in)
	if strings.Contains(out, "alias123") {
		t.Errorf("alias added where one exists: %q", out)
	}
}

func writeTestSet(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, sql := range files {
		content := "-- seed comment header\n" + sql + "\n"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestReadTestSet(t *testing.T) {
	dir := writeTestSet(t, map[string]string{
		"1_0.sql":  "select * from region",
		"1_1.sql":  "select * from nation",
		"22_0.sql": "select * from part",
	})

	wl, err := ReadTestSet(dir, 22)
	if err != nil {
		t.Fatal(err)
	}

	if wl.Templates != 22 {
		t.Errorf("templates = %d", wl.Templates)
	}
	if len(wl.Queries) != 3 {
		t.Fatalf("got %d queries, want 3", len(wl.Queries))
	}

	// ordered by template then instance
	if wl.Queries[0].Template != 0 || wl.Queries[0].Instance != 0 {
		t.Errorf("first query = %+v", wl.Queries[0])
	}
	if wl.Queries[2].Template != 21 {
		t.Errorf("last query = %+v", wl.Queries[2])
	}

	// the comment header is stripped
	if strings.Contains(wl.Queries[0].SQL, "seed comment") {
		t.Errorf("header not stripped: %q", wl.Queries[0].SQL)
	}
	if !strings.Contains(wl.Queries[0].SQL, "select * from region") {
		t.Errorf("query body lost: %q", wl.Queries[0].SQL)
	}
}

func TestReadTestSetRejectsBadNames(t *testing.T) {
	dir := writeTestSet(t, map[string]string{"query.sql": "select 1"})
	if _, err := ReadTestSet(dir, 22); err == nil {
		t.Error("expected an error for a nonconforming file name")
	}

	dir = writeTestSet(t, map[string]string{"23_0.sql": "select 1"})
	if _, err := ReadTestSet(dir, 22); err == nil {
		t.Error("expected an error for an out-of-range template")
	}
}

func TestReadGenerated(t *testing.T) {
	layout := tpc.Layout{Root: t.TempDir()}
	if err := os.MkdirAll(layout.QueriesDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= tpc.TPCH.Templates(); i++ {
		err := os.WriteFile(layout.QueryFile(i), []byte("select 1"), 0o644)
		if err != nil {
			t.Fatal(err)
		}
	}

	wl, err := ReadGenerated(layout, tpc.TPCH)
	if err != nil {
		t.Fatal(err)
	}
	if len(wl.Queries) != 22 {
		t.Fatalf("got %d queries, want 22", len(wl.Queries))
	}
	if wl.Queries[21].Template != 21 {
		t.Errorf("last template = %d", wl.Queries[21].Template)
	}
}

func TestBundleRoundtrip(t *testing.T) {
	in := &Workload{
		Templates: 22,
		Queries: []Query{
			{Template: 0, Instance: 0, SQL: "select * from region"},
			{Template: 0, Instance: 1, SQL: "select * from nation"},
			{Template: 21, Instance: 0, SQL: "select count(*) from lineitem"},
		},
	}

	buf := &bytes.Buffer{}
	if err := WriteBundle(buf, in); err != nil {
		t.Fatal(err)
	}

	out, err := ReadBundle(buf)
	if err != nil {
		t.Fatal(err)
	}

	if out.Templates != in.Templates || len(out.Queries) != len(in.Queries) {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
	for i := range in.Queries {
		if out.Queries[i] != in.Queries[i] {
			t.Errorf("query %d = %+v, want %+v", i, out.Queries[i], in.Queries[i])
		}
	}
}

func TestReadBundleRejectsGarbage(t *testing.T) {
	if _, err := ReadBundle(bytes.NewBufferString("not a bundle at all")); err == nil {
		t.Error("expected an error")
	}
}
