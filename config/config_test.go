package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, replicas, indexes, routes, partial string) Paths {
	t.Helper()
	dir := t.TempDir()

	paths := Paths{
		Replicas:         filepath.Join(dir, "replicas.csv"),
		IndexConfig:      filepath.Join(dir, "config.csv"),
		RouteTable:       filepath.Join(dir, "routes.csv"),
		PartialTemplates: filepath.Join(dir, "partial.csv"),
	}

	files := map[string]string{
		paths.Replicas:    replicas,
		paths.IndexConfig: indexes,
		paths.RouteTable:  routes,
	}
	if partial != "" {
		files[paths.PartialTemplates] = partial
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return paths
}

func TestLoad(t *testing.T) {
	paths := writeConfig(t,
		"0,db0.local,5432,tpchdb,sam,secret\n1,db1.local,5433,tpchdb,sam,secret\n",
		"0,l_orderkey\n1,o_orderdate,o_custkey\n0,ps_suppkey\n",
		"0,1,0\n",
		"1,3\n")

	cfg, err := Load(paths)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Replicas) != 2 {
		t.Fatalf("got %d replicas, want 2", len(cfg.Replicas))
	}
	if cfg.Replicas[1].Port != 5433 || cfg.Replicas[1].Hostname != "db1.local" {
		t.Errorf("replica 1 parsed as %+v", cfg.Replicas[1])
	}

	if len(cfg.Candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(cfg.Candidates))
	}
	if got := cfg.Candidates[1].Columns; len(got) != 2 || got[0] != "o_orderdate" || got[1] != "o_custkey" {
		t.Errorf("candidate columns = %v", got)
	}
	if len(cfg.Routes) != 3 {
		t.Fatalf("got %d routes, want 3", len(cfg.Routes))
	}
	if cfg.Routes[1] != 1 {
		t.Errorf("template 2 routed to %d, want 1", cfg.Routes[1])
	}

	if len(cfg.Partial) != 2 || cfg.Partial[0] != 0 || cfg.Partial[1] != 2 {
		t.Errorf("partial templates = %v, want [0 2]", cfg.Partial)
	}
}

func TestLoadDSN(t *testing.T) {
	r := Replica{ID: 0, Hostname: "db0", Port: 5432, DBName: "tpchdb", User: "sam", Password: "pw"}
	want := "host=db0 port=5432 dbname=tpchdb user=sam password=pw sslmode=disable"
	if got := r.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoadMissingPartialIsOptional(t *testing.T) {
	paths := writeConfig(t, "0,db0,5432,db,u,p\n", "0,l_orderkey\n", "0\n", "")

	cfg, err := Load(paths)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Partial != nil {
		t.Errorf("partial = %v, want nil", cfg.Partial)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		replicas string
		indexes  string
		routes   string
		partial  string
	}{
		{"missing replicas file", "", "0,l_orderkey\n", "0\n", ""},
		{"wrong replica field count", "0,db0,5432,db,u\n", "0,l_orderkey\n", "0\n", ""},
		{"bad replica id", "x,db0,5432,db,u,p\n", "0,l_orderkey\n", "0\n", ""},
		{"bad port", "0,db0,none,db,u,p\n", "0,l_orderkey\n", "0\n", ""},
		{"duplicate replica id", "0,db0,5432,db,u,p\n0,db1,5432,db,u,p\n", "0,l_orderkey\n", "0\n", ""},
		{"candidate without columns", "0,db0,5432,db,u,p\n", "0\n", "0\n", ""},
		{"candidate with empty column", "0,db0,5432,db,u,p\n", "0,\n", "0\n", ""},
		{"candidate undefined replica", "0,db0,5432,db,u,p\n", "3,l_orderkey\n", "0\n", ""},
		{"route undefined replica", "0,db0,5432,db,u,p\n", "0,l_orderkey\n", "0,7\n", ""},
		{"multi-row route table", "0,db0,5432,db,u,p\n", "0,l_orderkey\n", "0\n0\n", ""},
		{"partial template out of range", "0,db0,5432,db,u,p\n", "0,l_orderkey\n", "0\n", "5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := writeConfig(t, tt.replicas, tt.indexes, tt.routes, tt.partial)
			if tt.replicas == "" {
				os.Remove(paths.Replicas)
			}

			_, err := Load(paths)
			if err == nil {
				t.Fatal("expected an error")
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error %v is not a *config.Error", err)
			}
		})
	}
}

func TestReplicaIndex(t *testing.T) {
	paths := writeConfig(t,
		"5,db0,5432,db,u,p\n9,db1,5432,db,u,p\n",
		"9,l_orderkey\n", "9,5\n", "")

	cfg, err := Load(paths)
	if err != nil {
		t.Fatal(err)
	}

	if i, ok := cfg.ReplicaIndex(9); !ok || i != 1 {
		t.Errorf("ReplicaIndex(9) = %d,%t, want 1,true", i, ok)
	}
	if _, ok := cfg.ReplicaIndex(2); ok {
		t.Error("ReplicaIndex(2) should not resolve")
	}
}
