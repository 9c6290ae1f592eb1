// Package workload models the generated query set: which query text
// belongs to which template, read either from a freshly generated data
// directory or from a pregenerated test set.
package workload

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"divbench/tpc"
)

// Query is one executable instance of a query template.
type Query struct {
	Template int // 0-based template number
	Instance int
	SQL      string
}

// Workload is the ordered query set of one benchmark run.
type Workload struct {
	Templates int
	Queries   []Query
}

// ReadGenerated loads the queries a Generator wrote under its data
// directory: one instance per template, numbered 1..Templates.
func ReadGenerated(layout tpc.Layout, b tpc.Benchmark) (*Workload, error) {
	zlog.Info().Msg("reading queries")

	w := &Workload{Templates: b.Templates()}
	for i := 1; i <= b.Templates(); i++ {
		data, err := os.ReadFile(layout.QueryFile(i))
		if err != nil {
			return nil, fmt.Errorf("reading query %d: %w", i, err)
		}
		w.Queries = append(w.Queries, Query{Template: i - 1, SQL: string(data)})
	}
	return w, nil
}

// ReadTestSet loads a pregenerated query set: a directory of
// <template>_<instance>.sql files as written by the qgen command. The
// first line of each file is the generator's comment header and is
// skipped; the query text is rewritten for PostgreSQL compatibility.
func ReadTestSet(dir string, templates int) (*Workload, error) {
	zlog.Info().Str("dir", dir).Msg("reading test set queries")

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql files under %s", dir)
	}

	w := &Workload{Templates: templates}
	for _, path := range files {
		template, instance, err := parseQueryFileName(path)
		if err != nil {
			return nil, err
		}
		if template < 1 || template > templates {
			return nil, fmt.Errorf("%s: template %d out of range", filepath.Base(path), template)
		}

		sql, err := readTestSetQuery(path)
		if err != nil {
			return nil, err
		}
		w.Queries = append(w.Queries, Query{Template: template - 1, Instance: instance, SQL: sql})
	}

	sort.Slice(w.Queries, func(i, j int) bool {
		if w.Queries[i].Template != w.Queries[j].Template {
			return w.Queries[i].Template < w.Queries[j].Template
		}
		return w.Queries[i].Instance < w.Queries[j].Instance
	})

	return w, nil
}

func parseQueryFileName(path string) (template, instance int, err error) {
	name := strings.TrimSuffix(filepath.Base(path), ".sql")
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("query file %s: want <template>_<instance>.sql", filepath.Base(path))
	}

	template, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("query file %s: bad template number", filepath.Base(path))
	}
	instance, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("query file %s: bad instance number", filepath.Base(path))
	}
	return template, instance, nil
}

func readTestSetQuery(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 {
		lines = lines[1:] // generator comment header
	}

	sql := strings.Join(lines, " ")
	sql = strings.ReplaceAll(sql, "\t", " ")
	return FixupPostgres(sql), nil
}
