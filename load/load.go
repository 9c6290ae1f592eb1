// Package load bulk-loads generated table data into every replica of
// the cluster: drop any leftover tables, apply the runkit schema, COPY
// the table files in, then add the primary/foreign keys. Replicas are
// independent, so they load concurrently.
package load

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"divbench/config"
	"divbench/tpc"
)

// dbgen rows are short, but a few TPC-DS wide tables get close to the
// default scanner limit.
const maxLineBytes = 4 << 20

// Delimiter used by both dbgen and dsdgen table files.
const fieldDelim = '|'

type Loader struct {
	Replicas  []config.Replica
	Layout    tpc.Layout
	Benchmark tpc.Benchmark
}

// Run loads every table file into every replica.
func (l *Loader) Run(ctx context.Context) error {
	pattern := filepath.Join(l.Layout.TablesDir(), "*"+l.Benchmark.TableFileExt())
	files, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no table data under %s (was the generate phase run?)", l.Layout.TablesDir())
	}

	bar := pb.Full.Start(len(files) * len(l.Replicas))
	defer bar.Finish()

	g, ctx := errgroup.WithContext(ctx)
	for _, replica := range l.Replicas {
		replica := replica
		g.Go(func() error {
			if err := l.loadReplica(ctx, replica, files, bar); err != nil {
				return fmt.Errorf("replica %d: %w", replica.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) loadReplica(ctx context.Context, replica config.Replica, files []string, bar *pb.ProgressBar) error {
	db, err := sql.Open("postgres", replica.DSN())
	if err != nil {
		return fmt.Errorf("sql.Open failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	zlog.Debug().Int("replica", replica.ID).Msg("dropping existing tables")
	for _, file := range files {
		table := tpc.TableName(file)
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}

	zlog.Info().Int("replica", replica.ID).Msg("creating table schemas")
	if err := execScript(ctx, db, l.Layout.SchemaDDL()); err != nil {
		return fmt.Errorf("creating schemas: %w", err)
	}

	for _, file := range files {
		table := tpc.TableName(file)
		zlog.Info().Int("replica", replica.ID).Str("table", table).Msg("loading data")
		if err := copyTable(ctx, db, file, table); err != nil {
			return fmt.Errorf("loading %s: %w", table, err)
		}
		bar.Increment()
	}

	zlog.Info().Int("replica", replica.ID).Msg("creating primary and foreign keys")
	if err := execScript(ctx, db, l.Layout.SchemaKeys()); err != nil {
		return fmt.Errorf("creating keys: %w", err)
	}

	return nil
}

func execScript(ctx context.Context, db *sql.DB, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, string(script)); err != nil {
		return err
	}
	return nil
}

// copyTable streams one runkit data file into a table with COPY FROM
// STDIN, inside a single transaction.
func copyTable(ctx context.Context, db *sql.DB, path, table string) error {
	columns, err := tableColumns(ctx, db, table)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.BeginTx failed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("tx.Prepare failed: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	args := make([]interface{}, len(columns))
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		fields := tpc.SplitDataLine(scanner.Text(), fieldDelim)
		if len(fields) != len(columns) {
			return fmt.Errorf("%s:%d: %d fields, table has %d columns",
				filepath.Base(path), line, len(fields), len(columns))
		}
		for i, field := range fields {
			if field == "" {
				args[i] = nil
			} else {
				args[i] = field
			}
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// flush the copy buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("copy flush failed: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		select column_name from information_schema.columns
		where table_name = $1 order by ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}
	return columns, nil
}
