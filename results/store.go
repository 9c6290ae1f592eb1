package results

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists runs into a local sqlite database so successive
// experiment configurations can be compared after the fact.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed: %w", err)
	}

	_, err = db.Exec(`
		create table if not exists runs (
			id text primary key,
			benchmark text not null,
			scale_factor integer not null,
			started_at text not null,
			total_seconds real not null,
			failures integer not null
		);
		create table if not exists measurements (
			run_id text not null references runs (id),
			template integer not null,
			instance integer not null,
			replica integer not null,
			seconds real not null,
			error text not null
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating result tables: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one run and all its measurements atomically.
func (s *Store) Save(r *Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("db.Begin failed: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"insert into runs values (?, ?, ?, ?, ?, ?)",
		r.ID, r.Benchmark, r.ScaleFactor, r.StartedAt.UTC().Format("2006-01-02T15:04:05.999Z"),
		r.Total(), r.FailureCount())
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare("insert into measurements values (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("tx.Prepare failed: %w", err)
	}
	defer stmt.Close()

	for _, m := range r.Measurements {
		_, err := stmt.Exec(r.ID, m.Template, m.Instance, m.Replica, m.Seconds, m.Error)
		if err != nil {
			return fmt.Errorf("inserting measurement: %w", err)
		}
	}

	return tx.Commit()
}
