package bench

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"

	"divbench/config"
)

// ConnError reports a replica that could not be reached. Routing
// assumes every replica is available, so this aborts the run.
type ConnError struct {
	Replica int
	Err     error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("replica %d unreachable: %v", e.Replica, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// executor is the slice of database/sql behaviour the runner needs.
// *sql.Conn implements it; tests substitute fakes.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Session owns one pinned connection per replica for the duration of a
// run. Pinning matters: statement timeouts and hypopg's hypothetical
// indexes are session state, which a pooled *sql.DB would not preserve
// across queries.
type Session struct {
	replicas []config.Replica
	dbs      []*sql.DB
	conns    []*sql.Conn
}

// OpenSession connects to every replica, failing fast on the first one
// that cannot be reached. Session state required by the options (the
// statement timeout, the hypopg extension) is set up here.
func OpenSession(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	s := &Session{replicas: cfg.Replicas}

	for _, replica := range cfg.Replicas {
		db, err := sql.Open("postgres", replica.DSN())
		if err != nil {
			s.Close()
			return nil, &ConnError{Replica: replica.ID, Err: err}
		}
		s.dbs = append(s.dbs, db)

		conn, err := db.Conn(ctx)
		if err != nil {
			s.Close()
			return nil, &ConnError{Replica: replica.ID, Err: err}
		}
		s.conns = append(s.conns, conn)

		if opts.StatementTimeout > 0 {
			_, err := conn.ExecContext(ctx,
				fmt.Sprintf("SET statement_timeout = %d", opts.StatementTimeout))
			if err != nil {
				s.Close()
				return nil, &ConnError{Replica: replica.ID, Err: err}
			}
		}
		if opts.Hypothetical {
			if _, err := conn.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS hypopg"); err != nil {
				s.Close()
				return nil, &ConnError{Replica: replica.ID, Err: err}
			}
		}

		zlog.Debug().Int("replica", replica.ID).Str("host", replica.Hostname).Msg("connected")
	}

	return s, nil
}

// Close releases every connection. Safe on a partially opened session.
func (s *Session) Close() {
	for i, conn := range s.conns {
		if err := conn.Close(); err != nil {
			zlog.Warn().Int("replica", s.replicas[i].ID).Err(err).Msg("closing connection")
		}
	}
	for _, db := range s.dbs {
		db.Close()
	}
	s.conns = nil
	s.dbs = nil
}

// executors returns the pinned connections, position-aligned with the
// configured replica set.
func (s *Session) executors() []executor {
	out := make([]executor, len(s.conns))
	for i, conn := range s.conns {
		out[i] = conn
	}
	return out
}
