package bench

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	zlog "github.com/rs/zerolog/log"

	"divbench/config"
	"divbench/results"
	"divbench/tpc"
	"divbench/util"
	"divbench/workload"
)

// Runner drives one measurement run: apply the index candidates to
// their replicas, then execute every routed query instance and record
// its wall-clock latency. Index application always finishes before the
// first timed query.
type Runner struct {
	benchmark tpc.Benchmark
	cfg       *config.Config
	opts      Options
	conns     []executor // position-aligned with cfg.Replicas

	// names of the real indexes created, per replica position
	created [][]string
}

func NewRunner(benchmark tpc.Benchmark, cfg *config.Config, opts Options, session *Session) *Runner {
	return newRunner(benchmark, cfg, opts, session.executors())
}

func newRunner(benchmark tpc.Benchmark, cfg *config.Config, opts Options, conns []executor) *Runner {
	return &Runner{
		benchmark: benchmark,
		cfg:       cfg,
		opts:      opts,
		conns:     conns,
		created:   make([][]string, len(conns)),
	}
}

// Run executes the full measurement sequence and returns the collected
// measurements. Individual query failures are recorded, not returned;
// only setup problems (bad routing, index application) are errors.
func (r *Runner) Run(ctx context.Context, wl *workload.Workload) (*results.Run, error) {
	if len(r.cfg.Routes) != wl.Templates {
		return nil, fmt.Errorf("route table has %d entries, workload has %d templates",
			len(r.cfg.Routes), wl.Templates)
	}

	if r.opts.CreateIndexes {
		if err := r.applyIndexes(ctx); err != nil {
			return nil, err
		}
	} else {
		zlog.Info().Msg("skipping index creation")
	}

	run := results.NewRun(r.benchmark.String())
	run.Measurements = r.execute(ctx, wl)

	if r.opts.DropIndexes {
		r.teardownIndexes(ctx)
	}

	return run, nil
}

// applyIndexes materializes every configured index candidate on its
// replica, before any timed execution. Index names follow the original
// recommender convention (idx_1, idx_2, ... in file order).
func (r *Runner) applyIndexes(ctx context.Context) error {
	zlog.Info().Int("candidates", len(r.cfg.Candidates)).Msg("creating indexes")

	n := 0
	for _, cand := range r.cfg.Candidates {
		n++
		pos, ok := r.cfg.ReplicaIndex(cand.Replica)
		if !ok {
			return fmt.Errorf("index candidate references undefined replica %d", cand.Replica)
		}

		table, err := r.benchmark.TableForColumn(cand.Columns[0])
		if err != nil {
			return err
		}

		columns := strings.Join(cand.Columns, ", ")
		if r.opts.Hypothetical {
			stmt := fmt.Sprintf("CREATE INDEX ON %s (%s)", table, columns)
			_, err = r.conns[pos].ExecContext(ctx, "SELECT hypopg_create_index($1)", stmt)
		} else {
			name := fmt.Sprintf("idx_%d", n)
			_, err = r.conns[pos].ExecContext(ctx,
				fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, table, columns))
			if err == nil {
				r.created[pos] = append(r.created[pos], name)
			}
		}
		if err != nil {
			return fmt.Errorf("creating index %d on replica %d: %w", n, cand.Replica, err)
		}

		zlog.Debug().Int("replica", cand.Replica).Str("table", table).
			Str("columns", columns).Msg("index created")
	}

	return nil
}

func (r *Runner) execute(ctx context.Context, wl *workload.Workload) []results.Measurement {
	if r.opts.PerReplica {
		return r.executePerReplica(ctx, wl)
	}
	return r.executeSequential(ctx, wl)
}

func (r *Runner) executeSequential(ctx context.Context, wl *workload.Workload) []results.Measurement {
	order := make([]int, len(wl.Queries))
	for i := range order {
		order[i] = i
	}
	if r.opts.Shuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	measurements := make([]results.Measurement, len(wl.Queries))
	for i, qi := range order {
		q := wl.Queries[qi]
		zlog.Debug().Int("n", i+1).Int("of", len(order)).
			Int("template", q.Template+1).Msg("execute")

		measurements[qi] = r.measure(ctx, q)
	}
	return measurements
}

// executePerReplica runs each replica's routed slice of the workload in
// its own goroutine. Queries on one connection stay sequential; only
// the independent replicas overlap.
func (r *Runner) executePerReplica(ctx context.Context, wl *workload.Workload) []results.Measurement {
	byReplica := map[int][]int{}
	for i, q := range wl.Queries {
		pos, _ := r.cfg.ReplicaIndex(r.cfg.Routes[q.Template])
		byReplica[pos] = append(byReplica[pos], i)
	}

	measurements := make([]results.Measurement, len(wl.Queries))
	done := make(chan querySetResult)

	for pos, indices := range byReplica {
		qs := &querySet{
			runner:  r,
			replica: r.cfg.Replicas[pos].ID,
			queries: indices,
		}
		go qs.run(ctx, wl, measurements, done)
	}

	for range byReplica {
		res := <-done
		zlog.Info().Int("replica", res.replica).
			Float64("seconds", res.totalSeconds).Msg("replica query set done")
	}

	return measurements
}

// measure executes one query instance on its routed replica and records
// the elapsed wall time. Failures become failed measurements; the run
// carries on.
func (r *Runner) measure(ctx context.Context, q workload.Query) results.Measurement {
	replicaID := r.cfg.Routes[q.Template]
	pos, _ := r.cfg.ReplicaIndex(replicaID)

	sql := q.SQL
	if r.opts.Hypothetical {
		// hypothetical indexes only influence the planner
		sql = "EXPLAIN " + sql
	}

	start := time.Now()
	_, err := r.conns[pos].ExecContext(ctx, sql)
	elapsed := util.Seconds(time.Since(start))

	m := results.Measurement{
		Template: q.Template,
		Instance: q.Instance,
		Replica:  replicaID,
		Seconds:  elapsed,
	}
	if err != nil {
		m.Error = err.Error()
		zlog.Warn().Int("template", q.Template+1).Int("instance", q.Instance).
			Int("replica", replicaID).Err(err).Msg("query failed")
	} else {
		zlog.Debug().Int("template", q.Template+1).Int("instance", q.Instance).
			Float64("seconds", elapsed).Msg("query completed")
	}
	return m
}

// teardownIndexes drops whatever applyIndexes created. Best effort:
// the measurements are already collected, so failures only warn.
func (r *Runner) teardownIndexes(ctx context.Context) {
	if r.opts.Hypothetical {
		for pos, replica := range r.cfg.Replicas {
			if _, err := r.conns[pos].ExecContext(ctx, "SELECT hypopg_reset()"); err != nil {
				zlog.Warn().Int("replica", replica.ID).Err(err).Msg("hypopg reset failed")
			}
		}
		return
	}

	for pos, names := range r.created {
		for _, name := range names {
			if _, err := r.conns[pos].ExecContext(ctx, "DROP INDEX IF EXISTS "+name); err != nil {
				zlog.Warn().Int("replica", r.cfg.Replicas[pos].ID).
					Str("index", name).Err(err).Msg("index teardown failed")
			}
		}
	}
}
