package bench

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"divbench/results"
	"divbench/util"
	"divbench/workload"
)

// querySet is one replica's routed slice of the workload, executed on
// that replica's pinned connection in a dedicated goroutine.
type querySet struct {
	runner  *Runner
	replica int
	queries []int // indices into the workload
}

type querySetResult struct {
	replica      int
	totalSeconds float64
}

// run executes the set in workload order and writes each measurement
// into its slot of out. Slots are disjoint across query sets, so no
// locking is needed.
func (qs *querySet) run(ctx context.Context, wl *workload.Workload, out []results.Measurement, done chan<- querySetResult) {
	start := util.EpochSeconds()

	for i, qi := range qs.queries {
		q := wl.Queries[qi]
		zlog.Debug().Int("replica", qs.replica).Int("n", i+1).Int("of", len(qs.queries)).
			Int("template", q.Template+1).Msg("execute")

		out[qi] = qs.runner.measure(ctx, q)
	}

	done <- querySetResult{
		replica:      qs.replica,
		totalSeconds: util.EpochSeconds() - start,
	}
}
