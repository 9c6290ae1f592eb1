// Package results collects and aggregates the measurements of a run.
package results

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// Measurement is the outcome of one query instance on its routed
// replica. A non-empty Error marks a failed measurement.
type Measurement struct {
	Template int
	Instance int
	Replica  int
	Seconds  float64
	Error    string
}

func (m Measurement) Failed() bool { return m.Error != "" }

// Run is one complete benchmark run.
type Run struct {
	ID           string
	Benchmark    string
	ScaleFactor  int
	StartedAt    time.Time
	Measurements []Measurement
}

func NewRun(benchmark string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Benchmark: benchmark,
		StartedAt: time.Now(),
	}
}

// TemplateStats aggregates all instances of one query template.
type TemplateStats struct {
	Template int // 0-based
	Count    int
	Failures int
	Total    float64
	Mean     float64
	P95      float64
}

// Aggregate groups the measurements per template, ordered by template
// number. Failed measurements count toward Failures only.
func (r *Run) Aggregate() []TemplateStats {
	byTemplate := map[int]*TemplateStats{}
	times := map[int][]float64{}

	for _, m := range r.Measurements {
		ts, ok := byTemplate[m.Template]
		if !ok {
			ts = &TemplateStats{Template: m.Template}
			byTemplate[m.Template] = ts
		}

		if m.Failed() {
			ts.Failures++
			continue
		}
		ts.Count++
		ts.Total += m.Seconds
		times[m.Template] = append(times[m.Template], m.Seconds)
	}

	stats := make([]TemplateStats, 0, len(byTemplate))
	for t, ts := range byTemplate {
		if xs := times[t]; len(xs) > 0 {
			sort.Float64s(xs)
			ts.Mean = stat.Mean(xs, nil)
			ts.P95 = stat.Quantile(0.95, stat.Empirical, xs, nil)
		}
		stats = append(stats, *ts)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Template < stats[j].Template })

	return stats
}

// Total is the sum of all successful execution times.
func (r *Run) Total() float64 {
	total := 0.
	for _, m := range r.Measurements {
		if !m.Failed() {
			total += m.Seconds
		}
	}
	return total
}

// PartialTotal sums the execution times of the given 0-based templates
// (the training partition).
func (r *Run) PartialTotal(templates []int) float64 {
	inPartition := map[int]bool{}
	for _, t := range templates {
		inPartition[t] = true
	}

	total := 0.
	for _, m := range r.Measurements {
		if inPartition[m.Template] && !m.Failed() {
			total += m.Seconds
		}
	}
	return total
}

// FailureCount returns the number of failed measurements.
func (r *Run) FailureCount() int {
	n := 0
	for _, m := range r.Measurements {
		if m.Failed() {
			n++
		}
	}
	return n
}
