package results

import (
	"fmt"
	"strings"
)

// PrintSummary writes the run results to stdout: machine-readable
// "Csv:" lines per template, then a human-readable block in the shape
// of the original harness output. partial holds the 0-based templates
// of the training partition, if any.
func PrintSummary(r *Run, partial []int) {
	stats := r.Aggregate()

	fmt.Println("Csv:template,count,failures,total,mean,p95")
	for _, ts := range stats {
		fmt.Printf("Csv:%d,%d,%d,%.6f,%.6f,%.6f\n",
			ts.Template+1, ts.Count, ts.Failures, ts.Total, ts.Mean, ts.P95)
	}

	fmt.Println(strings.Repeat("=", 30))
	fmt.Printf("%s Performance Benchmark Results\n", r.Benchmark)
	fmt.Println()
	fmt.Printf("Run id                       = %s\n", r.ID)
	fmt.Printf("Total Runtime                = %.3f\n", r.Total())
	if len(partial) > 0 {
		fmt.Printf("Training Partition Runtime   = %.3f\n", r.PartialTotal(partial))
	}
	if n := r.FailureCount(); n > 0 {
		fmt.Printf("Failed Queries               = %d\n", n)
	}
	fmt.Println()
	for _, ts := range stats {
		fmt.Printf("Q%d = %.3f\n", ts.Template+1, ts.Total)
	}
	fmt.Println()
	fmt.Printf("Scale factor: %d\n", r.ScaleFactor)
	fmt.Println(strings.Repeat("=", 30))
}
