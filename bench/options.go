package bench

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options tune one measurement run. They live in a small YAML file
// rather than flags so an experiment's knobs can be versioned next to
// the recommender's CSV output.
type Options struct {
	// StatementTimeout is applied to every replica connection, in
	// milliseconds. Zero leaves the server default (no timeout).
	StatementTimeout int `yaml:"statementTimeout"`
	// Hypothetical simulates the index candidates with hypopg instead
	// of physically building them; queries then run under EXPLAIN.
	Hypothetical bool `yaml:"hypothetical"`
	// CreateIndexes applies the index candidates before measurement.
	// Disabled when the operator has already materialized them.
	CreateIndexes bool `yaml:"createIndexes"`
	// DropIndexes tears the created indexes down after measurement,
	// best effort.
	DropIndexes bool `yaml:"dropIndexes"`
	// Shuffle randomises the execution order across the workload.
	Shuffle bool `yaml:"shuffle"`
	// PerReplica runs each replica's routed queries in its own
	// goroutine instead of one global sequential stream.
	PerReplica bool `yaml:"perReplica"`
	// ResultsDB is an sqlite file to persist measurements into.
	ResultsDB string `yaml:"resultsDB"`
}

func DefaultOptions() Options {
	return Options{
		CreateIndexes: true,
		Shuffle:       true,
	}
}

// LoadOptions reads an options file over the defaults. An empty path
// returns the defaults unchanged.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing options: %w", err)
	}
	return opts, nil
}
