// Package config reads the three CSV files produced by the index
// recommender: the replica set, the per-replica index candidates, and
// the template routing table. All validation happens here, before any
// connection is opened.
package config

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Error reports a malformed or inconsistent configuration file.
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("config %s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("config %s: %s", e.File, e.Msg)
}

// Replica is one PostgreSQL instance of the divergent-index cluster.
type Replica struct {
	ID       int
	Hostname string
	Port     int
	DBName   string
	User     string
	Password string
}

// DSN returns the lib/pq keyword/value connection string.
func (r Replica) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		r.Hostname, r.Port, r.DBName, r.User, r.Password)
}

// IndexCandidate is one secondary index the recommender assigned to a
// replica. The target table is derived later from the column prefix,
// since the mapping depends on the benchmark being run.
type IndexCandidate struct {
	Replica int
	Columns []string
}

// Paths locates the configuration files. PartialTemplates may point at
// a nonexistent file; the others must exist.
type Paths struct {
	Replicas         string
	IndexConfig      string
	RouteTable       string
	PartialTemplates string
}

// Config is the validated, immutable view of the recommender output.
type Config struct {
	Replicas   []Replica
	Candidates []IndexCandidate
	Routes     []int // template number -> replica id
	Partial    []int // 0-based template numbers of the training partition

	byID map[int]int
}

// Load reads and cross-validates all configuration files.
func Load(paths Paths) (*Config, error) {
	c := &Config{byID: map[int]int{}}

	if err := c.loadReplicas(paths.Replicas); err != nil {
		return nil, err
	}
	if err := c.loadCandidates(paths.IndexConfig); err != nil {
		return nil, err
	}
	if err := c.loadRoutes(paths.RouteTable); err != nil {
		return nil, err
	}
	if err := c.loadPartial(paths.PartialTemplates); err != nil {
		return nil, err
	}

	return c, nil
}

// ReplicaIndex maps a replica id to its position in Replicas.
func (c *Config) ReplicaIndex(id int) (int, bool) {
	i, ok := c.byID[id]
	return i, ok
}

func readAll(path string, variableFields bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{File: path, Msg: err.Error()}
	}
	defer f.Close()

	r := csv.NewReader(f)
	if variableFields {
		r.FieldsPerRecord = -1
	}

	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &Error{File: path, Msg: err.Error()}
		}
		records = append(records, record)
	}

	return records, nil
}

func (c *Config) loadReplicas(path string) error {
	records, err := readAll(path, false)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return &Error{File: path, Msg: "no replicas defined"}
	}

	for i, record := range records {
		if len(record) != 6 {
			return &Error{File: path, Line: i + 1,
				Msg: fmt.Sprintf("expected 6 fields, got %d", len(record))}
		}

		id, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return &Error{File: path, Line: i + 1, Msg: "invalid replica id: " + record[0]}
		}
		port, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			return &Error{File: path, Line: i + 1, Msg: "invalid port: " + record[2]}
		}
		if _, dup := c.byID[id]; dup {
			return &Error{File: path, Line: i + 1,
				Msg: fmt.Sprintf("duplicate replica id %d", id)}
		}

		c.byID[id] = len(c.Replicas)
		c.Replicas = append(c.Replicas, Replica{
			ID:       id,
			Hostname: strings.TrimSpace(record[1]),
			Port:     port,
			DBName:   strings.TrimSpace(record[3]),
			User:     strings.TrimSpace(record[4]),
			Password: strings.TrimSpace(record[5]),
		})
	}

	return nil
}

func (c *Config) loadCandidates(path string) error {
	records, err := readAll(path, true)
	if err != nil {
		return err
	}

	for i, record := range records {
		if len(record) < 2 {
			return &Error{File: path, Line: i + 1,
				Msg: "index candidate needs a replica id and at least one column"}
		}

		id, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return &Error{File: path, Line: i + 1, Msg: "invalid replica id: " + record[0]}
		}
		if _, ok := c.byID[id]; !ok {
			return &Error{File: path, Line: i + 1,
				Msg: fmt.Sprintf("index candidate references undefined replica %d", id)}
		}

		columns := make([]string, 0, len(record)-1)
		for _, col := range record[1:] {
			col = strings.TrimSpace(col)
			if col == "" {
				return &Error{File: path, Line: i + 1, Msg: "empty column name"}
			}
			columns = append(columns, col)
		}

		c.Candidates = append(c.Candidates, IndexCandidate{Replica: id, Columns: columns})
	}

	return nil
}

func (c *Config) loadRoutes(path string) error {
	records, err := readAll(path, true)
	if err != nil {
		return err
	}
	if len(records) != 1 {
		return &Error{File: path, Msg: "route table must be a single CSV row"}
	}

	for i, field := range records[0] {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return &Error{File: path, Msg: "invalid replica id: " + field}
		}
		if _, ok := c.byID[id]; !ok {
			return &Error{File: path,
				Msg: fmt.Sprintf("template %d routed to undefined replica %d", i+1, id)}
		}
		c.Routes = append(c.Routes, id)
	}

	return nil
}

// The partial templates file holds the 1-based template numbers of the
// training partition. It is optional: a missing file means no partition.
func (c *Config) loadPartial(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	records, err := readAll(path, true)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if len(records) != 1 {
		return &Error{File: path, Msg: "partial templates must be a single CSV row"}
	}

	for _, field := range records[0] {
		t, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return &Error{File: path, Msg: "invalid template number: " + field}
		}
		if t < 1 || t > len(c.Routes) {
			return &Error{File: path,
				Msg: fmt.Sprintf("template number %d out of range", t)}
		}
		c.Partial = append(c.Partial, t-1)
	}

	return nil
}
