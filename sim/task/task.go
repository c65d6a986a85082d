// Package task drives trace conversion tasks: each task streams an ordered set
// of raw trace files through a fresh ShadowMap into a binary trace, stopping at
// its record limit, and publishes the result atomically with a sidecar.
package task

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Spec describes one conversion task.
type Spec struct {
	Name   string `yaml:"name"`
	Output string `yaml:"output"` // relative to the data directory unless absolute
	Limit  int64  `yaml:"limit"`  // maximum number of records to emit
}

// Catalog is the set of tasks a conversion run may execute.
// Loaded from YAML via LoadCatalog(path).
type Catalog struct {
	Default string `yaml:"default,omitempty"` // task exposed under Alias; empty = smallest limit
	Alias   string `yaml:"alias,omitempty"`   // alias file name in the data directory; empty = none
	Tasks   []Spec `yaml:"tasks"`
}

// DefaultCatalog returns the built-in catalog: a quick task of one million
// records and a full task of one hundred million, with quick exposed as
// trace.bin.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Default: "quick",
		Alias:   "trace.bin",
		Tasks: []Spec{
			{Name: "quick", Output: "quick.bin", Limit: 1_000_000},
			{Name: "full", Output: "full.bin", Limit: 100_000_000},
		},
	}
}

// LoadCatalog reads and parses a YAML task catalog.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task catalog: %w", err)
	}
	var c Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing task catalog %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks task names, outputs, limits and the alias settings.
func (c *Catalog) Validate() error {
	if len(c.Tasks) == 0 {
		return fmt.Errorf("at least one task required")
	}
	names := make(map[string]bool, len(c.Tasks))
	outputs := make(map[string]string, len(c.Tasks))
	for i, t := range c.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		if t.Name == "" {
			return fmt.Errorf("%s: name must not be empty", prefix)
		}
		if t.Name != filepath.Base(t.Name) {
			return fmt.Errorf("%s: name %q must not contain path separators", prefix, t.Name)
		}
		if names[t.Name] {
			return fmt.Errorf("%s: duplicate task name %q", prefix, t.Name)
		}
		names[t.Name] = true
		if t.Output == "" {
			return fmt.Errorf("%s: output must not be empty", prefix)
		}
		out := filepath.Clean(t.Output)
		if other, ok := outputs[out]; ok {
			return fmt.Errorf("%s: output %q already used by task %q", prefix, t.Output, other)
		}
		outputs[out] = t.Name
		if t.Limit <= 0 {
			return fmt.Errorf("%s: limit must be positive, got %d", prefix, t.Limit)
		}
	}
	if c.Default != "" && !names[c.Default] {
		return fmt.Errorf("default task %q is not in the catalog", c.Default)
	}
	if c.Alias != "" {
		if c.Alias != filepath.Base(c.Alias) {
			return fmt.Errorf("alias %q must be a file name, not a path", c.Alias)
		}
		if task, ok := outputs[filepath.Clean(c.Alias)]; ok {
			return fmt.Errorf("alias %q collides with the output of task %q", c.Alias, task)
		}
	}
	return nil
}

// Select returns the named tasks in catalog order, or every task if names is
// empty.
func (c *Catalog) Select(names []string) ([]Spec, error) {
	if len(names) == 0 {
		return append([]Spec(nil), c.Tasks...), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Spec
	for _, t := range c.Tasks {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown tasks %v", missing)
	}
	return out, nil
}

// DefaultTask returns the task to expose under the alias: the configured
// default, or else the task with the smallest limit (first wins on ties).
func (c *Catalog) DefaultTask() (Spec, bool) {
	if len(c.Tasks) == 0 {
		return Spec{}, false
	}
	if c.Default != "" {
		for _, t := range c.Tasks {
			if t.Name == c.Default {
				return t, true
			}
		}
		return Spec{}, false
	}
	best := c.Tasks[0]
	for _, t := range c.Tasks[1:] {
		if t.Limit < best.Limit {
			best = t
		}
	}
	return best, true
}

// State is a task's position in its lifecycle. A run moves
// NotStarted → SkippedExisting, or NotStarted → Processing → Finalizing → Done.
// A failed run reports the state it failed in; nothing is published, so the
// next run starts the task over.
type State string

const (
	StateNotStarted      State = "not_started"
	StateSkippedExisting State = "skipped_existing"
	StateProcessing      State = "processing"
	StateFinalizing      State = "finalizing"
	StateDone            State = "done"
)

// Result reports the outcome of one task run.
type Result struct {
	Task         string
	State        State
	Records      int64
	MaxLBA       uint64
	Files        int    // input files opened
	SkippedLines int64  // lines rejected by the parser
	Output       string // final binary trace; empty when nothing was published
	Sidecar      string // sidecar path; empty when nothing was published
}

// Published reports whether this run produced a new output file.
func (r Result) Published() bool {
	return r.State == StateDone && r.Output != ""
}
