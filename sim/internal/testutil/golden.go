// Package testutil provides shared test infrastructure for the trace
// converter. It consolidates golden dataset types and fixture helpers used
// across sim/ and sim/task/ test packages.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/inference-sim/ftltrace/sim/trace"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one conversion: input files, a record limit and the
// exact records and sidecar value the converter must produce.
type GoldenTestCase struct {
	Name    string         `json:"name"`
	Limit   int64          `json:"limit"`
	Files   []GoldenFile   `json:"files"`
	Records []GoldenRecord `json:"records"`
	MaxLBA  string         `json:"max_lba"`
}

// GoldenFile is one raw text trace file.
type GoldenFile struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// GoldenRecord is an expected output record.
type GoldenRecord struct {
	LBA uint64 `json:"lba"`
	Op  uint8  `json:"op"`
	PBA uint64 `json:"pba"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// WriteInputs writes the test case's files into dir, in dataset order, and
// returns their paths.
func (tc GoldenTestCase) WriteInputs(t *testing.T, dir string) []string {
	t.Helper()
	paths := make([]string, 0, len(tc.Files))
	for _, f := range tc.Files {
		paths = append(paths, WriteTraceFile(t, dir, f.Name, f.Lines...))
	}
	return paths
}

// ExpectedRecords converts the golden records to trace.Records.
func (tc GoldenTestCase) ExpectedRecords() []trace.Record {
	recs := make([]trace.Record, 0, len(tc.Records))
	for _, r := range tc.Records {
		recs = append(recs, trace.Record{LBA: r.LBA, Op: trace.Op(r.Op), PBA: r.PBA})
	}
	return recs
}

// WriteTraceFile writes lines, newline-terminated, to dir/name and returns the path.
func WriteTraceFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var content string
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write trace fixture %s: %v", path, err)
	}
	return path
}

// ReadRecords decodes every record of the binary trace at path.
func ReadRecords(t *testing.T, path string) []trace.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read binary trace %s: %v", path, err)
	}
	if len(data)%trace.RecordSize != 0 {
		t.Fatalf("binary trace %s has %d bytes, not a multiple of %d", path, len(data), trace.RecordSize)
	}
	recs := make([]trace.Record, 0, len(data)/trace.RecordSize)
	for off := 0; off < len(data); off += trace.RecordSize {
		recs = append(recs, trace.DecodeRecord(data[off:]))
	}
	return recs
}
