// Package sim turns raw block-storage access traces into ground-truth input
// for benchmarking a flash translation layer (FTL).
//
// # Reading Guide
//
// Start with these files:
//   - shadow.go: ShadowMap, the simulated logical-to-physical allocator
//   - verify.go: replaying and checking a published binary trace
//
// # Architecture
//
// The sim package holds the address simulation; formats and orchestration
// live in sub-packages:
//   - sim/trace/: chunked line reader, two-dialect line parser, 16-byte record codec
//   - sim/task/: task catalog, input discovery, temp-file output and atomic publish
//
// Data flows one task at a time:
//
//	input files → trace.LineReader → trace.Parser → ShadowMap → trace.RecordWriter → temp file → publish
//
// Event order is load-bearing: a ShadowMap must see events in exact input
// order, so the task controller confines it to a single goroutine even when
// file reads run ahead of it.
package sim
