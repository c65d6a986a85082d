// Package trace provides the block-trace formats used by the converter: a
// chunked line reader for raw text traces, a two-dialect line parser, and the
// fixed 16-byte binary record codec consumed by the FTL benchmark harness.
// This package has no dependencies on sim/ or sim/task/; it stores pure data types.
package trace

// Op is the operation code stored in the top 4 bits of a record's packed word.
type Op uint8

const (
	// OpRead is a read of a logical block.
	OpRead Op = 0
	// OpWrite is a write of a logical block.
	OpWrite Op = 1
)

// validOps maps accepted operation codes.
var validOps = map[Op]string{
	OpRead:  "read",
	OpWrite: "write",
}

// IsValid reports whether op is a recognized operation code.
func (op Op) IsValid() bool {
	_, ok := validOps[op]
	return ok
}

func (op Op) String() string {
	if name, ok := validOps[op]; ok {
		return name
	}
	return "unknown"
}

// Event is one accepted trace line: a 4096-byte-aligned logical block index
// and whether the access was a write.
type Event struct {
	LBA   uint64
	Write bool
}

// Op returns the operation code for the event.
func (e Event) Op() Op {
	if e.Write {
		return OpWrite
	}
	return OpRead
}

// Record is one ground-truth triple as written to the binary trace.
type Record struct {
	LBA uint64
	Op  Op
	PBA uint64
}
