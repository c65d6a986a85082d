package sim

import (
	"bufio"
	"fmt"
	"io"

	"github.com/inference-sim/ftltrace/sim/trace"
)

// MismatchError reports the first record of a trace that disagrees with a
// fresh ShadowMap replay.
type MismatchError struct {
	Index int64 // zero-based record index
	Got   trace.Record
	Want  trace.Record
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("record %d: got %s lba=%d pba=%d, want pba=%d",
		e.Index, e.Got.Op, e.Got.LBA, e.Got.PBA, e.Want.PBA)
}

// VerifyReport summarizes a successful verification.
type VerifyReport struct {
	Records int64
	Writes  int64
	MaxLBA  uint64
}

// Verify replays the (lba, op) stream of a binary trace through a fresh
// ShadowMap and checks that every stored PBA matches. Because the replay
// assigns write PBAs from a strictly increasing counter, a verified trace also
// has strictly increasing, never-reused write PBAs and last-write-wins reads.
// PBAs are compared on their low 60 bits, as stored.
func Verify(r io.Reader) (*VerifyReport, error) {
	report := &VerifyReport{}
	shadow := NewShadowMap()
	rr := trace.NewRecordReader(bufio.NewReaderSize(r, 1<<20))
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return report, nil
		}
		if err != nil {
			return nil, err
		}
		if !rec.Op.IsValid() {
			return nil, fmt.Errorf("record %d: unknown op code %d", report.Records, rec.Op)
		}
		want := shadow.Apply(trace.Event{LBA: rec.LBA, Write: rec.Op == trace.OpWrite})
		if want.PBA&trace.PBAMask != rec.PBA {
			return nil, &MismatchError{Index: report.Records, Got: rec, Want: want}
		}
		report.Records++
		if rec.Op == trace.OpWrite {
			report.Writes++
		}
		if rec.LBA > report.MaxLBA {
			report.MaxLBA = rec.LBA
		}
	}
}

// Replay reads a binary trace and returns the mapping of each written LBA to
// the PBA of its last write, as a benchmark harness would rebuild it.
func Replay(r io.Reader) (map[uint64]uint64, error) {
	mapping := make(map[uint64]uint64)
	rr := trace.NewRecordReader(bufio.NewReaderSize(r, 1<<20))
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return mapping, nil
		}
		if err != nil {
			return nil, err
		}
		if rec.Op == trace.OpWrite {
			mapping[rec.LBA] = rec.PBA
		}
	}
}
