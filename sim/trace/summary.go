package trace

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spaolacci/murmur3"
)

// Summary aggregates statistics from a binary trace.
type Summary struct {
	Records       int64  `yaml:"records"`
	Reads         int64  `yaml:"reads"`
	Writes        int64  `yaml:"writes"`
	UnmappedReads int64  `yaml:"unmapped_reads"` // reads carrying the never-written sentinel PBA 0
	DistinctLBAs  int    `yaml:"distinct_lbas"`
	WrittenLBAs   int    `yaml:"written_lbas"`
	MaxLBA        uint64 `yaml:"max_lba"`
	MaxPBA        uint64 `yaml:"max_pba"`
	Digest        string `yaml:"digest"` // murmur3 x64 128-bit over the encoded records
}

// Summarize reads every record from r and computes aggregate statistics.
// Safe for empty streams (returns zero-value fields and the digest of no input).
// A stream whose length is not a multiple of RecordSize is an error.
func Summarize(r io.Reader) (*Summary, error) {
	summary := &Summary{}
	lbas := make(map[uint64]bool)
	h := murmur3.New128()
	rr := NewRecordReader(bufio.NewReaderSize(r, 1<<20))
	var buf [RecordSize]byte
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		PutRecord(buf[:], rec)
		_, _ = h.Write(buf[:])

		summary.Records++
		if rec.LBA > summary.MaxLBA {
			summary.MaxLBA = rec.LBA
		}
		if rec.PBA > summary.MaxPBA {
			summary.MaxPBA = rec.PBA
		}
		switch rec.Op {
		case OpWrite:
			summary.Writes++
			lbas[rec.LBA] = true
		default:
			summary.Reads++
			if rec.PBA == 0 {
				summary.UnmappedReads++
			}
			if _, seen := lbas[rec.LBA]; !seen {
				lbas[rec.LBA] = false
			}
		}
	}
	summary.DistinctLBAs = len(lbas)
	for _, written := range lbas {
		if written {
			summary.WrittenLBAs++
		}
	}
	h1, h2 := h.Sum128()
	summary.Digest = fmt.Sprintf("%016x%016x", h1, h2)
	return summary, nil
}
