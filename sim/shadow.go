package sim

import (
	"github.com/inference-sim/ftltrace/sim/trace"
)

// InitialPBA is the counter value a ShadowMap starts from. The counter is
// incremented before each write is assigned, so the first write of a run
// receives InitialPBA+1. Published traces depend on this value.
const InitialPBA uint64 = 1

// UnmappedPBA is the PBA reported for reads of an LBA that has not been
// written in the current run.
const UnmappedPBA uint64 = 0

// ShadowMap simulates a never-in-place-update allocator: every write gets a
// fresh physical address from a monotonically increasing counter and reads
// resolve to the address of the most recent write to the same LBA.
//
// A ShadowMap belongs to a single task run. Results depend on the order in
// which events are applied, and the type is not safe for concurrent use.
type ShadowMap struct {
	table   map[uint64]uint64
	counter uint64
}

// NewShadowMap returns an empty ShadowMap with its counter at InitialPBA.
func NewShadowMap() *ShadowMap {
	return &ShadowMap{
		table:   make(map[uint64]uint64),
		counter: InitialPBA,
	}
}

// Apply advances the simulation by one event and returns the ground-truth
// record for it.
func (m *ShadowMap) Apply(ev trace.Event) trace.Record {
	if ev.Write {
		m.counter++
		m.table[ev.LBA] = m.counter
		return trace.Record{LBA: ev.LBA, Op: trace.OpWrite, PBA: m.counter}
	}
	pba, ok := m.table[ev.LBA]
	if !ok {
		pba = UnmappedPBA
	}
	return trace.Record{LBA: ev.LBA, Op: trace.OpRead, PBA: pba}
}

// Lookup returns the PBA of the last write to lba.
func (m *ShadowMap) Lookup(lba uint64) (uint64, bool) {
	pba, ok := m.table[lba]
	return pba, ok
}

// Len returns the number of distinct LBAs written so far.
func (m *ShadowMap) Len() int {
	return len(m.table)
}

// Counter returns the last PBA handed out, or InitialPBA before any write.
func (m *ShadowMap) Counter() uint64 {
	return m.counter
}
