package trace

import (
	"bytes"
	"io"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutRecord_Layout(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want []byte
	}{
		{
			name: "read of never-written lba",
			rec:  Record{LBA: 512, Op: OpRead, PBA: 0},
			want: []byte{0x00, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "write",
			rec:  Record{LBA: 512, Op: OpWrite, PBA: 2},
			want: []byte{0x00, 0x02, 0, 0, 0, 0, 0, 0, 0x02, 0, 0, 0, 0, 0, 0, 0x10},
		},
		{
			name: "read of written lba",
			rec:  Record{LBA: 512, Op: OpRead, PBA: 2},
			want: []byte{0x00, 0x02, 0, 0, 0, 0, 0, 0, 0x02, 0, 0, 0, 0, 0, 0, 0x00},
		},
		{
			name: "pba wider than 60 bits is truncated",
			rec:  Record{LBA: 1, Op: OpRead, PBA: 0xF000000000000003},
			want: []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0x03, 0, 0, 0, 0, 0, 0, 0x00},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf [RecordSize]byte
			PutRecord(buf[:], tt.rec)
			assert.Equal(t, tt.want, buf[:])
			assert.Equal(t, tt.want, AppendRecord(nil, tt.rec))
		})
	}
}

func TestDecodeRecord_RoundTrip(t *testing.T) {
	// GIVEN random LBAs and PBAs across the full u64 range
	fz := fuzz.NewWithSeed(12345)
	for i := 0; i < 1000; i++ {
		var lba, pba uint64
		var write bool
		fz.Fuzz(&lba)
		fz.Fuzz(&pba)
		fz.Fuzz(&write)
		in := Record{LBA: lba, Op: Event{Write: write}.Op(), PBA: pba}

		// WHEN encoded and decoded
		out := DecodeRecord(AppendRecord(nil, in))

		// THEN lba and op survive exactly and pba keeps its low 60 bits
		require.Equal(t, Record{LBA: lba, Op: in.Op, PBA: pba & PBAMask}, out)
	}
}

func TestRecordWriterReader_Stream(t *testing.T) {
	// GIVEN records written through a RecordWriter
	recs := []Record{
		{LBA: 512, Op: OpRead, PBA: 0},
		{LBA: 512, Op: OpWrite, PBA: 2},
		{LBA: 512, Op: OpRead, PBA: 2},
		{LBA: 2, Op: OpWrite, PBA: 3},
	}
	var buf bytes.Buffer
	w := NewRecordWriter(&buf, 64)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, int64(len(recs)), w.Count())
	assert.Equal(t, len(recs)*RecordSize, buf.Len())

	// WHEN read back
	rr := NewRecordReader(&buf)
	var got []Record
	for {
		r, err := rr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, r)
	}

	// THEN the same records come out in order
	assert.Equal(t, recs, got)
	assert.Equal(t, int64(len(recs)), rr.Count())
}

func TestRecordReader_TornRecord(t *testing.T) {
	// GIVEN one full record followed by half of another
	data := AppendRecord(nil, Record{LBA: 1, Op: OpWrite, PBA: 2})
	data = append(data, make([]byte, RecordSize/2)...)
	rr := NewRecordReader(bytes.NewReader(data))

	// WHEN read
	_, err := rr.Next()
	require.NoError(t, err)
	_, err = rr.Next()

	// THEN the partial record is reported as unexpected EOF
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrShortWrite }

func TestRecordWriter_PropagatesWriteErrors(t *testing.T) {
	w := NewRecordWriter(failingWriter{}, RecordSize)
	require.NoError(t, w.Write(Record{LBA: 1}))
	err := w.Write(Record{LBA: 2})
	if err == nil {
		err = w.Flush()
	}
	assert.ErrorIs(t, err, io.ErrShortWrite)
}
