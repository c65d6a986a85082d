package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// RecordSize is the encoded size of one Record in bytes.
	RecordSize = 16
	// PBAMask keeps the 60 bits of a PBA that fit beside the op code.
	PBAMask uint64 = 0x0FFFFFFFFFFFFFFF

	opShift = 60
)

// PutRecord encodes r into b[:RecordSize]: the LBA as a little-endian u64,
// then a little-endian u64 holding the op in its top 4 bits and the PBA in
// the low 60. PBA bits above 60 are dropped without error.
func PutRecord(b []byte, r Record) {
	_ = b[RecordSize-1]
	binary.LittleEndian.PutUint64(b[0:8], r.LBA)
	binary.LittleEndian.PutUint64(b[8:16], (uint64(r.Op)<<opShift)|(r.PBA&PBAMask))
}

// AppendRecord appends the encoding of r to b.
func AppendRecord(b []byte, r Record) []byte {
	var buf [RecordSize]byte
	PutRecord(buf[:], r)
	return append(b, buf[:]...)
}

// DecodeRecord decodes the first RecordSize bytes of b.
func DecodeRecord(b []byte) Record {
	_ = b[RecordSize-1]
	word := binary.LittleEndian.Uint64(b[8:16])
	return Record{
		LBA: binary.LittleEndian.Uint64(b[0:8]),
		Op:  Op(word >> opShift),
		PBA: word & PBAMask,
	}
}

// RecordWriter buffers encoded records onto an io.Writer.
type RecordWriter struct {
	w   *bufio.Writer
	buf [RecordSize]byte
	n   int64
}

// NewRecordWriter returns a RecordWriter with a buffer of size bytes.
func NewRecordWriter(w io.Writer, size int) *RecordWriter {
	return &RecordWriter{w: bufio.NewWriterSize(w, size)}
}

// Write encodes and buffers one record.
func (rw *RecordWriter) Write(r Record) error {
	PutRecord(rw.buf[:], r)
	if _, err := rw.w.Write(rw.buf[:]); err != nil {
		return fmt.Errorf("writing record %d: %w", rw.n, err)
	}
	rw.n++
	return nil
}

// Count returns the number of records written.
func (rw *RecordWriter) Count() int64 {
	return rw.n
}

// Flush writes any buffered records to the underlying writer.
func (rw *RecordWriter) Flush() error {
	return rw.w.Flush()
}

// RecordReader decodes a stream of records.
type RecordReader struct {
	r   io.Reader
	buf [RecordSize]byte
	n   int64
}

// NewRecordReader returns a RecordReader reading from r. Callers should pass
// a buffered reader for files.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: r}
}

// Next returns the next record. It returns io.EOF when the stream ends on a
// record boundary and io.ErrUnexpectedEOF when it ends inside a record.
func (rr *RecordReader) Next() (Record, error) {
	if _, err := io.ReadFull(rr.r, rr.buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, fmt.Errorf("record %d is truncated: %w", rr.n, err)
		}
		return Record{}, err
	}
	rr.n++
	return DecodeRecord(rr.buf[:]), nil
}

// Count returns the number of records decoded.
func (rr *RecordReader) Count() int64 {
	return rr.n
}
