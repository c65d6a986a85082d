package trace

import (
	"bytes"
	"io"
	"unicode/utf8"
)

// DefaultChunkSize is the number of bytes requested from the underlying
// reader per fill.
const DefaultChunkSize = 128 * 1024

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	crSuffix = []byte{'\r'}
)

// LineReader yields the lines of a text stream while reading it in
// fixed-size chunks. Bytes after the last newline of a chunk are kept and
// prefixed to the next chunk, so a line (or a multi-byte character) split
// across a chunk boundary is reassembled intact.
//
// Usage mirrors bufio.Scanner:
//
//	lr := NewLineReader(f, DefaultChunkSize)
//	for lr.Scan() {
//		handle(lr.Text())
//	}
//	if err := lr.Err(); err != nil { ... }
//
// Unlike bufio.Scanner there is no maximum line length.
type LineReader struct {
	r       io.Reader
	chunk   []byte
	pending []byte // unconsumed bytes; pending[off:] is the carry
	off     int
	line    string
	started bool
	eof     bool
	err     error
	lines   int64
}

// NewLineReader returns a LineReader over r. A non-positive chunkSize selects
// DefaultChunkSize.
func NewLineReader(r io.Reader, chunkSize int) *LineReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &LineReader{
		r:     r,
		chunk: make([]byte, chunkSize),
	}
}

// Scan advances to the next line, which is then available through Text.
// It returns false at end of input or on a read error.
func (lr *LineReader) Scan() bool {
	for {
		// Complete lines buffered before a read error are still delivered.
		if i := bytes.IndexByte(lr.pending[lr.off:], '\n'); i >= 0 {
			lr.setLine(lr.pending[lr.off : lr.off+i])
			lr.off += i + 1
			return true
		}
		if lr.err != nil {
			return false
		}
		if lr.eof {
			rest := bytes.TrimSuffix(lr.pending[lr.off:], crSuffix)
			lr.pending, lr.off = lr.pending[:0], 0
			if len(rest) == 0 {
				lr.line = ""
				return false
			}
			lr.setLine(rest)
			return true
		}
		lr.fill()
	}
}

// Text returns the most recent line produced by Scan, without its line
// terminator.
func (lr *LineReader) Text() string {
	return lr.line
}

// Err returns the first non-EOF error encountered while reading.
func (lr *LineReader) Err() error {
	return lr.err
}

// Lines returns the number of lines produced so far.
func (lr *LineReader) Lines() int64 {
	return lr.lines
}

func (lr *LineReader) fill() {
	if lr.off > 0 {
		n := copy(lr.pending, lr.pending[lr.off:])
		lr.pending, lr.off = lr.pending[:n], 0
	}
	for {
		n, err := lr.r.Read(lr.chunk)
		lr.pending = append(lr.pending, lr.chunk[:n]...)
		if err == io.EOF {
			lr.eof = true
			break
		}
		if err != nil {
			lr.err = err
			break
		}
		// The byte-order mark can only be recognized at the start of the
		// stream, so keep reading until enough bytes are buffered.
		if lr.started || len(lr.pending) >= len(utf8BOM) {
			break
		}
	}
	if !lr.started {
		lr.pending = bytes.TrimPrefix(lr.pending, utf8BOM)
		lr.started = true
	}
}

func (lr *LineReader) setLine(b []byte) {
	b = bytes.TrimSuffix(b, crSuffix)
	if utf8.Valid(b) {
		lr.line = string(b)
	} else {
		lr.line = string(bytes.ToValidUTF8(b, []byte("\uFFFD")))
	}
	lr.lines++
}
