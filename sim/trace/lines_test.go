package trace

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, r io.Reader, chunkSize int) []string {
	t.Helper()
	lr := NewLineReader(r, chunkSize)
	var lines []string
	for lr.Scan() {
		lines = append(lines, lr.Text())
	}
	require.NoError(t, lr.Err())
	return lines
}

func TestLineReader_SplitsLinesAcrossChunkSizes(t *testing.T) {
	// GIVEN input whose lines straddle every possible chunk boundary
	input := "100 R 4096 8\n100 W 16 8\nlast line"
	want := []string{"100 R 4096 8", "100 W 16 8", "last line"}

	// WHEN read with chunk sizes from 1 byte upwards
	for size := 1; size <= len(input)+1; size++ {
		got := readLines(t, strings.NewReader(input), size)

		// THEN the same lines come out every time
		assert.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestLineReader_MultiByteCharactersSurviveChunkBoundaries(t *testing.T) {
	// GIVEN lines with 2-, 3- and 4-byte UTF-8 sequences
	input := "héllo\n世界,write\n🚀 W 8\n"
	want := []string{"héllo", "世界,write", "🚀 W 8"}

	for size := 1; size <= 8; size++ {
		// WHEN read one small chunk at a time
		got := readLines(t, iotest.OneByteReader(strings.NewReader(input)), size)

		// THEN no character is split or replaced
		require.Equal(t, want, got, "chunk size %d", size)
		for _, line := range got {
			assert.True(t, utf8.ValidString(line))
			assert.NotContains(t, line, "\uFFFD")
		}
	}
}

func TestLineReader_StripsCRLF(t *testing.T) {
	got := readLines(t, strings.NewReader("a\r\nb\r\nc\r"), 2)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestLineReader_TrailingLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"terminated", "a\nb\n", []string{"a", "b"}},
		{"unterminated", "a\nb", []string{"a", "b"}},
		{"interior empty line kept", "a\n\nb", []string{"a", "", "b"}},
		{"lone carriage return dropped", "a\n\r", []string{"a"}},
		{"empty input", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readLines(t, strings.NewReader(tt.input), 3))
		})
	}
}

func TestLineReader_DropsLeadingBOMOnly(t *testing.T) {
	// GIVEN a stream that starts with a byte-order mark and repeats it later
	input := "\xEF\xBB\xBFa\n\xEF\xBB\xBFb\n"

	for _, size := range []int{1, 2, DefaultChunkSize} {
		// WHEN read
		got := readLines(t, strings.NewReader(input), size)

		// THEN only the leading mark is removed
		assert.Equal(t, []string{"a", "\uFEFFb"}, got, "chunk size %d", size)
	}
}

func TestLineReader_ShortInputIsNotMistakenForBOM(t *testing.T) {
	assert.Equal(t, []string{"", "x"}, readLines(t, strings.NewReader("\nx"), 1))
}

func TestLineReader_InvalidUTF8IsReplaced(t *testing.T) {
	got := readLines(t, strings.NewReader("a\xffb\n"), 0)
	assert.Equal(t, []string{"a\uFFFDb"}, got)
}

func TestLineReader_ReadErrorStopsScan(t *testing.T) {
	// GIVEN a reader that fails after one complete line and a partial one
	errBoom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("a\nb"), iotest.ErrReader(errBoom))
	lr := NewLineReader(r, 0)

	// WHEN scanned
	var lines []string
	for lr.Scan() {
		lines = append(lines, lr.Text())
	}

	// THEN the complete line is delivered, the partial one is not, and the error surfaces
	assert.Equal(t, []string{"a"}, lines)
	assert.ErrorIs(t, lr.Err(), errBoom)
	assert.False(t, lr.Scan(), "Scan after an error must keep returning false")
}

// dataErrReader returns all of its data together with err in a single Read.
type dataErrReader struct {
	data string
	err  error
	done bool
}

func (r *dataErrReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), r.err
}

func TestLineReader_LinesReadAlongsideErrorAreDelivered(t *testing.T) {
	// GIVEN a reader whose only Read returns three lines and an error
	errBoom := errors.New("boom")
	lr := NewLineReader(&dataErrReader{data: "a\nb\nc\npartial", err: errBoom}, 0)

	// WHEN scanned
	var lines []string
	for lr.Scan() {
		lines = append(lines, lr.Text())
	}

	// THEN every complete line comes out before the error is reported
	assert.Equal(t, []string{"a", "b", "c"}, lines)
	assert.ErrorIs(t, lr.Err(), errBoom)
	assert.False(t, lr.Scan())
}

func TestLineReader_LinesCountsEmittedLines(t *testing.T) {
	lr := NewLineReader(strings.NewReader("a\n\nb\n"), 0)
	for lr.Scan() {
	}
	assert.Equal(t, int64(3), lr.Lines())
}
