package task

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = "1 W 8\n2 R 16\nt,h,d,Write,8192.5,x\n"

func compress(t *testing.T, ext string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch ext {
	case ".zst":
		enc, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = enc
	case ".s2":
		w = s2.NewWriter(&buf)
	case ".gz":
		w = gzip.NewWriter(&buf)
	default:
		t.Fatalf("unknown extension %s", ext)
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpenInput_DecompressesByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".zst", ".s2", ".gz"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "trace.revised"+ext)
			require.NoError(t, os.WriteFile(path, compress(t, ext, []byte(sampleTrace)), 0644))

			r, err := OpenInput(path)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, sampleTrace, string(got))
		})
	}
}

func TestOpenInput_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.revised")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrace), 0644))

	r, err := OpenInput(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, sampleTrace, string(got))
}

func TestOpenInput_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := OpenInput(filepath.Join(dir, "nope.revised"))
		var inErr *InputError
		require.True(t, errors.As(err, &inErr))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("corrupt gzip header", func(t *testing.T) {
		path := filepath.Join(dir, "bad.revised.gz")
		require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0644))
		_, err := OpenInput(path)
		var inErr *InputError
		assert.True(t, errors.As(err, &inErr))
	})
}

func TestListInputs_FiltersAndSorts(t *testing.T) {
	// GIVEN a directory with matching, compressed and unrelated entries
	dir := t.TempDir()
	for _, name := range []string{
		"c.revised", "a.revised", "b.revised.zst", "d.revised.gz",
		"notes.txt", "e.revised.bak", "f.revisedx",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "g.revised"), 0755))

	// WHEN listed
	got, err := ListInputs(dir, ".revised")

	// THEN only regular matching files are returned in name order
	require.NoError(t, err)
	want := []string{
		filepath.Join(dir, "a.revised"),
		filepath.Join(dir, "b.revised.zst"),
		filepath.Join(dir, "c.revised"),
		filepath.Join(dir, "d.revised.gz"),
	}
	assert.Equal(t, want, got)
}

func TestListInputs_MissingDir(t *testing.T) {
	_, err := ListInputs(filepath.Join(t.TempDir(), "absent"), ".revised")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSortInputs_ByBaseNameThenPath(t *testing.T) {
	in := []string{"/z/b.revised", "/y/a.revised", "/x/b.revised"}
	got := sortInputs(in)
	assert.Equal(t, []string{"/y/a.revised", "/x/b.revised", "/z/b.revised"}, got)
	// input slice untouched
	assert.Equal(t, "/z/b.revised", in[0])
}
