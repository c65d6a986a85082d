package task

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// decompressors maps a compressed-file extension to a streaming decoder.
// The returned release func frees decoder resources; it does not close f.
var decompressors = map[string]func(f io.Reader) (r io.Reader, release func(), err error){
	".zst": func(f io.Reader) (io.Reader, func(), error) {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	},
	".s2": func(f io.Reader) (io.Reader, func(), error) {
		return s2.NewReader(f), func() {}, nil
	},
	".gz": func(f io.Reader) (io.Reader, func(), error) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	},
}

// InputError reports an input file that could not be opened. Errors while
// reading an opened file are not InputErrors.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("opening input %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// ListInputs returns the regular files in dir whose names end in suffix,
// optionally followed by a compression extension (.zst, .s2, .gz), sorted by
// file name.
func ListInputs(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing inputs in %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		base := e.Name()
		if _, compressed := decompressors[filepath.Ext(base)]; compressed {
			base = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if strings.HasSuffix(base, suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// sortInputs returns a copy of paths ordered by file name, then full path.
func sortInputs(paths []string) []string {
	sorted := append([]string(nil), paths...)
	sort.SliceStable(sorted, func(i, j int) bool {
		bi, bj := filepath.Base(sorted[i]), filepath.Base(sorted[j])
		if bi != bj {
			return bi < bj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

type inputFile struct {
	io.Reader
	file    *os.File
	release func()
}

func (in *inputFile) Close() error {
	if in.release != nil {
		in.release()
	}
	return in.file.Close()
}

// OpenInput opens a raw trace file, transparently decompressing it when its
// extension names a supported codec. Failures are returned as *InputError.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	open, ok := decompressors[filepath.Ext(path)]
	if !ok {
		return &inputFile{Reader: f, file: f}, nil
	}
	r, release, err := open(f)
	if err != nil {
		_ = f.Close()
		return nil, &InputError{Path: path, Err: err}
	}
	return &inputFile{Reader: r, file: f, release: release}, nil
}
