package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
)

// rename is os.Rename; tests replace it to simulate cross-device moves.
var rename = os.Rename

// symlink is os.Symlink; tests replace it to simulate platforms without symlinks.
var symlink = os.Symlink

// Sidecar is the JSON metadata written next to a published trace. MaxLBA is a
// decimal string so consumers without 64-bit integers read it exactly.
type Sidecar struct {
	MaxLBA string `json:"max_lba"`
}

// WriteSidecar writes {"max_lba": "<maxLBA>"} to path.
func WriteSidecar(path string, maxLBA uint64) error {
	data, err := json.MarshalIndent(Sidecar{MaxLBA: strconv.FormatUint(maxLBA, 10)}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sidecar: %w", err)
	}
	return writeFileAtomic(path, data)
}

// ReadSidecar returns the max_lba recorded in the sidecar at path.
func ReadSidecar(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("parsing sidecar %s: %w", path, err)
	}
	maxLBA, err := strconv.ParseUint(s.MaxLBA, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sidecar %s: invalid max_lba %q: %w", path, s.MaxLBA, err)
	}
	return maxLBA, nil
}

// moveFile renames src to dst. When the two are on different devices it
// copies src into dst's directory, renames the copy into place and removes
// src, so dst never exists in a partially written state.
func moveFile(src, dst string) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("moving %s to %s: %w", src, dst, err)
	}
	logrus.Warnf("%s and %s are on different devices; copying instead of renaming", src, dst)
	if err := copyFileAtomic(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing %s after copy: %w", src, err)
	}
	return nil
}

func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()
	return writeAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func writeFileAtomic(path string, data []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeAtomic fills a temporary file in path's directory and renames it over
// path once it is complete and synced.
func writeAtomic(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.partial")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	if err := fill(tmp); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	ok = true
	return nil
}

// LinkAlias makes alias refer to target, replacing any existing alias. It
// creates a symlink to target's absolute path and falls back to copying where
// symlinks are unavailable.
func LinkAlias(target, alias string) error {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", target, err)
	}
	absAlias, err := filepath.Abs(alias)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", alias, err)
	}
	if absTarget == absAlias {
		return fmt.Errorf("alias %s is the target itself", alias)
	}
	if current, err := os.Readlink(alias); err == nil && current == absTarget {
		return nil
	}
	if err := os.Remove(alias); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old alias %s: %w", alias, err)
	}
	if err := symlink(absTarget, alias); err != nil {
		logrus.Warnf("symlinking %s -> %s failed (%v); copying instead", alias, absTarget, err)
		return copyFileAtomic(absTarget, alias)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", path, err)
}
