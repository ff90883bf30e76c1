package fs

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"lukechampine.com/blake3"
)

// CopyFile atomically writes the content of src to dst, creating dst's
// directory, and gives dst the modification time modTime. dst is either
// absent or complete, never truncated.
func CopyFile(src, dst string, modTime time.Time) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("unable to create directory %v: %w", filepath.Dir(dst), err)
	}

	if err := atomic.WriteFile(dst, bufio.NewReader(in)); err != nil {
		return err
	}

	if err := os.Chmod(dst, 0o644); err != nil {
		return err
	}

	return os.Chtimes(dst, modTime, modTime)
}

// IsPartialCopy reports whether dst is a truncated copy of src: shorter than
// src, and byte-identical to src's leading bytes.
func IsPartialCopy(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false, err
	}
	if !dstInfo.Mode().IsRegular() || dstInfo.Size() >= srcInfo.Size() {
		return false, nil
	}

	prefix, err := hashPrefix(src, dstInfo.Size())
	if err != nil {
		return false, err
	}
	whole, err := hashPrefix(dst, dstInfo.Size())
	if err != nil {
		return false, err
	}

	return bytes.Equal(prefix, whole), nil
}

func hashPrefix(path string, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, io.LimitReader(f, n)); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
