package fileutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrTooLarge is returned when a copy would exceed its size limit.
var ErrTooLarge = errors.New("file exceeds the maximum allowed size")

// WriteFile writes content to path through a temporary file in the same
// directory, so a reader never sees a partially written book.
func WriteFile(path string, content []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(content)
		return errors.WithStack(err)
	})
}

// CopyFile copies src to dst and returns the number of bytes copied. A
// positive maxBytes bounds the copy.
func CopyFile(src, dst string, maxBytes int64) (int64, error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer sourceFile.Close()

	var written int64
	err = writeAtomic(dst, func(w io.Writer) error {
		r := io.Reader(sourceFile)
		if maxBytes > 0 {
			r = io.LimitReader(sourceFile, maxBytes+1)
		}
		n, copyErr := io.Copy(w, r)
		if copyErr != nil {
			return errors.WithStack(copyErr)
		}
		written = n
		if maxBytes > 0 && written > maxBytes {
			return ErrTooLarge
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return errors.WithStack(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpPath := tmp.Name()

	err = write(tmp)
	if err == nil {
		err = errors.WithStack(tmp.Sync())
	}
	closeErr := tmp.Close()
	if err == nil && closeErr != nil {
		err = errors.WithStack(closeErr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	err = os.Rename(tmpPath, path)
	if err != nil {
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}

	return nil
}

// RemoveFile deletes path. A file that is already gone is not an error.
func RemoveFile(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsWithin reports whether path is root or lies below it.
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// UniqueFilepath returns path, or path with a " (n)" suffix before the
// extension when path is already taken.
func UniqueFilepath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)
	nameWithoutExt := base[:len(base)-len(ext)]

	for i := 1; i < 1000; i++ {
		newName := fmt.Sprintf("%s (%d)%s", nameWithoutExt, i, ext)
		newPath := filepath.Join(dir, newName)
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}

	// Fallback - this should rarely happen
	return path
}
