package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// Swappable so tests can simulate EXDEV and other rename failures.
var renameFunc = os.Rename

// PathTypeConflictError means the target path exists with the wrong type
// (for example a directory where a file is expected).
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("path type conflict at %q (want %s, got %s)", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError marks a rename that failed with EXDEV. Temp files always live next to
// their target, so this only happens when the tree is mounted in unusual ways; there is
// no copy+delete fallback.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device rename (EXDEV) %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a CrossDeviceError.
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename wraps os.Rename and tags EXDEV failures as CrossDeviceError.
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// WriteFileAtomic writes path atomically (temp file + rename), replacing an existing file.
func WriteFileAtomic(path string, data []byte) error {
	return writeFileAtomic(path, func(w io.Writer) error { return writeAll(w, data) }, true)
}

// WriteFileAtomicNoOverwrite is WriteFileAtomic but fails with os.ErrExist when path already
// exists. Used for artefacts that are written at most once (the ROI file).
func WriteFileAtomicNoOverwrite(path string, data []byte) error {
	if err := checkRegularOrAbsent(path); err != nil {
		return err
	}
	if _, err := os.Lstat(path); err == nil {
		return os.ErrExist
	}
	return writeFileAtomic(path, func(w io.Writer) error { return writeAll(w, data) }, false)
}

// WriteAtomic streams fn's output to path atomically. Nothing is visible at path until fn
// returns nil and the rename succeeds; on any error the temp file is removed.
func WriteAtomic(path string, fn func(w io.Writer) error) error {
	return writeFileAtomic(path, fn, true)
}

func checkRegularOrAbsent(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return &PathTypeConflictError{Path: path, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return nil
}

func writeFileAtomic(path string, fn func(w io.Writer) error, replace bool) error {
	if replace {
		if err := checkRegularOrAbsent(path); err != nil {
			return err
		}
	}
	f, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Abort()
		return err
	}
	if !replace {
		// Narrow the window between the first Lstat and the rename.
		if _, err := os.Lstat(f.path); err == nil {
			_ = f.Abort()
			return os.ErrExist
		}
	}
	return f.Commit()
}

// AtomicFile is a temp file that becomes visible at its target path only on Commit.
type AtomicFile struct {
	f    *os.File
	path string
	done bool
}

// CreateAtomic opens a temp file next to path. The leading '.' keeps half-written files out
// of scans; the same directory keeps the final rename atomic.
func CreateAtomic(path string) (*AtomicFile, error) {
	path = filepath.Clean(path)
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{f: tmp, path: path}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) { return a.f.Write(p) }

// Path is the final target path.
func (a *AtomicFile) Path() string { return a.path }

// Commit syncs the temp file and renames it over the target.
func (a *AtomicFile) Commit() error {
	if a.done {
		return errors.New("atomic file already finished")
	}
	a.done = true
	tmpName := a.f.Name()
	fail := func(err error) error {
		_ = a.f.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := a.f.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := a.f.Sync(); err != nil {
		return fail(err)
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := Rename(tmpName, a.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// Directory fsync is best-effort; semantics differ a lot between platforms.
	_ = syncDirBestEffort(filepath.Dir(a.path))
	return nil
}

// Abort drops the temp file. Safe to call after Commit.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	_ = a.f.Close()
	return os.Remove(a.f.Name())
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
