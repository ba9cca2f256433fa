// Package fsutil writes output files so that a failed or interrupted write
// never leaves a partial file at the destination.
package fsutil

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// File is a pending output. Data goes to a temporary file in the
// destination directory until Commit renames it into place.
type File struct {
	*os.File
	dest string
	done bool
}

// Create opens a pending output for dest, creating its directory.
func Create(dest string) (*File, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fsutil: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, eris.Wrapf(err, "fsutil: create temp file in %s", dir)
	}
	return &File{File: tmp, dest: dest}, nil
}

// Commit syncs the data and renames it to the destination.
func (f *File) Commit() error {
	if f.done {
		return eris.Errorf("fsutil: %s already finished", f.dest)
	}
	f.done = true
	name := f.Name()
	if err := f.Sync(); err != nil {
		f.cleanup()
		return eris.Wrapf(err, "fsutil: sync %s", name)
	}
	if err := f.File.Close(); err != nil {
		os.Remove(name) //nolint:errcheck
		return eris.Wrapf(err, "fsutil: close %s", name)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name) //nolint:errcheck
		return eris.Wrapf(err, "fsutil: chmod %s", name)
	}
	if err := os.Rename(name, f.dest); err != nil {
		os.Remove(name) //nolint:errcheck
		return eris.Wrapf(err, "fsutil: rename to %s", f.dest)
	}
	return nil
}

// Abort discards the pending output. It is a no-op after Commit.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.cleanup()
}

func (f *File) cleanup() {
	f.File.Close()       //nolint:errcheck
	os.Remove(f.Name()) //nolint:errcheck
}

// WriteFile writes data to path atomically.
func WriteFile(path string, data []byte) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	defer f.Abort()
	if _, err := f.Write(data); err != nil {
		return eris.Wrapf(err, "fsutil: write %s", f.Name())
	}
	return f.Commit()
}
