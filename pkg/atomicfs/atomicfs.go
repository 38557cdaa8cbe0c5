// Package atomicfs writes files through a temporary file and a final
// rename, so readers never observe partially written contents.
package atomicfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

const tmpsuffix = ".tmp-"

// File is a pending atomic write. Data goes to a temporary file in the
// destination directory; Close publishes it, Discard drops it.
type File struct {
	tmp  *os.File
	path string
	sync bool
}

var _ io.WriteCloser = (*File)(nil)

type Option func(f *File) error

// WithSync makes Close fsync the temporary file before the rename.
func WithSync() Option {
	return func(f *File) error {
		f.sync = true
		return nil
	}
}

func WithMode(mode os.FileMode) Option {
	return func(f *File) error {
		return f.tmp.Chmod(mode)
	}
}

func Create(path string, opts ...Option) (f *File, err error) {
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to make tmp file name: %w", err)
	}
	dir, base := filepath.Split(path)

	tmp, err := os.CreateTemp(dir, base+tmpsuffix)
	if err != nil {
		return nil, err
	}

	f = &File{tmp: tmp, path: path}
	defer func() {
		if err != nil {
			_ = f.Discard()
		}
	}()

	// Not required for correctness, but cleans up uncommitted tmp files
	// whose owners forgot to call Discard.
	runtime.SetFinalizer(f, (*File).Discard)

	for _, opt := range opts {
		if err = opt(f); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func (f *File) Write(p []byte) (int, error) {
	return f.tmp.Write(p)
}

// Discard abandons the write and removes the temporary file. It is safe
// to call after Close.
func (f *File) Discard() error {
	if f.tmp == nil {
		return nil
	}
	name := f.tmp.Name()
	err := f.tmp.Close()
	f.tmp = nil

	if rmerr := os.Remove(name); err == nil {
		err = rmerr
	}
	return err
}

// Close publishes the file under its destination path.
func (f *File) Close() (err error) {
	if f.tmp == nil {
		return fmt.Errorf("atomicfs: file %s is already finished", f.path)
	}
	defer func() {
		if err != nil {
			_ = f.Discard()
		}
	}()

	if f.sync {
		if err = f.tmp.Sync(); err != nil {
			return err
		}
	}

	name := f.tmp.Name()
	if err = f.tmp.Close(); err != nil {
		return err
	}
	f.tmp = nil

	return os.Rename(name, f.path)
}

// WriteFile is the atomic version of os.WriteFile.
func WriteFile(path string, data []byte, opts ...Option) error {
	f, err := Create(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Discard()
	}()

	if _, err = f.Write(data); err != nil {
		return err
	}

	return f.Close()
}
