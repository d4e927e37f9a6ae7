package billy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
)

// File wraps a go-billy file so it satisfies fs.File.
type File struct {
	file billy.File
	fs   *FS
}

// Close implements File.Close.
func (f *File) Close() error {
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("billy: close %q: %w", f.file.Name(), err)
	}
	return nil
}

// Name implements File.Name.
func (f *File) Name() string {
	return f.file.Name()
}

// Read implements File.Read. io.EOF is returned unwrapped.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	return n, f.ioErr("read", err)
}

// ReadAt implements File.ReadAt. io.EOF is returned unwrapped.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.file.ReadAt(p, off)
	return n, f.ioErr("readat", err)
}

// Seek implements File.Seek.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	return pos, f.ioErr("seek", err)
}

// Stat implements File.Stat.
func (f *File) Stat() (fs.FileInfo, error) {
	return f.fs.Stat(f.file.Name())
}

// Write implements File.Write.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	return n, f.ioErr("write", err)
}

func (f *File) ioErr(op string, err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return fmt.Errorf("billy: %s %q: %w", op, f.file.Name(), err)
}
