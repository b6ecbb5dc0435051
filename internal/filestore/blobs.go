package filestore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Blobs holds the bytes of uploaded files, keyed by record id.
type Blobs interface {
	Write(id string, data []byte) error
	Open(id string) (io.ReadCloser, error)
	Remove(id string) error
	Exists(id string) bool
}

// DirBlobs stores one file per id in a directory.
type DirBlobs struct {
	dir string
}

// NewDirBlobs creates dir if needed.
func NewDirBlobs(dir string) (*DirBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DirBlobs{dir: dir}, nil
}

func (d *DirBlobs) Dir() string { return d.dir }

func (d *DirBlobs) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fs.ErrNotExist
	}
	return filepath.Join(d.dir, id), nil
}

// Write lands the blob under a temporary name and renames it into place, so
// a reader never sees a partial file.
func (d *DirBlobs) Write(id string, data []byte) error {
	dst, err := d.path(id)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

func (d *DirBlobs) Open(id string) (io.ReadCloser, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (d *DirBlobs) Remove(id string) error {
	p, err := d.path(id)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func (d *DirBlobs) Exists(id string) bool {
	p, err := d.path(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
