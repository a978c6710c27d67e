// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package backups reads the local backup archives written by the
// supervisor.
package backups

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/naturalsort"
)

// Extension is the suffix of a backup archive.
const Extension = ".tar"

// File describes a backup archive on disk.
type File struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// IsArchive reports whether name looks like a backup archive: a non-hidden
// file ending in Extension.
func IsArchive(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, ".") && strings.HasSuffix(base, Extension) && len(base) > len(Extension)
}

// Dir is a directory of backup archives.
type Dir struct {
	path  string
	clock clock.Clock
}

// NewDir returns the backup source rooted at path.
func NewDir(path string, clock clock.Clock) *Dir {
	return &Dir{path: path, clock: clock}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// List returns the archives in the directory in natural name order, so
// that "backup-9.tar" comes before "backup-10.tar". A missing directory
// yields no archives.
func (d *Dir) List() ([]File, error) {
	entries, err := os.ReadDir(d.path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Annotatef(err, "reading backup directory %q", d.path)
	}

	byName := make(map[string]File)
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsArchive(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if os.IsNotExist(err) {
			// Removed since the directory was read.
			continue
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		byName[entry.Name()] = File{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		names = append(names, entry.Name())
	}

	var files []File
	for _, name := range naturalsort.Sort(names) {
		files = append(files, byName[name])
	}
	return files, nil
}

// Stat returns the current description of the named archive.
func (d *Dir) Stat(name string) (File, error) {
	path, err := d.resolve(name)
	if err != nil {
		return File{}, errors.Trace(err)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return File{}, errors.NotFoundf("backup %q", name)
	} else if err != nil {
		return File{}, errors.Trace(err)
	}
	if !info.Mode().IsRegular() {
		return File{}, errors.NotValidf("backup %q is not a regular file", name)
	}
	return File{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Open opens the named archive for reading.
func (d *Dir) Open(name string) (io.ReadCloser, int64, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, errors.NotFoundf("backup %q", name)
	} else if err != nil {
		return nil, 0, errors.Trace(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, errors.Trace(err)
	}
	return f, info.Size(), nil
}

// Stable reports whether the archive has stopped growing: its size is
// unchanged after waiting delay. A supervisor still writing the archive
// shows up as a size change.
func (d *Dir) Stable(ctx context.Context, name string, delay time.Duration) (bool, error) {
	before, err := d.Stat(name)
	if err != nil {
		return false, errors.Trace(err)
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-d.clock.After(delay):
	}
	after, err := d.Stat(name)
	if err != nil {
		return false, errors.Trace(err)
	}
	return after.Size == before.Size, nil
}

// Remove deletes the named archive. Removing an archive that is already
// gone is not an error.
func (d *Dir) Remove(name string) error {
	path, err := d.resolve(name)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Annotatef(err, "removing backup %q", name)
	}
	return nil
}

func (d *Dir) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !IsArchive(name) {
		return "", errors.NotValidf("backup name %q", name)
	}
	return filepath.Join(d.path, name), nil
}
