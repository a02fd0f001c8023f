// Package storage writes and reads the build artifacts: the NDJSON record
// stream, the tree index, the backend profile and the msgpack snapshot.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// stagedFile is a fully written temporary file waiting to be published.
type stagedFile struct {
	name string
	tmp  string
}

// ArtifactSet stages files in an output directory and publishes them
// together. Until Commit, the previous contents of the directory are
// untouched. If publishing fails midway, files already replaced are
// restored from their backups.
type ArtifactSet struct {
	dir    string
	staged []stagedFile
	done   bool
}

// NewArtifactSet creates the output directory if needed.
func NewArtifactSet(dir string) (*ArtifactSet, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &ArtifactSet{dir: dir}, nil
}

// Dir returns the output directory.
func (s *ArtifactSet) Dir() string { return s.dir }

// Stage writes one artifact to a temporary file next to its final path.
func (s *ArtifactSet) Stage(name string, write func(w io.Writer) error) error {
	if s.done {
		return errors.New("staging artifact: set already finished")
	}
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("staging artifact: invalid name %q", name)
	}
	for _, f := range s.staged {
		if f.name == name {
			return fmt.Errorf("staging artifact: %s staged twice", name)
		}
	}

	f, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("staging %s: creating temp file: %w", name, err)
	}
	tmp := f.Name()
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	bw := bufio.NewWriterSize(f, 256*1024)
	if err := write(bw); err != nil {
		return fail(fmt.Errorf("staging %s: %w", name, err))
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("staging %s: flushing: %w", name, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("staging %s: syncing: %w", name, err))
	}
	if err := f.Chmod(0o644); err != nil {
		return fail(fmt.Errorf("staging %s: setting mode: %w", name, err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("staging %s: closing: %w", name, err)
	}
	s.staged = append(s.staged, stagedFile{name: name, tmp: tmp})
	return nil
}

// Commit renames every staged file into place, in staging order, and
// returns the published names.
func (s *ArtifactSet) Commit() ([]string, error) {
	if s.done {
		return nil, errors.New("committing artifacts: set already finished")
	}
	s.done = true

	type backup struct{ final, saved string }
	var backups []backup
	var published []string

	undo := func() {
		for i := len(published) - 1; i >= 0; i-- {
			_ = os.Remove(filepath.Join(s.dir, published[i]))
		}
		for _, b := range backups {
			_ = os.Rename(b.saved, b.final)
		}
		for _, f := range s.staged {
			_ = os.Remove(f.tmp)
		}
	}

	for _, f := range s.staged {
		final := filepath.Join(s.dir, f.name)
		if _, err := os.Stat(final); err == nil {
			saved := filepath.Join(s.dir, "."+f.name+".bak")
			if err := os.Rename(final, saved); err != nil {
				undo()
				return nil, fmt.Errorf("committing %s: backing up previous file: %w", f.name, err)
			}
			backups = append(backups, backup{final: final, saved: saved})
		}
		if err := os.Rename(f.tmp, final); err != nil {
			undo()
			return nil, fmt.Errorf("committing %s: %w", f.name, err)
		}
		published = append(published, f.name)
	}

	for _, b := range backups {
		_ = os.Remove(b.saved)
	}
	return published, nil
}

// Rollback discards every staged file. It is safe to call more than once.
func (s *ArtifactSet) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	var errs []error
	for _, f := range s.staged {
		if err := os.Remove(f.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.staged = nil
	return errors.Join(errs...)
}

// WriteFileAtomic publishes a single file through an ArtifactSet.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	set, err := NewArtifactSet(filepath.Dir(path))
	if err != nil {
		return err
	}
	if err := set.Stage(filepath.Base(path), write); err != nil {
		_ = set.Rollback()
		return err
	}
	_, err = set.Commit()
	return err
}
