package localfile

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gobwas/glob"

	"github.com/deltasync/deltasync/lib/sliceutil"
)

// IgnorePredicate reports whether an entry name should be treated as
// ignorable by RmdirWithTrashes.
type IgnorePredicate func(name string) bool

// NewIgnorePredicate compiles patterns (gobwas/glob syntax) into a
// single predicate matching any of them.
func NewIgnorePredicate(patterns []string) (IgnorePredicate, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return func(name string) bool {
		for _, g := range globs {
			if g.Match(name) {
				return true
			}
		}
		return false
	}, nil
}

// RmdirRecursive deletes path and everything under it, unconditionally.
func RmdirRecursive(path string) error {
	if err := removeAll(path); err != nil {
		return err
	}
	return os.Remove(path)
}

// RmdirWithTrashes first tries a plain rmdir; if that fails because
// the directory is non-empty, it removes only the top-level entries
// ignore reports as ignorable (recursively, for ignored directories)
// and retries the plain rmdir.
//
// An ignored subdirectory, once selected for removal, is deleted
// unconditionally by RmdirRecursive's predicate-free walk: the ignore
// predicate is never consulted again below the top level. A
// non-ignored entry, file or directory, is left untouched, so the
// final rmdir only succeeds if every remaining entry was ignorable.
func RmdirWithTrashes(path string, ignore IgnorePredicate) error {
	if err := os.Remove(path); err == nil {
		return nil
	} else if !errors.Is(err, syscall.ENOTEMPTY) {
		return err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	toRemove := sliceutil.Filter(entries, func(e *os.DirEntry) bool {
		return ignore((*e).Name())
	})
	for _, e := range toRemove {
		full := filepath.Join(path, e.Name())
		if e.IsDir() {
			if err := RmdirRecursive(full); err != nil {
				return err
			}
		} else if err := os.Remove(full); err != nil {
			return err
		}
	}
	return os.Remove(path)
}

func removeAll(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := filepath.Join(path, e.Name())
		if e.IsDir() {
			if err := removeAll(full); err != nil {
				return err
			}
			if err := os.Remove(full); err != nil {
				return err
			}
		} else if err := os.Remove(full); err != nil {
			return err
		}
	}
	return nil
}
