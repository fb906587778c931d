// Package files enumerates and reads the source files of a scan.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Explorer walks a directory tree and yields the files whose name ends with
// one of the allowed extensions. Matching is case-sensitive.
type Explorer struct {
	root       string
	extensions []string
	ignoreDirs map[string]bool
}

// NewExplorer creates an Explorer for root.
func NewExplorer(root string, extensions, ignoreDirs []string) *Explorer {
	ignore := make(map[string]bool, len(ignoreDirs))
	for _, dir := range ignoreDirs {
		ignore[dir] = true
	}

	return &Explorer{
		root:       root,
		extensions: extensions,
		ignoreDirs: ignore,
	}
}

// Root returns the directory being explored.
func (e *Explorer) Root() string {
	return e.root
}

// Matches reports whether name carries one of the allowed extensions.
func (e *Explorer) Matches(name string) bool {
	for _, ext := range e.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}

	return false
}

// Files yields root-relative, slash-separated paths sorted by their full
// path, so "a.py" comes before "a/b.py". The sequence is lazy and can be
// ranged over again to restart the walk. Unreadable entries and directory
// symlinks are skipped with a warning; an error is yielded only when the
// root itself cannot be read, and the sequence ends after it.
func (e *Explorer) Files() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		info, err := os.Stat(e.root)
		if err != nil {
			yield("", fmt.Errorf("cannot access '%s': %w", e.root, err))
			return
		}
		if !info.IsDir() {
			yield("", fmt.Errorf("'%s': %w", e.root, ErrNotDirectory))
			return
		}

		entries, err := os.ReadDir(e.root)
		if err != nil {
			yield("", fmt.Errorf("walk '%s': %w", e.root, err))
			return
		}

		e.walk("", entries, yield)
	}
}

// walk visits the entries of the directory rel depth first. It returns
// false once yield asks to stop.
func (e *Explorer) walk(rel string, entries []fs.DirEntry, yield func(string, error) bool) bool {
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(sortKey(a), sortKey(b))
	})

	for _, d := range entries {
		path := d.Name()
		if rel != "" {
			path = rel + "/" + d.Name()
		}
		abs := filepath.Join(e.root, filepath.FromSlash(path))

		switch {
		case d.IsDir():
			if e.ignoreDirs[d.Name()] {
				logrus.Debugf("Ignoring directory '%s'", abs)
				continue
			}

			children, err := os.ReadDir(abs)
			if err != nil {
				logrus.Warnf("Skipping '%s': %v", abs, err)
				continue
			}
			if !e.walk(path, children, yield) {
				return false
			}
			continue

		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Stat(abs)
			if err != nil {
				logrus.Warnf("Skipping broken symlink '%s': %v", abs, err)
				continue
			}
			if target.IsDir() {
				logrus.Warnf("Skipping symlinked directory '%s' (symlinks to directories are not followed)", abs)
				continue
			}

		case !d.Type().IsRegular():
			continue
		}

		if !e.Matches(d.Name()) {
			continue
		}
		if !yield(path, nil) {
			return false
		}
	}

	return true
}

// sortKey orders a directory after any sibling file that shares its name
// as a prefix, matching a sort of the full slash-separated paths.
func sortKey(d fs.DirEntry) string {
	if d.IsDir() {
		return d.Name() + "/"
	}

	return d.Name()
}

// List collects Files into a slice.
func (e *Explorer) List() ([]string, error) {
	var out []string
	for path, err := range e.Files() {
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}

	return out, nil
}
