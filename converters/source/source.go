// Package source locates the files of a GAR export. An export is either an
// unpacked directory or the .zip archive the registry publishes; both are
// read through fs.FS.
package source

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// Source is an opened export.
type Source struct {
	fs.FS
	Path    string
	Archive bool
	closer  io.Closer
}

// Open opens a directory or a .zip archive.
func Open(p string) (*Source, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return &Source{FS: os.DirFS(p), Path: p}, nil
	}
	if !strings.EqualFold(path.Ext(p), ".zip") {
		return nil, fmt.Errorf("source %s is neither a directory nor a .zip archive", p)
	}
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	return &Source{FS: zr, Path: p, Archive: true, closer: zr}, nil
}

// FromFS wraps an existing file system.
func FromFS(fsys fs.FS, name string) *Source {
	return &Source{FS: fsys, Path: name}
}

// Close releases the archive, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Resolve finds the single file AS_<name>_2*.<ext> inside dir. The export
// stamps a version into every file name, so the rest is matched by glob.
func (s *Source) Resolve(dir, name, ext string) (string, error) {
	if dir == "" {
		dir = "."
	}
	pattern := path.Join(dir, "AS_"+name+"_2*."+ext)
	matches, err := fs.Glob(s.FS, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to glob %s: %w", pattern, err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("source file not found: %s: %w", pattern, fs.ErrNotExist)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("more than one file found for %s: %s", pattern, strings.Join(matches, ", "))
}

// Regions lists the numeric top-level directories, sorted.
func (s *Source) Regions() ([]string, error) {
	entries, err := fs.ReadDir(s.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	var regions []string
	for _, e := range entries {
		if e.IsDir() && isNumeric(e.Name()) {
			regions = append(regions, e.Name())
		}
	}
	sort.Strings(regions)
	return regions, nil
}

func isNumeric(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
