// SPDX-License-Identifier: MPL-2.0

package overlay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// archive is an opened packed archive with its entry index.
type archive struct {
	path    string
	size    int64
	modTime time.Time
	reader  *zip.ReadCloser
	files   map[string]*zip.File
	dirs    map[string]bool
}

func openArchive(p string, info fs.FileInfo) (*archive, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", p, err)
	}

	a := &archive{
		path:    p,
		size:    info.Size(),
		modTime: info.ModTime(),
		reader:  rc,
		files:   make(map[string]*zip.File, len(rc.File)),
		dirs:    make(map[string]bool),
	}
	for _, f := range rc.File {
		name := strings.TrimPrefix(f.Name, "/")
		if strings.HasSuffix(name, "/") {
			a.addDirs(strings.TrimSuffix(name, "/"))
			continue
		}
		a.files[name] = f
		a.addDirs(path.Dir(name))
	}
	return a, nil
}

func (a *archive) addDirs(dir string) {
	for dir != "." && dir != "" && !a.dirs[dir] {
		a.dirs[dir] = true
		dir = path.Dir(dir)
	}
}

// stale reports whether the file on disk no longer matches the index.
func (a *archive) stale(info fs.FileInfo) bool {
	return info.Size() != a.size || !info.ModTime().Equal(a.modTime)
}

// has reports whether entry names a file or directory in the archive.
// The empty entry is the archive root.
func (a *archive) has(entry string) bool {
	if entry == "" {
		return true
	}
	_, ok := a.files[entry]
	return ok || a.dirs[entry]
}

// children returns the file entries directly under dir, sorted.
func (a *archive) children(dir string) []string {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	var names []string
	for name := range a.files {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (a *archive) open(entry string) (*zip.File, error) {
	f, ok := a.files[entry]
	if !ok {
		if a.dirs[entry] || entry == "" {
			return nil, fmt.Errorf("%s/%s: %w", a.path, entry, errIsDir)
		}
		return nil, fmt.Errorf("%s/%s: %w", a.path, entry, os.ErrNotExist)
	}
	return f, nil
}

func (a *archive) close() error {
	return a.reader.Close()
}

var errIsDir = errors.New("is a directory")

// cleanEntry normalizes a relative path to an archive entry name.
func cleanEntry(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = path.Clean("/" + rel)
	return strings.TrimPrefix(rel, "/")
}
