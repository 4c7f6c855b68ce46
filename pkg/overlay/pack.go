// SPDX-License-Identifier: MPL-2.0

package overlay

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/zip"
)

// PackResult summarizes a packed archive.
type PackResult struct {
	// Archive is the path of the written archive.
	Archive string `json:"archive"`
	// Files is the number of entries written.
	Files int `json:"files"`
	// Bytes is the uncompressed size of the written entries.
	Bytes int64 `json:"bytes"`
	// Skipped lists relative paths of empty files that were left out.
	Skipped []string `json:"skipped,omitempty"`
}

// Pack builds <moduleDir>/<dir><ext> from the plain directory <moduleDir>/<dir>.
// Hidden files and directories are skipped, as are empty files. Entries are
// written in sorted order and deflate-compressed. The archive is written to a
// temporary file and renamed into place.
func Pack(moduleDir, dir, ext string) (*PackResult, error) {
	if ext == "" {
		ext = DefaultPackedExt
	}
	src := filepath.Join(moduleDir, dir)
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("pack source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pack source %s is not a directory", src)
	}

	files, skipped, err := collectFiles(src)
	if err != nil {
		return nil, err
	}

	out := src + ext
	tmp, err := os.CreateTemp(moduleDir, "."+filepath.Base(out)+".*")
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	result := &PackResult{Archive: out, Skipped: skipped}
	zw := zip.NewWriter(tmp)
	for _, rel := range files {
		n, err := addFile(zw, src, rel)
		if err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return nil, err
		}
		result.Files++
		result.Bytes += n
	}

	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("finishing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("finishing archive: %w", err)
	}
	if err := os.Rename(tmpName, out); err != nil {
		return nil, fmt.Errorf("installing archive: %w", err)
	}
	return result, nil
}

// collectFiles returns the slash-separated relative paths of packable files
// in sorted order, plus the empty files that were skipped.
func collectFiles(src string) (files, skipped []string, err error) {
	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == src {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		mu.Lock()
		defer mu.Unlock()
		if info.Size() == 0 {
			skipped = append(skipped, rel)
		} else {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", src, err)
	}

	slices.Sort(files)
	slices.Sort(skipped)
	return files, skipped, nil
}

func addFile(zw *zip.Writer, src, rel string) (int64, error) {
	p := filepath.Join(src, filepath.FromSlash(rel))
	info, err := os.Stat(p)
	if err != nil {
		return 0, err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = rel
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, fmt.Errorf("adding %s: %w", rel, err)
	}

	f, err := os.Open(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("adding %s: %w", rel, err)
	}
	return n, nil
}
