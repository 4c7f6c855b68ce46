// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type closer struct {
	calls int
	err   error
}

func (c *closer) Close() error {
	c.calls++
	return c.err
}

func TestNewTree(t *testing.T) {
	t.Parallel()

	root := NewTree(t, map[string]string{
		"base/module.json":          `{}`,
		"app/raw/config/system.yml": "debug: true\n",
	})

	data, err := os.ReadFile(filepath.Join(root, "app", "raw", "config", "system.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "debug: true\n" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, "base", "module.json")); err != nil {
		t.Errorf("base manifest missing: %v", err)
	}
}

func TestTempDirResolvesSymlinks(t *testing.T) {
	t.Parallel()

	root := TempDir(t)
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != root {
		t.Errorf("TempDir() = %q, resolved %q", root, resolved)
	}
}

func TestMustWriteFileReturnsPath(t *testing.T) {
	t.Parallel()

	root := TempDir(t)
	p := MustWriteFile(t, root, "a/b/c.txt", "x")
	if p != filepath.Join(root, "a", "b", "c.txt") {
		t.Errorf("path = %q", p)
	}
}

func TestClosers(t *testing.T) {
	t.Parallel()

	c := &closer{}
	MustClose(t, c)
	DeferClose(t, &closer{err: errors.New("boom")})()
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1", c.calls)
	}
}
