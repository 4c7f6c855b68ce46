// SPDX-License-Identifier: MPL-2.0

package modconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modboot/modboot/internal/testutil"
	"github.com/modboot/modboot/pkg/overlay"
	"github.com/modboot/modboot/pkg/registry"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	testutil.MustWriteFile(t, root, rel, content)
}

// newResolver lays out base <- framework <- app and returns an overlay over them.
func newResolver(t *testing.T, files map[string]string) (*overlay.Resolver, string) {
	t.Helper()
	root := testutil.TempDir(t)

	writeFile(t, root, "base/module.json", `{}`)
	writeFile(t, root, "framework/module.json", `{}`)
	writeFile(t, root, "app/module.json", `{"dependencies": {"framework": "*"}}`)
	for rel, content := range files {
		writeFile(t, root, rel, content)
	}
	return resolverAt(t, root), root
}

func resolverAt(t *testing.T, root string) *overlay.Resolver {
	t.Helper()
	reg := registry.New()
	app := filepath.Join(root, "app")
	res := registry.NewResolver(reg, registry.Options{BasePath: root, WorkDir: root, AppPath: app})
	_, err := res.Import(context.Background(), app)
	require.NoError(t, err)

	r := overlay.New(reg, overlay.Options{})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestLoadMergesInModuleOrder(t *testing.T) {
	t.Parallel()

	r, _ := newResolver(t, map[string]string{
		"base/raw/config/database.yml":       "host: localhost\nport: 3306\noptions:\n  charset: utf8\n  timeout: 5s\n",
		"framework/raw/config/database.toml": "port = 5432\n[options]\nssl = true\n",
		"app/raw/config/database.json":       `{"host": "db.internal", "options": {"charset": "utf8mb4"}}`,
		"app/raw/config/site.yaml":           "title: Demo\n",
		"app/raw/config/README.md":           "ignored",
	})

	s, err := Load(context.Background(), r, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"database", "site"}, s.Keys())
	assert.Equal(t, "db.internal", s.String("database.host", ""))
	assert.Equal(t, "5432", s.String("database.port", ""))
	assert.Equal(t, "utf8mb4", s.String("database.options.charset", ""))
	assert.Equal(t, "5s", s.String("database.options.timeout", ""))
	assert.Equal(t, "true", s.String("database.options.ssl", ""))
	assert.Equal(t, "Demo", s.String("site.title", ""))
	assert.Equal(t, "fallback", s.String("site.missing", "fallback"))

	sources := s.Sources()
	require.Len(t, sources, 4)
	assert.Equal(t, "base", sources[0].Location.Module)
	assert.Equal(t, "framework", sources[1].Location.Module)
	assert.Equal(t, "app", sources[2].Location.Module)
}

func TestLoadReadsPackedFragments(t *testing.T) {
	t.Parallel()

	r, root := newResolver(t, map[string]string{
		"framework/raw/config/cache.yml": "driver: redis\nttl: 60\n",
		"app/raw/config/cache.yml":       "ttl: 120\n",
	})
	_, err := overlay.Pack(filepath.Join(root, "framework"), RawDir, overlay.DefaultPackedExt)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "framework", "raw")))

	s, err := Load(context.Background(), r, Options{})
	require.NoError(t, err)

	assert.Equal(t, "redis", s.String("cache.driver", ""))
	assert.Equal(t, "120", s.String("cache.ttl", ""))

	sources := s.Sources()
	require.Len(t, sources, 2)
	assert.True(t, sources[0].Location.Packed())
	assert.Equal(t, "config/cache.yml", sources[0].Location.Entry)
}

func TestLoadReportsBrokenFragments(t *testing.T) {
	t.Parallel()

	r, _ := newResolver(t, map[string]string{
		"framework/raw/config/good.yml": "a: 1\n",
		"app/raw/config/bad.json":       `{"a": `,
	})

	s, err := Load(context.Background(), r, Options{})
	require.Error(t, err)

	var fe *FragmentError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "app", fe.Location.Module)
	assert.Contains(t, err.Error(), "bad.json")

	assert.Equal(t, "1", s.String("good.a", ""))
	_, ok := s.Get("bad")
	assert.False(t, ok)
}

func TestLoadCancelled(t *testing.T) {
	t.Parallel()

	r, _ := newResolver(t, map[string]string{"app/raw/config/a.yml": "x: 1\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, r, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	r, _ := newResolver(t, map[string]string{
		"app/raw/config/server.yml": "host: example.org\nport: \"8080\"\ntimeout: 1m30s\ntags: [a, b]\n",
	})
	s, err := Load(context.Background(), r, Options{})
	require.NoError(t, err)

	var server struct {
		Host    string
		Port    int
		Timeout time.Duration
		Tags    []string
	}
	require.NoError(t, s.Decode("server", &server))
	assert.Equal(t, "example.org", server.Host)
	assert.Equal(t, 8080, server.Port)
	assert.Equal(t, 90*time.Second, server.Timeout)
	assert.Equal(t, []string{"a", "b"}, server.Tags)

	assert.ErrorIs(t, s.Decode("nope", &server), ErrKeyNotFound)

	var all map[string]map[string]any
	require.NoError(t, s.Decode("", &all))
	assert.Equal(t, "example.org", all["server"]["host"])
}

func TestSetAndGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.Set("a.b.c", 1))
	require.NoError(t, s.Set("a.d", map[string]any{"e": "f"}))
	assert.ErrorIs(t, s.Set(" . ", 1), ErrEmptyKey)

	v, ok := s.Get("a.b.c")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, "f", s.String("a.d.e", ""))

	_, ok = s.Get("a.b.c.d")
	assert.False(t, ok)

	// Returned values are copies.
	got, _ := s.Get("a.d")
	got.(map[string]any)["e"] = "mutated"
	assert.Equal(t, "f", s.String("a.d.e", ""))

	all := s.All()
	all["a"] = nil
	assert.Equal(t, "1", s.String("a.b.c", ""))
}

func TestFragmentKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		ext    string
		wantOK bool
	}{
		{"config/database.yml", "database", ".yml", true},
		{"/srv/app/raw/config/site.YAML", "site", ".yaml", true},
		{"config\\cache.toml", "cache", ".toml", true},
		{"app.json", "app", ".json", true},
		{"notes.txt", "", "", false},
		{".hidden.yml", "", "", false},
		{".yml", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			key, ext, ok := fragmentKey(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	dst := map[string]any{"a": map[string]any{"x": 1, "y": 2}, "list": []any{1, 2}}
	src := map[string]any{"a": map[string]any{"y": 3}, "list": []any{3}, "b": "new"}

	got := merge(dst, src)
	assert.Equal(t, map[string]any{
		"a":    map[string]any{"x": 1, "y": 3},
		"list": []any{3},
		"b":    "new",
	}, got)

	assert.Equal(t, "scalar", merge(map[string]any{"a": 1}, "scalar"))
}
