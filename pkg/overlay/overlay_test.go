// SPDX-License-Identifier: MPL-2.0

package overlay

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/modboot/modboot/pkg/registry"
)

// tree builds modules base <- framework <- app under a temporary directory.
type tree struct {
	t    *testing.T
	root string
}

func newTree(t *testing.T) *tree {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tr := &tree{t: t, root: root}
	tr.write("base/module.json", `{"version": "1.0"}`)
	tr.write("framework/module.json", `{"version": "2.0"}`)
	tr.write("app/module.json", `{"dependencies": {"framework": "*"}}`)
	return tr
}

func (tr *tree) path(rel string) string {
	return filepath.Join(tr.root, filepath.FromSlash(rel))
}

func (tr *tree) write(rel, content string) string {
	tr.t.Helper()
	p := tr.path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		tr.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		tr.t.Fatal(err)
	}
	return p
}

func (tr *tree) pack(module, dir string) string {
	tr.t.Helper()
	res, err := Pack(tr.path(module), dir, DefaultPackedExt)
	if err != nil {
		tr.t.Fatalf("Pack() error = %v", err)
	}
	return res.Archive
}

// resolver imports the app module and returns an overlay over the registry.
func (tr *tree) resolver() *Resolver {
	tr.t.Helper()
	reg := registry.New()
	app := tr.path("app")
	res := registry.NewResolver(reg, registry.Options{BasePath: tr.root, WorkDir: tr.root, AppPath: app})
	if _, err := res.Import(context.Background(), app); err != nil {
		tr.t.Fatalf("Import() error = %v", err)
	}
	r := New(reg, Options{})
	tr.t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestLocateFile(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	fwHome := tr.write("framework/views/home.tpl", "framework")
	appHome := tr.write("app/views/home.tpl", "app")
	baseOnly := tr.write("base/views/layout.tpl", "base")
	r := tr.resolver()

	tests := []struct {
		name   string
		rel    string
		scope  string
		want   string
		wantOK bool
	}{
		{"most recent module wins", "views/home.tpl", "", appHome, true},
		{"scope restricts search", "views/home.tpl", "framework", fwHome, true},
		{"falls through to dependencies", "views/layout.tpl", "", baseOnly, true},
		{"scope without the file", "views/layout.tpl", "app", "", false},
		{"unknown scope", "views/home.tpl", "nobody", "", false},
		{"missing file", "views/none.tpl", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			loc, ok := r.LocateFile(tt.rel, tt.scope)
			if ok != tt.wantOK {
				t.Fatalf("LocateFile() ok = %v, want %v", ok, tt.wantOK)
			}
			if loc.Path != tt.want {
				t.Errorf("LocateFile() = %q, want %q", loc.Path, tt.want)
			}
		})
	}
}

func TestAllFilePathsForwardOrder(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	baseCfg := tr.write("base/raw/config/app.yml", "a: 1")
	appCfg := tr.write("app/raw/config/app.yml", "a: 2")
	r := tr.resolver()

	locs := r.AllFilePaths("raw/config/app.yml")
	if len(locs) != 2 {
		t.Fatalf("AllFilePaths() = %v, want 2 entries", locs)
	}
	if locs[0].Path != baseCfg || locs[1].Path != appCfg {
		t.Errorf("AllFilePaths() = %v, want base before app", locs)
	}
	if locs[0].Module != "base" || locs[1].Module != "app" {
		t.Errorf("modules = %s, %s", locs[0].Module, locs[1].Module)
	}
}

func TestLocatePackedFile(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	tr.write("framework/class/gini/model.php", "packed model")
	archive := tr.pack("framework", "class")
	tr.write("framework/class/gini/model.php", "plain model that should be shadowed")
	tr.write("framework/class/gini/plain.php", "plain only")
	tr.write("base/class/gini/model.php", "base model")
	r := tr.resolver()

	loc, ok := r.LocatePackedFile("class", "gini/model.php", "")
	if !ok {
		t.Fatal("LocatePackedFile() found nothing")
	}
	if !loc.Packed() || loc.Archive != archive || loc.Entry != "gini/model.php" || loc.Module != "framework" {
		t.Errorf("LocatePackedFile() = %+v, want framework archive entry", loc)
	}
	if want := archive + "/gini/model.php"; loc.String() != want {
		t.Errorf("String() = %q, want %q", loc.String(), want)
	}

	data, err := r.ReadFile(loc)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "packed model" {
		t.Errorf("ReadFile() = %q", data)
	}

	// Entries missing from the archive fall back to the plain directory.
	loc, ok = r.LocatePackedFile("class", "gini/plain.php", "")
	if !ok || loc.Packed() || loc.Path != tr.path("framework/class/gini/plain.php") {
		t.Errorf("LocatePackedFile(plain) = %+v, %v", loc, ok)
	}

	loc, ok = r.LocatePackedFile("class", "gini/model.php", "base")
	if !ok || loc.Packed() || loc.Module != "base" {
		t.Errorf("LocatePackedFile(scope base) = %+v, %v", loc, ok)
	}
}

func TestAllPackedFilePaths(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	tr.write("base/view/layout.phtml", "base")
	tr.write("framework/view/layout.phtml", "framework")
	archive := tr.pack("framework", "view")
	tr.write("app/view/other.phtml", "app")
	r := tr.resolver()

	locs := r.AllPackedFilePaths("view", "layout.phtml")
	if len(locs) != 2 {
		t.Fatalf("AllPackedFilePaths() = %v", locs)
	}
	if locs[0].Module != "base" || locs[0].Packed() {
		t.Errorf("first = %+v, want plain base", locs[0])
	}
	if locs[1].Module != "framework" || locs[1].Archive != archive {
		t.Errorf("second = %+v, want framework archive", locs[1])
	}

	roots := r.AllPackedFilePaths("view", "")
	if len(roots) != 3 {
		t.Fatalf("AllPackedFilePaths(root) = %v, want 3", roots)
	}
	if roots[1].String() != archive {
		t.Errorf("framework root = %q, want %q", roots[1].String(), archive)
	}
	if roots[2].Path != tr.path("app/view") {
		t.Errorf("app root = %q", roots[2].Path)
	}
}

func TestArchiveIsRevalidated(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	tr.write("app/class/a.php", "first")
	tr.pack("app", "class")
	if err := os.RemoveAll(tr.path("app/class")); err != nil {
		t.Fatal(err)
	}
	r := tr.resolver()

	if _, ok := r.LocatePackedFile("class", "b.php", ""); ok {
		t.Fatal("b.php found before repack")
	}

	tr.write("app/class/a.php", "first, but longer")
	tr.write("app/class/b.php", "second")
	tr.pack("app", "class")
	if err := os.RemoveAll(tr.path("app/class")); err != nil {
		t.Fatal(err)
	}

	loc, ok := r.LocatePackedFile("class", "b.php", "")
	if !ok || !loc.Packed() {
		t.Fatalf("LocatePackedFile(b.php) = %+v, %v after repack", loc, ok)
	}

	if err := os.Remove(loc.Archive); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.LocatePackedFile("class", "a.php", ""); ok {
		t.Error("a.php found after archive removal")
	}
}

func TestGlob(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	tr.write("base/view/layout.phtml", "base")
	tr.write("base/view/parts/nav.phtml", "base")
	tr.write("framework/view/parts/nav.phtml", "framework")
	tr.write("app/view/home.phtml", "app")
	tr.write("app/view/readme.md", "app")
	r := tr.resolver()

	locs, err := r.Glob("view/**/*.phtml")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}

	want := map[string]string{
		tr.path("app/view/home.phtml"):            "app",
		tr.path("base/view/layout.phtml"):         "base",
		tr.path("framework/view/parts/nav.phtml"): "framework",
	}
	if len(locs) != len(want) {
		t.Fatalf("Glob() = %v, want %d matches", locs, len(want))
	}
	for _, loc := range locs {
		if want[loc.Path] != loc.Module {
			t.Errorf("unexpected match %+v", loc)
		}
	}
	if locs[0].Path != tr.path("app/view/home.phtml") {
		t.Errorf("Glob() not sorted by relative path: %v", locs)
	}

	if _, err := r.Glob("view/[a"); err == nil {
		t.Error("Glob() accepted a malformed pattern")
	}
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	r := tr.resolver()

	if _, err := r.Open(Location{Archive: tr.path("app/none.zip"), Entry: "x"}); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open() error = %v, want not exist", err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	tr := newTree(t)
	tr.write("framework/raw/config/db.yml", "host: a")
	tr.write("framework/raw/config/app.json", "{}")
	tr.write("framework/raw/config/nested/x.yml", "x: 1")
	tr.pack("framework", "raw")
	tr.write("app/raw/config/site.toml", "name = 'x'")
	r := tr.resolver()

	locs := r.AllPackedFilePaths("raw", "config")
	if len(locs) != 2 {
		t.Fatalf("AllPackedFilePaths() = %v, want 2 locations", locs)
	}

	packed, err := r.List(locs[0])
	if err != nil {
		t.Fatalf("List(packed) error = %v", err)
	}
	var entries []string
	for _, l := range packed {
		entries = append(entries, l.Entry)
	}
	if want := []string{"config/app.json", "config/db.yml"}; !slices.Equal(entries, want) {
		t.Errorf("List(packed) entries = %v, want %v", entries, want)
	}

	plain, err := r.List(locs[1])
	if err != nil {
		t.Fatalf("List(plain) error = %v", err)
	}
	if len(plain) != 1 || plain[0].Path != tr.path("app/raw/config/site.toml") || plain[0].Module != "app" {
		t.Errorf("List(plain) = %+v", plain)
	}

	if r.Registry().Len() != 3 {
		t.Errorf("Registry().Len() = %d, want 3", r.Registry().Len())
	}
}
