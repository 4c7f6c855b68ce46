// SPDX-License-Identifier: MPL-2.0

package boot

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/modboot/modboot/internal/config"
	"github.com/modboot/modboot/internal/testutil"
	"github.com/modboot/modboot/pkg/registry"
)

func layout(t *testing.T, files map[string]string) string {
	t.Helper()
	return testutil.NewTree(t, files)
}

func standardLayout(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := layout(t, map[string]string{
		"base/module.json":                `{"version": "1.0"}`,
		"gini/module.json":                `{"name": "Gini", "version": "2.1"}`,
		"gini/class/gini/core.php":        "core",
		"gini/view/layout.phtml":          "<html></html>",
		"gini/raw/config/system.yml":      "debug: false\nname: gini\n",
		"app/module.json":                 `{"dependencies": {"gini": ">=2.0"}}`,
		"app/raw/config/system.yml":       "debug: true\n",
		"app/view/home.tpl":               "home",
		"app/modules/widgets/module.json": `{}`,
		"app/modules/widgets/view/w.html": "<html></html>",
	})
	cfg := config.DefaultConfig()
	cfg.ModuleBasePath = root
	cfg.SysPath = filepath.Join(root, "gini")
	cfg.AppPath = filepath.Join(root, "app")
	return root, cfg
}

func TestBoot(t *testing.T) {
	t.Parallel()

	root, cfg := standardLayout(t)
	app, err := Boot(context.Background(), Options{Config: cfg, WorkDir: root})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.ID != "app" {
		t.Errorf("ID = %q, want app", app.ID)
	}
	if app.Session == "" {
		t.Error("Session is empty")
	}
	if want := []string{"base", "gini", "app"}; !slices.Equal(app.Registry.IDs(), want) {
		t.Errorf("IDs() = %v, want %v", app.Registry.IDs(), want)
	}

	if got := app.ModConfig.String("system.debug", ""); got != "true" {
		t.Errorf("system.debug = %q, want app override", got)
	}
	if got := app.ModConfig.String("system.name", ""); got != "gini" {
		t.Errorf("system.name = %q, want gini", got)
	}
	if loc, ok := app.Classes.Locate(`Gini\Core`); !ok || loc.Module != "gini" {
		t.Errorf("Classes.Locate() = %+v, %v", loc, ok)
	}
	if v, ok := app.Views.Find("home"); !ok || v.Location.Module != "app" {
		t.Errorf("Views.Find(home) = %+v, %v", v, ok)
	}
	if _, ok := app.Views.Find("w"); ok {
		t.Error("Views.Find(w) found a view from an unimported bundled module")
	}
}

func TestBootWithoutAppPath(t *testing.T) {
	t.Parallel()

	root, cfg := standardLayout(t)
	cfg.AppPath = ""

	app, err := Boot(context.Background(), Options{Config: cfg, WorkDir: root})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.ID != "gini" || app.AppPath != cfg.SysPath {
		t.Errorf("ID = %q, AppPath = %q, want system module as app", app.ID, app.AppPath)
	}
}

func TestBootAnchorsRelativeRootsAtWorkDir(t *testing.T) {
	t.Parallel()

	root := layout(t, map[string]string{
		"mods/base/module.json": `{}`,
		"mods/app/module.json":  `{"name": "Wrong app"}`,
		"work/app/module.json":  `{"name": "Local app"}`,
	})
	cfg := config.DefaultConfig()
	cfg.ModuleBasePath = filepath.Join(root, "mods")
	cfg.AppPath = "./app"
	work := filepath.Join(root, "work")

	app, err := Boot(context.Background(), Options{Config: cfg, WorkDir: work})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	want := filepath.Join(work, "app")
	if app.AppPath != want {
		t.Errorf("AppPath = %q, want %q", app.AppPath, want)
	}
	m, ok := app.Registry.Get("app")
	if !ok || m.Path != want || m.Name != "Local app" {
		t.Errorf("app module = %+v, %v, want the one under %s", m, ok, want)
	}
	if ids := app.Registry.IDs(); ids[len(ids)-1] != "app" {
		t.Errorf("IDs() = %v, want app last", ids)
	}
}

func TestBootErrors(t *testing.T) {
	t.Parallel()

	root, cfg := standardLayout(t)

	if _, err := Boot(context.Background(), Options{Config: config.DefaultConfig()}); !errors.Is(err, ErrNoModules) {
		t.Errorf("Boot(no paths) error = %v, want ErrNoModules", err)
	}

	cfg.AppPath = filepath.Join(root, "missing")
	if _, err := Boot(context.Background(), Options{Config: cfg, WorkDir: root}); !errors.Is(err, registry.ErrModuleNotFound) {
		t.Errorf("Boot(missing app) error = %v, want ErrModuleNotFound", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, cfg = standardLayout(t)
	if _, err := Boot(ctx, Options{Config: cfg, WorkDir: root}); !errors.Is(err, context.Canceled) {
		t.Errorf("Boot(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestBootKeepsUnhealthyApp(t *testing.T) {
	t.Parallel()

	root := layout(t, map[string]string{
		"base/module.json": `{}`,
		"app/module.json":  `{"dependencies": {"ghost": "*"}}`,
	})
	cfg := config.DefaultConfig()
	cfg.ModuleBasePath = root
	cfg.AppPath = filepath.Join(root, "app")

	app, err := Boot(context.Background(), Options{Config: cfg, WorkDir: root})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	m, ok := app.Registry.Get("app")
	if !ok || m.Healthy() {
		t.Errorf("app = %+v, %v, want registered with error", m, ok)
	}
}

type hook struct {
	id    string
	mu    *sync.Mutex
	calls *[]string
	main  error
}

func (h hook) log(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.calls = append(*h.calls, s)
}

func (h hook) Setup(context.Context) error    { h.log("setup " + h.id); return nil }
func (h hook) Shutdown(context.Context) error { h.log("shutdown " + h.id); return nil }
func (h hook) HandleException(_ context.Context, err error) {
	h.log("exception " + h.id)
}

func (h hook) Main(context.Context, []string) error {
	h.log("main " + h.id)
	return h.main
}

func TestRun(t *testing.T) {
	t.Parallel()

	errMain := errors.New("main failed")
	tests := []struct {
		name    string
		mainErr error
		want    []string
	}{
		{
			name: "success",
			want: []string{
				"setup application", "setup gini", "setup app",
				"main application",
				"shutdown app", "shutdown gini", "shutdown application",
			},
		},
		{
			name:    "main fails",
			mainErr: errMain,
			want: []string{
				"setup application", "setup gini", "setup app",
				"main application",
				"exception app", "exception gini", "exception application",
				"shutdown app", "shutdown gini", "shutdown application",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root, cfg := standardLayout(t)
			var mu sync.Mutex
			var calls []string
			mk := func(id string) hook { return hook{id: id, mu: &mu, calls: &calls, main: tt.mainErr} }

			app, err := Boot(context.Background(), Options{
				Config:  cfg,
				WorkDir: root,
				Hooks:   map[string]any{"gini": mk("gini"), "app": mk("app")},
				App:     mk("application"),
			})
			if err != nil {
				t.Fatalf("Boot() error = %v", err)
			}
			t.Cleanup(func() { _ = app.Close() })

			err = app.Run(context.Background(), []string{"x"})
			if !errors.Is(err, tt.mainErr) || (tt.mainErr == nil && err != nil) {
				t.Errorf("Run() error = %v, want %v", err, tt.mainErr)
			}

			mu.Lock()
			defer mu.Unlock()
			if !slices.Equal(calls, tt.want) {
				t.Errorf("calls = %v, want %v", calls, tt.want)
			}
		})
	}
}

func TestRootPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/app", "/abs/app"},
		{"app", "app"},
		{"./app", "/work/app"},
		{"../app", "/app"},
	}
	for _, tt := range tests {
		if got := rootPath("/work", tt.in); got != filepath.FromSlash(tt.want) {
			t.Errorf("rootPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRootPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sys, app string
		want     []string
	}{
		{"/sys", "/app", []string{"/sys", "/app"}},
		{"/sys", "", []string{"/sys"}},
		{"", "/app", []string{"/app"}},
		{"/same", "/same", []string{"/same"}},
	}
	for _, tt := range tests {
		if got := rootPaths(tt.sys, tt.app); !slices.Equal(got, tt.want) {
			t.Errorf("rootPaths(%q, %q) = %v, want %v", tt.sys, tt.app, got, tt.want)
		}
	}
}

type shutdownWatcher struct {
	got chan error
}

func (w shutdownWatcher) Shutdown(ctx context.Context) error {
	w.got <- ctx.Err()
	return nil
}

func TestStopIgnoresCancellation(t *testing.T) {
	t.Parallel()

	root, cfg := standardLayout(t)
	watcher := shutdownWatcher{got: make(chan error, 1)}
	app, err := Boot(context.Background(), Options{
		Config:  cfg,
		WorkDir: root,
		Hooks:   map[string]any{"gini": watcher},
	})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	select {
	case got := <-watcher.got:
		if got != nil {
			t.Errorf("shutdown hook saw ctx.Err() = %v, want nil", got)
		}
	default:
		t.Fatal("shutdown hook did not run")
	}
}
