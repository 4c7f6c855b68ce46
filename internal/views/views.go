// SPDX-License-Identifier: MPL-2.0

// Package views locates view templates across modules.
package views

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/modboot/modboot/pkg/overlay"
)

// DefaultDir is the module subtree holding views.
const DefaultDir = "view"

// DefaultEngines lists the view engine extensions tried in order.
var DefaultEngines = []string{"phtml", "tpl", "html"}

type (
	// Options configures a Locator.
	Options struct {
		Dir     string
		Engines []string
	}

	// View is a located view template.
	View struct {
		Name     string           `json:"name"`
		Engine   string           `json:"engine"`
		Location overlay.Location `json:"location"`
	}

	// Locator finds views by name.
	Locator struct {
		r       *overlay.Resolver
		dir     string
		engines []string
	}
)

// New creates a view locator over r.
func New(r *overlay.Resolver, opts Options) *Locator {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	engines := make([]string, 0, len(opts.Engines))
	for _, e := range opts.Engines {
		if e = strings.TrimPrefix(strings.TrimSpace(e), "."); e != "" {
			engines = append(engines, e)
		}
	}
	if len(engines) == 0 {
		engines = DefaultEngines
	}
	return &Locator{r: r, dir: opts.Dir, engines: engines}
}

// Engines returns the configured engine extensions in lookup order.
func (l *Locator) Engines() []string {
	return append([]string(nil), l.engines...)
}

// Find returns the view for name. Engines are tried in configured order;
// for each engine the most recently loaded module providing it wins.
func (l *Locator) Find(name string) (View, bool) {
	name = strings.Trim(name, "/")
	if name == "" {
		return View{}, false
	}
	for _, engine := range l.engines {
		if loc, ok := l.r.LocatePackedFile(l.dir, name+"."+engine, ""); ok {
			return View{Name: name, Engine: engine, Location: loc}, true
		}
	}
	return View{}, false
}

// FindAll returns every copy of the view grouped by engine, each group in
// module load order.
func (l *Locator) FindAll(name string) []View {
	name = strings.Trim(name, "/")
	if name == "" {
		return nil
	}
	var out []View
	for _, engine := range l.engines {
		for _, loc := range l.r.AllPackedFilePaths(l.dir, name+"."+engine) {
			out = append(out, View{Name: name, Engine: engine, Location: loc})
		}
	}
	return out
}

// ContentType sniffs the media type of the view's content.
func (l *Locator) ContentType(v View) (string, error) {
	rc, err := l.r.Open(v.Location)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	mtype, err := mimetype.DetectReader(rc)
	if err != nil {
		return "", fmt.Errorf("detecting content type of %s: %w", v.Location, err)
	}
	return mtype.String(), nil
}
