// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/modboot/modboot/pkg/registry"
)

// Hook statuses reported by Status and Snapshot.
const (
	StatusRegistered = "registered"
	StatusMissing    = "missing"
	StatusSkipped    = "skipped"
)

var (
	// ErrDuplicateHook indicates a module id already has a hook registered.
	ErrDuplicateHook = errors.New("hook already registered")
	// ErrEmptyID is returned when registering a hook without a module id.
	ErrEmptyID = errors.New("module id required")
)

type (
	// Setupper is implemented by hooks that prepare a module after boot.
	Setupper interface {
		Setup(ctx context.Context) error
	}

	// Shutdowner is implemented by hooks that release module resources.
	Shutdowner interface {
		Shutdown(ctx context.Context) error
	}

	// ExceptionHandler is implemented by hooks that observe unhandled errors.
	ExceptionHandler interface {
		HandleException(ctx context.Context, err error)
	}

	// Runner is implemented by the application hook to take over after setup.
	Runner interface {
		Main(ctx context.Context, args []string) error
	}

	// Dispatcher holds the hooks of one boot and calls them in registry order.
	Dispatcher struct {
		reg    *registry.Registry
		logger *log.Logger

		mu    sync.RWMutex
		hooks map[string]any
		app   any
	}
)

// NewDispatcher creates a dispatcher over reg. A nil logger discards output.
func NewDispatcher(reg *registry.Registry, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{
		reg:    reg,
		logger: logger,
		hooks:  make(map[string]any),
	}
}

// Register stores hook for the module id.
func (d *Dispatcher) Register(id string, hook any) error {
	key := strings.TrimSpace(id)
	if key == "" {
		return ErrEmptyID
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.hooks[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrDuplicateHook)
	}
	d.hooks[key] = hook
	return nil
}

// MustRegister panics on registration failure.
func (d *Dispatcher) MustRegister(id string, hook any) {
	if err := d.Register(id, hook); err != nil {
		panic(err)
	}
}

// RegisterApp sets the application hook, replacing any previous one.
func (d *Dispatcher) RegisterApp(hook any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.app = hook
}

// Fetch returns the hook registered for id.
func (d *Dispatcher) Fetch(id string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.hooks[strings.TrimSpace(id)]
	return h, ok
}

// Status reports whether id has a hook and whether it will be dispatched.
func (d *Dispatcher) Status(id string) string {
	if _, ok := d.Fetch(id); !ok {
		return StatusMissing
	}
	if m, ok := d.reg.Get(id); ok && !m.Healthy() {
		return StatusSkipped
	}
	return StatusRegistered
}

// Snapshot returns the status of every registered module.
func (d *Dispatcher) Snapshot() map[string]string {
	ids := d.reg.IDs()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = d.Status(id)
	}
	return out
}

// Setup calls the application hook, then every healthy module's Setup in
// load order. All hooks run; their errors are joined.
func (d *Dispatcher) Setup(ctx context.Context) error {
	var errs []error
	if s, ok := d.appHook().(Setupper); ok {
		errs = append(errs, wrap("app", "setup", s.Setup(ctx)))
	}
	for _, e := range d.active(false) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if s, ok := e.hook.(Setupper); ok {
			d.logger.Debug("setup", "module", e.id)
			errs = append(errs, wrap(e.id, "setup", s.Setup(ctx)))
		}
	}
	return errors.Join(errs...)
}

// Shutdown calls every healthy module's Shutdown in reverse load order,
// then the application hook.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var errs []error
	for _, e := range d.active(true) {
		if s, ok := e.hook.(Shutdowner); ok {
			d.logger.Debug("shutdown", "module", e.id)
			errs = append(errs, wrap(e.id, "shutdown", s.Shutdown(ctx)))
		}
	}
	if s, ok := d.appHook().(Shutdowner); ok {
		errs = append(errs, wrap("app", "shutdown", s.Shutdown(ctx)))
	}
	return errors.Join(errs...)
}

// HandleException passes err to every healthy module's handler in reverse
// load order, then to the application hook.
func (d *Dispatcher) HandleException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	for _, e := range d.active(true) {
		if h, ok := e.hook.(ExceptionHandler); ok {
			h.HandleException(ctx, err)
		}
	}
	if h, ok := d.appHook().(ExceptionHandler); ok {
		h.HandleException(ctx, err)
	}
}

// Main runs the application hook's Main. It is a no-op without a Runner.
func (d *Dispatcher) Main(ctx context.Context, args []string) error {
	r, ok := d.appHook().(Runner)
	if !ok {
		return nil
	}
	return r.Main(ctx, args)
}

type entry struct {
	id   string
	hook any
}

// active returns the hooks of healthy modules in load order, or reversed.
func (d *Dispatcher) active(reverse bool) []entry {
	modules := d.reg.Modules()
	if reverse {
		modules = d.reg.Reverse()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []entry
	for _, m := range modules {
		h, ok := d.hooks[m.ID]
		if !ok {
			continue
		}
		if !m.Healthy() {
			d.logger.Debug("skipping module with failed dependencies", "module", m.ID, "error", m.Err())
			continue
		}
		out = append(out, entry{id: m.ID, hook: h})
	}
	return out
}

func (d *Dispatcher) appHook() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.app
}

func wrap(id, phase string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %s: %w", id, phase, err)
}
