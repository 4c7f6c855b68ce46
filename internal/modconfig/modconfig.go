// SPDX-License-Identifier: MPL-2.0

package modconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-viper/mapstructure/v2"

	"github.com/modboot/modboot/pkg/overlay"
)

// Fragment locations inside a module.
const (
	RawDir    = "raw"
	ConfigDir = "config"
)

var (
	// ErrKeyNotFound is returned by Decode for absent keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrEmptyKey is returned by Set for an empty key.
	ErrEmptyKey = errors.New("config key required")
)

type (
	// Source records one merged fragment.
	Source struct {
		Key      string           `json:"key" yaml:"key"`
		Location overlay.Location `json:"location" yaml:"location"`
	}

	// FragmentError reports a fragment that could not be read or parsed.
	FragmentError struct {
		Location overlay.Location
		Err      error
	}

	// Store holds the merged configuration. It is safe for concurrent use.
	Store struct {
		mu      sync.RWMutex
		data    map[string]any
		sources []Source
	}

	// Options configures Load.
	Options struct {
		Logger *log.Logger
	}
)

func (e *FragmentError) Error() string {
	return fmt.Sprintf("config fragment %s: %v", e.Location, e.Err)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]any)}
}

// Load merges every module's raw/config fragments in load order.
// Unreadable fragments are skipped and reported as *FragmentError values
// joined in the returned error; the store is always usable.
func Load(ctx context.Context, r *overlay.Resolver, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := NewStore()
	var errs []error
	for _, dir := range r.AllPackedFilePaths(RawDir, ConfigDir) {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		files, err := r.List(dir)
		if err != nil {
			errs = append(errs, &FragmentError{Location: dir, Err: err})
			continue
		}
		for _, loc := range files {
			name := loc.Entry
			if !loc.Packed() {
				name = loc.Path
			}
			key, ext, ok := fragmentKey(name)
			if !ok {
				continue
			}

			data, err := r.ReadFile(loc)
			if err != nil {
				errs = append(errs, &FragmentError{Location: loc, Err: err})
				continue
			}
			v, err := parse(ext, data)
			if err != nil {
				logger.Warn("skipping config fragment", "module", loc.Module, "file", loc.String(), "error", err)
				errs = append(errs, &FragmentError{Location: loc, Err: err})
				continue
			}
			logger.Debug("merging config fragment", "module", loc.Module, "key", key, "file", loc.String())
			s.merge(key, v, loc)
		}
	}
	return s, errors.Join(errs...)
}

func (s *Store) merge(key string, v any, loc overlay.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v != nil {
		s.data[key] = merge(s.data[key], v)
	}
	s.sources = append(s.sources, Source{Key: key, Location: loc})
}

// Get returns the value at a dotted key such as "database.host".
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := lookup(s.data, key)
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// String returns the value at key formatted as a string, or def when absent.
func (s *Store) String(key, def string) string {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Decode decodes the value at key into out with weak typing. An empty key
// decodes the whole store.
func (s *Store) Decode(key string, out any) error {
	var v any
	if key == "" {
		v = s.All()
	} else {
		var ok bool
		if v, ok = s.Get(key); !ok {
			return fmt.Errorf("config key %q: %w", key, ErrKeyNotFound)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding config key %q: %w", key, err)
	}
	return nil
}

// Set stores value at a dotted key, creating intermediate maps.
func (s *Store) Set(key string, value any) error {
	parts := splitKey(key)
	if len(parts) == 0 {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = normalize(clone(value))
	return nil
}

// All returns a deep copy of the merged configuration.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.data).(map[string]any)
}

// Keys returns the top-level keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}

// Sources returns the merged fragments in merge order.
func (s *Store) Sources() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sources)
}

func lookup(data map[string]any, key string) (any, bool) {
	parts := splitKey(key)
	if len(parts) == 0 {
		return nil, false
	}
	var cur any = data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func splitKey(key string) []string {
	return slices.DeleteFunc(strings.Split(strings.TrimSpace(key), "."), func(p string) bool {
		return p == ""
	})
}
