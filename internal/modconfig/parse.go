// SPDX-License-Identifier: MPL-2.0

package modconfig

import (
	"fmt"
	"path"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Extensions lists the recognized fragment extensions.
var Extensions = []string{".yml", ".yaml", ".toml", ".json"}

// fragmentKey splits a fragment file name into its key and extension.
// ok is false for unrecognized extensions and hidden files.
func fragmentKey(name string) (key, ext string, ok bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext = strings.ToLower(path.Ext(base))
	key = strings.TrimSuffix(base, path.Ext(base))
	if key == "" || strings.HasPrefix(base, ".") {
		return "", "", false
	}
	switch ext {
	case ".yml", ".yaml", ".toml", ".json":
		return key, ext, true
	}
	return "", "", false
}

// parse decodes a fragment by extension. Empty documents yield nil.
func parse(ext string, data []byte) (any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var v any
	var err error
	switch ext {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &v)
	case ".toml":
		var m map[string]any
		err = toml.Unmarshal(data, &m)
		v = m
	case ".json":
		err = sonic.Unmarshal(data, &v)
	default:
		return nil, fmt.Errorf("unsupported fragment extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize converts nested map[any]any into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalize(child)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, child := range t {
			m[fmt.Sprint(k)] = normalize(child)
		}
		return m
	case []any:
		for i, child := range t {
			t[i] = normalize(child)
		}
		return t
	default:
		return v
	}
}

// merge deep merges src into dst and returns the result. Maps merge key by
// key; any other value in src replaces the one in dst.
func merge(dst, src any) any {
	dm, dok := dst.(map[string]any)
	sm, sok := src.(map[string]any)
	if !dok || !sok {
		return clone(src)
	}
	for k, v := range sm {
		dm[k] = merge(dm[k], v)
	}
	return dm
}

// clone deep copies maps and slices.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, child := range t {
			m[k] = clone(child)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, child := range t {
			s[i] = clone(child)
		}
		return s
	default:
		return v
	}
}
