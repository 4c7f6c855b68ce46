// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"slices"
	"strings"
	"testing"
)

const testSchema = `
#Doc: {
	name:   string
	count?: int
	deps?:  {[string]: string}
	...
}
`

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("json document decodes", func(t *testing.T) {
		t.Parallel()

		data := []byte(`{"name": "demo", "count": 3, "extra": true}`)
		result, err := ParseAndDecode[testDoc]([]byte(testSchema), data, "#Doc")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Name != "demo" || result.Value.Count != 3 {
			t.Errorf("decoded %+v, want name=demo count=3", *result.Value)
		}
	})

	t.Run("type mismatch reports path", func(t *testing.T) {
		t.Parallel()

		data := []byte(`{"name": 42}`)
		_, err := ParseAndDecode[testDoc]([]byte(testSchema), data, "#Doc", WithFilename("doc.json"))
		if err == nil {
			t.Fatal("expected error for non-string name")
		}
		if !strings.Contains(err.Error(), "doc.json") || !strings.Contains(err.Error(), "name") {
			t.Errorf("error %q should mention file and field", err)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testDoc]([]byte(testSchema), []byte(`{"name": `), "#Doc")
		if err == nil {
			t.Fatal("expected syntax error")
		}
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()

		data := []byte(`{"name": "` + strings.Repeat("x", 64) + `"}`)
		_, err := ParseAndDecode[testDoc]([]byte(testSchema), data, "#Doc", WithMaxFileSize(16))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("error = %v, want size limit error", err)
		}
	})
}

func TestFieldNamesKeepsDeclarationOrder(t *testing.T) {
	t.Parallel()

	data := []byte(`{"name": "x", "deps": {"zeta": "*", "alpha": ">=1", "mid": "<2"}}`)
	result, err := ParseAndDecode[testDoc]([]byte(testSchema), data, "#Doc")
	if err != nil {
		t.Fatalf("ParseAndDecode() error = %v", err)
	}

	names, err := FieldNames(result.Unified, "deps")
	if err != nil {
		t.Fatalf("FieldNames() error = %v", err)
	}
	if want := []string{"zeta", "alpha", "mid"}; !slices.Equal(names, want) {
		t.Errorf("FieldNames() = %v, want %v", names, want)
	}

	missing, err := FieldNames(result.Unified, "nothing")
	if err != nil || missing != nil {
		t.Errorf("FieldNames(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	if got := formatPath([]string{"deps", "0", "id"}); got != "deps[0].id" {
		t.Errorf("formatPath() = %q, want %q", got, "deps[0].id")
	}
	if got := formatPath(nil); got != "" {
		t.Errorf("formatPath(nil) = %q, want empty", got)
	}
}
