package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// decodeStrict reads one config document, YAML or JSON by file extension,
// into v. Unknown fields and trailing content are rejected in both formats:
// YAML is decoded generically and re-marshaled to JSON so the single strict
// decoder (DisallowUnknownFields) covers everything.
func decodeStrict(path string, data []byte, v any) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("config yaml: %w", err)
		}
		j, err := json.Marshal(stringifyKeys(doc))
		if err != nil {
			return fmt.Errorf("config yaml: %w", err)
		}
		data = j
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	switch err := dec.Decode(&struct{}{}); err {
	case io.EOF:
		return nil
	case nil:
		return fmt.Errorf("config: trailing data after document")
	default:
		return err
	}
}

// stringifyKeys rewrites any-keyed maps into string-keyed ones so a decoded
// YAML value can round-trip through encoding/json. YAML allows non-string
// mapping keys; the config schema does not, so coercing with fmt.Sprint is
// enough.
func stringifyKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = stringifyKeys(val)
		}
		return out
	case map[string]any:
		for k, val := range x {
			x[k] = stringifyKeys(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = stringifyKeys(val)
		}
		return x
	default:
		return v
	}
}
