// Package actionfile reads and writes action lists as YAML for import and
// export:
//
//	actions:
//	  phone: tel:12345
//	  weather: https://example.com/weather
package actionfile

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrSyntax marks documents that are not valid action files.
var ErrSyntax = errors.New("invalid action file")

type document struct {
	Actions map[string]string `yaml:"actions"`
}

// Parse decodes a YAML action document. Keys must be non-empty; URLs are
// returned as written and validated by the caller.
func Parse(data []byte) (map[string]string, error) {
	var doc document
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]string{}, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("actionfile: %w: %v", ErrSyntax, err)
	}
	out := make(map[string]string, len(doc.Actions))
	for k, v := range doc.Actions {
		if k == "" {
			return nil, fmt.Errorf("actionfile: %w: empty action key", ErrSyntax)
		}
		out[k] = v
	}
	return out, nil
}

// Render encodes actions as a YAML document with keys in sorted order.
func Render(actions map[string]string) ([]byte, error) {
	if actions == nil {
		actions = map[string]string{}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(document{Actions: actions}); err != nil {
		return nil, fmt.Errorf("actionfile: render: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("actionfile: render: %w", err)
	}
	return buf.Bytes(), nil
}
