package checklist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// Format is a checklist file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension. Anything but .yaml/.yml is JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Render returns the literal text form of a checklist. Parse(Render(c)) equals c.
func Render(c entities.Checklist) string {
	data, err := Encode(c, FormatJSON)
	if err != nil {
		return "[]"
	}
	return strings.TrimSpace(string(data))
}

// Encode serializes a checklist definition.
func Encode(c entities.Checklist, format Format) ([]byte, error) {
	c = c.Clone()
	if c == nil {
		c = entities.Checklist{}
	}
	for i := range c {
		if c[i].Questions == nil {
			c[i].Questions = []string{}
		}
	}
	switch format {
	case FormatYAML:
		return yaml.Marshal(c)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// Decode reads a checklist definition. JSON and YAML are both accepted.
// Unlike Parse, a bad definition is an error: user files are never replaced silently.
func Decode(data []byte) (entities.Checklist, error) {
	if value, ok := decodeJSON(bytes.TrimSpace(data)); ok {
		return validate(value)
	}
	var value any
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return validate(value)
}

// Load reads a checklist definition file.
func Load(path string) (entities.Checklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checklist: %w", err)
	}
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return c, nil
}

// Save writes a checklist definition file, encoding by extension.
func Save(path string, c entities.Checklist) error {
	data, err := Encode(c, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("encoding checklist: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating checklist directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing checklist: %w", err)
	}
	return nil
}
