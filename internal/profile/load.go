package profile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Format is a profile document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

const schemaURL = "https://github.com/niraj-rajbhandari/cryptanalyse/schema/frequency-profile-v1.schema.json"

//go:embed profile.schema.json
var schemaData []byte

var (
	compiledSchema *jsonschema.Schema
	schemaErr      error
	schemaOnce     sync.Once
)

// document is the on-disk shape of a profile.
type document struct {
	Name        string             `json:"name" toml:"name" yaml:"name"`
	Description string             `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	Frequencies map[string]float64 `json:"frequencies" toml:"frequencies" yaml:"frequencies"`
}

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// FormatFromPath picks a document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported profile extension %q", filepath.Ext(path))
	}
}

// Load reads a profile document from disk. The format follows the file
// extension.
func Load(path string) (*Profile, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Parse decodes and validates a profile document. The document is checked
// against the frequency-profile JSON Schema before it is converted, whatever
// its encoding.
func Parse(data []byte, format Format) (*Profile, error) {
	var raw map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format %q", format)
	}

	// Round-trip through JSON so every encoding reaches the validator with
	// the same value types.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	var instance any
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	s, err := schema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	var doc document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	p, err := New(doc.Name, doc.Frequencies)
	if err != nil {
		return nil, err
	}
	p.Description = doc.Description
	return p, nil
}

// Encode writes p as a profile document in the given format.
func Encode(w io.Writer, p *Profile, format Format) error {
	doc := document{
		Name:        p.Name,
		Description: p.Description,
		Frequencies: p.Table(),
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported profile format %q", format)
	}
}

// Save writes p to path, choosing the format from the extension.
func Save(p *Profile, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, p, format); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create profile directory: %w", err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Resolve returns the built-in English profile for an empty path and loads
// the file otherwise.
func Resolve(path string) (*Profile, error) {
	if strings.TrimSpace(path) == "" {
		return English(), nil
	}
	return Load(path)
}
