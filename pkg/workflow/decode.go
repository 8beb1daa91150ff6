package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a workflow document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath selects the format by file extension. Unknown extensions
// are read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

var (
	schemaOnce sync.Once
	schema     *SchemaValidator
	schemaErr  error
)

func defaultSchema() (*SchemaValidator, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = NewSchemaValidator()
	})
	return schema, schemaErr
}

// Decode parses a workflow document, checks it against the definition
// schema and returns the validated definition.
func Decode(data []byte, format Format) (*Definition, error) {
	doc, err := parseGeneric(data, format)
	if err != nil {
		return nil, err
	}

	sv, err := defaultSchema()
	if err != nil {
		return nil, err
	}
	if err := sv.Validate(doc); err != nil {
		return nil, err
	}

	// Round-trip through JSON so the flat config decoding applies to YAML
	// documents as well.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}

	var def Definition
	if err := json.Unmarshal(normalized, &def); err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and decodes a workflow file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	def, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return def, nil
}

// Encode writes a definition in the requested format.
func Encode(def *Definition, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow definition: %w", err)
	}
	if format != FormatYAML {
		return data, nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to re-read workflow definition: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal workflow definition to yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseGeneric(data []byte, format Format) (any, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported workflow format: %s", format)
	}

	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("workflow document must be an object, got %T", doc)
	}
	return doc, nil
}
