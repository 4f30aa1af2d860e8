package garm

import (
	"fmt"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// LoadSchemaJSON decodes a JSON schema definition and meta-validates it.
func LoadSchemaJSON(data []byte) (map[string]any, error) {
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("garm: decoding schema: %w", err)
	}
	v, err := NewValidator(nil)
	if err != nil {
		return nil, err
	}
	if err := v.checkSchemaValid(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// LoadSchemaYAML decodes a YAML schema definition and meta-validates it.
func LoadSchemaYAML(data []byte) (map[string]any, error) {
	var schema map[string]any
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("garm: decoding schema: %w", err)
	}
	v, err := NewValidator(nil)
	if err != nil {
		return nil, err
	}
	if err := v.checkSchemaValid(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// LoadDocumentJSON decodes a JSON document into the mapping form the engine
// consumes.
func LoadDocumentJSON(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DocumentError{Message: "decoding document: " + err.Error()}
	}
	return doc, nil
}

// LoadDocumentYAML decodes a YAML document into the mapping form the engine
// consumes.
func LoadDocumentYAML(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DocumentError{Message: "decoding document: " + err.Error()}
	}
	return doc, nil
}

// MarshalErrors renders a handler output mapping as JSON.
func MarshalErrors(out map[string]any) ([]byte, error) {
	return json.Marshal(out)
}
