package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema for one kind of structured LLM output.
type Schema struct {
	name     string
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// CompileSchema compiles raw under name.
func CompileSchema(name string, raw []byte) (*Schema, error) {
	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, raw: json.RawMessage(raw), compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(name string, raw []byte) *Schema {
	s, err := CompileSchema(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Raw returns the schema document sent to providers.
func (s *Schema) Raw() json.RawMessage { return s.raw }

// Validate checks data against the schema.
func (s *Schema) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode %s output: %w", s.name, err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("%s output does not match schema: %w", s.name, err)
	}
	return nil
}

// Decode validates data and unmarshals it into dst.
func (s *Schema) Decode(data []byte, dst any) error {
	if err := s.Validate(data); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s output: %w", s.name, err)
	}
	return nil
}

// ExtractJSON strips markdown code fences and surrounding prose from an LLM
// reply, returning the outermost JSON object or array.
func ExtractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		body := strings.TrimLeft(trimmed[3:], " \t\r\n")
		if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
			body = strings.TrimLeft(body[4:], " \t\r\n")
		}
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		trimmed = strings.TrimSpace(body)
	}
	if trimmed == "" || trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return trimmed[start : end+1]
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return trimmed[start : end+1]
		}
	}
	return trimmed
}
