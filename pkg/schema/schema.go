// Package schema compiles JSON Schema documents and validates candidate
// results against them.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema is returned when a schema document cannot be parsed or compiled
var ErrInvalidSchema = errors.New("invalid schema")

// ValidationError describes a single schema violation
type ValidationError struct {
	// Path is a JSON pointer to the offending value ("" for the root)
	Path string `json:"path"`

	// Message is a human-readable description of the violation
	Message string `json:"message"`
}

// Schema is a parsed JSON Schema document together with its compiled validator
type Schema struct {
	doc      map[string]interface{}
	raw      json.RawMessage
	compiled *gojsonschema.Schema
}

// Parse parses a schema document written in JSON or YAML and compiles it
func Parse(data []byte) (*Schema, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		if yerr := yaml.Unmarshal(data, &doc); yerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, yerr)
		}
	}
	return Compile(doc)
}

// Compile compiles a schema document. The document may be raw JSON bytes,
// a JSON string, or any value that marshals to a JSON object.
func Compile(doc interface{}) (*Schema, error) {
	var raw []byte
	switch d := doc.(type) {
	case nil:
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidSchema)
	case json.RawMessage:
		raw = d
	case []byte:
		raw = d
	case string:
		raw = []byte(d)
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		raw = b
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: document must be a JSON object: %v", ErrInvalidSchema, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(parsed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	canonical, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	return &Schema{
		doc:      parsed,
		raw:      canonical,
		compiled: compiled,
	}, nil
}

// Document returns the canonical JSON form of the schema
func (s *Schema) Document() json.RawMessage {
	out := make(json.RawMessage, len(s.raw))
	copy(out, s.raw)
	return out
}

// Required returns the top-level "required" keys, if any
func (s *Schema) Required() []string {
	list, ok := s.doc["required"].([]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(list))
	for _, item := range list {
		if key, ok := item.(string); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Validate checks a generic candidate value and returns every violation.
// An empty result means the candidate is valid.
func (s *Schema) Validate(candidate interface{}) []ValidationError {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(candidate))
	if err != nil {
		return []ValidationError{{Path: "", Message: err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, ValidationError{
			Path:    pointer(re.Field()),
			Message: re.Description(),
		})
	}
	return violations
}

// Check validates a candidate and, on failure, returns a *Failure whose
// message lists the violations, the expected keys and the candidate itself.
func (s *Schema) Check(candidate interface{}) error {
	violations := s.Validate(candidate)
	if len(violations) == 0 {
		return nil
	}
	return &Failure{
		Violations: violations,
		Required:   s.doc["required"],
		Candidate:  candidate,
	}
}

// Failure is the error returned by Check
type Failure struct {
	Violations []ValidationError
	Required   interface{}
	Candidate  interface{}
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("Schema validation failed:\n")
	for i, v := range f.Violations {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", v.Path, v.Message)
	}

	if f.Required != nil {
		if keys, err := json.Marshal(f.Required); err == nil {
			fmt.Fprintf(&b, "\n\nExpected keys: %s", keys)
		}
	}

	fmt.Fprintf(&b, "\n\nYour output:\n%s", Pretty(f.Candidate))

	return b.String()
}

const rootField = "(root)"

// pointer converts gojsonschema's dotted field notation into a JSON pointer
func pointer(field string) string {
	if field == "" || field == rootField {
		return ""
	}
	field = strings.TrimPrefix(field, rootField+".")
	return "/" + strings.ReplaceAll(field, ".", "/")
}

// Pretty renders a value as indented JSON without HTML escaping. Values that
// cannot be marshalled are rendered with %v.
func Pretty(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
