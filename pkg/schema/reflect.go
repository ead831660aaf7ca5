package schema

import (
	"github.com/invopop/jsonschema"
)

func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
}

// For derives a schema from the Go type T. Struct fields without
// `omitempty` are required.
func For[T any]() (*Schema, error) {
	var zero T
	doc := reflector().Reflect(&zero)
	// gojsonschema only understands drafts up to 7
	doc.Version = ""
	return Compile(doc)
}

// MustFor is like For but panics if the schema cannot be compiled.
func MustFor[T any]() *Schema {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}
