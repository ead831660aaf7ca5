package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/dragen/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ToolRegistry holds the tools an interpreter exposes to code
type ToolRegistry struct {
	tools map[string]*registeredTool
	order []string
	mu    sync.RWMutex
}

type registeredTool struct {
	info    ToolInfo
	handler Handler
	schema  *gojsonschema.Schema
}

// NewToolRegistry creates an empty registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*registeredTool),
	}
}

// Register adds a tool, replacing any tool with the same name while keeping
// its original position
func (r *ToolRegistry) Register(info ToolInfo, handler Handler) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("tool %s has no handler", info.Name)
	}

	schema, err := argumentSchema(info)
	if err != nil {
		return fmt.Errorf("failed to build argument schema for %s: %w", info.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[info.Name]; !exists {
		r.order = append(r.order, info.Name)
	}
	r.tools[info.Name] = &registeredTool{info: info, handler: handler, schema: schema}

	log.Debug().Str("tool", info.Name).Int("args", len(info.Args)).Msg("Tool registered")
	return nil
}

// Get returns the description of a registered tool
func (r *ToolRegistry) Get(name string) (ToolInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return ToolInfo{}, false
	}
	return tool.info, true
}

// Has reports whether a tool is registered
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns tool descriptions in registration order
func (r *ToolRegistry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].info)
	}
	return out
}

// Call validates args against the tool's declaration and invokes its handler
func (r *ToolRegistry) Call(ctx context.Context, name string, args []interface{}) (interface{}, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		log.Error().Str("tool", name).Msg("Tool not found")
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if err := validateArguments(tool.schema, args); err != nil {
		log.Error().Str("tool", name).Err(err).Msg("Argument validation failed")
		observability.RecordToolAudit(ctx, name, "sandbox", "rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	start := time.Now()
	result, err := tool.handler(ctx, args)
	duration := time.Since(start)

	observability.RecordToolExecution(name, duration, err == nil)
	status := "success"
	metadata := map[string]interface{}{
		"args":        len(args),
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		status = "failure"
		metadata["error"] = err.Error()
	}
	observability.RecordToolAudit(ctx, name, "sandbox", status, metadata)

	log.Debug().Str("tool", name).Dur("duration", duration).Bool("success", err == nil).Msg("Tool executed")
	return result, err
}

// Clone returns a registry with the same tools
func (r *ToolRegistry) Clone() *ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &ToolRegistry{
		tools: make(map[string]*registeredTool, len(r.tools)),
		order: append([]string(nil), r.order...),
	}
	for name, tool := range r.tools {
		out.tools[name] = tool
	}
	return out
}

// argumentSchema describes a positional argument list as a JSON Schema array
func argumentSchema(info ToolInfo) (*gojsonschema.Schema, error) {
	items := make([]interface{}, len(info.Args))
	minItems := 0
	for i, arg := range info.Args {
		itemSchema := map[string]interface{}{}
		if typ := jsonType(arg.Type); typ != "" {
			if arg.Required {
				itemSchema["type"] = typ
			} else {
				itemSchema["type"] = []interface{}{typ, "null"}
			}
		}
		if arg.Description != "" {
			itemSchema["description"] = arg.Description
		}
		items[i] = itemSchema
		if arg.Required {
			minItems = i + 1
		}
	}

	schemaMap := map[string]interface{}{
		"type":     "array",
		"items":    items,
		"minItems": minItems,
		"maxItems": len(info.Args),
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validateArguments(schema *gojsonschema.Schema, args []interface{}) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = []interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(problems, "; "))
	}
	return nil
}

// jsonType maps a Python-style type hint to a JSON Schema type. Unknown or
// empty hints leave the argument unconstrained.
func jsonType(hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "str", "string":
		return "string"
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "list", "array":
		return "array"
	case "dict", "object":
		return "object"
	default:
		return ""
	}
}
