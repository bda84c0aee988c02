package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// ParametersFromSchema flattens a JSON Schema object ({"type":"object",
// "properties":{...},"required":[...]}) into parameter specs.
func ParametersFromSchema(schema map[string]any) map[string]domain.ParameterSpec {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}

	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	case []string:
		for _, s := range req {
			required[s] = true
		}
	}

	out := make(map[string]domain.ParameterSpec, len(props))
	for name, raw := range props {
		p, _ := raw.(map[string]any)
		spec := domain.ParameterSpec{Required: required[name]}
		if p != nil {
			spec.Type = schemaType(p["type"])
			spec.Description, _ = p["description"].(string)
			spec.Enum, _ = p["enum"].([]any)
		}
		out[name] = spec
	}
	return out
}

// schemaType returns the first non-null type of a JSON Schema "type" field.
func schemaType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

var jsonTypes = map[string]string{
	"string":  "string",
	"number":  "number",
	"float":   "number",
	"double":  "number",
	"integer": "integer",
	"int":     "integer",
	"boolean": "boolean",
	"bool":    "boolean",
	"object":  "object",
	"array":   "array",
}

// SchemaFor builds a JSON Schema for a descriptor's parameters. Unknown
// parameter types are left unconstrained, and extra arguments are allowed.
func SchemaFor(params map[string]domain.ParameterSpec) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for name, p := range params {
		prop := map[string]any{}
		if t, ok := jsonTypes[strings.ToLower(p.Type)]; ok {
			prop["type"] = t
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

// ValidateArguments checks args against the descriptor's parameters.
func ValidateArguments(desc domain.ToolDescriptor, args map[string]any) error {
	if len(desc.Parameters) == 0 {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(SchemaFor(desc.Parameters)))
	if err != nil {
		return fmt.Errorf("invalid parameter schema for %s: %w", desc.Name, err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validating arguments for %s: %w", desc.Name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid arguments for %s: %s", desc.Name, strings.Join(msgs, "; "))
	}
	return nil
}
