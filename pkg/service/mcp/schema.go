package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// convertJSONSchemaToGenai converts a JSON Schema into a Gemini schema. Integers stay integers.
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	gs := &genai.Schema{}

	typ := schema.Type
	if typ == "" {
		// nullable types come as ["string", "null"]
		for _, t := range schema.Types {
			if t != "null" {
				typ = t
				break
			}
		}
	}

	switch typ {
	case "object":
		gs.Type = genai.TypeObject
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	case "array":
		gs.Type = genai.TypeArray
	default:
		if typ != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", typ))
		}
	}

	if schema.Description != "" {
		gs.Description = schema.Description
	}

	if len(schema.Enum) > 0 {
		gs.Enum = make([]string, len(schema.Enum))
		for i, v := range schema.Enum {
			if s, ok := v.(string); ok {
				gs.Enum[i] = s
			}
		}
	}

	if len(schema.Properties) > 0 {
		gs.Properties = make(map[string]*genai.Schema)
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			gs.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		gs.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		gs.Items = converted
	}

	return gs, nil
}
