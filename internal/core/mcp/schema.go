package mcp

import "encoding/json"

// SanitizeSchema normalizes an MCP server's raw inputSchema into the
// shape providers' tool-calling APIs expect: every object/property node
// gets an explicit "type", and the ambiguous MCP/JSON-Schema "integer"
// keyword (not universally accepted by provider schemas) is folded into
// "number". Malformed or absent schemas fall back to an empty object
// schema so a tool with no declared parameters is still callable.
func SanitizeSchema(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return sanitizeNode(parsed)
}

func sanitizeNode(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		if arr, ok := node.([]any); ok {
			out := make([]any, len(arr))
			for i, v := range arr {
				out[i] = sanitizeNode(v)
			}
			return out
		}
		return node
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "properties", "patternProperties", "definitions", "$defs":
			if sub, ok := v.(map[string]any); ok {
				nested := make(map[string]any, len(sub))
				for pk, pv := range sub {
					nested[pk] = sanitizeNode(pv)
				}
				out[k] = nested
				continue
			}
		case "items", "additionalProperties":
			out[k] = sanitizeNode(v)
			continue
		case "anyOf", "oneOf", "allOf":
			if arr, ok := v.([]any); ok {
				nested := make([]any, len(arr))
				for i, pv := range arr {
					nested[i] = sanitizeNode(pv)
				}
				out[k] = nested
				continue
			}
		}
		out[k] = v
	}

	if t, ok := out["type"]; ok {
		if s, ok := t.(string); ok && s == "integer" {
			out["type"] = "number"
		}
	} else if _, hasProps := out["properties"]; hasProps {
		out["type"] = "object"
	}

	return out
}
