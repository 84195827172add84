package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
)

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// SchemaFor reflects T into a strict JSON Schema map: every object closes
// additional properties and lists all of its properties as required, which is
// what strict structured-output modes demand.
func SchemaFor[T any]() (map[string]any, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := r.Reflect(v).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("llm: reflect schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("llm: decode schema: %w", err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	closeObjects(m)
	return m, nil
}

func closeObjects(schema map[string]any) {
	props, _ := schema[propertiesKey].(map[string]any)
	if t, ok := schema[typeKey].(string); ok && t == "object" {
		schema[additionalPropertiesKey] = false
		if len(props) > 0 {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			schema[requiredKey] = required
		}
	}
	for _, p := range props {
		if pm, ok := p.(map[string]any); ok {
			closeObjects(pm)
		}
	}
	if items, ok := schema[itemsKey].(map[string]any); ok {
		closeObjects(items)
	}
}

// SchemaPrompt renders s as an instruction block for models without native
// structured output.
func SchemaPrompt(s *ResponseSchema) string {
	if s == nil {
		return ""
	}
	b, err := json.MarshalIndent(s.Schema, "", "  ")
	if err != nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Respond with a single JSON object and nothing else.")
	if s.Description != "" {
		sb.WriteString(" The object is a ")
		sb.WriteString(s.Description)
		sb.WriteString(".")
	}
	sb.WriteString(" It must validate against this JSON Schema:\n")
	sb.Write(b)
	return sb.String()
}

// DecodeJSON unmarshals a model reply into v. Replies wrapped in prose or
// markdown fences are tolerated by extracting the outermost JSON object.
func DecodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return errors.New("llm: no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("llm: decode model reply: %w", err)
	}
	return nil
}
