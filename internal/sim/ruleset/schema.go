package ruleset

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const scriptsSchemaURL = "mem://schemas/scripts.schema.json"

const scriptsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "array",
    "items": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["add-fragment","add-line","add-transport","add-ufo","dig-tunnel","fill-area","check-fragment","remove","resize"]},
        "label": {"type": "integer", "minimum": 0},
        "conditionals": {"type": "array", "items": {"type": "integer", "not": {"const": 0}}},
        "execution_chance": {"type": "integer", "minimum": 0, "maximum": 100},
        "executions": {"type": "integer", "minimum": 0},
        "rects": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["x","y","w","h"],
            "properties": {
              "x": {"type": "integer", "minimum": 0},
              "y": {"type": "integer", "minimum": 0},
              "w": {"type": "integer", "minimum": 1},
              "h": {"type": "integer", "minimum": 1}
            }
          }
        },
        "groups": {"type": "array", "items": {"type": "integer", "minimum": 0}},
        "blocks": {"type": "array", "items": {"type": "integer", "minimum": 0}},
        "freqs": {"type": "array", "items": {"type": "integer", "minimum": 1}},
        "max_uses": {"type": "array", "items": {"type": "integer"}},
        "size": {"type": "array", "items": {"type": "integer", "minimum": 0}, "maxItems": 3},
        "direction": {"enum": ["horizontal","vertical","both"]},
        "tunnel": {
          "type": "object",
          "properties": {
            "level": {"type": "integer", "minimum": 0},
            "offset": {"type": "integer", "minimum": 0},
            "width": {"type": "integer", "minimum": 1}
          }
        },
        "transport": {"type": "string"}
      }
    }
  }
}`

var (
	scriptsSchemaOnce sync.Once
	scriptsSchemaC    *jsonschema.Schema
	scriptsSchemaErr  error
)

func compiledScriptsSchema() (*jsonschema.Schema, error) {
	scriptsSchemaOnce.Do(func() {
		scriptsSchemaC, scriptsSchemaErr = jsonschema.CompileString(scriptsSchemaURL, scriptsSchema)
	})
	return scriptsSchemaC, scriptsSchemaErr
}

// ValidateScripts checks a raw scripts document against the directive schema.
func ValidateScripts(raw []byte) error {
	s, err := compiledScriptsSchema()
	if err != nil {
		return fmt.Errorf("compile scripts schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
