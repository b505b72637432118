package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const extractionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tests"],
  "properties": {
    "tests": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "value", "unit", "status", "ref_range"],
        "properties": {
          "name":   {"type": "string", "minLength": 1},
          "value":  {"type": ["number", "null"]},
          "unit":   {"type": "string"},
          "status": {"enum": ["low", "normal", "high"]},
          "ref_range": {
            "type": "object",
            "required": ["low", "high"],
            "properties": {
              "low":  {"type": ["number", "null"]},
              "high": {"type": ["number", "null"]}
            }
          }
        }
      }
    }
  }
}`

var extractionShape = jsonschema.MustCompileString("extraction.schema.json", extractionSchema)

// CheckShape reports how the model's raw extraction JSON deviates from the
// expected record shape. Decoding is lenient, so this is advisory only.
func CheckShape(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal extraction: %w", err)
	}
	if err := extractionShape.Validate(v); err != nil {
		return fmt.Errorf("extraction does not match schema: %s", strings.TrimSpace(err.Error()))
	}
	return nil
}
