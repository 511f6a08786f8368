package evidence

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// #region schema
// schemaJSON is the normative shape of a persisted evidence payload.
// Keys outside this set are treated as telemetry by convention; schema
// evolution adds new normative keys explicitly and bumps schema_version.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "schema_version": {"type": "integer", "minimum": 1},
    "verdict": {"enum": ["pass", "fail"]},
    "qa_status": {"enum": ["pass", "fail"]},
    "checks_executed": {"type": "array", "items": {"type": "string"}},
    "telemetry": {"type": "object"},
    "timestamp": {"type": "string"}
  },
  "required": ["schema_version", "checks_executed"],
  "anyOf": [
    {"required": ["verdict"]},
    {"required": ["qa_status"]}
  ]
}`

var compiledSchema = jsonschema.MustCompileString("evidence.schema.json", schemaJSON)

// validatePayload checks a decoded payload against the evidence schema.
func validatePayload(doc any) error {
	return compiledSchema.Validate(doc)
}

// #endregion schema
