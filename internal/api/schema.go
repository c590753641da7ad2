package api

import (
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const payloadSchemaURL = "schema://knowledge-graph.json"

// payloadSchema describes the expected response shape. Violations are
// reported as warnings only; decoding proceeds with defaults.
const payloadSchema = `{
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "label", "position"],
        "properties": {
          "id": {"type": "integer"},
          "label": {"type": "string"},
          "position": {
            "type": "object",
            "required": ["x", "y"],
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            }
          },
          "correctResponses": {"type": "number", "minimum": 0},
          "occurrences": {"type": "number", "minimum": 0},
          "isActive": {"type": "boolean"},
          "lastReviewed": {"type": ["string", "null"]},
          "lastQuizAttempts": {"type": "number", "minimum": 0},
          "lastQuizCorrect": {"type": "number", "minimum": 0}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "source": {"type": "integer"},
          "target": {"type": "integer"}
        }
      }
    },
    "trackingThreshold": {"type": "number"},
    "halfLifeDays": {"type": "number"}
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payloadSchema))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(payloadSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(payloadSchemaURL)
})

// schemaWarnings validates body against the payload schema and returns one
// warning per violation. A schema that fails to compile yields no warnings.
func schemaWarnings(body []byte) []string {
	schema, err := compiledSchema()
	if err != nil {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}

	err = schema.Validate(parsed)
	if err == nil {
		return nil
	}

	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, "schema: "+line)
	}
	return out
}
