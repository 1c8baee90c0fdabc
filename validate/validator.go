// Package validate enforces the canonical event schema per event kind.
// Schemas are JSON Schema draft 2020-12 documents compiled once at
// construction; evaluation is total, so a single failure surfaces every
// violated field rule at once.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-proposal-sync/core"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// closeDate is a format check only: calendar validity is deliberately not
// enforced, matching the upstream contract this service replaces.
const sharedDefs = `{
	"$defs": {
		"proposalId": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"amount": {
			"type": "object",
			"required": ["total"],
			"properties": {
				"total": {"type": "number", "exclusiveMinimum": 0},
				"currency": {"type": "string"}
			}
		},
		"stage": {"type": "string", "minLength": 1},
		"closeDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"description": {"type": "string"},
		"reason": {"type": "string"},
		"source": {"type": "object"}
	}
}`

const createdSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["proposalId", "title", "amount", "stage"],
	"properties": {
		"kind": {"type": "string"},
		"proposalId": {"$ref": "defs.json#/$defs/proposalId"},
		"title": {"$ref": "defs.json#/$defs/title"},
		"amount": {"$ref": "defs.json#/$defs/amount"},
		"stage": {"$ref": "defs.json#/$defs/stage"},
		"closeDate": {"$ref": "defs.json#/$defs/closeDate"},
		"description": {"$ref": "defs.json#/$defs/description"},
		"reason": {"$ref": "defs.json#/$defs/reason"},
		"source": {"$ref": "defs.json#/$defs/source"}
	}
}`

const updatedSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["proposalId"],
	"properties": {
		"kind": {"type": "string"},
		"proposalId": {"$ref": "defs.json#/$defs/proposalId"},
		"title": {"$ref": "defs.json#/$defs/title"},
		"amount": {"$ref": "defs.json#/$defs/amount"},
		"stage": {"$ref": "defs.json#/$defs/stage"},
		"closeDate": {"$ref": "defs.json#/$defs/closeDate"},
		"description": {"$ref": "defs.json#/$defs/description"},
		"reason": {"$ref": "defs.json#/$defs/reason"},
		"source": {"$ref": "defs.json#/$defs/source"}
	}
}`

const deletedSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["proposalId"],
	"properties": {
		"kind": {"type": "string"},
		"proposalId": {"$ref": "defs.json#/$defs/proposalId"},
		"closeDate": {"$ref": "defs.json#/$defs/closeDate"},
		"reason": {"$ref": "defs.json#/$defs/reason"},
		"source": {"$ref": "defs.json#/$defs/source"}
	}
}`

type FieldIssue struct {
	Path   string
	Reason string
}

type Validator struct {
	schemas map[core.EventKind]*jsonschema.Schema
	printer *message.Printer
}

func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	sources := map[string]string{
		"defs.json":    sharedDefs,
		"created.json": createdSchema,
		"updated.json": updatedSchema,
		"deleted.json": deletedSchema,
	}
	for name, source := range sources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
		if err != nil {
			return nil, fmt.Errorf("validate: parse schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("validate: add schema %s: %w", name, err)
		}
	}

	schemas := map[core.EventKind]*jsonschema.Schema{}
	for kind, name := range map[core.EventKind]string{
		core.EventCreated: "created.json",
		core.EventUpdated: "updated.json",
		core.EventDeleted: "deleted.json",
	} {
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("validate: compile schema %s: %w", name, err)
		}
		schemas[kind] = schema
	}

	return &Validator{
		schemas: schemas,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Validate checks the payload against the schema for its kind and fails
// with every violation collected, not only the first.
func (v *Validator) Validate(kind core.EventKind, payload map[string]any) error {
	if v == nil {
		return fmt.Errorf("validate: validator is nil")
	}
	schema, ok := v.schemas[kind]
	if !ok {
		return validationError(
			fmt.Sprintf("validate: no schema for event kind %q", kind),
			nil,
		)
	}
	err := schema.Validate(normalizeInstance(payload))
	if err == nil {
		return nil
	}
	var schemaErr *jsonschema.ValidationError
	if !errors.As(err, &schemaErr) {
		return validationError(fmt.Sprintf("validate: %v", err), nil)
	}
	issues := []FieldIssue{}
	v.collectIssues(schemaErr, &issues)
	return validationError(
		fmt.Sprintf("validate: event kind %s failed schema validation", kind),
		issues,
	)
}

func (v *Validator) collectIssues(err *jsonschema.ValidationError, issues *[]FieldIssue) {
	if err == nil {
		return
	}
	if len(err.Causes) == 0 {
		*issues = append(*issues, FieldIssue{
			Path:   "/" + strings.Join(err.InstanceLocation, "/"),
			Reason: err.ErrorKind.LocalizedString(v.printer),
		})
		return
	}
	for _, cause := range err.Causes {
		v.collectIssues(cause, issues)
	}
}

// normalizeInstance deep-copies the payload into the plain JSON value types
// the schema evaluator expects; adapter output may carry Go ints.
func normalizeInstance(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeInstance(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for index, item := range typed {
			out[index] = normalizeInstance(item)
		}
		return out
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case float32:
		return float64(typed)
	default:
		return typed
	}
}

var _ core.EventValidator = (*Validator)(nil)
