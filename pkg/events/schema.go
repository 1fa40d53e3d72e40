package events

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// Per-event JSON schemas applied to raw payloads at the bus boundary, before
// any typed decoding happens. Payloads that reach a workflow are always
// well-formed.
var payloadSchemas = map[EventType]map[string]any{
	UserCreatedEvent: {
		"type": "object",
		"properties": map[string]any{
			"firstName":     map[string]any{"type": "string", "minLength": 1},
			"lastName":      map[string]any{"type": "string", "minLength": 1},
			"personalEmail": map[string]any{"type": "string", "format": "email"},
			"batchNumber":   map[string]any{"type": "integer", "minimum": 0},
			"department":    map[string]any{"type": "string"},
			"status":        map[string]any{"type": "string"},
		},
		"required": []any{"firstName", "lastName", "personalEmail", "batchNumber"},
	},
	GroupCreatedEvent: {
		"type": "object",
		"properties": map[string]any{
			"id":   map[string]any{"type": "string", "minLength": 1},
			"name": map[string]any{"type": "string", "minLength": 1},
			"slug": map[string]any{"type": "string", "minLength": 1, "pattern": "^[a-z0-9-]+$"},
			"integrations": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"slack": map[string]any{"type": "boolean"},
					"email": map[string]any{"type": "boolean"},
				},
			},
		},
		"required": []any{"id", "name", "slug"},
	},
	SlackUserJoinedEvent: {
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"id"},
	},
	UserUpdatedEvent: {
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"id"},
	},
	WorkflowStartEvent: {
		"type": "object",
		"properties": map[string]any{
			"email":     map[string]any{"type": "string", "format": "email"},
			"firstName": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"email", "firstName"},
	},
	WorkflowApprovalEvent: {
		"type": "object",
		"properties": map[string]any{
			"email":      map[string]any{"type": "string", "format": "email"},
			"workflowId": map[string]any{"type": "string", "minLength": 1},
			"approvedAt": map[string]any{"type": "string"},
		},
		"required": []any{"email", "workflowId"},
	},
}

// ValidatePayload checks a raw event data map against the schema declared for
// its event type.
func ValidatePayload(eventType EventType, data map[string]any) error {
	schema, ok := payloadSchemas[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", eventType, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid %s payload: %s", eventType, strings.Join(details, "; "))
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEvent runs struct-level validation on an already decoded event.
func ValidateEvent(event Event) error {
	if err := validate.Struct(event); err != nil {
		return fmt.Errorf("invalid %s event: %w", event.GetType(), err)
	}

	return nil
}
