// Package docs holds the OpenAPI description of the engine API.
// Regenerate with: swag init -g cmd/engine/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/errors": {
            "get": {
                "description": "Returns recent processing errors, optionally filtered by machine",
                "produces": ["application/json"],
                "tags": ["errors"],
                "summary": "List errors",
                "parameters": [
                    {"type": "string", "description": "Machine ID filter", "name": "machine_id", "in": "query"},
                    {"type": "integer", "default": 50, "description": "Maximum number of errors", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Errors", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid limit", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/machines": {
            "get": {
                "description": "Returns the controller status of every known machine, sorted by machine id",
                "produces": ["application/json"],
                "tags": ["machines"],
                "summary": "List machines",
                "responses": {
                    "200": {"description": "Machine statuses", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/machines/{id}": {
            "get": {
                "description": "Returns state, training buffer fill and model details for a machine",
                "produces": ["application/json"],
                "tags": ["machines"],
                "summary": "Get machine status",
                "parameters": [
                    {"type": "string", "description": "Machine ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Machine status", "schema": {"$ref": "#/definitions/model.MachineStatus"}},
                    "404": {"description": "Machine not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/machines/{id}/summary": {
            "get": {
                "description": "Returns energy, CO2 and cost totals. Falls back to the last persisted snapshot when the machine has not reported since restart.",
                "produces": ["application/json"],
                "tags": ["machines"],
                "summary": "Get machine summary",
                "parameters": [
                    {"type": "string", "description": "Machine ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Machine summary", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Machine not found", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "model.MachineStatus": {
            "type": "object",
            "properties": {
                "machine_id": {"type": "string"},
                "state": {"type": "string", "enum": ["UNINITIALIZED", "TRAINING", "READY"]},
                "buffer_size": {"type": "integer"},
                "buffer_capacity": {"type": "integer"},
                "model_id": {"type": "string"},
                "trained_at": {"type": "string"},
                "persisted": {"type": "boolean"},
                "fit_failures": {"type": "integer"},
                "processed": {"type": "integer"},
                "skipped": {"type": "integer"},
                "anomalies": {"type": "integer"},
                "last_reading_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "GreenTwin Engine API",
	Description:      "Read-only view of per-machine anomaly detection state and sustainability totals.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
