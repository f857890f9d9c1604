package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SIGPAE API",
        "description": "Approval workflows and audit trail for school meal requests",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Requests", "description": "Request lifecycle, history and exports"},
        {"name": "Workflows", "description": "Variant state machines"},
        {"name": "Sweeps", "description": "Batch transitions run by the system actor"},
        {"name": "Calendar", "description": "Non-instructional days used in business-day counting"}
    ],
    "paths": {
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List requests visible to the caller",
                "parameters": [
                    {"name": "variant", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "escola_id", "in": "query", "type": "string"},
                    {"name": "dre_id", "in": "query", "type": "string"},
                    {"name": "lote_id", "in": "query", "type": "string"},
                    {"name": "terceirizada_id", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "due", "in": "query", "type": "string", "enum": ["week", "month", "overdue"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Create a request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error or guard failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Role may not create this variant", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/export": {
            "get": {
                "tags": ["Requests"],
                "summary": "Export requests as CSV, XLSX or PDF",
                "produces": ["text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "xlsx", "pdf"]},
                    {"name": "variant", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "due", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Invalid format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get a request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/transitions": {
            "post": {
                "tags": ["Requests"],
                "summary": "Apply an event to a request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown transition or guard failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Role not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent modification", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/events": {
            "get": {
                "tags": ["Requests"],
                "summary": "List the events the caller may submit",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/requests/{id}/history": {
            "get": {
                "tags": ["Requests"],
                "summary": "Audit trail of a request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/requests/{id}/history/verify": {
            "get": {
                "tags": ["Requests"],
                "summary": "Verify the audit hash chain and replay",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/workflows/{variant}": {
            "get": {
                "tags": ["Workflows"],
                "summary": "Describe the state machine of a variant",
                "parameters": [{"name": "variant", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown variant", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sweeps": {
            "get": {
                "tags": ["Sweeps"],
                "summary": "List batch sweeps",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/sweeps/{name}": {
            "post": {
                "tags": ["Sweeps"],
                "summary": "Run a sweep now",
                "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown sweep", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Sweep already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/calendar/non-instructional-days": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List non-instructional days",
                "parameters": [
                    {"name": "institution_id", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "CreateRequestPayload": {
            "type": "object",
            "required": ["variant", "dataInicial", "category"],
            "properties": {
                "variant": {"type": "string"},
                "escolaId": {"type": "string"},
                "dataInicial": {"type": "string", "format": "date"},
                "dataFinal": {"type": "string", "format": "date"},
                "category": {"type": "string"},
                "details": {"type": "object"}
            }
        },
        "TransitionPayload": {
            "type": "object",
            "required": ["event"],
            "properties": {
                "event": {"type": "string"},
                "version": {"type": "integer"},
                "justification": {"type": "string"},
                "answer": {"type": "boolean"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
