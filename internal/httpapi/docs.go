package httpapi

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/swaggo/swag"
)

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "routerd maintainers"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["router"],
                "summary": "Backend health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/info": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["router"],
                "summary": "Router information",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Info"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/tokenize": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["router"],
                "summary": "Tokenize inputs with the fast tokenizer",
                "parameters": [
                    {"description": "Inputs", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.TokenizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TokenizeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "501": {"description": "Not Implemented", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "backend": {"type": "string", "example": "sharded"},
                "status": {"type": "string", "example": "ok"}
            }
        },
        "types.Info": {
            "type": "object",
            "properties": {
                "backend": {"type": "string", "example": "sharded"},
                "grammar_support": {"type": "boolean", "example": true},
                "max_batch_prefill_tokens": {"type": "integer", "example": 4096},
                "max_batch_total_tokens": {"type": "integer", "example": 16000},
                "max_best_of": {"type": "integer", "example": 2},
                "max_client_batch_size": {"type": "integer", "example": 4},
                "max_concurrent_requests": {"type": "integer", "example": 128},
                "max_input_tokens": {"type": "integer", "example": 1024},
                "max_stop_sequences": {"type": "integer", "example": 4},
                "max_top_n_tokens": {"type": "integer", "example": 5},
                "max_total_tokens": {"type": "integer", "example": 2048},
                "max_waiting_tokens": {"type": "integer", "example": 20},
                "model_id": {"type": "string", "example": "bigscience/bloom-560m"},
                "revision": {"type": "string", "example": "main"},
                "tokenizer": {"type": "string", "example": "fast"},
                "validation_workers": {"type": "integer", "example": 2},
                "version": {"type": "string", "example": "0.1.0"},
                "waiting_served_ratio": {"type": "number", "example": 1.2}
            }
        },
        "types.TokenizeRequest": {
            "type": "object",
            "properties": {
                "add_special_tokens": {"type": "boolean", "example": true},
                "batch": {"type": "array", "items": {"type": "string"}},
                "inputs": {"type": "string", "example": "What is Deep Learning?"}
            }
        },
        "types.TokenizeResponse": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "array", "items": {"type": "integer"}}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "dev",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "routerd API",
	Description:      "Router API of an LLM inference server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// PrintSchema writes the API schema to w as indented JSON.
func PrintSchema(w io.Writer, version string) error {
	if version != "" {
		SwaggerInfo.Version = version
	}
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(doc), "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}
