// Package docs holds the OpenAPI description served under /swagger when
// SWAGGER_ENABLED is set. Regenerate with `swag init -g cmd/reqlarr/main.go`.
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
        "/config": {
            "get": {
                "security": [{"BasicAuth": []}],
                "description": "Returns the current Radarr/Sonarr credentials and URLs and the Discord bot token.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Show runtime settings",
                "operationId": "getConfig",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/settings.Settings"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}}
                }
            },
            "post": {
                "security": [{"BasicAuth": []}],
                "description": "Merges the given keys into the settings and writes them to the settings file. Omitted keys are unchanged. Takes effect for requests that start afterwards; a bot token change applies on restart.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Update runtime settings",
                "operationId": "updateConfig",
                "parameters": [
                    {"description": "Keys to change", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/settings.Update"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Malformed JSON or invalid URL", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "500": {"description": "Settings file not writable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/logs": {
            "get": {
                "security": [{"BasicAuth": []}],
                "description": "Returns every ledger record in ascending id order. With page or page_size the response is a paginated object instead. Supports weak ETag via If-None-Match.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Show the request ledger",
                "operationId": "getLogs",
                "parameters": [
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 500, "minimum": 1, "type": "integer", "default": 50, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.RequestRecord"}},
                        "headers": {"ETag": {"type": "string", "description": "Weak ETag for the current ledger"}}
                    },
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "string"}},
                    "500": {"description": "Ledger unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/webhook": {
            "post": {
                "description": "Records Download events in the ledger and schedules a direct message to the requester. Other event types are acknowledged and ignored. Missing fields default to \"Unknown\" (title, eventType) and \"System\" (user); a malformed body is treated as an empty object. An optional Idempotency-Key makes retried deliveries count once; a malformed key is ignored.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhook"],
                "summary": "Receive a download event",
                "operationId": "webhook",
                "parameters": [
                    {"type": "string", "description": "Deduplicates retried deliveries", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Event", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handlers.WebhookPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "500": {"description": "Ledger write failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.RequestRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "user": {"type": "string"},
                "request_type": {"type": "string", "enum": ["movie", "series", "notification"]},
                "title": {"type": "string"},
                "status": {"type": "string", "enum": ["Already Exists", "Requested", "Failed", "Downloaded"]},
                "created_at": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "handlers.WebhookPayload": {
            "type": "object",
            "properties": {
                "title": {"type": "string", "example": "Dune"},
                "eventType": {"type": "string", "example": "Download"},
                "user": {"type": "string", "example": "123456789012345678"}
            }
        },
        "settings.Settings": {
            "type": "object",
            "properties": {
                "sonarr_api_key": {"type": "string"},
                "radarr_api_key": {"type": "string"},
                "discord_bot_token": {"type": "string"},
                "sonarr_url": {"type": "string"},
                "radarr_url": {"type": "string"}
            }
        },
        "settings.Update": {
            "type": "object",
            "properties": {
                "sonarr_api_key": {"type": "string"},
                "radarr_api_key": {"type": "string"},
                "discord_bot_token": {"type": "string"},
                "sonarr_url": {"type": "string"},
                "radarr_url": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "reqlarr API",
	Description:      "Webhook and admin surface of the reqlarr media request relay.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
