// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/washq/main.go` after changing handler
// annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
        "/availability": {"get": {"summary": "Slot availability for one day or a date range", "parameters": [
            {"type": "string", "description": "first day (YYYY-MM-DD)", "name": "date", "in": "query", "required": true},
            {"type": "string", "description": "last day (YYYY-MM-DD), at most 30 days after date", "name": "end", "in": "query"}
        ], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/bookings": {"post": {"summary": "Create a booking hold (idempotent)", "parameters": [
            {"type": "string", "description": "replay key", "name": "Idempotency-Key", "in": "header"},
            {"description": "payload", "name": "req", "in": "body", "required": true, "schema": {"type": "object"}}
        ], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "slot unavailable / idem in progress"}, "429": {"description": "rate limited"}}}},
        "/bookings/{id}": {"get": {"summary": "Get booking with payment and job", "parameters": [
            {"type": "string", "description": "Booking ID (uuid)", "name": "id", "in": "path", "required": true},
            {"type": "string", "description": "restrict to this customer", "name": "user_id", "in": "query"}
        ], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/bookings/{id}/slip": {"post": {"summary": "Upload payment slip", "consumes": ["multipart/form-data"], "parameters": [
            {"type": "string", "description": "Booking ID (uuid)", "name": "id", "in": "path", "required": true},
            {"type": "string", "description": "Customer ID (uuid)", "name": "user_id", "in": "formData", "required": true},
            {"type": "file", "description": "jpeg, png or gif, at most 5MB", "name": "slip", "in": "formData", "required": true}
        ], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "hold expired / not pending payment"}}}},
        "/bookings/{id}/cancel": {"post": {"summary": "Cancel an unpaid hold", "parameters": [
            {"type": "string", "description": "Booking ID (uuid)", "name": "id", "in": "path", "required": true}
        ], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/users/{id}/bookings": {"get": {"summary": "List bookings of a customer", "parameters": [
            {"type": "string", "description": "User ID (uuid)", "name": "id", "in": "path", "required": true}
        ], "responses": {"200": {"description": "OK"}}}},
        "/payment-channels": {"get": {"summary": "List active payment channels", "responses": {"200": {"description": "OK"}}}},
        "/webhook/line": {"post": {"summary": "LINE Messaging API webhook", "parameters": [
            {"type": "string", "description": "HMAC-SHA256 of the body", "name": "X-Line-Signature", "in": "header", "required": true}
        ], "responses": {"200": {"description": "OK"}, "401": {"description": "invalid signature"}}}},
        "/ws/availability": {"get": {"summary": "Live slot changes", "responses": {"101": {"description": "Switching Protocols"}}}},
        "/admin/bookings": {"get": {"summary": "List bookings", "responses": {"200": {"description": "OK"}}}},
        "/admin/dashboard": {"get": {"summary": "Dashboard counters", "responses": {"200": {"description": "OK"}}}},
        "/admin/bookings/{id}/transition": {"post": {"summary": "Move a booking to another status", "responses": {"200": {"description": "OK"}, "409": {"description": "transition not allowed"}}}},
        "/admin/bookings/{id}/verify": {"post": {"summary": "Verify the payment slip and confirm the booking", "responses": {"200": {"description": "OK"}}}},
        "/admin/bookings/{id}/reject": {"post": {"summary": "Reject the payment slip", "responses": {"200": {"description": "OK"}}}},
        "/admin/bookings/{id}/assign": {"post": {"summary": "Assign a pickup runner", "responses": {"200": {"description": "OK"}}}},
        "/admin/business-hours": {
            "get": {"summary": "List business hours", "responses": {"200": {"description": "OK"}}},
            "put": {"summary": "Replace business hours", "responses": {"204": {"description": "No Content"}}}
        },
        "/admin/slot-overrides": {
            "put": {"summary": "Close a slot or change its quota", "responses": {"204": {"description": "No Content"}}},
            "delete": {"summary": "Remove a slot override", "responses": {"204": {"description": "No Content"}}}
        },
        "/admin/payment-channels": {
            "get": {"summary": "List all payment channels", "responses": {"200": {"description": "OK"}}},
            "put": {"summary": "Upsert payment channels", "consumes": ["application/json", "multipart/form-data"], "parameters": [
                {"type": "file", "description": "jpeg, png or gif", "name": "qr_file", "in": "formData"}
            ], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "WashQ API",
	Description:      "Car-wash slot booking with pickup and return.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
