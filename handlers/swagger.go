package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the content service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>content-service Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the public, auth and admin endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "content-service", "version": "v1.0.0" },
  "components": { "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } } },
  "paths": {
    "/api/config": { "get": { "summary": "Merged site document", "responses": { "200": { "description": "document" } } } },
    "/api/config/stream": { "get": { "summary": "Site document as Server-Sent Events", "responses": { "200": { "description": "event stream" } } } },
    "/api/contact": { "post": { "summary": "Submit a contact message", "responses": { "201": { "description": "stored" }, "400": { "description": "invalid" }, "429": { "description": "rate limited" } } } },
    "/api/reservations": { "post": { "summary": "Request a reservation", "responses": { "201": { "description": "pending" }, "400": { "description": "invalid" }, "409": { "description": "reservations closed" } } } },
    "/auth/login": {
      "post": {
        "summary": "Sign in with email and password",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "idToken and sessionId" }, "401": { "description": "bad credentials" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Fresh ID token for a session", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"sessionId":{"type":"string"}}}}}}, "responses": { "200": { "description": "new id token" }, "401": { "description": "invalid session" } } }
    },
    "/auth/password-reset": {
      "post": { "summary": "Email a password reset link", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"}}}}}}, "responses": { "200": { "description": "sent" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Close the session and revoke the ID token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"sessionId":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/api/admin/config": { "patch": { "summary": "Save site sections", "security": [{"bearer": []}], "responses": { "200": { "description": "document" }, "400": { "description": "unknown or invalid section" }, "422": { "description": "over admin limits" }, "502": { "description": "store write failed" } } } },
    "/api/admin/backups": {
      "get": { "summary": "List backups", "security": [{"bearer": []}], "responses": { "200": { "description": "summaries, newest first" } } },
      "post": { "summary": "Snapshot the current document", "security": [{"bearer": []}], "responses": { "201": { "description": "created" } } }
    },
    "/api/admin/backups/master": { "post": { "summary": "Save the delivery version", "security": [{"bearer": []}], "responses": { "200": { "description": "saved" } } } },
    "/api/admin/backups/{id}": {
      "get": { "summary": "Backup record", "security": [{"bearer": []}], "responses": { "200": { "description": "record" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete backup", "security": [{"bearer": []}], "responses": { "204": { "description": "deleted" } } }
    },
    "/api/admin/backups/{id}/restore": { "post": { "summary": "Overwrite the document with a backup", "security": [{"bearer": []}], "responses": { "200": { "description": "restored document" } } } },
    "/api/admin/backups/{id}/export": { "get": { "summary": "Download link for a backup", "security": [{"bearer": []}], "responses": { "200": { "description": "url or record" } } } },
    "/api/admin/factory-reset": { "post": { "summary": "Restore the delivery version or the defaults", "security": [{"bearer": []}], "responses": { "200": { "description": "source used" } } } },
    "/api/admin/messages": { "get": { "summary": "Contact messages, newest first", "security": [{"bearer": []}], "responses": { "200": { "description": "messages and unread count" } } } },
    "/api/admin/reservations": { "get": { "summary": "Reservations by date", "security": [{"bearer": []}], "responses": { "200": { "description": "reservations" } } } },
    "/api/admin/profile": {
      "get": { "summary": "Own profile", "security": [{"bearer": []}], "responses": { "200": { "description": "profile" } } },
      "put": { "summary": "Set display name", "security": [{"bearer": []}], "responses": { "200": { "description": "profile" }, "400": { "description": "invalid name" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
