// Package userspace holds the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g internal/userspace/http/router.go -o api/userspace
package userspace

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/userspace"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/jwks.json": {
            "get": {
                "description": "Returns the JSON Web Key Set used to verify identity tokens.",
                "produces": ["application/json"],
                "tags": ["Keys"],
                "summary": "Get JWKS",
                "responses": {
                    "200": {"description": "The JSON Web Key Set", "schema": {"$ref": "#/definitions/usersdk.JWKSResponse"}}
                }
            }
        },
        "/livez": {
            "get": {
                "description": "Always returns 200 OK while the process is running.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/usersdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Checks the account store and the signing key.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/usersdk.HealthResponse"}},
                    "503": {"description": "status, uptime, version, checks - service not ready", "schema": {"$ref": "#/definitions/usersdk.HealthResponse"}}
                }
            }
        },
        "/v1/keys/public": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Keys"],
                "summary": "Get the public key",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.PublicKeyResponse"}}
                }
            }
        },
        "/v1/users": {
            "post": {
                "description": "Creates an unverified account and emails a confirmation link.\nFields other than the documented ones are stored as profile extras.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Register an account",
                "parameters": [
                    {"description": "Account details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/usersdk.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/usersdk.UserResponse"}},
                    "400": {"description": "validation_error", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "409": {"description": "duplicate_email or duplicate_username", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "429": {"description": "rate_limited", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        },
        "/v1/users/available": {
            "get": {
                "description": "Only registered when availability_check is enabled, since it reveals registrations.",
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Check availability",
                "parameters": [
                    {"type": "string", "description": "Email address", "name": "email", "in": "query"},
                    {"type": "string", "description": "Username", "name": "username", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.AvailabilityResponse"}},
                    "400": {"description": "validation_error", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        },
        "/v1/users/email/confirmation": {
            "get": {
                "description": "Redeems the token sent by email. Each token works once.",
                "produces": ["application/json"],
                "tags": ["Email"],
                "summary": "Confirm an email address",
                "parameters": [
                    {"type": "string", "description": "Confirmation token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "400": {"description": "invalid_token", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        },
        "/v1/users/email/confirmation/resend": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Email"],
                "summary": "Resend the confirmation email",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "401": {"description": "session_invalid", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "409": {"description": "already_verified", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        },
        "/v1/users/login": {
            "post": {
                "description": "Authenticates with an email address or username and returns an identity token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/usersdk.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.AuthResponse"}},
                    "401": {"description": "wrong_login or wrong_password", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "429": {"description": "rate_limited", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        },
        "/v1/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Account"],
                "summary": "Current account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.UserResponse"}},
                    "401": {"description": "session_invalid", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Requires the current password.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Account"],
                "summary": "Delete the account",
                "parameters": [
                    {"description": "Current password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/usersdk.DeleteAccountRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "401": {"description": "session_invalid or wrong_password", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "description": "Changes email, username, password and profile extras in one write.\nA password change requires previous_password. An email change sends a new confirmation link.\nProfile extras are merged into the stored ones. The response carries a fresh token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Account"],
                "summary": "Update account settings",
                "parameters": [
                    {"description": "Changes", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/usersdk.UpdateProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.AuthResponse"}},
                    "400": {"description": "validation_error", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "401": {"description": "session_invalid or wrong_password", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "409": {"description": "duplicate_email or duplicate_username", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        },
        "/v1/users/password/recovery": {
            "post": {
                "description": "Always answers the same way so that registered addresses cannot be discovered.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Password"],
                "summary": "Request a password recovery link",
                "parameters": [
                    {"description": "Email address", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/usersdk.RecoveryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "429": {"description": "rate_limited", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        },
        "/v1/users/password/reset": {
            "post": {
                "description": "Redeems a recovery token. Tokens expire 60 minutes after they were requested.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Password"],
                "summary": "Reset a password",
                "parameters": [
                    {"description": "Token and new password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/usersdk.ResetPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "400": {"description": "invalid_token or validation_error", "schema": {"$ref": "#/definitions/usersdk.Envelope"}},
                    "410": {"description": "recovery_expired", "schema": {"$ref": "#/definitions/usersdk.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "jwtx.JWK": {
            "type": "object",
            "properties": {
                "alg": {"type": "string"},
                "crv": {"type": "string"},
                "e": {"type": "string"},
                "kid": {"type": "string"},
                "kty": {"type": "string"},
                "n": {"type": "string"},
                "use": {"type": "string"},
                "x": {"type": "string"},
                "y": {"type": "string"}
            }
        },
        "usersdk.AuthResponse": {
            "type": "object",
            "properties": {
                "notifications": {"type": "array", "items": {"$ref": "#/definitions/usersdk.Notification"}},
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/usersdk.User"}
            }
        },
        "usersdk.AvailabilityResponse": {
            "type": "object",
            "properties": {
                "available": {"type": "boolean"}
            }
        },
        "usersdk.DeleteAccountRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string"}
            }
        },
        "usersdk.Envelope": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "wrong_password"},
                "notifications": {"type": "array", "items": {"$ref": "#/definitions/usersdk.Notification"}}
            }
        },
        "usersdk.HealthChecks": {
            "type": "object",
            "properties": {
                "database": {"type": "string"},
                "signer": {"type": "string"}
            }
        },
        "usersdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"$ref": "#/definitions/usersdk.HealthChecks"},
                "status": {"type": "string", "example": "ok"},
                "uptime": {"type": "string", "example": "1h23m45s"},
                "version": {"type": "string", "example": "0.1.0"}
            }
        },
        "usersdk.JWKSResponse": {
            "type": "object",
            "properties": {
                "keys": {"type": "array", "items": {"$ref": "#/definitions/jwtx.JWK"}}
            }
        },
        "usersdk.LoginRequest": {
            "type": "object",
            "properties": {
                "login": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "correct horse"}
            }
        },
        "usersdk.Notification": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Your password has been updated."},
                "type": {"type": "string", "example": "success"}
            }
        },
        "usersdk.PublicKeyResponse": {
            "type": "object",
            "properties": {
                "alg": {"type": "string", "example": "EdDSA"},
                "kid": {"type": "string"},
                "pem": {"type": "string"}
            }
        },
        "usersdk.RecoveryRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "ada@example.com"}
            }
        },
        "usersdk.RegisterRequest": {
            "type": "object",
            "properties": {
                "confirm_password": {"type": "string", "example": "correct horse"},
                "email": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "correct horse"},
                "username": {"type": "string", "example": "ada"}
            }
        },
        "usersdk.ResetPasswordRequest": {
            "type": "object",
            "properties": {
                "confirm_password": {"type": "string", "example": "battery staple"},
                "password": {"type": "string", "example": "battery staple"},
                "token": {"type": "string"}
            }
        },
        "usersdk.UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "confirm_password": {"type": "string"},
                "email": {"type": "string"},
                "new_password": {"type": "string"},
                "previous_password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "usersdk.User": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "ada@example.com"},
                "id": {"type": "string", "example": "01J0Y7ZK8W3N4Q6R8T0V2X4Z6B"},
                "username": {"type": "string", "example": "ada"},
                "verified": {"type": "boolean", "example": true}
            }
        },
        "usersdk.UserResponse": {
            "type": "object",
            "properties": {
                "notifications": {"type": "array", "items": {"$ref": "#/definitions/usersdk.Notification"}},
                "user": {"$ref": "#/definitions/usersdk.User"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Identity token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Userspace Account Service API",
	Description:      "Account registration, login, email confirmation, password recovery and account settings.\n\nIdentity tokens are JWTs that can be verified with the JWKS endpoint or the public key endpoint.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
