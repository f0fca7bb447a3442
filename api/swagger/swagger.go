package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Colegio Pagos API",
        "description": "Administracion de pagos escolares: estudiantes, deudas, pagos y planes de pago",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Users", "description": "Account administration (admin only)"},
        {"name": "Concepts", "description": "Debt concept catalog"},
        {"name": "Grades", "description": "Grade catalog"},
        {"name": "Students", "description": "Student roster and balances"},
        {"name": "Debts", "description": "Ledger lines"},
        {"name": "Payments", "description": "Settlements, cancellations and receipts"},
        {"name": "Payment Plans", "description": "Installment plan generation"},
        {"name": "Guardians", "description": "Guardian links and the parent portal"},
        {"name": "Dashboard", "description": "Admin summary numbers"},
        {"name": "Events", "description": "Entity change stream"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the presented refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change the caller's own password",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Changed"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Return the authenticated identity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string", "enum": ["ADMIN", "USER", "PARENT"]},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create a user account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get user detail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update a user profile",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete a user account",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/users/{id}/reset-password": {
            "post": {
                "tags": ["Users"],
                "summary": "Reset another user's password",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Reset"}}
            }
        },
        "/concepts": {
            "get": {
                "tags": ["Concepts"],
                "summary": "List debt concepts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Concepts"],
                "summary": "Create a debt concept",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/concepts/{id}": {
            "get": {
                "tags": ["Concepts"],
                "summary": "Get a debt concept",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Concepts"],
                "summary": "Update a debt concept",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Concepts"],
                "summary": "Delete a debt concept",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Concept has debts assigned"}
                }
            }
        },
        "/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List grades",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Grades"],
                "summary": "Create a grade",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/grades/{id}": {
            "get": {
                "tags": ["Grades"],
                "summary": "Get a grade",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Grades"],
                "summary": "Update a grade",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Grades"],
                "summary": "Delete a grade",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Grade has enrolled students"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "grade_id", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Create a student, optionally assigning initial debts",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/students/{id}/balance": {
            "get": {
                "tags": ["Students"],
                "summary": "Get a student's balance summary",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/guardians": {
            "get": {
                "tags": ["Guardians"],
                "summary": "List the guardians linked to a student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/guardians": {
            "post": {
                "tags": ["Guardians"],
                "summary": "Link a user to a student as guardian",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Linked"},
                    "409": {"description": "Link already exists"}
                }
            }
        },
        "/guardians/{id}": {
            "delete": {
                "tags": ["Guardians"],
                "summary": "Remove a guardian link",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/me/students": {
            "get": {
                "tags": ["Guardians"],
                "summary": "List the students linked to the authenticated guardian",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/debts": {
            "get": {
                "tags": ["Debts"],
                "summary": "List ledger lines",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated: pending,partial,paid"},
                    {"name": "overdue", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Debts"],
                "summary": "Assign a debt to a student",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/debts/{id}": {
            "get": {
                "tags": ["Debts"],
                "summary": "Get a ledger line",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Debts"],
                "summary": "Delete an open ledger line",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "400": {"description": "Line has payments applied"}
                }
            }
        },
        "/debts/{id}/late-fee": {
            "post": {
                "tags": ["Debts"],
                "summary": "Apply a late fee to an overdue line",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Updated line"},
                    "400": {"description": "Line is paid or not overdue"}
                }
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["active", "cancelled"]},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Register a payment across selected debts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterPaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Settlement result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Amount exceeds selected balance or debts invalid"}
                }
            }
        },
        "/payments/{id}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Get a payment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/payments/{id}/cancel": {
            "post": {
                "tags": ["Payments"],
                "summary": "Cancel a payment and restore the debt balance",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Cancelled payment"},
                    "400": {"description": "Payment is already cancelled"}
                }
            }
        },
        "/payments/receipts/{receiptNumber}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Download the PDF receipt of a settlement",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [{"name": "receiptNumber", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "404": {"description": "Receipt not found"}
                }
            }
        },
        "/payments/export": {
            "get": {
                "tags": ["Payments"],
                "summary": "Export payments as CSV",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/payment-plans": {
            "get": {
                "tags": ["Payment Plans"],
                "summary": "List payment plans",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["active", "completed", "cancelled"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Payment Plans"],
                "summary": "Create a plan and generate its installment debts",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/payment-plans/{id}": {
            "get": {
                "tags": ["Payment Plans"],
                "summary": "Get a plan with installment progress",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Payment Plans"],
                "summary": "Update plan name or description",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Payment Plans"],
                "summary": "Delete a plan and its unpaid installments",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Get dashboard summary numbers",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard/reports": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Reporting module placeholder",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/events": {
            "get": {
                "tags": ["Events"],
                "summary": "Subscribe to entity change events (SSE)",
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "responses": {"200": {"description": "Event stream"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "RegisterPaymentRequest": {
            "type": "object",
            "required": ["student_id", "amount", "debt_ids"],
            "properties": {
                "student_id": {"type": "string"},
                "amount": {"type": "number"},
                "debt_ids": {"type": "array", "items": {"type": "string"}},
                "payment_date": {"type": "string"},
                "payment_method": {"type": "string"},
                "receipt_number": {"type": "string"},
                "notes": {"type": "string"}
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
