package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Membership Consent API",
        "description": "Legal document sync, consent ledger and derived membership status",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "LegalDocuments", "description": "Document settings, versions and source sync"},
        {"name": "Membership", "description": "Derived membership status"},
        {"name": "Consents", "description": "Append-only consent ledger"},
        {"name": "Compliance", "description": "Lapsed consent reporting"}
    ],
    "paths": {
        "/legal-documents": {
            "get": {
                "tags": ["LegalDocuments"],
                "summary": "List legal documents",
                "parameters": [
                    {"name": "scope", "in": "query", "type": "string", "format": "uuid"},
                    {"name": "active", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["LegalDocuments"],
                "summary": "Register legal document",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLegalDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/legal-documents/{id}": {
            "get": {
                "tags": ["LegalDocuments"],
                "summary": "Get legal document",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["LegalDocuments"],
                "summary": "Update legal document settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateLegalDocumentRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/legal-documents/{id}/versions": {
            "get": {
                "tags": ["LegalDocuments"],
                "summary": "List document versions, newest first",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/legal-documents/{id}/sync": {
            "post": {
                "tags": ["LegalDocuments"],
                "summary": "Sync one document from the source",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Document not configured or canonical file missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Source unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/legal-documents/sync": {
            "post": {
                "tags": ["LegalDocuments"],
                "summary": "Sync every active document from the source",
                "responses": {
                    "200": {"description": "Per-document report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Source backing off", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/legal-documents/updates": {
            "get": {
                "tags": ["LegalDocuments"],
                "summary": "Documents changed at the source since the last sync",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/legal-documents/required-versions": {
            "get": {
                "tags": ["LegalDocuments"],
                "summary": "Current versions of required documents",
                "parameters": [{"name": "scope", "in": "query", "type": "string", "format": "uuid"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/document-versions/{id}": {
            "get": {
                "tags": ["LegalDocuments"],
                "summary": "Get document version",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/members/status": {
            "post": {
                "tags": ["Membership"],
                "summary": "Membership status of many members",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchStatusRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/members/{id}/status": {
            "get": {
                "tags": ["Membership"],
                "summary": "Membership status of a member",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"},
                    {"name": "scope", "in": "query", "type": "string", "format": "uuid"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/members/{id}/consents": {
            "get": {
                "tags": ["Consents"],
                "summary": "Consent history of a member",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Consents"],
                "summary": "Consent to a document version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "format": "uuid"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordConsentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "200": {"description": "Already consented", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Version not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/compliance/non-compliant": {
            "get": {
                "tags": ["Compliance"],
                "summary": "Members whose required consent lapsed",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/compliance/report": {
            "get": {
                "tags": ["Compliance"],
                "summary": "Download the non-compliance report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "Report file", "schema": {"type": "file"}}}
            }
        }
    },
    "definitions": {
        "CreateLegalDocumentRequest": {
            "type": "object",
            "required": ["name", "gracePeriodDays"],
            "properties": {
                "name": {"type": "string", "maxLength": 256},
                "scopeId": {"type": "string", "format": "uuid"},
                "isRequired": {"type": "boolean"},
                "isActive": {"type": "boolean"},
                "gracePeriodDays": {"type": "integer", "minimum": 1, "maximum": 365},
                "sourceFolder": {"type": "string", "maxLength": 512}
            }
        },
        "UpdateLegalDocumentRequest": {
            "type": "object",
            "required": ["name", "gracePeriodDays"],
            "properties": {
                "name": {"type": "string", "maxLength": 256},
                "scopeId": {"type": "string", "format": "uuid"},
                "isRequired": {"type": "boolean"},
                "isActive": {"type": "boolean"},
                "gracePeriodDays": {"type": "integer", "minimum": 1, "maximum": 365},
                "sourceFolder": {"type": "string", "maxLength": 512}
            }
        },
        "BatchStatusRequest": {
            "type": "object",
            "required": ["userIds"],
            "properties": {
                "userIds": {"type": "array", "items": {"type": "string", "format": "uuid"}, "maxItems": 5000},
                "scopeId": {"type": "string", "format": "uuid"}
            }
        },
        "RecordConsentRequest": {
            "type": "object",
            "required": ["documentVersionId"],
            "properties": {
                "documentVersionId": {"type": "string", "format": "uuid"}
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
