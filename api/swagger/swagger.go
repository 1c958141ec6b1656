package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SIA KRS API",
        "description": "Course enrollment (KRS) workflow for students and academic administrators",
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
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "KRS", "description": "Student course selection and submission"},
        {"name": "KRS Admin", "description": "Review queue and approval"},
        {"name": "KRS Batch", "description": "Cohort enrollment by administrators"}
    ],
    "paths": {
        "/krs": {
            "get": {
                "tags": ["KRS"],
                "summary": "Show the student's KRS for a term",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string", "description": "Defaults to the current term"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/krs/offerings": {
            "get": {
                "tags": ["KRS"],
                "summary": "List course offerings with the student's selection state",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string", "description": "Defaults to the current term"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/krs/selections": {
            "post": {
                "tags": ["KRS"],
                "summary": "Add a course to the draft KRS",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Course already selected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "KRS already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/krs/selections/{id}": {
            "delete": {
                "tags": ["KRS"],
                "summary": "Remove a draft course from the KRS",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Record not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Record is no longer a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/krs/submit": {
            "post": {
                "tags": ["KRS"],
                "summary": "Submit every draft course of the term for review",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TermRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No draft records", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/submissions": {
            "get": {
                "tags": ["KRS Admin"],
                "summary": "List students waiting for KRS review",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["DRAFT", "SUBMITTED", "APPROVED", "REJECTED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/{studentId}": {
            "get": {
                "tags": ["KRS Admin"],
                "summary": "Show a student's KRS for review",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/{studentId}/approve": {
            "post": {
                "tags": ["KRS Admin"],
                "summary": "Approve a submitted KRS",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TermRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Nothing submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/{studentId}/reject": {
            "post": {
                "tags": ["KRS Admin"],
                "summary": "Reject a submitted KRS",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TermRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Nothing submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/batch/catalog": {
            "get": {
                "tags": ["KRS Batch"],
                "summary": "List courses offered in a term, optionally for one semester",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/batch/catalog/refresh": {
            "post": {
                "tags": ["KRS Batch"],
                "summary": "Drop cached course lists after the catalog changed",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/admin/krs/batch/unenrolled": {
            "get": {
                "tags": ["KRS Batch"],
                "summary": "List active students without any KRS record in a term",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/batch/cohort": {
            "get": {
                "tags": ["KRS Batch"],
                "summary": "List the students and courses a batch for one semester would pair",
                "parameters": [
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/krs/batch/commit": {
            "post": {
                "tags": ["KRS Batch"],
                "summary": "Enroll every listed student into every listed course as approved",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchCommitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A pair is already enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Target semester mismatch", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Empty selection or cross-eligibility violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SelectCourseRequest": {
            "type": "object",
            "properties": {
                "termId": {"type": "string"},
                "courseId": {"type": "string"}
            },
            "required": ["termId", "courseId"]
        },
        "TermRequest": {
            "type": "object",
            "properties": {
                "termId": {"type": "string"}
            },
            "required": ["termId"]
        },
        "BatchCommitRequest": {
            "type": "object",
            "properties": {
                "termId": {"type": "string"},
                "targetSemester": {"type": "integer", "minimum": 1, "maximum": 14},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "courseIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["termId", "targetSemester", "studentIds", "courseIds"]
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
