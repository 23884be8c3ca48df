package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Rota API",
        "description": "Shift rota generation, swap noticeboard and staff views",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login, token refresh and sessions"},
        {"name": "Rota", "description": "Schedule generation and lifecycle"},
        {"name": "Views", "description": "Published rota read views"},
        {"name": "Preferences", "description": "Staff shift preferences"},
        {"name": "Roster", "description": "Roster and requirement management"},
        {"name": "Swaps", "description": "Shift exchange noticeboard"},
        {"name": "Exports", "description": "Rota file exports"},
        {"name": "Ops", "description": "Operational endpoints"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and receive a token pair",
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"}
                }
            }
        },
        "/rota/generate": {
            "post": {
                "tags": ["Rota"],
                "summary": "Generate a rota proposal for a period",
                "responses": {
                    "200": {"description": "Proposal with metrics and generation log"}
                }
            }
        },
        "/rota/save": {
            "post": {
                "tags": ["Rota"],
                "summary": "Persist a proposal as a versioned schedule",
                "responses": {
                    "201": {"description": "Schedule id"}
                }
            }
        },
        "/rota/current": {
            "get": {
                "tags": ["Views"],
                "summary": "Fetch the live published rota",
                "responses": {
                    "200": {"description": "Current rota view"},
                    "404": {"description": "No published rota"}
                }
            }
        },
        "/me/rota": {
            "get": {
                "tags": ["Views"],
                "summary": "List your assignments in the live rota",
                "responses": {
                    "200": {"description": "Assignment list"}
                }
            }
        },
        "/me/next-shift": {
            "get": {
                "tags": ["Views"],
                "summary": "Fetch your next upcoming shift",
                "responses": {
                    "200": {"description": "Next shift, empty when none"}
                }
            }
        },
        "/me/fairness": {
            "get": {
                "tags": ["Views"],
                "summary": "Fetch your fairness standing",
                "responses": {
                    "200": {"description": "Accrual against roster mean"}
                }
            }
        },
        "/preferences": {
            "put": {
                "tags": ["Preferences"],
                "summary": "Replace your preferences for a period",
                "responses": {
                    "200": {"description": "Stored preferences"},
                    "409": {"description": "Period locked"}
                }
            },
            "get": {
                "tags": ["Preferences"],
                "summary": "List your preferences for a period",
                "responses": {
                    "200": {"description": "Preference list"}
                }
            }
        },
        "/swaps/listings": {
            "post": {
                "tags": ["Swaps"],
                "summary": "Offer one of your assignments for swap",
                "responses": {
                    "201": {"description": "Open listing"}
                }
            },
            "get": {
                "tags": ["Swaps"],
                "summary": "Browse open swap listings",
                "responses": {
                    "200": {"description": "Listing views"}
                }
            }
        },
        "/swaps/accept": {
            "post": {
                "tags": ["Swaps"],
                "summary": "Accept an open listing",
                "responses": {
                    "200": {"description": "Updated schedule"},
                    "422": {"description": "Validation failed, nothing changed"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Request a rota export",
                "responses": {
                    "202": {"description": "Pending export record"}
                }
            }
        }
    },
    "definitions": {
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
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"}
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
