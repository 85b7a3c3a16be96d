// Package handlers implements HTTP request handlers for Frostline's REST API.
//
// This package provides the HTTP layer over the prediction service and the
// outcome ledger.
//
// # Prediction Endpoints
//
//	POST /api/v1/predictions        - Run a full prediction for one school day
//	GET  /api/v1/predictions/latest - Most recently recorded prediction
//
// # Ledger Endpoints
//
//	GET  /api/v1/ledger               - Recent ledger entries, newest first
//	GET  /api/v1/ledger/:date         - The entry recorded for one date
//	POST /api/v1/ledger/:date/outcome - Record whether school actually closed
//
// # Operational Endpoints
//
//	GET /health  - Service status, uptime, and component checks
//	GET /metrics - Prometheus scrape endpoint
//
// Handlers bind and validate requests, map service errors to HTTP status
// codes, and shape domain records into response structs. All business logic
// lives in the services, decision, and ledger packages.
package handlers
